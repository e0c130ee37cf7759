package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsMatchesOnCode(t *testing.T) {
	err := New(CodeStaffUnavailable, "staff %s has no slot at %s", "s-1", "10:00")
	assert.ErrorIs(t, err, ErrStaffUnavailable)
	assert.NotErrorIs(t, err, ErrResourceUnavailable)

	wrapped := fmt.Errorf("assignment: %w", err)
	assert.ErrorIs(t, wrapped, ErrStaffUnavailable)
	assert.Equal(t, CodeStaffUnavailable, CodeOf(wrapped))
	assert.Equal(t, "staff s-1 has no slot at 10:00", MessageOf(wrapped))
}

func TestCodeOfUntyped(t *testing.T) {
	assert.Equal(t, CodeInternal, CodeOf(errors.New("dynamo: throttled")))
	assert.Equal(t, "internal error", MessageOf(errors.New("dynamo: throttled")))
	assert.Equal(t, Code(""), CodeOf(nil))
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("redis down")
	err := Wrap(CodeInternal, cause, "load config")
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "redis down")
}
