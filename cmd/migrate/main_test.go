package main

import (
	"errors"
	"testing"

	"github.com/golang-migrate/migrate/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	appmigrations "github.com/wolfman30/booking-engine/migrations"
)

type fakeMigrator struct {
	upErr  error
	steps  []int
	forced int
}

func (f *fakeMigrator) Up() error               { return f.upErr }
func (f *fakeMigrator) Steps(n int) error       { f.steps = append(f.steps, n); return nil }
func (f *fakeMigrator) Force(version int) error { f.forced = version; return nil }
func (f *fakeMigrator) Version() (uint, bool, error) {
	return 0, false, migrate.ErrNilVersion
}

func TestRunCommands(t *testing.T) {
	m := &fakeMigrator{upErr: migrate.ErrNoChange}
	require.NoError(t, run(m, nil), "no change is not an error")

	m.upErr = errors.New("boom")
	assert.Error(t, run(m, []string{"up"}))

	require.NoError(t, run(m, []string{"down"}))
	require.NoError(t, run(m, []string{"down", "2"}))
	assert.Equal(t, []int{-1, -2}, m.steps)
	assert.Error(t, run(m, []string{"down", "zero"}))

	require.NoError(t, run(m, []string{"force", "3"}))
	assert.Equal(t, 3, m.forced)
	assert.Error(t, run(m, []string{"force"}))

	require.NoError(t, run(m, []string{"version"}))
	assert.Error(t, run(m, []string{"sideways"}))
}

func TestMigrationsArePaired(t *testing.T) {
	entries, err := appmigrations.FS.ReadDir(".")
	require.NoError(t, err)
	names := map[string]bool{}
	for _, e := range entries {
		names[e.Name()] = true
	}
	for _, base := range []string{"000001_directory", "000002_appointments", "000003_outbox"} {
		assert.True(t, names[base+".up.sql"], base+" up")
		assert.True(t, names[base+".down.sql"], base+" down")
	}
}
