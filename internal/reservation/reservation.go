// Package reservation holds slots for an appointment before the appointment
// exists. Reserve books every hold under a token id, Commit retags the slots
// to the real appointment id and Release frees them. Pending tokens sit in a
// ledger so orphans left by a crash can be swept.
package reservation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/wolfman30/booking-engine/internal/apperr"
	"github.com/wolfman30/booking-engine/internal/availability"
	"github.com/wolfman30/booking-engine/pkg/logging"
)

// TokenPrefix marks booking ids that belong to a pending reservation.
const TokenPrefix = "rsv_"

// IsToken reports whether id is a reservation token rather than an
// appointment id.
func IsToken(id string) bool {
	return strings.HasPrefix(id, TokenPrefix)
}

// Hold is one entity's share of a reservation.
type Hold struct {
	Key             availability.Key `json:"key"`
	StartTime       string           `json:"start_time"`
	DurationMinutes int              `json:"duration_minutes"`
}

// Token identifies a pending reservation.
type Token struct {
	ID        string    `json:"id"`
	OrgID     string    `json:"org_id"`
	Holds     []Hold    `json:"holds"`
	CreatedAt time.Time `json:"created_at"`
}

// Keys returns the distinct availability keys the token holds.
func (t *Token) Keys() []availability.Key {
	return holdKeys(t.Holds)
}

// SlotBooker books and frees slots on one availability record.
type SlotBooker interface {
	BookSlot(ctx context.Context, key availability.Key, startTime string, durationMinutes int, bookingID string) error
	ReleaseSlot(ctx context.Context, key availability.Key, bookingID string) (int, error)
}

// Retagger moves bookings from one id to another.
type Retagger interface {
	Retag(ctx context.Context, key availability.Key, fromID, toID string) (int, error)
}

// Manager runs the two-phase reservation protocol.
type Manager struct {
	booker   SlotBooker
	retagger Retagger
	ledger   Ledger
	logger   *logging.Logger
	now      func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock overrides the time source used to stamp tokens.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

func NewManager(booker SlotBooker, retagger Retagger, ledger Ledger, logger *logging.Logger, opts ...Option) *Manager {
	if booker == nil {
		panic("reservation: slot booker cannot be nil")
	}
	if retagger == nil {
		panic("reservation: retagger cannot be nil")
	}
	if ledger == nil {
		panic("reservation: ledger cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	m := &Manager{booker: booker, retagger: retagger, ledger: ledger, logger: logger, now: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Reserve books every hold under a fresh token. The token is written to the
// ledger before any slot is touched. If a hold fails, the holds booked before
// it are released and the original error is returned.
func (m *Manager) Reserve(ctx context.Context, orgID string, holds []Hold) (*Token, error) {
	if len(holds) == 0 {
		return nil, apperr.InvalidArgument("reservation needs at least one hold")
	}
	token := &Token{
		ID:        TokenPrefix + uuid.NewString(),
		OrgID:     orgID,
		Holds:     holds,
		CreatedAt: m.now().UTC(),
	}
	if err := m.ledger.Add(ctx, token); err != nil {
		return nil, fmt.Errorf("reservation: record token: %w", err)
	}

	if err := m.bookAll(ctx, orgID, holds, token.ID); err != nil {
		if lerr := m.ledger.Remove(ctx, token.ID); lerr != nil {
			m.logger.ForOrg(orgID).Error("failed to remove reservation token from ledger",
				"token", token.ID, "error", lerr)
		}
		return nil, err
	}
	m.logger.ForOrg(orgID).Debug("reservation held", "token", token.ID, "holds", len(holds))
	return token, nil
}

// Commit hands the token's slots to appointmentID and forgets the token.
func (m *Manager) Commit(ctx context.Context, token *Token, appointmentID string) error {
	if token == nil {
		return apperr.InvalidArgument("reservation token is required")
	}
	if appointmentID == "" || IsToken(appointmentID) {
		return apperr.InvalidArgument("commit needs a real appointment id, got %q", appointmentID)
	}
	for _, key := range token.Keys() {
		if _, err := m.retagger.Retag(ctx, key, token.ID, appointmentID); err != nil {
			return fmt.Errorf("reservation: commit %s on %s: %w", token.ID, key, err)
		}
	}
	if err := m.ledger.Remove(ctx, token.ID); err != nil {
		// The sweeper finds the appointment and commits again.
		m.logger.ForOrg(token.OrgID).Warn("committed token left in ledger", "token", token.ID, "error", err)
	}
	return nil
}

// Release frees every slot held by the token. The ledger entry is kept when
// any release fails so the sweeper retries it.
func (m *Manager) Release(ctx context.Context, token *Token) error {
	if token == nil {
		return apperr.InvalidArgument("reservation token is required")
	}
	if err := m.ReleaseFor(ctx, token.Keys(), token.ID); err != nil {
		return err
	}
	if err := m.ledger.Remove(ctx, token.ID); err != nil {
		return fmt.Errorf("reservation: remove token %s: %w", token.ID, err)
	}
	return nil
}

// Discard frees whatever tokenID still holds and forgets it. A token missing
// from the ledger was already committed or released, so nothing is done.
func (m *Manager) Discard(ctx context.Context, tokenID string) error {
	if tokenID == "" {
		return nil
	}
	token, err := m.ledger.Get(ctx, tokenID)
	if errors.Is(err, ErrTokenNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reservation: load token %s: %w", tokenID, err)
	}
	return m.Release(ctx, token)
}

// ReserveFor books holds directly under an existing appointment id, rolling
// back on failure like Reserve. No ledger entry is written.
func (m *Manager) ReserveFor(ctx context.Context, orgID string, holds []Hold, appointmentID string) error {
	if appointmentID == "" {
		return apperr.InvalidArgument("appointment id is required")
	}
	return m.bookAll(ctx, orgID, holds, appointmentID)
}

// ReleaseFor frees what bookingID holds on each key. Every key is attempted;
// the failures are joined.
func (m *Manager) ReleaseFor(ctx context.Context, keys []availability.Key, bookingID string) error {
	var errs []error
	for _, key := range keys {
		if _, err := m.booker.ReleaseSlot(ctx, key, bookingID); err != nil {
			errs = append(errs, fmt.Errorf("reservation: release %s on %s: %w", bookingID, key, err))
		}
	}
	return errors.Join(errs...)
}

func (m *Manager) bookAll(ctx context.Context, orgID string, holds []Hold, bookingID string) error {
	for i, h := range holds {
		if err := m.booker.BookSlot(ctx, h.Key, h.StartTime, h.DurationMinutes, bookingID); err != nil {
			if rerr := m.ReleaseFor(ctx, holdKeys(holds[:i]), bookingID); rerr != nil {
				m.logger.ForOrg(orgID).Error("failed to roll back partial reservation",
					"booking_id", bookingID, "error", rerr)
			}
			return err
		}
	}
	return nil
}

func holdKeys(holds []Hold) []availability.Key {
	seen := make(map[availability.Key]bool, len(holds))
	keys := make([]availability.Key, 0, len(holds))
	for _, h := range holds {
		if seen[h.Key] {
			continue
		}
		seen[h.Key] = true
		keys = append(keys, h.Key)
	}
	return keys
}
