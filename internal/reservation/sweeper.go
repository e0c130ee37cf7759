package reservation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wolfman30/booking-engine/pkg/logging"
)

// TokenOwner reports the appointment, if any, that still claims a token. An
// appointment claims its token while it is live and still books exactly the
// token's holds.
type TokenOwner interface {
	ReservationOwner(ctx context.Context, token *Token) (appointmentID string, claimed bool, err error)
}

// SweepObserver receives sweep counts. BookingMetrics satisfies it.
type SweepObserver interface {
	ObserveSweep(action string, n int)
}

// SweepResult counts what one sweep did.
type SweepResult struct {
	Committed int
	Released  int
	Failed    int
}

// Sweeper resolves reservation tokens that outlived the reservation TTL. A
// token still claimed by its appointment is committed to it; any other token
// is released.
type Sweeper struct {
	ledger    Ledger
	manager   *Manager
	owner     TokenOwner
	ttl       time.Duration
	batchSize int
	observer  SweepObserver
	logger    *logging.Logger
}

// SweeperOption configures a Sweeper.
type SweeperOption func(*Sweeper)

// WithBatchSize caps how many tokens one sweep visits.
func WithBatchSize(n int) SweeperOption {
	return func(s *Sweeper) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

// WithObserver reports sweep counts to o.
func WithObserver(o SweepObserver) SweeperOption {
	return func(s *Sweeper) {
		s.observer = o
	}
}

func NewSweeper(ledger Ledger, manager *Manager, owner TokenOwner, ttl time.Duration, logger *logging.Logger, opts ...SweeperOption) *Sweeper {
	if ledger == nil || manager == nil || owner == nil {
		panic("reservation: sweeper requires ledger, manager and token owner")
	}
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	if logger == nil {
		logger = logging.Default()
	}
	s := &Sweeper{ledger: ledger, manager: manager, owner: owner, ttl: ttl, batchSize: 500, logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sweep visits tokens created before now-ttl. Per-token failures are counted
// and logged; the joined error is returned alongside the counts.
func (s *Sweeper) Sweep(ctx context.Context, now time.Time) (SweepResult, error) {
	var res SweepResult
	tokens, err := s.ledger.CreatedBefore(ctx, now.Add(-s.ttl), s.batchSize)
	if err != nil {
		return res, err
	}

	var errs []error
	for _, token := range tokens {
		if err := s.resolve(ctx, token, &res); err != nil {
			res.Failed++
			errs = append(errs, err)
			s.logger.ForOrg(token.OrgID).Error("reservation sweep failed", "token", token.ID, "error", err)
		}
	}

	if s.observer != nil {
		s.observer.ObserveSweep("committed", res.Committed)
		s.observer.ObserveSweep("released", res.Released)
		s.observer.ObserveSweep("failed", res.Failed)
	}
	if len(tokens) > 0 {
		s.logger.Info("reservation sweep finished",
			"visited", len(tokens), "committed", res.Committed, "released", res.Released, "failed", res.Failed)
	}
	return res, errors.Join(errs...)
}

func (s *Sweeper) resolve(ctx context.Context, token *Token, res *SweepResult) error {
	appointmentID, claimed, err := s.owner.ReservationOwner(ctx, token)
	if err != nil {
		return fmt.Errorf("reservation: look up token %s: %w", token.ID, err)
	}
	if claimed {
		if err := s.manager.Commit(ctx, token, appointmentID); err != nil {
			return err
		}
		res.Committed++
		return nil
	}
	if err := s.manager.Release(ctx, token); err != nil {
		return err
	}
	res.Released++
	return nil
}

// Run sweeps every interval until ctx is done.
func (s *Sweeper) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if _, err := s.Sweep(ctx, now); err != nil {
				s.logger.Warn("reservation sweep incomplete", "error", err)
			}
		}
	}
}
