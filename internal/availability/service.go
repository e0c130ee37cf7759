package availability

import (
	"context"
	"errors"
	"strings"

	"github.com/wolfman30/booking-engine/internal/apperr"
	"github.com/wolfman30/booking-engine/internal/schedule"
	"github.com/wolfman30/booking-engine/pkg/logging"
)

const defaultMaxAttempts = 5

// ErrNoChange may be returned by a Mutate callback to finish without writing.
var ErrNoChange = errors.New("availability: no change")

// Service applies slot mutations to availability records. Every mutation is a
// read, modify, conditional-write cycle retried on version conflicts, so two
// writers can never both claim the same slot.
type Service struct {
	store       Store
	logger      *logging.Logger
	maxAttempts int
}

// Option configures a Service.
type Option func(*Service)

// WithMaxAttempts bounds the compare-and-swap retry loop.
func WithMaxAttempts(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

func NewService(store Store, logger *logging.Logger, opts ...Option) *Service {
	if store == nil {
		panic("availability: store cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	s := &Service{store: store, logger: logger, maxAttempts: defaultMaxAttempts}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns one record or a NOT_FOUND error.
func (s *Service) Get(ctx context.Context, key Key) (*Availability, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}
	a, err := s.store.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return nil, apperr.Wrap(apperr.CodeNotFound, err, "no availability for %s %s on %s", key.EntityType, key.EntityID, key.Date)
	}
	return a, err
}

// GetRange lists records for dates in [startDate, endDate].
func (s *Service) GetRange(ctx context.Context, orgID string, entityType EntityType, entityID, startDate, endDate string) ([]*Availability, error) {
	if err := (Key{OrgID: orgID, EntityType: entityType, EntityID: entityID, Date: startDate}).Validate(); err != nil {
		return nil, err
	}
	if _, err := schedule.ParseDate(endDate); err != nil {
		return nil, apperr.InvalidArgument("end date %q must be YYYY-MM-DD", endDate)
	}
	if endDate < startDate {
		return nil, apperr.InvalidArgument("end date %s is before start date %s", endDate, startDate)
	}
	return s.store.GetRange(ctx, orgID, entityType, entityID, startDate, endDate)
}

// Create stores a new record. It returns ErrAlreadyExists untouched so
// callers can treat a lost creation race as "already generated".
func (s *Service) Create(ctx context.Context, a *Availability) error {
	if a == nil {
		return apperr.InvalidArgument("availability record is required")
	}
	if err := a.Key().Validate(); err != nil {
		return err
	}
	if err := ValidateSlots(a.TimeSlots); err != nil {
		return err
	}
	return s.store.Create(ctx, a)
}

// Mutate runs fn against a fresh copy of the stored record and writes the
// result conditionally on the version that was read. On a conflict the record
// is re-read and fn is applied again, so fn must be deterministic over its
// input. Exhausting the attempts fails CONCURRENT_MODIFICATION.
func (s *Service) Mutate(ctx context.Context, key Key, fn func(a *Availability) error) (*Availability, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		current, err := s.store.Get(ctx, key)
		if errors.Is(err, ErrNotFound) {
			return nil, apperr.Wrap(apperr.CodeNotFound, err, "no availability for %s %s on %s", key.EntityType, key.EntityID, key.Date)
		}
		if err != nil {
			return nil, err
		}

		next := current.Clone()
		if err := fn(next); err != nil {
			if errors.Is(err, ErrNoChange) {
				return current, nil
			}
			return nil, err
		}
		if err := ValidateSlots(next.TimeSlots); err != nil {
			return nil, err
		}

		err = s.store.CompareAndSwap(ctx, next, current.Version)
		if err == nil {
			return next, nil
		}
		if !errors.Is(err, ErrVersionConflict) {
			return nil, err
		}
		s.logger.Debug("availability mutation retry", "key", key.String(), "attempt", attempt)
	}
	return nil, apperr.Wrap(apperr.CodeConcurrentModification, ErrVersionConflict,
		"availability for %s %s on %s kept changing after %d attempts", key.EntityType, key.EntityID, key.Date, s.maxAttempts)
}

// Patch is a partial update of a record. Nil fields are left unchanged.
type Patch struct {
	TimeSlots []schedule.Slot
	IsActive  *bool
	Override  *bool
}

// Update applies a partial update through the conditional write path.
func (s *Service) Update(ctx context.Context, key Key, patch Patch) (*Availability, error) {
	return s.Mutate(ctx, key, func(a *Availability) error {
		if patch.TimeSlots != nil {
			a.TimeSlots = append([]schedule.Slot(nil), patch.TimeSlots...)
		}
		if patch.IsActive != nil {
			a.IsActive = *patch.IsActive
		}
		if patch.Override != nil {
			a.Override = *patch.Override
		}
		return nil
	})
}

// BookSlot marks every slot intersecting [startTime, endTime) as booked by
// appointmentID. It fails SLOT_UNAVAILABLE when any of those slots is held by
// something else or when the range covers no slot. Booking a range already
// held by the same appointment succeeds without writing.
func (s *Service) BookSlot(ctx context.Context, key Key, startTime, endTime, appointmentID string) (*Availability, error) {
	start, end, err := parseRange(startTime, endTime)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(appointmentID) == "" {
		return nil, apperr.InvalidArgument("appointment id is required to book a slot")
	}

	return s.Mutate(ctx, key, func(a *Availability) error {
		matched, changed := 0, false
		for i := range a.TimeSlots {
			slot := &a.TimeSlots[i]
			if !overlaps(*slot, start, end) {
				continue
			}
			matched++
			switch {
			case slot.IsAvailable:
				slot.MarkBooked(appointmentID)
				changed = true
			case slot.ReasonUnavailable == schedule.ReasonBooked && slot.BookedAppointmentID == appointmentID:
			default:
				return apperr.New(apperr.CodeSlotUnavailable, "slot %s on %s is not available", slot.StartTime, key.Date)
			}
		}
		if matched == 0 {
			return apperr.New(apperr.CodeSlotUnavailable, "no slots between %s and %s on %s", startTime, endTime, key.Date)
		}
		if !changed {
			return ErrNoChange
		}
		return nil
	})
}

// ReleaseSlot frees every slot booked by appointmentID and returns how many
// were freed. A missing record or an id holding nothing is a no-op.
func (s *Service) ReleaseSlot(ctx context.Context, key Key, appointmentID string) (int, error) {
	if strings.TrimSpace(appointmentID) == "" {
		return 0, apperr.InvalidArgument("appointment id is required to release a slot")
	}
	released := 0
	_, err := s.Mutate(ctx, key, func(a *Availability) error {
		released = 0
		for i := range a.TimeSlots {
			slot := &a.TimeSlots[i]
			if slot.ReasonUnavailable == schedule.ReasonBooked && slot.BookedAppointmentID == appointmentID {
				slot.MarkAvailable()
				released++
			}
		}
		if released == 0 {
			return ErrNoChange
		}
		return nil
	})
	if errors.Is(err, apperr.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return released, nil
}

// BlockSlot marks the slots intersecting [startTime, endTime) unavailable for
// maintenance or a custom reason. Break slots keep their marker. It fails
// SLOT_UNAVAILABLE if any slot in the range is booked.
func (s *Service) BlockSlot(ctx context.Context, key Key, startTime, endTime string, reason schedule.Reason, customReason string) (*Availability, error) {
	if reason != schedule.ReasonMaintenance && reason != schedule.ReasonCustom {
		return nil, apperr.InvalidArgument("block reason must be maintenance or custom, got %q", reason)
	}
	start, end, err := parseRange(startTime, endTime)
	if err != nil {
		return nil, err
	}

	return s.Mutate(ctx, key, func(a *Availability) error {
		matched := 0
		for i := range a.TimeSlots {
			slot := &a.TimeSlots[i]
			if !overlaps(*slot, start, end) {
				continue
			}
			matched++
			switch slot.ReasonUnavailable {
			case schedule.ReasonBooked:
				return apperr.New(apperr.CodeSlotUnavailable, "slot %s on %s is booked", slot.StartTime, key.Date)
			case schedule.ReasonBreak:
				continue
			}
			slot.IsAvailable = false
			slot.BookedAppointmentID = ""
			slot.ReasonUnavailable = reason
			slot.CustomReason = ""
			if reason == schedule.ReasonCustom {
				slot.CustomReason = customReason
			}
		}
		if matched == 0 {
			return apperr.InvalidArgument("no slots between %s and %s on %s", startTime, endTime, key.Date)
		}
		return nil
	})
}

// UnblockSlot clears maintenance and custom blocks in [startTime, endTime).
// Booked and break slots are untouched.
func (s *Service) UnblockSlot(ctx context.Context, key Key, startTime, endTime string) (*Availability, error) {
	start, end, err := parseRange(startTime, endTime)
	if err != nil {
		return nil, err
	}
	return s.Mutate(ctx, key, func(a *Availability) error {
		changed := false
		for i := range a.TimeSlots {
			slot := &a.TimeSlots[i]
			if !overlaps(*slot, start, end) {
				continue
			}
			if slot.ReasonUnavailable == schedule.ReasonMaintenance || slot.ReasonUnavailable == schedule.ReasonCustom {
				slot.MarkAvailable()
				changed = true
			}
		}
		if !changed {
			return ErrNoChange
		}
		return nil
	})
}

// Retag moves every slot booked by fromID over to toID and returns how many
// slots moved.
func (s *Service) Retag(ctx context.Context, key Key, fromID, toID string) (int, error) {
	if fromID == "" || toID == "" {
		return 0, apperr.InvalidArgument("both appointment ids are required to retag")
	}
	moved := 0
	_, err := s.Mutate(ctx, key, func(a *Availability) error {
		moved = 0
		for i := range a.TimeSlots {
			slot := &a.TimeSlots[i]
			if slot.ReasonUnavailable == schedule.ReasonBooked && slot.BookedAppointmentID == fromID {
				slot.BookedAppointmentID = toID
				moved++
			}
		}
		if moved == 0 {
			return ErrNoChange
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return moved, nil
}

func parseRange(startTime, endTime string) (int, int, error) {
	start, err := schedule.ParseClock(startTime)
	if err != nil {
		return 0, 0, apperr.InvalidArgument("start time: %v", err)
	}
	end, err := schedule.ParseClock(endTime)
	if err != nil {
		return 0, 0, apperr.InvalidArgument("end time: %v", err)
	}
	if start >= end {
		return 0, 0, apperr.InvalidArgument("start time %s must be before end time %s", startTime, endTime)
	}
	return start, end, nil
}

func overlaps(slot schedule.Slot, start, end int) bool {
	ss, se, err := slot.Span()
	if err != nil {
		return false
	}
	return ss < end && se > start
}
