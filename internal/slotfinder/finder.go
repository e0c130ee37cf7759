// Package slotfinder answers which staff members and resources can take a
// booking of a given length on a given date, and books the slot it finds.
package slotfinder

import (
	"context"
	"errors"
	"strings"

	"github.com/wolfman30/booking-engine/internal/apperr"
	"github.com/wolfman30/booking-engine/internal/availability"
	"github.com/wolfman30/booking-engine/internal/directory"
	"github.com/wolfman30/booking-engine/internal/schedule"
	"github.com/wolfman30/booking-engine/pkg/logging"
)

// Entities is the directory surface the finder reads.
type Entities interface {
	directory.StaffProvider
	directory.ResourceProvider
}

// Query describes a slot search. EntityType may be empty to search staff and
// resources together. EntityID requires EntityType.
type Query struct {
	OrgID               string
	Date                string
	DurationMinutes     int
	EntityType          availability.EntityType
	EntityID            string
	RequiredSpecialties []string
}

// Match is one entity with the slots that can take the booking.
type Match struct {
	EntityType availability.EntityType `json:"entity_type"`
	EntityID   string                  `json:"entity_id"`
	EntityName string                  `json:"entity_name"`
	Date       string                  `json:"date"`
	Slots      []schedule.Slot         `json:"slots"`
}

// HasStart reports whether one of the match's slots starts at startTime.
func (m Match) HasStart(startTime string) bool {
	for _, s := range m.Slots {
		if s.StartTime == startTime {
			return true
		}
	}
	return false
}

// Options tunes how slots qualify.
type Options struct {
	// MergeAdjacent lets a run of back-to-back free slots satisfy a duration
	// longer than one slot. When false a slot qualifies only if its own span
	// covers the duration, so booking durations should be a multiple of the
	// generation slot size.
	MergeAdjacent bool
}

// Finder searches availability records.
type Finder struct {
	availability *availability.Service
	entities     Entities
	logger       *logging.Logger
	opts         Options
}

func New(avail *availability.Service, entities Entities, logger *logging.Logger, opts Options) *Finder {
	if avail == nil {
		panic("slotfinder: availability service cannot be nil")
	}
	if entities == nil {
		panic("slotfinder: entity directory cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Finder{availability: avail, entities: entities, logger: logger, opts: opts}
}

// FindAvailableSlots returns every matching entity with at least one
// qualifying slot, staff before resources, each in directory order.
func (f *Finder) FindAvailableSlots(ctx context.Context, q Query) ([]Match, error) {
	if err := validateQuery(q); err != nil {
		return nil, err
	}

	if q.EntityID != "" {
		m, err := f.matchOne(ctx, q)
		if err != nil || m == nil {
			return nil, err
		}
		return []Match{*m}, nil
	}

	var out []Match
	if q.EntityType == "" || q.EntityType == availability.EntityStaff {
		staff, err := f.entities.ListStaff(ctx, q.OrgID, true)
		if err != nil {
			return nil, err
		}
		for _, s := range staff {
			if !s.HasAnySpecialty(q.RequiredSpecialties) {
				continue
			}
			m, err := f.match(ctx, q, availability.EntityStaff, s.ID, s.Name)
			if err != nil {
				return nil, err
			}
			if m != nil {
				out = append(out, *m)
			}
		}
	}
	if q.EntityType == "" || q.EntityType == availability.EntityResource {
		resources, err := f.entities.ListResources(ctx, q.OrgID, true)
		if err != nil {
			return nil, err
		}
		for _, r := range resources {
			m, err := f.match(ctx, q, availability.EntityResource, r.ID, r.Name)
			if err != nil {
				return nil, err
			}
			if m != nil {
				out = append(out, *m)
			}
		}
	}
	return out, nil
}

// FindAvailableSlot returns the qualifying slot of key starting at startTime,
// or nil when there is none.
func (f *Finder) FindAvailableSlot(ctx context.Context, key availability.Key, startTime string, durationMinutes int) (*schedule.Slot, error) {
	if durationMinutes <= 0 {
		return nil, apperr.InvalidArgument("duration must be positive, got %d", durationMinutes)
	}
	rec, err := f.availability.Get(ctx, key)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !rec.IsActive {
		return nil, nil
	}
	for _, s := range f.qualifying(rec.TimeSlots, durationMinutes) {
		if s.StartTime == startTime {
			s := s
			return &s, nil
		}
	}
	return nil, nil
}

// BookSlot re-checks that startTime still qualifies and then books
// [startTime, startTime+duration) for bookingID. The re-check narrows the
// window between search and booking; the conditional write in the
// availability service is what rules out double booking.
func (f *Finder) BookSlot(ctx context.Context, key availability.Key, startTime string, durationMinutes int, bookingID string) error {
	endTime, err := schedule.AddMinutes(startTime, durationMinutes)
	if err != nil {
		return apperr.InvalidArgument("%v", err)
	}
	slot, err := f.FindAvailableSlot(ctx, key, startTime, durationMinutes)
	if err != nil {
		return err
	}
	if slot == nil {
		return apperr.New(apperr.CodeSlotUnavailable, "%s %s has no free slot at %s on %s", key.EntityType, key.EntityID, startTime, key.Date)
	}
	if _, err := f.availability.BookSlot(ctx, key, startTime, endTime, bookingID); err != nil {
		return err
	}
	f.logger.ForOrg(key.OrgID).Debug("slot booked",
		"entity_type", string(key.EntityType), "entity_id", key.EntityID,
		"date", key.Date, "start_time", startTime, "booking_id", bookingID)
	return nil
}

// ReleaseSlot frees everything bookingID holds on key. Releasing nothing is
// not an error.
func (f *Finder) ReleaseSlot(ctx context.Context, key availability.Key, bookingID string) (int, error) {
	return f.availability.ReleaseSlot(ctx, key, bookingID)
}

func (f *Finder) matchOne(ctx context.Context, q Query) (*Match, error) {
	switch q.EntityType {
	case availability.EntityStaff:
		s, err := f.entities.GetStaff(ctx, q.OrgID, q.EntityID)
		if errors.Is(err, directory.ErrNotFound) {
			return nil, apperr.NotFound("staff", q.EntityID)
		}
		if err != nil {
			return nil, err
		}
		if !s.IsActive || !s.HasAnySpecialty(q.RequiredSpecialties) {
			return nil, nil
		}
		return f.match(ctx, q, availability.EntityStaff, s.ID, s.Name)
	default:
		r, err := f.entities.GetResource(ctx, q.OrgID, q.EntityID)
		if errors.Is(err, directory.ErrNotFound) {
			return nil, apperr.NotFound("resource", q.EntityID)
		}
		if err != nil {
			return nil, err
		}
		if !r.IsActive {
			return nil, nil
		}
		return f.match(ctx, q, availability.EntityResource, r.ID, r.Name)
	}
}

func (f *Finder) match(ctx context.Context, q Query, entityType availability.EntityType, entityID, name string) (*Match, error) {
	key := availability.Key{OrgID: q.OrgID, EntityType: entityType, EntityID: entityID, Date: q.Date}
	rec, err := f.availability.Get(ctx, key)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !rec.IsActive {
		return nil, nil
	}
	slots := f.qualifying(rec.TimeSlots, q.DurationMinutes)
	if len(slots) == 0 {
		return nil, nil
	}
	return &Match{EntityType: entityType, EntityID: entityID, EntityName: name, Date: q.Date, Slots: slots}, nil
}

func (f *Finder) qualifying(slots []schedule.Slot, duration int) []schedule.Slot {
	if f.opts.MergeAdjacent {
		return mergedWindows(slots, duration)
	}
	var out []schedule.Slot
	for _, s := range slots {
		if s.IsAvailable && s.DurationMinutes() >= duration {
			out = append(out, s)
		}
	}
	return out
}

// mergedWindows returns, for each free slot, the window formed with the free
// slots directly after it when that window covers duration.
func mergedWindows(slots []schedule.Slot, duration int) []schedule.Slot {
	var out []schedule.Slot
	for i := range slots {
		if !slots[i].IsAvailable {
			continue
		}
		start, end, err := slots[i].Span()
		if err != nil {
			continue
		}
		for j := i + 1; end-start < duration && j < len(slots); j++ {
			ns, ne, err := slots[j].Span()
			if err != nil || !slots[j].IsAvailable || ns != end {
				break
			}
			end = ne
		}
		if end-start >= duration {
			out = append(out, schedule.Slot{
				StartTime:   slots[i].StartTime,
				EndTime:     schedule.FormatClock(end),
				IsAvailable: true,
			})
		}
	}
	return out
}

func validateQuery(q Query) error {
	if strings.TrimSpace(q.OrgID) == "" {
		return apperr.InvalidArgument("org id is required")
	}
	if _, err := schedule.ParseDate(q.Date); err != nil {
		return apperr.InvalidArgument("date %q must be YYYY-MM-DD", q.Date)
	}
	if q.DurationMinutes <= 0 {
		return apperr.InvalidArgument("duration must be positive, got %d", q.DurationMinutes)
	}
	if q.EntityType != "" && !q.EntityType.Valid() {
		return apperr.InvalidArgument("entity type must be staff or resource, got %q", q.EntityType)
	}
	if q.EntityID != "" && q.EntityType == "" {
		return apperr.InvalidArgument("entity type is required when an entity id is given")
	}
	return nil
}
