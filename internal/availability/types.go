package availability

import (
	"fmt"
	"strings"

	"github.com/wolfman30/booking-engine/internal/apperr"
	"github.com/wolfman30/booking-engine/internal/schedule"
)

// EntityType identifies what kind of thing owns an availability record.
type EntityType string

const (
	EntityStaff    EntityType = "staff"
	EntityResource EntityType = "resource"
)

// Valid reports whether t is staff or resource.
func (t EntityType) Valid() bool {
	return t == EntityStaff || t == EntityResource
}

// ParseEntityType normalises s into an EntityType.
func ParseEntityType(s string) (EntityType, error) {
	t := EntityType(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", apperr.InvalidArgument("entity type must be staff or resource, got %q", s)
	}
	return t, nil
}

// Key addresses exactly one availability record.
type Key struct {
	OrgID      string     `json:"org_id"`
	EntityType EntityType `json:"entity_type"`
	EntityID   string     `json:"entity_id"`
	Date       string     `json:"date"`
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%s/%s/%s", k.OrgID, k.EntityType, k.EntityID, k.Date)
}

// Validate checks that every part of the key is present and well formed.
func (k Key) Validate() error {
	if strings.TrimSpace(k.OrgID) == "" {
		return apperr.InvalidArgument("org id is required")
	}
	if !k.EntityType.Valid() {
		return apperr.InvalidArgument("entity type must be staff or resource, got %q", k.EntityType)
	}
	if strings.TrimSpace(k.EntityID) == "" {
		return apperr.InvalidArgument("entity id is required")
	}
	if _, err := schedule.ParseDate(k.Date); err != nil {
		return apperr.InvalidArgument("date %q must be YYYY-MM-DD", k.Date)
	}
	return nil
}

// Availability is the slot grid of one entity on one date. It is the unit of
// atomic update: every slot mutation rewrites the whole record conditionally on
// Version.
type Availability struct {
	OrgID      string          `json:"org_id"`
	EntityType EntityType      `json:"entity_type"`
	EntityID   string          `json:"entity_id"`
	Date       string          `json:"date"`
	TimeSlots  []schedule.Slot `json:"time_slots"`
	IsActive   bool            `json:"is_active"`
	Override   bool            `json:"override"`
	Version    int64           `json:"version"`
	CreatedAt  string          `json:"created_at,omitempty"`
	UpdatedAt  string          `json:"updated_at,omitempty"`
}

// Key returns the record's address.
func (a *Availability) Key() Key {
	return Key{OrgID: a.OrgID, EntityType: a.EntityType, EntityID: a.EntityID, Date: a.Date}
}

// Clone returns a deep copy safe to mutate.
func (a *Availability) Clone() *Availability {
	if a == nil {
		return nil
	}
	out := *a
	out.TimeSlots = append([]schedule.Slot(nil), a.TimeSlots...)
	return &out
}

// BookedAppointmentIDs lists the distinct appointment ids holding slots, in
// slot order.
func (a *Availability) BookedAppointmentIDs() []string {
	seen := make(map[string]bool)
	var ids []string
	for _, s := range a.TimeSlots {
		if s.ReasonUnavailable != schedule.ReasonBooked || s.BookedAppointmentID == "" {
			continue
		}
		if !seen[s.BookedAppointmentID] {
			seen[s.BookedAppointmentID] = true
			ids = append(ids, s.BookedAppointmentID)
		}
	}
	return ids
}

// ValidateSlots enforces the slot grid invariants: each slot has start before
// end, slots are ordered and non-overlapping, and the availability markers are
// consistent.
func ValidateSlots(slots []schedule.Slot) error {
	prevEnd := -1
	for i, s := range slots {
		start, end, err := s.Span()
		if err != nil {
			return apperr.InvalidArgument("slot %d: %v", i, err)
		}
		if start >= end {
			return apperr.InvalidArgument("slot %d: start %s must be before end %s", i, s.StartTime, s.EndTime)
		}
		if start < prevEnd {
			return apperr.InvalidArgument("slot %d: %s overlaps the previous slot", i, s.StartTime)
		}
		prevEnd = end

		if s.IsAvailable {
			if s.BookedAppointmentID != "" || s.ReasonUnavailable != "" {
				return apperr.InvalidArgument("slot %s: available slot carries unavailability markers", s.StartTime)
			}
			continue
		}
		if !s.ReasonUnavailable.Valid() {
			return apperr.InvalidArgument("slot %s: unknown reason %q", s.StartTime, s.ReasonUnavailable)
		}
		if s.ReasonUnavailable == schedule.ReasonBooked && s.BookedAppointmentID == "" {
			return apperr.InvalidArgument("slot %s: booked slot has no appointment id", s.StartTime)
		}
	}
	return nil
}

// String renders a short summary for logs.
func (a *Availability) String() string {
	free := 0
	for _, s := range a.TimeSlots {
		if s.IsAvailable {
			free++
		}
	}
	return fmt.Sprintf("%s v%d (%d/%d free)", a.Key(), a.Version, free, len(a.TimeSlots))
}
