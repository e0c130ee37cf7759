// Package appointments is the booking use case: it checks timing policy,
// resolves an assignment, holds slots and persists the appointment, and it
// owns the appointment status machine.
package appointments

import (
	"time"

	"github.com/wolfman30/booking-engine/internal/apperr"
	"github.com/wolfman30/booking-engine/internal/assignment"
	"github.com/wolfman30/booking-engine/internal/availability"
	"github.com/wolfman30/booking-engine/internal/reservation"
)

// Status is where an appointment is in its lifecycle.
type Status string

const (
	StatusPending     Status = "pending"
	StatusConfirmed   Status = "confirmed"
	StatusCancelled   Status = "cancelled"
	StatusCompleted   Status = "completed"
	StatusNoShow      Status = "no_show"
	StatusRescheduled Status = "rescheduled"
)

// Terminal reports whether no further transition is allowed.
func (s Status) Terminal() bool {
	return s == StatusCancelled || s == StatusCompleted || s == StatusNoShow
}

// Who may cancel or reschedule.
const (
	ActorClient = "client"
	ActorStaff  = "staff"
	ActorSystem = "system"
)

type ClientInfo struct {
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

type ServiceInfo struct {
	Name            string  `json:"name"`
	DurationMinutes int     `json:"duration"`
	Price           float64 `json:"price,omitempty"`
}

type CancellationInfo struct {
	CancelledBy    string    `json:"cancelled_by"`
	Reason         string    `json:"reason,omitempty"`
	CancelledAt    time.Time `json:"cancelled_at"`
	PenaltyApplied float64   `json:"penalty_applied"`
}

type ReschedulingRecord struct {
	PreviousDatetime string    `json:"previous_datetime"`
	NewDatetime      string    `json:"new_datetime"`
	RescheduledBy    string    `json:"rescheduled_by"`
	Reason           string    `json:"reason,omitempty"`
	RescheduledAt    time.Time `json:"rescheduled_at"`
}

// Appointment is a booked service. Datetime keeps the caller's string; its
// date and HH:MM parts address the availability records.
type Appointment struct {
	ID                  string               `json:"id"`
	OrgID               string               `json:"org_id"`
	StaffID             string               `json:"staff_id,omitempty"`
	ResourceID          string               `json:"resource_id,omitempty"`
	ClientInfo          ClientInfo           `json:"client_info"`
	ServiceInfo         ServiceInfo          `json:"service_info"`
	Datetime            string               `json:"datetime"`
	Duration            int                  `json:"duration"`
	Status              Status               `json:"status"`
	AssignmentType      assignment.Type      `json:"assignment_type"`
	ReservationToken    string               `json:"reservation_token,omitempty"`
	CancellationInfo    *CancellationInfo    `json:"cancellation_info,omitempty"`
	ReschedulingHistory []ReschedulingRecord `json:"rescheduling_history"`
	Notes               string               `json:"notes,omitempty"`
	CreatedAt           time.Time            `json:"created_at"`
	UpdatedAt           time.Time            `json:"updated_at"`
}

// Date returns the YYYY-MM-DD part of Datetime.
func (a *Appointment) Date() string {
	date, _, _ := SplitDatetime(a.Datetime)
	return date
}

// Keys returns the availability records the appointment holds slots on.
func (a *Appointment) Keys() []availability.Key {
	date := a.Date()
	var keys []availability.Key
	if a.StaffID != "" {
		keys = append(keys, availability.Key{OrgID: a.OrgID, EntityType: availability.EntityStaff, EntityID: a.StaffID, Date: date})
	}
	if a.ResourceID != "" {
		keys = append(keys, availability.Key{OrgID: a.OrgID, EntityType: availability.EntityResource, EntityID: a.ResourceID, Date: date})
	}
	return keys
}

// Holds returns the slot holds needed for the appointment's current datetime
// and assignment.
func (a *Appointment) Holds() ([]reservation.Hold, error) {
	date, clock, err := SplitDatetime(a.Datetime)
	if err != nil {
		return nil, err
	}
	holds := make([]reservation.Hold, 0, 2)
	if a.StaffID != "" {
		holds = append(holds, reservation.Hold{
			Key:             availability.Key{OrgID: a.OrgID, EntityType: availability.EntityStaff, EntityID: a.StaffID, Date: date},
			StartTime:       clock,
			DurationMinutes: a.Duration,
		})
	}
	if a.ResourceID != "" {
		holds = append(holds, reservation.Hold{
			Key:             availability.Key{OrgID: a.OrgID, EntityType: availability.EntityResource, EntityID: a.ResourceID, Date: date},
			StartTime:       clock,
			DurationMinutes: a.Duration,
		})
	}
	return holds, nil
}

// Validate checks the assignment invariant: at least one entity is set and
// the assignment type agrees with which.
func (a *Appointment) Validate() error {
	if a.StaffID == "" && a.ResourceID == "" {
		return apperr.InvalidArgument("appointment needs a staff member or a resource")
	}
	if want := assignmentTypeFor(a.StaffID, a.ResourceID); a.AssignmentType != want {
		return apperr.InvalidArgument("assignment type %q does not match the assigned entities, want %q", a.AssignmentType, want)
	}
	if a.Duration <= 0 {
		return apperr.InvalidArgument("duration must be positive, got %d", a.Duration)
	}
	if _, _, err := SplitDatetime(a.Datetime); err != nil {
		return err
	}
	return nil
}

func (a *Appointment) clone() *Appointment {
	cp := *a
	if a.CancellationInfo != nil {
		info := *a.CancellationInfo
		cp.CancellationInfo = &info
	}
	cp.ReschedulingHistory = append([]ReschedulingRecord(nil), a.ReschedulingHistory...)
	return &cp
}

func assignmentTypeFor(staffID, resourceID string) assignment.Type {
	switch {
	case staffID != "" && resourceID != "":
		return assignment.TypeStaffAndResource
	case resourceID != "":
		return assignment.TypeResourceOnly
	default:
		return assignment.TypeStaffOnly
	}
}
