package events

import "time"

// AppointmentCreatedV1 is emitted once an appointment is persisted with its
// slots held.
type AppointmentCreatedV1 struct {
	AppointmentID  string    `json:"appointment_id"`
	OrgID          string    `json:"org_id"`
	StaffID        string    `json:"staff_id,omitempty"`
	ResourceID     string    `json:"resource_id,omitempty"`
	AssignmentType string    `json:"assignment_type"`
	Datetime       string    `json:"datetime"`
	Duration       int       `json:"duration"`
	Status         string    `json:"status"`
	ClientEmail    string    `json:"client_email,omitempty"`
	OccurredAt     time.Time `json:"occurred_at"`
}

func (e AppointmentCreatedV1) Subject() string { return e.AppointmentID }

func (AppointmentCreatedV1) EventType() string {
	return "appointments.created.v1"
}

// AppointmentUpdatedV1 lists the fields an update changed.
type AppointmentUpdatedV1 struct {
	AppointmentID string    `json:"appointment_id"`
	OrgID         string    `json:"org_id"`
	Changed       []string  `json:"changed"`
	Datetime      string    `json:"datetime"`
	OccurredAt    time.Time `json:"occurred_at"`
}

func (e AppointmentUpdatedV1) Subject() string { return e.AppointmentID }

func (AppointmentUpdatedV1) EventType() string {
	return "appointments.updated.v1"
}

type AppointmentCancelledV1 struct {
	AppointmentID  string    `json:"appointment_id"`
	OrgID          string    `json:"org_id"`
	CancelledBy    string    `json:"cancelled_by"`
	Reason         string    `json:"reason,omitempty"`
	PenaltyApplied float64   `json:"penalty_applied"`
	OccurredAt     time.Time `json:"occurred_at"`
}

func (e AppointmentCancelledV1) Subject() string { return e.AppointmentID }

func (AppointmentCancelledV1) EventType() string {
	return "appointments.cancelled.v1"
}

type AppointmentRescheduledV1 struct {
	AppointmentID    string    `json:"appointment_id"`
	OrgID            string    `json:"org_id"`
	PreviousDatetime string    `json:"previous_datetime"`
	NewDatetime      string    `json:"new_datetime"`
	RescheduledBy    string    `json:"rescheduled_by"`
	OccurredAt       time.Time `json:"occurred_at"`
}

func (e AppointmentRescheduledV1) Subject() string { return e.AppointmentID }

func (AppointmentRescheduledV1) EventType() string {
	return "appointments.rescheduled.v1"
}

// AppointmentStatusChangedV1 covers confirm, complete and no-show.
type AppointmentStatusChangedV1 struct {
	AppointmentID string    `json:"appointment_id"`
	OrgID         string    `json:"org_id"`
	From          string    `json:"from"`
	To            string    `json:"to"`
	OccurredAt    time.Time `json:"occurred_at"`
}

func (e AppointmentStatusChangedV1) Subject() string { return e.AppointmentID }

func (AppointmentStatusChangedV1) EventType() string {
	return "appointments.status_changed.v1"
}
