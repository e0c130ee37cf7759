package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/wolfman30/booking-engine/internal/appointments"
	"github.com/wolfman30/booking-engine/pkg/logging"
)

// AppointmentService is the booking surface the handler drives.
type AppointmentService interface {
	Create(ctx context.Context, req appointments.CreateRequest) (*appointments.Appointment, error)
	Get(ctx context.Context, orgID, id string) (*appointments.Appointment, error)
	Update(ctx context.Context, orgID, id string, req appointments.UpdateRequest) (*appointments.Appointment, error)
	Cancel(ctx context.Context, orgID, id, cancelledBy, reason string) (*appointments.Appointment, error)
	Reschedule(ctx context.Context, orgID, id, newDatetime, rescheduledBy, reason string) (*appointments.Appointment, error)
	Confirm(ctx context.Context, orgID, id string) (*appointments.Appointment, error)
	Complete(ctx context.Context, orgID, id string) (*appointments.Appointment, error)
	MarkNoShow(ctx context.Context, orgID, id string) (*appointments.Appointment, error)
	ListByDateRange(ctx context.Context, q appointments.RangeQuery) ([]*appointments.Appointment, error)
}

// AppointmentHandler exposes the appointment lifecycle over HTTP. Every route
// is tenant scoped by the X-Org-Id header.
type AppointmentHandler struct {
	svc    AppointmentService
	logger *logging.Logger
}

func NewAppointmentHandler(svc AppointmentService, logger *logging.Logger) *AppointmentHandler {
	if svc == nil {
		panic("handlers: appointment service cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &AppointmentHandler{svc: svc, logger: logger}
}

// Create books an appointment.
// Route: POST /api/appointments
func (h *AppointmentHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req appointments.CreateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.OrgID = orgIDFromRequest(r)
	appt, err := h.svc.Create(r.Context(), req)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, appt)
}

// List returns appointments in a date range.
// Route: GET /api/appointments?start_date=&end_date=&staff_id=&resource_id=
func (h *AppointmentHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := appointments.RangeQuery{
		OrgID:      orgIDFromRequest(r),
		StartDate:  q.Get("start_date"),
		EndDate:    q.Get("end_date"),
		StaffID:    q.Get("staff_id"),
		ResourceID: q.Get("resource_id"),
	}
	if query.EndDate == "" {
		query.EndDate = query.StartDate
	}
	list, err := h.svc.ListByDateRange(r.Context(), query)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if list == nil {
		list = []*appointments.Appointment{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"appointments": list})
}

// Get returns one appointment.
// Route: GET /api/appointments/{appointmentID}
func (h *AppointmentHandler) Get(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, func(ctx context.Context, orgID, id string) (*appointments.Appointment, error) {
		return h.svc.Get(ctx, orgID, id)
	})
}

// Patch applies a partial update.
// Route: PATCH /api/appointments/{appointmentID}
func (h *AppointmentHandler) Patch(w http.ResponseWriter, r *http.Request) {
	var req appointments.UpdateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	h.respond(w, r, func(ctx context.Context, orgID, id string) (*appointments.Appointment, error) {
		return h.svc.Update(ctx, orgID, id, req)
	})
}

type cancelRequest struct {
	CancelledBy string `json:"cancelled_by"`
	Reason      string `json:"reason,omitempty"`
}

// Cancel cancels an appointment and frees its slots.
// Route: POST /api/appointments/{appointmentID}/cancel
func (h *AppointmentHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	var req cancelRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	h.respond(w, r, func(ctx context.Context, orgID, id string) (*appointments.Appointment, error) {
		return h.svc.Cancel(ctx, orgID, id, req.CancelledBy, req.Reason)
	})
}

type rescheduleRequest struct {
	Datetime      string `json:"datetime"`
	RescheduledBy string `json:"rescheduled_by"`
	Reason        string `json:"reason,omitempty"`
}

// Reschedule moves an appointment, keeping its assignment.
// Route: POST /api/appointments/{appointmentID}/reschedule
func (h *AppointmentHandler) Reschedule(w http.ResponseWriter, r *http.Request) {
	var req rescheduleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	h.respond(w, r, func(ctx context.Context, orgID, id string) (*appointments.Appointment, error) {
		return h.svc.Reschedule(ctx, orgID, id, req.Datetime, req.RescheduledBy, req.Reason)
	})
}

// Route: POST /api/appointments/{appointmentID}/confirm
func (h *AppointmentHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, h.svc.Confirm)
}

// Route: POST /api/appointments/{appointmentID}/complete
func (h *AppointmentHandler) Complete(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, h.svc.Complete)
}

// Route: POST /api/appointments/{appointmentID}/no-show
func (h *AppointmentHandler) NoShow(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, h.svc.MarkNoShow)
}

func (h *AppointmentHandler) respond(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, orgID, id string) (*appointments.Appointment, error)) {
	appt, err := fn(r.Context(), orgIDFromRequest(r), chi.URLParam(r, "appointmentID"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, appt)
}
