package appointments

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/booking-engine/internal/apperr"
	"github.com/wolfman30/booking-engine/internal/assignment"
	"github.com/wolfman30/booking-engine/internal/availability"
	"github.com/wolfman30/booking-engine/internal/events"
	"github.com/wolfman30/booking-engine/internal/observability"
	"github.com/wolfman30/booking-engine/internal/orgconfig"
	"github.com/wolfman30/booking-engine/internal/reservation"
	"github.com/wolfman30/booking-engine/internal/schedule"
	"github.com/wolfman30/booking-engine/pkg/logging"
)

var tracer = otel.Tracer("booking.internal.appointments")

// Resolver picks the staff member and/or resource for a request.
type Resolver interface {
	Determine(ctx context.Context, req assignment.Request, cfg *orgconfig.BusinessConfiguration) (*assignment.Result, error)
}

// Reservations holds and frees slots. *reservation.Manager satisfies it.
type Reservations interface {
	Reserve(ctx context.Context, orgID string, holds []reservation.Hold) (*reservation.Token, error)
	Commit(ctx context.Context, token *reservation.Token, appointmentID string) error
	Release(ctx context.Context, token *reservation.Token) error
	Discard(ctx context.Context, tokenID string) error
	ReserveFor(ctx context.Context, orgID string, holds []reservation.Hold, appointmentID string) error
	ReleaseFor(ctx context.Context, keys []availability.Key, bookingID string) error
}

// Publisher records lifecycle events. *events.OutboxStore satisfies it.
type Publisher interface {
	Publish(ctx context.Context, orgID string, evt events.CanonicalEvent) error
}

// Service is the appointment orchestrator.
type Service struct {
	repo         Repository
	configs      orgconfig.Provider
	resolver     Resolver
	reservations Reservations
	publisher    Publisher
	sink         observability.Sink
	logger       *logging.Logger
	now          func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithClock sets the time source for every "now" comparison.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithPublisher enables lifecycle events.
func WithPublisher(p Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithSink reports operation outcomes to sink.
func WithSink(sink observability.Sink) Option {
	return func(s *Service) { s.sink = observability.OrNop(sink) }
}

func NewService(repo Repository, configs orgconfig.Provider, resolver Resolver, reservations Reservations, logger *logging.Logger, opts ...Option) *Service {
	if repo == nil {
		panic("appointments: repository cannot be nil")
	}
	if configs == nil {
		panic("appointments: config provider cannot be nil")
	}
	if resolver == nil {
		panic("appointments: resolver cannot be nil")
	}
	if reservations == nil {
		panic("appointments: reservations cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	s := &Service{
		repo:         repo,
		configs:      configs,
		resolver:     resolver,
		reservations: reservations,
		sink:         observability.NopSink{},
		logger:       logger,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateRequest is a booking request. DurationMinutes falls back to the
// service duration.
type CreateRequest struct {
	OrgID               string      `json:"org_id"`
	ClientInfo          ClientInfo  `json:"client_info"`
	ServiceInfo         ServiceInfo `json:"service_info"`
	Datetime            string      `json:"datetime"`
	DurationMinutes     int         `json:"duration,omitempty"`
	PreferredStaffID    string      `json:"preferred_staff_id,omitempty"`
	PreferredResourceID string      `json:"preferred_resource_id,omitempty"`
	RequiredSpecialties []string    `json:"required_specialties,omitempty"`
	Notes               string      `json:"notes,omitempty"`
}

// Create books a new appointment. Slots are held under a reservation token
// before the row is written; if the write fails the token is released and the
// write error returned.
func (s *Service) Create(ctx context.Context, req CreateRequest) (appt *Appointment, err error) {
	ctx, done := s.begin(ctx, "appointments.create", req.OrgID)
	defer func() { done(err) }()

	duration := req.DurationMinutes
	if duration <= 0 {
		duration = req.ServiceInfo.DurationMinutes
	}
	if duration <= 0 {
		return nil, apperr.InvalidArgument("duration must be positive")
	}
	if strings.TrimSpace(req.ClientInfo.Name) == "" {
		return nil, apperr.InvalidArgument("client name is required")
	}
	date, clock, err := SplitDatetime(req.Datetime)
	if err != nil {
		return nil, err
	}

	cfg, err := orgconfig.Load(ctx, s.configs, req.OrgID)
	if err != nil {
		return nil, err
	}
	if err := s.validateTiming(cfg, req.Datetime); err != nil {
		return nil, err
	}

	result, err := s.resolver.Determine(ctx, assignment.Request{
		OrgID:               req.OrgID,
		Date:                date,
		StartTime:           clock,
		DurationMinutes:     duration,
		PreferredStaffID:    req.PreferredStaffID,
		PreferredResourceID: req.PreferredResourceID,
		RequiredSpecialties: req.RequiredSpecialties,
	}, cfg)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	appt = &Appointment{
		ID:                  uuid.NewString(),
		OrgID:               req.OrgID,
		StaffID:             result.StaffID,
		ResourceID:          result.ResourceID,
		ClientInfo:          req.ClientInfo,
		ServiceInfo:         req.ServiceInfo,
		Datetime:            req.Datetime,
		Duration:            duration,
		Status:              initialStatus(cfg),
		AssignmentType:      result.Type,
		ReschedulingHistory: []ReschedulingRecord{},
		Notes:               req.Notes,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if err := appt.Validate(); err != nil {
		return nil, err
	}
	holds, err := appt.Holds()
	if err != nil {
		return nil, err
	}

	token, err := s.reservations.Reserve(ctx, req.OrgID, holds)
	if err != nil {
		return nil, err
	}
	appt.ReservationToken = token.ID

	if err := s.repo.Create(ctx, appt); err != nil {
		if rerr := s.reservations.Release(ctx, token); rerr != nil {
			s.logger.ForOrg(req.OrgID).Error("failed to release reservation after persistence failure",
				"token", token.ID, "error", rerr)
		}
		return nil, fmt.Errorf("appointments: persist: %w", err)
	}

	if err := s.reservations.Commit(ctx, token, appt.ID); err != nil {
		// The row references the token, so the sweeper completes the commit.
		s.logger.ForOrg(req.OrgID).Warn("reservation commit deferred to sweeper",
			"appointment_id", appt.ID, "token", token.ID, "error", err)
	}

	s.publish(ctx, req.OrgID, events.AppointmentCreatedV1{
		AppointmentID:  appt.ID,
		OrgID:          appt.OrgID,
		StaffID:        appt.StaffID,
		ResourceID:     appt.ResourceID,
		AssignmentType: string(appt.AssignmentType),
		Datetime:       appt.Datetime,
		Duration:       appt.Duration,
		Status:         string(appt.Status),
		ClientEmail:    appt.ClientInfo.Email,
		OccurredAt:     now,
	})
	s.logger.ForOrg(req.OrgID).Info("appointment created",
		"appointment_id", appt.ID, "staff_id", appt.StaffID, "resource_id", appt.ResourceID,
		"datetime", appt.Datetime, "status", string(appt.Status))
	return appt, nil
}

// UpdateRequest carries the fields to change. Nil fields are left alone.
type UpdateRequest struct {
	Datetime        *string      `json:"datetime,omitempty"`
	DurationMinutes *int         `json:"duration,omitempty"`
	StaffID         *string      `json:"staff_id,omitempty"`
	ResourceID      *string      `json:"resource_id,omitempty"`
	ClientInfo      *ClientInfo  `json:"client_info,omitempty"`
	ServiceInfo     *ServiceInfo `json:"service_info,omitempty"`
	Notes           *string      `json:"notes,omitempty"`
}

// Update applies req. When the time, duration or assignment changes the
// current slots are released and the new ones booked under the appointment id
// before the row is written.
func (s *Service) Update(ctx context.Context, orgID, id string, req UpdateRequest) (appt *Appointment, err error) {
	ctx, done := s.begin(ctx, "appointments.update", orgID)
	defer func() { done(err) }()

	current, err := s.get(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	if current.Status.Terminal() {
		return nil, apperr.New(apperr.CodeInvalidTransition, "appointment %s is %s", id, current.Status)
	}

	next := current.clone()
	var changed []string
	if req.Datetime != nil && *req.Datetime != next.Datetime {
		next.Datetime = *req.Datetime
		changed = append(changed, "datetime")
	}
	if req.DurationMinutes != nil && *req.DurationMinutes != next.Duration {
		next.Duration = *req.DurationMinutes
		changed = append(changed, "duration")
	}
	if req.StaffID != nil && *req.StaffID != next.StaffID {
		next.StaffID = *req.StaffID
		changed = append(changed, "staff_id")
	}
	if req.ResourceID != nil && *req.ResourceID != next.ResourceID {
		next.ResourceID = *req.ResourceID
		changed = append(changed, "resource_id")
	}
	rebook := len(changed) > 0
	if req.ClientInfo != nil {
		next.ClientInfo = *req.ClientInfo
		changed = append(changed, "client_info")
	}
	if req.ServiceInfo != nil {
		next.ServiceInfo = *req.ServiceInfo
		changed = append(changed, "service_info")
	}
	if req.Notes != nil && *req.Notes != next.Notes {
		next.Notes = *req.Notes
		changed = append(changed, "notes")
	}
	if len(changed) == 0 {
		return current, nil
	}
	next.AssignmentType = assignmentTypeFor(next.StaffID, next.ResourceID)
	next.UpdatedAt = s.now().UTC()
	if err := next.Validate(); err != nil {
		return nil, err
	}

	if rebook {
		if _, err := s.requireTiming(ctx, orgID, next.Datetime); err != nil {
			return nil, err
		}
		if err := s.moveSlots(ctx, current, next); err != nil {
			return nil, err
		}
	}

	if err := s.repo.Update(ctx, next); err != nil {
		if rebook {
			s.restoreSlots(ctx, next, current)
		}
		return nil, fmt.Errorf("appointments: persist update: %w", err)
	}

	s.publish(ctx, orgID, events.AppointmentUpdatedV1{
		AppointmentID: next.ID,
		OrgID:         orgID,
		Changed:       changed,
		Datetime:      next.Datetime,
		OccurredAt:    next.UpdatedAt,
	})
	return next, nil
}

// Cancel releases the appointment's slots and marks it cancelled. A client
// cancelling inside the policy window is charged the policy penalty.
func (s *Service) Cancel(ctx context.Context, orgID, id, cancelledBy, reason string) (appt *Appointment, err error) {
	ctx, done := s.begin(ctx, "appointments.cancel", orgID)
	defer func() { done(err) }()

	if err := validateActor(cancelledBy); err != nil {
		return nil, err
	}
	current, err := s.get(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	if current.Status.Terminal() {
		return nil, apperr.New(apperr.CodeInvalidTransition, "appointment %s is already %s", id, current.Status)
	}
	cfg, err := orgconfig.Load(ctx, s.configs, orgID)
	if err != nil {
		return nil, err
	}
	at, err := ParseDatetime(current.Datetime, cfg.Location())
	if err != nil {
		return nil, err
	}

	if err := s.releaseAll(ctx, current); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	next := current.clone()
	next.Status = StatusCancelled
	next.CancellationInfo = &CancellationInfo{
		CancelledBy:    cancelledBy,
		Reason:         reason,
		CancelledAt:    now,
		PenaltyApplied: Penalty(cfg.CancellationPolicy, cancelledBy, at, now),
	}
	next.UpdatedAt = now
	if err := s.repo.Update(ctx, next); err != nil {
		if holds, herr := current.Holds(); herr == nil {
			if rerr := s.reservations.ReserveFor(ctx, orgID, holds, current.ID); rerr != nil {
				s.logger.ForOrg(orgID).Error("failed to restore slots after cancel persistence failure",
					"appointment_id", id, "error", rerr)
			}
		}
		return nil, fmt.Errorf("appointments: persist cancel: %w", err)
	}

	s.publish(ctx, orgID, events.AppointmentCancelledV1{
		AppointmentID:  id,
		OrgID:          orgID,
		CancelledBy:    cancelledBy,
		Reason:         reason,
		PenaltyApplied: next.CancellationInfo.PenaltyApplied,
		OccurredAt:     now,
	})
	s.logger.ForOrg(orgID).Info("appointment cancelled",
		"appointment_id", id, "cancelled_by", cancelledBy, "penalty", next.CancellationInfo.PenaltyApplied)
	return next, nil
}

// Reschedule moves the appointment to newDatetime keeping its staff and
// resource. The old slots are released, the new ones booked and one
// rescheduling record appended.
func (s *Service) Reschedule(ctx context.Context, orgID, id, newDatetime, rescheduledBy, reason string) (appt *Appointment, err error) {
	ctx, done := s.begin(ctx, "appointments.reschedule", orgID)
	defer func() { done(err) }()

	if err := validateActor(rescheduledBy); err != nil {
		return nil, err
	}
	current, err := s.get(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	if current.Status.Terminal() {
		return nil, apperr.New(apperr.CodeInvalidTransition, "appointment %s is %s", id, current.Status)
	}
	if _, _, err := SplitDatetime(newDatetime); err != nil {
		return nil, err
	}
	if _, err := s.requireTiming(ctx, orgID, newDatetime); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	next := current.clone()
	next.Datetime = newDatetime
	next.Status = StatusRescheduled
	next.ReschedulingHistory = append(next.ReschedulingHistory, ReschedulingRecord{
		PreviousDatetime: current.Datetime,
		NewDatetime:      newDatetime,
		RescheduledBy:    rescheduledBy,
		Reason:           reason,
		RescheduledAt:    now,
	})
	next.UpdatedAt = now

	if err := s.moveSlots(ctx, current, next); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, next); err != nil {
		s.restoreSlots(ctx, next, current)
		return nil, fmt.Errorf("appointments: persist reschedule: %w", err)
	}

	s.publish(ctx, orgID, events.AppointmentRescheduledV1{
		AppointmentID:    id,
		OrgID:            orgID,
		PreviousDatetime: current.Datetime,
		NewDatetime:      newDatetime,
		RescheduledBy:    rescheduledBy,
		OccurredAt:       now,
	})
	return next, nil
}

// Confirm moves a pending or rescheduled appointment to confirmed.
func (s *Service) Confirm(ctx context.Context, orgID, id string) (*Appointment, error) {
	return s.transition(ctx, "appointments.confirm", orgID, id, StatusConfirmed, StatusPending, StatusRescheduled)
}

// Complete marks a confirmed appointment completed.
func (s *Service) Complete(ctx context.Context, orgID, id string) (*Appointment, error) {
	return s.transition(ctx, "appointments.complete", orgID, id, StatusCompleted, StatusConfirmed, StatusRescheduled)
}

// MarkNoShow records that the client did not arrive.
func (s *Service) MarkNoShow(ctx context.Context, orgID, id string) (*Appointment, error) {
	return s.transition(ctx, "appointments.no_show", orgID, id, StatusNoShow, StatusConfirmed, StatusRescheduled)
}

// Get returns one appointment.
func (s *Service) Get(ctx context.Context, orgID, id string) (*Appointment, error) {
	return s.get(ctx, orgID, id)
}

// ListByDateRange returns the org's appointments dated in [startDate,
// endDate], scoped to a staff member or resource when one is given.
func (s *Service) ListByDateRange(ctx context.Context, q RangeQuery) ([]*Appointment, error) {
	if strings.TrimSpace(q.OrgID) == "" {
		return nil, apperr.InvalidArgument("org id is required")
	}
	days, err := schedule.DaysBetween(q.StartDate, q.EndDate)
	if err != nil {
		return nil, apperr.InvalidArgument("%v", err)
	}
	if days < 0 {
		return nil, apperr.InvalidArgument("end date %s is before start date %s", q.EndDate, q.StartDate)
	}
	return s.repo.ListByDateRange(ctx, q)
}

// ReservationOwner reports the appointment persisted with token when it still
// claims the token's slots: it is not cancelled and its current holds are the
// token's holds. Anything else leaves the token for release.
func (s *Service) ReservationOwner(ctx context.Context, token *reservation.Token) (string, bool, error) {
	id, found, err := s.repo.FindIDByReservationToken(ctx, token.OrgID, token.ID)
	if err != nil || !found {
		return "", false, err
	}
	appt, err := s.repo.Get(ctx, token.OrgID, id)
	if errors.Is(err, ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	if appt.Status == StatusCancelled {
		return "", false, nil
	}
	holds, err := appt.Holds()
	if err != nil || !slices.Equal(holds, token.Holds) {
		return "", false, nil
	}
	return id, true, nil
}

// IsBookingLive reports whether bookingID still justifies a booked slot.
// Pending reservation tokens are live; cancelled and unknown appointments are
// not.
func (s *Service) IsBookingLive(ctx context.Context, orgID, bookingID string) (bool, error) {
	if reservation.IsToken(bookingID) {
		return true, nil
	}
	appt, err := s.repo.Get(ctx, orgID, bookingID)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return appt.Status != StatusCancelled, nil
}

func (s *Service) transition(ctx context.Context, op, orgID, id string, to Status, from ...Status) (appt *Appointment, err error) {
	ctx, done := s.begin(ctx, op, orgID)
	defer func() { done(err) }()

	current, err := s.get(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	allowed := false
	for _, f := range from {
		if current.Status == f {
			allowed = true
			break
		}
	}
	if !allowed {
		return nil, apperr.New(apperr.CodeInvalidTransition, "cannot move appointment %s from %s to %s", id, current.Status, to)
	}

	next := current.clone()
	next.Status = to
	next.UpdatedAt = s.now().UTC()
	if err := s.repo.Update(ctx, next); err != nil {
		return nil, fmt.Errorf("appointments: persist status: %w", err)
	}
	s.publish(ctx, orgID, events.AppointmentStatusChangedV1{
		AppointmentID: id,
		OrgID:         orgID,
		From:          string(current.Status),
		To:            string(to),
		OccurredAt:    next.UpdatedAt,
	})
	return next, nil
}

func (s *Service) get(ctx context.Context, orgID, id string) (*Appointment, error) {
	appt, err := s.repo.Get(ctx, orgID, id)
	if errors.Is(err, ErrNotFound) {
		return nil, apperr.NotFound("appointment", id)
	}
	if err != nil {
		return nil, err
	}
	return appt, nil
}

func (s *Service) requireTiming(ctx context.Context, orgID, datetime string) (*orgconfig.BusinessConfiguration, error) {
	cfg, err := orgconfig.Load(ctx, s.configs, orgID)
	if err != nil {
		return nil, err
	}
	return cfg, s.validateTiming(cfg, datetime)
}

func (s *Service) validateTiming(cfg *orgconfig.BusinessConfiguration, datetime string) error {
	at, err := ParseDatetime(datetime, cfg.Location())
	if err != nil {
		return err
	}
	return checkTiming(cfg, at, s.now())
}

// releaseAll frees the slots booked under the appointment id and any a
// reservation token still holds because its commit never completed.
func (s *Service) releaseAll(ctx context.Context, appt *Appointment) error {
	if err := s.reservations.Discard(ctx, appt.ReservationToken); err != nil {
		return err
	}
	return s.reservations.ReleaseFor(ctx, appt.Keys(), appt.ID)
}

// moveSlots releases from's slots and books to's under the appointment id.
// If booking fails the old slots are booked again before returning the error.
func (s *Service) moveSlots(ctx context.Context, from, to *Appointment) error {
	holds, err := to.Holds()
	if err != nil {
		return err
	}
	if err := s.releaseAll(ctx, from); err != nil {
		return err
	}
	if err := s.reservations.ReserveFor(ctx, to.OrgID, holds, to.ID); err != nil {
		s.restoreHolds(ctx, from)
		return err
	}
	return nil
}

// restoreSlots undoes a moveSlots after a persistence failure.
func (s *Service) restoreSlots(ctx context.Context, moved, original *Appointment) {
	if err := s.reservations.ReleaseFor(ctx, moved.Keys(), moved.ID); err != nil {
		s.logger.ForOrg(moved.OrgID).Error("failed to release new slots after persistence failure",
			"appointment_id", moved.ID, "error", err)
	}
	s.restoreHolds(ctx, original)
}

func (s *Service) restoreHolds(ctx context.Context, original *Appointment) {
	holds, err := original.Holds()
	if err == nil {
		err = s.reservations.ReserveFor(ctx, original.OrgID, holds, original.ID)
	}
	if err != nil {
		s.logger.ForOrg(original.OrgID).Error("failed to restore original slots",
			"appointment_id", original.ID, "error", err)
	}
}

func (s *Service) publish(ctx context.Context, orgID string, evt events.CanonicalEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, orgID, evt); err != nil {
		s.logger.ForOrg(orgID).Warn("failed to record appointment event", "type", evt.EventType(), "error", err)
	}
}

// begin opens a span and returns a func that closes it and reports the
// outcome to the sink.
func (s *Service) begin(ctx context.Context, op, orgID string) (context.Context, func(error)) {
	start := s.now()
	ctx, span := tracer.Start(ctx, op, trace.WithAttributes(attribute.String("booking.org_id", orgID)))
	return ctx, func(err error) {
		evt := observability.Event{Name: op, OrgID: orgID, Outcome: observability.OutcomeSuccess, Duration: s.now().Sub(start)}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, apperr.MessageOf(err))
			evt.Outcome = observability.OutcomeError
			evt.Code = string(apperr.CodeOf(err))
		}
		span.End()
		s.sink.Record(evt)
	}
}

func initialStatus(cfg *orgconfig.BusinessConfiguration) Status {
	if cfg.Notifications.RequireConfirmation {
		return StatusPending
	}
	return StatusConfirmed
}

func validateActor(actor string) error {
	switch actor {
	case ActorClient, ActorStaff, ActorSystem:
		return nil
	}
	return apperr.InvalidArgument("actor must be client, staff or system, got %q", actor)
}
