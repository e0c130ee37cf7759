// Package generation materialises availability records from staff and
// resource weekly schedules.
package generation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wolfman30/booking-engine/internal/apperr"
	"github.com/wolfman30/booking-engine/internal/availability"
	"github.com/wolfman30/booking-engine/internal/directory"
	"github.com/wolfman30/booking-engine/internal/observability"
	"github.com/wolfman30/booking-engine/internal/orgconfig"
	"github.com/wolfman30/booking-engine/internal/schedule"
	"github.com/wolfman30/booking-engine/pkg/logging"
)

const (
	// MaxRangeDays caps one generation call.
	MaxRangeDays = 366
	// DefaultSlotMinutes applies when neither the request nor the org config
	// names a slot size.
	DefaultSlotMinutes = 30
)

// LivenessChecker reports whether the booking id found on a slot still
// belongs to something that needs the slot.
type LivenessChecker interface {
	IsBookingLive(ctx context.Context, orgID, bookingID string) (bool, error)
}

// Entities is the directory surface the generator reads.
type Entities interface {
	directory.StaffProvider
	directory.ResourceProvider
}

// Options controls one generation run.
type Options struct {
	StartDate    string `json:"start_date"`
	EndDate      string `json:"end_date"`
	SlotDuration int    `json:"slot_duration,omitempty"`
	Override     bool   `json:"override,omitempty"`
	// Force lets an override proceed even when live bookings cannot be
	// carried onto the regenerated slots. Dropped bookings are reported.
	Force bool `json:"force,omitempty"`
}

// Failure records one date that could not be generated.
type Failure struct {
	Date    string      `json:"date"`
	Code    apperr.Code `json:"code"`
	Message string      `json:"message"`
}

// DroppedBooking is a live booking a forced override could not carry over.
type DroppedBooking struct {
	Date      string `json:"date"`
	BookingID string `json:"booking_id"`
}

// Report summarises a GenerateForEntity call.
type Report struct {
	OrgID           string                  `json:"org_id"`
	EntityType      availability.EntityType `json:"entity_type"`
	EntityID        string                  `json:"entity_id"`
	Created         []string                `json:"created"`
	Overwritten     []string                `json:"overwritten"`
	Skipped         []string                `json:"skipped"`
	Failures        []Failure               `json:"failures,omitempty"`
	DroppedBookings []DroppedBooking        `json:"dropped_bookings,omitempty"`
}

// EntityError records an entity whose generation could not start.
type EntityError struct {
	EntityType availability.EntityType `json:"entity_type"`
	EntityID   string                  `json:"entity_id"`
	Code       apperr.Code             `json:"code"`
	Message    string                  `json:"message"`
}

// OrgReport aggregates every entity of an organization.
type OrgReport struct {
	OrgID   string        `json:"org_id"`
	Reports []*Report     `json:"reports"`
	Errors  []EntityError `json:"errors,omitempty"`
}

// FailureCount totals per-date and per-entity failures.
func (r *OrgReport) FailureCount() int {
	n := len(r.Errors)
	for _, rep := range r.Reports {
		n += len(rep.Failures)
	}
	return n
}

// Generator drives the schedule model across date ranges.
type Generator struct {
	availability *availability.Service
	entities     Entities
	configs      orgconfig.Provider
	liveness     LivenessChecker
	sink         observability.Sink
	logger       *logging.Logger
	defaultSlot  int
}

// Option configures a Generator.
type Option func(*Generator)

// WithLivenessChecker enables booking reconciliation on override. Without one
// every booked slot is treated as live.
func WithLivenessChecker(c LivenessChecker) Option {
	return func(g *Generator) { g.liveness = c }
}

// WithSink reports each run to s.
func WithSink(s observability.Sink) Option {
	return func(g *Generator) { g.sink = observability.OrNop(s) }
}

// WithDefaultSlotMinutes overrides DefaultSlotMinutes.
func WithDefaultSlotMinutes(n int) Option {
	return func(g *Generator) {
		if n > 0 {
			g.defaultSlot = n
		}
	}
}

func New(avail *availability.Service, entities Entities, configs orgconfig.Provider, logger *logging.Logger, opts ...Option) *Generator {
	if avail == nil {
		panic("generation: availability service cannot be nil")
	}
	if entities == nil {
		panic("generation: entity directory cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	g := &Generator{
		availability: avail,
		entities:     entities,
		configs:      configs,
		sink:         observability.NopSink{},
		logger:       logger,
		defaultSlot:  DefaultSlotMinutes,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// GenerateForEntity writes availability for one staff member or resource over
// [StartDate, EndDate]. Existing days are left untouched unless Override is
// set. Per-date failures are collected in the report; the returned error is
// reserved for problems that stop the whole run.
func (g *Generator) GenerateForEntity(ctx context.Context, orgID string, entityType availability.EntityType, entityID string, opts Options) (rep *Report, err error) {
	started := time.Now()
	defer func() {
		g.record("availability.generate", orgID, started, err)
	}()

	if err := validateRange(opts); err != nil {
		return nil, err
	}
	weekly, err := g.loadSchedule(ctx, orgID, entityType, entityID)
	if err != nil {
		return nil, err
	}
	slotMinutes, err := g.slotMinutes(ctx, orgID, opts.SlotDuration)
	if err != nil {
		return nil, err
	}

	log := g.logger.ForOrg(orgID).With("entity_type", string(entityType), "entity_id", entityID)
	rep = &Report{OrgID: orgID, EntityType: entityType, EntityID: entityID}

	err = schedule.EachDate(opts.StartDate, opts.EndDate, func(date string, weekday time.Weekday) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		day := weekly.ForWeekday(weekday)
		if !day.IsAvailable {
			rep.Skipped = append(rep.Skipped, date)
			return nil
		}
		slots, err := schedule.GenerateSlots(day, slotMinutes)
		if err != nil {
			rep.fail(date, err)
			return nil
		}
		key := availability.Key{OrgID: orgID, EntityType: entityType, EntityID: entityID, Date: date}
		if err := g.generateDate(ctx, key, slots, opts, rep); err != nil {
			log.Warn("availability generation failed for date", "date", date, "error", err)
			rep.fail(date, err)
		}
		return nil
	})
	if err != nil {
		return rep, fmt.Errorf("generation: %w", err)
	}

	log.Info("availability generated",
		"created", len(rep.Created),
		"overwritten", len(rep.Overwritten),
		"skipped", len(rep.Skipped),
		"failures", len(rep.Failures),
	)
	return rep, nil
}

// GenerateForOrganization runs GenerateForEntity for every active staff member
// and resource. One entity failing never stops the others.
func (g *Generator) GenerateForOrganization(ctx context.Context, orgID string, opts Options) (*OrgReport, error) {
	staff, err := g.entities.ListStaff(ctx, orgID, true)
	if err != nil {
		return nil, fmt.Errorf("generation: list staff: %w", err)
	}
	resources, err := g.entities.ListResources(ctx, orgID, true)
	if err != nil {
		return nil, fmt.Errorf("generation: list resources: %w", err)
	}

	out := &OrgReport{OrgID: orgID}
	run := func(entityType availability.EntityType, entityID string) {
		rep, err := g.GenerateForEntity(ctx, orgID, entityType, entityID, opts)
		if rep != nil {
			out.Reports = append(out.Reports, rep)
		}
		if err != nil {
			out.Errors = append(out.Errors, EntityError{
				EntityType: entityType,
				EntityID:   entityID,
				Code:       apperr.CodeOf(err),
				Message:    apperr.MessageOf(err),
			})
			g.logger.ForOrg(orgID).Error("entity generation failed", "entity_type", string(entityType), "entity_id", entityID, "error", err)
		}
	}
	for _, s := range staff {
		run(availability.EntityStaff, s.ID)
	}
	for _, r := range resources {
		run(availability.EntityResource, r.ID)
	}
	return out, nil
}

func (g *Generator) generateDate(ctx context.Context, key availability.Key, slots []schedule.Slot, opts Options, rep *Report) error {
	_, err := g.availability.Get(ctx, key)
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		rec := &availability.Availability{
			OrgID:      key.OrgID,
			EntityType: key.EntityType,
			EntityID:   key.EntityID,
			Date:       key.Date,
			TimeSlots:  slots,
			IsActive:   true,
		}
		err := g.availability.Create(ctx, rec)
		if errors.Is(err, availability.ErrAlreadyExists) {
			// Someone else generated this date between our read and write.
			rep.Skipped = append(rep.Skipped, key.Date)
			return nil
		}
		if err != nil {
			return err
		}
		rep.Created = append(rep.Created, key.Date)
		return nil
	case err != nil:
		return err
	case !opts.Override:
		rep.Skipped = append(rep.Skipped, key.Date)
		return nil
	}

	dropped, err := g.overwrite(ctx, key, slots, opts.Force)
	if err != nil {
		return err
	}
	rep.Overwritten = append(rep.Overwritten, key.Date)
	for _, id := range dropped {
		rep.DroppedBookings = append(rep.DroppedBookings, DroppedBooking{Date: key.Date, BookingID: id})
	}
	return nil
}

func (g *Generator) loadSchedule(ctx context.Context, orgID string, entityType availability.EntityType, entityID string) (schedule.WeeklySchedule, error) {
	switch entityType {
	case availability.EntityStaff:
		s, err := g.entities.GetStaff(ctx, orgID, entityID)
		if errors.Is(err, directory.ErrNotFound) {
			return schedule.WeeklySchedule{}, apperr.Wrap(apperr.CodeInactiveEntity, err, "staff %s does not exist", entityID)
		}
		if err != nil {
			return schedule.WeeklySchedule{}, err
		}
		if !s.IsActive {
			return schedule.WeeklySchedule{}, apperr.New(apperr.CodeInactiveEntity, "staff %s is inactive", entityID)
		}
		return s.Schedule, nil
	case availability.EntityResource:
		r, err := g.entities.GetResource(ctx, orgID, entityID)
		if errors.Is(err, directory.ErrNotFound) {
			return schedule.WeeklySchedule{}, apperr.Wrap(apperr.CodeInactiveEntity, err, "resource %s does not exist", entityID)
		}
		if err != nil {
			return schedule.WeeklySchedule{}, err
		}
		if !r.IsActive {
			return schedule.WeeklySchedule{}, apperr.New(apperr.CodeInactiveEntity, "resource %s is inactive", entityID)
		}
		return r.Schedule, nil
	default:
		return schedule.WeeklySchedule{}, apperr.InvalidArgument("entity type must be staff or resource, got %q", entityType)
	}
}

func (g *Generator) slotMinutes(ctx context.Context, orgID string, requested int) (int, error) {
	if requested < 0 {
		return 0, apperr.InvalidArgument("slot duration must be positive, got %d", requested)
	}
	if requested > 0 {
		return requested, nil
	}
	if g.configs == nil {
		return g.defaultSlot, nil
	}
	cfg, err := g.configs.Get(ctx, orgID)
	if errors.Is(err, orgconfig.ErrNotFound) {
		return g.defaultSlot, nil
	}
	if err != nil {
		return 0, fmt.Errorf("generation: load config: %w", err)
	}
	return cfg.SlotMinutes(g.defaultSlot), nil
}

func validateRange(opts Options) error {
	days, err := schedule.DaysBetween(opts.StartDate, opts.EndDate)
	if err != nil {
		return apperr.InvalidArgument("generation dates must be YYYY-MM-DD: %v", err)
	}
	if days < 0 {
		return apperr.InvalidArgument("end date %s is before start date %s", opts.EndDate, opts.StartDate)
	}
	if days >= MaxRangeDays {
		return apperr.InvalidArgument("generation range of %d days exceeds the %d day limit", days+1, MaxRangeDays)
	}
	return nil
}

func (r *Report) fail(date string, err error) {
	r.Failures = append(r.Failures, Failure{Date: date, Code: apperr.CodeOf(err), Message: apperr.MessageOf(err)})
}

func (g *Generator) record(name, orgID string, started time.Time, err error) {
	e := observability.Event{Name: name, OrgID: orgID, Outcome: observability.OutcomeSuccess, Duration: time.Since(started)}
	if err != nil {
		e.Outcome = observability.OutcomeError
		e.Code = string(apperr.CodeOf(err))
	}
	g.sink.Record(e)
}
