// Package orgconfig holds the per-organization business configuration that
// drives assignment policy, booking windows and cancellation penalties.
package orgconfig

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/wolfman30/booking-engine/internal/apperr"
)

// ErrNotFound indicates no configuration is stored for the org.
var ErrNotFound = errors.New("orgconfig: configuration not found")

// AppointmentModel selects what an appointment must be assigned to.
type AppointmentModel string

const (
	ModelProfessionalBased AppointmentModel = "professional_based"
	ModelResourceBased     AppointmentModel = "resource_based"
	ModelHybrid            AppointmentModel = "hybrid"
)

// HybridSettings only exists on hybrid configurations.
type HybridSettings struct {
	RequireResourceAssignment bool `json:"require_resource_assignment"`
}

// NotificationSettings controls the initial appointment status.
type NotificationSettings struct {
	RequireConfirmation bool `json:"require_confirmation"`
}

// CancellationPolicy charges PenaltyPercentage when a client cancels less
// than HoursBeforeAppointment hours ahead.
type CancellationPolicy struct {
	HoursBeforeAppointment int     `json:"hours_before_appointment"`
	PenaltyPercentage      float64 `json:"penalty_percentage"`
}

// BusinessConfiguration is a closed union over AppointmentModel: Hybrid is
// set exactly when the model is hybrid. Values returned by a Provider have
// already passed Validate.
type BusinessConfiguration struct {
	OrgID                 string               `json:"org_id"`
	AppointmentModel      AppointmentModel     `json:"appointment_model"`
	Hybrid                *HybridSettings      `json:"hybrid,omitempty"`
	MaxAdvanceBookingDays int                  `json:"max_advance_booking_days"`
	SlotDurationMinutes   int                  `json:"slot_duration_minutes,omitempty"`
	Notifications         NotificationSettings `json:"notification_settings"`
	CancellationPolicy    *CancellationPolicy  `json:"cancellation_policy,omitempty"`
	Timezone              string               `json:"timezone,omitempty"`
	UpdatedAt             time.Time            `json:"updated_at,omitempty"`
}

// Validate checks the union shape and the policy bounds.
func (c *BusinessConfiguration) Validate() error {
	if c == nil {
		return apperr.InvalidArgument("business configuration is required")
	}
	if strings.TrimSpace(c.OrgID) == "" {
		return apperr.InvalidArgument("org id is required")
	}
	switch c.AppointmentModel {
	case ModelProfessionalBased, ModelResourceBased:
		if c.Hybrid != nil {
			return apperr.InvalidArgument("hybrid settings are only valid for the hybrid model, got %s", c.AppointmentModel)
		}
	case ModelHybrid:
		if c.Hybrid == nil {
			return apperr.InvalidArgument("hybrid model requires hybrid settings")
		}
	default:
		return apperr.InvalidArgument("unknown appointment model %q", c.AppointmentModel)
	}
	if c.MaxAdvanceBookingDays <= 0 {
		return apperr.InvalidArgument("max advance booking days must be positive, got %d", c.MaxAdvanceBookingDays)
	}
	if c.SlotDurationMinutes < 0 {
		return apperr.InvalidArgument("slot duration must not be negative, got %d", c.SlotDurationMinutes)
	}
	if p := c.CancellationPolicy; p != nil {
		if p.HoursBeforeAppointment < 0 {
			return apperr.InvalidArgument("cancellation hours must not be negative")
		}
		if p.PenaltyPercentage < 0 || p.PenaltyPercentage > 100 {
			return apperr.InvalidArgument("penalty percentage must be between 0 and 100, got %v", p.PenaltyPercentage)
		}
	}
	if c.Timezone != "" {
		if _, err := time.LoadLocation(c.Timezone); err != nil {
			return apperr.InvalidArgument("unknown timezone %q", c.Timezone)
		}
	}
	return nil
}

// RequiresResourceAssignment reports whether a hybrid org insists on both a
// staff member and a resource.
func (c *BusinessConfiguration) RequiresResourceAssignment() bool {
	return c.AppointmentModel == ModelHybrid && c.Hybrid != nil && c.Hybrid.RequireResourceAssignment
}

// Location returns the org's timezone, UTC when unset or unknown.
func (c *BusinessConfiguration) Location() *time.Location {
	if c == nil || c.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// SlotMinutes returns the configured generation granularity or fallback.
func (c *BusinessConfiguration) SlotMinutes(fallback int) int {
	if c != nil && c.SlotDurationMinutes > 0 {
		return c.SlotDurationMinutes
	}
	return fallback
}

// Provider loads an org's configuration. Get returns ErrNotFound when the org
// has none.
type Provider interface {
	Get(ctx context.Context, orgID string) (*BusinessConfiguration, error)
}

// Load fetches the configuration and maps absence to CONFIG_NOT_FOUND.
func Load(ctx context.Context, p Provider, orgID string) (*BusinessConfiguration, error) {
	cfg, err := p.Get(ctx, orgID)
	if errors.Is(err, ErrNotFound) {
		return nil, apperr.Wrap(apperr.CodeConfigNotFound, err, "no business configuration for org %s", orgID)
	}
	if err != nil {
		return nil, fmt.Errorf("orgconfig: load %s: %w", orgID, err)
	}
	return cfg, nil
}
