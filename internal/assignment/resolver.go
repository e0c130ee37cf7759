// Package assignment decides which staff member and/or resource an
// appointment is bound to under the organization's appointment model.
package assignment

import (
	"context"

	"github.com/wolfman30/booking-engine/internal/apperr"
	"github.com/wolfman30/booking-engine/internal/availability"
	"github.com/wolfman30/booking-engine/internal/orgconfig"
	"github.com/wolfman30/booking-engine/internal/slotfinder"
	"github.com/wolfman30/booking-engine/pkg/logging"
)

// Type says which entities an appointment is assigned to.
type Type string

const (
	TypeStaffOnly        Type = "staff_only"
	TypeResourceOnly     Type = "resource_only"
	TypeStaffAndResource Type = "staff_and_resource"
)

// Valid reports whether t is a known assignment type.
func (t Type) Valid() bool {
	switch t {
	case TypeStaffOnly, TypeResourceOnly, TypeStaffAndResource:
		return true
	}
	return false
}

// Request is what the client asked for. StartTime is optional; when set only
// entities with a qualifying slot starting then are accepted.
type Request struct {
	OrgID               string
	Date                string
	StartTime           string
	DurationMinutes     int
	PreferredStaffID    string
	PreferredResourceID string
	RequiredSpecialties []string
}

// Result is the resolved assignment.
type Result struct {
	StaffID    string `json:"staff_id,omitempty"`
	ResourceID string `json:"resource_id,omitempty"`
	Type       Type   `json:"assignment_type"`
}

// SlotSearcher is the slot finder surface the resolver needs.
type SlotSearcher interface {
	FindAvailableSlots(ctx context.Context, q slotfinder.Query) ([]slotfinder.Match, error)
}

// Resolver applies the appointment model decision table. It holds no state;
// ties go to the first candidate in the finder's order.
type Resolver struct {
	finder SlotSearcher
	logger *logging.Logger
}

func New(finder SlotSearcher, logger *logging.Logger) *Resolver {
	if finder == nil {
		panic("assignment: slot searcher cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Resolver{finder: finder, logger: logger}
}

// Determine resolves req against cfg.
func (r *Resolver) Determine(ctx context.Context, req Request, cfg *orgconfig.BusinessConfiguration) (*Result, error) {
	if cfg == nil {
		return nil, apperr.ErrConfigNotFound
	}
	if req.DurationMinutes <= 0 {
		return nil, apperr.InvalidArgument("duration must be positive, got %d", req.DurationMinutes)
	}

	switch cfg.AppointmentModel {
	case orgconfig.ModelProfessionalBased:
		staffID, err := r.resolve(ctx, req, availability.EntityStaff, req.PreferredStaffID)
		if err != nil {
			return nil, err
		}
		return &Result{StaffID: staffID, Type: TypeStaffOnly}, nil

	case orgconfig.ModelResourceBased:
		resourceID, err := r.resolve(ctx, req, availability.EntityResource, req.PreferredResourceID)
		if err != nil {
			return nil, err
		}
		return &Result{ResourceID: resourceID, Type: TypeResourceOnly}, nil

	case orgconfig.ModelHybrid:
		if cfg.RequiresResourceAssignment() {
			staffID, err := r.resolve(ctx, req, availability.EntityStaff, req.PreferredStaffID)
			if err != nil {
				return nil, err
			}
			resourceID, err := r.resolve(ctx, req, availability.EntityResource, req.PreferredResourceID)
			if err != nil {
				return nil, err
			}
			return &Result{StaffID: staffID, ResourceID: resourceID, Type: TypeStaffAndResource}, nil
		}
		switch {
		case req.PreferredStaffID != "":
			staffID, err := r.resolve(ctx, req, availability.EntityStaff, req.PreferredStaffID)
			if err != nil {
				return nil, err
			}
			return &Result{StaffID: staffID, Type: TypeStaffOnly}, nil
		case req.PreferredResourceID != "":
			resourceID, err := r.resolve(ctx, req, availability.EntityResource, req.PreferredResourceID)
			if err != nil {
				return nil, err
			}
			return &Result{ResourceID: resourceID, Type: TypeResourceOnly}, nil
		}
		return r.autoHybrid(ctx, req)

	default:
		return nil, apperr.InvalidArgument("unknown appointment model %q", cfg.AppointmentModel)
	}
}

// resolve verifies a preferred entity or auto-picks the first candidate of
// entityType.
func (r *Resolver) resolve(ctx context.Context, req Request, entityType availability.EntityType, preferredID string) (string, error) {
	q := slotfinder.Query{
		OrgID:           req.OrgID,
		Date:            req.Date,
		DurationMinutes: req.DurationMinutes,
		EntityType:      entityType,
		EntityID:        preferredID,
	}
	if entityType == availability.EntityStaff {
		q.RequiredSpecialties = req.RequiredSpecialties
	}
	matches, err := r.finder.FindAvailableSlots(ctx, q)
	if err != nil {
		return "", err
	}
	matches = startingAt(matches, req.StartTime)

	if preferredID != "" {
		if len(matches) == 0 {
			if entityType == availability.EntityStaff {
				return "", apperr.New(apperr.CodeStaffUnavailable, "staff %s has no availability on %s %s", preferredID, req.Date, req.StartTime)
			}
			return "", apperr.New(apperr.CodeResourceUnavailable, "resource %s has no availability on %s %s", preferredID, req.Date, req.StartTime)
		}
		return preferredID, nil
	}
	if len(matches) == 0 {
		return "", apperr.New(apperr.CodeNoAvailability, "no %s available on %s %s", entityType, req.Date, req.StartTime)
	}
	r.logger.ForOrg(req.OrgID).Debug("auto-assigned", "entity_type", string(entityType), "entity_id", matches[0].EntityID)
	return matches[0].EntityID, nil
}

// autoHybrid probes staff first and falls back to resources.
func (r *Resolver) autoHybrid(ctx context.Context, req Request) (*Result, error) {
	for _, entityType := range []availability.EntityType{availability.EntityStaff, availability.EntityResource} {
		id, err := r.resolve(ctx, req, entityType, "")
		if apperrIsNoAvailability(err) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if entityType == availability.EntityStaff {
			return &Result{StaffID: id, Type: TypeStaffOnly}, nil
		}
		return &Result{ResourceID: id, Type: TypeResourceOnly}, nil
	}
	return nil, apperr.New(apperr.CodeNoAvailability, "no staff or resource available on %s %s", req.Date, req.StartTime)
}

func apperrIsNoAvailability(err error) bool {
	return err != nil && apperr.CodeOf(err) == apperr.CodeNoAvailability
}

func startingAt(matches []slotfinder.Match, startTime string) []slotfinder.Match {
	if startTime == "" {
		return matches
	}
	var out []slotfinder.Match
	for _, m := range matches {
		if m.HasStart(startTime) {
			out = append(out, m)
		}
	}
	return out
}
