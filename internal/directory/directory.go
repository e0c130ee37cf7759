// Package directory provides the staff members and physical resources an
// organization can book, together with their weekly schedules.
package directory

import (
	"context"
	"errors"
	"strings"

	"github.com/wolfman30/booking-engine/internal/apperr"
	"github.com/wolfman30/booking-engine/internal/schedule"
)

// ErrNotFound indicates the staff member or resource does not exist.
var ErrNotFound = errors.New("directory: not found")

// Staff is a bookable professional.
type Staff struct {
	ID          string                  `json:"id"`
	OrgID       string                  `json:"org_id"`
	Name        string                  `json:"name"`
	Role        string                  `json:"role,omitempty"`
	Specialties []string                `json:"specialties,omitempty"`
	Schedule    schedule.WeeklySchedule `json:"schedule"`
	IsActive    bool                    `json:"is_active"`
}

// HasAnySpecialty reports whether the staff member covers at least one of
// required. An empty requirement matches everyone.
func (s Staff) HasAnySpecialty(required []string) bool {
	if len(required) == 0 {
		return true
	}
	for _, want := range required {
		for _, have := range s.Specialties {
			if strings.EqualFold(strings.TrimSpace(want), strings.TrimSpace(have)) {
				return true
			}
		}
	}
	return false
}

// Resource is a bookable room, chamber or piece of equipment.
type Resource struct {
	ID                string                  `json:"id"`
	OrgID             string                  `json:"org_id"`
	Name              string                  `json:"name"`
	Type              string                  `json:"type,omitempty"`
	StaffRequirements []string                `json:"staff_requirements,omitempty"`
	Schedule          schedule.WeeklySchedule `json:"schedule"`
	IsActive          bool                    `json:"is_active"`
}

// StaffProvider looks up staff members. List results are in a stable order.
type StaffProvider interface {
	GetStaff(ctx context.Context, orgID, staffID string) (*Staff, error)
	ListStaff(ctx context.Context, orgID string, activeOnly bool) ([]Staff, error)
	ListStaffByRole(ctx context.Context, orgID, role string) ([]Staff, error)
	ListStaffBySpecialty(ctx context.Context, orgID, specialty string) ([]Staff, error)
}

// ResourceProvider looks up resources. List results are in a stable order.
type ResourceProvider interface {
	GetResource(ctx context.Context, orgID, resourceID string) (*Resource, error)
	ListResources(ctx context.Context, orgID string, activeOnly bool) ([]Resource, error)
	ListResourcesByType(ctx context.Context, orgID, resourceType string) ([]Resource, error)
}

// Directory is the full read and write surface.
type Directory interface {
	StaffProvider
	ResourceProvider
	UpsertStaff(ctx context.Context, s *Staff) error
	UpsertResource(ctx context.Context, r *Resource) error
}

// ValidateStaff checks the fields required before a staff member is stored.
func ValidateStaff(s *Staff) error {
	if s == nil || strings.TrimSpace(s.ID) == "" || strings.TrimSpace(s.OrgID) == "" {
		return apperr.InvalidArgument("staff id and org id are required")
	}
	if strings.TrimSpace(s.Name) == "" {
		return apperr.InvalidArgument("staff name is required")
	}
	if err := s.Schedule.Validate(); err != nil {
		return apperr.InvalidArgument("staff schedule: %v", err)
	}
	return nil
}

// ValidateResource checks the fields required before a resource is stored.
func ValidateResource(r *Resource) error {
	if r == nil || strings.TrimSpace(r.ID) == "" || strings.TrimSpace(r.OrgID) == "" {
		return apperr.InvalidArgument("resource id and org id are required")
	}
	if strings.TrimSpace(r.Name) == "" {
		return apperr.InvalidArgument("resource name is required")
	}
	if err := r.Schedule.Validate(); err != nil {
		return apperr.InvalidArgument("resource schedule: %v", err)
	}
	return nil
}
