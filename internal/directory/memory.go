package directory

import (
	"context"
	"strings"
	"sync"
)

// MemoryRepository keeps the directory in process, preserving insertion order
// for list results.
type MemoryRepository struct {
	mu        sync.RWMutex
	staff     []Staff
	resources []Resource
}

var _ Directory = (*MemoryRepository)(nil)

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{}
}

func (m *MemoryRepository) GetStaff(_ context.Context, orgID, staffID string) (*Staff, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.staff {
		if s.OrgID == orgID && s.ID == staffID {
			s := s
			return &s, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryRepository) ListStaff(_ context.Context, orgID string, activeOnly bool) ([]Staff, error) {
	return m.filterStaff(func(s Staff) bool {
		return s.OrgID == orgID && (!activeOnly || s.IsActive)
	}), nil
}

func (m *MemoryRepository) ListStaffByRole(_ context.Context, orgID, role string) ([]Staff, error) {
	return m.filterStaff(func(s Staff) bool {
		return s.OrgID == orgID && s.IsActive && strings.EqualFold(s.Role, role)
	}), nil
}

func (m *MemoryRepository) ListStaffBySpecialty(_ context.Context, orgID, specialty string) ([]Staff, error) {
	return m.filterStaff(func(s Staff) bool {
		return s.OrgID == orgID && s.IsActive && s.HasAnySpecialty([]string{specialty})
	}), nil
}

func (m *MemoryRepository) UpsertStaff(_ context.Context, s *Staff) error {
	if err := ValidateStaff(s); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.staff {
		if m.staff[i].OrgID == s.OrgID && m.staff[i].ID == s.ID {
			m.staff[i] = *s
			return nil
		}
	}
	m.staff = append(m.staff, *s)
	return nil
}

func (m *MemoryRepository) GetResource(_ context.Context, orgID, resourceID string) (*Resource, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.resources {
		if r.OrgID == orgID && r.ID == resourceID {
			r := r
			return &r, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryRepository) ListResources(_ context.Context, orgID string, activeOnly bool) ([]Resource, error) {
	return m.filterResources(func(r Resource) bool {
		return r.OrgID == orgID && (!activeOnly || r.IsActive)
	}), nil
}

func (m *MemoryRepository) ListResourcesByType(_ context.Context, orgID, resourceType string) ([]Resource, error) {
	return m.filterResources(func(r Resource) bool {
		return r.OrgID == orgID && r.IsActive && strings.EqualFold(r.Type, resourceType)
	}), nil
}

func (m *MemoryRepository) UpsertResource(_ context.Context, r *Resource) error {
	if err := ValidateResource(r); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.resources {
		if m.resources[i].OrgID == r.OrgID && m.resources[i].ID == r.ID {
			m.resources[i] = *r
			return nil
		}
	}
	m.resources = append(m.resources, *r)
	return nil
}

func (m *MemoryRepository) filterStaff(keep func(Staff) bool) []Staff {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Staff
	for _, s := range m.staff {
		if keep(s) {
			out = append(out, s)
		}
	}
	return out
}

func (m *MemoryRepository) filterResources(keep func(Resource) bool) []Resource {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Resource
	for _, r := range m.resources {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out
}
