package appointments

import (
	"context"
	"errors"
	"sort"
	"sync"
)

// ErrNotFound is returned when an appointment does not exist for the org.
var ErrNotFound = errors.New("appointments: not found")

// RangeQuery selects appointments whose date falls in [StartDate, EndDate].
// StaffID and ResourceID narrow the scope when set.
type RangeQuery struct {
	OrgID      string
	StartDate  string
	EndDate    string
	StaffID    string
	ResourceID string
}

// Repository persists appointments.
type Repository interface {
	Create(ctx context.Context, a *Appointment) error
	Get(ctx context.Context, orgID, id string) (*Appointment, error)
	Update(ctx context.Context, a *Appointment) error
	ListByDateRange(ctx context.Context, q RangeQuery) ([]*Appointment, error)
	FindIDByReservationToken(ctx context.Context, orgID, token string) (string, bool, error)
}

// MemoryRepository keeps appointments in process.
type MemoryRepository struct {
	mu    sync.RWMutex
	items map[string]*Appointment
}

var _ Repository = (*MemoryRepository)(nil)

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{items: make(map[string]*Appointment)}
}

func memKey(orgID, id string) string { return orgID + "/" + id }

func (r *MemoryRepository) Create(_ context.Context, a *Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := memKey(a.OrgID, a.ID)
	if _, ok := r.items[k]; ok {
		return errors.New("appointments: duplicate id")
	}
	r.items[k] = a.clone()
	return nil
}

func (r *MemoryRepository) Get(_ context.Context, orgID, id string) (*Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.items[memKey(orgID, id)]
	if !ok {
		return nil, ErrNotFound
	}
	return a.clone(), nil
}

func (r *MemoryRepository) Update(_ context.Context, a *Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := memKey(a.OrgID, a.ID)
	if _, ok := r.items[k]; !ok {
		return ErrNotFound
	}
	r.items[k] = a.clone()
	return nil
}

func (r *MemoryRepository) ListByDateRange(_ context.Context, q RangeQuery) ([]*Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Appointment
	for _, a := range r.items {
		if a.OrgID != q.OrgID {
			continue
		}
		if d := a.Date(); d < q.StartDate || d > q.EndDate {
			continue
		}
		if q.StaffID != "" && a.StaffID != q.StaffID {
			continue
		}
		if q.ResourceID != "" && a.ResourceID != q.ResourceID {
			continue
		}
		out = append(out, a.clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Datetime != out[j].Datetime {
			return out[i].Datetime < out[j].Datetime
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *MemoryRepository) FindIDByReservationToken(_ context.Context, orgID, token string) (string, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, a := range r.items {
		if a.OrgID == orgID && a.ReservationToken == token {
			return a.ID, true, nil
		}
	}
	return "", false, nil
}
