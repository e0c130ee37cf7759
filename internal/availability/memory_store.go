package availability

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-process Store used for local runs and tests. It honours
// the same version semantics as DynamoStore.
type MemoryStore struct {
	mu      sync.Mutex
	records map[Key]*Availability
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[Key]*Availability)}
}

func (m *MemoryStore) Get(_ context.Context, key Key) (*Availability, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.records[key]
	if !ok {
		return nil, ErrNotFound
	}
	return a.Clone(), nil
}

func (m *MemoryStore) GetRange(_ context.Context, orgID string, entityType EntityType, entityID, startDate, endDate string) ([]*Availability, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Availability
	for k, a := range m.records {
		if k.OrgID != orgID || k.EntityType != entityType || k.EntityID != entityID {
			continue
		}
		if k.Date < startDate || k.Date > endDate {
			continue
		}
		out = append(out, a.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out, nil
}

func (m *MemoryStore) Create(_ context.Context, a *Availability) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := a.Key()
	if _, ok := m.records[key]; ok {
		return ErrAlreadyExists
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	a.Version = 1
	if a.CreatedAt == "" {
		a.CreatedAt = now
	}
	a.UpdatedAt = now
	m.records[key] = a.Clone()
	return nil
}

func (m *MemoryStore) CompareAndSwap(_ context.Context, a *Availability, expected int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := a.Key()
	current, ok := m.records[key]
	if !ok || current.Version != expected {
		return ErrVersionConflict
	}
	a.Version = expected + 1
	a.UpdatedAt = time.Now().UTC().Format(time.RFC3339Nano)
	m.records[key] = a.Clone()
	return nil
}
