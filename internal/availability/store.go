// Package availability persists per-entity, per-date slot grids and applies
// slot mutations to them under optimistic concurrency control.
package availability

import (
	"context"
	"errors"
)

var (
	// ErrNotFound indicates no record exists for the key.
	ErrNotFound = errors.New("availability: record not found")
	// ErrAlreadyExists indicates Create hit an existing record.
	ErrAlreadyExists = errors.New("availability: record already exists")
	// ErrVersionConflict indicates the stored version moved since it was read.
	ErrVersionConflict = errors.New("availability: version conflict")
)

// Store is the persistence contract for availability records.
//
// Create stores a record at version 1 and fails ErrAlreadyExists if one is
// present. CompareAndSwap replaces the record only while the stored version
// equals expected, bumping Version to expected+1 on success.
type Store interface {
	Get(ctx context.Context, key Key) (*Availability, error)
	GetRange(ctx context.Context, orgID string, entityType EntityType, entityID, startDate, endDate string) ([]*Availability, error)
	Create(ctx context.Context, a *Availability) error
	CompareAndSwap(ctx context.Context, a *Availability, expected int64) error
}
