package domain

import (
	"context"
	"time"
)

// CyclePort runs one fetch and reconcile cycle, the scheduler's only dependency on this service
type CyclePort interface {
	RunCycle(ctx context.Context) (CycleResult, error)
}

// SourcePort fetches the snapshot valid on the given calendar day
type SourcePort interface {
	Fetch(ctx context.Context, day time.Time) (Snapshot, error)
}

// PublisherPort accepts a reconciled batch for fan-out, returning once it is queued
type PublisherPort interface {
	Submit(ctx context.Context, cycleID string, batch []Record) error
}

// QueryPort is the read side used by the ops surface
type QueryPort interface {
	Count(ctx context.Context) (int64, error)
	ByDate(ctx context.Context, dtTillMax time.Time) ([]Record, error)
}

// StorageRepo is bound to one transaction at a time
type StorageRepo interface {
	// FindByKey returns the row for k, locking it for the rest of the transaction
	FindByKey(ctx context.Context, k Key) (Record, bool, error)
	// Insert adds a new row, created_at defaulted and updated_at left NULL
	Insert(ctx context.Context, r Record) error
	// Update overwrites the five components of an existing row and stamps updated_at
	Update(ctx context.Context, r Record) error
	// Count returns the number of stored rows
	Count(ctx context.Context) (int64, error)
	// ByDate lists rows for one effective date ordered by warehouse name
	ByDate(ctx context.Context, dtTillMax time.Time) ([]Record, error)
}
