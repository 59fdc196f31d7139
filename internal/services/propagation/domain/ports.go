package domain

//go:generate mockgen -source=ports.go -destination=mocks/mocks.go -package=mocks -exclude_interfaces=QueuePort,PublisherPort

import (
	"context"

	tdomain "tariffsync/internal/services/tariffs/domain"
)

// DocumentClient is the part of the spreadsheet SDK the pipeline touches
type DocumentClient interface {
	// CreateDocument makes a new spreadsheet with one tab and returns its id
	CreateDocument(ctx context.Context, title string, grid Grid) (string, error)
	// WriteRegion replaces the whole content of a tab with rows, starting at A1
	WriteRegion(ctx context.Context, documentID, sheet string, rows [][]string) error
	// GrantAccess shares a document with a user
	GrantAccess(ctx context.Context, documentID, email string, role Role) error
}

// Registry yields the ordered, non-empty list of target document ids
type Registry interface {
	Targets(ctx context.Context) ([]string, error)
}

// RegistryWriter records a newly provisioned document
type RegistryWriter interface {
	Register(ctx context.Context, documentID string) error
}

// QueuePort accepts batches for serialized fan-out; it satisfies tariffs' PublisherPort
type QueuePort interface {
	Submit(ctx context.Context, cycleID string, batch []tdomain.Record) error
	Pending() int
}

// PublisherPort writes one batch to every target
type PublisherPort interface {
	Publish(ctx context.Context, b Batch) Report
}

// Journal persists attempts for later inspection
type Journal interface {
	Record(ctx context.Context, attempts []Attempt) error
}

// Stream mirrors a published batch to a message broker
type Stream interface {
	Publish(ctx context.Context, b Batch) error
}
