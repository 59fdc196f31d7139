// Package domain holds the fan-out types and ports of the propagation service
package domain

import (
	"time"

	tdomain "tariffsync/internal/services/tariffs/domain"
)

// Header is the first row of every target's data region
var Header = []string{
	"dt_till_max",
	"delivery_and_storage_expr",
	"delivery_base",
	"delivery_liter",
	"storage_base",
	"storage_liter",
	"warehouse_name",
	"updated_at",
}

// DefaultSheet is the tab every document is provisioned with
const DefaultSheet = "stocks_coefs"

// Batch is one cycle's reconciled records, owned by the queue once submitted
type Batch struct {
	CycleID    string
	Records    []tdomain.Record
	CapturedAt time.Time
}

// Attempt is the outcome of writing one batch to one target
type Attempt struct {
	CycleID    string
	DocumentID string
	Rows       int
	Err        error
	Elapsed    time.Duration
	At         time.Time
}

// OK reports whether the write went through
func (a Attempt) OK() bool { return a.Err == nil }

// Report summarizes a fan-out over every registered target
type Report struct {
	CycleID  string
	Attempts []Attempt
}

// Failed counts the targets that did not receive the batch
func (r Report) Failed() int {
	n := 0
	for _, a := range r.Attempts {
		if !a.OK() {
			n++
		}
	}
	return n
}

// Grid describes the single tab a new document is created with
type Grid struct {
	Sheet   string
	Rows    int
	Columns int
}

// Role is a sharing permission on a document
type Role string

const (
	// RoleWriter may edit
	RoleWriter Role = "writer"
	// RoleReader may view
	RoleReader Role = "reader"
)
