// Package domain holds the tariff types and the ports of the tariffs service
package domain

import "time"

// SnapshotItem is one warehouse row as delivered by the source, numbers still in source text
// (comma decimal or "-")
type SnapshotItem struct {
	WarehouseName          string `json:"warehouseName"`
	DeliveryAndStorageExpr string `json:"boxDeliveryAndStorageExpr"`
	DeliveryBase           string `json:"boxDeliveryBase"`
	DeliveryLiter          string `json:"boxDeliveryLiter"`
	StorageBase            string `json:"boxStorageBase"`
	StorageLiter           string `json:"boxStorageLiter"`
}

// Snapshot is the whole source response for one day
type Snapshot struct {
	DtTillMax time.Time // calendar date, UTC midnight
	Items     []SnapshotItem
}

// Key is the natural key of a tariff record
type Key struct {
	DtTillMax     time.Time
	WarehouseName string
}

// Record is the persisted shape of a box tariff
type Record struct {
	DtTillMax              time.Time
	WarehouseName          string
	DeliveryAndStorageExpr *float64
	DeliveryBase           *float64
	DeliveryLiter          *float64
	StorageBase            *float64
	StorageLiter           *float64

	// store owned, zero and nil on candidates
	CreatedAt time.Time
	UpdatedAt *time.Time
}

// Key returns the natural key of r
func (r Record) Key() Key { return Key{DtTillMax: r.DtTillMax, WarehouseName: r.WarehouseName} }

// Outcome is what an upsert did to the store
type Outcome string

const (
	// OutcomeInserted is a first sighting of the key
	OutcomeInserted Outcome = "inserted"
	// OutcomeUpdated overwrote an existing row
	OutcomeUpdated Outcome = "updated"
	// OutcomeFailed means the record was not persisted
	OutcomeFailed Outcome = "failed"
)

// CycleResult summarizes one fetch and reconcile run
type CycleResult struct {
	CycleID   string        `json:"cycle_id"`
	StartedAt time.Time     `json:"started_at"`
	Elapsed   time.Duration `json:"elapsed_ns"`
	DtTillMax string        `json:"dt_till_max,omitempty"`
	Fetched   int           `json:"fetched"`
	Inserted  int           `json:"inserted"`
	Updated   int           `json:"updated"`
	Failed    int           `json:"failed"`
	Malformed int           `json:"malformed"`
	Queued    bool          `json:"queued"`
	Error     string        `json:"error,omitempty"`
}

// Saved is the number of records that made it into the store
func (c CycleResult) Saved() int { return c.Inserted + c.Updated }
