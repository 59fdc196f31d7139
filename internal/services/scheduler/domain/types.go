// Package domain holds the scheduler status model and ports
package domain

import (
	"context"
	"time"

	tdomain "tariffsync/internal/services/tariffs/domain"
)

// Outcome labels a finished cycle
type Outcome string

const (
	OutcomeOK           Outcome = "ok"
	OutcomeEmpty        Outcome = "empty"
	OutcomeSourceFailed Outcome = "source_failed"
	OutcomeFailed       Outcome = "failed"
	OutcomePanic        Outcome = "panic"
)

// Status is what the ops surface reports about the loop
type Status struct {
	Running  bool                 `json:"running"`
	Interval string               `json:"interval"`
	Cycles   int64                `json:"cycles"`
	Skipped  int64                `json:"skipped"`
	Last     *tdomain.CycleResult `json:"last,omitempty"`
	Outcome  Outcome              `json:"outcome,omitempty"`
	Trigger  string               `json:"trigger,omitempty"`
	NextTick *time.Time           `json:"next_tick,omitempty"`
}

// TriggerPort runs a cycle on demand and reports loop state
type TriggerPort interface {
	Trigger(ctx context.Context) (tdomain.CycleResult, error)
	Status() Status
}
