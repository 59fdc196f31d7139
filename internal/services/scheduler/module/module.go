// Package module wires the scheduler
package module

import (
	"tariffsync/internal/modkit"
	"tariffsync/internal/services/scheduler/domain"
	"tariffsync/internal/services/scheduler/guardrails"
	"tariffsync/internal/services/scheduler/service"
	tdomain "tariffsync/internal/services/tariffs/domain"
)

// Ports exposed by the scheduler module
type Ports struct {
	Trigger domain.TriggerPort
}

// Module implements the scheduler module
type Module struct {
	opts  Options
	sched *service.Scheduler
	ports Ports
}

// New constructs the scheduler over cycle; the redis lease is used when deps.RDS is set
func New(deps modkit.Deps, cycle tdomain.CyclePort) (*Module, error) {
	opts := FromConfig(deps.Cfg)
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	lease := guardrails.NoLease()
	if deps.RDS != nil {
		lease = guardrails.MakeRedisLease(deps.RDS, opts.LeaseKey, opts.LeaseTTL)
	}
	s := service.New(cycle, lease, deps.Metrics, service.Config{Interval: opts.Interval})
	return &Module{opts: opts, sched: s, ports: Ports{Trigger: s}}, nil
}

// Name satisfies modkit.Module
func (m *Module) Name() string { return "scheduler" }

// Ports satisfies modkit.Module
func (m *Module) Ports() any { return m.ports }

// Scheduler returns the loop; its Run must be started by the caller
func (m *Module) Scheduler() *service.Scheduler { return m.sched }
