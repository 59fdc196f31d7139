// Package service runs tariff cycles on a fixed interval with an overlap guard
package service

import (
	"context"
	"errors"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	perr "tariffsync/internal/platform/errors"
	"tariffsync/internal/platform/logger"
	"tariffsync/internal/platform/metrics"
	"tariffsync/internal/services/scheduler/domain"
	"tariffsync/internal/services/scheduler/guardrails"
	tdomain "tariffsync/internal/services/tariffs/domain"
)

// ErrCycleInFlight is returned by Trigger while another cycle is running
var ErrCycleInFlight = perr.New(perr.ErrorCodeConflict, "a cycle is already running")

// Config holds loop settings
type Config struct {
	Interval time.Duration
}

// Scheduler starts one cycle immediately and then one per Interval.
// A tick that finds a cycle in flight is skipped, never queued
type Scheduler struct {
	cycle   tdomain.CyclePort
	lease   guardrails.Lease
	metrics *metrics.Metrics
	cfg     Config
	now     func() time.Time

	inFlight atomic.Bool
	wg       sync.WaitGroup
	cycles   atomic.Int64
	skipped  atomic.Int64

	mu      sync.RWMutex
	last    *tdomain.CycleResult
	outcome domain.Outcome
	trigger string
	next    time.Time
}

var _ domain.TriggerPort = (*Scheduler)(nil)

// New constructs a Scheduler; a nil lease means no cross replica guard
func New(cycle tdomain.CyclePort, lease guardrails.Lease, m *metrics.Metrics, cfg Config) *Scheduler {
	if cycle == nil {
		panic("scheduler requires a cycle port")
	}
	if lease == nil {
		lease = guardrails.NoLease()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}
	return &Scheduler{cycle: cycle, lease: lease, metrics: m, cfg: cfg, now: time.Now}
}

// Run blocks until ctx ends, then waits for the running cycle to return
func (s *Scheduler) Run(ctx context.Context) error {
	log := logger.Named("scheduler")
	log.Info().Dur("interval", s.cfg.Interval).Msg("scheduler started")

	t := time.NewTicker(s.cfg.Interval)
	defer t.Stop()

	s.spawn(ctx, "start")
	for {
		select {
		case <-ctx.Done():
			s.wg.Wait()
			log.Info().Msg("scheduler stopped")
			return nil
		case <-t.C:
			s.spawn(ctx, "tick")
		}
	}
}

func (s *Scheduler) spawn(ctx context.Context, trigger string) {
	s.setNext(s.now().Add(s.cfg.Interval))
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		_, _ = s.guarded(ctx, trigger)
	}()
}

// Trigger runs a cycle now and waits for it, obeying the same overlap guard as ticks
func (s *Scheduler) Trigger(ctx context.Context) (tdomain.CycleResult, error) {
	return s.guarded(ctx, "manual")
}

// guarded runs one cycle under the overlap guard. A started cycle always runs to completion:
// its context keeps the caller's values but never its cancellation, whether the caller is the
// shutting down loop or an HTTP request whose client went away
func (s *Scheduler) guarded(ctx context.Context, trigger string) (tdomain.CycleResult, error) {
	ctx = context.WithoutCancel(ctx)
	log := logger.Named("scheduler").With().Str("trigger", trigger).Logger()
	if !s.inFlight.CompareAndSwap(false, true) {
		s.skipped.Add(1)
		s.metrics.IncSkipped("in_flight")
		log.Warn().Msg("cycle still running, skipped")
		return tdomain.CycleResult{}, ErrCycleInFlight
	}
	defer s.inFlight.Store(false)

	var (
		res tdomain.CycleResult
		err error
		ran bool
	)
	lerr := s.lease(ctx, func(ctx context.Context) error {
		ran = true
		res, err = s.runOnce(ctx, trigger)
		return nil
	})
	switch {
	case ran:
		return res, err
	case errors.Is(lerr, guardrails.ErrLeaseHeld):
		s.skipped.Add(1)
		s.metrics.IncSkipped("lease_held")
		log.Info().Msg("another replica holds the cycle lease, skipped")
		return tdomain.CycleResult{}, perr.Wrap(lerr, perr.ErrorCodeConflict, "cycle lease")
	default:
		// an unreachable lease store must not stop syncing; upserts are idempotent
		log.Warn().Err(lerr).Msg("cycle lease unavailable, running unguarded")
		return s.runOnce(ctx, trigger)
	}
}

func (s *Scheduler) runOnce(ctx context.Context, trigger string) (res tdomain.CycleResult, err error) {
	start := s.now()
	defer func() {
		outcome := classify(res, err)
		if v := recover(); v != nil {
			err = perr.PanicErrf("cycle panic: %v", v)
			res.Error = err.Error()
			outcome = domain.OutcomePanic
			logger.Named("scheduler").Error().Err(err).Bytes("stack", debug.Stack()).Msg("cycle panicked")
		}
		s.metrics.ObserveCycle(string(outcome), s.now().Sub(start))
		s.cycles.Add(1)
		s.record(res, outcome, trigger)
	}()
	return s.cycle.RunCycle(ctx)
}

func classify(res tdomain.CycleResult, err error) domain.Outcome {
	switch {
	case err == nil && res.Fetched == 0:
		return domain.OutcomeEmpty
	case err == nil:
		return domain.OutcomeOK
	case perr.IsCode(err, perr.ErrorCodeTransport):
		return domain.OutcomeSourceFailed
	default:
		return domain.OutcomeFailed
	}
}

func (s *Scheduler) record(res tdomain.CycleResult, outcome domain.Outcome, trigger string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = &res
	s.outcome = outcome
	s.trigger = trigger
}

func (s *Scheduler) setNext(t time.Time) {
	s.mu.Lock()
	s.next = t
	s.mu.Unlock()
}

// Status implements domain.TriggerPort
func (s *Scheduler) Status() domain.Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := domain.Status{
		Running:  s.inFlight.Load(),
		Interval: s.cfg.Interval.String(),
		Cycles:   s.cycles.Load(),
		Skipped:  s.skipped.Load(),
		Outcome:  s.outcome,
		Trigger:  s.trigger,
	}
	if s.last != nil {
		last := *s.last
		st.Last = &last
	}
	if !s.next.IsZero() {
		next := s.next
		st.NextTick = &next
	}
	return st
}
