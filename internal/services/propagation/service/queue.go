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
	"tariffsync/internal/services/propagation/domain"
	tdomain "tariffsync/internal/services/tariffs/domain"
)

// ErrQueueClosed is returned by Submit once the worker has stopped
var ErrQueueClosed = errors.New("propagation queue closed")

// QueueConfig holds queue settings
type QueueConfig struct {
	// Depth is how many batches may wait behind the running one before Submit blocks
	Depth int
	// DrainTimeout bounds the publishing of already admitted batches after Run's ctx ends
	DrainTimeout time.Duration
}

// Queue runs fan-out tasks one at a time in submission order.
// Submit only waits for admission, never for publication
type Queue struct {
	pub     domain.PublisherPort
	cfg     QueueConfig
	metrics *metrics.Metrics
	now     func() time.Time

	tasks   chan domain.Batch
	stopped chan struct{}
	once    sync.Once
	pending atomic.Int64

	// admit is held shared by Submit across its send; drain takes it exclusively to set closed
	admit  sync.RWMutex
	closed bool

	mu   sync.RWMutex
	last *domain.Report
}

var _ domain.QueuePort = (*Queue)(nil)

// NewQueue constructs a Queue; call Run to start its worker
func NewQueue(pub domain.PublisherPort, m *metrics.Metrics, cfg QueueConfig) *Queue {
	if pub == nil {
		panic("propagation.Queue requires a publisher")
	}
	if cfg.Depth <= 0 {
		cfg.Depth = 16
	}
	if cfg.DrainTimeout <= 0 {
		cfg.DrainTimeout = 30 * time.Second
	}
	return &Queue{
		pub:     pub,
		cfg:     cfg,
		metrics: m,
		now:     time.Now,
		tasks:   make(chan domain.Batch, cfg.Depth),
		stopped: make(chan struct{}),
	}
}

// Submit copies batch and admits it, blocking while the queue is full
func (q *Queue) Submit(ctx context.Context, cycleID string, batch []tdomain.Record) error {
	b := domain.Batch{
		CycleID:    cycleID,
		Records:    append([]tdomain.Record(nil), batch...),
		CapturedAt: q.now(),
	}
	q.admit.RLock()
	defer q.admit.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}
	// counted before the send so the worker can never decrement first
	q.metrics.SetQueueDepth(int(q.pending.Add(1)))
	select {
	case q.tasks <- b:
		logger.C(ctx).Debug().Int("rows", len(b.Records)).Msg("batch queued for propagation")
		return nil
	case <-q.stopped:
		q.metrics.SetQueueDepth(int(q.pending.Add(-1)))
		return ErrQueueClosed
	case <-ctx.Done():
		q.metrics.SetQueueDepth(int(q.pending.Add(-1)))
		return perr.Wrap(ctx.Err(), perr.ErrorCodeUnavailable, "propagation queue admission")
	}
}

// Pending is the number of admitted batches not yet published, the running one included
func (q *Queue) Pending() int { return int(q.pending.Load()) }

// Last returns the report of the most recent fan-out
func (q *Queue) Last() (domain.Report, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.last == nil {
		return domain.Report{}, false
	}
	return *q.last, true
}

// Run is the single worker. When ctx ends, batches already admitted are still published
// within DrainTimeout, then Submit starts returning ErrQueueClosed
func (q *Queue) Run(ctx context.Context) error {
	log := logger.Named("propagation")
	log.Info().Int("depth", q.cfg.Depth).Msg("propagation worker started")
	for {
		select {
		case b := <-q.tasks:
			// a started fan-out runs to completion, shutdown only stops new ones
			q.run(context.WithoutCancel(ctx), b)
		case <-ctx.Done():
			q.once.Do(func() { close(q.stopped) })
			q.drain(ctx)
			log.Info().Msg("propagation worker stopped")
			return nil
		}
	}
}

// drain waits out in-flight Submits, which stopped has already released, so every
// batch that was admitted is in tasks before the final pass
func (q *Queue) drain(parent context.Context) {
	q.admit.Lock()
	q.closed = true
	q.admit.Unlock()

	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), q.cfg.DrainTimeout)
	defer cancel()
	for {
		select {
		case b := <-q.tasks:
			q.run(ctx, b)
		default:
			return
		}
	}
}

func (q *Queue) run(ctx context.Context, b domain.Batch) {
	defer func() {
		q.metrics.SetQueueDepth(int(q.pending.Add(-1)))
		if v := recover(); v != nil {
			err := perr.PanicErrf("publish panic: %v", v)
			logger.C(logger.WithCycle(ctx, b.CycleID)).Error().
				Err(err).
				Bytes("stack", debug.Stack()).
				Msg("propagation task panicked")
		}
	}()
	rep := q.pub.Publish(ctx, b)
	q.mu.Lock()
	q.last = &rep
	q.mu.Unlock()
}
