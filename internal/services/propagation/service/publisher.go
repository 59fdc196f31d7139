package service

import (
	"context"
	"time"

	perr "tariffsync/internal/platform/errors"
	"tariffsync/internal/platform/logger"
	"tariffsync/internal/platform/metrics"
	"tariffsync/internal/services/propagation/domain"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// PublisherConfig holds fan-out settings
type PublisherConfig struct {
	Sheet    string
	Location *time.Location
}

// Publisher writes a batch to every registered target, one at a time in registry order.
// It never retries; a failed target is logged, counted and skipped
type Publisher struct {
	Docs     domain.DocumentClient
	Registry domain.Registry
	Journal  domain.Journal // optional
	Stream   domain.Stream  // optional
	Metrics  *metrics.Metrics
	Cfg      PublisherConfig

	now    func() time.Time
	tracer trace.Tracer
}

var _ domain.PublisherPort = (*Publisher)(nil)

// NewPublisher constructs a Publisher; docs and registry are required
func NewPublisher(docs domain.DocumentClient, reg domain.Registry, m *metrics.Metrics, cfg PublisherConfig) *Publisher {
	if docs == nil {
		panic("propagation.Publisher requires a document client")
	}
	if reg == nil {
		panic("propagation.Publisher requires a registry")
	}
	if cfg.Sheet == "" {
		cfg.Sheet = domain.DefaultSheet
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Publisher{
		Docs: docs, Registry: reg, Metrics: m, Cfg: cfg,
		now:    time.Now,
		tracer: otel.Tracer("tariffsync/propagation"),
	}
}

// WithJournal attaches an attempt journal
func (p *Publisher) WithJournal(j domain.Journal) *Publisher {
	if j != nil {
		p.Journal = j
	}
	return p
}

// WithStream attaches a broker mirror
func (p *Publisher) WithStream(s domain.Stream) *Publisher {
	if s != nil {
		p.Stream = s
	}
	return p
}

// Publish implements domain.PublisherPort
func (p *Publisher) Publish(ctx context.Context, b domain.Batch) domain.Report {
	ctx = logger.WithCycle(ctx, b.CycleID)
	ctx, span := p.tracer.Start(ctx, "propagation.publish", trace.WithAttributes(
		attribute.String("cycle.id", b.CycleID),
		attribute.Int("batch.rows", len(b.Records)),
	))
	defer span.End()

	rep := domain.Report{CycleID: b.CycleID}
	log := logger.C(ctx)

	targets, err := p.Registry.Targets(ctx)
	if err != nil {
		log.Error().Err(err).Msg("no targets to publish to")
		span.RecordError(err)
		span.SetStatus(codes.Error, "registry")
		return rep
	}

	grid := Grid(b.Records, p.now(), p.Cfg.Location)
	for _, id := range targets {
		rep.Attempts = append(rep.Attempts, p.publishOne(ctx, b, id, grid))
	}

	failed := rep.Failed()
	span.SetAttributes(attribute.Int("targets", len(targets)), attribute.Int("targets.failed", failed))
	if failed > 0 {
		span.SetStatus(codes.Error, "some targets failed")
	}
	log.Info().Int("targets", len(targets)).Int("failed", failed).Int("rows", len(b.Records)).Msg("batch published")

	if p.Journal != nil {
		if err := p.Journal.Record(ctx, rep.Attempts); err != nil {
			log.Warn().Err(err).Msg("publish journal write failed")
		}
	}
	if p.Stream != nil {
		if err := p.Stream.Publish(ctx, b); err != nil {
			log.Warn().Err(err).Msg("snapshot stream publish failed")
		}
	}
	return rep
}

func (p *Publisher) publishOne(ctx context.Context, b domain.Batch, id string, grid [][]string) domain.Attempt {
	ctx = logger.WithTarget(ctx, id)
	start := p.now()
	err := p.Docs.WriteRegion(ctx, id, p.Cfg.Sheet, grid)
	elapsed := p.now().Sub(start)
	p.Metrics.ObservePublish(elapsed)

	a := domain.Attempt{CycleID: b.CycleID, DocumentID: id, Rows: len(b.Records), Elapsed: elapsed, At: start}
	if err != nil {
		err = publishErr(err, "write target")
		a.Err = err
		p.Metrics.IncPublish("failed")
		logger.C(ctx).Error().Err(err).Dur("elapsed", elapsed).Msg("target write failed")
		return a
	}
	p.Metrics.IncPublish("ok")
	logger.C(ctx).Debug().Dur("elapsed", elapsed).Msg("target written")
	return a
}

// publishErr keeps typed errors (a 403 stays a configuration problem) and wraps the rest
func publishErr(err error, msg string) error {
	if _, ok := perr.As(err); ok {
		return err
	}
	return perr.Wrap(err, perr.ErrorCodePublish, msg)
}
