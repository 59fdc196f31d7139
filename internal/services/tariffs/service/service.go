// Package service reconciles source snapshots into tariffs_box and hands the batch to fan-out
package service

import (
	"context"
	"time"

	"tariffsync/internal/modkit/repokit"
	perr "tariffsync/internal/platform/errors"
	"tariffsync/internal/platform/logger"
	"tariffsync/internal/platform/metrics"
	"tariffsync/internal/services/tariffs/domain"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Config holds the tariffs service options
type Config struct {
	// Location decides which calendar day "today" is for the source query
	Location *time.Location
}

// Service implements domain.CyclePort and domain.QueryPort
type Service struct {
	DB        repokit.TxRunner
	Binder    repokit.Binder[domain.StorageRepo]
	Source    domain.SourcePort
	Publisher domain.PublisherPort
	Metrics   *metrics.Metrics
	Cfg       Config

	now    func() time.Time
	newID  func() string
	tracer trace.Tracer
}

// New constructs the service; db, binder and source are required
func New(
	db repokit.TxRunner,
	binder repokit.Binder[domain.StorageRepo],
	src domain.SourcePort,
	pub domain.PublisherPort,
	m *metrics.Metrics,
	cfg Config,
) *Service {
	if db == nil {
		panic("tariffs.Service requires a non nil TxRunner")
	}
	if binder == nil {
		panic("tariffs.Service requires a non nil Repo binder")
	}
	if src == nil {
		panic("tariffs.Service requires a non nil source")
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	return &Service{
		DB: db, Binder: binder, Source: src, Publisher: pub, Metrics: m, Cfg: cfg,
		now:    time.Now,
		newID:  func() string { return uuid.NewString() },
		tracer: otel.Tracer("tariffsync/tariffs"),
	}
}

// RunCycle implements domain.CyclePort: fetch, reconcile record by record, queue the batch.
// A returned error means the cycle produced nothing to publish
func (s *Service) RunCycle(ctx context.Context) (domain.CycleResult, error) {
	res := domain.CycleResult{CycleID: s.newID(), StartedAt: s.now()}
	ctx = logger.WithCycle(ctx, res.CycleID)
	ctx, span := s.tracer.Start(ctx, "tariffs.cycle", trace.WithAttributes(attribute.String("cycle.id", res.CycleID)))
	defer span.End()

	err := s.runCycle(ctx, &res)
	res.Elapsed = s.now().Sub(res.StartedAt)
	if err != nil {
		res.Error = err.Error()
		span.RecordError(err)
		span.SetStatus(codes.Error, "cycle failed")
	}
	return res, err
}

func (s *Service) runCycle(ctx context.Context, res *domain.CycleResult) error {
	log := logger.C(ctx)

	snap, err := s.fetch(ctx)
	if err != nil {
		log.Error().Err(err).Msg("tariff fetch failed, cycle abandoned")
		return err
	}
	res.DtTillMax = snap.DtTillMax.Format("2006-01-02")
	res.Fetched = len(snap.Items)

	batch := s.reconcile(ctx, snap, res)
	log.Info().
		Str("dt_till_max", res.DtTillMax).
		Int("fetched", res.Fetched).
		Int("inserted", res.Inserted).
		Int("updated", res.Updated).
		Int("failed", res.Failed).
		Msgf("saved %d tariffs", res.Saved())

	if len(batch) == 0 {
		if res.Fetched > 0 {
			return perr.New(perr.ErrorCodePersistence, "no tariff could be saved, publish skipped")
		}
		log.Warn().Msg("source returned no warehouses, publish skipped")
		return nil
	}
	if s.Publisher == nil {
		return nil
	}
	if err := s.Publisher.Submit(ctx, res.CycleID, batch); err != nil {
		log.Error().Err(err).Msg("propagation queue refused batch")
		return perr.Wrap(err, perr.ErrorCodePublish, "queue batch")
	}
	res.Queued = true
	return nil
}

func (s *Service) fetch(ctx context.Context) (domain.Snapshot, error) {
	ctx, span := s.tracer.Start(ctx, "tariffs.fetch")
	defer span.End()

	day := s.now().In(s.Cfg.Location)
	snap, err := s.Source.Fetch(ctx, day)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch failed")
		if _, ok := perr.As(err); ok {
			return domain.Snapshot{}, err
		}
		return domain.Snapshot{}, perr.Wrap(err, perr.ErrorCodeTransport, "fetch tariffs")
	}
	span.SetAttributes(attribute.Int("tariffs.items", len(snap.Items)))
	return snap, nil
}

// reconcile upserts every item in source order and returns the persisted candidates.
// A failed record is logged and left out of the batch
func (s *Service) reconcile(ctx context.Context, snap domain.Snapshot, res *domain.CycleResult) []domain.Record {
	ctx, span := s.tracer.Start(ctx, "tariffs.reconcile")
	defer span.End()

	batch := make([]domain.Record, 0, len(snap.Items))
	seen := lookalikes{}
	for _, it := range snap.Items {
		rec, malformed, err := Candidate(snap.DtTillMax, it)
		if prev, ok := seen.check(rec.WarehouseName); ok {
			logger.C(ctx).Warn().
				Str("warehouse", rec.WarehouseName).
				Str("lookalike", prev).
				Msg("warehouse names differ only by spacing or invisible characters, stored as separate keys")
		}
		if len(malformed) > 0 {
			res.Malformed++
			logMalformed(ctx, it, malformed)
		}
		if err == nil {
			var out domain.Outcome
			out, err = s.Upsert(ctx, rec)
			switch out {
			case domain.OutcomeInserted:
				res.Inserted++
			case domain.OutcomeUpdated:
				res.Updated++
			}
		}
		if err != nil {
			res.Failed++
			s.Metrics.IncUpsert(string(domain.OutcomeFailed))
			logger.C(ctx).Error().Err(err).Str("warehouse", it.WarehouseName).Msg("tariff upsert failed")
			continue
		}
		batch = append(batch, rec)
	}
	span.SetAttributes(
		attribute.Int("tariffs.saved", len(batch)),
		attribute.Int("tariffs.failed", res.Failed),
	)
	return batch
}

// Upsert writes one record in its own transaction: lock by natural key, then update or insert.
// A unique violation means another writer inserted the key first, so the write is retried once as an update.
// Serialization failures and deadlocks get the same single retry
func (s *Service) Upsert(ctx context.Context, rec domain.Record) (domain.Outcome, error) {
	out, err := s.upsertOnce(ctx, rec)
	if err != nil && (perr.IsDuplicateKey(err) || perr.IsRetryable(err)) {
		logger.C(ctx).Debug().Err(err).Str("warehouse", rec.WarehouseName).Msg("upsert contended, retrying once")
		out, err = s.upsertOnce(ctx, rec)
	}
	if err != nil {
		return domain.OutcomeFailed, perr.Persistence(err, "upsert tariff "+rec.WarehouseName)
	}
	s.Metrics.IncUpsert(string(out))
	return out, nil
}

func (s *Service) upsertOnce(ctx context.Context, rec domain.Record) (domain.Outcome, error) {
	var out domain.Outcome
	err := repokit.InTx(ctx, s.DB, s.Binder, func(repo domain.StorageRepo) error {
		_, found, err := repo.FindByKey(ctx, rec.Key())
		if err != nil {
			return err
		}
		if found {
			out = domain.OutcomeUpdated
			return repo.Update(ctx, rec)
		}
		out = domain.OutcomeInserted
		return repo.Insert(ctx, rec)
	})
	return out, err
}

// Count implements domain.QueryPort
func (s *Service) Count(ctx context.Context) (int64, error) {
	return s.Binder.Bind(s.DB).Count(ctx)
}

// ByDate implements domain.QueryPort
func (s *Service) ByDate(ctx context.Context, dtTillMax time.Time) ([]domain.Record, error) {
	return s.Binder.Bind(s.DB).ByDate(ctx, dtTillMax)
}
