package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"tariffsync/internal/modkit/repokit"
	"tariffsync/internal/platform/store"
	"tariffsync/internal/services/tariffs/domain"

	"github.com/jackc/pgx/v5/pgconn"
)

// memDB is a TxRunner whose only job is to count transactions
type memDB struct {
	mu  sync.Mutex
	txs int
}

func (m *memDB) Exec(context.Context, string, ...any) (store.CommandTag, error) { return nil, nil }
func (m *memDB) Query(context.Context, string, ...any) (store.Rows, error)      { return nil, nil }
func (m *memDB) QueryRow(context.Context, string, ...any) store.Row             { return nil }
func (m *memDB) Tx(_ context.Context, fn func(q repokit.Queryer) error) error {
	m.mu.Lock()
	m.txs++
	m.mu.Unlock()
	return fn(m)
}

// memRepo keeps rows keyed like the unique index; created/updated stamps come from clock
type memRepo struct {
	mu      sync.Mutex
	rows    map[domain.Key]domain.Record
	order   []domain.Key
	clock   func() time.Time
	failOn  map[string]error
	raceOn  map[string]bool
	once    map[string]error
	inserts int
	updates int
}

func newMemRepo(clock func() time.Time) *memRepo {
	return &memRepo{rows: map[domain.Key]domain.Record{}, clock: clock, failOn: map[string]error{}, raceOn: map[string]bool{}, once: map[string]error{}}
}

func (r *memRepo) binder() repokit.Binder[domain.StorageRepo] {
	return repokit.BindFunc[domain.StorageRepo](func(repokit.Queryer) domain.StorageRepo { return r })
}

func (r *memRepo) FindByKey(_ context.Context, k domain.Key) (domain.Record, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.failOn[k.WarehouseName]; err != nil {
		return domain.Record{}, false, err
	}
	if err := r.once[k.WarehouseName]; err != nil {
		delete(r.once, k.WarehouseName)
		return domain.Record{}, false, err
	}
	rec, ok := r.rows[k]
	return rec, ok, nil
}

func (r *memRepo) Insert(_ context.Context, rec domain.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.raceOn[rec.WarehouseName] {
		// another writer got there between our lookup and insert
		delete(r.raceOn, rec.WarehouseName)
		rec.CreatedAt = r.clock()
		r.rows[rec.Key()] = rec
		r.order = append(r.order, rec.Key())
		return &pgconn.PgError{Code: "23505", Message: "duplicate key value violates unique constraint"}
	}
	if _, dup := r.rows[rec.Key()]; dup {
		return &pgconn.PgError{Code: "23505"}
	}
	r.inserts++
	rec.CreatedAt = r.clock()
	rec.UpdatedAt = nil
	r.rows[rec.Key()] = rec
	r.order = append(r.order, rec.Key())
	return nil
}

func (r *memRepo) Update(_ context.Context, rec domain.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.rows[rec.Key()]
	if !ok {
		return errors.New("no row")
	}
	r.updates++
	now := r.clock()
	rec.CreatedAt = cur.CreatedAt
	rec.UpdatedAt = &now
	r.rows[rec.Key()] = rec
	return nil
}

func (r *memRepo) Count(context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.rows)), nil
}

func (r *memRepo) ByDate(_ context.Context, d time.Time) ([]domain.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Record
	for _, k := range r.order {
		if k.DtTillMax.Equal(d) {
			out = append(out, r.rows[k])
		}
	}
	return out, nil
}

type fakeSource struct {
	snap  domain.Snapshot
	err   error
	calls []time.Time
}

func (f *fakeSource) Fetch(_ context.Context, day time.Time) (domain.Snapshot, error) {
	f.calls = append(f.calls, day)
	return f.snap, f.err
}

type fakePublisher struct {
	batches [][]domain.Record
	ids     []string
	err     error
}

func (f *fakePublisher) Submit(_ context.Context, id string, batch []domain.Record) error {
	if f.err != nil {
		return f.err
	}
	f.ids = append(f.ids, id)
	f.batches = append(f.batches, batch)
	return nil
}
