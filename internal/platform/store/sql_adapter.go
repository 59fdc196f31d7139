package store

import (
	"context"
	"errors"
	"time"

	"tariffsync/internal/platform/store/pg"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// pgAdapter wraps pg.PG and implements RowQuerier + TxRunner
type pgAdapter struct {
	p     *pg.PG
	trace traceFn
}

// traceFn reports one finished statement to the configured tracer
type traceFn func(ctx context.Context, sql string, args []any, start time.Time, err error)

func newTrace(t pg.QueryTracer, slowMs int) traceFn {
	if t == nil {
		return func(context.Context, string, []any, time.Time, error) {}
	}
	slowUS := int64(slowMs) * 1000
	return func(ctx context.Context, sql string, args []any, start time.Time, err error) {
		elapsedUS := time.Since(start).Microseconds()
		t.OnQuery(ctx, pg.QueryEvent{
			SQL:       sql,
			Args:      args,
			ElapsedUS: elapsedUS,
			Err:       err,
			Slow:      slowUS >= 0 && elapsedUS >= slowUS,
		})
	}
}

func newPGAdapter(p *pg.PG) *pgAdapter {
	return &pgAdapter{p: p, trace: newTrace(p.Tracer, p.SlowMs)}
}

func (a *pgAdapter) Ping(ctx context.Context) error {
	if a == nil || a.p == nil {
		return errors.New("pg: nil adapter")
	}
	return a.p.Pool.Ping(ctx)
}

func (a *pgAdapter) Close() error { a.p.Close(); return nil }

func (a *pgAdapter) Exec(ctx context.Context, sql string, args ...any) (CommandTag, error) {
	return execWith(ctx, a.p.Pool, a.trace, sql, args)
}

func (a *pgAdapter) Query(ctx context.Context, sql string, args ...any) (Rows, error) {
	return queryWith(ctx, a.p.Pool, a.trace, sql, args)
}

func (a *pgAdapter) QueryRow(ctx context.Context, sql string, args ...any) Row {
	return queryRowWith(ctx, a.p.Pool, a.trace, sql, args)
}

// Tx runs fn in a read-committed transaction; any error from fn rolls it back
func (a *pgAdapter) Tx(ctx context.Context, fn func(q RowQuerier) error) error {
	tx, err := a.p.Pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return err
	}
	if err := fn(txQuerier{tx: tx, trace: a.trace}); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

// pgxQuerier is the surface shared by *pgxpool.Pool and pgx.Tx
type pgxQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func execWith(ctx context.Context, q pgxQuerier, trace traceFn, sql string, args []any) (CommandTag, error) {
	start := time.Now()
	ct, err := q.Exec(ctx, sql, args...)
	trace(ctx, sql, args, start, err)
	return tag{ct}, err
}

func queryWith(ctx context.Context, q pgxQuerier, trace traceFn, sql string, args []any) (Rows, error) {
	start := time.Now()
	rs, err := q.Query(ctx, sql, args...)
	trace(ctx, sql, args, start, err)
	if err != nil {
		return nil, err
	}
	return rows{r: rs}, nil
}

// queryRowWith traces after Scan so the scan error is part of the event
func queryRowWith(ctx context.Context, q pgxQuerier, trace traceFn, sql string, args []any) Row {
	start := time.Now()
	return row{
		r: q.QueryRow(ctx, sql, args...),
		after: func(scanErr error) {
			trace(ctx, sql, args, start, scanErr)
		},
	}
}

type row struct {
	r     pgx.Row
	after func(error)
}

func (x row) Scan(dst ...any) error {
	err := x.r.Scan(dst...)
	if x.after != nil {
		x.after(err)
	}
	return err
}

type rows struct{ r pgx.Rows }

func (x rows) Next() bool            { return x.r.Next() }
func (x rows) Scan(dst ...any) error { return x.r.Scan(dst...) }
func (x rows) Err() error            { return x.r.Err() }
func (x rows) Close()                { x.r.Close() }
func (x rows) Columns() []string {
	f := x.r.FieldDescriptions()
	out := make([]string, len(f))
	for i := range f {
		out[i] = f[i].Name
	}
	return out
}

type tag struct{ t pgconn.CommandTag }

func (t tag) String() string      { return t.t.String() }
func (t tag) RowsAffected() int64 { return t.t.RowsAffected() }

// txQuerier satisfies RowQuerier inside a Tx with the same tracing as the pool
type txQuerier struct {
	tx    pgx.Tx
	trace traceFn
}

func (t txQuerier) Exec(ctx context.Context, sql string, args ...any) (CommandTag, error) {
	return execWith(ctx, t.tx, t.trace, sql, args)
}

func (t txQuerier) Query(ctx context.Context, sql string, args ...any) (Rows, error) {
	return queryWith(ctx, t.tx, t.trace, sql, args)
}

func (t txQuerier) QueryRow(ctx context.Context, sql string, args ...any) Row {
	return queryRowWith(ctx, t.tx, t.trace, sql, args)
}
