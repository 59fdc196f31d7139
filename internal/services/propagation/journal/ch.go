// Package journal stores one ClickHouse row per publish attempt
package journal

import (
	"context"
	"time"

	perr "tariffsync/internal/platform/errors"
	"tariffsync/internal/platform/store"
	"tariffsync/internal/services/propagation/domain"
)

const table = "publish_journal"

var columns = []string{"cycle_id", "document_id", "rows", "ok", "error", "elapsed_ms", "published_at"}

// Entry is a journal row read back for the status endpoint
type Entry struct {
	CycleID     string    `json:"cycle_id"`
	DocumentID  string    `json:"document_id"`
	Rows        uint32    `json:"rows"`
	OK          bool      `json:"ok"`
	Error       string    `json:"error,omitempty"`
	ElapsedMs   float64   `json:"elapsed_ms"`
	PublishedAt time.Time `json:"published_at"`
}

// CH implements domain.Journal over store.Clickhouse
type CH struct{ ch store.Clickhouse }

var _ domain.Journal = (*CH)(nil)

// NewCH returns nil when ch is nil so callers can wire it unconditionally
func NewCH(ch store.Clickhouse) *CH {
	if ch == nil {
		return nil
	}
	return &CH{ch: ch}
}

// Record implements domain.Journal
func (j *CH) Record(ctx context.Context, attempts []domain.Attempt) error {
	if len(attempts) == 0 {
		return nil
	}
	rows := make([][]any, 0, len(attempts))
	for _, a := range attempts {
		var ok uint8
		msg := ""
		if a.OK() {
			ok = 1
		} else {
			msg = a.Err.Error()
		}
		rows = append(rows, []any{
			a.CycleID,
			a.DocumentID,
			uint32(a.Rows),
			ok,
			msg,
			float64(a.Elapsed) / float64(time.Millisecond),
			a.At.UTC(),
		})
	}
	if err := j.ch.Insert(ctx, table, columns, rows); err != nil {
		return perr.Wrap(err, perr.ErrorCodeDB, "insert publish journal")
	}
	return nil
}

// Recent returns the latest attempts, newest first
func (j *CH) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	rows, err := j.ch.Query(ctx, `
		SELECT cycle_id, document_id, rows, ok, error, elapsed_ms, published_at
		FROM publish_journal
		ORDER BY published_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeDB, "query publish journal")
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var ok uint8
		if err := rows.Scan(&e.CycleID, &e.DocumentID, &e.Rows, &ok, &e.Error, &e.ElapsedMs, &e.PublishedAt); err != nil {
			return nil, perr.Wrap(err, perr.ErrorCodeDB, "scan publish journal")
		}
		e.OK = ok == 1
		out = append(out, e)
	}
	return out, rows.Err()
}
