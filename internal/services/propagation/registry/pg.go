// Package registry provides the target document registries: Postgres table, static YAML file,
// and a process lifetime cache over either
package registry

import (
	"context"
	"strings"

	"tariffsync/internal/modkit/repokit"
	perr "tariffsync/internal/platform/errors"
	"tariffsync/internal/platform/store"
	"tariffsync/internal/services/propagation/domain"
)

// PG reads and writes google_tables
type PG struct{ q repokit.Queryer }

var (
	_ domain.Registry       = (*PG)(nil)
	_ domain.RegistryWriter = (*PG)(nil)
)

// NewPG binds the registry to q
func NewPG(q repokit.Queryer) *PG { return &PG{q: q} }

// Targets implements domain.Registry in registration order
func (r *PG) Targets(ctx context.Context) ([]string, error) {
	ids, err := store.Many(ctx, r.q, scanID, `SELECT spread_sheet_id FROM google_tables ORDER BY id`)
	if perr.IsUndefinedTable(err) {
		return nil, perr.Wrap(err, perr.ErrorCodeConfiguration, "google_tables is missing, run tariffsync migrate")
	}
	if err != nil {
		return nil, perr.FromPostgres(err, "list target documents")
	}
	return nonEmpty(ids, "google_tables")
}

// Register implements domain.RegistryWriter; registering twice is a no-op
func (r *PG) Register(ctx context.Context, documentID string) error {
	documentID = strings.TrimSpace(documentID)
	if documentID == "" {
		return perr.InvalidArgf("empty document id")
	}
	_, err := r.q.Exec(ctx, `
		INSERT INTO google_tables (spread_sheet_id) VALUES ($1)
		ON CONFLICT (spread_sheet_id) DO NOTHING`, documentID)
	return perr.FromPostgresf(err, "register document %s", documentID)
}

func scanID(row store.Row) (string, error) {
	var s string
	err := row.Scan(&s)
	return s, err
}

// nonEmpty drops blanks and repeats, keeping first-seen order; nothing left is a configuration error
func nonEmpty(ids []string, source string) ([]string, error) {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	if len(out) == 0 {
		return nil, perr.Configurationf("no target documents registered in %s", source)
	}
	return out, nil
}
