// Package schema bootstraps the relational and columnar tables the pipeline uses
package schema

import (
	"context"
	_ "embed"
	"strings"

	perr "tariffsync/internal/platform/errors"
	"tariffsync/internal/platform/store"
)

//go:embed schema.sql
var pgSQL string

//go:embed journal.sql
var chSQL string

// Statements splits an embedded script into individual statements
func Statements(script string) []string {
	var out []string
	for part := range strings.SplitSeq(script, ";") {
		if s := strings.TrimSpace(part); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// ApplyPG creates tariffs_box, google_tables and their indexes in one transaction.
// Every statement is IF NOT EXISTS so reruns are no-ops
func ApplyPG(ctx context.Context, tx store.TxRunner) error {
	err := tx.Tx(ctx, func(q store.RowQuerier) error {
		for _, stmt := range Statements(pgSQL) {
			if _, err := q.Exec(ctx, stmt); err != nil {
				return err
			}
		}
		return nil
	})
	return perr.FromPostgres(err, "apply postgres schema")
}

// ApplyCH creates the publish journal table
func ApplyCH(ctx context.Context, ch store.Clickhouse) error {
	if ch == nil {
		return nil
	}
	for _, stmt := range Statements(chSQL) {
		if err := ch.Exec(ctx, stmt); err != nil {
			return perr.Wrap(err, perr.ErrorCodeDB, "apply clickhouse schema")
		}
	}
	return nil
}
