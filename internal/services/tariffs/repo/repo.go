// Package repo provides the tariffs_box repository
package repo

import (
	"context"
	"errors"
	"time"

	"tariffsync/internal/modkit/repokit"
	perr "tariffsync/internal/platform/errors"
	"tariffsync/internal/platform/store"
	"tariffsync/internal/services/tariffs/domain"
)

type (
	pg     struct{ q repokit.Queryer }
	binder struct{}
)

// NewPG constructs a repo binder for Postgres
func NewPG() repokit.Binder[domain.StorageRepo] { return binder{} }

// Bind implements repokit.Binder
func (binder) Bind(q repokit.Queryer) domain.StorageRepo { return &pg{q: q} }

const selectCols = `
	dt_till_max, warehouse_name,
	delivery_and_storage_expr::float8, delivery_base::float8, delivery_liter::float8,
	storage_base::float8, storage_liter::float8,
	created_at, updated_at`

// FindByKey implements domain.StorageRepo
func (r *pg) FindByKey(ctx context.Context, k domain.Key) (domain.Record, bool, error) {
	rec, err := store.One(ctx, r.q, scanRecord, `
		SELECT `+selectCols+`
		FROM tariffs_box
		WHERE dt_till_max = $1 AND warehouse_name = $2
		FOR UPDATE`, dateArg(k.DtTillMax), k.WarehouseName)
	if errors.Is(err, perr.ErrNotFound) {
		return domain.Record{}, false, nil
	}
	if err != nil {
		return domain.Record{}, false, perr.FromPostgresf(err, "find tariff %s", k.WarehouseName)
	}
	return rec, true, nil
}

// Insert implements domain.StorageRepo
func (r *pg) Insert(ctx context.Context, rec domain.Record) error {
	err := store.ExecOne(ctx, r.q, `
		INSERT INTO tariffs_box
			(dt_till_max, warehouse_name,
			 delivery_and_storage_expr, delivery_base, delivery_liter, storage_base, storage_liter)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		dateArg(rec.DtTillMax), rec.WarehouseName,
		rec.DeliveryAndStorageExpr, rec.DeliveryBase, rec.DeliveryLiter, rec.StorageBase, rec.StorageLiter,
	)
	if err != nil {
		return perr.FromPostgresf(err, "insert tariff %s", rec.WarehouseName)
	}
	return nil
}

// Update implements domain.StorageRepo
func (r *pg) Update(ctx context.Context, rec domain.Record) error {
	err := store.ExecOne(ctx, r.q, `
		UPDATE tariffs_box SET
			delivery_and_storage_expr = $3,
			delivery_base = $4,
			delivery_liter = $5,
			storage_base = $6,
			storage_liter = $7,
			updated_at = now()
		WHERE dt_till_max = $1 AND warehouse_name = $2`,
		dateArg(rec.DtTillMax), rec.WarehouseName,
		rec.DeliveryAndStorageExpr, rec.DeliveryBase, rec.DeliveryLiter, rec.StorageBase, rec.StorageLiter,
	)
	if err != nil {
		return perr.FromPostgresf(err, "update tariff %s", rec.WarehouseName)
	}
	return nil
}

// Count implements domain.StorageRepo
func (r *pg) Count(ctx context.Context) (int64, error) {
	n, err := store.Scalar[int64](ctx, r.q, `SELECT count(*) FROM tariffs_box`)
	if err != nil {
		return 0, perr.FromPostgres(err, "count tariffs")
	}
	return n, nil
}

// ByDate implements domain.StorageRepo
func (r *pg) ByDate(ctx context.Context, dtTillMax time.Time) ([]domain.Record, error) {
	out, err := store.Many(ctx, r.q, scanRecord, `
		SELECT `+selectCols+`
		FROM tariffs_box
		WHERE dt_till_max = $1
		ORDER BY warehouse_name`, dateArg(dtTillMax))
	if err != nil {
		return nil, perr.FromPostgres(err, "list tariffs by date")
	}
	return out, nil
}

func scanRecord(row store.Row) (domain.Record, error) {
	var rec domain.Record
	err := row.Scan(
		&rec.DtTillMax, &rec.WarehouseName,
		&rec.DeliveryAndStorageExpr, &rec.DeliveryBase, &rec.DeliveryLiter,
		&rec.StorageBase, &rec.StorageLiter,
		&rec.CreatedAt, &rec.UpdatedAt,
	)
	rec.DtTillMax = rec.DtTillMax.UTC()
	return rec, err
}

// dateArg keeps only the calendar part so a date column never sees a zone shift
func dateArg(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
