package service

import (
	"context"
	"errors"
	"time"

	"tariffsync/internal/core/decimal"
	"tariffsync/internal/core/normalize"
	perr "tariffsync/internal/platform/errors"
	"tariffsync/internal/platform/logger"
	"tariffsync/internal/services/tariffs/domain"
)

// Candidate builds the record to persist from one source item.
// The warehouse name is kept as sent, minus bytes Postgres rejects; a name with nothing visible fails
// the record. Malformed numbers become nil and are reported by source field name
func Candidate(dtTillMax time.Time, it domain.SnapshotItem) (domain.Record, []string, error) {
	rec := domain.Record{
		DtTillMax:     dtTillMax,
		WarehouseName: normalize.Sanitize(it.WarehouseName),
	}
	if normalize.WarehouseName(rec.WarehouseName) == "" {
		return rec, nil, perr.WithField(perr.Validationf("warehouse name is empty"), "warehouseName")
	}

	var malformed []string
	num := func(field, raw string) *float64 {
		f, err := decimal.Parse(raw)
		if errors.Is(err, decimal.ErrMalformed) {
			malformed = append(malformed, field)
		}
		return f
	}
	rec.DeliveryAndStorageExpr = num("boxDeliveryAndStorageExpr", it.DeliveryAndStorageExpr)
	rec.DeliveryBase = num("boxDeliveryBase", it.DeliveryBase)
	rec.DeliveryLiter = num("boxDeliveryLiter", it.DeliveryLiter)
	rec.StorageBase = num("boxStorageBase", it.StorageBase)
	rec.StorageLiter = num("boxStorageLiter", it.StorageLiter)
	return rec, malformed, nil
}

// lookalikes remembers the first raw name seen per comparison form within one snapshot
type lookalikes map[string]string

// check reports the earlier name when raw is a different spelling of an already seen warehouse
func (l lookalikes) check(raw string) (string, bool) {
	key := normalize.WarehouseName(raw)
	if key == "" {
		return "", false
	}
	prev, seen := l[key]
	if !seen {
		l[key] = raw
		return "", false
	}
	return prev, prev != raw
}

func logMalformed(ctx context.Context, it domain.SnapshotItem, fields []string) {
	logger.C(ctx).Warn().
		Str("warehouse", it.WarehouseName).
		Strs("fields", fields).
		Msg("malformed tariff numbers stored as NULL")
}
