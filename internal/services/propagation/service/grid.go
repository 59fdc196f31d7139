package service

import (
	"time"

	"tariffsync/internal/core/decimal"
	"tariffsync/internal/services/propagation/domain"
	tdomain "tariffsync/internal/services/tariffs/domain"
)

// StampLayout is how the update time reads in a sheet cell
const StampLayout = "2006-01-02 15:04:05"

// Grid renders the header plus one row per record in batch order.
// Absent numbers are empty cells; every row carries the same update stamp
func Grid(records []tdomain.Record, stamp time.Time, loc *time.Location) [][]string {
	if loc == nil {
		loc = time.UTC
	}
	ts := stamp.In(loc).Format(StampLayout)
	out := make([][]string, 0, len(records)+1)
	out = append(out, append([]string(nil), domain.Header...))
	for _, r := range records {
		out = append(out, []string{
			r.DtTillMax.Format("2006-01-02"),
			decimal.Format(r.DeliveryAndStorageExpr),
			decimal.Format(r.DeliveryBase),
			decimal.Format(r.DeliveryLiter),
			decimal.Format(r.StorageBase),
			decimal.Format(r.StorageLiter),
			r.WarehouseName,
			ts,
		})
	}
	return out
}
