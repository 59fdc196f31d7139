// Package modkit provides module wiring and core deps
package modkit

import (
	"tariffsync/internal/modkit/repokit"
	"tariffsync/internal/platform/config"
	"tariffsync/internal/platform/logger"
	"tariffsync/internal/platform/metrics"
	"tariffsync/internal/platform/store"

	"github.com/redis/go-redis/v9"
)

// Deps holds core dependencies passed to modules
// PG is required by the tariffs and propagation modules; CH, RDS are optional and may be nil
type Deps struct {
	Log     logger.Logger
	Cfg     config.Conf
	PG      repokit.TxRunner
	CH      store.Clickhouse
	RDS     redis.UniversalClient
	Metrics *metrics.Metrics
}

// FromStore copies the opened backends into a Deps
func FromStore(s *store.Store, cfg config.Conf, m *metrics.Metrics) Deps {
	return Deps{Log: s.Log, Cfg: cfg, PG: s.PG, CH: s.CH, RDS: s.RDS, Metrics: m}
}
