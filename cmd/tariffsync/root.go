package main

import (
	"context"

	"tariffsync/internal/core/version"
	"tariffsync/internal/platform/config"
	"tariffsync/internal/platform/logger"
	"tariffsync/internal/platform/store"

	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "tariffsync",
		Short:         "Warehouse box tariff sync",
		Version:       version.Info().String(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			logger.Init(logger.FromEnv())
		},
	}
	cmd.AddCommand(newServeCommand(), newProvisionCommand(), newMigrateCommand())
	return cmd
}

// openStore opens Postgres (required) plus ClickHouse and Redis when their URLs are set
func openStore(ctx context.Context, root config.Conf) (*store.Store, error) {
	pgCfg := root.Prefix("SERVICE_PGSQL_")
	chCfg := root.Prefix("SERVICE_CLICKHOUSE_")
	rdsCfg := root.Prefix("SERVICE_REDIS_")

	return store.Open(ctx, store.Config{
		AppName: version.Info().Service,
		PG: store.PGConfig{
			Enabled:     true,
			URL:         pgCfg.MustString("DBURL"),
			MaxConns:    int32(pgCfg.MayInt("MAX_CONNS", 4)),
			SlowQueryMs: pgCfg.MayInt("SLOW_MS", 500),
			LogSQL:      pgCfg.MayBool("LOG_SQL", false),
		},
		CH: store.CHConfig{
			Enabled: chCfg.Has("DBURL"),
			URL:     chCfg.MayString("DBURL", ""),
		},
		RDS: store.RedisConfig{
			Enabled: rdsCfg.Has("URL"),
			URL:     rdsCfg.MayString("URL", ""),
		},
	}, store.WithLogger(*logger.Get()))
}

func closeStore(st *store.Store) {
	if err := st.Close(context.Background()); err != nil {
		logger.Get().Error().Err(err).Msg("failed to close store")
	}
}
