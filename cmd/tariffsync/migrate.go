package main

import (
	"tariffsync/internal/platform/config"
	"tariffsync/internal/platform/logger"
	"tariffsync/internal/platform/store/schema"

	"github.com/spf13/cobra"
)

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the Postgres tables and, when configured, the ClickHouse journal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			st, err := openStore(ctx, config.New())
			if err != nil {
				return err
			}
			defer closeStore(st)

			if err := schema.ApplyPG(ctx, st.PG); err != nil {
				return err
			}
			if err := schema.ApplyCH(ctx, st.CH); err != nil {
				return err
			}
			logger.Get().Info().Bool("clickhouse", st.CH != nil).Msg("schema applied")
			return nil
		},
	}
}
