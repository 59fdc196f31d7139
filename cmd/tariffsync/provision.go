package main

import (
	"fmt"

	"tariffsync/internal/modkit"
	"tariffsync/internal/platform/config"
	"tariffsync/internal/platform/metrics"
	propmod "tariffsync/internal/services/propagation/module"
	"tariffsync/internal/services/propagation/service"

	"github.com/spf13/cobra"
)

func newProvisionCommand() *cobra.Command {
	var count int
	cmd := &cobra.Command{
		Use:   "provision",
		Short: "Create target spreadsheets, register them and share them with USER_EMAIL",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			root := config.New()
			st, err := openStore(ctx, root)
			if err != nil {
				return err
			}
			defer closeStore(st)

			prop, err := propmod.New(ctx, modkit.FromStore(st, root, metrics.New()))
			if err != nil {
				return err
			}
			defer prop.Close()
			prov, err := prop.Provisioner()
			if err != nil {
				return err
			}

			ids, err := prov.Provision(ctx, count)
			for _, id := range ids {
				fmt.Fprintln(cmd.OutOrStdout(), id)
			}
			return err
		},
	}
	cmd.Flags().IntVarP(&count, "count", "n", 1, fmt.Sprintf("documents to create (1..%d)", service.MaxProvision))
	return cmd
}
