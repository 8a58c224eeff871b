package main

import (
	"fmt"

	"github.com/imkonsowa/restaurant-qa/catalog"
	"github.com/spf13/cobra"
)

func newImportCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "import [catalog.json]",
		Short: "Load a catalog file into postgres",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			restaurants, err := catalog.NewFile(args[0]).Load(ctx)
			if err != nil {
				return err
			}

			pg, err := catalog.NewPostgres(cfg.Postgres.ConnStr())
			if err != nil {
				return fmt.Errorf("failed to connect to postgres: %w", err)
			}
			if err := pg.Migrate(ctx); err != nil {
				return fmt.Errorf("failed to migrate catalog tables: %w", err)
			}
			if err := pg.Import(ctx, restaurants); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "imported %d restaurants\n", len(restaurants))

			return nil
		},
	}
}
