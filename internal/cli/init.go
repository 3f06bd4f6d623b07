package cli

import (
	"github.com/spf13/cobra"

	"retailetl/internal/logging"
	"retailetl/internal/views"
	"retailetl/internal/warehouse/postgres"
)

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the star schema, seed reference data and build reporting views",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			cfg, cleanup, err := setup(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			repo, err := openWarehouse(ctx, cfg)
			if err != nil {
				return err
			}
			defer repo.Close()

			if err := repo.EnsureSchema(ctx); err != nil {
				return err
			}
			logging.Info().Str("warehouse", cfg.Warehouse.Kind).Msg("star schema ready")

			// Source identifiers double as retailer codes; seeding them
			// keeps dim_retailer read-only during transform runs.
			if err := repo.SeedRetailers(ctx, cfg.Sources); err != nil {
				return err
			}
			logging.Info().Strs("retailers", cfg.Sources).Msg("retailer dimension seeded")

			// Materialized views are Postgres-only.
			if pg, ok := repo.(*postgres.Repo); ok {
				if err := views.EnsureAll(ctx, pg.Pool()); err != nil {
					return err
				}
				logging.Info().Int("views", len(views.Names)).Msg("reporting views ready")
			}
			return nil
		},
	}
}
