package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"retailetl/internal/views"
	"retailetl/internal/warehouse/postgres"
)

func newRefreshViewsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh-views",
		Short: "Refresh the reporting materialized views",
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

			pg, ok := repo.(*postgres.Repo)
			if !ok {
				return fmt.Errorf("materialized views require the postgres warehouse, not %s", cfg.Warehouse.Kind)
			}

			return views.RefreshAll(ctx, pg.Pool())
		},
	}
}
