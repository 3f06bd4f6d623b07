package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"retailetl/internal/quality"
	"retailetl/internal/warehouse/postgres"
)

func newQualityCmd() *cobra.Command {
	var dateFlag string

	cmd := &cobra.Command{
		Use:   "quality",
		Short: "Run post-load data quality checks for one date",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			cfg, cleanup, err := setup(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			date, err := parseDate(dateFlag)
			if err != nil {
				return err
			}

			repo, err := openWarehouse(ctx, cfg)
			if err != nil {
				return err
			}
			defer repo.Close()

			pg, ok := repo.(*postgres.Repo)
			if !ok {
				return fmt.Errorf("quality checks require the postgres warehouse, not %s", cfg.Warehouse.Kind)
			}

			results := quality.NewChecker(pg.Pool()).RunAll(ctx, date)
			if !quality.AllPassed(results) {
				return fmt.Errorf("quality: checks failed for %s", date.Format("2006-01-02"))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&dateFlag, "date", "", "check date YYYY-MM-DD (default: yesterday)")
	return cmd
}
