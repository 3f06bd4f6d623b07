package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"retailetl/internal/objectstore"
	"retailetl/internal/starschema"
)

func newTransformCmd() *cobra.Command {
	var dateFlag string

	cmd := &cobra.Command{
		Use:   "transform",
		Short: "Load one day of raw sales partitions into the star schema",
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

			store, err := objectstore.New(ctx, objectstore.Config{
				Kind:     cfg.Store.Kind,
				Region:   cfg.Store.Region,
				Endpoint: cfg.Store.Endpoint,
			})
			if err != nil {
				return err
			}

			proc := starschema.NewProcessor(repo, store, cfg.Store.RawBucket, cfg.Store.ProcessedBucket, cfg.Sources)
			sum, err := proc.ProcessDate(ctx, date)
			if err != nil {
				return err
			}

			if sum.FilesFailed > 0 {
				return fmt.Errorf("transform: %d partition file(s) failed", sum.FilesFailed)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&dateFlag, "date", "", "run date YYYY-MM-DD (default: yesterday)")
	return cmd
}
