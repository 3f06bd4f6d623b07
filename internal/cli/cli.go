// Package cli implements the retail-etl command tree.
package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"retailetl/internal/config"
	"retailetl/internal/logging"
	"retailetl/internal/metrics"
	"retailetl/internal/metrics/datadog"
	"retailetl/internal/warehouse"
	_ "retailetl/internal/warehouse/all"
)

var (
	cfgFile  string
	logLevel string
)

// version is stamped at build time via -ldflags.
var version = "dev"

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "retail-etl",
		Short:         "Daily retail sales transformation into the warehouse star schema",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ./retailetl.yaml)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level override (debug, info, warn, error)")

	root.AddCommand(
		newTransformCmd(),
		newInitCmd(),
		newQualityCmd(),
		newRefreshViewsCmd(),
		newVersionCmd(),
	)
	return root
}

// Execute runs the command tree and returns the process exit code.
func Execute() int {
	if err := newRootCmd().Execute(); err != nil {
		logging.Error().Err(err).Msg("command failed")
		return 1
	}
	return 0
}

// setup loads configuration and initializes logging and metrics. Every
// subcommand that touches infrastructure goes through it.
func setup(ctx context.Context) (*config.Config, func(), error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, err
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}

	logging.Init(logging.Config{Level: cfg.LogLevel})

	cleanup := func() {}
	if cfg.Metrics.Backend == "datadog" {
		b := datadog.NewBackend(ctx, datadog.Options{
			JobName:    "retail-etl",
			Tags:       cfg.Metrics.Tags,
			FlushEvery: time.Duration(cfg.Metrics.FlushSeconds) * time.Second,
		})
		metrics.SetBackend(b)
		cleanup = func() {
			if err := b.Close(); err != nil {
				logging.Warn().Err(err).Msg("metrics flush on shutdown failed")
			}
			metrics.SetBackend(nil)
		}
	}

	return cfg, cleanup, nil
}

func openWarehouse(ctx context.Context, cfg *config.Config) (warehouse.Repository, error) {
	repo, err := warehouse.New(ctx, warehouse.Config{
		Kind: cfg.Warehouse.Kind,
		DSN:  cfg.Warehouse.DSN,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s warehouse: %w", cfg.Warehouse.Kind, err)
	}
	return repo, nil
}

// parseDate parses a --date flag value; empty means yesterday, the natural
// target of a daily batch run.
func parseDate(s string) (time.Time, error) {
	if s == "" {
		now := time.Now().UTC()
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1), nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --date %q, want YYYY-MM-DD", s)
	}
	return t, nil
}
