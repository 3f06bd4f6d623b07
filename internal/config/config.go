// Package config handles configuration for retailetl.
//
// Configuration is resolved from (highest precedence first) CLI flags,
// environment variables prefixed RETAILETL_, a config file, and defaults.
// Components never read process-wide environment state directly; the loaded
// Config is injected at construction so every piece stays testable in
// isolation.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all configuration for retailetl.
type Config struct {
	// LogLevel controls logging verbosity (debug, info, warn, error).
	LogLevel string `mapstructure:"log_level"`

	// Warehouse configures the relational backend the star schema lives in.
	Warehouse WarehouseConfig `mapstructure:"warehouse"`

	// Store configures the object storage the raw and processed payloads
	// live in.
	Store StoreConfig `mapstructure:"store"`

	// Sources is the fixed set of source identifiers discovery enumerates.
	Sources []string `mapstructure:"sources"`

	// Metrics configures the optional metrics backend.
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// WarehouseConfig selects and configures a warehouse backend.
type WarehouseConfig struct {
	// Kind is the backend kind: "postgres", "sqlite" or "mssql".
	Kind string `mapstructure:"kind"`

	// DSN is the backend connection string. Environment references like
	// ${POSTGRES_PASSWORD} are expanded at load time.
	DSN string `mapstructure:"dsn"`
}

// StoreConfig configures the object storage boundary.
type StoreConfig struct {
	// Kind is the store kind: "s3" or "memory".
	Kind string `mapstructure:"kind"`

	// Region is the AWS region used by the s3 store.
	Region string `mapstructure:"region"`

	// Endpoint optionally overrides the S3 endpoint (MinIO, localstack).
	Endpoint string `mapstructure:"endpoint"`

	// RawBucket holds the raw ingestion payloads.
	RawBucket string `mapstructure:"raw_bucket"`

	// ProcessedBucket receives validated records for downstream audit/reuse.
	// Empty means processed output is disabled (non-fatal).
	ProcessedBucket string `mapstructure:"processed_bucket"`
}

// MetricsConfig configures the metrics backend.
type MetricsConfig struct {
	// Backend is "datadog" or "none".
	Backend string `mapstructure:"backend"`

	// Tags are extra tags attached to every metric, "key:value" form.
	Tags []string `mapstructure:"tags"`

	// FlushSeconds is the Datadog submit interval.
	FlushSeconds int `mapstructure:"flush_seconds"`
}

// Default returns the built-in defaults.
func Default() Config {
	return Config{
		LogLevel: "info",
		Warehouse: WarehouseConfig{
			Kind: "postgres",
		},
		Store: StoreConfig{
			Kind:   "s3",
			Region: "us-east-1",
		},
		Sources: []string{"retailer_1", "retailer_2", "retailer_3"},
		Metrics: MetricsConfig{
			Backend:      "none",
			FlushSeconds: 60,
		},
	}
}

// Load reads configuration from the given file (optional), the environment
// and defaults, and returns the merged Config.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()

	def := Default()
	v.SetDefault("log_level", def.LogLevel)
	v.SetDefault("warehouse.kind", def.Warehouse.Kind)
	v.SetDefault("warehouse.dsn", "")
	v.SetDefault("store.kind", def.Store.Kind)
	v.SetDefault("store.region", def.Store.Region)
	v.SetDefault("store.endpoint", "")
	v.SetDefault("store.raw_bucket", "")
	v.SetDefault("store.processed_bucket", "")
	v.SetDefault("sources", def.Sources)
	v.SetDefault("metrics.backend", def.Metrics.Backend)
	v.SetDefault("metrics.tags", []string{})
	v.SetDefault("metrics.flush_seconds", def.Metrics.FlushSeconds)

	v.SetEnvPrefix("RETAILETL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", cfgFile, err)
		}
	} else {
		v.SetConfigName("retailetl")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			// Config file is optional; only a malformed file is an error.
			var nf viper.ConfigFileNotFoundError
			if !errors.As(err, &nf) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// DSNs commonly embed credentials via environment references.
	cfg.Warehouse.DSN = os.ExpandEnv(cfg.Warehouse.DSN)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field constraints that viper cannot express.
func (c *Config) Validate() error {
	switch c.Warehouse.Kind {
	case "postgres", "sqlite", "mssql":
	case "":
		return fmt.Errorf("config: warehouse.kind is required")
	default:
		return fmt.Errorf("config: unsupported warehouse.kind %q", c.Warehouse.Kind)
	}

	switch c.Store.Kind {
	case "s3", "memory":
	case "":
		return fmt.Errorf("config: store.kind is required")
	default:
		return fmt.Errorf("config: unsupported store.kind %q", c.Store.Kind)
	}

	if c.Store.Kind == "s3" && c.Store.RawBucket == "" {
		return fmt.Errorf("config: store.raw_bucket is required for the s3 store")
	}

	if len(c.Sources) == 0 {
		return fmt.Errorf("config: at least one source is required")
	}
	return nil
}
