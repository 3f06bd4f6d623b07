package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg := writeAndLoad(t, `
warehouse:
  dsn: postgres://localhost/warehouse
store:
  raw_bucket: lake-raw
`)

	if cfg.LogLevel != "info" {
		t.Fatalf("log_level = %q, want info", cfg.LogLevel)
	}
	if cfg.Warehouse.Kind != "postgres" {
		t.Fatalf("warehouse.kind = %q, want postgres", cfg.Warehouse.Kind)
	}
	if cfg.Store.Kind != "s3" || cfg.Store.Region != "us-east-1" {
		t.Fatalf("store defaults wrong: %+v", cfg.Store)
	}
	if len(cfg.Sources) != 3 || cfg.Sources[0] != "retailer_1" {
		t.Fatalf("sources = %v", cfg.Sources)
	}
	if cfg.Metrics.Backend != "none" || cfg.Metrics.FlushSeconds != 60 {
		t.Fatalf("metrics defaults wrong: %+v", cfg.Metrics)
	}
}

func TestLoadExpandsDSNEnv(t *testing.T) {
	t.Setenv("TEST_WAREHOUSE_PASSWORD", "hunter2")

	cfg := writeAndLoad(t, `
warehouse:
  dsn: postgres://etl:${TEST_WAREHOUSE_PASSWORD}@db/warehouse
store:
  raw_bucket: lake-raw
`)

	want := "postgres://etl:hunter2@db/warehouse"
	if cfg.Warehouse.DSN != want {
		t.Fatalf("dsn = %q, want %q", cfg.Warehouse.DSN, want)
	}
}

func TestLoadRejectsUnknownKinds(t *testing.T) {
	cases := []string{
		`
warehouse:
  kind: oracle
store:
  raw_bucket: lake-raw
`,
		`
store:
  kind: gcs
  raw_bucket: lake-raw
`,
		`
store:
  raw_bucket: ""
`,
		`
store:
  raw_bucket: lake-raw
sources: []
`,
	}
	for i, body := range cases {
		if _, err := load(t, body); err == nil {
			t.Fatalf("case %d: invalid config accepted", i)
		}
	}
}

func TestLoadMemoryStoreNeedsNoBucket(t *testing.T) {
	cfg := writeAndLoad(t, `
warehouse:
  kind: sqlite
  dsn: /tmp/warehouse.db
store:
  kind: memory
`)

	if cfg.Store.Kind != "memory" {
		t.Fatalf("store.kind = %q", cfg.Store.Kind)
	}
}

func writeAndLoad(t *testing.T, body string) *Config {
	t.Helper()
	cfg, err := load(t, body)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return cfg
}

func load(t *testing.T, body string) (*Config, error) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "retailetl.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return Load(path)
}
