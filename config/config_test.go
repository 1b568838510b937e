package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"strategist/internal/validate"
)

// writeTempConfig writes content to a config file in a temp dir and returns
// its path.
func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"STRATEGIST_DATA_ROOT", "AWS_ACCESS_KEY_ID", "AWS_SECRET_ACCESS_KEY", "AWS_REGION", "AWS_ENDPOINT_URL", "APP_ENV"} {
		t.Setenv(k, "")
	}
}

func TestLoadConfig(t *testing.T) {
	clearEnv(t)
	path := writeTempConfig(t, `app:
  name: "strategist-test"
catalog:
  root: /data/historical_data
  format: csv
loader:
  on_duplicate: drop_first
  gap_tolerance: 3
strategy:
  name: sma_crossover
  params:
    fast: 5
    slow: 20
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.App.Name != "strategist-test" {
		t.Errorf("unexpected name: %s", cfg.App.Name)
	}
	if cfg.Catalog.Format != "csv" || cfg.Catalog.IndexColumn != "timestamp" {
		t.Errorf("unexpected catalog: %+v", cfg.Catalog)
	}
	if cfg.Loader.PreloadWorkers != 4 || !cfg.Loader.Cache {
		t.Errorf("defaults not kept: %+v", cfg.Loader)
	}
	if cfg.Strategy.Params["slow"] != 20 {
		t.Errorf("unexpected params: %v", cfg.Strategy.Params)
	}

	p, err := cfg.Policy()
	if err != nil {
		t.Fatalf("Policy failed: %v", err)
	}
	want := validate.Policy{OnDuplicate: validate.DuplicateDropFirst, OnGap: validate.GapReport, OnInvalidBar: validate.InvalidBarDrop, GapTolerance: 3}
	if p != want {
		t.Errorf("unexpected policy: %+v", p)
	}
}

func TestLoadConfigWithoutFile(t *testing.T) {
	clearEnv(t)
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Catalog.Root != "historical_data" {
		t.Errorf("unexpected root: %s", cfg.Catalog.Root)
	}
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("STRATEGIST_DATA_ROOT", "s3://fx-history/historical_data")
	t.Setenv("AWS_REGION", "eu-west-1")
	t.Setenv("AWS_ACCESS_KEY_ID", " key ")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "secret")

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Catalog.Root != "s3://fx-history/historical_data" {
		t.Errorf("unexpected root: %s", cfg.Catalog.Root)
	}
	if cfg.Storage.S3.Region != "eu-west-1" || cfg.Storage.S3.AccessKeyID != "key" {
		t.Errorf("unexpected s3 config: %+v", cfg.Storage.S3)
	}
}

func TestLoadConfigRejects(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"bad format", "catalog:\n  format: feather\n", "catalog.format"},
		{"bad fingerprint", "catalog:\n  fingerprint: mtime\n", "catalog.fingerprint"},
		{"bad duplicate policy", "loader:\n  on_duplicate: keep_last\n", "on_duplicate"},
		{"bad gap policy", "loader:\n  on_gap: ignore\n", "on_gap"},
		{"bad invalid bar policy", "loader:\n  on_invalid_bar: fix\n", "on_invalid_bar"},
		{"workers", "loader:\n  preload_workers: 0\n", "preload_workers"},
		{"empty root", "catalog:\n  root: \"\"\n", "catalog.root is required"},
		{"bucket", "catalog:\n  root: s3://Bad_Bucket/x\nstorage:\n  s3:\n    region: eu-west-1\n", "invalid"},
		{"s3 region", "catalog:\n  root: s3://fx-history\n", "storage.s3.region"},
		{"s3 watch", "catalog:\n  root: s3://fx-history\nloader:\n  watch: true\nstorage:\n  s3:\n    region: eu-west-1\n", "loader.watch"},
		{"half credentials", "catalog:\n  root: s3://fx-history\nstorage:\n  s3:\n    region: eu-west-1\n    access_key_id: abc\n", "set together"},
		{"log format", "logging:\n  format: xml\n", "logging.format"},
		{"cloudwatch namespace", "metrics:\n  cloudwatch:\n    enabled: true\n    namespace: \"\"\n", "namespace"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			_, err := LoadConfig(writeTempConfig(t, tt.content))
			if err == nil {
				t.Fatalf("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestResolvePath(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })

	if got := ResolvePath(""); got != "" {
		t.Errorf("expected no file, got %q", got)
	}
	if got := ResolvePath("custom.yml"); got != "custom.yml" {
		t.Errorf("explicit path not kept: %q", got)
	}

	if err := os.WriteFile(DefaultPath, []byte("{}"), 0o644); err != nil {
		t.Fatal(err)
	}
	if got := ResolvePath(""); got != DefaultPath {
		t.Errorf("expected default path, got %q", got)
	}

	t.Setenv("APP_ENV", "prod")
	if err := os.WriteFile("config.production.yml", []byte("{}"), 0o644); err != nil {
		t.Fatal(err)
	}
	if got := ResolvePath(DefaultPath); got != "config.production.yml" {
		t.Errorf("expected env specific path, got %q", got)
	}
}
