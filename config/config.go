package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"strategist/internal/frame"
	"strategist/internal/storage"
	"strategist/internal/validate"
)

type Config struct {
	App      AppConfig      `yaml:"app"`
	Catalog  CatalogConfig  `yaml:"catalog"`
	Storage  StorageConfig  `yaml:"storage"`
	Loader   LoaderConfig   `yaml:"loader"`
	Strategy StrategyConfig `yaml:"strategy"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

type AppConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

type CatalogConfig struct {
	Root        string `yaml:"root"`
	Format      string `yaml:"format"`
	IndexColumn string `yaml:"index_column"`
	Fingerprint string `yaml:"fingerprint"`
}

type StorageConfig struct {
	S3 S3Config `yaml:"s3"`
}

type S3Config struct {
	Region            string  `yaml:"region"`
	Endpoint          string  `yaml:"endpoint"`
	PathStyle         bool    `yaml:"path_style"`
	AccessKeyID       string  `yaml:"access_key_id"`
	SecretAccessKey   string  `yaml:"secret_access_key"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

type LoaderConfig struct {
	OnDuplicate    string `yaml:"on_duplicate"`
	OnGap          string `yaml:"on_gap"`
	OnInvalidBar   string `yaml:"on_invalid_bar"`
	GapTolerance   int    `yaml:"gap_tolerance"`
	Cache          bool   `yaml:"cache"`
	PreloadWorkers int    `yaml:"preload_workers"`
	Watch          bool   `yaml:"watch"`
}

type StrategyConfig struct {
	Name   string             `yaml:"name"`
	Params map[string]float64 `yaml:"params"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
	MaxAge int    `yaml:"max_age"`
}

type MetricsConfig struct {
	Enabled    bool             `yaml:"enabled"`
	Disabled   []string         `yaml:"disabled"`
	CloudWatch CloudWatchConfig `yaml:"cloudwatch"`
}

type CloudWatchConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Region    string `yaml:"region"`
	Namespace string `yaml:"namespace"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		App: AppConfig{Name: "strategist", Version: "dev"},
		Catalog: CatalogConfig{
			Root:        "historical_data",
			Format:      string(frame.FormatParquet),
			IndexColumn: frame.DefaultIndexName,
			Fingerprint: string(storage.FingerprintContent),
		},
		Loader: LoaderConfig{
			OnDuplicate:    string(validate.DuplicateFail),
			OnGap:          string(validate.GapReport),
			OnInvalidBar:   string(validate.InvalidBarDrop),
			GapTolerance:   validate.DefaultGapTolerance,
			Cache:          true,
			PreloadWorkers: 4,
		},
		Strategy: StrategyConfig{Name: "sma_crossover"},
		Logging:  LoggingConfig{Level: "info", Format: "json", Output: "stdout"},
		Metrics: MetricsConfig{
			Enabled:    true,
			CloudWatch: CloudWatchConfig{Namespace: "Strategist"},
		},
	}
}

// LoadConfig reads path over the defaults, applies environment overrides
// and validates the result. An empty path skips the file.
func LoadConfig(path string) (*Config, error) {
	config := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnv(config)

	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return config, nil
}

func applyEnv(config *Config) {
	if v := os.Getenv("STRATEGIST_DATA_ROOT"); v != "" {
		config.Catalog.Root = strings.TrimSpace(v)
	}
	config.Catalog.Root = strings.TrimSpace(config.Catalog.Root)

	if !storage.IsS3(config.Catalog.Root) {
		return
	}
	if v := os.Getenv("AWS_ACCESS_KEY_ID"); v != "" {
		config.Storage.S3.AccessKeyID = strings.TrimSpace(v)
	}
	if v := os.Getenv("AWS_SECRET_ACCESS_KEY"); v != "" {
		config.Storage.S3.SecretAccessKey = strings.TrimSpace(v)
	}
	if v := os.Getenv("AWS_REGION"); v != "" {
		config.Storage.S3.Region = strings.TrimSpace(v)
	}
	if v := os.Getenv("AWS_ENDPOINT_URL"); v != "" {
		config.Storage.S3.Endpoint = strings.TrimSpace(v)
	}
}

// Policy returns the validator policy named by the loader section.
func (c *Config) Policy() (validate.Policy, error) {
	return validate.ParsePolicy(c.Loader.OnDuplicate, c.Loader.OnGap, c.Loader.OnInvalidBar, c.Loader.GapTolerance)
}

func validateConfig(cfg *Config) error {
	if cfg.App.Name == "" {
		return fmt.Errorf("app.name is required")
	}

	if cfg.Catalog.Root == "" {
		return fmt.Errorf("catalog.root is required")
	}
	if _, err := frame.ParseFormat(cfg.Catalog.Format); err != nil {
		return fmt.Errorf("catalog.format: %w", err)
	}
	if _, err := storage.ParseFingerprintMode(cfg.Catalog.Fingerprint); err != nil {
		return fmt.Errorf("catalog.fingerprint: %w", err)
	}

	if _, err := cfg.Policy(); err != nil {
		return fmt.Errorf("loader: %w", err)
	}
	if cfg.Loader.PreloadWorkers <= 0 {
		return fmt.Errorf("loader.preload_workers must be greater than 0")
	}

	if storage.IsS3(cfg.Catalog.Root) {
		bucket, _, err := storage.ParseS3URL(cfg.Catalog.Root)
		if err != nil {
			return fmt.Errorf("catalog.root: %w", err)
		}
		if !isValidS3Bucket(bucket) {
			return fmt.Errorf("catalog.root bucket '%s' is invalid", bucket)
		}
		if cfg.Loader.Watch {
			return fmt.Errorf("loader.watch needs a local catalog.root")
		}
		s3 := cfg.Storage.S3
		if s3.Region == "" {
			return fmt.Errorf("storage.s3.region is required for an s3 catalog.root")
		}
		if (s3.AccessKeyID == "") != (s3.SecretAccessKey == "") {
			return fmt.Errorf("storage.s3.access_key_id and storage.s3.secret_access_key must be set together")
		}
		if s3.RequestsPerSecond < 0 || s3.Burst < 0 {
			return fmt.Errorf("storage.s3.requests_per_second and storage.s3.burst must not be negative")
		}
	}

	if cfg.Strategy.Name == "" {
		return fmt.Errorf("strategy.name is required")
	}

	switch cfg.Logging.Format {
	case "", "json", "text":
	default:
		return fmt.Errorf("logging.format '%s' is invalid (use: json, text)", cfg.Logging.Format)
	}

	if cfg.Metrics.CloudWatch.Enabled && cfg.Metrics.CloudWatch.Namespace == "" {
		return fmt.Errorf("metrics.cloudwatch.namespace is required when CloudWatch is enabled")
	}
	return nil
}

var s3BucketRegexp = regexp.MustCompile(`^[a-z0-9][a-z0-9.-]{1,61}[a-z0-9]$`)

func isValidS3Bucket(name string) bool {
	if len(name) < 3 || len(name) > 63 {
		return false
	}
	if strings.Contains(name, "..") || strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".") {
		return false
	}
	return s3BucketRegexp.MatchString(name)
}
