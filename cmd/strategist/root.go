package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"strategist/config"
	"strategist/internal/catalog"
	"strategist/internal/frame"
	"strategist/internal/loader"
	"strategist/internal/metrics"
	"strategist/internal/storage"
	"strategist/logger"
)

// app is what every subcommand works with once the root has set up.
type app struct {
	configPath string
	root       string
	report     bool

	cfg     *config.Config
	log     *logger.Log
	catalog *catalog.Catalog
	loader  *loader.Loader
}

func newRootCmd() *cobra.Command {
	a := &app{}
	cmd := &cobra.Command{
		Use:           "strategist",
		Short:         "Load, validate and replay historical FX and metals series",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd.Context())
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.report && a.log != nil {
				logger.LogReport(a.log)
			}
		},
	}
	cmd.PersistentFlags().StringVarP(&a.configPath, "config", "c", config.DefaultPath, "path to configuration file")
	cmd.PersistentFlags().StringVar(&a.root, "root", "", "dataset root, local directory or s3://bucket/prefix (overrides catalog.root)")
	cmd.PersistentFlags().BoolVar(&a.report, "report", false, "log per-component warning and error counts on exit")

	cmd.AddCommand(
		newInventoryCmd(a),
		newLoadCmd(a),
		newPreloadCmd(a),
		newBacktestCmd(a),
	)
	return cmd
}

func (a *app) setup(ctx context.Context) error {
	a.log = logger.GetLogger()

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		a.log.WithError(err).Warn("Error loading .env file")
	}

	cfg, err := config.LoadConfig(config.ResolvePath(a.configPath))
	if err != nil {
		return err
	}
	if a.root != "" {
		cfg.Catalog.Root = a.root
	}
	a.cfg = cfg

	if err := a.log.Configure(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output, cfg.Logging.MaxAge); err != nil {
		return fmt.Errorf("configure logger: %w", err)
	}

	metrics.Configure(metrics.Options{Enabled: cfg.Metrics.Enabled, Disabled: cfg.Metrics.Disabled})
	if cfg.Metrics.CloudWatch.Enabled {
		if err := metrics.InitCloudWatch(ctx, cfg.Metrics.CloudWatch.Region, cfg.Metrics.CloudWatch.Namespace); err != nil {
			a.log.WithComponent("cli").WithError(err).Warn("continuing without CloudWatch")
		}
	}

	store, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	format, err := frame.ParseFormat(cfg.Catalog.Format)
	if err != nil {
		return err
	}
	reader, err := frame.NewReader(format, cfg.Catalog.IndexColumn)
	if err != nil {
		return err
	}
	a.catalog = catalog.New(store, format)
	a.loader = loader.New(a.catalog, reader)

	a.log.WithEnv("APP_ENV", "LOG_LEVEL").WithComponent("cli").WithFields(logger.Fields{
		"service": cfg.App.Name,
		"version": cfg.App.Version,
		"root":    store.Root(),
		"format":  format,
		"env":     config.AppEnvironment(),
	}).Debug("strategist ready")
	return nil
}

func (a *app) openStore(ctx context.Context) (storage.Store, error) {
	root := a.cfg.Catalog.Root
	if !storage.IsS3(root) {
		mode, err := storage.ParseFingerprintMode(a.cfg.Catalog.Fingerprint)
		if err != nil {
			return nil, err
		}
		return storage.NewLocal(root, mode), nil
	}
	s3 := a.cfg.Storage.S3
	return storage.NewS3(ctx, root, storage.S3Options{
		Region:            s3.Region,
		Endpoint:          s3.Endpoint,
		PathStyle:         s3.PathStyle,
		AccessKeyID:       s3.AccessKeyID,
		SecretAccessKey:   s3.SecretAccessKey,
		RequestsPerSecond: s3.RequestsPerSecond,
		Burst:             s3.Burst,
	})
}

// options merges command-line overrides into the configured load options.
func (a *app) options(f *policyFlags) (loader.Options, error) {
	l := a.cfg.Loader
	if f != nil {
		if f.onDuplicate != "" {
			l.OnDuplicate = f.onDuplicate
		}
		if f.onGap != "" {
			l.OnGap = f.onGap
		}
		if f.onInvalidBar != "" {
			l.OnInvalidBar = f.onInvalidBar
		}
		if f.gapTolerance > 0 {
			l.GapTolerance = f.gapTolerance
		}
	}
	p := config.Config{Loader: l}
	policy, err := p.Policy()
	if err != nil {
		return loader.Options{}, fmt.Errorf("%w: %w", loader.ErrInvalidOptions, err)
	}
	return loader.Options{
		OnDuplicate:  policy.OnDuplicate,
		OnGap:        policy.OnGap,
		OnInvalidBar: policy.OnInvalidBar,
		GapTolerance: policy.GapTolerance,
		Cache:        l.Cache,
	}, nil
}

type policyFlags struct {
	onDuplicate  string
	onGap        string
	onInvalidBar string
	gapTolerance int
}

func (f *policyFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.onDuplicate, "on-duplicate", "", "duplicate timestamps: fail or drop_first")
	cmd.Flags().StringVar(&f.onGap, "on-gap", "", "gaps outside the weekend closure: report or fail")
	cmd.Flags().StringVar(&f.onInvalidBar, "on-invalid-bar", "", "bars breaking OHLC relations: drop, report or fail")
	cmd.Flags().IntVar(&f.gapTolerance, "gap-tolerance", 0, "missing bars that make a gap")
}
