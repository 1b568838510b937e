package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"strategist/internal/loader"
	"strategist/logger"
)

func newPreloadCmd(a *app) *cobra.Command {
	var (
		flags   policyFlags
		workers int
		watch   bool
	)
	cmd := &cobra.Command{
		Use:   "preload",
		Short: "Load and validate every available dataset concurrently",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			opts, err := a.options(&flags)
			if err != nil {
				return err
			}
			opts.Cache = true
			if workers <= 0 {
				workers = a.cfg.Loader.PreloadWorkers
			}

			keys, err := a.catalog.ListAvailable(ctx)
			if err != nil {
				return err
			}
			results, err := a.loader.LoadMany(ctx, keys, opts, workers)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			failed := 0
			for _, r := range results {
				if r.Err != nil {
					failed++
					fmt.Fprintf(out, "%-12s FAILED %v\n", r.Key, r.Err)
					continue
				}
				fmt.Fprintf(out, "%-12s %8d bars  %3d gaps  lookback met: %t\n", r.Key, r.Series.Len(), r.Report.OpenGaps(), r.Report.LookbackMet)
			}
			stats := a.loader.Stats()
			a.log.WithComponent("preload").WithFields(logger.Fields{
				"datasets": len(results),
				"failed":   failed,
				"cached":   stats.Entries,
				"workers":  workers,
			}).Info("preload complete")

			if watch || a.cfg.Loader.Watch {
				err := a.loader.Watch(ctx, nil)
				if errors.Is(err, loader.ErrWatchUnsupported) {
					a.log.WithComponent("preload").Warn("watch skipped: dataset root is not local")
					err = nil
				}
				if err != nil {
					return err
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d datasets failed to load", failed, len(results))
			}
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().IntVarP(&workers, "workers", "w", 0, "concurrent loads (default loader.preload_workers)")
	cmd.Flags().BoolVar(&watch, "watch", false, "keep running and evict cache entries when files change")
	return cmd
}
