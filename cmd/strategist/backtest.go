package main

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"strategist/internal/strategy"
)

func newBacktestCmd(a *app) *cobra.Command {
	var (
		flags  policyFlags
		name   string
		params map[string]string
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "backtest SYMBOL TIMEFRAME",
		Short: "Feed a validated series through a registered strategy",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			opts, err := a.options(&flags)
			if err != nil {
				return err
			}
			series, report, err := a.loader.Load(ctx, args[0], args[1], opts)
			if err != nil {
				return err
			}

			if name == "" {
				name = a.cfg.Strategy.Name
			}
			s, err := strategy.New(name)
			if err != nil {
				return err
			}
			merged := strategy.Params{}
			for k, v := range a.cfg.Strategy.Params {
				merged[k] = v
			}
			for k, raw := range params {
				v, err := strconv.ParseFloat(raw, 64)
				if err != nil {
					return fmt.Errorf("%w: --param %s=%q is not a number", strategy.ErrInvalidParams, k, raw)
				}
				merged[k] = v
			}
			if err := s.Init(series.Key, merged); err != nil {
				return err
			}

			run, err := strategy.Feed(ctx, s, series)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(run)
			}
			printSummary(out, series, report)
			intents := run.Intents()
			fmt.Fprintf(out, "%s on %s: %d bars, %d order intents, final equity %.2f\n",
				run.Strategy, run.Key, run.Bars, len(intents), run.FinalEquity())
			for _, in := range intents {
				fmt.Fprintf(out, "  %s %-5s %g  %s\n", in.Time, in.Side, in.Size, in.Reason)
			}
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVarP(&name, "strategy", "s", "", fmt.Sprintf("strategy name (registered: %v)", strategy.Names()))
	cmd.Flags().StringToStringVar(&params, "param", nil, "strategy parameter, e.g. --param fast=10,slow=30")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the run as JSON")
	return cmd
}
