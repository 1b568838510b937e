package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"strategist/internal/market"
	"strategist/internal/validate"
)

func newLoadCmd(a *app) *cobra.Command {
	var (
		flags  policyFlags
		asJSON bool
		bars   bool
	)
	cmd := &cobra.Command{
		Use:   "load SYMBOL TIMEFRAME",
		Short: "Load and validate one series and print its report",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := a.options(&flags)
			if err != nil {
				return err
			}
			series, report, err := a.loader.Load(cmd.Context(), args[0], args[1], opts)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				doc := struct {
					Key    string           `json:"key"`
					Rows   int              `json:"rows"`
					First  market.NaiveTime `json:"first"`
					Last   market.NaiveTime `json:"last"`
					Report *validate.Report `json:"report"`
					Bars   []market.Bar     `json:"bars,omitempty"`
				}{series.Key.String(), series.Len(), series.First(), series.Last(), report, nil}
				if bars {
					doc.Bars = series.Bars
				}
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(doc)
			}
			printSummary(out, series, report)
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the report as JSON")
	cmd.Flags().BoolVar(&bars, "bars", false, "include the bars in JSON output")
	return cmd
}

func printSummary(w io.Writer, series *market.Series, report *validate.Report) {
	fmt.Fprintf(w, "%s: %d bars", series.Key, series.Len())
	if series.Len() > 0 {
		fmt.Fprintf(w, " from %s to %s", series.First(), series.Last())
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  rows read:          %d\n", report.Rows)
	fmt.Fprintf(w, "  duplicates removed: %d\n", report.DuplicatesRemoved)
	fmt.Fprintf(w, "  invalid bars:       %d\n", len(report.InvalidBars))
	fmt.Fprintf(w, "  gaps:               %d (%d outside weekend closure)\n", len(report.Gaps), report.OpenGaps())
	fmt.Fprintf(w, "  lookback met:       %t (span %s)\n", report.LookbackMet, report.Span)
	for _, g := range report.Gaps {
		if !g.MarketClosed {
			fmt.Fprintf(w, "    gap %s -> %s (%d missing)\n", g.Start, g.End, g.Missing)
		}
	}
	for _, warning := range report.Warnings {
		fmt.Fprintf(w, "  warning: %s\n", warning)
	}
}
