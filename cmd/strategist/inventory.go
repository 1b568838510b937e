package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"strategist/internal/market"
)

func newInventoryCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "inventory",
		Short: "List the datasets present under the root",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			keys, err := a.catalog.ListAvailable(cmd.Context())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "SYMBOL\tTIMEFRAME\tLOOKBACK\tPATH")
			for _, key := range keys {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", key.Symbol, key.Timeframe, lookbackDays(key.Timeframe), a.catalog.PathFor(key))
			}
			if err := w.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d of %d datasets available in %s\n", len(keys), len(market.AllKeys()), a.catalog.Store().Root())
			return nil
		},
	}
}

func lookbackDays(tf market.Timeframe) string {
	return fmt.Sprintf("%dd", int(tf.Lookback().Hours()/24))
}
