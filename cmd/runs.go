package main

import (
	"fmt"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cranland/parcel-cli/internal/runlog"
)

var runsLimit int

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Show recent sync runs from the local journal",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		journal, err := runlog.Open(cfg.RunLog.Path)
		if err != nil {
			return err
		}
		defer journal.Close() //nolint:errcheck

		runs, err := journal.RecentRuns(ctx, runsLimit)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Println("no runs journaled yet")
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "STARTED\tCOMMAND\tSTATUS\tSUMMARY\tID")
		for _, r := range runs {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				r.StartedAt.Format("2006-01-02 15:04:05"), r.Command, r.Status, r.Summary, r.ID)
		}
		return w.Flush()
	},
}

func init() {
	runsCmd.Flags().IntVar(&runsLimit, "limit", 20, "max runs to show")
	rootCmd.AddCommand(runsCmd)
}
