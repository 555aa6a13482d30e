package main

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/cranland/parcel-cli/internal/geocoding"
	"github.com/cranland/parcel-cli/internal/runlog"
	"github.com/cranland/parcel-cli/pkg/geocode"
)

var geocodeLimit int

var geocodeCmd = &cobra.Command{
	Use:   "geocode",
	Short: "Backfill coordinates for farm addresses that lack them",
	Long:  "Walks ungeocoded addresses one at a time through the Census and Nominatim chain, pacing requests to stay within provider etiquette.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, closer, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer closer()

		journal, err := runlog.Open(cfg.RunLog.Path)
		if err != nil {
			return err
		}
		defer journal.Close() //nolint:errcheck

		runID, err := journal.StartRun(ctx, "geocode")
		if err != nil {
			return err
		}

		resolver := geocode.NewResolver(geocode.ResolverConfig{
			CensusURL:    cfg.Geocode.CensusURL,
			NominatimURL: cfg.Geocode.NominatimURL,
			UserAgent:    cfg.Geocode.UserAgent,
			CountryCode:  cfg.Geocode.CountryCode,
			Timeout:      time.Duration(cfg.Geocode.TimeoutSecs) * time.Second,
			Delay:        time.Duration(cfg.Geocode.DelayMillis) * time.Millisecond,
		})

		stats, err := geocoding.Backfill(ctx, st, resolver, geocodeLimit)
		summary := fmt.Sprintf("scanned=%d resolved=%d approximate=%d undeliverable=%d unmatched=%d failed=%d",
			stats.Scanned, stats.Resolved, stats.Approximate, stats.Undeliverable, stats.Unmatched, stats.Failed)
		status := "ok"
		if err != nil {
			status = "failed"
		}
		if jerr := journal.FinishRun(ctx, runID, status, summary); jerr != nil {
			return jerr
		}
		if err != nil {
			return err
		}

		fmt.Println(summary)
		return nil
	},
}

func init() {
	geocodeCmd.Flags().IntVar(&geocodeLimit, "limit", 0, "max addresses to geocode this run (0 = all)")
	rootCmd.AddCommand(geocodeCmd)
}
