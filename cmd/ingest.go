package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cranland/parcel-cli/internal/ingest"
	"github.com/cranland/parcel-cli/internal/runlog"
	"github.com/cranland/parcel-cli/pkg/parcelapi"
)

var (
	ingestContracts     string
	ingestContractsFile string
	ingestCropYear      int
	ingestRosterFile    string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Fetch contract beds from the grower API and reconcile them into the store",
	Long:  "Each contract is fetched and ingested in its own transaction; a failing contract is journaled and skipped so the rest of the run proceeds.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		contracts, err := contractList(ingestContracts, ingestContractsFile)
		if err != nil {
			return err
		}
		if ingestCropYear == 0 {
			ingestCropYear = time.Now().Year()
		}

		st, closer, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer closer()

		if cfg.API.BaseURL == "" || cfg.API.Token == "" {
			return eris.New("api.base_url and api.token must be configured")
		}
		client := parcelapi.NewClient(cfg.API.BaseURL, cfg.API.Token,
			parcelapi.WithUserAgent(cfg.API.UserAgent),
			parcelapi.WithTimeout(time.Duration(cfg.API.TimeoutSecs)*time.Second),
		)

		journal, err := runlog.Open(cfg.RunLog.Path)
		if err != nil {
			return err
		}
		defer journal.Close() //nolint:errcheck

		runID, err := journal.StartRun(ctx, "ingest")
		if err != nil {
			return err
		}

		reconciler := ingest.NewReconciler(st.Pool())
		var total ingest.Counts
		var failed int

		for _, number := range contracts {
			records, err := client.FetchContract(ctx, number, ingestCropYear)
			if err == nil {
				var counts ingest.Counts
				counts, err = reconciler.IngestBatch(ctx, records, ingestCropYear)
				if err == nil {
					total.FarmsCreated += counts.FarmsCreated
					total.ContractsUpserted += counts.ContractsUpserted
					total.AddressesUpserted += counts.AddressesUpserted
					total.BlocksUpserted += counts.BlocksUpserted
					total.BedsUpserted += counts.BedsUpserted
					total.ShapesInserted += counts.ShapesInserted
					if jerr := journal.RecordContract(ctx, runID, number, counts.BedsUpserted, counts.ShapesInserted, ""); jerr != nil {
						return jerr
					}
					continue
				}
			}

			failed++
			zap.L().Error("contract ingestion failed",
				zap.String("contract_number", number),
				zap.Error(err),
			)
			if jerr := journal.RecordContract(ctx, runID, number, 0, 0, err.Error()); jerr != nil {
				return jerr
			}
			if ctx.Err() != nil {
				break
			}
		}

		if ingestRosterFile != "" && failed < len(contracts) {
			updated, err := reconcileRoster(ctx, st)
			if err != nil {
				return err
			}
			zap.L().Info("farm names reconciled", zap.Int64("updated", updated))
		}

		status := "ok"
		switch {
		case failed == len(contracts):
			status = "failed"
		case failed > 0:
			status = "partial"
		}
		summary := fmt.Sprintf("contracts=%d failed=%d %s", len(contracts), failed, total.Summary())
		if err := journal.FinishRun(ctx, runID, status, summary); err != nil {
			return err
		}

		fmt.Println(summary)
		if status == "failed" {
			return eris.New("ingest: every contract failed")
		}
		return nil
	},
}

// contractList resolves the contract numbers from the flag value and the
// optional file, preserving order and dropping duplicates.
func contractList(list, file string) ([]string, error) {
	var raw []string
	if list != "" {
		raw = append(raw, strings.Split(list, ",")...)
	}
	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, eris.Wrapf(err, "read contracts file %s", file)
		}
		raw = append(raw, strings.Split(string(data), "\n")...)
	}

	seen := make(map[string]bool)
	var contracts []string
	for _, c := range raw {
		c = strings.TrimSpace(c)
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		contracts = append(contracts, c)
	}
	if len(contracts) == 0 {
		return nil, eris.New("no contract numbers given (use --contracts or --contracts-file)")
	}
	return contracts, nil
}

func reconcileRoster(ctx context.Context, updater ingest.FarmUpdater) (int64, error) {
	f, err := os.Open(ingestRosterFile)
	if err != nil {
		return 0, eris.Wrapf(err, "open roster %s", ingestRosterFile)
	}
	defer f.Close() //nolint:errcheck

	roster, err := ingest.ParseRoster(f)
	if err != nil {
		return 0, err
	}
	return ingest.ReconcileFarmNames(ctx, updater, roster)
}

func init() {
	ingestCmd.Flags().StringVar(&ingestContracts, "contracts", "", "comma-separated contract numbers")
	ingestCmd.Flags().StringVar(&ingestContractsFile, "contracts-file", "", "file with one contract number per line")
	ingestCmd.Flags().IntVar(&ingestCropYear, "crop-year", 0, "crop year (default current year)")
	ingestCmd.Flags().StringVar(&ingestRosterFile, "roster", "", "grower roster CSV for the farm-name pass")
	rootCmd.AddCommand(ingestCmd)
}
