package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cranland/parcel-cli/internal/export"
)

var (
	exportMode   string
	exportFormat string
	exportOut    string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write bed and farm-point collections",
	Long: `Modes:
  all     every shaped bed in one collection
  farms   one collection per farm, named by slug
  points  one point per geocoded farm address

Format shapefile is only valid with mode all.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, closer, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer closer()

		exporter := export.NewExporter(st)
		outDir := exportOut
		if outDir == "" {
			outDir = cfg.Export.Dir
		}
		if err := os.MkdirAll(outDir, 0o755); err != nil {
			return eris.Wrapf(err, "create export dir %s", outDir)
		}

		var stats export.Stats
		switch {
		case exportFormat == "shapefile" && exportMode == "all":
			stats, err = exporter.ExportShapefile(ctx, filepath.Join(outDir, "beds.shp"))
		case exportFormat == "shapefile":
			return eris.Errorf("format shapefile does not support mode %q", exportMode)
		case exportMode == "all":
			stats, err = writeCollection(ctx, filepath.Join(outDir, "beds.geojson"), exporter.ExportAll)
		case exportMode == "farms":
			stats, err = exporter.ExportByFarm(ctx, outDir)
		case exportMode == "points":
			stats, err = writeCollection(ctx, filepath.Join(outDir, "farm-points.geojson"), exporter.ExportPoints)
		default:
			return eris.Errorf("unknown export mode %q", exportMode)
		}
		if err != nil {
			return err
		}

		zap.L().Info("export complete",
			zap.String("mode", exportMode),
			zap.String("format", exportFormat),
			zap.Int("features", stats.Features),
			zap.Int("skipped", stats.Skipped),
			zap.Int("files", stats.Files),
		)
		fmt.Printf("features=%d skipped=%d files=%d dir=%s\n", stats.Features, stats.Skipped, stats.Files, outDir)
		return nil
	},
}

// writeCollection streams one feature collection into a file.
func writeCollection(ctx context.Context, path string, write func(context.Context, io.Writer) (export.Stats, error)) (export.Stats, error) {
	f, err := os.Create(path)
	if err != nil {
		return export.Stats{}, eris.Wrapf(err, "create %s", path)
	}
	defer f.Close() //nolint:errcheck

	stats, err := write(ctx, f)
	if err != nil {
		return stats, err
	}
	return stats, eris.Wrapf(f.Close(), "close %s", path)
}

func init() {
	exportCmd.Flags().StringVar(&exportMode, "mode", "all", "all, farms, or points")
	exportCmd.Flags().StringVar(&exportFormat, "format", "geojson", "geojson or shapefile")
	exportCmd.Flags().StringVar(&exportOut, "out", "", "output directory (default from config)")
	rootCmd.AddCommand(exportCmd)
}
