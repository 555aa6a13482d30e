package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/cranland/parcel-cli/internal/export"
	"github.com/cranland/parcel-cli/internal/server"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the bed and farm-point collections over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, closer, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer closer()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		return server.New(export.NewExporter(st)).ListenAndServe(ctx, port)
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
