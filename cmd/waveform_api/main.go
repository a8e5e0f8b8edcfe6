// Waveform API serves stream listings and sample windows from the waveform store.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/NotCoffee418/waveform_explorer/pkg/api"
	"github.com/NotCoffee418/waveform_explorer/pkg/config"
	"github.com/NotCoffee418/waveform_explorer/pkg/logging"
	"github.com/NotCoffee418/waveform_explorer/pkg/pathing"
	"github.com/NotCoffee418/waveform_explorer/pkg/streamquery"
	"github.com/NotCoffee418/waveform_explorer/pkg/waveformdb"
	"github.com/spf13/cobra"
)

func main() {
	if err := newCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newCommand() *cobra.Command {
	var configPath string

	command := &cobra.Command{
		Use:          "waveform_api",
		Short:        "Serve waveform windows over HTTP and websockets",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := pathing.EnsureDirs(); err != nil {
				return fmt.Errorf("failed to create directories: %w", err)
			}
			cfg, err := config.LoadExplorerAPIConfig(configPath)
			if err != nil {
				return fmt.Errorf("failed to load explorer API config: %w", err)
			}

			logger := logging.NewLogger(cfg.Debug)
			defer logger.Sync()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			ctx = logging.WithLogger(ctx, logger)

			source, db, err := waveformdb.Open(ctx, cfg.Database)
			if err != nil {
				logger.Errorf("Failed to open %s database: %v", cfg.Database.Driver, err)
				return err
			}
			defer db.Close()

			queries := streamquery.NewService(source, cfg.Window.StreamQueryOptions(), logger)
			server := api.NewServer(queries, cfg.Database.Schema, logger)
			listener := fmt.Sprintf("%s:%d", cfg.ListenAddress, cfg.ListenPort)
			return server.ListenAndServe(ctx, listener)
		},
	}
	command.Flags().StringVar(&configPath, "config", config.DefaultExplorerAPIConfigPath(), "Path to the TOML config file, created with defaults if missing")
	return command
}
