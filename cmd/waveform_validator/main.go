// Waveform validator checks stored streams for gaps, duplicates and bad batches.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/NotCoffee418/waveform_explorer/pkg/config"
	"github.com/NotCoffee418/waveform_explorer/pkg/logging"
	"github.com/NotCoffee418/waveform_explorer/pkg/pathing"
	"github.com/NotCoffee418/waveform_explorer/pkg/validator"
	"github.com/NotCoffee418/waveform_explorer/pkg/waveform"
	"github.com/NotCoffee418/waveform_explorer/pkg/waveformdb"
	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

type app struct {
	cfg    *config.ValidatorConfig
	logger *zap.SugaredLogger
	source waveform.DataSource
	close  func() error
}

func load(ctx context.Context, configPath string) (*app, error) {
	if err := pathing.EnsureDirs(); err != nil {
		return nil, fmt.Errorf("failed to create directories: %w", err)
	}
	cfg, err := config.LoadValidatorConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load validator config: %w", err)
	}
	logger := logging.NewLogger(cfg.Debug).Named("validator")
	source, db, err := waveformdb.Open(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", cfg.Database.Driver, err)
	}
	return &app{cfg: cfg, logger: logger, source: source, close: db.Close}, nil
}

func newRootCommand() *cobra.Command {
	var (
		configPath     string
		typeID         int64
		sourceLocation string
		asJSON         bool
	)

	command := &cobra.Command{
		Use:          "waveform_validator",
		Short:        "Check waveform streams for gaps and data quality problems",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := load(ctx, configPath)
			if err != nil {
				return err
			}
			defer a.close()

			v := validator.NewValidator(a.source, a.cfg.ValidatorOptions(), a.logger)
			var reports []*validator.Report
			if sourceLocation != "" {
				report, err := v.CheckStream(ctx, waveform.StreamKey{ObservationTypeID: typeID, SourceLocation: sourceLocation})
				if err != nil {
					return err
				}
				reports = append(reports, report)
			} else if reports, err = v.CheckAll(ctx); err != nil {
				return err
			}

			var violations error
			for _, report := range reports {
				violations = multierr.Append(violations, report.Err())
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if err := enc.Encode(reports); err != nil {
					return err
				}
			} else {
				for _, report := range reports {
					fmt.Fprintln(cmd.OutOrStdout(), report.String())
				}
			}
			if violations != nil {
				return fmt.Errorf("%d streams checked, %d problems found", len(reports), len(multierr.Errors(violations)))
			}
			a.logger.Infof("%d streams checked, no problems found", len(reports))
			return nil
		},
	}
	command.PersistentFlags().StringVar(&configPath, "config", config.DefaultValidatorConfigPath(), "Path to the TOML config file, created with defaults if missing")
	command.Flags().Int64Var(&typeID, "type", 0, "Observation type id of the stream to check, with --location")
	command.Flags().StringVar(&sourceLocation, "location", "", "Source location of the stream to check; all streams when empty")
	command.Flags().BoolVar(&asJSON, "json", false, "Print the reports as JSON")
	command.AddCommand(newSnapshotCommand(&configPath))
	return command
}

func newSnapshotCommand(configPath *string) *cobra.Command {
	var (
		sqlitePath     string
		sourceLocation string
	)

	command := &cobra.Command{
		Use:   "snapshot",
		Short: "Copy streams from the configured database into a local SQLite file",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := load(ctx, *configPath)
			if err != nil {
				return err
			}
			defer a.close()

			if sqlitePath == "" {
				sqlitePath = pathing.GetLocalDbPath()
			}
			db, err := waveformdb.OpenSQLite(sqlitePath)
			if err != nil {
				return err
			}
			defer db.Close()

			copied, err := waveformdb.Snapshot(ctx, a.source, waveformdb.NewSQLiteSource(db), sourceLocation, a.logger)
			if err != nil {
				return err
			}
			a.logger.Infof("Copied %d batches into %s", copied, sqlitePath)
			return nil
		},
	}
	command.Flags().StringVar(&sqlitePath, "out", "", "SQLite file to write to (default the local data dir)")
	command.Flags().StringVar(&sourceLocation, "location", "", "Only copy streams of this source location")
	return command
}
