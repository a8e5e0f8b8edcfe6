// Waveform fetch downloads sample windows from a running waveform API.
package main

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/NotCoffee418/waveform_explorer/pkg/api"
	"github.com/NotCoffee418/waveform_explorer/pkg/explorerclient"
	"github.com/NotCoffee418/waveform_explorer/pkg/logging"
	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var (
		host           string
		debug          bool
		typeID         int64
		sourceLocation string
		start          string
		widthSeconds   int
		format         string
	)

	command := &cobra.Command{
		Use:          "waveform_fetch",
		Short:        "Download one window of samples as CSV or JSON",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			req := api.WindowRequest{
				ObservationTypeID: typeID,
				SourceLocation:    sourceLocation,
				WidthSeconds:      widthSeconds,
			}
			if start != "" {
				t, err := time.Parse(time.RFC3339Nano, start)
				if err != nil {
					return fmt.Errorf("invalid --start: %w", err)
				}
				req.Start = &t
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			logger := logging.NewLogger(debug).Named("fetch")

			client, err := explorerclient.Dial(ctx, host, explorerclient.DefaultDialOptions(), logger)
			if err != nil {
				return err
			}
			defer client.Close()

			resp, err := client.Window(ctx, req)
			if err != nil {
				return err
			}
			for _, warning := range resp.Warnings {
				logger.Warn(warning)
			}

			switch format {
			case "csv":
				return writeCSV(cmd.OutOrStdout(), resp)
			case "json":
				return json.NewEncoder(cmd.OutOrStdout()).Encode(resp)
			default:
				return fmt.Errorf("unsupported format %q", format)
			}
		},
	}
	command.PersistentFlags().StringVar(&host, "host", "localhost:8501", "Address of the waveform API")
	command.PersistentFlags().BoolVar(&debug, "debug", false, "Log at debug level")
	command.Flags().Int64Var(&typeID, "type", 0, "Observation type id")
	command.Flags().StringVar(&sourceLocation, "location", "", "Source location")
	command.Flags().StringVar(&start, "start", "", "RFC3339 start time (default shortly before the latest data)")
	command.Flags().IntVar(&widthSeconds, "width", 0, "Window width in seconds (default the widest allowed)")
	command.Flags().StringVar(&format, "format", "csv", "Output format, csv or json")
	_ = command.MarkFlagRequired("location")
	command.AddCommand(newStreamsCommand(&host, &debug))
	return command
}

func newStreamsCommand(host *string, debug *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "streams",
		Short: "List the known streams per location",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			logger := logging.NewLogger(*debug).Named("fetch")

			client, err := explorerclient.Dial(ctx, *host, explorerclient.DefaultDialOptions(), logger)
			if err != nil {
				return err
			}
			defer client.Close()

			list, err := client.Streams(ctx)
			if err != nil {
				return err
			}
			for _, warning := range list.Warnings {
				logger.Warn(warning)
			}
			for _, s := range list.Streams {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d\t%s\n", s.SourceLocation, s.ObservationTypeID, s.DisplayName)
			}
			return nil
		},
	}
}

func writeCSV(w io.Writer, resp *api.WindowResponse) error {
	out := csv.NewWriter(w)
	if err := out.Write([]string{"time", "value", "unit"}); err != nil {
		return err
	}
	for _, s := range resp.Samples {
		record := []string{
			s.Time.Format(time.RFC3339Nano),
			strconv.FormatFloat(s.Value, 'g', -1, 64),
			resp.Unit,
		}
		if err := out.Write(record); err != nil {
			return err
		}
	}
	out.Flush()
	return out.Error()
}
