package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"carparams/internal/config"
	libtelemetry "carparams/lib/telemetry"

	"github.com/spf13/cobra"
)

var (
	configPath *string
	verbose    *bool

	cfg       config.Config
	otelSetup libtelemetry.Telemetry
)

var rootCmd = &cobra.Command{
	Use:   "carparams",
	Short: "carparams scrapes dongchedi configuration pages into csv files grouped by energy type.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		libtelemetry.InitSlog(*verbose)

		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			return err
		}

		otelSetup, err = libtelemetry.SetupFromEnv(cmd.Context(), "carparams")
		if err != nil {
			slog.Warn("failed to setup telemetry, continuing without it", "err", err)
		}
		if otelSetup.Enabled() {
			libtelemetry.InstrumentPerfStats(cmd.Context(), 30*time.Second)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := otelSetup.Shutdown(ctx)
		if err != nil {
			slog.Warn("failed to flush telemetry", "err", err)
		}
	},
	SilenceUsage: true,
}

func init() {
	configPath = rootCmd.PersistentFlags().StringP("config", "c", config.DefaultPath, "The configuration file, a missing file means defaults.")
	verbose = rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Log debug messages.")
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
