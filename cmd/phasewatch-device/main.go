// Command phasewatch-device runs the wearable pipeline against recorded
// sensor data and manages its persisted state.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/claude/phasewatch/internal/config"
	"github.com/claude/phasewatch/internal/device"
	"github.com/claude/phasewatch/internal/homebase"
	"github.com/claude/phasewatch/internal/nvram"
	"github.com/claude/phasewatch/internal/score"
	"github.com/claude/phasewatch/internal/upload"
)

// Version is set at build time via -ldflags.
var Version = "dev"

var (
	configPath string
	verbose    bool

	uploadDryRun bool

	homebaseLat  float64
	homebaseLon  float64
	homebaseTZ   string
	homebaseYear int
	homebaseOut  string
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "phasewatch-device",
		Short:         "Sleep/wake tracking and circadian metrics for a wearable",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("loading .env: %w", err)
			}
			return nil
		},
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "device.yaml", "path to device config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(newReplayCmd())
	rootCmd.AddCommand(newExportCmd())
	rootCmd.AddCommand(newScoreCmd())
	rootCmd.AddCommand(newUploadCmd())
	rootCmd.AddCommand(newHomebaseCmd())
	return rootCmd
}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// openDevice loads the config and restores the device from its state dir.
// The returned close func releases the state database.
func openDevice(log *slog.Logger, autoSession bool) (*device.Device, *config.DeviceConfig, func(), error) {
	cfg, err := config.LoadDevice(configPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("loading config: %w", err)
	}
	start, end, err := cfg.ActiveHours.Minutes()
	if err != nil {
		return nil, nil, nil, err
	}

	var table *homebase.Table
	if cfg.Homebase != "" {
		table, err = homebase.Load(cfg.Homebase)
		if err != nil {
			return nil, nil, nil, err
		}
		log.Info("homebase table loaded", "path", cfg.Homebase, "year", table.Metadata.Year)
	} else {
		log.Warn("no homebase table configured, phase score stays 0")
	}

	store, err := nvram.Open(cfg.StateDir)
	if err != nil {
		return nil, nil, nil, err
	}

	d, err := device.New(device.Options{
		DeviceID:       cfg.DeviceID,
		Caps:           cfg.Capabilities,
		LightModifiers: cfg.LightModifiers,
		ActiveHours:    &device.ActiveHours{Start: start, End: end},
		AutoSession:    autoSession,
		DwellTicks:     cfg.DwellTicks,
	}, store, store, store, table, log.With("device", cfg.DeviceID))
	if err != nil {
		store.Close()
		return nil, nil, nil, err
	}
	return d, cfg, func() { store.Close() }, nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newReplayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "replay <readings.csv>",
		Short: "Feed a minute-by-minute sensor recording through the device",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := newLogger()
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			readings, err := device.ReadReadings(f)
			if err != nil {
				return fmt.Errorf("parsing %s: %w", args[0], err)
			}

			d, _, closeFn, err := openDevice(log, true)
			if err != nil {
				return err
			}
			defer closeFn()

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			res, err := device.Replay(ctx, d, readings)
			if err != nil {
				return err
			}
			log.Info("replay finished", "minutes", res.Minutes, "nights", res.Nights)
			return printJSON(cmd, res)
		},
	}
}

func newExportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export",
		Short: "Print the sleep history as a hex export",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			d, _, closeFn, err := openDevice(newLogger(), false)
			if err != nil {
				return err
			}
			defer closeFn()

			hex, err := d.Export()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hex)
			return nil
		},
	}
}

func newScoreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "score",
		Short: "Print the circadian score and the nights behind it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			d, _, closeFn, err := openDevice(newLogger(), false)
			if err != nil {
				return err
			}
			defer closeFn()

			h := d.History()
			return printJSON(cmd, map[string]any{
				"score":        score.Compute(h),
				"valid_nights": h.ValidCount(),
				"nights":       h.Chronological(),
				"status":       d.Status(),
			})
		},
	}
}

func newUploadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "upload",
		Short: "Send the current export to the companion server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			log := newLogger()
			d, cfg, closeFn, err := openDevice(log, false)
			if err != nil {
				return err
			}
			defer closeFn()

			if cfg.Companion.URL == "" && !uploadDryRun {
				return errors.New("companion.url is not configured (or use --dry-run)")
			}
			payload, err := d.Export()
			if err != nil {
				return err
			}
			h := d.History()

			state, err := upload.OpenStateDB(cfg.StateDir)
			if err != nil {
				return err
			}
			defer state.Close()

			client := upload.NewClient(cfg.Companion.URL, cfg.Companion.APIKey, cfg.Companion.Timeout)
			u := upload.New(client, state, uploadDryRun, log)
			out, err := u.Run(cmd.Context(), upload.Export{
				Device:      cfg.DeviceID,
				Payload:     payload,
				ActiveStart: h.ActiveHoursStart,
				ActiveEnd:   h.ActiveHoursEnd,
			})
			if err != nil {
				return err
			}
			return printJSON(cmd, out)
		},
	}
	cmd.Flags().BoolVar(&uploadDryRun, "dry-run", false, "build the export but don't send it")
	return cmd
}

func newHomebaseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "homebase",
		Short: "Generate a seasonal homebase table for a location",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tz, err := homebase.ParseTimezone(homebaseTZ)
			if err != nil {
				return err
			}
			table, err := homebase.Generate(homebaseLat, homebaseLon, tz, homebaseYear)
			if err != nil {
				return err
			}
			if err := homebase.Save(homebaseOut, table); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d entries to %s\n", len(table.Entries), homebaseOut)
			return nil
		},
	}
	cmd.Flags().Float64Var(&homebaseLat, "lat", 0, "latitude in degrees")
	cmd.Flags().Float64Var(&homebaseLon, "lon", 0, "longitude in degrees")
	cmd.Flags().StringVar(&homebaseTZ, "tz", "UTC", "timezone (PST, UTC+2, or minutes east of UTC)")
	cmd.Flags().IntVar(&homebaseYear, "year", 2026, "table year")
	cmd.Flags().StringVar(&homebaseOut, "out", "homebase.yaml", "output file")
	_ = cmd.MarkFlagRequired("lat")
	_ = cmd.MarkFlagRequired("lon")
	return cmd
}
