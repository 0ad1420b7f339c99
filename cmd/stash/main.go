package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"stash/internal/config"
	"stash/internal/storage"
	"stash/internal/telemetry"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var version = "dev"

type options struct {
	configFile   string
	otlpEndpoint string
	drainTimeout time.Duration
	outFile      string
}

func setupLogger(level string) error {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}

	handler := log.NewWithOptions(os.Stderr, log.Options{
		Level:           lvl,
		TimeFormat:      time.RFC3339,
		ReportTimestamp: true,
		TimeFunction:    log.NowUTC,
		ReportCaller:    true,
	})

	slog.SetDefault(slog.New(handler))
	return nil
}

// openBackend loads configuration, installs logging and tracing, and opens
// the configured storage backend. The returned cleanup drains pending
// uploads and flushes telemetry.
func openBackend(ctx context.Context, opts *options) (storage.Backend, func(), error) {
	v := viper.New()
	if opts.configFile != "" {
		v.SetConfigFile(opts.configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg, err := config.Load(v)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := setupLogger(cfg.LogLevel); err != nil {
		return nil, nil, err
	}

	shutdownTelemetry, err := telemetry.Init(ctx, "stash", version, opts.otlpEndpoint)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	backend, err := storage.Open(ctx, cfg)
	if err != nil {
		_ = shutdownTelemetry(ctx)
		return nil, nil, fmt.Errorf("failed to open %s storage: %w", cfg.Backend, err)
	}

	slog.Debug("Storage opened", "backend", cfg.Backend, "provider", cfg.Remote.Provider, "bucket", cfg.Remote.Bucket)

	cleanup := func() {
		drainCtx, cancel := context.WithTimeout(context.Background(), opts.drainTimeout)
		defer cancel()

		if err := backend.Close(drainCtx); err != nil {
			slog.Warn("Pending uploads did not finish", "err", err)
		}
		if err := shutdownTelemetry(drainCtx); err != nil {
			slog.Warn("Failed to flush telemetry", "err", err)
		}
	}

	return backend, cleanup, nil
}

func newPutCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "put <key> [file]",
		Short: "Store a blob read from a file or stdin",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				data []byte
				err  error
			)
			if len(args) == 2 {
				data, err = os.ReadFile(args[1])
			} else {
				data, err = io.ReadAll(cmd.InOrStdin())
			}
			if err != nil {
				return fmt.Errorf("failed to read input: %w", err)
			}

			backend, cleanup, err := openBackend(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer cleanup()

			if err := backend.Save(cmd.Context(), args[0], data); err != nil {
				return fmt.Errorf("failed to save %q: %w", args[0], err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "accepted %s (%s)\n", args[0], humanize.Bytes(uint64(len(data))))
			return nil
		},
	}
}

func newGetCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <key>",
		Short: "Print a stored blob or write it to --out",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			backend, cleanup, err := openBackend(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer cleanup()

			data, err := backend.Load(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("failed to load %q: %w", args[0], err)
			}

			if opts.outFile == "" {
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}

			if err := os.WriteFile(opts.outFile, data, 0o644); err != nil {
				return fmt.Errorf("failed to write %s: %w", opts.outFile, err)
			}
			slog.Info("Blob written", "key", args[0], "path", opts.outFile, "size", humanize.Bytes(uint64(len(data))))
			return nil
		},
	}

	cmd.Flags().StringVarP(&opts.outFile, "out", "o", "", "write the blob to this file instead of stdout")
	return cmd
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:           "stash",
		Short:         "Store and fetch blobs on local disk or an S3 bucket",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&opts.configFile, "config", "", "config file (environment variables take precedence)")
	root.PersistentFlags().StringVar(&opts.otlpEndpoint, "otlp-endpoint", "", "OTLP/HTTP endpoint for traces")
	root.PersistentFlags().DurationVar(&opts.drainTimeout, "drain-timeout", 30*time.Second, "how long to wait for pending uploads on exit")

	root.AddCommand(newPutCmd(opts), newGetCmd(opts))
	return root
}

func main() {
	// Optionally load environment variables from a .env file.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		slog.Error("Stash exited with error", "error", err)
		stop()
		os.Exit(1)
	}
}
