package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"ingest-router/internal/common/logging"
	"ingest-router/internal/config"
)

const defaultEnvFile = ".env"

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// NewRootCommand creates the ingest-router command tree.
func NewRootCommand() *cobra.Command {
	var envFile string
	var cfg *config.Config

	rootCmd := &cobra.Command{
		Use:   "ingest-router",
		Short: "Header-based ingest routing and notification dispatch",
		Long: `Routes ingest messages to decoder plugins by header patterns and
dispatches notifications about stored records to configured endpoints.

Configuration is read from the environment; a .env file is loaded first
when present.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := godotenv.Load(envFile); err != nil {
				if cmd.Flags().Changed("env-file") || !os.IsNotExist(err) {
					return fmt.Errorf("failed to load %s: %w", envFile, err)
				}
			}

			cfg = config.Load()
			if err := cfg.Validate(); err != nil {
				return err
			}
			return logging.InitGlobalLogger(cfg.LogLevel, cfg.LogFile)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			logging.MustSync()
		},
	}

	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", defaultEnvFile, "Environment file to load before reading configuration")

	rootCmd.AddCommand(serveCmd(func() *config.Config { return cfg }))
	rootCmd.AddCommand(checkCmd(func() *config.Config { return cfg }))

	return rootCmd
}

func serveCmd(cfg func() *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the router, notifier and admin API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return Serve(cmd.Context(), cfg())
		},
	}
}

// Serve runs the application until SIGINT or SIGTERM.
func Serve(ctx context.Context, cfg *config.Config) error {
	if ctx == nil {
		ctx = context.Background()
	}

	logging.Info("Starting ingest router",
		logging.Strings("roots", cfg.LocalizationRoots),
		logging.String("admin_port", cfg.AdminPort),
	)

	app, err := New(cfg, logging.GetGlobalLogger())
	if err != nil {
		logging.Error("Failed to initialize application", err)
		return err
	}

	if err := app.Start(ctx); err != nil {
		logging.Error("Failed to start application", err)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		app.Shutdown(shutdownCtx)
		return err
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case <-quit:
	case <-ctx.Done():
	}

	logging.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	return app.Shutdown(shutdownCtx)
}
