package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/wirechat-tcp/internal/app"
	"github.com/vovakirdan/wirechat-tcp/internal/config"
	"github.com/vovakirdan/wirechat-tcp/internal/log"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		configPath string
		overrides  config.Config
	)

	cmd := &cobra.Command{
		Use:           "wirechat-server",
		Short:         "Multi-client TCP chat server",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			bootstrap := log.New("info")

			cfg, path, err := config.Load(bootstrap, configPath)
			if err != nil {
				bootstrap.Error().Err(err).Msg("failed to load config")
				return err
			}
			cfg.UpdateFrom(overrides)
			if cmd.Flags().Changed("port") {
				// Port 0 asks the kernel for a free port and must survive UpdateFrom.
				cfg.Port = overrides.Port
			}

			logger := log.New(cfg.LogLevel)
			logger.Info().Str("config", path).Str("addr", cfg.ListenAddr()).Msg("starting wirechat server")

			application, err := app.New(&cfg, logger)
			if err != nil {
				logger.Error().Err(err).Msg("failed to initialize server")
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := application.Run(ctx); err != nil {
				logger.Error().Err(err).Msg("server exited with error")
				return fmt.Errorf("run: %w", err)
			}
			logger.Info().Msg("server stopped")
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&configPath, "config", "c", "", "path to config file")
	flags.IntVarP(&overrides.Port, "port", "p", 0, "TCP port to listen on")
	flags.StringVar(&overrides.Host, "host", "", "interface to bind")
	flags.StringVar(&overrides.LogLevel, "log-level", "", "log level (debug, info, warn, error, off)")
	flags.StringVar(&overrides.AdminAddr, "admin-addr", "", "admin HTTP listen address, empty to disable")
	flags.StringVar(&overrides.JournalPath, "journal", "", "SQLite session journal path, empty to disable")
	flags.IntVar(&overrides.MaxClients, "max-clients", 0, "maximum simultaneous clients, 0 for unlimited")
	flags.DurationVar(&overrides.ShutdownTimeout, "shutdown-timeout", 0, "graceful shutdown timeout")

	return cmd
}
