// Command misud serves the unit engine over JSON-RPC on a unix socket.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"

	"github.com/misu-units/misu/internal/config"
	"github.com/misu-units/misu/internal/daemon"
	"github.com/misu-units/misu/internal/logger"
	"github.com/misu-units/misu/pkg/numfmt"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), shutdownSignals...)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:          "misud",
		Short:        "Unit engine daemon",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "config file (default $MISU_CONFIG or ~/.misu/config.yaml)")
	return cmd
}

func loadConfig(path string) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if path != "" {
		cfg, err = config.LoadFile(path)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	logCfg, err := logger.ConfigFrom(cfg.LogLevel, cfg.LogFormat, os.Stderr)
	if err != nil {
		return nil, err
	}
	logger.Init(logCfg)

	tag, err := language.Parse(cfg.Locale)
	if err != nil {
		return nil, fmt.Errorf("locale %q: %w", cfg.Locale, err)
	}
	numfmt.SetLocale(tag)
	return cfg, nil
}

func run(ctx context.Context, cfg *config.Config) error {
	d, err := daemon.NewDaemon(cfg)
	if err != nil {
		return fmt.Errorf("failed to create daemon: %w", err)
	}

	if err := d.Start(ctx); err != nil {
		if errors.Is(err, daemon.ErrLockHeld) {
			fmt.Println("Daemon already running")
			return nil
		}
		return fmt.Errorf("failed to start daemon: %w", err)
	}

	d.Wait()
	logger.Info("daemon stopped", "uptime", d.Uptime().String())
	return nil
}
