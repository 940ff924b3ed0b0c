package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hamed0406/sitewatch/internal/app"
	"github.com/hamed0406/sitewatch/internal/config"
	"github.com/hamed0406/sitewatch/internal/logging"
)

type options struct {
	configPath string
	url        string
	backend    string
	logLevel   string
	snapshot   bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:           "sitewatch-check",
		Short:         "Run one evaluation cycle and print the result as JSON",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, opts)
		},
	}
	f := cmd.Flags()
	f.StringVarP(&opts.configPath, "config", "c", "", "YAML config file (default: environment only)")
	f.StringVar(&opts.url, "url", "", "override MONITOR_URL")
	f.StringVar(&opts.backend, "backend", "", "override STATE_BACKEND (s3, localfs, memory, postgres)")
	f.StringVar(&opts.logLevel, "log-level", "", "override LOG_LEVEL")
	f.BoolVar(&opts.snapshot, "snapshot", false, "print the stored state instead of running a cycle")
	return cmd
}

func loadConfig(opts *options) (config.Config, error) {
	if opts.configPath != "" {
		return config.LoadFile(opts.configPath)
	}
	return config.Load()
}

func run(cmd *cobra.Command, opts *options) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	if opts.url != "" {
		cfg.MonitorURL = opts.url
	}
	if opts.backend != "" {
		cfg.StateBackend = opts.backend
	}
	if opts.logLevel != "" {
		cfg.LogLevel = opts.logLevel
	}

	logger, err := logging.NewLogger(cfg.LogDir, cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger, app.Overrides{})
	if err != nil {
		return err
	}
	defer a.Close()

	var out any
	if opts.snapshot {
		out, err = a.Store.Snapshot(ctx)
	} else {
		out, err = a.Handler.Handle(ctx)
	}
	if err != nil {
		logger.Error("check_failed", zap.Error(err))
		return fmt.Errorf("check failed: %w", err)
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
