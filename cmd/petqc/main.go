package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"petqc/pkg/cache"
	"petqc/pkg/config"
	"petqc/pkg/pipeline"
)

var (
	configPath  string
	metricsFile string
	verbose     bool
	noCache     bool

	cfg    *config.Config
	logger *slog.Logger
	store  *cache.Store
	runner *pipeline.Runner

	rootCmd = &cobra.Command{
		Use:   "petqc",
		Short: "Tag, summarize and quality-check PET region statistics",
		Long: `petqc turns raw per-region PET statistics into tagged result tables,
integrates dynamic time-activity curves, computes group descriptive statistics
and evaluates how well image-alignment metrics detect misregistration.`,
		SilenceUsage:       true,
		PersistentPreRunE:  setup,
		PersistentPostRunE: teardown,
	}
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		closeStore()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "Path to configuration file")
	rootCmd.PersistentFlags().StringVar(&metricsFile, "metrics-file", "", "Write stage metrics in Prometheus text format to this file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&noCache, "no-cache", false, "Recompute every stage instead of reusing cached artifacts")
}

func setup(cmd *cobra.Command, args []string) error {
	var err error
	cfg, err = config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	level := slog.LevelInfo
	if verbose || cfg.Output.Verbose {
		level = slog.LevelDebug
	}
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return nil
}

// getRunner opens the artifact cache and creates the stage runner on first use
func getRunner() (*pipeline.Runner, error) {
	if runner != nil {
		return runner, nil
	}
	if !noCache {
		var err error
		store, err = cache.Open(cache.Config{Dir: cfg.Output.CacheDir, Logger: logger})
		if err != nil {
			return nil, err
		}
	}
	r, err := pipeline.NewRunner(cfg, store, logger)
	if err != nil {
		return nil, err
	}
	runner = r
	return runner, nil
}

func teardown(cmd *cobra.Command, args []string) error {
	if runner != nil && metricsFile != "" {
		if err := runner.Telemetry().WriteTextfile(metricsFile); err != nil {
			return fmt.Errorf("failed to write metrics: %w", err)
		}
	}
	return closeStore()
}

func closeStore() error {
	if store == nil {
		return nil
	}
	err := store.Close()
	store = nil
	return err
}
