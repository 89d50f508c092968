package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/neox5/statbox/internal/app"
	"github.com/neox5/statbox/internal/config"
	"github.com/neox5/statbox/internal/generator"
	"github.com/neox5/statbox/internal/monitor"
	"github.com/neox5/statbox/internal/version"
)

func main() {
	cmd := &cli.Command{
		Name:    version.Program,
		Usage:   "In-process metrics pipeline with aggregation and pluggable outputs",
		Version: version.String(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   "config.yaml",
				Usage:   "path to configuration file",
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "enable debug logging",
			},
			&cli.BoolFlag{
				Name:  "watch",
				Usage: "reload the pipeline when the configuration file changes",
			},
		},
		Action: serve,
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func serve(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")

	// Configure logging level
	logLevel := slog.LevelInfo
	if cmd.Bool("debug") {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	slog.Info("starting statbox", "version", version.String(), "build", version.Info(), "config", configPath)

	slog.Debug("--- Configuration Loading ---")
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	slog.Debug("--- Pipeline Creation ---")
	application, err := app.New(cfg)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}
	defer func() {
		if err := application.Close(); err != nil {
			slog.Warn("failed to close pipeline", "error", err)
		}
	}()

	// Setup graceful shutdown
	shutdownCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	gen, err := generator.New(application.Scope(), cfg.Workload)
	if err != nil {
		return fmt.Errorf("failed to create generator: %w", err)
	}
	gen.Start()
	defer gen.Stop()

	if cfg.Monitor.Enabled {
		mon, err := monitor.New(cfg.Monitor.Interval, logger, application.Scope())
		if err != nil {
			return fmt.Errorf("failed to create monitor: %w", err)
		}
		mon.Run(shutdownCtx)
		defer mon.Wait()
	}

	var wg sync.WaitGroup
	errChan := make(chan error, 2)

	wg.Go(func() {
		if err := application.Serve(shutdownCtx); err != nil {
			errChan <- fmt.Errorf("prometheus endpoint: %w", err)
		}
	})

	if cmd.Bool("watch") || cfg.Settings.Watch {
		wg.Go(func() {
			if err := application.Watch(shutdownCtx, configPath); err != nil {
				errChan <- fmt.Errorf("config watch: %w", err)
			}
		})
	}

	slog.Debug("--- Application Running ---")

	select {
	case err := <-errChan:
		slog.Error("pipeline error", "error", err)
		stop()
	case <-shutdownCtx.Done():
	}

	slog.Debug("--- Shutdown Initiated ---")
	wg.Wait()

	slog.Info("shutdown complete")
	return nil
}
