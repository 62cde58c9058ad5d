// aigated is the AI resilience gateway daemon: it fronts every AI provider
// the backend depends on with key rotation, circuit breaking, retries, and
// cross-provider failover.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/quotewise/aigate/config"
	"github.com/quotewise/aigate/gateway"
	aigatelogger "github.com/quotewise/aigate/logger"
	"github.com/quotewise/aigate/server"
)

const shutdownTimeout = 30 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Parse command-line flags
	var (
		configPath = flag.String("config", config.GetConfigPath(), "Path to YAML config file")
		listenAddr = flag.String("listen", "", "HTTP listen address (overrides config)")
		logFile    = flag.String("logfile", "", "Path to log file. If not set, logs to stdout/stderr")
		pretty     = flag.Bool("pretty", false, "Use pretty console output (only valid when logfile is not set)")
	)
	flag.Parse()

	// Validate that --logfile and --pretty are mutually exclusive
	if *logFile != "" && *pretty {
		return fmt.Errorf("--logfile and --pretty are mutually exclusive")
	}

	// Initialize logger with options
	logger, err := aigatelogger.InitWithOptions(*logFile, *pretty)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if *listenAddr != "" {
		cfg.Server.Listen = *listenAddr
	}

	// Assemble the credential pool and the provider adapters
	keys := config.DiscoverKeys(cfg)
	adapters, err := config.BuildAdapters(cfg, keys)
	if err != nil {
		return err
	}

	gw := gateway.New(cfg.GatewayConfig(), adapters, keys, logger)
	logger.Info().
		Strs("providers", gw.Providers()).
		Int("keys", len(keys)).
		Str("listen", cfg.Server.Listen).
		Msg("aigated starting")

	// Background health prober
	if !cfg.Probe.Disabled {
		prober, err := gateway.NewProber(gw, cfg.Probe.Schedule, logger)
		if err != nil {
			return fmt.Errorf("failed to create health prober: %w", err)
		}
		prober.Start()
		defer prober.Stop()
	}

	// HTTP server with graceful shutdown
	srv := server.New(gw, logger)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Run(cfg.Server.Listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case sig := <-quit:
		logger.Info().Str("signal", sig.String()).Msg("Shutting down")
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("forced shutdown: %w", err)
	}

	logger.Info().Msg("aigated stopped")
	return nil
}
