// Package main implements the entry point for the microservices
// framework host: it boots the framework, optionally exposes metrics
// and bridges events to NATS, and runs until signalled.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/xru192/CppMicroServices/config"
	"github.com/xru192/CppMicroServices/framework"
	"github.com/xru192/CppMicroServices/metric"
	"github.com/xru192/CppMicroServices/natsbridge"
)

// Build information constants
const (
	Version = "1.0.0"
	appName = "microfwk"
)

func main() {
	// Add panic recovery
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := run(); err != nil {
		slog.Error("Application failed", "error", err, "exit_code", 1)
		os.Exit(1)
	}
}

func run() error {
	cliCfg := parseFlags()
	if cliCfg.ShowVersion {
		fmt.Printf("%s %s\n", appName, Version)
		return nil
	}
	if err := validateFlags(cliCfg); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}

	logger := setupLogger(cliCfg.LogLevel, cliCfg.LogFormat)
	slog.SetDefault(logger)

	cfg, err := loadConfiguration(cliCfg)
	if err != nil {
		return err
	}
	if cliCfg.Validate {
		logger.Info("Configuration is valid")
		return nil
	}

	metricsRegistry := metric.NewMetricsRegistry()

	fwk := framework.New(
		framework.WithLogger(logger),
		framework.WithProperties(cfg.Framework.Properties),
		framework.WithStorageRoot(cfg.Framework.StorageDir),
		framework.WithMetrics(metricsRegistry.CoreMetrics()),
	)
	if err := fwk.Start(); err != nil {
		return fmt.Errorf("framework start: %w", err)
	}
	logger.Info("Framework started",
		"properties", len(fwk.Properties()), "storage", cfg.Framework.StorageDir)

	var metricsServer *metric.Server
	if cfg.Metrics.Enabled {
		metricsServer = metric.NewServer(cfg.Metrics.Port, cfg.Metrics.Path, metricsRegistry)
		go func() {
			if err := metricsServer.Start(); err != nil {
				logger.Error("Metrics server failed", "error", err)
			}
		}()
		logger.Info("Metrics server listening", "address", metricsServer.Address())
	}

	var bridge *natsbridge.Bridge
	var nc *nats.Conn
	if cfg.NATS.Enabled {
		nc, err = nats.Connect(
			cfg.NATS.URLs[0],
			nats.MaxReconnects(cfg.NATS.MaxReconnects),
			nats.ReconnectWait(cfg.NATS.ReconnectWait),
		)
		if err != nil {
			logger.Warn("NATS connection failed; event bridge disabled", "error", err)
		} else {
			bridge, err = natsbridge.Attach(fwk.Context(), nc,
				natsbridge.WithSubjectPrefix(cfg.NATS.SubjectPrefix),
				natsbridge.WithLogger(logger),
			)
			if err != nil {
				return fmt.Errorf("event bridge attach: %w", err)
			}
			logger.Info("Event bridge attached", "prefix", cfg.NATS.SubjectPrefix)
		}
	}

	waitForShutdown(logger)

	if bridge != nil {
		_ = bridge.Close()
	}
	if nc != nil {
		nc.Close()
	}
	if metricsServer != nil {
		_ = metricsServer.Stop()
	}

	done := make(chan error, 1)
	go func() { done <- fwk.Stop() }()
	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("framework stop: %w", err)
		}
	case <-time.After(cliCfg.ShutdownTimeout):
		return fmt.Errorf("framework stop timed out after %s", cliCfg.ShutdownTimeout)
	}

	logger.Info("Shutdown complete")
	return nil
}

func loadConfiguration(cliCfg *CLIConfig) (*config.Config, error) {
	loader := config.NewLoader()
	loader.EnableValidation(true)

	if cliCfg.ConfigPath != "" {
		return loader.LoadFile(cliCfg.ConfigPath)
	}
	return loader.Load()
}

func waitForShutdown(logger *slog.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("Shutdown signal received", "signal", sig.String())
}
