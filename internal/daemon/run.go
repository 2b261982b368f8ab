// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package daemon

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/ManuGH/armcell/internal/config"
	"github.com/ManuGH/armcell/internal/health"
	xglog "github.com/ManuGH/armcell/internal/log"
	"github.com/ManuGH/armcell/internal/telemetry"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Options configures Run.
type Options struct {
	ConfigPath string
	Version    string
	Backends   Backends
}

// Run loads the configuration, assembles the cell and serves until ctx is
// cancelled.
func Run(ctx context.Context, opts Options) error {
	loader := config.NewLoader(opts.ConfigPath, opts.Version)
	cfg, err := loader.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	xglog.Configure(xglog.Config{
		Level:   cfg.LogLevel,
		Output:  os.Stdout,
		Service: "armcell",
		Version: opts.Version,
	})
	logger := xglog.WithComponent("daemon")
	for _, key := range loader.UnknownEnvKeys(os.Environ()) {
		logger.Warn().Str("key", key).Msg("unknown ARMCELL_ environment variable ignored")
	}

	listen := map[string]string{"api": cfg.API.ListenAddr}
	if cfg.Metrics.Enabled {
		listen["metrics"] = cfg.Metrics.ListenAddr
	}
	b := opts.Backends
	if err := health.PerformStartupChecks(ctx, health.StartupConfig{
		Mode:         cfg.Mode,
		ListenAddrs:  listen,
		HaveBackends: b.Controller != nil && b.Planner != nil && b.Signals != nil,
	}); err != nil {
		return fmt.Errorf("startup checks: %w", err)
	}

	provider, err := telemetry.NewProvider(ctx, cfg.TelemetryConfig())
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}

	c, err := Build(ctx, cfg, b)
	if err != nil {
		_ = provider.Shutdown(context.Background())
		return fmt.Errorf("build cell: %w", err)
	}

	deps := Deps{
		Logger:     logger,
		APIHandler: c.API.Handler(),
	}
	if cfg.Metrics.Enabled {
		deps.MetricsHandler = metricsMux()
		deps.MetricsAddr = cfg.Metrics.ListenAddr
	}
	mgr, err := NewManager(ServerConfig{
		ListenAddr:      cfg.API.ListenAddr,
		ReadTimeout:     10 * time.Second,
		IdleTimeout:     120 * time.Second,
		MaxHeaderBytes:  1 << 20,
		ShutdownTimeout: cfg.API.ShutdownTimeout,
	}, deps)
	if err != nil {
		_ = provider.Shutdown(context.Background())
		return err
	}
	mgr.RegisterShutdownHook("telemetry", provider.Shutdown)

	logger.Info().
		Str(xglog.FieldMode, cfg.Mode).
		Str("version", opts.Version).
		Str("config", loader.Path()).
		Msg("starting armcell")

	app := NewApp(logger, mgr, config.NewHolder(cfg, loader), c)
	return app.Run(ctx)
}

func metricsMux() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}
