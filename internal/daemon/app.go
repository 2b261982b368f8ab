// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package daemon

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/ManuGH/armcell/internal/config"
	xglog "github.com/ManuGH/armcell/internal/log"
	"github.com/rs/zerolog"
)

// App owns the long-lived runtime: config reload wiring, the gripper action
// servers, the feedback and scene event loops and cell activation. Server
// management is delegated to Manager.
type App struct {
	logger       zerolog.Logger
	manager      Manager
	cfgHolder    *config.Holder
	cell         *Cell
	reloadSignal os.Signal
}

// NewApp creates a new App orchestrator and registers the cell termination
// hook, which runs first during shutdown.
func NewApp(logger zerolog.Logger, manager Manager, cfgHolder *config.Holder, c *Cell) *App {
	a := &App{
		logger:       logger,
		manager:      manager,
		cfgHolder:    cfgHolder,
		cell:         c,
		reloadSignal: syscall.SIGHUP,
	}
	if manager != nil && c != nil {
		if c.Subscriber != nil {
			manager.RegisterShutdownHook("scene_events", func(context.Context) error {
				return c.Subscriber.Close()
			})
		}
		manager.RegisterShutdownHook("cell_terminate", c.Coordinator.Terminate)
	}
	return a
}

// Run starts all owned background subsystems and blocks until ctx is
// cancelled or a fatal error occurs.
func (a *App) Run(ctx context.Context) error {
	if a.manager == nil {
		return ErrMissingManager
	}

	g, ctx := errgroup.WithContext(ctx)

	if a.cfgHolder != nil {
		if err := a.cfgHolder.StartWatcher(ctx); err != nil {
			a.logger.Warn().Err(err).Str(xglog.FieldEvent, "config.watcher_start_failed").Msg("failed to start config watcher")
		}
		defer a.cfgHolder.Stop()
	}

	if a.cfgHolder != nil && a.cell != nil {
		applyCh := make(chan config.AppConfig, 1)
		a.cfgHolder.RegisterListener(applyCh)

		g.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return nil
				case cfg := <-applyCh:
					a.apply(cfg)
				}
			}
		})
	}

	if a.cfgHolder != nil && a.reloadSignal != nil {
		g.Go(func() error {
			hupChan := make(chan os.Signal, 1)
			signal.Notify(hupChan, a.reloadSignal)
			defer signal.Stop(hupChan)

			for {
				select {
				case <-ctx.Done():
					return nil
				case <-hupChan:
					a.logger.Info().
						Str(xglog.FieldEvent, "config.reload_signal").
						Str("signal", a.reloadSignal.String()).
						Msg("received reload signal, reloading config")

					if err := a.cfgHolder.Reload(ctx); err != nil {
						a.logger.Warn().
							Err(err).
							Str(xglog.FieldEvent, "config.reload_failed").
							Msg("config reload failed")
					}
				}
			}
		})
	}

	if c := a.cell; c != nil {
		for _, srv := range c.Grippers {
			g.Go(func() error { return srv.Run(ctx) })
		}
		g.Go(func() error { return c.Feedback.Run(ctx) })
		if c.Subscriber != nil {
			g.Go(func() error { return c.Subscriber.Run(ctx) })
		}
		g.Go(func() error { return a.activate(ctx) })
	}

	g.Go(func() error {
		err := a.manager.Start(ctx)
		if err != nil {
			_ = a.manager.Shutdown(context.Background())
		}
		return err
	})

	return g.Wait()
}

// activate brings the controller session up and then the cell. Failure is
// fatal for the daemon.
func (a *App) activate(ctx context.Context) error {
	if err := a.cell.Session.Bootstrap(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("session bootstrap: %w", err)
	}
	if err := a.cell.Coordinator.Activate(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("cell activation: %w", err)
	}
	return nil
}

// apply pushes the reloadable parts of a new configuration into the running cell.
func (a *App) apply(cfg config.AppConfig) {
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil && cfg.LogLevel != "" {
		zerolog.SetGlobalLevel(lvl)
	}
	a.cell.Engine.SetConfig(cfg.MotionConfig())
	a.logger.Info().
		Str(xglog.FieldEvent, "config.applied").
		Msg("reloaded configuration applied to the running cell")
}
