// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package health

import (
	"context"
	"fmt"
	"net"

	"github.com/ManuGH/armcell/internal/log"
)

// StartupConfig lists what PerformStartupChecks verifies.
type StartupConfig struct {
	Mode string
	// ListenAddrs maps a name to an address that must be bindable.
	ListenAddrs map[string]string
	// HaveBackends reports whether a controller and planner were supplied.
	HaveBackends bool
}

// PerformStartupChecks validates the environment before the daemon starts.
func PerformStartupChecks(ctx context.Context, cfg StartupConfig) error {
	logger := log.WithComponent("startup-check")
	logger.Info().Msg("running pre-flight startup checks")

	if cfg.Mode == "hardware" && !cfg.HaveBackends {
		return fmt.Errorf("hardware mode requires a controller and planning backend")
	}
	if cfg.Mode == "virtual" {
		logger.Warn().Msg("virtual mode: simulated controller and planner, no robot is driven")
	}

	var lc net.ListenConfig
	for name, addr := range cfg.ListenAddrs {
		if addr == "" {
			continue
		}
		ln, err := lc.Listen(ctx, "tcp", addr)
		if err != nil {
			return fmt.Errorf("%s listen address %q unavailable: %w", name, addr, err)
		}
		_ = ln.Close()
		logger.Info().Str("name", name).Str("addr", addr).Msg("listen address available")
	}

	logger.Info().Msg("all startup checks passed")
	return nil
}
