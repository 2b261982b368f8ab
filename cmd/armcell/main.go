// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Command armcell runs the dual-arm cell daemon.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ManuGH/armcell/internal/config"
	"github.com/ManuGH/armcell/internal/daemon"
	xglog "github.com/ManuGH/armcell/internal/log"
	"github.com/ManuGH/armcell/internal/version"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "armcell",
		Short:        "Dual-arm robot cell daemon",
		SilenceUsage: true,
	}
	root.AddCommand(newRunCmd(), newConfigCmd(), newVersionCmd())
	return root
}

// resolveConfigPath prefers the flag, then ARMCELL_CONFIG.
func resolveConfigPath(flagValue string) string {
	if p := strings.TrimSpace(flagValue); p != "" {
		return p
	}
	return strings.TrimSpace(config.ParseString(config.EnvPrefix+"CONFIG", ""))
}

func newRunCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the cell daemon",
		Long: `Loads the configuration, boots the controller session, activates the
cell and serves the operator API until SIGINT or SIGTERM. SIGHUP reloads the
configuration file.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			xglog.Configure(xglog.Config{
				Level:   "info",
				Service: "armcell",
				Version: version.Version,
			})

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			err := daemon.Run(ctx, daemon.Options{
				ConfigPath: resolveConfigPath(configPath),
				Version:    version.Version,
			})
			if err != nil {
				logger := xglog.WithComponent("daemon")
				logger.Error().
					Err(err).
					Str(xglog.FieldEvent, "daemon.exit").
					Msg("daemon stopped with error")
			}
			return err
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to config file (YAML)")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the build version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.String())
		},
	}
}
