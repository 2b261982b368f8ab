// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"errors"
	"testing"

	"github.com/ManuGH/armcell/internal/validate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_Defaults(t *testing.T) {
	require.NoError(t, Validate(Defaults()))
}

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*AppConfig)
		field  string
	}{
		{"mode", func(c *AppConfig) { c.Mode = "quantum" }, "mode"},
		{"log level", func(c *AppConfig) { c.LogLevel = "loud" }, "logLevel"},
		{"hold force", func(c *AppConfig) { c.Session.HoldForce = 21 }, "session.holdForce"},
		{"no tasks", func(c *AppConfig) { c.Controller.Tasks = nil }, "controller.tasks"},
		{"planner timeout", func(c *AppConfig) { c.Planner.CallTimeout = 0 }, "planner.callTimeout"},
		{"gripper step", func(c *AppConfig) { c.Gripper.Step = 30 }, "gripper.step"},
		{"speed scale", func(c *AppConfig) { c.Motion.SpeedScale = 1.5 }, "motion.speedScale"},
		{"place attempts", func(c *AppConfig) { c.Motion.PlaceAttempts = 0 }, "motion.placeAttempts"},
		{"disable above hover", func(c *AppConfig) { c.Motion.PickDisable = 0.5 }, "motion.pickDisable"},
		{"short seed", func(c *AppConfig) { c.Motion.Ladder.Seeds[3] = []float64{0, 1} }, "motion.ladder.seeds[3]"},
		{"seed index", func(c *AppConfig) { c.Motion.Ladder.RandomSeedIndex = 99 }, "motion.ladder.randomSeedIndex"},
		{"angle order", func(c *AppConfig) { c.Motion.Ladder.FirstAngleMax = 10 }, "motion.ladder.firstAngleMax"},
		{"duplicate id", func(c *AppConfig) { c.Components[1].ID = "left_arm" }, "components[1].id"},
		{"unknown member", func(c *AppConfig) { c.Components[2].Members = []string{"third_arm"} }, "components[2].members"},
		{"gripper side", func(c *AppConfig) { c.Components[0].Gripper = "middle" }, "components[0].gripper"},
		{"shared gripper", func(c *AppConfig) { c.Components[1].Gripper = "left" }, "components[1].gripper"},
		{"home joints", func(c *AppConfig) { c.Components[0].Home = []float64{1, 2, 3} }, "components[0].home"},
		{"listen addr", func(c *AppConfig) { c.API.ListenAddr = "8080" }, "api.listenAddr"},
		{"metrics clash", func(c *AppConfig) { c.Metrics.ListenAddr = c.API.ListenAddr }, "metrics.listenAddr"},
		{"exporter", func(c *AppConfig) {
			c.Telemetry.Enabled = true
			c.Telemetry.ExporterType = "zipkin"
		}, "telemetry.exporterType"},
		{"scene channel", func(c *AppConfig) {
			c.SceneEvents.Enabled = true
			c.SceneEvents.Channel = " "
		}, "sceneEvents.channel"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(&cfg)

			err := Validate(cfg)
			require.Error(t, err)
			var verr validate.ValidationError
			require.True(t, errors.As(err, &verr))

			fields := make([]string, 0, len(verr.Errors()))
			for _, e := range verr.Errors() {
				fields = append(fields, e.Field)
			}
			assert.Contains(t, fields, tt.field)
		})
	}
}

func TestValidate_DisabledSectionsAreNotChecked(t *testing.T) {
	cfg := Defaults()
	cfg.Telemetry.Enabled = false
	cfg.Telemetry.ExporterType = "zipkin"
	cfg.Metrics.Enabled = false
	cfg.Metrics.ListenAddr = "nope"
	assert.NoError(t, Validate(cfg))
}
