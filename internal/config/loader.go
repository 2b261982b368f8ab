// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Loader applies defaults, the config file and environment overrides.
type Loader struct {
	configPath string
	version    string
	// ConsumedEnvKeys records every environment key the loader looked at.
	ConsumedEnvKeys map[string]struct{}
}

// NewLoader creates a loader. An empty configPath skips the file stage.
func NewLoader(configPath, version string) *Loader {
	return &Loader{
		configPath:      configPath,
		version:         version,
		ConsumedEnvKeys: make(map[string]struct{}),
	}
}

// Path returns the config file path.
func (l *Loader) Path() string { return l.configPath }

// Load builds and validates the configuration. Precedence: env > file > defaults.
func (l *Loader) Load() (AppConfig, error) {
	cfg := Defaults()

	if l.configPath != "" {
		if err := l.loadFile(l.configPath, &cfg); err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
	}
	l.mergeEnv(&cfg)
	cfg.Version = l.version

	if err := Validate(cfg); err != nil {
		return cfg, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// loadFile decodes a single strict YAML document over cfg.
// Unknown fields are rejected.
func (l *Loader) loadFile(path string, cfg *AppConfig) error {
	path = filepath.Clean(path)
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("unsupported config format: %s (only YAML supported)", ext)
	}

	// #nosec G304 -- the config path is provided by the operator
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("strict config parse error: %w", err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errors.New("config file contains multiple documents or trailing content")
	}
	return nil
}

func (l *Loader) track(key string) string {
	key = EnvPrefix + key
	l.ConsumedEnvKeys[key] = struct{}{}
	return key
}

// mergeEnv applies ARMCELL_* overrides.
func (l *Loader) mergeEnv(cfg *AppConfig) {
	cfg.LogLevel = ParseString(l.track("LOG_LEVEL"), cfg.LogLevel)
	cfg.Mode = ParseString(l.track("MODE"), cfg.Mode)

	cfg.Controller.CallTimeout = ParseDuration(l.track("CONTROLLER_CALL_TIMEOUT"), cfg.Controller.CallTimeout)
	cfg.Controller.RateLimit = ParseFloat(l.track("CONTROLLER_RATE_LIMIT"), cfg.Controller.RateLimit)
	cfg.Controller.RateBurst = ParseInt(l.track("CONTROLLER_RATE_BURST"), cfg.Controller.RateBurst)

	cfg.Planner.CallTimeout = ParseDuration(l.track("PLANNER_CALL_TIMEOUT"), cfg.Planner.CallTimeout)

	cfg.Session.ConnectRetryInterval = ParseDuration(l.track("SESSION_CONNECT_RETRY_INTERVAL"), cfg.Session.ConnectRetryInterval)
	cfg.Session.ConnectTimeout = ParseDuration(l.track("SESSION_CONNECT_TIMEOUT"), cfg.Session.ConnectTimeout)
	cfg.Session.IdleTimeout = ParseDuration(l.track("SESSION_IDLE_TIMEOUT"), cfg.Session.IdleTimeout)
	cfg.Session.HoldForce = ParseInt(l.track("SESSION_HOLD_FORCE"), cfg.Session.HoldForce)

	cfg.Motion.GoalTimeout = ParseDuration(l.track("MOTION_GOAL_TIMEOUT"), cfg.Motion.GoalTimeout)
	cfg.Motion.GripperLength = ParseFloat(l.track("MOTION_GRIPPER_LENGTH"), cfg.Motion.GripperLength)
	cfg.Motion.PlaceAttempts = ParseInt(l.track("MOTION_PLACE_ATTEMPTS"), cfg.Motion.PlaceAttempts)
	cfg.Motion.SpeedScale = ParseFloat(l.track("MOTION_SPEED_SCALE"), cfg.Motion.SpeedScale)
	cfg.Motion.AccelScale = ParseFloat(l.track("MOTION_ACCEL_SCALE"), cfg.Motion.AccelScale)

	cfg.API.ListenAddr = ParseString(l.track("API_LISTEN_ADDR"), cfg.API.ListenAddr)
	cfg.API.RateLimit = ParseInt(l.track("API_RATE_LIMIT"), cfg.API.RateLimit)

	cfg.Metrics.Enabled = ParseBool(l.track("METRICS_ENABLED"), cfg.Metrics.Enabled)
	cfg.Metrics.ListenAddr = ParseString(l.track("METRICS_LISTEN_ADDR"), cfg.Metrics.ListenAddr)

	cfg.Telemetry.Enabled = ParseBool(l.track("TELEMETRY_ENABLED"), cfg.Telemetry.Enabled)
	cfg.Telemetry.ExporterType = ParseString(l.track("TELEMETRY_EXPORTER"), cfg.Telemetry.ExporterType)
	cfg.Telemetry.Endpoint = ParseString(l.track("TELEMETRY_ENDPOINT"), cfg.Telemetry.Endpoint)
	cfg.Telemetry.SamplingRate = ParseFloat(l.track("TELEMETRY_SAMPLING_RATE"), cfg.Telemetry.SamplingRate)

	cfg.SceneEvents.Enabled = ParseBool(l.track("SCENE_EVENTS_ENABLED"), cfg.SceneEvents.Enabled)
	cfg.SceneEvents.Addr = ParseString(l.track("SCENE_EVENTS_ADDR"), cfg.SceneEvents.Addr)
	cfg.SceneEvents.Password = ParseString(l.track("SCENE_EVENTS_PASSWORD"), cfg.SceneEvents.Password)
	cfg.SceneEvents.Channel = ParseString(l.track("SCENE_EVENTS_CHANNEL"), cfg.SceneEvents.Channel)
}

// UnknownEnvKeys lists ARMCELL_* variables in environ the loader never consumed.
func (l *Loader) UnknownEnvKeys(environ []string) []string {
	var out []string
	for _, kv := range environ {
		key, _, _ := strings.Cut(kv, "=")
		if !strings.HasPrefix(key, EnvPrefix) {
			continue
		}
		if _, ok := l.ConsumedEnvKeys[key]; !ok {
			out = append(out, key)
		}
	}
	sort.Strings(out)
	return out
}
