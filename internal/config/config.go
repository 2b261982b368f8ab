// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package config loads the cell configuration: defaults, then a strict YAML
// file, then ARMCELL_* environment overrides, then validation.
package config

import "time"

// Modes select the controller and planner backends.
const (
	ModeVirtual  = "virtual"
	ModeHardware = "hardware"
)

// AppConfig is the complete cell configuration.
type AppConfig struct {
	Version  string `yaml:"-"`
	LogLevel string `yaml:"logLevel"`
	Mode     string `yaml:"mode"`

	Controller  ControllerConfig  `yaml:"controller"`
	Planner     PlannerConfig     `yaml:"planner"`
	Session     SessionConfig     `yaml:"session"`
	Motion      MotionConfig      `yaml:"motion"`
	Components  []ComponentConfig `yaml:"components"`
	Gripper     GripperConfig     `yaml:"gripper"`
	API         APIConfig         `yaml:"api"`
	Metrics     MetricsConfig     `yaml:"metrics"`
	Telemetry   TelemetryConfig   `yaml:"telemetry"`
	SceneEvents SceneEventsConfig `yaml:"sceneEvents"`
}

// ControllerConfig bounds calls on the control channel.
type ControllerConfig struct {
	CallTimeout time.Duration `yaml:"callTimeout"`
	// RateLimit is in calls per second.
	RateLimit float64  `yaml:"rateLimit"`
	RateBurst int      `yaml:"rateBurst"`
	Tasks     []string `yaml:"tasks"`
}

// PlannerConfig bounds calls on the planning service.
type PlannerConfig struct {
	CallTimeout time.Duration `yaml:"callTimeout"`
}

// SessionConfig tunes the session driver and cell activation.
type SessionConfig struct {
	ConnectRetryInterval time.Duration `yaml:"connectRetryInterval"`
	// ConnectTimeout of zero waits for the controller forever.
	ConnectTimeout       time.Duration `yaml:"connectTimeout"`
	StopSettle           time.Duration `yaml:"stopSettle"`
	QuirkDelay           time.Duration `yaml:"quirkDelay"`
	StartSettle          time.Duration `yaml:"startSettle"`
	IdlePollInterval     time.Duration `yaml:"idlePollInterval"`
	IdleTimeout          time.Duration `yaml:"idleTimeout"`
	StreamConfirmTimeout time.Duration `yaml:"streamConfirmTimeout"`
	RecoveryDelay        time.Duration `yaml:"recoveryDelay"`
	CalibrationSettle    time.Duration `yaml:"calibrationSettle"`
	HoldForce            int           `yaml:"holdForce"`
	// ReadyPollInterval and ActivateRetryDelay drive cell activation.
	ReadyPollInterval  time.Duration `yaml:"readyPollInterval"`
	ActivateRetryDelay time.Duration `yaml:"activateRetryDelay"`
}

// MotionConfig tunes the motion engine.
type MotionConfig struct {
	ReplanPollInterval time.Duration `yaml:"replanPollInterval"`
	GoalTimeout        time.Duration `yaml:"goalTimeout"`
	StopSettle         time.Duration `yaml:"stopSettle"`
	AttemptDelay       time.Duration `yaml:"attemptDelay"`
	StrategyDelay      time.Duration `yaml:"strategyDelay"`
	ReachRecheckDelay  time.Duration `yaml:"reachRecheckDelay"`
	GripSettle         time.Duration `yaml:"gripSettle"`
	GripPollInterval   time.Duration `yaml:"gripPollInterval"`
	GripTimeout        time.Duration `yaml:"gripTimeout"`
	GripperLength      float64       `yaml:"gripperLength"`
	PickHover          float64       `yaml:"pickHover"`
	PickDisable        float64       `yaml:"pickDisable"`
	PlaceHover         float64       `yaml:"placeHover"`
	PlaceDown          float64       `yaml:"placeDown"`
	PickRetries        int           `yaml:"pickRetries"`
	PlaceAttempts      int           `yaml:"placeAttempts"`
	HomeRetries        int           `yaml:"homeRetries"`
	PathFraction       float64       `yaml:"pathFraction"`
	SpeedScale         float64       `yaml:"speedScale"`
	AccelScale         float64       `yaml:"accelScale"`
	Ladder             LadderConfig  `yaml:"ladder"`
}

// LadderConfig holds the retry ladder tuning.
type LadderConfig struct {
	Seeds             [][]float64 `yaml:"seeds"`
	RandomSeedIndex   int         `yaml:"randomSeedIndex"`
	JitterMin         int         `yaml:"jitterMin"`
	JitterMax         int         `yaml:"jitterMax"`
	SeedDistance      float64     `yaml:"seedDistance"`
	CurrentDistance   float64     `yaml:"currentDistance"`
	EquivalentRetries int         `yaml:"equivalentRetries"`
	LateralShift      float64     `yaml:"lateralShift"`
	FirstAngleMin     int         `yaml:"firstAngleMin"`
	FirstAngleMax     int         `yaml:"firstAngleMax"`
	SecondAngleMin    int         `yaml:"secondAngleMin"`
	SecondAngleMax    int         `yaml:"secondAngleMax"`
	PerturbRetries    int         `yaml:"perturbRetries"`
}

// ComponentConfig declares one planning component.
type ComponentConfig struct {
	ID          string    `yaml:"id"`
	EndEffector string    `yaml:"endEffector"`
	Home        []float64 `yaml:"home"`
	Members     []string  `yaml:"members"`
	// Gripper is "left", "right" or empty.
	Gripper string `yaml:"gripper"`
}

// GripperConfig tunes the gripper action servers.
type GripperConfig struct {
	FeedbackInterval time.Duration `yaml:"feedbackInterval"`
	Step             int           `yaml:"step"`
	QueueSize        int           `yaml:"queueSize"`
}

// APIConfig configures the operator HTTP server.
type APIConfig struct {
	ListenAddr      string        `yaml:"listenAddr"`
	RateLimit       int           `yaml:"rateLimit"` // requests per minute per client
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// MetricsConfig configures the prometheus endpoint.
type MetricsConfig struct {
	Enabled    bool   `yaml:"enabled"`
	ListenAddr string `yaml:"listenAddr"`
}

// TelemetryConfig configures OpenTelemetry tracing.
type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled"`
	ServiceName  string  `yaml:"serviceName"`
	Environment  string  `yaml:"environment"`
	ExporterType string  `yaml:"exporterType"`
	Endpoint     string  `yaml:"endpoint"`
	SamplingRate float64 `yaml:"samplingRate"`
}

// SceneEventsConfig configures the redis scene subscriber and the joint feedback watcher.
type SceneEventsConfig struct {
	Enabled          bool          `yaml:"enabled"`
	Addr             string        `yaml:"addr"`
	Password         string        `yaml:"password"`
	DB               int           `yaml:"db"`
	Channel          string        `yaml:"channel"`
	FeedbackInterval time.Duration `yaml:"feedbackInterval"`
}
