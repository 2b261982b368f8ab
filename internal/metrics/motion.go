// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	motionGoalsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "armcell_motion_goals_total",
		Help: "Motion goals by component, kind and outcome",
	}, []string{"component", "kind", "outcome"}) // outcome=reached|failed|rejected|cancelled

	motionGoalDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "armcell_motion_goal_duration_seconds",
		Help:    "Wall time spent executing a motion goal",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
	}, []string{"component", "kind"})

	ladderAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "armcell_motion_ladder_attempts_total",
		Help: "Retry ladder attempts by component, strategy and outcome",
	}, []string{"component", "strategy", "outcome"})

	replansTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "armcell_motion_replans_total",
		Help: "Replans triggered by scene changes",
	}, []string{"component"})

	componentInMotion = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "armcell_component_in_motion",
		Help: "Whether a component has a goal in flight (1) or not (0)",
	}, []string{"component"})

	mustStop = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "armcell_must_stop",
		Help: "Cell-wide must-stop advisory raised by an exhausted retry ladder",
	})
)

// RecordMotionGoal counts a finished goal and its duration.
func RecordMotionGoal(component, kind, outcome string, d time.Duration) {
	motionGoalsTotal.WithLabelValues(component, kind, outcome).Inc()
	if d > 0 {
		motionGoalDuration.WithLabelValues(component, kind).Observe(d.Seconds())
	}
}

// RecordLadderAttempt counts one retry ladder attempt.
func RecordLadderAttempt(component, strategy string, success bool) {
	outcome := "failed"
	if success {
		outcome = "succeeded"
	}
	ladderAttemptsTotal.WithLabelValues(component, strategy, outcome).Inc()
}

// IncReplan counts one scene-triggered replan.
func IncReplan(component string) {
	replansTotal.WithLabelValues(component).Inc()
}

// SetInMotion mirrors a component's in-motion flag.
func SetInMotion(component string, inMotion bool) {
	v := 0.0
	if inMotion {
		v = 1.0
	}
	componentInMotion.WithLabelValues(component).Set(v)
}

// SetMustStop mirrors the must-stop advisory.
func SetMustStop(v bool) {
	if v {
		mustStop.Set(1)
		return
	}
	mustStop.Set(0)
}
