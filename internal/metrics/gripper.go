// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	gripperGoalsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "armcell_gripper_goals_total",
		Help: "Gripper action goals by side and terminal status",
	}, []string{"side", "status"}) // status=rejected|succeeded|cancelled|aborted

	gripperActive = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "armcell_gripper_goals_active",
		Help: "Gripper goals currently accepted or executing",
	}, []string{"side"})
)

// RecordGripperGoal counts a gripper goal reaching status.
func RecordGripperGoal(side, status string) {
	gripperGoalsTotal.WithLabelValues(side, status).Inc()
}

// AddGripperActive adjusts the active goal gauge by delta.
func AddGripperActive(side string, delta float64) {
	gripperActive.WithLabelValues(side).Add(delta)
}
