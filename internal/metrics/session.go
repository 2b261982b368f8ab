// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	sessionPhase = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "armcell_session_phase",
		Help: "Current session phase (active phase=1; others 0)",
	}, []string{"phase"})

	sessionTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "armcell_session_transitions_total",
		Help: "Session phase transitions",
	}, []string{"from", "to", "event"})

	sessionSelfHealTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "armcell_session_self_heal_total",
		Help: "Undefined-state recoveries during streaming start by outcome",
	}, []string{"outcome"}) // outcome=recovered|failed

	sessionConnectRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "armcell_session_connect_retries_total",
		Help: "Connectivity polls that found the controller unreachable",
	})

	cellReady = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "armcell_ready",
		Help: "Whether the cell finished calibration (1) or not (0)",
	})
)

// SessionPhases lists every phase label so the one-hot gauge stays complete.
var SessionPhases = []string{"disconnected", "connected", "auto_mode_verified", "idle", "streaming", "undefined"}

// SetSessionPhase marks phase as active and zeroes the others.
func SetSessionPhase(phase string) {
	for _, p := range SessionPhases {
		v := 0.0
		if p == phase {
			v = 1.0
		}
		sessionPhase.WithLabelValues(p).Set(v)
	}
}

// RecordSessionTransition counts a committed phase change.
func RecordSessionTransition(from, to, event string) {
	sessionTransitionsTotal.WithLabelValues(from, to, event).Inc()
}

// RecordSelfHeal counts one undefined-state recovery attempt.
func RecordSelfHeal(recovered bool) {
	outcome := "failed"
	if recovered {
		outcome = "recovered"
	}
	sessionSelfHealTotal.WithLabelValues(outcome).Inc()
}

// IncConnectRetry counts one failed connectivity poll.
func IncConnectRetry() {
	sessionConnectRetries.Inc()
}

// SetReady records the readiness flag.
func SetReady(ready bool) {
	if ready {
		cellReady.Set(1)
		return
	}
	cellReady.Set(0)
}
