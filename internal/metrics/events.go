// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	sceneEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "armcell_scene_events_total",
		Help: "Scene events consumed by source and outcome",
	}, []string{"source", "outcome"}) // outcome=applied|invalid

	configReloadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "armcell_config_reloads_total",
		Help: "Configuration reloads by result",
	}, []string{"result"})

	configValidationErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "armcell_config_validation_errors_total",
		Help: "Total number of configuration validation errors",
	})
)

// RecordSceneEvent counts a consumed scene event.
func RecordSceneEvent(source string, applied bool) {
	outcome := "invalid"
	if applied {
		outcome = "applied"
	}
	sceneEventsTotal.WithLabelValues(source, outcome).Inc()
}

// RecordConfigReload counts a reload attempt.
func RecordConfigReload(ok bool) {
	result := ResultError
	if ok {
		result = ResultOK
	}
	configReloadsTotal.WithLabelValues(result).Inc()
}

// IncConfigValidationError counts a rejected configuration.
func IncConfigValidationError() {
	configValidationErrors.Inc()
}
