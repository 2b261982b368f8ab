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
	controllerCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "armcell_controller_calls_total",
		Help: "Controller channel calls by operation and result",
	}, []string{"op", "result"}) // result=ok|error

	controllerCallDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "armcell_controller_call_duration_seconds",
		Help:    "Latency of controller channel calls",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2},
	}, []string{"op"})
)

// ObserveControllerCall records one controller call.
func ObserveControllerCall(op, result string, d time.Duration) {
	controllerCallsTotal.WithLabelValues(op, result).Inc()
	if d > 0 {
		controllerCallDuration.WithLabelValues(op).Observe(d.Seconds())
	}
}
