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
	plannerCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "armcell_planner_calls_total",
		Help: "Planning service calls by operation and result",
	}, []string{"op", "result"}) // result=ok|error|timeout

	plannerCallDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "armcell_planner_call_duration_seconds",
		Help:    "Latency of planning service calls",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
	}, []string{"op"})
)

// ObservePlannerCall records one planning service call.
func ObservePlannerCall(op, result string, d time.Duration) {
	plannerCallsTotal.WithLabelValues(op, result).Inc()
	if d > 0 {
		plannerCallDuration.WithLabelValues(op).Observe(d.Seconds())
	}
}
