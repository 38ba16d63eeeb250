// Package metrics holds the process-wide prometheus collectors.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CompileFailedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "h5runner_compile_failed_total",
			Help: "Total number of compilations that could not complete",
		},
		[]string{"mode"},
	)

	CompileCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "h5runner_compile_count_total",
			Help: "Total number of compilations",
		},
		[]string{"mode", "rebuild"},
	)

	CompileDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "h5runner_compile_duration_seconds",
			Help:    "Compilation duration in seconds",
			Buckets: []float64{0.1, 0.2, 0.5, 1, 1.5, 2, 5, 10, 30, 60, 120},
		},
		[]string{"mode"},
	)

	LastCompileEnd = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "h5runner_last_compile_end_timestamp",
			Help: "Unix timestamp of when the last compilation ended",
		},
		[]string{"mode"},
	)
)

// CompileSucceeded records a finished compilation.
func CompileSucceeded(mode string, rebuild bool, start time.Time) {
	label := "false"
	if rebuild {
		label = "true"
	}
	CompileCount.WithLabelValues(mode, label).Inc()
	CompileDuration.WithLabelValues(mode).Observe(time.Since(start).Seconds())
	LastCompileEnd.WithLabelValues(mode).SetToCurrentTime()
}

// CompileFailed records a compilation that could not complete.
func CompileFailed(mode string) {
	CompileFailedTotal.WithLabelValues(mode).Inc()
	LastCompileEnd.WithLabelValues(mode).SetToCurrentTime()
}
