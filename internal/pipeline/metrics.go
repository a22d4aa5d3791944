package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	panelsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "comic_pipeline_panels_total",
			Help: "Total number of panels processed by the image pipeline.",
		},
		[]string{"status"},
	)
	panelDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "comic_pipeline_panel_duration_seconds",
			Help:    "Histogram of per-panel image generation durations.",
			Buckets: []float64{1, 2.5, 5, 10, 20, 40, 60, 120},
		},
	)
	runsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "comic_pipeline_runs_total",
			Help: "Total number of pipeline runs by outcome.",
		},
		[]string{"outcome"},
	)
)
