package scan

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	framesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "barscan_frames_total",
			Help: "Frames processed by the decode stage, by outcome",
		},
		[]string{"outcome"},
	)

	decodeDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "barscan_decode_duration_seconds",
			Help:    "Engine decode time per frame",
			Buckets: []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
		},
	)

	snapshotsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "barscan_snapshots_total",
			Help: "Frame dumps by status",
		},
		[]string{"status"},
	)

	engineReconfigurations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "barscan_engine_reconfigurations_total",
			Help: "Times the engine was reconfigured after an options change",
		},
	)

	resultsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "barscan_results_dropped_total",
			Help: "Result entries dropped from the display channel because it was full",
		},
	)
)
