package server

import (
	"github.com/prometheus/client_golang/prometheus"
)

// metrics holds the prometheus instruments for the refinement service. Each
// server registers into its own registry so parallel test servers never
// collide.
type metrics struct {
	iterations prometheus.Counter
	runs       *prometheus.CounterVec
	bestScore  prometheus.Histogram
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		iterations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "layouttune",
			Subsystem: "refine",
			Name:      "iterations_total",
			Help:      "Total refinement iterations evaluated.",
		}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "layouttune",
			Subsystem: "refine",
			Name:      "runs_total",
			Help:      "Completed refinement runs by completion reason.",
		}, []string{"reason"}),
		bestScore: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "layouttune",
			Subsystem: "refine",
			Name:      "best_score",
			Help:      "Best combined quality score per completed run.",
			Buckets:   prometheus.LinearBuckets(0, 0.1, 11),
		}),
	}
	reg.MustRegister(m.iterations, m.runs, m.bestScore)
	return m
}
