package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// turnsTotal counts finished turns.
	// Labels: outcome (applied, skipped, failed)
	turnsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mbtichat",
		Name:      "turns_total",
		Help:      "Finished conversation turns by outcome",
	}, []string{"outcome"})

	patchEntriesApplied = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "mbtichat",
		Name:      "patch_entries_applied_total",
		Help:      "Traits patch entries applied to the active profile",
	})

	turnDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "mbtichat",
		Name:      "turn_duration_seconds",
		Help:      "Wall time of one turn including the remote call",
		Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30, 60},
	})
)
