package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	decisionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "caravan_decisions_total",
		Help: "Decisions served, by outcome.",
	}, []string{"outcome"})

	decisionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "caravan_decision_duration_seconds",
		Help:    "Wall time of one coordinated search.",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
	})

	simulationsEvaluated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "caravan_simulations_evaluated_total",
		Help: "Total simulations spent across all decisions.",
	})
)
