package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SimulationsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cricketsim_simulations_started_total",
		Help: "Number of match simulations started.",
	})

	SimulationsCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cricketsim_simulations_completed_total",
		Help: "Number of match simulations that ran to completion.",
	})

	SimulationsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cricketsim_simulations_failed_total",
		Help: "Number of match simulations that failed terminally.",
	})

	SimulationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "cricketsim_simulation_duration_seconds",
		Help:    "Wall time of full match simulations.",
		Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
	})

	ChunksRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cricketsim_chunks_rejected_total",
		Help: "Provider chunks rejected by the validator, by reason.",
	}, []string{"reason"})

	ProviderRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cricketsim_provider_retries_total",
		Help: "Corrected chunk re-requests sent to the outcome provider.",
	})

	LedgerApplies = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cricketsim_ledger_operations_total",
		Help: "Stat ledger apply/reverse operations.",
	}, []string{"op"})
)
