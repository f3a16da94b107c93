// Package metrics holds the Prometheus collectors shared across packages.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ProviderCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "writedesk_provider_call_duration_seconds",
			Help:    "Duration of LLM provider calls in seconds",
			Buckets: []float64{0.1, 0.5, 1.0, 2.0, 5.0, 10.0, 20.0, 30.0},
		},
		[]string{"provider", "outcome"},
	)

	FetchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "writedesk_fetch_total",
			Help: "URL content fetches by outcome",
		},
		[]string{"outcome"},
	)

	OperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "writedesk_operations_total",
			Help: "Generate and summarize operations by outcome",
		},
		[]string{"operation", "outcome"},
	)

	InFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "writedesk_operations_in_flight",
			Help: "Operations currently waiting on a provider",
		},
	)
)
