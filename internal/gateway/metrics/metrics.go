// Package metrics exposes Prometheus instrumentation for the gateway.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the gateway's Prometheus collectors.
type Metrics struct {
	Requests       *prometheus.CounterVec
	DecodeFailures prometheus.Counter
	EncodeFailures prometheus.Counter
	EngineFailures prometheus.Counter
	EngineDuration prometheus.Histogram
}

// New registers the gateway collectors on reg. Passing nil uses the default
// registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		Requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "recordgate",
			Name:      "requests_total",
			Help:      "Execute requests by message name and outcome.",
		}, []string{"message", "outcome"}),
		DecodeFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "recordgate",
			Name:      "decode_failures_total",
			Help:      "Envelopes that failed request decoding.",
		}),
		EncodeFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "recordgate",
			Name:      "encode_failures_total",
			Help:      "Results that failed response encoding.",
		}),
		EngineFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "recordgate",
			Name:      "engine_failures_total",
			Help:      "Messages the engine faulted on.",
		}),
		EngineDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "recordgate",
			Name:      "engine_duration_seconds",
			Help:      "Engine execution latency.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}

// Handler returns the HTTP handler serving the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
