package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors of the HTTP endpoint.
type Metrics struct {
	conversions *prometheus.CounterVec
	rows        prometheus.Counter
	inputBytes  prometheus.Histogram
	duration    prometheus.Histogram
}

// NewMetrics registers the collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		conversions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "jsonflat",
				Name:      "conversions_total",
				Help:      "Conversions handled, by outcome",
			},
			[]string{"outcome"},
		),
		rows: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "jsonflat",
			Name:      "rows_total",
			Help:      "CSV data rows produced",
		}),
		inputBytes: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "jsonflat",
			Name:      "request_body_bytes",
			Help:      "Size of conversion request bodies",
			Buckets:   prometheus.ExponentialBuckets(1024, 4, 8),
		}),
		duration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "jsonflat",
			Name:      "conversion_duration_seconds",
			Help:      "Time spent converting a request",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}

// newRegistry returns a registry with the Go runtime and process collectors.
func newRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}
