package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters and histograms for the geocoding core.
type Metrics struct {
	GeocodeRequests *prometheus.CounterVec // labels: outcome={cache_hit,geocoded,no_results,provider_error,store_error}
	CacheLookups    *prometheus.CounterVec // labels: result={hit,miss}

	ProviderDuration prometheus.Histogram
	BatchSize        prometheus.Histogram

	EventsPublished    prometheus.Counter
	EventPublishErrors prometheus.Counter
}

// NewMetrics creates and registers all geocoding metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		GeocodeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "geocoding",
			Name:      "requests_total",
			Help:      "Geocode requests by outcome.",
		}, []string{"outcome"}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "geocoding",
			Name:      "cache_lookups_total",
			Help:      "Cache lookups by result.",
		}, []string{"result"}),
		ProviderDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "geocoding",
			Name:      "provider_request_duration_seconds",
			Help:      "Provider API request duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
		BatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "geocoding",
			Name:      "batch_size",
			Help:      "Number of addresses per batch geocode request.",
			Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500},
		}),
		EventsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "geocoding",
			Name:      "events_published_total",
			Help:      "Geocoded-address events written to the platform topic.",
		}),
		EventPublishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "geocoding",
			Name:      "event_publish_errors_total",
			Help:      "Failed attempts to publish geocoded-address events.",
		}),
	}

	prometheus.MustRegister(
		m.GeocodeRequests,
		m.CacheLookups,
		m.ProviderDuration,
		m.BatchSize,
		m.EventsPublished,
		m.EventPublishErrors,
	)

	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		GeocodeRequests:    prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "geocoding", Name: "requests_total"}, []string{"outcome"}),
		CacheLookups:       prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "geocoding", Name: "cache_lookups_total"}, []string{"result"}),
		ProviderDuration:   prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "geocoding", Name: "provider_request_duration_seconds"}),
		BatchSize:          prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "geocoding", Name: "batch_size"}),
		EventsPublished:    prometheus.NewCounter(prometheus.CounterOpts{Namespace: "geocoding", Name: "events_published_total"}),
		EventPublishErrors: prometheus.NewCounter(prometheus.CounterOpts{Namespace: "geocoding", Name: "event_publish_errors_total"}),
	}
}
