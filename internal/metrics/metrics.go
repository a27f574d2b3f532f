// Package metrics holds the Prometheus collectors for service use cases,
// batch mutations and external source calls.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "tournee"

// Metrics owns a private registry so that several instances (tests, the
// CLI) never collide on the global default registerer.
type Metrics struct {
	registry *prometheus.Registry

	UseCaseTotal    *prometheus.CounterVec
	UseCaseDuration *prometheus.HistogramVec
	BatchItemsTotal *prometheus.CounterVec
	SourceDuration  *prometheus.HistogramVec
	PendingWrites   prometheus.Gauge
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		UseCaseTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "use_case_total",
				Help:      "Total number of service use cases by outcome",
			},
			[]string{"use_case", "outcome"},
		),
		UseCaseDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "use_case_duration_seconds",
				Help:      "Duration of service use cases in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"use_case"},
		),
		BatchItemsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "batch_items_total",
				Help:      "Per-piano outcomes of batch mutations",
			},
			[]string{"operation", "outcome"},
		),
		SourceDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "source_request_duration_seconds",
				Help:      "Duration of calls to the external system of record",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation", "outcome"},
		),
		PendingWrites: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pending_field_writes",
			Help:      "Number of debounced field writes waiting to be persisted",
		}),
	}
}

// Registry exposes the underlying registry for tests and custom exporters.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) ObserveUseCase(name string, d time.Duration, err error) {
	m.UseCaseTotal.WithLabelValues(name, outcome(err)).Inc()
	m.UseCaseDuration.WithLabelValues(name).Observe(d.Seconds())
}

func (m *Metrics) ObserveBatchItem(operation string, err error) {
	m.BatchItemsTotal.WithLabelValues(operation, outcome(err)).Inc()
}

// TrackSource returns a function that records the duration of a source call.
func (m *Metrics) TrackSource(operation string) func(error) {
	start := time.Now()
	return func(err error) {
		m.SourceDuration.WithLabelValues(operation, outcome(err)).Observe(time.Since(start).Seconds())
	}
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
