// Package metrics holds the prometheus collectors of the client.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups every collector. A nil *Metrics is valid and records nothing.
type Metrics struct {
	RetryAttempts     prometheus.Counter
	InitFetches       *prometheus.CounterVec
	InitFetchDuration prometheus.Histogram
	StoreDesyncs      *prometheus.CounterVec
	WSClients         prometheus.Gauge
}

// New creates the collectors and registers them with reg
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RetryAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "toyrent_retry_attempts_total",
			Help: "Failed attempts that were retried.",
		}),
		InitFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "toyrent_init_fetch_total",
			Help: "Initial data loads by result.",
		}, []string{"result"}),
		InitFetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "toyrent_init_fetch_duration_seconds",
			Help:    "Duration of initial data loads, retries included.",
			Buckets: prometheus.DefBuckets,
		}),
		StoreDesyncs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "toyrent_store_desync_total",
			Help: "Mutations skipped because their target was not in the store.",
		}, []string{"mutator"}),
		WSClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "toyrent_ws_clients",
			Help: "Connected WebSocket state subscribers.",
		}),
	}
	reg.MustRegister(m.RetryAttempts, m.InitFetches, m.InitFetchDuration, m.StoreDesyncs, m.WSClients)
	return m
}

// ObserveRetry counts one retried attempt
func (m *Metrics) ObserveRetry() {
	if m == nil {
		return
	}
	m.RetryAttempts.Inc()
}

// ObserveInitFetch records the outcome of one FetchInitData call
func (m *Metrics) ObserveInitFetch(start time.Time, err error) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "failure"
	}
	m.InitFetches.WithLabelValues(result).Inc()
	m.InitFetchDuration.Observe(time.Since(start).Seconds())
}

// ObserveDesync counts a skipped mutation
func (m *Metrics) ObserveDesync(mutator string) {
	if m == nil {
		return
	}
	m.StoreDesyncs.WithLabelValues(mutator).Inc()
}

// SetWSClients records the number of connected WebSocket clients
func (m *Metrics) SetWSClients(n int) {
	if m == nil {
		return
	}
	m.WSClients.Set(float64(n))
}
