package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"
)

// Metrics holds all prometheus collectors on a private registry so that
// tests can create isolated instances.
type Metrics struct {
	registry *prometheus.Registry

	RequestDuration    *prometheus.HistogramVec
	RequestsTotal      *prometheus.CounterVec
	TransactionsPosted *prometheus.CounterVec
	SplitsCreated      prometheus.Counter
	CacheHits          *prometheus.CounterVec
	CacheMisses        *prometheus.CounterVec
	ExternalErrors     *prometheus.CounterVec
	ActiveUsers        prometheus.Gauge
}

// LedgerSnapshot is a point-in-time read of the core counters, used by the
// operational stats endpoint.
type LedgerSnapshot struct {
	TransactionsPosted float64 `json:"transactions_posted"`
	SplitsCreated      float64 `json:"splits_created"`
	RequestsTotal      float64 `json:"requests_total"`
	ExternalErrors     float64 `json:"external_errors"`
}

// NewMetrics creates the collectors and registers them on a fresh registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "splitbook_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"method", "route", "status"}),
		RequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "splitbook_requests_total",
			Help: "Total HTTP requests by status class.",
		}, []string{"status"}),
		TransactionsPosted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "splitbook_transactions_posted_total",
			Help: "Ledger transactions posted, by kind.",
		}, []string{"kind"}),
		SplitsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "splitbook_splits_created_total",
			Help: "Split expenses created.",
		}),
		CacheHits: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "splitbook_cache_hits_total",
			Help: "Cache hits by cache name.",
		}, []string{"cache"}),
		CacheMisses: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "splitbook_cache_misses_total",
			Help: "Cache misses by cache name.",
		}, []string{"cache"}),
		ExternalErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "splitbook_external_errors_total",
			Help: "Errors talking to external services, by service.",
		}, []string{"service"}),
		ActiveUsers: factory.NewGauge(prometheus.GaugeOpts{
			Name: "splitbook_active_users",
			Help: "Users with a valid refresh token.",
		}),
	}
}

// Handler exposes the private registry for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// GetLedgerSnapshot gathers the registry and sums the core counters across
// their label dimensions.
func (m *Metrics) GetLedgerSnapshot() LedgerSnapshot {
	var snap LedgerSnapshot

	families, err := m.registry.Gather()
	if err != nil {
		return snap
	}

	for _, fam := range families {
		total := counterValue(fam)

		switch fam.GetName() {
		case "splitbook_transactions_posted_total":
			snap.TransactionsPosted = total
		case "splitbook_splits_created_total":
			snap.SplitsCreated = total
		case "splitbook_requests_total":
			snap.RequestsTotal = total
		case "splitbook_external_errors_total":
			snap.ExternalErrors = total
		}
	}

	return snap
}

// counterValue sums a counter family across its label dimensions.
func counterValue(fam *dto.MetricFamily) float64 {
	var total float64
	for _, metric := range fam.GetMetric() {
		if c := metric.GetCounter(); c != nil {
			total += c.GetValue()
		}
	}
	return total
}
