package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rickgao/binance-meta/internal/model"
)

// Metrics holds all Prometheus collectors for the poller service.
type Metrics struct {
	registry *prometheus.Registry

	// Poll cycle metrics
	PollsTotal   *prometheus.CounterVec
	PollDuration *prometheus.HistogramVec

	// Rate limiter metrics
	RateLimitDenials *prometheus.CounterVec
	BucketUsage      *prometheus.GaugeVec

	// Journal metrics
	JournalAppends        *prometheus.CounterVec
	JournalAppendFailures *prometheus.CounterVec

	// Store metrics
	StoreConflicts *prometheus.CounterVec

	// Stream metrics
	RefreshTriggers *prometheus.CounterVec
}

// New creates a metrics registry with all collectors registered against a
// private Prometheus registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		PollsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "metad_polls_total",
				Help: "Total number of completed poll attempts by kind and outcome",
			},
			[]string{"kind", "outcome"},
		),

		PollDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "metad_poll_duration_seconds",
				Help:    "Duration of poll fetches in seconds",
				Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
			[]string{"kind"},
		),

		RateLimitDenials: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "metad_rate_limit_denials_total",
				Help: "Total number of polls deferred by the rate limiter by kind",
			},
			[]string{"kind"},
		),

		BucketUsage: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "metad_rate_limit_bucket_usage",
				Help: "Most recent used weight reported by the exchange per bucket",
			},
			[]string{"bucket"},
		),

		JournalAppends: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "metad_journal_appends_total",
				Help: "Total number of snapshots appended to the journal by kind",
			},
			[]string{"kind"},
		),

		JournalAppendFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "metad_journal_append_failures_total",
				Help: "Total number of failed journal appends by kind",
			},
			[]string{"kind"},
		),

		StoreConflicts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "metad_store_conflicts_total",
				Help: "Total number of store publishes discarded for stale sequence",
			},
			[]string{"kind"},
		),

		RefreshTriggers: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "metad_refresh_triggers_total",
				Help: "Total number of out-of-cycle refresh triggers by source",
			},
			[]string{"source"},
		),
	}

	m.registry.MustRegister(
		m.PollsTotal,
		m.PollDuration,
		m.RateLimitDenials,
		m.BucketUsage,
		m.JournalAppends,
		m.JournalAppendFailures,
		m.StoreConflicts,
		m.RefreshTriggers,
	)

	return m
}

// PollCompleted records one finished poll attempt with its outcome and
// fetch duration.
func (m *Metrics) PollCompleted(kind model.ResourceKind, outcome model.Outcome, d time.Duration) {
	m.PollsTotal.WithLabelValues(string(kind), string(outcome)).Inc()
	m.PollDuration.WithLabelValues(string(kind)).Observe(d.Seconds())
}

// RateLimitDenied records a poll deferred by the limiter or throttled by
// the exchange.
func (m *Metrics) RateLimitDenied(kind model.ResourceKind) {
	m.RateLimitDenials.WithLabelValues(string(kind)).Inc()
}

// SetBucketUsage records the used weight the exchange reported for a bucket.
func (m *Metrics) SetBucketUsage(bucket string, used int) {
	m.BucketUsage.WithLabelValues(bucket).Set(float64(used))
}

// JournalAppended records a successful journal append.
func (m *Metrics) JournalAppended(kind model.ResourceKind) {
	m.JournalAppends.WithLabelValues(string(kind)).Inc()
}

// JournalAppendFailed records a journal append error.
func (m *Metrics) JournalAppendFailed(kind model.ResourceKind) {
	m.JournalAppendFailures.WithLabelValues(string(kind)).Inc()
}

// StoreConflict records a publish the store discarded as stale.
func (m *Metrics) StoreConflict(kind model.ResourceKind) {
	m.StoreConflicts.WithLabelValues(string(kind)).Inc()
}

// RefreshTriggered records an out-of-cycle refresh request.
func (m *Metrics) RefreshTriggered(source string) {
	m.RefreshTriggers.WithLabelValues(source).Inc()
}

// Handler returns an HTTP handler serving this registry in the Prometheus
// exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
