package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Namespace for all eventops metrics
const namespace = "eventops"

// Registry is the global Prometheus registry for all metrics
var Registry = prometheus.NewRegistry()

// AppInfo is a gauge that exposes application version information as labels
var AppInfo = promauto.With(Registry).NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "app_info",
		Help:      "Application version information (always set to 1, version info in labels)",
	},
	[]string{"version", "commit", "build_date"},
)

// Auth gate metrics
var (
	// AuthDecisions counts gate outcomes.
	// stage: authenticate|authorize, outcome: allowed|public|missing_token|invalid_token|forbidden|error
	AuthDecisions = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_decisions_total",
			Help:      "Auth gate decisions by stage and outcome",
		},
		[]string{"stage", "outcome"},
	)

	// RateLimited counts requests rejected by the rate limiter, by tier
	RateLimited = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the rate limiter",
		},
		[]string{"tier"},
	)

	// LoginAttempts counts login attempts by result (success|failure)
	LoginAttempts = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "login_attempts_total",
			Help:      "Total number of login attempts",
		},
		[]string{"result"},
	)
)

// Change history metrics
var (
	// HistoryEntriesRecorded counts entries written to the change history
	HistoryEntriesRecorded = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "history_entries_recorded_total",
			Help:      "Total number of change history entries recorded",
		},
		[]string{"entity_type", "action"},
	)

	// HistoryWriteFailures counts best-effort history writes that failed
	// after the primary mutation succeeded
	HistoryWriteFailures = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "history_write_failures_total",
			Help:      "Total number of change history writes that failed and were dropped",
		},
		[]string{"entity_type"},
	)

	// HistoryEntriesPruned counts entries removed by the retention sweep
	HistoryEntriesPruned = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "history_entries_pruned_total",
			Help:      "Total number of change history entries removed by the retention sweep",
		},
	)

	// HistoryCleanupDuration tracks the duration of retention sweeps
	HistoryCleanupDuration = promauto.With(Registry).NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "history_cleanup_duration_seconds",
			Help:      "Duration of change history retention sweeps in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
		},
	)

	// HistoryCleanupErrors counts failed retention sweeps
	HistoryCleanupErrors = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "history_cleanup_errors_total",
			Help:      "Total number of failed change history retention sweeps",
		},
	)
)

var initOnce sync.Once

// Init registers runtime collectors and sets version information
func Init(version, commit, buildDate string) {
	initOnce.Do(func() {
		// Register default Go metrics (memory, goroutines, GC, etc.)
		Registry.MustRegister(collectors.NewGoCollector())

		// Register process metrics (CPU, memory, file descriptors)
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})

	AppInfo.WithLabelValues(version, commit, buildDate).Set(1)
}

// Handler exposes Registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{Registry: Registry})
}
