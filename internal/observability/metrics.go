package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "easel",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "easel",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
	commandsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "easel",
			Subsystem: "bridge",
			Name:      "commands_total",
			Help:      "Commands dispatched toward the plugin, by outcome.",
		},
		[]string{"command", "outcome"},
	)
	commandDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "easel",
			Subsystem: "bridge",
			Name:      "command_duration_seconds",
			Help:      "Command round-trip duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"command", "outcome"},
	)
	activeConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "easel",
			Subsystem: "bridge",
			Name:      "active_connections",
			Help:      "Currently registered plugin connections.",
		},
	)
	batchItems = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "easel",
			Subsystem: "batch",
			Name:      "items_total",
			Help:      "Batch items processed, by outcome.",
		},
		[]string{"outcome"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpRequests,
			httpDuration,
			commandsTotal,
			commandDuration,
			activeConnections,
			batchItems,
		)
	})
}

func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(method, path, statusLabel).Observe(duration.Seconds())
}

func RecordCommand(command, outcome string, duration time.Duration) {
	RegisterMetrics()
	commandsTotal.WithLabelValues(command, outcome).Inc()
	commandDuration.WithLabelValues(command, outcome).Observe(duration.Seconds())
}

func SetActiveConnections(n int) {
	RegisterMetrics()
	activeConnections.Set(float64(n))
}

func RecordBatchItem(failed bool) {
	RegisterMetrics()
	outcome := "ok"
	if failed {
		outcome = "error"
	}
	batchItems.WithLabelValues(outcome).Inc()
}
