// Package metrics exposes the reactor's runtime counters on an internal
// Prometheus endpoint, entirely decoupled from the reactor hot path: every
// metric here is a lock-free atomic counter/gauge updated from loop
// callbacks, never read synchronously by them.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ActiveConnections is the current live connection count across all
	// worker reactors.
	ActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "rapidrpc_active_connections",
		Help: "Number of currently open connections.",
	})

	// DispatchedTotal counts dispatched calls by error code, letting a
	// dashboard break down ServiceNotFound/MethodNotFound/OK volume.
	DispatchedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rapidrpc_dispatched_total",
		Help: "Number of requests dispatched, labeled by resulting error code.",
	}, []string{"error_code"})

	// TimerQueueDepth is the number of pending timer events on whichever
	// loop last ran an iteration: every loop sets this one unlabeled gauge
	// after each timer check.
	TimerQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "rapidrpc_timer_queue_depth",
		Help: "Pending timer events on the sampled loop.",
	})

	// TaskQueueLatency observes the delay between a task being enqueued
	// and the loop actually running it.
	TaskQueueLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "rapidrpc_task_queue_latency_seconds",
		Help:    "Delay between AddTask and the loop invoking the task.",
		Buckets: prometheus.DefBuckets,
	})
)

// Handler returns the HTTP handler to mount at /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}
