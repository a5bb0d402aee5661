package metrics

import (
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "procmgr"

// Package-level Prometheus collectors. They are registered via Register.
var (
	regOK atomic.Bool

	processStarts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "process",
			Name:      "starts_total",
			Help:      "Number of successful process starts.",
		}, []string{"name"},
	)
	processStops = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "process",
			Name:      "stops_total",
			Help:      "Number of successful stops (graceful or kill).",
		}, []string{"name"},
	)
	processStartFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "process",
			Name:      "start_failures_total",
			Help:      "Number of start attempts that failed to spawn.",
		}, []string{"name"},
	)
	processStopFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "process",
			Name:      "stop_failures_total",
			Help:      "Number of stops whose termination failed.",
		}, []string{"name"},
	)
	processSpawnDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "process",
			Name:      "spawn_duration_seconds",
			Help:      "Time spent preparing and spawning a process.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"name"},
	)
	processRunning = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "process",
			Name:      "running",
			Help:      "Whether a managed process is running (1) or not (0).",
		}, []string{"name"},
	)
	historyFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "history",
			Name:      "send_failures_total",
			Help:      "Number of lifecycle events a history sink rejected.",
		}, []string{"event"},
	)
)

// Register registers all metrics with the provided registerer.
// It is safe to call multiple times; subsequent calls after success are no-ops.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	cs := []prometheus.Collector{processStarts, processStops, processStartFailures, processStopFailures,
		processSpawnDuration, processRunning, historyFailures}
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			// If already registered, ignore (allows double Register with default registry)
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	regOK.Store(true)
	return nil
}

// Handler returns an http.Handler that serves Prometheus metrics for the DefaultGatherer.
// The caller is responsible for starting an HTTP server and wiring the route.
func Handler() http.Handler { return promhttp.Handler() }

// HandlerFor serves the metrics gathered by g.
func HandlerFor(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// Below are lightweight helpers used by internal packages to record metrics.
// They no-op if Register hasn't been called.

func IncStart(name string) {
	if regOK.Load() {
		processStarts.WithLabelValues(name).Inc()
		processRunning.WithLabelValues(name).Set(1)
	}
}

func IncStop(name string) {
	if regOK.Load() {
		processStops.WithLabelValues(name).Inc()
		processRunning.WithLabelValues(name).Set(0)
	}
}

func IncStartFailure(name string) {
	if regOK.Load() {
		processStartFailures.WithLabelValues(name).Inc()
	}
}

// IncStopFailure counts a failed termination. The runtime is cleared either
// way, so the running gauge drops too.
func IncStopFailure(name string) {
	if regOK.Load() {
		processStopFailures.WithLabelValues(name).Inc()
		processRunning.WithLabelValues(name).Set(0)
	}
}

func ObserveSpawnDuration(name string, seconds float64) {
	if regOK.Load() {
		processSpawnDuration.WithLabelValues(name).Observe(seconds)
	}
}

// Forget drops the per-process series of a deleted process.
func Forget(name string) {
	if regOK.Load() {
		processRunning.DeleteLabelValues(name)
	}
}

func IncHistoryFailure(event string) {
	if regOK.Load() {
		historyFailures.WithLabelValues(event).Inc()
	}
}
