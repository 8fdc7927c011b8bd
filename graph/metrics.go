package graph

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// EngineMetrics provides Prometheus-compatible metrics for workflow
// execution, scoped to this engine's sequential, single-flight-per-run
// execution model, grounded on the teacher's PrometheusMetrics
// (graph/metrics.go). The teacher's concurrency-frontier metrics
// (inflight_nodes, queue_depth, merge_conflicts_total) have no
// referent here: the engine executes one node at a time per run, so
// they are omitted rather than stubbed.
//
// Metrics exposed, all namespaced "workflow":
//
//  1. runs_active (gauge): runs currently executing. Labels: graph_name.
//  2. runs_total (counter): terminal runs. Labels: graph_name, status
//     ("completed", "failed", "cancelled").
//  3. node_latency_ms (histogram): node execution duration. Labels:
//     graph_name, node_name, status ("completed", "failed").
//  4. iterations_total (counter): cumulative engine iterations across
//     all runs. Labels: graph_name.
type EngineMetrics struct {
	runsActive   *prometheus.GaugeVec
	runsTotal    *prometheus.CounterVec
	nodeLatency  *prometheus.HistogramVec
	iterations   *prometheus.CounterVec

	mu      sync.RWMutex
	enabled bool
}

// NewEngineMetrics creates and registers engine metrics with registry
// (prometheus.DefaultRegisterer if nil).
func NewEngineMetrics(registry prometheus.Registerer) *EngineMetrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registry)

	return &EngineMetrics{
		enabled: true,
		runsActive: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "workflow",
			Name:      "runs_active",
			Help:      "Number of runs currently executing",
		}, []string{"graph_name"}),
		runsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "workflow",
			Name:      "runs_total",
			Help:      "Cumulative terminal runs by outcome",
		}, []string{"graph_name", "status"}),
		nodeLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "workflow",
			Name:      "node_latency_ms",
			Help:      "Node execution duration in milliseconds",
			Buckets:   []float64{1, 5, 10, 50, 100, 500, 1000, 5000, 10000},
		}, []string{"graph_name", "node_name", "status"}),
		iterations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "workflow",
			Name:      "iterations_total",
			Help:      "Cumulative engine iterations across all runs",
		}, []string{"graph_name"}),
	}
}

// RunStarted records a run entering the active set.
func (m *EngineMetrics) RunStarted(graphName string) {
	if !m.isEnabled() {
		return
	}
	m.runsActive.WithLabelValues(graphName).Inc()
}

// RunFinished records a run leaving the active set with a terminal status.
func (m *EngineMetrics) RunFinished(graphName, status string) {
	if !m.isEnabled() {
		return
	}
	m.runsActive.WithLabelValues(graphName).Dec()
	m.runsTotal.WithLabelValues(graphName, status).Inc()
}

// RecordNodeLatency records one node execution's duration and outcome.
func (m *EngineMetrics) RecordNodeLatency(graphName, nodeName string, d time.Duration, status string) {
	if !m.isEnabled() {
		return
	}
	m.nodeLatency.WithLabelValues(graphName, nodeName, status).Observe(float64(d.Milliseconds()))
}

// IncrementIteration records one engine loop iteration.
func (m *EngineMetrics) IncrementIteration(graphName string) {
	if !m.isEnabled() {
		return
	}
	m.iterations.WithLabelValues(graphName).Inc()
}

func (m *EngineMetrics) isEnabled() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.enabled
}

// SetEnabled toggles metric recording without unregistering collectors.
func (m *EngineMetrics) SetEnabled(enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enabled = enabled
}
