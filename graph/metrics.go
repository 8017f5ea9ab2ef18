package graph

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusMetrics collects execution metrics under the "stepgraph"
// namespace:
//
//   - inflight_nodes (gauge): nodes currently executing. Labels: run_id.
//   - queue_depth (gauge): nodes queued but not yet dispatched. Labels: run_id.
//   - step_latency_ms (histogram): node duration. Labels: run_id, node_id, status.
//   - retries_total (counter): retry attempts. Labels: run_id, node_id, reason.
//   - merge_conflicts_total (counter): unmergeable parallel states. Labels: run_id, conflict_type.
//   - backpressure_events_total (counter): throttled dispatch. Labels: run_id, reason.
type PrometheusMetrics struct {
	inflightNodes prometheus.Gauge
	queueDepth    prometheus.Gauge

	stepLatency *prometheus.HistogramVec

	retries        *prometheus.CounterVec
	mergeConflicts *prometheus.CounterVec
	backpressure   *prometheus.CounterVec

	registry prometheus.Registerer

	mu      sync.RWMutex
	enabled bool
}

// NewPrometheusMetrics registers all graph execution metrics with registry.
// A nil registry uses prometheus.DefaultRegisterer.
func NewPrometheusMetrics(registry prometheus.Registerer) *PrometheusMetrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	factory := promauto.With(registry)

	pm := &PrometheusMetrics{
		registry: registry,
		enabled:  true,
	}

	pm.inflightNodes = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: "stepgraph",
		Name:      "inflight_nodes",
		Help:      "Current number of nodes executing concurrently in the graph",
	})

	pm.queueDepth = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: "stepgraph",
		Name:      "queue_depth",
		Help:      "Number of nodes queued but not yet dispatched",
	})

	pm.stepLatency = factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "stepgraph",
		Name:      "step_latency_ms",
		Help:      "Node execution duration in milliseconds",
		Buckets:   []float64{1, 5, 10, 50, 100, 500, 1000, 5000, 10000},
	}, []string{"run_id", "node_id", "status"})

	pm.retries = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "stepgraph",
		Name:      "retries_total",
		Help:      "Cumulative count of node retry attempts",
	}, []string{"run_id", "node_id", "reason"})

	pm.mergeConflicts = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "stepgraph",
		Name:      "merge_conflicts_total",
		Help:      "Unmergeable parallel branch states detected during fan-in",
	}, []string{"run_id", "conflict_type"})

	pm.backpressure = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "stepgraph",
		Name:      "backpressure_events_total",
		Help:      "Dispatches throttled due to MaxParallelTasks or queue limits",
	}, []string{"run_id", "reason"})

	return pm
}

func (pm *PrometheusMetrics) RecordStepLatency(runID, nodeID string, latency time.Duration, status string) {
	if !pm.enabled {
		return
	}
	pm.stepLatency.WithLabelValues(runID, nodeID, status).Observe(float64(latency.Milliseconds()))
}

func (pm *PrometheusMetrics) IncrementRetries(runID, nodeID, reason string) {
	if !pm.enabled {
		return
	}
	pm.retries.WithLabelValues(runID, nodeID, reason).Inc()
}

func (pm *PrometheusMetrics) UpdateQueueDepth(depth int) {
	if !pm.enabled {
		return
	}
	pm.queueDepth.Set(float64(depth))
}

func (pm *PrometheusMetrics) UpdateInflightNodes(count int) {
	if !pm.enabled {
		return
	}
	pm.inflightNodes.Set(float64(count))
}

func (pm *PrometheusMetrics) IncrementMergeConflicts(runID, conflictType string) {
	if !pm.enabled {
		return
	}
	pm.mergeConflicts.WithLabelValues(runID, conflictType).Inc()
}

func (pm *PrometheusMetrics) IncrementBackpressure(runID, reason string) {
	if !pm.enabled {
		return
	}
	pm.backpressure.WithLabelValues(runID, reason).Inc()
}

// Disable stops metric recording without unregistering collectors.
func (pm *PrometheusMetrics) Disable() {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	pm.enabled = false
}

func (pm *PrometheusMetrics) Enable() {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	pm.enabled = true
}

// Reset zeroes the gauges. Counters and histograms are cumulative by
// Prometheus design and are left untouched.
func (pm *PrometheusMetrics) Reset() {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	pm.inflightNodes.Set(0)
	pm.queueDepth.Set(0)
}
