// Package metrics provides the Prometheus collectors of the routing core.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/tphakala/audioroute/internal/audiocore/chunkalloc"
	"github.com/tphakala/audioroute/internal/audiocore/graph"
)

// RoutingMetrics tracks the engine's audio thread. Every series is resolved
// when the collector is built, so recording never allocates.
type RoutingMetrics struct {
	callbackDuration prometheus.Histogram
	retries          prometheus.Counter
	conditions       *prometheus.CounterVec
	topologyChanges  prometheus.Counter
	crossfades       prometheus.Counter
	ringFrames       prometheus.Gauge
	ringCapacity     prometheus.Gauge
	poolChunks       prometheus.Gauge
	poolOutstanding  prometheus.Gauge
	poolBlockAllocs  prometheus.Gauge

	empty prometheus.Counter
	full  prometheus.Counter

	collectors []prometheus.Collector
}

// NewRoutingMetrics creates and registers routing metrics. Every series
// carries the engine session as a constant label.
func NewRoutingMetrics(registry prometheus.Registerer, session string) (*RoutingMetrics, error) {
	m := &RoutingMetrics{}
	labels := prometheus.Labels{"session": session}

	m.callbackDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:        "audioroute_callback_duration_seconds",
		Help:        "Time spent rendering one block on the audio thread",
		Buckets:     prometheus.ExponentialBuckets(0.000_01, 2, 14), // 10us to ~80ms
		ConstLabels: labels,
	})
	m.retries = prometheus.NewCounter(prometheus.CounterOpts{
		Name:        "audioroute_block_retries_total",
		Help:        "Blocks filled again after the routing changed mid-block",
		ConstLabels: labels,
	})
	m.conditions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "audioroute_buffer_conditions_total",
		Help:        "Recorder buffer conditions reported while filling a block",
		ConstLabels: labels,
	}, []string{"condition"})
	m.topologyChanges = prometheus.NewCounter(prometheus.CounterOpts{
		Name:        "audioroute_topology_changes_total",
		Help:        "Routing words applied to the node graph",
		ConstLabels: labels,
	})
	m.crossfades = prometheus.NewCounter(prometheus.CounterOpts{
		Name:        "audioroute_crossfades_settled_total",
		Help:        "Output crossfades that ran to completion",
		ConstLabels: labels,
	})
	m.ringFrames = prometheus.NewGauge(prometheus.GaugeOpts{
		Name:        "audioroute_recorder_frames",
		Help:        "Blocks held by the recorder",
		ConstLabels: labels,
	})
	m.ringCapacity = prometheus.NewGauge(prometheus.GaugeOpts{
		Name:        "audioroute_recorder_capacity_frames",
		Help:        "Blocks the recorder can hold",
		ConstLabels: labels,
	})
	m.poolChunks = prometheus.NewGauge(prometheus.GaugeOpts{
		Name:        "audioroute_pool_chunks",
		Help:        "Chunks owned by the graph buffer pool",
		ConstLabels: labels,
	})
	m.poolOutstanding = prometheus.NewGauge(prometheus.GaugeOpts{
		Name:        "audioroute_pool_chunks_in_use",
		Help:        "Chunks currently handed out by the graph buffer pool",
		ConstLabels: labels,
	})
	m.poolBlockAllocs = prometheus.NewGauge(prometheus.GaugeOpts{
		Name:        "audioroute_pool_block_allocations",
		Help:        "Backing blocks allocated by the graph buffer pool since it was created",
		ConstLabels: labels,
	})

	m.empty = m.conditions.WithLabelValues("empty")
	m.full = m.conditions.WithLabelValues("full")

	m.collectors = []prometheus.Collector{
		m.callbackDuration, m.retries, m.conditions, m.topologyChanges, m.crossfades,
		m.ringFrames, m.ringCapacity, m.poolChunks, m.poolOutstanding, m.poolBlockAllocs,
	}
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

// Describe implements prometheus.Collector.
func (m *RoutingMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, c := range m.collectors {
		c.Describe(ch)
	}
}

// Collect implements prometheus.Collector.
func (m *RoutingMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, c := range m.collectors {
		c.Collect(ch)
	}
}

// ObserveCallback records the time spent in one callback.
func (m *RoutingMetrics) ObserveCallback(d time.Duration) {
	m.callbackDuration.Observe(d.Seconds())
}

// IncRetry counts a block that had to be filled again.
func (m *RoutingMetrics) IncRetry() { m.retries.Inc() }

// IncCondition counts the conditions in c.
func (m *RoutingMetrics) IncCondition(c graph.Condition) {
	if c&graph.ConditionEmpty != 0 {
		m.empty.Inc()
	}
	if c&graph.ConditionFull != 0 {
		m.full.Inc()
	}
}

// IncTopologyChange counts an applied routing word.
func (m *RoutingMetrics) IncTopologyChange() { m.topologyChanges.Inc() }

// IncCrossfadeSettled counts a completed output fade.
func (m *RoutingMetrics) IncCrossfadeSettled() { m.crossfades.Inc() }

// SetRing records the recorder fill level.
func (m *RoutingMetrics) SetRing(frames, capacity int) {
	m.ringFrames.Set(float64(frames))
	m.ringCapacity.Set(float64(capacity))
}

// SetPool records buffer pool usage.
func (m *RoutingMetrics) SetPool(s chunkalloc.Stats) {
	m.poolChunks.Set(float64(s.Chunks))
	m.poolOutstanding.Set(float64(s.Outstanding))
	m.poolBlockAllocs.Set(float64(s.BlockAllocs))
}
