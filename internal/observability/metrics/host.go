package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// HostMetrics tracks the audio device callbacks feeding the engine.
type HostMetrics struct {
	callbacks   prometheus.Counter
	underruns   prometheus.Counter
	overruns    prometheus.Counter
	errors      *prometheus.CounterVec
	deviceStart *prometheus.CounterVec

	collectors []prometheus.Collector
}

// NewHostMetrics creates and registers host metrics for one backend.
func NewHostMetrics(registry prometheus.Registerer, backend string) (*HostMetrics, error) {
	labels := prometheus.Labels{"backend": backend}
	m := &HostMetrics{
		callbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "audioroute_host_callbacks_total",
			Help:        "Blocks handed to the engine by the audio host",
			ConstLabels: labels,
		}),
		underruns: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "audioroute_host_underruns_total",
			Help:        "Blocks rendered with missing capture frames",
			ConstLabels: labels,
		}),
		overruns: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "audioroute_host_overruns_total",
			Help:        "Capture frames dropped because the playback side fell behind",
			ConstLabels: labels,
		}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "audioroute_host_errors_total",
			Help:        "Errors returned while rendering or driving the device",
			ConstLabels: labels,
		}, []string{"stage"}),
		deviceStart: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "audioroute_host_device_starts_total",
			Help:        "Device start attempts",
			ConstLabels: labels,
		}, []string{"status"}),
	}
	m.collectors = []prometheus.Collector{m.callbacks, m.underruns, m.overruns, m.errors, m.deviceStart}
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

// Describe implements prometheus.Collector.
func (m *HostMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, c := range m.collectors {
		c.Describe(ch)
	}
}

// Collect implements prometheus.Collector.
func (m *HostMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, c := range m.collectors {
		c.Collect(ch)
	}
}

// IncCallback counts a device callback. Nil-safe.
func (m *HostMetrics) IncCallback() {
	if m != nil {
		m.callbacks.Inc()
	}
}

// IncUnderrun counts a block rendered with missing capture frames. Nil-safe.
func (m *HostMetrics) IncUnderrun() {
	if m != nil {
		m.underruns.Inc()
	}
}

// IncOverrun counts dropped capture frames. Nil-safe.
func (m *HostMetrics) IncOverrun() {
	if m != nil {
		m.overruns.Inc()
	}
}

// RecordError counts an error at stage. Not for the audio thread. Nil-safe.
func (m *HostMetrics) RecordError(stage string) {
	if m != nil {
		m.errors.WithLabelValues(stage).Inc()
	}
}

// RecordDeviceStart counts a device start attempt. Nil-safe.
func (m *HostMetrics) RecordDeviceStart(err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.deviceStart.WithLabelValues(status).Inc()
}
