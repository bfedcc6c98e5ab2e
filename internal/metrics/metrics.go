// Package metrics exposes the control unit's Prometheus instrumentation.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/smartbuilding/climatectl/internal/kernel"
)

// Metrics implements kernel.Recorder and carries the adapter counters. All
// methods are safe for concurrent use.
type Metrics struct {
	registry *prometheus.Registry

	temperature    prometheus.Gauge
	windowOpening  prometheus.Gauge
	alarmActive    prometheus.Gauge
	samplingPeriod prometheus.Gauge
	thermalState   *prometheus.GaugeVec

	samplesTotal         prometheus.Counter
	rejectedSamplesTotal prometheus.Counter
	actuatorDroppedTotal prometheus.Counter
	sensorDroppedTotal   prometheus.Counter
}

// New creates the full metric set on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		temperature: factory.NewGauge(prometheus.GaugeOpts{
			Name: "climatectl_temperature_celsius",
			Help: "Most recent accepted temperature sample.",
		}),
		windowOpening: factory.NewGauge(prometheus.GaugeOpts{
			Name: "climatectl_window_opening_ratio",
			Help: "Current window opening in [0,1].",
		}),
		alarmActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "climatectl_alarm_active",
			Help: "1 while the alarm is latched.",
		}),
		samplingPeriod: factory.NewGauge(prometheus.GaugeOpts{
			Name: "climatectl_sampling_period_seconds",
			Help: "Sampling period most recently requested from the sensor.",
		}),
		thermalState: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "climatectl_thermal_state",
			Help: "1 for the current thermal state, 0 for the others.",
		}, []string{"state"}),
		samplesTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "climatectl_samples_total",
			Help: "Accepted temperature samples.",
		}),
		rejectedSamplesTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "climatectl_rejected_samples_total",
			Help: "Samples discarded for being non-finite.",
		}),
		actuatorDroppedTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "climatectl_actuator_dropped_total",
			Help: "Actuator commands dropped because the link was unavailable or congested.",
		}),
		sensorDroppedTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "climatectl_sensor_dropped_total",
			Help: "Sampling period publications dropped because the broker was unreachable.",
		}),
	}
}

// SampleAccepted implements kernel.Recorder.
func (m *Metrics) SampleAccepted(celsius float64) {
	m.samplesTotal.Inc()
	m.temperature.Set(celsius)
}

// SampleRejected implements kernel.Recorder.
func (m *Metrics) SampleRejected() {
	m.rejectedSamplesTotal.Inc()
}

// KernelState implements kernel.Recorder.
func (m *Metrics) KernelState(state kernel.State, opening float64, period time.Duration) {
	m.windowOpening.Set(opening)
	m.samplingPeriod.Set(period.Seconds())
	if state == kernel.StateAlarm {
		m.alarmActive.Set(1)
	} else {
		m.alarmActive.Set(0)
	}
	for _, s := range []kernel.State{kernel.StateNormal, kernel.StateHot, kernel.StateTooHot, kernel.StateAlarm} {
		v := 0.0
		if s == state {
			v = 1.0
		}
		m.thermalState.WithLabelValues(s.String()).Set(v)
	}
}

// ActuatorCommandDropped counts an outbound device command that was lost.
func (m *Metrics) ActuatorCommandDropped() {
	m.actuatorDroppedTotal.Inc()
}

// SensorPublishDropped counts a sampling period publication that was lost.
func (m *Metrics) SensorPublishDropped() {
	m.sensorDroppedTotal.Inc()
}

// Handler returns the HTTP handler serving this metric set.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
