package driver

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts session lifecycle events per driver kind. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	created   *prometheus.CounterVec
	failed    *prometheus.CounterVec
	throttled *prometheus.CounterVec
	released  *prometheus.CounterVec
	active    *prometheus.GaugeVec
}

// NewMetrics creates the lifecycle metrics and registers them with reg. If reg is nil the
// metrics are created but not registered anywhere.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		created: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "testenv_driver_sessions_created_total",
				Help: "Driver sessions successfully created",
			},
			[]string{"driver"},
		),
		failed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "testenv_driver_create_failures_total",
				Help: "Driver session creation attempts that failed",
			},
			[]string{"driver"},
		),
		throttled: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "testenv_driver_create_throttled_total",
				Help: "Driver session creation attempts rejected after repeated failures",
			},
			[]string{"driver"},
		),
		released: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "testenv_driver_sessions_released_total",
				Help: "Driver sessions terminated",
			},
			[]string{"driver"},
		),
		active: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "testenv_driver_sessions_active",
				Help: "Driver sessions currently open",
			},
			[]string{"driver"},
		),
	}
	if reg != nil {
		reg.MustRegister(m.created, m.failed, m.throttled, m.released, m.active)
	}
	return m
}

func (m *Metrics) sessionCreated(k Kind) {
	if m == nil {
		return
	}
	m.created.WithLabelValues(k.String()).Inc()
	m.active.WithLabelValues(k.String()).Inc()
}

func (m *Metrics) createFailed(k Kind) {
	if m == nil {
		return
	}
	m.failed.WithLabelValues(k.String()).Inc()
}

func (m *Metrics) createThrottled(k Kind) {
	if m == nil {
		return
	}
	m.throttled.WithLabelValues(k.String()).Inc()
}

func (m *Metrics) sessionReleased(k Kind) {
	if m == nil {
		return
	}
	m.released.WithLabelValues(k.String()).Inc()
	m.active.WithLabelValues(k.String()).Dec()
}
