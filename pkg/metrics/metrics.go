// Package metrics holds the Prometheus collectors of the daemon.
// Every method is safe on a nil *Metrics so components can run without instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "citriflow"

type Metrics struct {
	pumpActivations *prometheus.CounterVec
	pumpActive      prometheus.Gauge
	sensorValue     *prometheus.GaugeVec
	storeFailures   *prometheus.CounterVec
	simulatorPasses *prometheus.CounterVec
	commands        *prometheus.CounterVec
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		pumpActivations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pump_activations_total",
			Help:      "Pump activations by trigger.",
		}, []string{"trigger"}),
		pumpActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pump_active",
			Help:      "1 while the pump is running.",
		}),
		sensorValue: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sensor_value",
			Help:      "Last value of each active sensor.",
		}, []string{"sensor_id", "type"}),
		storeFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_failures_total",
			Help:      "Swallowed storage failures by operation.",
		}, []string{"op"}),
		simulatorPasses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "simulator_passes_total",
			Help:      "Simulator passes by kind.",
		}, []string{"pass"}),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pump_commands_total",
			Help:      "Pump commands received over MQTT by outcome.",
		}, []string{"outcome"}),
	}
	reg.MustRegister(m.pumpActivations, m.pumpActive, m.sensorValue, m.storeFailures, m.simulatorPasses, m.commands)
	return m
}

func (m *Metrics) PumpActivated(trigger string) {
	if m == nil {
		return
	}
	m.pumpActivations.WithLabelValues(trigger).Inc()
	m.pumpActive.Set(1)
}

func (m *Metrics) PumpStopped() {
	if m == nil {
		return
	}
	m.pumpActive.Set(0)
}

// ObserveSensor records the value of an active sensor and drops the series of an inactive one.
func (m *Metrics) ObserveSensor(id, kind string, value float64, active bool) {
	if m == nil {
		return
	}
	if !active {
		m.sensorValue.DeleteLabelValues(id, kind)
		return
	}
	m.sensorValue.WithLabelValues(id, kind).Set(value)
}

func (m *Metrics) StoreFailure(op string) {
	if m == nil {
		return
	}
	m.storeFailures.WithLabelValues(op).Inc()
}

func (m *Metrics) SimulatorPass(pass string) {
	if m == nil {
		return
	}
	m.simulatorPasses.WithLabelValues(pass).Inc()
}

func (m *Metrics) Command(outcome string) {
	if m == nil {
		return
	}
	m.commands.WithLabelValues(outcome).Inc()
}
