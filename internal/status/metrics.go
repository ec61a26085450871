package status

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/relabs-tech/agri_node/internal/node"
)

// Metrics holds the node's prometheus collectors on a private registry.
type Metrics struct {
	Registry *prometheus.Registry

	cycles    prometheus.Counter
	attempts  prometheus.Counter
	delivered prometheus.Counter
	failed    prometheus.Counter
	readings  *prometheus.GaugeVec
	actuator  prometheus.Gauge
	gpsValid  prometheus.Gauge
}

func NewMetrics(nodeID string) *Metrics {
	labels := prometheus.Labels{"node": nodeID}
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		cycles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "agri", Name: "cycles_total", Help: "Completed control loop cycles.", ConstLabels: labels,
		}),
		attempts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "agri", Name: "delivery_attempts_total", Help: "Connection attempts made by the delivery client.", ConstLabels: labels,
		}),
		delivered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "agri", Name: "delivery_success_total", Help: "Requests answered by the server.", ConstLabels: labels,
		}),
		failed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "agri", Name: "delivery_failures_total", Help: "Requests given up on.", ConstLabels: labels,
		}),
		readings: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "agri", Name: "reading", Help: "Last averaged reading per sensor.", ConstLabels: labels,
		}, []string{"sensor"}),
		actuator: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "agri", Name: "actuator_active", Help: "1 when the moisture actuator is driven active.", ConstLabels: labels,
		}),
		gpsValid: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "agri", Name: "gps_fix_valid", Help: "1 when the last GPS fix was valid.", ConstLabels: labels,
		}),
	}
	m.Registry.MustRegister(m.cycles, m.attempts, m.delivered, m.failed, m.readings, m.actuator, m.gpsValid)
	return m
}

// Record updates the collectors from a finished cycle.
func (m *Metrics) Record(c node.Cycle) {
	m.cycles.Inc()
	m.attempts.Add(float64(c.Delivery.Attempts))
	m.delivered.Add(float64(c.Delivery.Delivered))
	m.failed.Add(float64(c.Delivery.Failed))

	m.readings.WithLabelValues("temperature").Set(c.Temperature)
	m.readings.WithLabelValues("humidity").Set(c.Humidity)
	m.readings.WithLabelValues("light").Set(c.Light)
	m.readings.WithLabelValues("proximity").Set(c.Proximity)
	m.readings.WithLabelValues("soil_moisture").Set(c.SoilMoisture)
	m.readings.WithLabelValues("latitude").Set(c.Fix.Latitude)
	m.readings.WithLabelValues("longitude").Set(c.Fix.Longitude)

	m.actuator.Set(boolGauge(c.ActuatorOn))
	m.gpsValid.Set(boolGauge(c.Fix.Valid))
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
