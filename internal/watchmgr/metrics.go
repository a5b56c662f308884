package watchmgr

import (
	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct {
	status             *prometheus.GaugeVec
	connectionRequired *prometheus.GaugeVec
	changes            *prometheus.CounterVec
	notifying          *prometheus.GaugeVec
}

func newMetrics(reg prometheus.Registerer) *metrics {
	labels := []string{"name", "target"}
	m := &metrics{
		status: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "reachd",
			Name:      "target_status",
			Help:      "Reachability status per target: 0 not reachable, 1 via WiFi, 2 via WWAN.",
		}, labels),
		connectionRequired: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "reachd",
			Name:      "target_connection_required",
			Help:      "1 while the path to the target needs a connection to be established.",
		}, labels),
		changes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "reachd",
			Name:      "target_changes_total",
			Help:      "Delivered reachability change notifications per target.",
		}, labels),
		notifying: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "reachd",
			Name:      "target_notifying",
			Help:      "1 while the target's notifier is running.",
		}, labels),
	}
	reg.MustRegister(m.status, m.connectionRequired, m.changes, m.notifying)
	return m
}

func (m *metrics) observe(s TargetState, changed bool) {
	labels := prometheus.Labels{"name": s.Name, "target": s.Target}
	m.status.With(labels).Set(float64(s.Status))
	m.connectionRequired.With(labels).Set(boolFloat(s.ConnectionRequired))
	m.notifying.With(labels).Set(boolFloat(s.Notifying))
	if changed {
		m.changes.With(labels).Inc()
	} else {
		// Make the series visible before the first change.
		m.changes.With(labels).Add(0)
	}
}

func boolFloat(v bool) float64 {
	if v {
		return 1
	}
	return 0
}
