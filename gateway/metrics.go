package gateway

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exports gateway metrics. All record methods are safe on a nil
// receiver so instrumentation stays optional.
type Metrics struct {
	connections prometheus.Gauge
	messages    *prometheus.CounterVec
}

// NewMetrics creates and registers the gateway collectors.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "percept",
			Subsystem: "gateway",
			Name:      "connections",
			Help:      "Currently open websocket connections.",
		}),
		messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "percept",
			Subsystem: "gateway",
			Name:      "messages_total",
			Help:      "Messages received from clients by type.",
		}, []string{"type"}),
	}

	for _, collector := range []prometheus.Collector{m.connections, m.messages} {
		if err := reg.Register(collector); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) connectionOpened() {
	if m == nil {
		return
	}
	m.connections.Inc()
}

func (m *Metrics) connectionClosed() {
	if m == nil {
		return
	}
	m.connections.Dec()
}

func (m *Metrics) messageReceived(msgType string) {
	if m == nil {
		return
	}
	m.messages.WithLabelValues(msgType).Inc()
}
