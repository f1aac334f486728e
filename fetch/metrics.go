package fetch

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exports fetch pipeline metrics. All record methods are safe on a
// nil receiver so instrumentation stays optional.
type Metrics struct {
	fetches  *prometheus.CounterVec
	duration prometheus.Histogram
	gated    prometheus.Counter
}

// NewMetrics creates and registers the fetch pipeline collectors.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "percept",
			Subsystem: "fetch",
			Name:      "requests_total",
			Help:      "Page fetches by result (success, error).",
		}, []string{"result"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "percept",
			Subsystem: "fetch",
			Name:      "duration_seconds",
			Help:      "Page fetch latency including retries.",
			Buckets:   prometheus.DefBuckets,
		}),
		gated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "percept",
			Subsystem: "fetch",
			Name:      "gated_total",
			Help:      "Candidate URLs rejected by the fetch gate.",
		}),
	}

	for _, collector := range []prometheus.Collector{m.fetches, m.duration, m.gated} {
		if err := reg.Register(collector); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) recordFetch(result string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.fetches.WithLabelValues(result).Inc()
	m.duration.Observe(elapsed.Seconds())
}

func (m *Metrics) recordGated() {
	if m == nil {
		return
	}
	m.gated.Inc()
}
