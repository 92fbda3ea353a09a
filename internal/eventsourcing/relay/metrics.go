package relay

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	RecordsPublished prometheus.Counter
	PublishFailures  prometheus.Counter
	GapsSkipped      prometheus.Counter
	CircuitOpened    prometheus.Counter
	Checkpoint       prometheus.Gauge
}

// NewMetrics registers the relay metrics with the default registry.
func NewMetrics() *Metrics {
	return &Metrics{
		RecordsPublished: promauto.NewCounter(prometheus.CounterOpts{
			Name: "warden_relay_records_published_total",
			Help: "Total number of event records published by the relay",
		}),
		PublishFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "warden_relay_publish_failures_total",
			Help: "Total number of failed relay publish attempts",
		}),
		GapsSkipped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "warden_relay_gaps_skipped_total",
			Help: "Total number of global log position gaps skipped after the gap timeout",
		}),
		CircuitOpened: promauto.NewCounter(prometheus.CounterOpts{
			Name: "warden_relay_circuit_opened_total",
			Help: "Total number of times the relay circuit breaker opened",
		}),
		Checkpoint: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "warden_relay_checkpoint_position",
			Help: "Last global log position published by the relay",
		}),
	}
}

func (m *Metrics) published(n int, checkpoint int64) {
	if m == nil {
		return
	}
	m.RecordsPublished.Add(float64(n))
	m.Checkpoint.Set(float64(checkpoint))
}

func (m *Metrics) publishFailed(opened bool) {
	if m == nil {
		return
	}
	m.PublishFailures.Inc()
	if opened {
		m.CircuitOpened.Inc()
	}
}

func (m *Metrics) gapSkipped() {
	if m == nil {
		return
	}
	m.GapsSkipped.Inc()
}
