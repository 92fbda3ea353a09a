package eventsourcing

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for aggregate loading and saving.
type Metrics struct {
	EventsAppended      *prometheus.CounterVec
	ConcurrencyConflict *prometheus.CounterVec
	EventsReplayed      *prometheus.CounterVec
	LoadDuration        prometheus.Histogram
	SaveDuration        prometheus.Histogram
}

// NewMetrics registers the repository metrics with the default registry.
func NewMetrics() *Metrics {
	return &Metrics{
		EventsAppended: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "warden_events_appended_total",
			Help: "Total number of domain events appended, by aggregate kind",
		}, []string{"kind"}),
		ConcurrencyConflict: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "warden_concurrency_conflicts_total",
			Help: "Total number of saves rejected by optimistic concurrency, by aggregate kind",
		}, []string{"kind"}),
		EventsReplayed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "warden_events_replayed_total",
			Help: "Total number of events replayed while loading aggregates, by aggregate kind",
		}, []string{"kind"}),
		LoadDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "warden_aggregate_load_duration_seconds",
			Help:    "Duration of aggregate loads (read + replay)",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		SaveDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "warden_aggregate_save_duration_seconds",
			Help:    "Duration of atomic aggregate saves",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
	}
}

func (m *Metrics) observeLoad(kind string, replayed int, start time.Time) {
	if m == nil {
		return
	}
	m.EventsReplayed.WithLabelValues(kind).Add(float64(replayed))
	m.LoadDuration.Observe(time.Since(start).Seconds())
}

func (m *Metrics) observeSave(streams []Stream, start time.Time) {
	if m == nil {
		return
	}
	for _, st := range streams {
		m.EventsAppended.WithLabelValues(st.ID.Kind()).Add(float64(len(st.Records)))
	}
	m.SaveDuration.Observe(time.Since(start).Seconds())
}

func (m *Metrics) incConflict(streams []Stream) {
	if m == nil {
		return
	}
	for _, st := range streams {
		m.ConcurrencyConflict.WithLabelValues(st.ID.Kind()).Inc()
	}
}
