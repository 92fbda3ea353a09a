package blacklist

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts blacklist writes and purges and times lookups.
type Metrics struct {
	TokensBlacklisted prometheus.Counter
	TokensPurged      prometheus.Counter
	LookupDuration    prometheus.Histogram
}

// NewMetrics registers the blacklist metrics with the default registry.
func NewMetrics() *Metrics {
	return &Metrics{
		TokensBlacklisted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "warden_tokens_blacklisted_total",
			Help: "Total number of token ids written to the blacklist",
		}),
		TokensPurged: promauto.NewCounter(prometheus.CounterOpts{
			Name: "warden_tokens_purged_total",
			Help: "Total number of expired blacklist records purged",
		}),
		LookupDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "warden_blacklist_lookup_duration_ms",
			Help:    "Latency of blacklist lookups in milliseconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25},
		}),
	}
}

func (m *Metrics) blacklisted(n int) {
	if m == nil {
		return
	}
	m.TokensBlacklisted.Add(float64(n))
}

func (m *Metrics) purged(n int64) {
	if m == nil {
		return
	}
	m.TokensPurged.Add(float64(n))
}

func (m *Metrics) observeLookup(start time.Time) {
	if m == nil {
		return
	}
	m.LookupDuration.Observe(float64(time.Since(start).Microseconds()) / 1000.0)
}
