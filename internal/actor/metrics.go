package actor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	CacheHits   prometheus.Counter
	CacheMisses prometheus.Counter
	CacheErrors prometheus.Counter
}

// NewMetrics registers the actor cache metrics with the default registry.
func NewMetrics() *Metrics {
	return &Metrics{
		CacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "warden_actor_cache_hits_total",
			Help: "Total number of actor ids resolved from the cache",
		}),
		CacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "warden_actor_cache_misses_total",
			Help: "Total number of actor ids fetched from the read store",
		}),
		CacheErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "warden_actor_cache_errors_total",
			Help: "Total number of actor cache operations that failed",
		}),
	}
}

func (m *Metrics) record(hits, misses int) {
	if m == nil {
		return
	}
	m.CacheHits.Add(float64(hits))
	m.CacheMisses.Add(float64(misses))
}

func (m *Metrics) cacheError() {
	if m == nil {
		return
	}
	m.CacheErrors.Inc()
}
