// Package redis opens the optional Redis connection shared by the actor
// cache, the token blacklist and the authentication recorder.
package redis

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"warden/internal/platform/config"
)

type Client struct {
	*redis.Client
}

// New returns nil, nil when no URL is configured.
func New(ctx context.Context, cfg config.Redis) (*Client, error) {
	if cfg.URL == "" {
		return nil, nil
	}
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}
	opts.MinIdleConns = cfg.MinIdleConns
	opts.DialTimeout = cfg.DialTimeout
	opts.ReadTimeout = cfg.ReadTimeout
	opts.WriteTimeout = cfg.WriteTimeout

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &Client{Client: client}, nil
}

func (c *Client) Health(ctx context.Context) error {
	return c.Ping(ctx).Err()
}

// poolCollector exports go-redis pool statistics at scrape time.
type poolCollector struct {
	client *Client
	total  *prometheus.Desc
	idle   *prometheus.Desc
	hits   *prometheus.Desc
	misses *prometheus.Desc
}

// RegisterMetrics exposes the connection pool statistics on reg.
func (c *Client) RegisterMetrics(reg prometheus.Registerer) error {
	return reg.Register(&poolCollector{
		client: c,
		total:  prometheus.NewDesc("warden_redis_pool_connections", "Open connections in the Redis pool.", nil, nil),
		idle:   prometheus.NewDesc("warden_redis_pool_idle_connections", "Idle connections in the Redis pool.", nil, nil),
		hits:   prometheus.NewDesc("warden_redis_pool_hits_total", "Times a free connection was found in the pool.", nil, nil),
		misses: prometheus.NewDesc("warden_redis_pool_misses_total", "Times no free connection was found in the pool.", nil, nil),
	})
}

func (p *poolCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- p.total
	ch <- p.idle
	ch <- p.hits
	ch <- p.misses
}

func (p *poolCollector) Collect(ch chan<- prometheus.Metric) {
	stats := p.client.PoolStats()
	ch <- prometheus.MustNewConstMetric(p.total, prometheus.GaugeValue, float64(stats.TotalConns))
	ch <- prometheus.MustNewConstMetric(p.idle, prometheus.GaugeValue, float64(stats.IdleConns))
	ch <- prometheus.MustNewConstMetric(p.hits, prometheus.CounterValue, float64(stats.Hits))
	ch <- prometheus.MustNewConstMetric(p.misses, prometheus.CounterValue, float64(stats.Misses))
}
