package blacklist

import (
	"context"
	"time"
)

// PurgeWorker runs Purge on a fixed interval until its context ends.
type PurgeWorker struct {
	service  *Service
	interval time.Duration
}

// NewPurgeWorker constructs a worker; a non-positive interval means hourly.
func NewPurgeWorker(service *Service, interval time.Duration) *PurgeWorker {
	if interval <= 0 {
		interval = time.Hour
	}
	return &PurgeWorker{service: service, interval: interval}
}

func (w *PurgeWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			n, err := w.service.Purge(ctx)
			if err != nil {
				w.service.logger.ErrorContext(ctx, "blacklist purge failed", "error", err)
				continue
			}
			if n > 0 {
				w.service.logger.InfoContext(ctx, "purged expired blacklisted tokens", "count", n)
			}
		}
	}
}
