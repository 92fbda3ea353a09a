// Package relay publishes the committed global event log to a message broker.
package relay

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"warden/internal/eventsourcing"
)

// LogReader is the slice of the event store the relay needs.
type LogReader interface {
	ReadAll(ctx context.Context, afterPosition int64, limit int) ([]eventsourcing.Record, error)
}

// Worker polls the global log after its checkpoint, publishes new records and
// advances the checkpoint. Delivery is at-least-once.
//
// Positions are assigned by a database sequence, so a later position can
// become visible before an earlier one commits. The worker publishes only the
// contiguous prefix after its checkpoint and waits for a gap to fill; a gap
// that stays open longer than gapTimeout belongs to a rolled-back append and
// is skipped.
type Worker struct {
	name       string
	reader     LogReader
	publisher  Publisher
	checkpoint CheckpointStore
	breaker    *CircuitBreaker
	logger     *slog.Logger
	metrics    *Metrics
	now        func() time.Time

	interval   time.Duration
	batchSize  int
	gapTimeout time.Duration

	position   int64
	gapSince   time.Time
	gapPending int64
}

// Option configures a Worker.
type Option func(*Worker)

// WithLogger sets the logger; slog.Default is used otherwise.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Worker) {
		w.logger = logger
	}
}

// WithMetrics records published records, failures and the checkpoint position.
func WithMetrics(m *Metrics) Option {
	return func(w *Worker) {
		w.metrics = m
	}
}

// WithInterval sets the tick interval of Run.
func WithInterval(d time.Duration) Option {
	return func(w *Worker) {
		if d > 0 {
			w.interval = d
		}
	}
}

// WithBatchSize caps the records read per tick.
func WithBatchSize(n int) Option {
	return func(w *Worker) {
		if n > 0 {
			w.batchSize = n
		}
	}
}

// WithGapTimeout sets how long a position gap is awaited before it is skipped.
func WithGapTimeout(d time.Duration) Option {
	return func(w *Worker) {
		if d > 0 {
			w.gapTimeout = d
		}
	}
}

// WithCircuitBreaker pauses publishing after repeated failures.
func WithCircuitBreaker(cb *CircuitBreaker) Option {
	return func(w *Worker) {
		w.breaker = cb
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(w *Worker) {
		w.now = now
	}
}

// NewWorker constructs a relay that publishes the log read from reader.
func NewWorker(name string, reader LogReader, publisher Publisher, checkpoint CheckpointStore, opts ...Option) *Worker {
	w := &Worker{
		name:       name,
		reader:     reader,
		publisher:  publisher,
		checkpoint: checkpoint,
		breaker:    NewCircuitBreaker(5, 30*time.Second),
		logger:     slog.Default(),
		now:        time.Now,
		interval:   time.Second,
		batchSize:  500,
		gapTimeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run polls until ctx is cancelled. Publish failures are logged and retried on
// the next tick; checkpoint read failures at startup are returned.
func (w *Worker) Run(ctx context.Context) error {
	position, err := w.checkpoint.Get(ctx, w.name)
	if err != nil {
		return err
	}
	w.position = position
	w.logger.InfoContext(ctx, "event relay started", "relay", w.name, "position", position)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		for {
			n, err := w.Tick(ctx)
			if err != nil {
				w.logger.ErrorContext(ctx, "event relay tick failed", "relay", w.name, "error", err)
				break
			}
			if n < w.batchSize {
				break
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Tick publishes at most one batch and returns how many records it published.
func (w *Worker) Tick(ctx context.Context) (int, error) {
	if !w.breaker.Allow() {
		return 0, nil
	}
	records, err := w.reader.ReadAll(ctx, w.position, w.batchSize)
	if err != nil {
		return 0, fmt.Errorf("read global log after %d: %w", w.position, err)
	}
	ready := w.contiguous(records)
	if len(ready) == 0 {
		return 0, nil
	}

	if err := w.publisher.Publish(ctx, ready); err != nil {
		w.metrics.publishFailed(w.breaker.RecordFailure())
		return 0, err
	}
	w.breaker.RecordSuccess()

	next := ready[len(ready)-1].Position
	if err := w.checkpoint.Set(ctx, w.name, next); err != nil {
		// Published but not checkpointed: the batch is redelivered after restart.
		return 0, err
	}
	w.position = next
	w.metrics.published(len(ready), next)
	return len(ready), nil
}

// Position is the last published global log position.
func (w *Worker) Position() int64 {
	return w.position
}

func (w *Worker) contiguous(records []eventsourcing.Record) []eventsourcing.Record {
	expected := w.position + 1
	for i, rec := range records {
		if rec.Position == expected {
			expected++
			continue
		}
		if i > 0 {
			return records[:i]
		}
		// Gap directly after the checkpoint.
		if w.gapPending != expected || w.gapSince.IsZero() {
			w.gapPending = expected
			w.gapSince = w.now()
			return nil
		}
		if w.now().Sub(w.gapSince) < w.gapTimeout {
			return nil
		}
		w.logger.Warn("skipping global log gap",
			"relay", w.name,
			"from", expected,
			"to", rec.Position-1,
		)
		w.metrics.gapSkipped()
		w.gapSince = time.Time{}
		w.gapPending = 0
		w.position = rec.Position - 1
		return w.contiguous(records)
	}
	w.gapSince = time.Time{}
	w.gapPending = 0
	return records
}
