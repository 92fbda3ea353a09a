package eventsourcing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"warden/pkg/platform/sentinel"
)

const tracerName = "warden/eventsourcing"

// Repository loads aggregates by replaying their streams and saves their
// uncommitted events.
type Repository struct {
	store   EventStore
	codec   *Codec
	logger  *slog.Logger
	metrics *Metrics
	tracer  trace.Tracer
}

// Option configures a Repository.
type Option func(*Repository)

// WithLogger sets the logger; slog.Default is used otherwise.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Repository) {
		r.logger = logger
	}
}

// WithMetrics records appends, replays, conflicts and latencies.
func WithMetrics(m *Metrics) Option {
	return func(r *Repository) {
		r.metrics = m
	}
}

// WithTracer wraps loads and saves in spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(r *Repository) {
		r.tracer = tracer
	}
}

// NewRepository constructs a Repository over store, decoding with codec.
func NewRepository(store EventStore, codec *Codec, opts ...Option) *Repository {
	r := &Repository{
		store:  store,
		codec:  codec,
		logger: slog.Default(),
		tracer: otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Load replays the stream into agg, which must be a fresh zero value.
// Returns sentinel.ErrNotFound when the stream has no events.
func (r *Repository) Load(ctx context.Context, agg Aggregate, streamID StreamID) error {
	return r.LoadAt(ctx, agg, streamID, 0)
}

// LoadAt replays the stream up to and including version; 0 means the latest.
func (r *Repository) LoadAt(ctx context.Context, agg Aggregate, streamID StreamID, version int64) error {
	start := time.Now()
	ctx, span := r.tracer.Start(ctx, "eventsourcing.Load", trace.WithAttributes(
		attribute.String("stream.id", streamID.String()),
		attribute.Int64("stream.version", version),
	))
	defer span.End()

	root := agg.AggregateRoot()
	records, err := r.store.Load(ctx, streamID, root.Version())
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	if version > 0 {
		cut := len(records)
		for i, rec := range records {
			if rec.Version > version {
				cut = i
				break
			}
		}
		records = records[:cut]
	}
	if len(records) == 0 && root.Version() == 0 {
		return fmt.Errorf("stream %s: %w", streamID, sentinel.ErrNotFound)
	}

	history, err := r.codec.decodeAll(records)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	if root.id == "" {
		root.id = streamID
	}
	if err := Replay(agg, history); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	r.metrics.observeLoad(streamID.Kind(), len(history), start)
	return nil
}

// Save appends the uncommitted events of every aggregate in one atomic append,
// each at the version it was loaded at. Buffers are cleared only on success;
// on ErrConcurrencyConflict the caller must reload and recompute.
func (r *Repository) Save(ctx context.Context, aggs ...Aggregate) error {
	start := time.Now()
	streams := make([]Stream, 0, len(aggs))
	for _, agg := range aggs {
		root := agg.AggregateRoot()
		if !root.HasChanges() {
			continue
		}
		records, err := r.codec.encodeAll(root.changes)
		if err != nil {
			return err
		}
		streams = append(streams, Stream{
			ID:              root.id,
			ExpectedVersion: root.CommittedVersion(),
			Records:         records,
		})
	}
	if len(streams) == 0 {
		return nil
	}

	ctx, span := r.tracer.Start(ctx, "eventsourcing.Save", trace.WithAttributes(
		attribute.Int("streams", len(streams)),
	))
	defer span.End()

	if err := r.store.Append(ctx, streams...); err != nil {
		span.SetStatus(codes.Error, err.Error())
		if errors.Is(err, ErrConcurrencyConflict) {
			r.metrics.incConflict(streams)
			r.logger.WarnContext(ctx, "aggregate save rejected by concurrent writer", "error", err)
		}
		return err
	}

	for _, agg := range aggs {
		agg.AggregateRoot().ClearChanges()
	}
	r.metrics.observeSave(streams, start)
	return nil
}

// Retry runs a load-mutate-save closure, re-running it from scratch when the
// save loses an optimistic concurrency race. Other errors return immediately.
func Retry(ctx context.Context, attempts int, fn func(ctx context.Context) error) error {
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(ctx); err == nil || !errors.Is(err, ErrConcurrencyConflict) {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
	}
	return err
}
