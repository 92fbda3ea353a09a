// Package projection rebuilds the in-memory read models from the global
// event log at startup.
package projection

import (
	"context"
	"fmt"
	"log/slog"

	"warden/internal/eventsourcing"
)

const defaultBatchSize = 500

// LogReader is the slice of the event store a rebuild needs.
type LogReader interface {
	ReadAll(ctx context.Context, afterPosition int64, limit int) ([]eventsourcing.Record, error)
}

// Binding projects one stream of a kind.
type Binding struct {
	Kind    string
	Project func(ctx context.Context, streamID eventsourcing.StreamID) error
}

// For binds kind to a loader and projector of its aggregate type.
func For[A eventsourcing.Aggregate](kind string, repo *eventsourcing.Repository, newAggregate func() A, project func(ctx context.Context, agg A) error) Binding {
	return Binding{
		Kind: kind,
		Project: func(ctx context.Context, streamID eventsourcing.StreamID) error {
			agg := newAggregate()
			if err := repo.Load(ctx, agg, streamID); err != nil {
				return err
			}
			return project(ctx, agg)
		},
	}
}

// Rebuilder replays every stream of the bound kinds once.
type Rebuilder struct {
	reader    LogReader
	bindings  map[string]Binding
	batchSize int
	logger    *slog.Logger
}

type Option func(*Rebuilder)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Rebuilder) {
		r.logger = logger
	}
}

func WithBatchSize(n int) Option {
	return func(r *Rebuilder) {
		if n > 0 {
			r.batchSize = n
		}
	}
}

func NewRebuilder(reader LogReader, bindings []Binding, opts ...Option) *Rebuilder {
	r := &Rebuilder{
		reader:    reader,
		bindings:  make(map[string]Binding, len(bindings)),
		batchSize: defaultBatchSize,
		logger:    slog.Default(),
	}
	for _, b := range bindings {
		r.bindings[b.Kind] = b
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Rebuild scans the log for distinct streams, in first-seen order, and
// projects each from its full history. Streams of unbound kinds are skipped.
// It returns the number of projected streams.
func (r *Rebuilder) Rebuild(ctx context.Context) (int, error) {
	seen := make(map[eventsourcing.StreamID]struct{})
	var order []eventsourcing.StreamID
	var position int64
	for {
		records, err := r.reader.ReadAll(ctx, position, r.batchSize)
		if err != nil {
			return 0, fmt.Errorf("read event log after %d: %w", position, err)
		}
		for _, rec := range records {
			position = rec.Position
			if _, ok := r.bindings[rec.StreamID.Kind()]; !ok {
				continue
			}
			if _, ok := seen[rec.StreamID]; ok {
				continue
			}
			seen[rec.StreamID] = struct{}{}
			order = append(order, rec.StreamID)
		}
		if len(records) < r.batchSize {
			break
		}
	}

	for _, streamID := range order {
		if err := r.bindings[streamID.Kind()].Project(ctx, streamID); err != nil {
			return 0, fmt.Errorf("project %s: %w", streamID, err)
		}
	}
	r.logger.InfoContext(ctx, "read models rebuilt", "streams", len(order), "position", position)
	return len(order), nil
}
