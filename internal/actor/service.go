package actor

import (
	"context"
	"log/slog"

	id "warden/pkg/domain"
)

// Service resolves actor ids cache-aside. The cache is an optimisation: when
// it fails, lookups fall through to the read store.
type Service struct {
	cache   Cache
	reader  Reader
	logger  *slog.Logger
	metrics *Metrics
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger; slog.Default is used otherwise.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithMetrics records cache hits, misses and errors.
func WithMetrics(m *Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// NewService constructs a Service reading misses from reader.
func NewService(cache Cache, reader Reader, opts ...Option) *Service {
	s := &Service{
		cache:  cache,
		reader: reader,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Find resolves every id. The system actor needs no lookup; misses are loaded
// in a single Reader call and cached, including ids the read store does not
// know, which resolve to the Unknown placeholder.
func (s *Service) Find(ctx context.Context, ids []id.ActorID) (map[id.ActorID]Actor, error) {
	out := make(map[id.ActorID]Actor, len(ids))
	lookup := make([]id.ActorID, 0, len(ids))
	seen := make(map[id.ActorID]struct{}, len(ids))
	for _, actorID := range ids {
		if _, dup := seen[actorID]; dup {
			continue
		}
		seen[actorID] = struct{}{}
		if actorID.IsSystem() {
			out[actorID] = System()
			continue
		}
		lookup = append(lookup, actorID)
	}
	if len(lookup) == 0 {
		return out, nil
	}

	cached, err := s.cache.Get(ctx, lookup)
	if err != nil {
		s.metrics.cacheError()
		s.logger.WarnContext(ctx, "actor cache read failed", "error", err)
		cached = nil
	}
	misses := make([]id.ActorID, 0, len(lookup))
	for _, actorID := range lookup {
		if a, ok := cached[actorID]; ok {
			out[actorID] = a
			continue
		}
		misses = append(misses, actorID)
	}
	s.metrics.record(len(lookup)-len(misses), len(misses))
	if len(misses) == 0 {
		return out, nil
	}

	found, err := s.reader.FindActors(ctx, misses)
	if err != nil {
		return nil, err
	}
	resolved := make([]Actor, 0, len(misses))
	for _, a := range found {
		resolved = append(resolved, a)
		out[a.ID] = a
	}
	for _, actorID := range misses {
		if _, ok := out[actorID]; !ok {
			placeholder := Unknown(actorID)
			resolved = append(resolved, placeholder)
			out[actorID] = placeholder
		}
	}
	if err := s.cache.Set(ctx, resolved...); err != nil {
		s.metrics.cacheError()
		s.logger.WarnContext(ctx, "actor cache write failed", "error", err)
	}
	return out, nil
}

// FindOne resolves a single id.
func (s *Service) FindOne(ctx context.Context, actorID id.ActorID) (Actor, error) {
	actors, err := s.Find(ctx, []id.ActorID{actorID})
	if err != nil {
		return Actor{}, err
	}
	return actors[actorID], nil
}

// SetActor refreshes a cached actor after its source changed.
func (s *Service) SetActor(ctx context.Context, a Actor) error {
	if a.ID.IsSystem() {
		return nil
	}
	return s.cache.Set(ctx, a)
}

// RemoveActor evicts an actor so the next lookup reloads it.
func (s *Service) RemoveActor(ctx context.Context, actorID id.ActorID) error {
	return s.cache.Remove(ctx, actorID)
}
