package eventsourcing

import (
	"context"
	"fmt"
	"sync"
)

// InMemoryStore is an EventStore for tests and single-process development.
type InMemoryStore struct {
	mu      sync.RWMutex
	streams map[StreamID][]Record
	log     []Record
}

// NewInMemoryStore constructs an empty event store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{streams: make(map[StreamID][]Record)}
}

func (s *InMemoryStore) Load(ctx context.Context, streamID StreamID, afterVersion int64) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	stream := s.streams[streamID]
	out := make([]Record, 0, len(stream))
	for _, rec := range stream {
		if rec.Version > afterVersion {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (s *InMemoryStore) Append(ctx context.Context, streams ...Stream) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, st := range streams {
		current := int64(len(s.streams[st.ID]))
		if current != st.ExpectedVersion {
			return fmt.Errorf("append %s: expected version %d, stream at %d: %w",
				st.ID, st.ExpectedVersion, current, ErrConcurrencyConflict)
		}
		for i, rec := range st.Records {
			if rec.Version != st.ExpectedVersion+int64(i)+1 {
				return fmt.Errorf("append %s: record version %d out of sequence: %w", st.ID, rec.Version, ErrInvalidStream)
			}
		}
	}

	for _, st := range streams {
		for _, rec := range st.Records {
			rec.StreamID = st.ID
			rec.Position = int64(len(s.log)) + 1
			s.log = append(s.log, rec)
			s.streams[st.ID] = append(s.streams[st.ID], rec)
		}
	}
	return nil
}

func (s *InMemoryStore) ReadAll(ctx context.Context, afterPosition int64, limit int) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if afterPosition < 0 {
		afterPosition = 0
	}
	if afterPosition >= int64(len(s.log)) {
		return nil, nil
	}
	end := int64(len(s.log))
	if limit > 0 && afterPosition+int64(limit) < end {
		end = afterPosition + int64(limit)
	}
	out := make([]Record, end-afterPosition)
	copy(out, s.log[afterPosition:end])
	return out, nil
}
