// Package store holds the blacklisted token stores.
package store

import (
	"context"
	"sync"
	"time"
)

// InMemoryStore keeps blacklisted tokens in process. A nil expiry never expires.
type InMemoryStore struct {
	mu     sync.RWMutex
	tokens map[string]*time.Time
}

// NewInMemoryStore constructs an empty store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{tokens: make(map[string]*time.Time)}
}

func (s *InMemoryStore) Upsert(_ context.Context, tokenIDs []string, expiresOn *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, tokenID := range tokenIDs {
		if expiresOn == nil {
			s.tokens[tokenID] = nil
			continue
		}
		exp := expiresOn.UTC()
		s.tokens[tokenID] = &exp
	}
	return nil
}

func (s *InMemoryStore) FindActive(_ context.Context, tokenIDs []string, now time.Time) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []string
	for _, tokenID := range tokenIDs {
		exp, ok := s.tokens[tokenID]
		if !ok {
			continue
		}
		if exp == nil || exp.After(now) {
			out = append(out, tokenID)
		}
	}
	return out, nil
}

// Claim checks and inserts under one lock.
func (s *InMemoryStore) Claim(_ context.Context, tokenID string, expiresOn *time.Time, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if exp, ok := s.tokens[tokenID]; ok && (exp == nil || exp.After(now)) {
		return false, nil
	}
	if expiresOn == nil {
		s.tokens[tokenID] = nil
		return true, nil
	}
	exp := expiresOn.UTC()
	s.tokens[tokenID] = &exp
	return true, nil
}

func (s *InMemoryStore) Purge(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var purged int64
	for tokenID, exp := range s.tokens {
		if exp != nil && !exp.After(now) {
			delete(s.tokens, tokenID)
			purged++
		}
	}
	return purged, nil
}
