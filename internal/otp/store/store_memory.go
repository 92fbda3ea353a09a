// Package store holds the in-memory one-time password read store.
package store

import (
	"context"
	"sync"

	"warden/internal/otp/models"
	id "warden/pkg/domain"
)

// InMemoryStore keeps one view per live one-time password.
type InMemoryStore struct {
	mu   sync.RWMutex
	byID map[id.OneTimePasswordID]*models.View
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{byID: make(map[id.OneTimePasswordID]*models.View)}
}

// Project replaces the view of o, or removes it once o is deleted.
func (s *InMemoryStore) Project(_ context.Context, o *models.OneTimePassword) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o.IsDeleted() {
		delete(s.byID, o.OneTimePasswordID())
		return nil
	}
	s.byID[o.OneTimePasswordID()] = models.NewView(o)
	return nil
}

func (s *InMemoryStore) ReadByID(_ context.Context, otpID id.OneTimePasswordID) (*models.View, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.byID[otpID]
	if !ok {
		return nil, nil
	}
	out := *v
	if v.MaximumAttempts != nil {
		limit := *v.MaximumAttempts
		out.MaximumAttempts = &limit
	}
	out.CustomAttributes = make(map[string]string, len(v.CustomAttributes))
	for k, val := range v.CustomAttributes {
		out.CustomAttributes[k] = val
	}
	return &out, nil
}
