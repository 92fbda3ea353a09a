// Package store holds the in-memory API key read store.
package store

import (
	"context"
	"strings"
	"sync"

	"warden/internal/actor"
	"warden/internal/apikey/models"
	"warden/internal/query"
	id "warden/pkg/domain"
)

// InMemoryStore keeps one view per live API key.
type InMemoryStore struct {
	mu   sync.RWMutex
	byID map[id.APIKeyID]*models.View
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{byID: make(map[id.APIKeyID]*models.View)}
}

// Project replaces the view of k, or removes it once k is deleted.
func (s *InMemoryStore) Project(_ context.Context, k *models.APIKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if k.IsDeleted() {
		delete(s.byID, k.KeyID())
		return nil
	}
	s.byID[k.KeyID()] = models.NewView(k)
	return nil
}

func (s *InMemoryStore) ReadByID(_ context.Context, keyID id.APIKeyID) (*models.View, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return clone(s.byID[keyID]), nil
}

// Search lists the keys of realmID matching the payload terms.
func (s *InMemoryStore) Search(_ context.Context, realmID *id.RealmID, payload query.SearchPayload) (query.Page[models.View], error) {
	s.mu.RLock()
	items := make([]models.View, 0)
	for _, v := range s.byID {
		if !sameRealm(v.RealmID, realmID) || !query.MatchesIDs(payload.IDs, v.ID.String()) {
			continue
		}
		values := []string{v.DisplayName}
		if v.Description != nil {
			values = append(values, *v.Description)
		}
		if query.MatchesTerms(payload.Terms, values...) {
			items = append(items, *clone(v))
		}
	}
	s.mu.RUnlock()

	query.SortBy(items, []query.SortOption{{Field: "display_name"}}, sortKey)
	query.SortBy(items, payload.Sort, sortKey)
	return query.Paginate(items, payload), nil
}

// FindActors resolves API key actor ids.
func (s *InMemoryStore) FindActors(_ context.Context, ids []id.ActorID) ([]actor.Actor, error) {
	wanted := make(map[id.ActorID]struct{}, len(ids))
	for _, actorID := range ids {
		wanted[actorID] = struct{}{}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []actor.Actor
	for _, v := range s.byID {
		if _, ok := wanted[id.ActorIDFromAPIKey(v.ID)]; ok {
			out = append(out, v.Actor())
		}
	}
	return out, nil
}

func sameRealm(a, b *id.RealmID) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func sortKey(v models.View, field string) (string, bool) {
	switch field {
	case "display_name":
		return strings.ToLower(v.DisplayName), true
	case "expires_on":
		if v.ExpiresOn != nil {
			return query.TimeKey(*v.ExpiresOn), true
		}
		return "", true
	case "authenticated_on":
		if v.AuthenticatedOn != nil {
			return query.TimeKey(*v.AuthenticatedOn), true
		}
		return "", true
	case "updated_on":
		return query.TimeKey(v.UpdatedOn), true
	}
	return "", false
}

func clone(v *models.View) *models.View {
	if v == nil {
		return nil
	}
	out := *v
	out.Roles = append([]string(nil), v.Roles...)
	out.CustomAttributes = make(map[string]string, len(v.CustomAttributes))
	for k, val := range v.CustomAttributes {
		out.CustomAttributes[k] = val
	}
	return &out
}
