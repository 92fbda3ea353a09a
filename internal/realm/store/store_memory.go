// Package store holds the in-memory realm read store used by tests and
// single-process deployments.
package store

import (
	"context"
	"strings"
	"sync"

	"warden/internal/query"
	"warden/internal/realm/models"
	id "warden/pkg/domain"
)

// InMemoryStore keeps one view per live realm, indexed by id and slug.
type InMemoryStore struct {
	mu     sync.RWMutex
	byID   map[id.RealmID]*models.View
	bySlug map[string]id.RealmID
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{
		byID:   make(map[id.RealmID]*models.View),
		bySlug: make(map[string]id.RealmID),
	}
}

// Project replaces the view of r, or removes it once r is deleted.
func (s *InMemoryStore) Project(_ context.Context, r *models.Realm) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.byID[r.RealmID()]; ok {
		delete(s.bySlug, slugKey(old.UniqueSlug))
	}
	if r.IsDeleted() {
		delete(s.byID, r.RealmID())
		return nil
	}
	view := models.NewView(r)
	s.byID[view.ID] = view
	s.bySlug[slugKey(view.UniqueSlug)] = view.ID
	return nil
}

func (s *InMemoryStore) ReadByID(_ context.Context, realmID id.RealmID) (*models.View, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return clone(s.byID[realmID]), nil
}

func (s *InMemoryStore) ReadBySlug(_ context.Context, uniqueSlug string) (*models.View, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	realmID, ok := s.bySlug[slugKey(uniqueSlug)]
	if !ok {
		return nil, nil
	}
	return clone(s.byID[realmID]), nil
}

func (s *InMemoryStore) Search(_ context.Context, payload query.SearchPayload) (query.Page[models.View], error) {
	s.mu.RLock()
	items := make([]models.View, 0, len(s.byID))
	for _, v := range s.byID {
		if !query.MatchesIDs(payload.IDs, v.ID.String()) {
			continue
		}
		name := ""
		if v.DisplayName != nil {
			name = *v.DisplayName
		}
		if query.MatchesTerms(payload.Terms, v.UniqueSlug, name) {
			items = append(items, *clone(v))
		}
	}
	s.mu.RUnlock()

	query.SortBy(items, []query.SortOption{{Field: "unique_slug"}}, sortKey)
	query.SortBy(items, payload.Sort, sortKey)
	return query.Paginate(items, payload), nil
}

func sortKey(v models.View, field string) (string, bool) {
	switch field {
	case "unique_slug":
		return v.UniqueSlug, true
	case "display_name":
		if v.DisplayName != nil {
			return *v.DisplayName, true
		}
		return v.UniqueSlug, true
	case "updated_on":
		return query.TimeKey(v.UpdatedOn), true
	}
	return "", false
}

func slugKey(slug string) string { return strings.ToLower(strings.TrimSpace(slug)) }

func clone(v *models.View) *models.View {
	if v == nil {
		return nil
	}
	out := *v
	out.CustomAttributes = make(map[string]string, len(v.CustomAttributes))
	for k, val := range v.CustomAttributes {
		out.CustomAttributes[k] = val
	}
	return &out
}
