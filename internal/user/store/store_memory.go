// Package store holds the in-memory user read store.
package store

import (
	"context"
	"strings"
	"sync"

	"warden/internal/actor"
	"warden/internal/query"
	"warden/internal/user/models"
	id "warden/pkg/domain"
)

// InMemoryStore keeps one view per live user. Unique names are indexed
// case-insensitively per realm.
type InMemoryStore struct {
	mu     sync.RWMutex
	byID   map[id.UserID]*models.View
	byName map[string]id.UserID
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{
		byID:   make(map[id.UserID]*models.View),
		byName: make(map[string]id.UserID),
	}
}

func nameKey(realmID *id.RealmID, uniqueName string) string {
	realm := ""
	if realmID != nil {
		realm = realmID.String()
	}
	return realm + "|" + strings.ToUpper(strings.TrimSpace(uniqueName))
}

func sameRealm(a, b *id.RealmID) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// Project replaces the view of u, or removes it once u is deleted.
func (s *InMemoryStore) Project(_ context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.byID[u.UserID()]; ok {
		delete(s.byName, nameKey(old.RealmID, old.UniqueName))
	}
	if u.IsDeleted() {
		delete(s.byID, u.UserID())
		return nil
	}
	v := models.NewView(u)
	s.byID[v.ID] = v
	s.byName[nameKey(v.RealmID, v.UniqueName)] = v.ID
	return nil
}

func (s *InMemoryStore) ReadByID(_ context.Context, userID id.UserID) (*models.View, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return clone(s.byID[userID]), nil
}

func (s *InMemoryStore) ReadByUniqueName(_ context.Context, realmID *id.RealmID, uniqueName string) (*models.View, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	userID, ok := s.byName[nameKey(realmID, uniqueName)]
	if !ok {
		return nil, nil
	}
	return clone(s.byID[userID]), nil
}

func (s *InMemoryStore) ReadByEmail(_ context.Context, realmID *id.RealmID, address string) ([]models.View, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.View
	for _, v := range s.byID {
		if sameRealm(v.RealmID, realmID) && v.Email != nil && strings.EqualFold(v.Email.Address, address) {
			out = append(out, *clone(v))
		}
	}
	return out, nil
}

func (s *InMemoryStore) Search(_ context.Context, realmID *id.RealmID, payload query.SearchPayload) (query.Page[models.View], error) {
	s.mu.RLock()
	items := make([]models.View, 0)
	for _, v := range s.byID {
		if !sameRealm(v.RealmID, realmID) || !query.MatchesIDs(payload.IDs, v.ID.String()) {
			continue
		}
		values := []string{v.UniqueName}
		for _, p := range []*string{v.FullName, v.Nickname} {
			if p != nil {
				values = append(values, *p)
			}
		}
		if v.Email != nil {
			values = append(values, v.Email.Address)
		}
		if query.MatchesTerms(payload.Terms, values...) {
			items = append(items, *clone(v))
		}
	}
	s.mu.RUnlock()

	query.SortBy(items, []query.SortOption{{Field: "unique_name"}}, sortKey)
	query.SortBy(items, payload.Sort, sortKey)
	return query.Paginate(items, payload), nil
}

// FindActors resolves user actor ids.
func (s *InMemoryStore) FindActors(_ context.Context, ids []id.ActorID) ([]actor.Actor, error) {
	wanted := make(map[id.ActorID]struct{}, len(ids))
	for _, actorID := range ids {
		wanted[actorID] = struct{}{}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []actor.Actor
	for _, v := range s.byID {
		if _, ok := wanted[id.ActorIDFromUser(v.ID)]; ok {
			out = append(out, v.Actor())
		}
	}
	return out, nil
}

func sortKey(v models.View, field string) (string, bool) {
	switch field {
	case "unique_name":
		return strings.ToLower(v.UniqueName), true
	case "full_name":
		if v.FullName != nil {
			return strings.ToLower(*v.FullName), true
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
