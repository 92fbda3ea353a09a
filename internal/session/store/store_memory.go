// Package store holds the in-memory session read store.
package store

import (
	"context"
	"sync"

	"warden/internal/query"
	"warden/internal/session/models"
	id "warden/pkg/domain"
)

// InMemoryStore keeps one view per live session.
type InMemoryStore struct {
	mu   sync.RWMutex
	byID map[id.SessionID]*models.View
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{byID: make(map[id.SessionID]*models.View)}
}

// Project replaces the view of s, or removes it once s is deleted.
func (st *InMemoryStore) Project(_ context.Context, s *models.Session) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	if s.IsDeleted() {
		delete(st.byID, s.SessionID())
		return nil
	}
	st.byID[s.SessionID()] = models.NewView(s)
	return nil
}

func (st *InMemoryStore) ReadByID(_ context.Context, sessionID id.SessionID) (*models.View, error) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return clone(st.byID[sessionID]), nil
}

// Search lists the sessions of realmID. Terms match custom attribute values.
func (st *InMemoryStore) Search(_ context.Context, realmID *id.RealmID, payload models.SearchPayload) (query.Page[models.View], error) {
	st.mu.RLock()
	items := make([]models.View, 0)
	for _, v := range st.byID {
		switch {
		case !sameRealm(v.RealmID, realmID),
			!query.MatchesIDs(payload.IDs, v.ID.String()),
			payload.UserID != nil && v.UserID != *payload.UserID,
			payload.IsActive != nil && v.IsActive != *payload.IsActive,
			payload.IsPersistent != nil && v.IsPersistent != *payload.IsPersistent:
			continue
		}
		values := make([]string, 0, len(v.CustomAttributes))
		for _, value := range v.CustomAttributes {
			values = append(values, value)
		}
		if query.MatchesTerms(payload.Terms, values...) {
			items = append(items, *clone(v))
		}
	}
	st.mu.RUnlock()

	query.SortBy(items, []query.SortOption{{Field: "updated_on", Direction: query.Descending}}, sortKey)
	query.SortBy(items, payload.Sort, sortKey)
	return query.Paginate(items, payload.SearchPayload), nil
}

func sameRealm(a, b *id.RealmID) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func sortKey(v models.View, field string) (string, bool) {
	switch field {
	case "created_on":
		return query.TimeKey(v.CreatedOn), true
	case "updated_on":
		return query.TimeKey(v.UpdatedOn), true
	case "signed_out_on":
		if v.SignedOutOn != nil {
			return query.TimeKey(*v.SignedOutOn), true
		}
		return "", true
	}
	return "", false
}

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
