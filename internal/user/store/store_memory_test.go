package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"warden/internal/query"
	"warden/internal/user/models"
	"warden/internal/user/store"
	id "warden/pkg/domain"
)

var now = time.Date(2026, 4, 2, 8, 30, 0, 0, time.UTC)

func newUser(t *testing.T, realm id.RealmID, uniqueName string, email *string) *models.User {
	t.Helper()
	u, err := models.New(id.NewUserID(realm), uniqueName, id.DefaultUniqueNameSettings(), id.SystemActorID, now)
	require.NoError(t, err)
	if email != nil {
		require.NoError(t, u.SetEmail(email, false))
		require.NoError(t, u.Update(id.SystemActorID, now))
	}
	return u
}

func TestInMemoryStore_UniqueNameIsRealmScopedAndCaseInsensitive(t *testing.T) {
	ctx := context.Background()
	s := store.NewInMemory()
	acme, globex := id.NewRealmID(), id.NewRealmID()

	ada := newUser(t, acme, "ada", nil)
	require.NoError(t, s.Project(ctx, ada))
	require.NoError(t, s.Project(ctx, newUser(t, globex, "ada", nil)))

	found, err := s.ReadByUniqueName(ctx, acme.Ptr(), "ADA")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, ada.UserID(), found.ID)

	missing, err := s.ReadByUniqueName(ctx, nil, "ada")
	require.NoError(t, err)
	assert.Nil(t, missing, "default realm holds no user named ada")
}

func TestInMemoryStore_RenameAndDeleteUpdateIndexes(t *testing.T) {
	ctx := context.Background()
	s := store.NewInMemory()
	realm := id.NewRealmID()

	u := newUser(t, realm, "grace", nil)
	require.NoError(t, s.Project(ctx, u))
	require.NoError(t, u.SetUniqueName("grace.hopper", id.DefaultUniqueNameSettings(), id.SystemActorID, now.Add(time.Minute)))
	require.NoError(t, s.Project(ctx, u))

	old, err := s.ReadByUniqueName(ctx, realm.Ptr(), "grace")
	require.NoError(t, err)
	assert.Nil(t, old)
	renamed, err := s.ReadByUniqueName(ctx, realm.Ptr(), "grace.hopper")
	require.NoError(t, err)
	require.NotNil(t, renamed)

	require.NoError(t, u.Delete(id.SystemActorID, now.Add(2*time.Minute)))
	require.NoError(t, s.Project(ctx, u))
	gone, err := s.ReadByID(ctx, u.UserID())
	require.NoError(t, err)
	assert.Nil(t, gone)
	renamed, err = s.ReadByUniqueName(ctx, realm.Ptr(), "grace.hopper")
	require.NoError(t, err)
	assert.Nil(t, renamed)
}

func TestInMemoryStore_ReadByEmail(t *testing.T) {
	ctx := context.Background()
	s := store.NewInMemory()
	realm := id.NewRealmID()
	shared := "team@example.com"

	require.NoError(t, s.Project(ctx, newUser(t, realm, "first", &shared)))
	require.NoError(t, s.Project(ctx, newUser(t, realm, "second", &shared)))
	require.NoError(t, s.Project(ctx, newUser(t, id.NewRealmID(), "elsewhere", &shared)))

	views, err := s.ReadByEmail(ctx, realm.Ptr(), "TEAM@example.com")
	require.NoError(t, err)
	assert.Len(t, views, 2)
}

func TestInMemoryStore_Search(t *testing.T) {
	ctx := context.Background()
	s := store.NewInMemory()
	realm := id.NewRealmID()
	for _, name := range []string{"charlie", "alice", "bob", "alicia"} {
		require.NoError(t, s.Project(ctx, newUser(t, realm, name, nil)))
	}

	page, err := s.Search(ctx, realm.Ptr(), query.SearchPayload{Terms: []string{" ALI "}})
	require.NoError(t, err)
	assert.Equal(t, int64(2), page.Total)
	assert.Equal(t, []string{"alice", "alicia"}, names(page.Items))

	page, err = s.Search(ctx, realm.Ptr(), query.SearchPayload{
		Sort:  []query.SortOption{{Field: "unique_name", Direction: query.Descending}},
		Skip:  1,
		Limit: 2,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(4), page.Total)
	assert.Equal(t, []string{"bob", "alicia"}, names(page.Items))

	page, err = s.Search(ctx, nil, query.SearchPayload{})
	require.NoError(t, err)
	assert.Zero(t, page.Total)
}

func TestInMemoryStore_FindActors(t *testing.T) {
	ctx := context.Background()
	s := store.NewInMemory()
	u := newUser(t, id.NewRealmID(), "linus", nil)
	require.NoError(t, s.Project(ctx, u))

	actors, err := s.FindActors(ctx, []id.ActorID{u.ActorID(), "unknown"})
	require.NoError(t, err)
	require.Len(t, actors, 1)
	assert.Equal(t, u.ActorID(), actors[0].ID)
	assert.Equal(t, "linus", actors[0].DisplayName)
}

func names(views []models.View) []string {
	out := make([]string, len(views))
	for i, v := range views {
		out[i] = v.UniqueName
	}
	return out
}
