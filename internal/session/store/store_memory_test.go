package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"warden/internal/password"
	"warden/internal/query"
	"warden/internal/session/models"
	"warden/internal/session/store"
	id "warden/pkg/domain"
)

var start = time.Date(2026, 5, 11, 14, 0, 0, 0, time.UTC)

func newSession(t *testing.T, userID id.UserID, persistent bool, at time.Time, browser string) *models.Session {
	t.Helper()
	var secret password.Password
	if persistent {
		var err error
		secret, err = password.Base64Strategy{}.Hash("refresh-secret")
		require.NoError(t, err)
	}
	s, err := models.New(id.NewSessionID(*userID.RealmID()), userID, secret, id.ActorIDFromUser(userID), at)
	require.NoError(t, err)
	if browser != "" {
		require.NoError(t, s.SetCustomAttribute(models.AttributeBrowser, browser))
		require.NoError(t, s.Update(id.ActorIDFromUser(userID), at))
	}
	return s
}

func TestInMemoryStore_SearchFilters(t *testing.T) {
	ctx := context.Background()
	st := store.NewInMemory()
	realm := id.NewRealmID()
	ada, bob := id.NewUserID(realm), id.NewUserID(realm)

	first := newSession(t, ada, true, start, "Firefox 128")
	second := newSession(t, ada, false, start.Add(time.Hour), "Chrome 126")
	third := newSession(t, bob, true, start.Add(2*time.Hour), "")
	require.NoError(t, second.SignOut(id.ActorIDFromUser(ada), start.Add(3*time.Hour)))
	for _, s := range []*models.Session{first, second, third} {
		require.NoError(t, st.Project(ctx, s))
	}

	all, err := st.Search(ctx, realm.Ptr(), models.SearchPayload{})
	require.NoError(t, err)
	assert.Equal(t, []id.SessionID{second.SessionID(), third.SessionID(), first.SessionID()}, ids(all.Items),
		"most recently updated first")

	userID := ada
	mine, err := st.Search(ctx, realm.Ptr(), models.SearchPayload{UserID: &userID})
	require.NoError(t, err)
	assert.Equal(t, int64(2), mine.Total)

	active := true
	live, err := st.Search(ctx, realm.Ptr(), models.SearchPayload{IsActive: &active})
	require.NoError(t, err)
	assert.ElementsMatch(t, []id.SessionID{first.SessionID(), third.SessionID()}, ids(live.Items))

	persistent := false
	ephemeral, err := st.Search(ctx, realm.Ptr(), models.SearchPayload{IsPersistent: &persistent})
	require.NoError(t, err)
	assert.Equal(t, []id.SessionID{second.SessionID()}, ids(ephemeral.Items))

	firefox, err := st.Search(ctx, realm.Ptr(), models.SearchPayload{SearchPayload: query.SearchPayload{Terms: []string{"firefox"}}})
	require.NoError(t, err)
	assert.Equal(t, []id.SessionID{first.SessionID()}, ids(firefox.Items))

	other, err := st.Search(ctx, id.NewRealmID().Ptr(), models.SearchPayload{})
	require.NoError(t, err)
	assert.Zero(t, other.Total)
}

func TestInMemoryStore_DeleteRemovesView(t *testing.T) {
	ctx := context.Background()
	st := store.NewInMemory()
	userID := id.NewUserID(id.NewRealmID())
	s := newSession(t, userID, true, start, "")
	require.NoError(t, st.Project(ctx, s))

	view, err := st.ReadByID(ctx, s.SessionID())
	require.NoError(t, err)
	require.NotNil(t, view)
	view.CustomAttributes["tampered"] = "yes"

	again, err := st.ReadByID(ctx, s.SessionID())
	require.NoError(t, err)
	assert.NotContains(t, again.CustomAttributes, "tampered", "views are copies")

	require.NoError(t, s.Delete(id.ActorIDFromUser(userID), start.Add(time.Minute)))
	require.NoError(t, st.Project(ctx, s))
	gone, err := st.ReadByID(ctx, s.SessionID())
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func ids(views []models.View) []id.SessionID {
	out := make([]id.SessionID, len(views))
	for i, v := range views {
		out[i] = v.ID
	}
	return out
}
