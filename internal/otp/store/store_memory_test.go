package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"warden/internal/otp/models"
	"warden/internal/otp/store"
	"warden/internal/password"
	id "warden/pkg/domain"
)

func TestInMemoryStore_TracksAttemptsUntilDeleted(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 7, 9, 16, 45, 0, 0, time.UTC)
	registry, err := password.NewRegistry(password.Base64Key, password.Base64Strategy{})
	require.NoError(t, err)
	pw, err := registry.Hash("482913")
	require.NoError(t, err)
	limit := 3

	o, err := models.New(id.NewOneTimePasswordID(id.NewRealmID()), pw, nil, &limit, id.SystemActorID, now)
	require.NoError(t, err)
	s := store.NewInMemory()
	require.NoError(t, s.Project(ctx, o))

	require.Error(t, o.Validate("000000", registry, id.SystemActorID, now.Add(time.Second)))
	require.NoError(t, s.Project(ctx, o))

	view, err := s.ReadByID(ctx, o.OneTimePasswordID())
	require.NoError(t, err)
	require.NotNil(t, view)
	assert.Equal(t, 1, view.AttemptCount)
	assert.False(t, view.HasValidationSucceeded)
	assert.Empty(t, view.Password, "the plaintext is never stored")

	*view.MaximumAttempts = 99
	again, err := s.ReadByID(ctx, o.OneTimePasswordID())
	require.NoError(t, err)
	assert.Equal(t, 3, *again.MaximumAttempts, "views are copies")

	require.NoError(t, o.Delete(id.SystemActorID, now.Add(time.Minute)))
	require.NoError(t, s.Project(ctx, o))
	gone, err := s.ReadByID(ctx, o.OneTimePasswordID())
	require.NoError(t, err)
	assert.Nil(t, gone)
}
