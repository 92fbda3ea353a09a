package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"warden/internal/eventsourcing"
	id "warden/pkg/domain"
	dErrors "warden/pkg/domain-errors"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

const admin id.ActorID = "User:admin"

func ptr[T any](v T) *T { return &v }

func newRealm(t *testing.T) *Realm {
	t.Helper()
	r, err := New(id.NewRealmID(), "acme", "c2VjcmV0", admin, now)
	require.NoError(t, err)
	return r
}

func TestNew(t *testing.T) {
	r := newRealm(t)

	assert.Equal(t, int64(1), r.Version())
	assert.Equal(t, "acme", r.UniqueSlug())
	assert.Equal(t, id.DefaultPasswordSettings(), r.PasswordSettings())
	assert.Equal(t, admin, r.CreatedBy())
	assert.Equal(t, now, r.CreatedOn())
	assert.Equal(t, r.RealmID().String(), r.ID().Key())
	require.Len(t, r.Changes(), 1)
	assert.IsType(t, &RealmCreated{}, r.Changes()[0].Event)
}

func TestNew_RejectsInvalidSlug(t *testing.T) {
	_, err := New(id.NewRealmID(), "ACME corp", "c2VjcmV0", admin, now)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	assert.Equal(t, "unique_slug", dErrors.Fields(err)[0].Field)
}

func TestUpdate_RaisesOnlyChangedFields(t *testing.T) {
	r := newRealm(t)
	require.NoError(t, r.SetDisplayName(ptr("  Acme  ")))
	require.NoError(t, r.SetURL(ptr("https://acme.example")))
	r.SetRequireUniqueEmail(false)
	require.NoError(t, r.SetCustomAttribute("tier", "gold"))
	require.NoError(t, r.Update(admin, now.Add(time.Minute)))

	require.Len(t, r.Changes(), 2)
	e := r.Changes()[1].Event.(*RealmUpdated)
	assert.Equal(t, "Acme", *e.DisplayName.Value)
	assert.Nil(t, e.Description)
	assert.Nil(t, e.RequireUniqueEmail)
	assert.Equal(t, "gold", *e.CustomAttributes["tier"])
	assert.Equal(t, "Acme", *r.DisplayName())
	assert.Equal(t, now.Add(time.Minute), r.UpdatedOn())

	// Clearing a field is recorded as a present change with no value.
	require.NoError(t, r.SetDisplayName(nil))
	r.RemoveCustomAttribute("tier")
	require.NoError(t, r.Update(admin, now))
	e = r.Changes()[2].Event.(*RealmUpdated)
	assert.True(t, e.DisplayName.IsClear())
	assert.Nil(t, r.DisplayName())
	_, ok := r.CustomAttribute("tier")
	assert.False(t, ok)
}

func TestUpdate_NoChangesRaisesNothing(t *testing.T) {
	r := newRealm(t)
	require.NoError(t, r.SetUniqueSlug("acme", admin, now))
	r.SetUniqueNameSettings(id.DefaultUniqueNameSettings())
	require.NoError(t, r.SetPasswordSettings(id.DefaultPasswordSettings()))
	require.NoError(t, r.Update(admin, now))
	assert.Equal(t, int64(1), r.Version())
}

func TestSetPasswordSettings_Validates(t *testing.T) {
	r := newRealm(t)
	settings := id.DefaultPasswordSettings()
	settings.RequiredLength = 0
	err := r.SetPasswordSettings(settings)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
}

func TestDelete(t *testing.T) {
	r := newRealm(t)
	require.NoError(t, r.Delete(admin, now))
	require.NoError(t, r.Delete(admin, now), "deleting twice is a no-op")
	assert.True(t, r.IsDeleted())
	assert.Equal(t, int64(2), r.Version())

	err := r.SetUniqueSlug("other", admin, now)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeAggregateDeleted))

	require.NoError(t, r.SetDisplayName(ptr("Acme")))
	err = r.Update(admin, now)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeAggregateDeleted))
}

func TestReplay_RebuildsState(t *testing.T) {
	r := newRealm(t)
	require.NoError(t, r.SetUniqueSlug("acme-corp", admin, now))
	require.NoError(t, r.SetDescription(ptr("Anvils")))
	require.NoError(t, r.Update(admin, now))

	codec := eventsourcing.NewCodec()
	RegisterEvents(codec)
	history := make([]eventsourcing.Envelope, 0, len(r.Changes()))
	for _, env := range r.Changes() {
		rec, err := codec.Encode(env)
		require.NoError(t, err)
		decoded, err := codec.Decode(rec)
		require.NoError(t, err)
		history = append(history, decoded)
	}

	replayed := &Realm{}
	require.NoError(t, eventsourcing.Replay(replayed, history))
	assert.Equal(t, r.Version(), replayed.Version())
	assert.Equal(t, r.RealmID(), replayed.RealmID())
	assert.Equal(t, "acme-corp", replayed.UniqueSlug())
	assert.Equal(t, "Anvils", *replayed.Description())
	assert.False(t, replayed.HasChanges())
}
