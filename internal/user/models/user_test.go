package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"warden/internal/eventsourcing"
	"warden/internal/password"
	id "warden/pkg/domain"
	dErrors "warden/pkg/domain-errors"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

const admin id.ActorID = "admin"

func ptr[T any](v T) *T { return &v }

func registry(t *testing.T) *password.Registry {
	t.Helper()
	r, err := password.NewRegistry(password.Base64Key, password.Base64Strategy{})
	require.NoError(t, err)
	return r
}

func newUser(t *testing.T, r *password.Registry, secret string) *User {
	t.Helper()
	u, err := New(id.NewUserID(id.NewRealmID()), "john.doe", id.DefaultUniqueNameSettings(), admin, now)
	require.NoError(t, err)
	if secret != "" {
		pw, err := r.Hash(secret)
		require.NoError(t, err)
		require.NoError(t, u.SetPassword(pw, admin, now))
	}
	return u
}

func TestNew_ValidatesUniqueName(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		settings id.UniqueNameSettings
		code     string
	}{
		{"blank", "  ", id.DefaultUniqueNameSettings(), "required"},
		{"disallowed character", "john doe", id.DefaultUniqueNameSettings(), "invalid_characters"},
		{"too long", string(make([]byte, 256)), id.UniqueNameSettings{}, "too_long"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(id.NewUserID(id.RealmID{}), tt.input, tt.settings, admin, now)
			require.Error(t, err)
			assert.Equal(t, tt.code, dErrors.Fields(err)[0].Code)
		})
	}

	u, err := New(id.NewUserID(id.RealmID{}), "john doe", id.UniqueNameSettings{}, admin, now)
	require.NoError(t, err, "nil allowed characters accept anything")
	assert.Nil(t, u.UserID().RealmID())
}

func TestAuthenticate(t *testing.T) {
	r := registry(t)
	u := newUser(t, r, "P@s$W0rD")

	require.NoError(t, u.Authenticate("P@s$W0rD", r))
	err := u.Authenticate("wrong", r)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidCredentials))

	require.NoError(t, u.Disable(admin, now))
	err = u.Authenticate("P@s$W0rD", r)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))

	require.NoError(t, u.Enable(admin, now))
	require.NoError(t, u.Authenticate("P@s$W0rD", r))

	noPassword := newUser(t, r, "")
	err = noPassword.Authenticate("", r)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidCredentials))
}

func TestChangePassword_RequiresCurrent(t *testing.T) {
	r := registry(t)
	u := newUser(t, r, "old")
	next, err := r.Hash("new")
	require.NoError(t, err)

	err = u.ChangePassword("nope", next, r, u.ActorID(), now)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidCredentials))

	require.NoError(t, u.ChangePassword("old", next, r, u.ActorID(), now.Add(time.Hour)))
	require.NoError(t, u.Authenticate("new", r))
	assert.Equal(t, u.ActorID(), u.PasswordChangedBy())
	assert.Equal(t, now.Add(time.Hour), *u.PasswordChangedOn())
}

func TestSignIn(t *testing.T) {
	r := registry(t)
	u := newUser(t, r, "secret")

	err := u.SignIn(ptr("wrong"), r, u.ActorID(), now)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidCredentials))
	assert.Nil(t, u.AuthenticatedOn())

	require.NoError(t, u.SignIn(ptr("secret"), r, u.ActorID(), now.Add(time.Minute)))
	assert.Equal(t, now.Add(time.Minute), *u.AuthenticatedOn())

	require.NoError(t, u.Disable(admin, now))
	err = u.SignIn(nil, r, u.ActorID(), now)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func TestDisableEnable_Idempotent(t *testing.T) {
	u := newUser(t, registry(t), "")
	require.NoError(t, u.Disable(admin, now))
	require.NoError(t, u.Disable(admin, now))
	assert.Equal(t, int64(2), u.Version())
	assert.Equal(t, admin, u.DisabledBy())
	require.NoError(t, u.Enable(admin, now))
	require.NoError(t, u.Enable(admin, now))
	assert.Equal(t, int64(3), u.Version())
	assert.Nil(t, u.DisabledOn())
}

func TestRoles(t *testing.T) {
	u := newUser(t, registry(t), "")
	require.NoError(t, u.AddRole("editor", admin, now))
	require.NoError(t, u.AddRole("editor", admin, now))
	require.NoError(t, u.AddRole("admin", admin, now))
	assert.Equal(t, []string{"admin", "editor"}, u.Roles())
	require.NoError(t, u.RemoveRole("editor", admin, now))
	require.NoError(t, u.RemoveRole("editor", admin, now))
	assert.Equal(t, []string{"admin"}, u.Roles())
	assert.Equal(t, int64(4), u.Version())
}

func TestStageProfile(t *testing.T) {
	u := newUser(t, registry(t), "")
	err := u.StageProfile(Profile{
		FirstName: eventsourcing.Set("John"),
		LastName:  eventsourcing.Set("Doe"),
		Locale:    eventsourcing.Set("en-CA"),
		Birthdate: eventsourcing.Set(time.Date(1990, 5, 17, 15, 30, 0, 0, time.UTC)),
	}, now)
	require.NoError(t, err)
	require.NoError(t, u.SetEmail(ptr("John.Doe@Example.com"), false))
	require.NoError(t, u.Update(admin, now))

	assert.Equal(t, "John Doe", *u.FullName())
	assert.Equal(t, "John.Doe@example.com", u.Email().Address)
	assert.Equal(t, time.Date(1990, 5, 17, 0, 0, 0, 0, time.UTC), *u.Birthdate())

	err = u.StageProfile(Profile{
		Locale:    eventsourcing.Set("not a locale"),
		Website:   eventsourcing.Set("ftp://x"),
		Birthdate: eventsourcing.Set(now.AddDate(1, 0, 0)),
	}, now)
	fields := dErrors.Fields(err)
	require.Len(t, fields, 3)

	require.Error(t, u.SetEmail(ptr("not-an-email"), false))
}

func TestDelete_IsFinal(t *testing.T) {
	r := registry(t)
	u := newUser(t, r, "secret")
	require.NoError(t, u.Delete(admin, now))
	require.NoError(t, u.Delete(admin, now))

	err := u.Authenticate("secret", r)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeAggregateDeleted))
	err = u.AddRole("admin", admin, now)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeAggregateDeleted))
}

func TestReplay(t *testing.T) {
	r := registry(t)
	u := newUser(t, r, "secret")
	require.NoError(t, u.AddRole("admin", admin, now))
	require.NoError(t, u.StageProfile(Profile{Nickname: eventsourcing.Set("jd")}, now))
	require.NoError(t, u.Update(admin, now))

	codec := eventsourcing.NewCodec()
	RegisterEvents(codec)
	var history []eventsourcing.Envelope
	for _, env := range u.Changes() {
		rec, err := codec.Encode(env)
		require.NoError(t, err)
		decoded, err := codec.Decode(rec)
		require.NoError(t, err)
		history = append(history, decoded)
	}
	replayed := &User{}
	require.NoError(t, eventsourcing.Replay(replayed, history))
	assert.Equal(t, u.UserID(), replayed.UserID())
	assert.Equal(t, []string{"admin"}, replayed.Roles())
	assert.Equal(t, "jd", *replayed.Nickname())
	require.NoError(t, replayed.Authenticate("secret", r))
}
