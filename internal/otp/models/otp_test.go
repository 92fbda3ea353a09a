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

func newOTP(t *testing.T, expiresOn *time.Time, maximumAttempts *int) (*OneTimePassword, *password.Registry) {
	t.Helper()
	r, err := password.NewRegistry(password.Base64Key, password.Base64Strategy{})
	require.NoError(t, err)
	pw, err := r.Hash("123456")
	require.NoError(t, err)
	o, err := New(id.NewOneTimePasswordID(id.NewRealmID()), pw, expiresOn, maximumAttempts, admin, now)
	require.NoError(t, err)
	return o, r
}

func ptr[T any](v T) *T { return &v }

func TestValidate_MaximumAttempts(t *testing.T) {
	o, r := newOTP(t, nil, ptr(3))

	for i := 1; i <= 3; i++ {
		err := o.Validate("000000", r, admin, now)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidCredentials))
		assert.Equal(t, i, o.AttemptCount())
	}
	version := o.Version()

	err := o.Validate("123456", r, admin, now)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeMaximumAttemptsReached))
	assert.Equal(t, 3, o.AttemptCount())
	assert.Equal(t, version, o.Version(), "an exhausted password raises nothing")
	assert.False(t, o.HasValidationSucceeded())
}

func TestValidate_SucceedsOnce(t *testing.T) {
	o, r := newOTP(t, nil, nil)

	require.NoError(t, o.Validate("123456", r, admin, now))
	assert.True(t, o.HasValidationSucceeded())
	assert.Equal(t, 1, o.AttemptCount())

	err := o.Validate("123456", r, admin, now)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeAlreadyValidated))
	assert.Equal(t, int64(2), o.Version())
}

func TestValidate_Expired(t *testing.T) {
	o, r := newOTP(t, ptr(now.Add(5*time.Minute)), nil)
	err := o.Validate("123456", r, admin, now.Add(5*time.Minute))
	assert.True(t, dErrors.HasCode(err, dErrors.CodeOneTimePasswordExpired))
	assert.Zero(t, o.AttemptCount())
}

func TestNew_Validation(t *testing.T) {
	pw := password.Base64Strategy{}
	hashed, err := pw.Hash("x")
	require.NoError(t, err)

	_, err = New(id.NewOneTimePasswordID(id.RealmID{}), hashed, ptr(now), ptr(0), admin, now)
	require.Error(t, err)
	codes := map[string]string{}
	for _, f := range dErrors.Fields(err) {
		codes[f.Field] = f.Code
	}
	assert.Equal(t, "in_past", codes["expires_on"])
	assert.Equal(t, "out_of_range", codes["maximum_attempts"])
}

func TestReplay(t *testing.T) {
	o, r := newOTP(t, ptr(now.Add(time.Hour)), ptr(5))
	require.NoError(t, o.SetCustomAttribute("purpose", "mfa"))
	require.NoError(t, o.Update(admin, now))
	_ = o.Validate("bad", r, admin, now)
	require.NoError(t, o.Validate("123456", r, admin, now))

	codec := eventsourcing.NewCodec()
	RegisterEvents(codec)
	var history []eventsourcing.Envelope
	for _, env := range o.Changes() {
		rec, err := codec.Encode(env)
		require.NoError(t, err)
		decoded, err := codec.Decode(rec)
		require.NoError(t, err)
		history = append(history, decoded)
	}
	replayed := &OneTimePassword{}
	require.NoError(t, eventsourcing.Replay(replayed, history))
	assert.Equal(t, 2, replayed.AttemptCount())
	assert.True(t, replayed.HasValidationSucceeded())
	assert.Equal(t, 5, *replayed.MaximumAttempts())
	assert.Equal(t, "mfa", replayed.CustomAttributes()["purpose"])
	assert.Equal(t, o.OneTimePasswordID(), replayed.OneTimePasswordID())
}
