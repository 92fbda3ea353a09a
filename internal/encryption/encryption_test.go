package encryption

import (
	"bytes"
	"encoding/base64"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "warden/pkg/domain"
	dErrors "warden/pkg/domain-errors"
)

func newManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(bytes.Repeat([]byte{0x42}, 32))
	require.NoError(t, err)
	return m
}

func TestNewManager(t *testing.T) {
	_, err := NewManager([]byte("short"))
	require.Error(t, err)

	_, err = NewManagerFromBase64("not base64!")
	require.Error(t, err)

	m, err := NewManagerFromBase64(base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{1}, 48)))
	require.NoError(t, err)
	assert.NotNil(t, m)
}

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	m := newManager(t)
	realm := id.NewRealmID()

	cases := []struct {
		name  string
		realm *id.RealmID
		value string
	}{
		{"default realm", nil, "s3cr3t"},
		{"scoped realm", &realm, "s3cr3t"},
		{"empty plaintext", &realm, ""},
		{"unicode", nil, "mot de passe été ☃"},
		{"long", &realm, strings.Repeat("x", 4096)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			enc, err := m.Encrypt(tc.value, tc.realm)
			require.NoError(t, err)

			got, err := m.Decrypt(enc, tc.realm)
			require.NoError(t, err)
			assert.Equal(t, tc.value, got)
		})
	}
}

func TestEncrypt_FreshNoncePerCall(t *testing.T) {
	m := newManager(t)
	a, err := m.Encrypt("same", nil)
	require.NoError(t, err)
	b, err := m.Encrypt("same", nil)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)

	raw, err := base64.StdEncoding.DecodeString(string(a))
	require.NoError(t, err)
	assert.Equal(t, byte(nonceLength), raw[0])
}

func TestDecrypt_RealmIsolation(t *testing.T) {
	m := newManager(t)
	r1, r2 := id.NewRealmID(), id.NewRealmID()

	enc, err := m.Encrypt("s3cr3t", &r1)
	require.NoError(t, err)

	_, err = m.Decrypt(enc, &r2)
	require.Error(t, err)
	_, err = m.Decrypt(enc, nil)
	require.Error(t, err)

	other, err := NewManager(bytes.Repeat([]byte{0x43}, 32))
	require.NoError(t, err)
	_, err = other.Decrypt(enc, &r1)
	require.Error(t, err, "a different master key must not decrypt")
}

func TestDecrypt_Malformed(t *testing.T) {
	m := newManager(t)
	valid, err := m.Encrypt("s3cr3t", nil)
	require.NoError(t, err)
	raw, err := base64.StdEncoding.DecodeString(string(valid))
	require.NoError(t, err)

	tampered := append([]byte{}, raw...)
	tampered[len(tampered)-1] ^= 0xff

	cases := map[string]EncryptedString{
		"empty":             "",
		"not base64":        "%%%",
		"zero nonce length": EncryptedString(base64.StdEncoding.EncodeToString([]byte{0, 1, 2, 3})),
		"length beyond":     EncryptedString(base64.StdEncoding.EncodeToString([]byte{200, 1, 2})),
		"no ciphertext":     EncryptedString(base64.StdEncoding.EncodeToString(raw[:1+nonceLength])),
		"short nonce":       EncryptedString(base64.StdEncoding.EncodeToString([]byte{2, 1, 2, 3, 4, 5})),
		"tampered":          EncryptedString(base64.StdEncoding.EncodeToString(tampered)),
	}
	for name, value := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := m.Decrypt(value, nil)
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidCiphertext))
		})
	}
}

func TestManager_ConcurrentUse(t *testing.T) {
	m := newManager(t)
	realm := id.NewRealmID()

	var wg sync.WaitGroup
	errs := make(chan error, 50)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			enc, err := m.Encrypt("value", &realm)
			if err != nil {
				errs <- err
				return
			}
			if _, err := m.Decrypt(enc, &realm); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}
}
