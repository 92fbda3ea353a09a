// Package encryption encrypts short secrets with keys derived per realm from
// a single master key.
package encryption

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"sync"

	"golang.org/x/crypto/hkdf"

	id "warden/pkg/domain"
	dErrors "warden/pkg/domain-errors"
)

const (
	// MinMasterKeyLength is the minimum master key size in bytes.
	MinMasterKeyLength = 32
	keyLength          = 32
	nonceLength        = 12
)

// defaultRealmInfo is the HKDF info used for the default realm.
var defaultRealmInfo = []byte("warden/default-realm")

// EncryptedString is Base64 of [nonce length byte][nonce][ciphertext+tag].
type EncryptedString string

func (s EncryptedString) String() string { return string(s) }

// Manager derives one AES-256 key per realm and never uses the master key directly.
type Manager struct {
	prk  []byte
	keys sync.Map // realm info string -> cipher.AEAD
}

func NewManager(masterKey []byte) (*Manager, error) {
	if len(masterKey) < MinMasterKeyLength {
		return nil, fmt.Errorf("encryption master key must be at least %d bytes, got %d", MinMasterKeyLength, len(masterKey))
	}
	return &Manager{prk: hkdf.Extract(sha256.New, masterKey, nil)}, nil
}

// NewManagerFromBase64 decodes a standard Base64 master key.
func NewManagerFromBase64(encoded string) (*Manager, error) {
	key, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode encryption master key: %w", err)
	}
	return NewManager(key)
}

// Encrypt seals plaintext with the key of realm (nil is the default realm).
func (m *Manager) Encrypt(plaintext string, realm *id.RealmID) (EncryptedString, error) {
	aead, err := m.aead(realm)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, nonceLength)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	buf := make([]byte, 0, 1+nonceLength+len(plaintext)+aead.Overhead())
	buf = append(buf, byte(nonceLength))
	buf = append(buf, nonce...)
	buf = aead.Seal(buf, nonce, []byte(plaintext), nil)
	return EncryptedString(base64.StdEncoding.EncodeToString(buf)), nil
}

// Decrypt opens a value produced by Encrypt for the same realm.
func (m *Manager) Decrypt(value EncryptedString, realm *id.RealmID) (string, error) {
	nonce, sealed, err := unframe(value)
	if err != nil {
		return "", err
	}
	aead, err := m.aead(realm)
	if err != nil {
		return "", err
	}
	if len(nonce) != aead.NonceSize() {
		return "", InvalidCiphertextError("unexpected nonce length")
	}
	plaintext, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInvalidCiphertext, "ciphertext authentication failed")
	}
	return string(plaintext), nil
}

func unframe(value EncryptedString) (nonce, sealed []byte, err error) {
	if value == "" {
		return nil, nil, InvalidCiphertextError("empty value")
	}
	raw, err := base64.StdEncoding.DecodeString(string(value))
	if err != nil {
		return nil, nil, InvalidCiphertextError("value is not valid base64")
	}
	if len(raw) < 1 {
		return nil, nil, InvalidCiphertextError("missing nonce length")
	}
	n := int(raw[0])
	if n == 0 || 1+n >= len(raw) {
		return nil, nil, InvalidCiphertextError("nonce length out of range")
	}
	return raw[1 : 1+n], raw[1+n:], nil
}

func (m *Manager) aead(realm *id.RealmID) (cipher.AEAD, error) {
	info := defaultRealmInfo
	if realm != nil && !realm.IsNil() {
		info = realm.Bytes()
	}
	if cached, ok := m.keys.Load(string(info)); ok {
		return cached.(cipher.AEAD), nil
	}

	key := make([]byte, keyLength)
	if _, err := io.ReadFull(hkdf.Expand(sha256.New, m.prk, info), key); err != nil {
		return nil, fmt.Errorf("derive realm key: %w", err)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create gcm: %w", err)
	}
	actual, _ := m.keys.LoadOrStore(string(info), aead)
	return actual.(cipher.AEAD), nil
}

// InvalidCiphertextError reports a malformed encrypted value.
func InvalidCiphertextError(reason string) error {
	return dErrors.New(dErrors.CodeInvalidCiphertext, "invalid ciphertext: "+reason)
}
