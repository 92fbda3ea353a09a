package password

import (
	"crypto/subtle"
	"encoding/base64"
)

const Base64Key = "BASE64"

// Base64Strategy stores the secret Base64-encoded. It offers no protection and
// is meant for non-sensitive material and tests.
type Base64Strategy struct{}

func (Base64Strategy) Key() string { return Base64Key }

func (Base64Strategy) Hash(plaintext string) (Password, error) {
	return base64Password(plaintext), nil
}

func (Base64Strategy) Decode(payload string) (Password, error) {
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, malformed(Base64Key, "invalid base64")
	}
	return base64Password(raw), nil
}

type base64Password string

func (p base64Password) Encode() string {
	return encode(Base64Key, base64.StdEncoding.EncodeToString([]byte(p)))
}

func (p base64Password) IsMatch(candidate string) bool {
	return subtle.ConstantTimeCompare([]byte(p), []byte(candidate)) == 1
}
