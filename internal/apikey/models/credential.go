package models

import (
	"encoding/base64"
	"strings"

	id "warden/pkg/domain"
	dErrors "warden/pkg/domain-errors"
)

// CredentialPrefix starts every API key credential.
const CredentialPrefix = "pt_"

// FormatCredential renders "pt_<base64url(id)>.<secret>", the value clients
// send in the X-API-Key header.
func FormatCredential(keyID id.APIKeyID, secret string) string {
	return CredentialPrefix + base64.RawURLEncoding.EncodeToString([]byte(keyID.String())) + "." + secret
}

// ParseCredential splits a credential into the key id and the secret.
func ParseCredential(credential string) (id.APIKeyID, string, error) {
	invalid := dErrors.New(dErrors.CodeInvalidCredentials, "malformed api key")
	rest, ok := strings.CutPrefix(strings.TrimSpace(credential), CredentialPrefix)
	if !ok {
		return id.APIKeyID{}, "", invalid
	}
	encodedID, secret, ok := strings.Cut(rest, ".")
	if !ok || encodedID == "" || secret == "" {
		return id.APIKeyID{}, "", invalid
	}
	raw, err := base64.RawURLEncoding.DecodeString(encodedID)
	if err != nil {
		return id.APIKeyID{}, "", invalid
	}
	keyID, err := id.ParseAPIKeyID(string(raw))
	if err != nil {
		return id.APIKeyID{}, "", invalid
	}
	return keyID, secret, nil
}
