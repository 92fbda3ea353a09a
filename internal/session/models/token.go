package models

import (
	"encoding/base64"
	"strings"

	id "warden/pkg/domain"
	dErrors "warden/pkg/domain-errors"
)

// FormatRefreshToken renders "<base64url(id)>.<secret>".
func FormatRefreshToken(sessionID id.SessionID, secret string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(sessionID.String())) + "." + secret
}

// ParseRefreshToken splits a refresh token into the session id and the secret.
func ParseRefreshToken(token string) (id.SessionID, string, error) {
	invalid := dErrors.New(dErrors.CodeInvalidCredentials, "malformed refresh token")
	encodedID, secret, ok := strings.Cut(strings.TrimSpace(token), ".")
	if !ok || encodedID == "" || secret == "" {
		return id.SessionID{}, "", invalid
	}
	raw, err := base64.RawURLEncoding.DecodeString(encodedID)
	if err != nil {
		return id.SessionID{}, "", invalid
	}
	sessionID, err := id.ParseSessionID(string(raw))
	if err != nil {
		return id.SessionID{}, "", invalid
	}
	return sessionID, secret, nil
}
