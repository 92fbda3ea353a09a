// Package domain holds typed identifiers shared by every bounded context.
//
// Realm-scoped identifiers embed the realm they belong to. A nil realm is the
// default (system) realm, so two entities with the same natural key in
// different realms can never share an identifier.
package domain

import (
	"strings"

	"github.com/google/uuid"

	dErrors "warden/pkg/domain-errors"
)

// maxIDLength bounds the textual form of a scoped id (two UUIDs and a separator).
const maxIDLength = 73

// scopeSeparator joins the realm and entity parts of a scoped id.
const scopeSeparator = ":"

// RealmID identifies a realm (tenant).
type RealmID uuid.UUID

func NewRealmID() RealmID { return RealmID(uuid.New()) }

func (id RealmID) String() string { return uuid.UUID(id).String() }

func (id RealmID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

// Bytes returns the raw 16 identifier bytes.
func (id RealmID) Bytes() []byte {
	u := uuid.UUID(id)
	return u[:]
}

// Ptr returns nil for the default realm, a pointer to the id otherwise.
func (id RealmID) Ptr() *RealmID {
	if id.IsNil() {
		return nil
	}
	return &id
}

// ParseRealmID parses a realm id. The nil UUID is rejected.
func ParseRealmID(s string) (RealmID, error) {
	u, err := parseUUID(s)
	if err != nil {
		return RealmID{}, err
	}
	return RealmID(u), nil
}

// ScopedID is the shared shape of realm-scoped identifiers.
type ScopedID struct {
	Realm  RealmID
	Entity uuid.UUID
}

func newScopedID(realm RealmID) ScopedID {
	return ScopedID{Realm: realm, Entity: uuid.New()}
}

// IsNil reports whether the entity part is unset.
func (s ScopedID) IsNil() bool { return s.Entity == uuid.Nil }

// RealmID returns the owning realm, or nil for the default realm.
func (s ScopedID) RealmID() *RealmID { return s.Realm.Ptr() }

// String renders "<realm>:<entity>", or "<entity>" in the default realm.
func (s ScopedID) String() string {
	if s.Realm.IsNil() {
		return s.Entity.String()
	}
	return s.Realm.String() + scopeSeparator + s.Entity.String()
}

func parseScopedID(s string) (ScopedID, error) {
	if len(s) > maxIDLength {
		return ScopedID{}, dErrors.New(dErrors.CodeInvalidInput, "invalid ID length")
	}
	realmPart, entityPart, scoped := strings.Cut(s, scopeSeparator)
	if !scoped {
		entity, err := parseUUID(s)
		if err != nil {
			return ScopedID{}, err
		}
		return ScopedID{Entity: entity}, nil
	}
	realm, err := ParseRealmID(realmPart)
	if err != nil {
		return ScopedID{}, err
	}
	entity, err := parseUUID(entityPart)
	if err != nil {
		return ScopedID{}, err
	}
	return ScopedID{Realm: realm, Entity: entity}, nil
}

func parseUUID(s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "ID is required")
	}
	if len(s) > 36 {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid ID length")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid ID format")
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "ID cannot be nil")
	}
	return u, nil
}

// UserID identifies a user within a realm.
type UserID struct{ ScopedID }

func NewUserID(realm RealmID) UserID { return UserID{newScopedID(realm)} }

func ParseUserID(s string) (UserID, error) {
	id, err := parseScopedID(s)
	return UserID{id}, err
}

// APIKeyID identifies an API key within a realm.
type APIKeyID struct{ ScopedID }

func NewAPIKeyID(realm RealmID) APIKeyID { return APIKeyID{newScopedID(realm)} }

func ParseAPIKeyID(s string) (APIKeyID, error) {
	id, err := parseScopedID(s)
	return APIKeyID{id}, err
}

// SessionID identifies a session within a realm.
type SessionID struct{ ScopedID }

func NewSessionID(realm RealmID) SessionID { return SessionID{newScopedID(realm)} }

func ParseSessionID(s string) (SessionID, error) {
	id, err := parseScopedID(s)
	return SessionID{id}, err
}

// OneTimePasswordID identifies a one-time password within a realm.
type OneTimePasswordID struct{ ScopedID }

func NewOneTimePasswordID(realm RealmID) OneTimePasswordID {
	return OneTimePasswordID{newScopedID(realm)}
}

func ParseOneTimePasswordID(s string) (OneTimePasswordID, error) {
	id, err := parseScopedID(s)
	return OneTimePasswordID{id}, err
}
