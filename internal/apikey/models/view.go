package models

import (
	"time"

	"warden/internal/actor"
	id "warden/pkg/domain"
)

// View is the read model of an API key. It never exposes the secret.
type View struct {
	ID               id.APIKeyID       `json:"id"`
	RealmID          *id.RealmID       `json:"realm_id,omitempty"`
	DisplayName      string            `json:"display_name"`
	Description      *string           `json:"description,omitempty"`
	ExpiresOn        *time.Time        `json:"expires_on,omitempty"`
	AuthenticatedOn  *time.Time        `json:"authenticated_on,omitempty"`
	Roles            []string          `json:"roles"`
	CustomAttributes map[string]string `json:"custom_attributes"`
	actor.Audit

	// XAPIKey is the plaintext credential, only set right after creation.
	XAPIKey string `json:"x_api_key,omitempty"`
}

func NewView(k *APIKey) *View {
	return &View{
		ID:               k.keyID,
		RealmID:          k.keyID.RealmID(),
		DisplayName:      k.displayName,
		Description:      k.description,
		ExpiresOn:        k.expiresOn,
		AuthenticatedOn:  k.authenticatedOn,
		Roles:            k.Roles(),
		CustomAttributes: k.CustomAttributes(),
		Audit:            actor.NewAudit(k.Version(), k.CreatedBy(), k.CreatedOn(), k.UpdatedBy(), k.UpdatedOn()),
	}
}

// Actor is the actor projection of the key.
func (v *View) Actor() actor.Actor {
	return actor.Actor{Type: id.ActorTypeAPIKey, ID: id.ActorIDFromAPIKey(v.ID), DisplayName: v.DisplayName}
}

// MergeAuthenticatedOn keeps the latest of the event-sourced and the recorded
// authentication time.
func (v *View) MergeAuthenticatedOn(recorded time.Time) {
	if recorded.IsZero() {
		return
	}
	if v.AuthenticatedOn == nil || recorded.After(*v.AuthenticatedOn) {
		at := recorded
		v.AuthenticatedOn = &at
	}
}
