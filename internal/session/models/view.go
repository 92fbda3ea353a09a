package models

import (
	"time"

	"warden/internal/actor"
	"warden/internal/query"
	id "warden/pkg/domain"
)

// View is the read model of a session. It never exposes the refresh secret.
type View struct {
	ID               id.SessionID      `json:"id"`
	RealmID          *id.RealmID       `json:"realm_id,omitempty"`
	UserID           id.UserID         `json:"user_id"`
	IsPersistent     bool              `json:"is_persistent"`
	IsActive         bool              `json:"is_active"`
	SignedOutBy      *actor.Actor      `json:"signed_out_by,omitempty"`
	SignedOutOn      *time.Time        `json:"signed_out_on,omitempty"`
	CustomAttributes map[string]string `json:"custom_attributes"`
	actor.Audit

	// RefreshToken is only set right after sign-in or renewal.
	RefreshToken string `json:"refresh_token,omitempty"`

	signedOutByID *id.ActorID
}

func NewView(s *Session) *View {
	return &View{
		ID:               s.sessionID,
		RealmID:          s.sessionID.RealmID(),
		UserID:           s.userID,
		IsPersistent:     s.isPersistent,
		IsActive:         s.IsActive(),
		SignedOutOn:      s.signedOutOn,
		CustomAttributes: s.CustomAttributes(),
		Audit:            actor.NewAudit(s.Version(), s.CreatedBy(), s.CreatedOn(), s.UpdatedBy(), s.UpdatedOn()),
		signedOutByID:    s.signedOutBy,
	}
}

// SignedOutByID returns the actor that signed the session out, if any.
func (v *View) SignedOutByID() (id.ActorID, bool) {
	if v.signedOutByID == nil {
		return "", false
	}
	return *v.signedOutByID, true
}

// SearchPayload narrows a session search.
type SearchPayload struct {
	query.SearchPayload
	UserID       *id.UserID `json:"user_id,omitempty"`
	IsActive     *bool      `json:"is_active,omitempty"`
	IsPersistent *bool      `json:"is_persistent,omitempty"`
}
