package models

import (
	"time"

	"warden/internal/actor"
	id "warden/pkg/domain"
)

// View is the read model of a one-time password.
type View struct {
	ID                     id.OneTimePasswordID `json:"id"`
	RealmID                *id.RealmID          `json:"realm_id,omitempty"`
	ExpiresOn              *time.Time           `json:"expires_on,omitempty"`
	MaximumAttempts        *int                 `json:"maximum_attempts,omitempty"`
	AttemptCount           int                  `json:"attempt_count"`
	HasValidationSucceeded bool                 `json:"has_validation_succeeded"`
	CustomAttributes       map[string]string    `json:"custom_attributes"`
	actor.Audit

	// Password is the plaintext, only set right after creation.
	Password string `json:"password,omitempty"`
}

func NewView(o *OneTimePassword) *View {
	return &View{
		ID:                     o.otpID,
		RealmID:                o.otpID.RealmID(),
		ExpiresOn:              o.expiresOn,
		MaximumAttempts:        o.maximumAttempts,
		AttemptCount:           o.attemptCount,
		HasValidationSucceeded: o.hasValidationSucceeded,
		CustomAttributes:       o.CustomAttributes(),
		Audit:                  actor.NewAudit(o.Version(), o.CreatedBy(), o.CreatedOn(), o.UpdatedBy(), o.UpdatedOn()),
	}
}
