package models

import (
	"warden/internal/actor"
	id "warden/pkg/domain"
)

// View is the read model of a realm. It never exposes the secret.
type View struct {
	ID                      id.RealmID            `json:"id"`
	UniqueSlug              string                `json:"unique_slug"`
	DisplayName             *string               `json:"display_name,omitempty"`
	Description             *string               `json:"description,omitempty"`
	URL                     *string               `json:"url,omitempty"`
	UniqueNameSettings      id.UniqueNameSettings `json:"unique_name_settings"`
	PasswordSettings        id.PasswordSettings   `json:"password_settings"`
	RequireUniqueEmail      bool                  `json:"require_unique_email"`
	RequireConfirmedAccount bool                  `json:"require_confirmed_account"`
	CustomAttributes        map[string]string     `json:"custom_attributes"`
	actor.Audit
}

func NewView(r *Realm) *View {
	return &View{
		ID:                      r.realmID,
		UniqueSlug:              r.uniqueSlug,
		DisplayName:             r.displayName,
		Description:             r.description,
		URL:                     r.url,
		UniqueNameSettings:      r.uniqueNameSettings,
		PasswordSettings:        r.passwordSettings,
		RequireUniqueEmail:      r.requireUniqueEmail,
		RequireConfirmedAccount: r.requireConfirmedAccount,
		CustomAttributes:        r.CustomAttributes(),
		Audit:                   actor.NewAudit(r.Version(), r.CreatedBy(), r.CreatedOn(), r.UpdatedBy(), r.UpdatedOn()),
	}
}

// Settings returns the policy users of this realm are held to.
func (r *Realm) Settings() id.RealmSettings {
	return id.RealmSettings{
		UniqueNameSettings:      r.uniqueNameSettings,
		PasswordSettings:        r.passwordSettings,
		RequireUniqueEmail:      r.requireUniqueEmail,
		RequireConfirmedAccount: r.requireConfirmedAccount,
	}
}
