package models

import (
	"time"

	"warden/internal/actor"
	id "warden/pkg/domain"
)

// View is the read model of a user. It never exposes the password hash.
type View struct {
	ID                id.UserID         `json:"id"`
	RealmID           *id.RealmID       `json:"realm_id,omitempty"`
	UniqueName        string            `json:"unique_name"`
	HasPassword       bool              `json:"has_password"`
	PasswordChangedBy *actor.Actor      `json:"password_changed_by,omitempty"`
	PasswordChangedOn *time.Time        `json:"password_changed_on,omitempty"`
	IsDisabled        bool              `json:"is_disabled"`
	DisabledOn        *time.Time        `json:"disabled_on,omitempty"`
	AuthenticatedOn   *time.Time        `json:"authenticated_on,omitempty"`
	FirstName         *string           `json:"first_name,omitempty"`
	MiddleName        *string           `json:"middle_name,omitempty"`
	LastName          *string           `json:"last_name,omitempty"`
	FullName          *string           `json:"full_name,omitempty"`
	Nickname          *string           `json:"nickname,omitempty"`
	Birthdate         *time.Time        `json:"birthdate,omitempty"`
	Gender            *string           `json:"gender,omitempty"`
	Locale            *string           `json:"locale,omitempty"`
	TimeZone          *string           `json:"time_zone,omitempty"`
	Picture           *string           `json:"picture,omitempty"`
	Profile           *string           `json:"profile,omitempty"`
	Website           *string           `json:"website,omitempty"`
	Email             *Email            `json:"email,omitempty"`
	Roles             []string          `json:"roles"`
	CustomAttributes  map[string]string `json:"custom_attributes"`
	actor.Audit

	passwordChangedByID id.ActorID
}

func NewView(u *User) *View {
	v := &View{
		ID:                  u.userID,
		RealmID:             u.userID.RealmID(),
		UniqueName:          u.uniqueName,
		HasPassword:         u.password != nil,
		PasswordChangedOn:   u.passwordChangedOn,
		IsDisabled:          u.isDisabled,
		DisabledOn:          u.disabledOn,
		AuthenticatedOn:     u.authenticatedOn,
		FirstName:           u.firstName,
		MiddleName:          u.middleName,
		LastName:            u.lastName,
		FullName:            u.FullName(),
		Nickname:            u.nickname,
		Birthdate:           u.birthdate,
		Gender:              u.gender,
		Locale:              u.locale,
		TimeZone:            u.timeZone,
		Picture:             u.picture,
		Profile:             u.profile,
		Website:             u.website,
		Roles:               u.Roles(),
		CustomAttributes:    u.CustomAttributes(),
		Audit:               actor.NewAudit(u.Version(), u.CreatedBy(), u.CreatedOn(), u.UpdatedBy(), u.UpdatedOn()),
		passwordChangedByID: u.passwordChangedBy,
	}
	if u.email != nil {
		e := *u.email
		v.Email = &e
	}
	return v
}

// PasswordChangedByID is the unresolved actor behind the last password change.
func (v *View) PasswordChangedByID() (id.ActorID, bool) {
	return v.passwordChangedByID, v.PasswordChangedOn != nil
}

// Actor is the actor projection of the user.
func (v *View) Actor() actor.Actor {
	a := actor.Actor{
		Type:        id.ActorTypeUser,
		ID:          id.ActorIDFromUser(v.ID),
		DisplayName: v.UniqueName,
		PictureURL:  v.Picture,
	}
	if v.FullName != nil {
		a.DisplayName = *v.FullName
	}
	if v.Email != nil {
		address := v.Email.Address
		a.EmailAddress = &address
	}
	return a
}
