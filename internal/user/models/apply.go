package models

import (
	"warden/internal/eventsourcing"
	id "warden/pkg/domain"
)

func (u *User) Apply(env eventsourcing.Envelope) error {
	e, ok := env.Event.(Event)
	if !ok {
		return eventsourcing.UnknownEventTypeError(env.Event.EventType())
	}
	switch e := e.(type) {
	case *UserCreated:
		userID, err := id.ParseUserID(env.StreamID.Key())
		if err != nil {
			return err
		}
		u.userID = userID
		u.uniqueName = e.UniqueName
	case *UserUniqueNameChanged:
		u.uniqueName = e.UniqueName
	case *UserPasswordChanged:
		u.setPassword(e.Password, env)
	case *UserPasswordReset:
		u.setPassword(e.Password, env)
	case *UserUpdated:
		e.FirstName.ApplyTo(&u.firstName)
		e.MiddleName.ApplyTo(&u.middleName)
		e.LastName.ApplyTo(&u.lastName)
		e.Nickname.ApplyTo(&u.nickname)
		e.Birthdate.ApplyTo(&u.birthdate)
		e.Gender.ApplyTo(&u.gender)
		e.Locale.ApplyTo(&u.locale)
		e.TimeZone.ApplyTo(&u.timeZone)
		e.Picture.ApplyTo(&u.picture)
		e.Profile.ApplyTo(&u.profile)
		e.Website.ApplyTo(&u.website)
		e.Email.ApplyTo(&u.email)
		u.customAttributes = e.CustomAttributes.ApplyTo(u.customAttributes)
	case *UserDisabled:
		at := env.OccurredOn
		u.isDisabled = true
		u.disabledBy = env.ActorID
		u.disabledOn = &at
	case *UserEnabled:
		u.isDisabled = false
		u.disabledBy = id.SystemActorID
		u.disabledOn = nil
	case *UserSignedIn:
		at := env.OccurredOn
		u.authenticatedOn = &at
	case *UserRoleAdded:
		if u.roles == nil {
			u.roles = make(map[string]struct{})
		}
		u.roles[e.RoleID] = struct{}{}
	case *UserRoleRemoved:
		delete(u.roles, e.RoleID)
	case *UserDeleted:
	default:
		return eventsourcing.UnknownEventTypeError(env.Event.EventType())
	}
	return nil
}

func (u *User) setPassword(encoded string, env eventsourcing.Envelope) {
	at := env.OccurredOn
	u.password = &encoded
	u.passwordChangedBy = env.ActorID
	u.passwordChangedOn = &at
}
