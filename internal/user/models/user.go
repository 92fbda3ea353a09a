// Package models holds the user aggregate and its events.
package models

import (
	"sort"
	"strings"
	"time"

	"warden/internal/eventsourcing"
	"warden/internal/password"
	id "warden/pkg/domain"
	dErrors "warden/pkg/domain-errors"
	"warden/pkg/email"
	"warden/pkg/validate"
)

const Kind = "user"

func StreamID(userID id.UserID) eventsourcing.StreamID {
	return eventsourcing.NewStreamID(Kind, userID.String())
}

// Email is a user's email address and whether it was verified.
type Email struct {
	Address    string `json:"address"`
	IsVerified bool   `json:"is_verified"`
}

// User is an account of a realm.
//
// Invariants:
//   - UniqueName is non-blank, at most 255 characters, drawn from the realm's allowed characters
//   - Password, when set, is an encoded hash "<strategy>:<payload>"
//   - a disabled user cannot authenticate
//   - Roles hold each role at most once
//   - once deleted no further change is accepted
type User struct {
	eventsourcing.Root

	userID            id.UserID
	uniqueName        string
	password          *string
	passwordChangedBy id.ActorID
	passwordChangedOn *time.Time
	isDisabled        bool
	disabledBy        id.ActorID
	disabledOn        *time.Time
	authenticatedOn   *time.Time

	firstName  *string
	middleName *string
	lastName   *string
	nickname   *string
	birthdate  *time.Time
	gender     *string
	locale     *string
	timeZone   *string
	picture    *string
	profile    *string
	website    *string
	email      *Email

	roles            map[string]struct{}
	customAttributes map[string]string

	pending UserUpdated
}

// New creates a user named uniqueName under settings.
func New(userID id.UserID, uniqueName string, settings id.UniqueNameSettings, actorID id.ActorID, now time.Time) (*User, error) {
	uniqueName = strings.TrimSpace(uniqueName)
	if err := validateUniqueName(uniqueName, settings); err != nil {
		return nil, err
	}
	u := &User{Root: eventsourcing.NewRoot(StreamID(userID))}
	if err := u.Raise(u, &UserCreated{UniqueName: uniqueName}, actorID, now); err != nil {
		return nil, err
	}
	return u, nil
}

func validateUniqueName(uniqueName string, settings id.UniqueNameSettings) error {
	var v validate.Errors
	if v.Required("unique_name", uniqueName) && v.MaxLength("unique_name", uniqueName, validate.MaxLength) {
		v.AllowedCharacters("unique_name", uniqueName, settings.AllowedCharacters)
	}
	return v.Err()
}

func (u *User) UserID() id.UserID             { return u.userID }
func (u *User) ActorID() id.ActorID           { return id.ActorIDFromUser(u.userID) }
func (u *User) UniqueName() string            { return u.uniqueName }
func (u *User) HasPassword() bool             { return u.password != nil }
func (u *User) PasswordChangedBy() id.ActorID { return u.passwordChangedBy }
func (u *User) PasswordChangedOn() *time.Time { return u.passwordChangedOn }
func (u *User) IsDisabled() bool              { return u.isDisabled }
func (u *User) DisabledBy() id.ActorID        { return u.disabledBy }
func (u *User) DisabledOn() *time.Time        { return u.disabledOn }
func (u *User) AuthenticatedOn() *time.Time   { return u.authenticatedOn }
func (u *User) FirstName() *string            { return u.firstName }
func (u *User) MiddleName() *string           { return u.middleName }
func (u *User) LastName() *string             { return u.lastName }
func (u *User) Nickname() *string             { return u.nickname }
func (u *User) Birthdate() *time.Time         { return u.birthdate }
func (u *User) Gender() *string               { return u.gender }
func (u *User) Locale() *string               { return u.locale }
func (u *User) TimeZone() *string             { return u.timeZone }
func (u *User) Picture() *string              { return u.picture }
func (u *User) Profile() *string              { return u.profile }
func (u *User) Website() *string              { return u.website }
func (u *User) Email() *Email                 { return u.email }
func (u *User) CustomAttributes() map[string]string {
	return eventsourcing.CopyAttributes(u.customAttributes)
}

// FullName joins the name parts that are set, or returns nil when none is.
func (u *User) FullName() *string {
	parts := make([]string, 0, 3)
	for _, p := range []*string{u.firstName, u.middleName, u.lastName} {
		if p != nil {
			parts = append(parts, *p)
		}
	}
	if len(parts) == 0 {
		return nil
	}
	full := strings.Join(parts, " ")
	return &full
}

// Roles returns the role ids in lexical order.
func (u *User) Roles() []string {
	out := make([]string, 0, len(u.roles))
	for r := range u.roles {
		out = append(out, r)
	}
	sort.Strings(out)
	return out
}

func (u *User) HasRole(roleID string) bool {
	_, ok := u.roles[roleID]
	return ok
}

func (u *User) SetUniqueName(uniqueName string, settings id.UniqueNameSettings, actorID id.ActorID, now time.Time) error {
	uniqueName = strings.TrimSpace(uniqueName)
	if err := validateUniqueName(uniqueName, settings); err != nil {
		return err
	}
	if uniqueName == u.uniqueName {
		return nil
	}
	return u.Raise(u, &UserUniqueNameChanged{UniqueName: uniqueName}, actorID, now)
}

// SetPassword replaces the password without checking the current one.
func (u *User) SetPassword(pw password.Password, actorID id.ActorID, now time.Time) error {
	return u.Raise(u, &UserPasswordChanged{Password: pw.Encode()}, actorID, now)
}

// ChangePassword replaces the password after verifying current.
func (u *User) ChangePassword(current string, pw password.Password, decoder password.Decoder, actorID id.ActorID, now time.Time) error {
	if err := u.verifyPassword(current, decoder); err != nil {
		return err
	}
	return u.SetPassword(pw, actorID, now)
}

// ResetPassword replaces the password at the end of a recovery flow.
func (u *User) ResetPassword(pw password.Password, actorID id.ActorID, now time.Time) error {
	if u.isDisabled {
		return userDisabledError()
	}
	return u.Raise(u, &UserPasswordReset{Password: pw.Encode()}, actorID, now)
}

// Authenticate fails with unauthorized when the user is disabled and with
// invalid credentials when candidate does not match the password.
func (u *User) Authenticate(candidate string, decoder password.Decoder) error {
	if err := u.ensureAlive(); err != nil {
		return err
	}
	if u.isDisabled {
		return userDisabledError()
	}
	return u.verifyPassword(candidate, decoder)
}

func (u *User) verifyPassword(candidate string, decoder password.Decoder) error {
	if u.password == nil {
		return InvalidCredentialsError()
	}
	pw, err := decoder.Decode(*u.password)
	if err != nil {
		return err
	}
	if !pw.IsMatch(candidate) {
		return InvalidCredentialsError()
	}
	return nil
}

// SignIn raises SignedIn. A non-nil candidate is authenticated first; nil is
// used when an external provider already authenticated the user.
func (u *User) SignIn(candidate *string, decoder password.Decoder, actorID id.ActorID, now time.Time) error {
	if candidate != nil {
		if err := u.Authenticate(*candidate, decoder); err != nil {
			return err
		}
	} else if u.isDisabled {
		return userDisabledError()
	}
	return u.Raise(u, &UserSignedIn{}, actorID, now)
}

// Disable raises Disabled unless the user already is.
func (u *User) Disable(actorID id.ActorID, now time.Time) error {
	if err := u.ensureAlive(); err != nil {
		return err
	}
	if u.isDisabled {
		return nil
	}
	return u.Raise(u, &UserDisabled{}, actorID, now)
}

// Enable raises Enabled unless the user already is.
func (u *User) Enable(actorID id.ActorID, now time.Time) error {
	if err := u.ensureAlive(); err != nil {
		return err
	}
	if !u.isDisabled {
		return nil
	}
	return u.Raise(u, &UserEnabled{}, actorID, now)
}

func (u *User) AddRole(roleID string, actorID id.ActorID, now time.Time) error {
	roleID = strings.TrimSpace(roleID)
	if roleID == "" {
		return dErrors.Validation(dErrors.FieldError{Field: "role_id", Code: "required", Message: "is required"})
	}
	if u.HasRole(roleID) {
		return nil
	}
	return u.Raise(u, &UserRoleAdded{RoleID: roleID}, actorID, now)
}

func (u *User) RemoveRole(roleID string, actorID id.ActorID, now time.Time) error {
	if !u.HasRole(roleID) {
		return nil
	}
	return u.Raise(u, &UserRoleRemoved{RoleID: roleID}, actorID, now)
}

func (u *User) Delete(actorID id.ActorID, now time.Time) error {
	if u.IsDeleted() {
		return nil
	}
	return u.Raise(u, &UserDeleted{}, actorID, now)
}

// Update raises the staged profile changes as one UserUpdated event.
func (u *User) Update(actorID id.ActorID, now time.Time) error {
	if u.pending.isEmpty() {
		return nil
	}
	e := u.pending
	if err := u.Raise(u, &e, actorID, now); err != nil {
		return err
	}
	u.pending = UserUpdated{}
	return nil
}

func (u *User) ensureAlive() error {
	if u.IsDeleted() {
		return eventsourcing.AggregateDeletedError(u.ID())
	}
	return nil
}

func userDisabledError() error {
	return dErrors.New(dErrors.CodeUnauthorized, "user is disabled")
}

// InvalidCredentialsError reports a secret that does not match.
func InvalidCredentialsError() error {
	return dErrors.New(dErrors.CodeInvalidCredentials, "invalid credentials")
}

// NormalizeEmail validates address and lowercases its domain.
func NormalizeEmail(address string) (string, error) {
	normalized, ok := email.Normalize(address)
	if !ok {
		return "", dErrors.Validation(dErrors.FieldError{Field: "email", Code: "invalid_email", Message: "must be a valid email address"})
	}
	return normalized, nil
}
