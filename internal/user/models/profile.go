package models

import (
	"strings"
	"time"

	"warden/internal/eventsourcing"
	"warden/pkg/validate"
)

// Profile is a partial profile update. Nil fields are left unchanged; a
// change with a nil value clears the field.
type Profile struct {
	FirstName  *eventsourcing.Change[string]
	MiddleName *eventsourcing.Change[string]
	LastName   *eventsourcing.Change[string]
	Nickname   *eventsourcing.Change[string]
	Birthdate  *eventsourcing.Change[time.Time]
	Gender     *eventsourcing.Change[string]
	Locale     *eventsourcing.Change[string]
	TimeZone   *eventsourcing.Change[string]
	Picture    *eventsourcing.Change[string]
	Profile    *eventsourcing.Change[string]
	Website    *eventsourcing.Change[string]
}

// StageProfile validates p and stages every field that differs from the
// current state for the next Update.
func (u *User) StageProfile(p Profile, now time.Time) error {
	var v validate.Errors
	text := func(field string, c *eventsourcing.Change[string], current *string, dst **eventsourcing.Change[string], check func(string, *string)) {
		if c == nil {
			return
		}
		value := trim(c.Value)
		check(field, value)
		if !equal(current, value) {
			*dst = eventsourcing.SetOrClear(value)
		}
	}
	text("first_name", p.FirstName, u.firstName, &u.pending.FirstName, v.Text)
	text("middle_name", p.MiddleName, u.middleName, &u.pending.MiddleName, v.Text)
	text("last_name", p.LastName, u.lastName, &u.pending.LastName, v.Text)
	text("nickname", p.Nickname, u.nickname, &u.pending.Nickname, v.Text)
	text("gender", p.Gender, u.gender, &u.pending.Gender, v.Text)
	text("locale", p.Locale, u.locale, &u.pending.Locale, v.Locale)
	text("time_zone", p.TimeZone, u.timeZone, &u.pending.TimeZone, v.Text)
	text("picture", p.Picture, u.picture, &u.pending.Picture, v.URL)
	text("profile", p.Profile, u.profile, &u.pending.Profile, v.URL)
	text("website", p.Website, u.website, &u.pending.Website, v.URL)

	if p.Birthdate != nil {
		value := p.Birthdate.Value
		if value != nil {
			d := time.Date(value.Year(), value.Month(), value.Day(), 0, 0, 0, 0, time.UTC)
			if d.After(now) {
				v.Add("birthdate", "in_future", "must be in the past")
			}
			value = &d
		}
		if !equalTime(u.birthdate, value) {
			u.pending.Birthdate = eventsourcing.SetOrClear(value)
		}
	}
	return v.Err()
}

// SetEmail stages an email change. A nil address clears the email. Setting
// a different address resets verification.
func (u *User) SetEmail(address *string, isVerified bool) error {
	var next *Email
	if value := trim(address); value != nil {
		normalized, err := NormalizeEmail(*value)
		if err != nil {
			return err
		}
		next = &Email{Address: normalized, IsVerified: isVerified}
	}
	if equal(u.email, next) {
		return nil
	}
	u.pending.Email = eventsourcing.SetOrClear(next)
	return nil
}

func (u *User) SetCustomAttribute(key, value string) error {
	if err := eventsourcing.ValidateAttribute(key, &value); err != nil {
		return err
	}
	u.pending.CustomAttributes = u.pending.CustomAttributes.Stage(u.customAttributes, key, &value)
	return nil
}

func (u *User) RemoveCustomAttribute(key string) {
	u.pending.CustomAttributes = u.pending.CustomAttributes.Stage(u.customAttributes, key, nil)
}

func trim(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

func equal[T comparable](a, b *T) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func equalTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
