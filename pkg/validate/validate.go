// Package validate accumulates field errors for domain input checks.
//
//	var v validate.Errors
//	v.Required("unique_name", name)
//	v.MaxLength("unique_name", name, 255)
//	return v.Err()
package validate

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/text/language"

	dErrors "warden/pkg/domain-errors"
	"warden/pkg/email"
)

const (
	// MaxLength is the default bound of short text fields.
	MaxLength = 255
	// MaxURLLength bounds URL fields.
	MaxURLLength = 2048
)

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// Errors is an ordered list of field errors. The zero value is ready to use.
type Errors []dErrors.FieldError

func (e *Errors) Add(field, code, message string) {
	*e = append(*e, dErrors.FieldError{Field: field, Code: code, Message: message})
}

// Merge appends the field errors carried by err. Other errors are recorded
// under field as invalid.
func (e *Errors) Merge(field string, err error) {
	if err == nil {
		return
	}
	if fields := dErrors.Fields(err); len(fields) > 0 {
		*e = append(*e, fields...)
		return
	}
	e.Add(field, "invalid", err.Error())
}

// Err returns a validation error, or nil when nothing was recorded.
func (e Errors) Err() error {
	return dErrors.Validation(e...)
}

func (e *Errors) Required(field, value string) bool {
	if strings.TrimSpace(value) == "" {
		e.Add(field, "required", "is required")
		return false
	}
	return true
}

func (e *Errors) MaxLength(field, value string, limit int) bool {
	if len([]rune(value)) > limit {
		e.Add(field, "too_long", fmt.Sprintf("must be at most %d characters", limit))
		return false
	}
	return true
}

// Text checks an optional short text: when set it must be non-blank and at
// most MaxLength characters.
func (e *Errors) Text(field string, value *string) {
	if value == nil {
		return
	}
	if e.Required(field, *value) {
		e.MaxLength(field, *value, MaxLength)
	}
}

// URL checks an optional absolute http(s) URL.
func (e *Errors) URL(field string, value *string) {
	if value == nil {
		return
	}
	if !e.Required(field, *value) || !e.MaxLength(field, *value, MaxURLLength) {
		return
	}
	u, err := url.Parse(*value)
	if err != nil || !u.IsAbs() || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		e.Add(field, "invalid_url", "must be an absolute http or https URL")
	}
}

// Slug checks lowercase letters and digits separated by single hyphens.
func (e *Errors) Slug(field, value string) {
	if !e.Required(field, value) || !e.MaxLength(field, value, MaxLength) {
		return
	}
	if !slugPattern.MatchString(value) {
		e.Add(field, "invalid_slug", "must contain only lowercase letters, digits and hyphens")
	}
}

// AllowedCharacters checks every rune of value against allowed. A nil
// allowed set accepts anything.
func (e *Errors) AllowedCharacters(field, value string, allowed *string) {
	if allowed == nil {
		return
	}
	for _, r := range value {
		if !strings.ContainsRune(*allowed, r) {
			e.Add(field, "invalid_characters", fmt.Sprintf("character %q is not allowed", r))
			return
		}
	}
}

// Email checks an optional address.
func (e *Errors) Email(field string, value *string) {
	if value == nil {
		return
	}
	if _, ok := email.Normalize(*value); !ok {
		e.Add(field, "invalid_email", "must be a valid email address")
	}
}

// Locale checks an optional BCP 47 language tag.
func (e *Errors) Locale(field string, value *string) {
	if value == nil {
		return
	}
	if _, err := language.Parse(*value); err != nil {
		e.Add(field, "invalid_locale", "must be a valid BCP 47 language tag")
	}
}
