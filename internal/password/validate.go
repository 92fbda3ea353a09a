package password

import (
	"fmt"
	"unicode"

	id "warden/pkg/domain"
	dErrors "warden/pkg/domain-errors"
)

// Validate checks plaintext against a password policy. Every failed rule is
// reported as a field error on field.
func Validate(field, plaintext string, settings id.PasswordSettings) error {
	if plaintext == "" {
		return dErrors.Validation(dErrors.FieldError{Field: field, Code: "required", Message: "password is required"})
	}

	var fields []dErrors.FieldError
	add := func(code, msg string) {
		fields = append(fields, dErrors.FieldError{Field: field, Code: code, Message: msg})
	}

	runes := []rune(plaintext)
	if len(runes) < settings.RequiredLength {
		add("too_short", fmt.Sprintf("password must be at least %d characters", settings.RequiredLength))
	}

	unique := make(map[rune]struct{}, len(runes))
	var lower, upper, digit, other bool
	for _, r := range runes {
		unique[r] = struct{}{}
		switch {
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		case !unicode.IsLetter(r):
			other = true
		}
	}
	if len(unique) < settings.RequiredUniqueChars {
		add("requires_unique_chars", fmt.Sprintf("password must contain at least %d unique characters", settings.RequiredUniqueChars))
	}
	if settings.RequireNonAlphanumeric && !other {
		add("requires_non_alphanumeric", "password must contain a non-alphanumeric character")
	}
	if settings.RequireLowercase && !lower {
		add("requires_lower", "password must contain a lowercase letter")
	}
	if settings.RequireUppercase && !upper {
		add("requires_upper", "password must contain an uppercase letter")
	}
	if settings.RequireDigit && !digit {
		add("requires_digit", "password must contain a digit")
	}
	return dErrors.Validation(fields...)
}

// ValidateSettings checks that a policy is internally consistent.
func ValidateSettings(field string, s id.PasswordSettings) error {
	var fields []dErrors.FieldError
	if s.RequiredLength < 1 {
		fields = append(fields, dErrors.FieldError{Field: field + ".required_length", Code: "out_of_range", Message: "must be at least 1"})
	}
	if s.RequiredUniqueChars < 0 || s.RequiredUniqueChars > s.RequiredLength {
		fields = append(fields, dErrors.FieldError{Field: field + ".required_unique_chars", Code: "out_of_range", Message: "must be between 0 and the required length"})
	}
	if s.HashingStrategy == "" {
		fields = append(fields, dErrors.FieldError{Field: field + ".hashing_strategy", Code: "required", Message: "hashing strategy is required"})
	}
	return dErrors.Validation(fields...)
}
