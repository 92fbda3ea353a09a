package eventsourcing

import (
	"regexp"
	"strings"

	dErrors "warden/pkg/domain-errors"
)

const maxAttributeKeyLength = 255

var attributeKeyPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// AttributeChanges records custom attribute edits for the next Updated event.
// A nil value removes the key.
type AttributeChanges map[string]*string

// ValidateAttribute checks a custom attribute key and, when value is not nil,
// its value.
func ValidateAttribute(key string, value *string) error {
	var fields []dErrors.FieldError
	if len(key) > maxAttributeKeyLength || !attributeKeyPattern.MatchString(key) {
		fields = append(fields, dErrors.FieldError{
			Field:   "custom_attributes.key",
			Code:    "invalid_identifier",
			Message: "keys start with a letter or underscore and contain only letters, digits and underscores",
		})
	}
	if value != nil && strings.TrimSpace(*value) == "" {
		fields = append(fields, dErrors.FieldError{Field: "custom_attributes." + key, Code: "required", Message: "value must not be empty"})
	}
	return dErrors.Validation(fields...)
}

// Stage records key=value in changes when it differs from current. It returns
// changes, allocating it on first use.
func (changes AttributeChanges) Stage(current map[string]string, key string, value *string) AttributeChanges {
	if value != nil {
		v := strings.TrimSpace(*value)
		value = &v
	}
	existing, ok := current[key]
	switch {
	case value == nil && !ok:
		delete(changes, key)
		return changes
	case value != nil && ok && existing == *value:
		delete(changes, key)
		return changes
	}
	if changes == nil {
		changes = AttributeChanges{}
	}
	changes[key] = value
	return changes
}

// ApplyTo folds changes into attrs, allocating it when needed.
func (changes AttributeChanges) ApplyTo(attrs map[string]string) map[string]string {
	if len(changes) == 0 {
		return attrs
	}
	if attrs == nil {
		attrs = make(map[string]string, len(changes))
	}
	for k, v := range changes {
		if v == nil {
			delete(attrs, k)
			continue
		}
		attrs[k] = *v
	}
	return attrs
}

// CopyAttributes returns a copy safe to hand out.
func CopyAttributes(attrs map[string]string) map[string]string {
	out := make(map[string]string, len(attrs))
	for k, v := range attrs {
		out[k] = v
	}
	return out
}
