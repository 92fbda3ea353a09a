// Package domainerrors defines coded errors returned across service boundaries.
//
// Stores return infrastructure facts (see pkg/platform/sentinel); services
// translate those into coded errors so callers can branch on Code without
// string matching.
package domainerrors

import (
	"errors"
	"fmt"
	"strings"
)

// Code classifies a domain error.
type Code string

const (
	CodeValidation              Code = "validation"
	CodeInvalidInput            Code = "invalid_input"
	CodeInvariantViolation      Code = "invariant_violation"
	CodeNotFound                Code = "not_found"
	CodeConflict                Code = "conflict"
	CodeAggregateDeleted        Code = "aggregate_deleted"
	CodeUnknownEventType        Code = "unknown_event_type"
	CodeUnknownPasswordStrategy Code = "unknown_password_strategy"
	CodeInvalidCiphertext       Code = "invalid_ciphertext"
	CodeInvalidCredentials      Code = "invalid_credentials"
	CodeOneTimePasswordExpired  Code = "one_time_password_expired"
	CodeMaximumAttemptsReached  Code = "maximum_attempts_reached"
	CodeAlreadyValidated        Code = "already_validated"
	CodeTooManyResults          Code = "too_many_results"
	CodeUnauthorized            Code = "unauthorized"
	CodeInternal                Code = "internal"
)

// FieldError describes one rejected input field.
type FieldError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (f FieldError) String() string {
	return f.Field + ": " + f.Message
}

// Error is a coded domain error. Err is the optional underlying cause.
type Error struct {
	Code    Code
	Message string
	Fields  []FieldError
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if len(e.Fields) > 0 {
		parts := make([]string, 0, len(e.Fields))
		for _, f := range e.Fields {
			parts = append(parts, f.String())
		}
		msg = fmt.Sprintf("%s: %s", msg, strings.Join(parts, "; "))
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a coded error.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, Err: err}
}

// Validation builds a validation error from field errors. It returns nil when
// no field errors are given so callers can compose checks by concatenation:
//
//	errs := append(validateSlug(slug), validateURL(url)...)
//	if err := dErrors.Validation(errs...); err != nil { ... }
func Validation(fields ...FieldError) error {
	if len(fields) == 0 {
		return nil
	}
	return &Error{Code: CodeValidation, Message: "validation failed", Fields: fields}
}

// HasCode reports whether any error in err's chain carries code.
func HasCode(err error, code Code) bool {
	var e *Error
	for err != nil {
		if !errors.As(err, &e) {
			return false
		}
		if e.Code == code {
			return true
		}
		err = e.Err
	}
	return false
}

// CodeOf returns the outermost code in err's chain, or CodeInternal.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// Fields returns the field errors of the outermost validation error in err's chain.
func Fields(err error) []FieldError {
	var e *Error
	if errors.As(err, &e) {
		return e.Fields
	}
	return nil
}
