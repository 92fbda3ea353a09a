// Package email validates and normalizes email addresses.
package email

import (
	"net/mail"
	"strings"
)

// MaxLength bounds an address (RFC 5321 path limit).
const MaxLength = 254

// Normalize trims the address and lowercases its domain. It reports false
// when the address is not a bare addr-spec.
func Normalize(address string) (string, bool) {
	address = strings.TrimSpace(address)
	if address == "" || len(address) > MaxLength {
		return "", false
	}
	parsed, err := mail.ParseAddress(address)
	if err != nil || parsed.Name != "" || parsed.Address != address {
		return "", false
	}
	at := strings.LastIndexByte(address, '@')
	if at <= 0 || at == len(address)-1 {
		return "", false
	}
	return address[:at] + "@" + strings.ToLower(address[at+1:]), true
}

// Equal compares two addresses with a case-insensitive domain.
func Equal(a, b string) bool {
	na, okA := Normalize(a)
	nb, okB := Normalize(b)
	return okA && okB && na == nb
}
