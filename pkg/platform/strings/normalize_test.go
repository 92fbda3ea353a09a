package strings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name     string
		input    []string
		expected []string
	}{
		{name: "nil", input: nil, expected: nil},
		{name: "only blanks", input: []string{"", "  "}, expected: []string{}},
		{name: "trims", input: []string{" jti-1 ", "jti-2"}, expected: []string{"jti-1", "jti-2"}},
		{name: "keeps first occurrence", input: []string{"b", "a", "b", " a"}, expected: []string{"b", "a"}},
		{name: "case sensitive", input: []string{"Jti", "jti"}, expected: []string{"Jti", "jti"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Normalize(tt.input))
		})
	}
}

func TestNormalizeFold(t *testing.T) {
	assert.Equal(t, []string{"admin", "viewer"}, NormalizeFold([]string{" Admin", "viewer", "ADMIN", ""}))
	assert.Nil(t, NormalizeFold(nil))
}
