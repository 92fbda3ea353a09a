// Package strings normalizes caller-supplied identifier lists.
package strings

import (
	"strings"
)

// Normalize trims every value and drops blanks and repeats. The first
// occurrence keeps its position.
func Normalize(values []string) []string {
	return normalize(values, strings.TrimSpace)
}

// NormalizeFold is Normalize with case-insensitive comparison. Values are
// returned lowercased.
func NormalizeFold(values []string) []string {
	return normalize(values, func(v string) string {
		return strings.ToLower(strings.TrimSpace(v))
	})
}

func normalize(values []string, key func(string) string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		k := key(v)
		if k == "" {
			continue
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}
