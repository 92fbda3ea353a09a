// Package query defines the narrow read-side contracts the services use to
// look up entities by id, by natural key, or by search.
package query

import (
	"fmt"
	"sort"
	"strings"
	"time"

	dErrors "warden/pkg/domain-errors"
	normalize "warden/pkg/platform/strings"
)

// SortDirection orders search results.
type SortDirection string

const (
	Ascending  SortDirection = "asc"
	Descending SortDirection = "desc"
)

type SortOption struct {
	Field     string        `json:"field"`
	Direction SortDirection `json:"direction"`
}

// SearchPayload is the common shape of every search request.
type SearchPayload struct {
	// Terms match any of the values (OR), case-insensitively, as substrings.
	Terms []string     `json:"terms,omitempty"`
	IDs   []string     `json:"ids,omitempty"`
	Sort  []SortOption `json:"sort,omitempty"`
	Skip  int          `json:"skip,omitempty"`
	Limit int          `json:"limit,omitempty"`
}

// Page is one page of search results plus the total match count.
type Page[T any] struct {
	Items []T   `json:"items"`
	Total int64 `json:"total"`
}

// Paginate applies Skip and Limit to items already filtered and sorted.
func Paginate[T any](items []T, payload SearchPayload) Page[T] {
	total := int64(len(items))
	start := min(max(payload.Skip, 0), len(items))
	end := len(items)
	if payload.Limit > 0 && start+payload.Limit < end {
		end = start + payload.Limit
	}
	return Page[T]{Items: items[start:end], Total: total}
}

// MatchesTerms reports whether any of values contains any term. No terms match everything.
func MatchesTerms(terms []string, values ...string) bool {
	if len(terms) == 0 {
		return true
	}
	for _, term := range normalize.NormalizeFold(terms) {
		for _, v := range values {
			if strings.Contains(strings.ToLower(v), term) {
				return true
			}
		}
	}
	return false
}

// SortBy sorts items in place by the first option whose field is known to key.
func SortBy[T any](items []T, options []SortOption, key func(item T, field string) (string, bool)) {
	for _, opt := range options {
		if len(items) == 0 {
			return
		}
		if _, ok := key(items[0], opt.Field); !ok {
			continue
		}
		desc := opt.Direction == Descending
		sort.SliceStable(items, func(i, j int) bool {
			a, _ := key(items[i], opt.Field)
			b, _ := key(items[j], opt.Field)
			if desc {
				return a > b
			}
			return a < b
		})
		return
	}
}

// ResolveUnique reconciles a lookup by id and a lookup by natural key that
// must designate the same entity. Either may be nil. When both resolve to
// different entities the caller's input is ambiguous.
func ResolveUnique[T any](byID, byKey *T, same func(a, b *T) bool) (*T, error) {
	switch {
	case byID == nil:
		return byKey, nil
	case byKey == nil:
		return byID, nil
	case same(byID, byKey):
		return byID, nil
	default:
		return nil, TooManyResultsError(2)
	}
}

func TooManyResultsError(count int) error {
	return dErrors.New(dErrors.CodeTooManyResults, fmt.Sprintf("expected a single result, found %d", count))
}

// MatchesIDs reports whether value is one of ids. No ids match everything.
func MatchesIDs(ids []string, value string) bool {
	if len(ids) == 0 {
		return true
	}
	for _, candidate := range ids {
		if strings.EqualFold(strings.TrimSpace(candidate), value) {
			return true
		}
	}
	return false
}

// TimeKey renders t so that lexical order is chronological order.
func TimeKey(t time.Time) string {
	return t.UTC().Format("20060102150405.000000000")
}
