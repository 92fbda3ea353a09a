// Package sentinel holds the storage-level facts that event stores and read
// stores report. Services translate them into domain errors; input
// validation failures use pkg/domain-errors directly.
package sentinel

import "errors"

var (
	// ErrNotFound means the stream, view or cache entry does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict means a concurrent writer advanced the stream after it was loaded.
	ErrConflict = errors.New("conflict")
)
