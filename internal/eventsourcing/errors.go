package eventsourcing

import (
	"errors"
	"fmt"

	dErrors "warden/pkg/domain-errors"
	"warden/pkg/platform/sentinel"
)

// ErrConcurrencyConflict is returned by Append when a stream advanced past the
// expected version. Callers reload the aggregate and recompute; they never
// re-save the same buffer.
var ErrConcurrencyConflict = fmt.Errorf("concurrency conflict: %w", sentinel.ErrConflict)

// ErrInvalidStream is returned when replayed envelopes are out of order or
// belong to another stream.
var ErrInvalidStream = errors.New("invalid event stream")

// UnknownEventTypeError reports an event type with no registered factory or
// apply branch. Schema drift is fatal and never skipped.
func UnknownEventTypeError(eventType string) error {
	return dErrors.New(dErrors.CodeUnknownEventType, fmt.Sprintf("unknown event type %q", eventType))
}

// AggregateDeletedError reports a change attempted on a deleted aggregate.
func AggregateDeletedError(streamID StreamID) error {
	return dErrors.New(dErrors.CodeAggregateDeleted, fmt.Sprintf("aggregate %s is deleted", streamID))
}
