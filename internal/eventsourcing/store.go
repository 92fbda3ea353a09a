package eventsourcing

import "context"

// Stream is one aggregate's slice of an atomic append.
type Stream struct {
	ID StreamID
	// ExpectedVersion is the stream version the writer loaded; 0 for a new stream.
	ExpectedVersion int64
	Records         []Record
}

// EventStore persists event streams.
//
// Append commits every stream of one call atomically: either all records are
// durably appended or none are. A stream whose current version differs from
// ExpectedVersion fails the whole call with ErrConcurrencyConflict.
type EventStore interface {
	// Load returns the records of a stream with version > afterVersion, in version order.
	Load(ctx context.Context, streamID StreamID, afterVersion int64) ([]Record, error)
	Append(ctx context.Context, streams ...Stream) error
	// ReadAll returns up to limit records of the global log with position > afterPosition.
	ReadAll(ctx context.Context, afterPosition int64, limit int) ([]Record, error)
}
