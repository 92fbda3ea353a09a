// Package eventsourcing provides the event-sourced aggregate core: sealed
// domain events, an embeddable aggregate root that applies events as they are
// raised, deterministic replay, an event codec and event stores with
// optimistic concurrency.
package eventsourcing

import (
	"strings"
	"time"

	id "warden/pkg/domain"
)

// Event is a domain event payload. Each aggregate declares a closed set of
// events (sealed with an unexported marker method) and applies them with an
// exhaustive type switch.
type Event interface {
	EventType() string
}

// Deletion is implemented by the final event of an aggregate's lifecycle.
// Applying it marks the aggregate deleted.
type Deletion interface {
	Event
	DeletesAggregate()
}

// Envelope is an event stamped with its position in the stream and the actor
// and time of the change.
type Envelope struct {
	StreamID   StreamID
	Version    int64
	ActorID    id.ActorID
	OccurredOn time.Time
	Event      Event
}

// StreamID identifies an aggregate's event stream: "<kind>/<key>".
type StreamID string

const streamSeparator = "/"

// NewStreamID builds the stream id of an aggregate of the given kind.
func NewStreamID(kind, key string) StreamID {
	return StreamID(kind + streamSeparator + key)
}

// Kind returns the aggregate kind encoded in the stream id.
func (s StreamID) Kind() string {
	kind, _, _ := strings.Cut(string(s), streamSeparator)
	return kind
}

// Key returns the aggregate key encoded in the stream id.
func (s StreamID) Key() string {
	_, key, _ := strings.Cut(string(s), streamSeparator)
	return key
}

func (s StreamID) String() string { return string(s) }
