package eventsourcing

import (
	"encoding/json"
	"fmt"
	"time"

	id "warden/pkg/domain"
)

// Record is the persisted form of an Envelope.
type Record struct {
	// Position is the global log position, assigned by the store on append.
	Position   int64
	StreamID   StreamID
	Version    int64
	EventType  string
	ActorID    string
	OccurredOn time.Time
	Data       []byte
}

// Codec maps event type names to factories. Register every event at startup;
// the codec is read-only afterwards and safe for concurrent use.
type Codec struct {
	factories map[string]func() Event
}

// NewCodec constructs a codec with no registered events.
func NewCodec() *Codec {
	return &Codec{factories: make(map[string]func() Event)}
}

// Register adds event factories. Each factory must return a pointer to a
// fresh zero value so Decode can unmarshal into it.
func (c *Codec) Register(factories ...func() Event) {
	for _, f := range factories {
		eventType := f().EventType()
		if _, dup := c.factories[eventType]; dup {
			panic(fmt.Sprintf("eventsourcing: event type %q registered twice", eventType))
		}
		c.factories[eventType] = f
	}
}

// Encode converts an envelope to its persisted form.
func (c *Codec) Encode(env Envelope) (Record, error) {
	eventType := env.Event.EventType()
	if _, ok := c.factories[eventType]; !ok {
		return Record{}, UnknownEventTypeError(eventType)
	}
	data, err := json.Marshal(env.Event)
	if err != nil {
		return Record{}, fmt.Errorf("encode %s: %w", eventType, err)
	}
	return Record{
		StreamID:   env.StreamID,
		Version:    env.Version,
		EventType:  eventType,
		ActorID:    env.ActorID.String(),
		OccurredOn: env.OccurredOn,
		Data:       data,
	}, nil
}

// Decode converts a persisted record back to an envelope. Unregistered event
// types fail fast with UnknownEventTypeError.
func (c *Codec) Decode(rec Record) (Envelope, error) {
	f, ok := c.factories[rec.EventType]
	if !ok {
		return Envelope{}, UnknownEventTypeError(rec.EventType)
	}
	e := f()
	if err := json.Unmarshal(rec.Data, e); err != nil {
		return Envelope{}, fmt.Errorf("decode %s v%d of %s: %w", rec.EventType, rec.Version, rec.StreamID, err)
	}
	return Envelope{
		StreamID:   rec.StreamID,
		Version:    rec.Version,
		ActorID:    id.ActorID(rec.ActorID),
		OccurredOn: rec.OccurredOn,
		Event:      e,
	}, nil
}

func (c *Codec) encodeAll(envs []Envelope) ([]Record, error) {
	out := make([]Record, 0, len(envs))
	for _, env := range envs {
		rec, err := c.Encode(env)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func (c *Codec) decodeAll(recs []Record) ([]Envelope, error) {
	out := make([]Envelope, 0, len(recs))
	for _, rec := range recs {
		env, err := c.Decode(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, env)
	}
	return out, nil
}
