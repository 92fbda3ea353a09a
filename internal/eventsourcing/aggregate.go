package eventsourcing

import (
	"fmt"
	"time"

	id "warden/pkg/domain"
)

// Aggregate is implemented by every event-sourced entity. Embedding Root
// provides AggregateRoot; the aggregate supplies Apply, which mutates only
// in-memory fields and is called exclusively by Root.Raise and Replay.
type Aggregate interface {
	AggregateRoot() *Root
	Apply(env Envelope) error
}

// Root carries the identity, version and uncommitted events of an aggregate.
//
// Invariants:
//   - version equals the number of applied events
//   - state changes only through Apply, driven by Raise or Replay
//   - once deleted, Raise fails with AggregateDeletedError
type Root struct {
	id        StreamID
	version   int64
	deleted   bool
	createdBy id.ActorID
	createdOn time.Time
	updatedBy id.ActorID
	updatedOn time.Time
	changes   []Envelope
}

// NewRoot returns a root for a new stream.
func NewRoot(streamID StreamID) Root {
	return Root{id: streamID}
}

func (r *Root) AggregateRoot() *Root { return r }

func (r *Root) ID() StreamID { return r.id }

// Version is the number of events applied so far, committed or not.
func (r *Root) Version() int64 { return r.version }

// CommittedVersion is the version the event store is expected to hold.
func (r *Root) CommittedVersion() int64 { return r.version - int64(len(r.changes)) }

func (r *Root) IsDeleted() bool { return r.deleted }

func (r *Root) CreatedBy() id.ActorID { return r.createdBy }

func (r *Root) CreatedOn() time.Time { return r.createdOn }

func (r *Root) UpdatedBy() id.ActorID { return r.updatedBy }

func (r *Root) UpdatedOn() time.Time { return r.updatedOn }

// Changes returns the uncommitted events in raise order.
func (r *Root) Changes() []Envelope {
	out := make([]Envelope, len(r.changes))
	copy(out, r.changes)
	return out
}

func (r *Root) HasChanges() bool { return len(r.changes) > 0 }

// ClearChanges empties the uncommitted buffer after a successful save.
func (r *Root) ClearChanges() { r.changes = nil }

// Raise stamps e with the next version, the actor and the time, applies it to
// agg and buffers it for persistence. agg must embed r.
func (r *Root) Raise(agg Aggregate, e Event, actorID id.ActorID, now time.Time) error {
	if r.deleted {
		return AggregateDeletedError(r.id)
	}
	env := Envelope{
		StreamID:   r.id,
		Version:    r.version + 1,
		ActorID:    actorID,
		OccurredOn: now.UTC(),
		Event:      e,
	}
	if err := r.apply(agg, env); err != nil {
		return err
	}
	r.changes = append(r.changes, env)
	return nil
}

func (r *Root) apply(agg Aggregate, env Envelope) error {
	if err := agg.Apply(env); err != nil {
		return err
	}
	r.version = env.Version
	if r.version == 1 {
		r.createdBy = env.ActorID
		r.createdOn = env.OccurredOn
	}
	r.updatedBy = env.ActorID
	r.updatedOn = env.OccurredOn
	if _, ok := env.Event.(Deletion); ok {
		r.deleted = true
	}
	return nil
}

// Replay folds history into agg. Envelopes must belong to one stream and carry
// contiguous versions starting right after agg's current version. Replay does
// no I/O and buffers no events.
func Replay(agg Aggregate, history []Envelope) error {
	r := agg.AggregateRoot()
	for _, env := range history {
		if r.id == "" {
			r.id = env.StreamID
		}
		if env.StreamID != r.id {
			return fmt.Errorf("%w: event of %s replayed into %s", ErrInvalidStream, env.StreamID, r.id)
		}
		if env.Version != r.version+1 {
			return fmt.Errorf("%w: %s expected version %d, got %d", ErrInvalidStream, r.id, r.version+1, env.Version)
		}
		if r.deleted {
			return AggregateDeletedError(r.id)
		}
		if err := r.apply(agg, env); err != nil {
			return err
		}
	}
	return nil
}
