package eventsourcing

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "warden/pkg/domain"
	dErrors "warden/pkg/domain-errors"
)

// ledger is a minimal aggregate used to exercise the framework.
type ledger struct {
	Root
	name    string
	note    *string
	entries int
}

type ledgerEvent interface {
	Event
	isLedgerEvent()
}

type ledgerOpened struct {
	Name string `json:"name"`
}

type ledgerUpdated struct {
	Name *string         `json:"name,omitempty"`
	Note *Change[string] `json:"note,omitempty"`
}

type ledgerEntryAdded struct{}

type ledgerClosed struct{}

type ledgerUnhandled struct{}

func (*ledgerOpened) EventType() string     { return "ledger.opened" }
func (*ledgerUpdated) EventType() string    { return "ledger.updated" }
func (*ledgerEntryAdded) EventType() string { return "ledger.entry_added" }
func (*ledgerClosed) EventType() string     { return "ledger.closed" }
func (*ledgerUnhandled) EventType() string  { return "ledger.unhandled" }
func (*ledgerClosed) DeletesAggregate()     {}

func (*ledgerOpened) isLedgerEvent()     {}
func (*ledgerUpdated) isLedgerEvent()    {}
func (*ledgerEntryAdded) isLedgerEvent() {}
func (*ledgerClosed) isLedgerEvent()     {}
func (*ledgerUnhandled) isLedgerEvent()  {}

func ledgerStream(key string) StreamID { return NewStreamID("ledger", key) }

func openLedger(name string, now time.Time) (*ledger, error) {
	l := &ledger{Root: NewRoot(ledgerStream(uuid.NewString()))}
	if err := l.Raise(l, &ledgerOpened{Name: name}, id.SystemActorID, now); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *ledger) Apply(env Envelope) error {
	e, ok := env.Event.(ledgerEvent)
	if !ok {
		return UnknownEventTypeError(env.Event.EventType())
	}
	switch e := e.(type) {
	case *ledgerOpened:
		l.name = e.Name
	case *ledgerUpdated:
		if e.Name != nil {
			l.name = *e.Name
		}
		e.Note.ApplyTo(&l.note)
	case *ledgerEntryAdded:
		l.entries++
	case *ledgerClosed:
	default:
		return UnknownEventTypeError(e.EventType())
	}
	return nil
}

func newLedgerCodec() *Codec {
	c := NewCodec()
	c.Register(
		func() Event { return &ledgerOpened{} },
		func() Event { return &ledgerUpdated{} },
		func() Event { return &ledgerEntryAdded{} },
		func() Event { return &ledgerClosed{} },
	)
	return c
}

func TestRaise_AppliesImmediatelyAndBuffers(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	l, err := openLedger("main", now)
	require.NoError(t, err)

	actor := id.ActorID("alice")
	require.NoError(t, l.Raise(l, &ledgerEntryAdded{}, actor, now.Add(time.Minute)))

	assert.Equal(t, "main", l.name)
	assert.Equal(t, 1, l.entries)
	assert.Equal(t, int64(2), l.Version())
	assert.Equal(t, int64(0), l.CommittedVersion())
	changes := l.Changes()
	require.Len(t, changes, 2)
	assert.Equal(t, int64(1), changes[0].Version)
	assert.Equal(t, int64(2), changes[1].Version)
	assert.Equal(t, actor, changes[1].ActorID)
	assert.Equal(t, id.SystemActorID, l.CreatedBy())
	assert.Equal(t, actor, l.UpdatedBy())
	assert.Equal(t, now, l.CreatedOn())
}

func TestRaise_RejectedOnDeletedAggregate(t *testing.T) {
	l, err := openLedger("main", time.Now())
	require.NoError(t, err)
	require.NoError(t, l.Raise(l, &ledgerClosed{}, id.SystemActorID, time.Now()))
	require.True(t, l.IsDeleted())

	err = l.Raise(l, &ledgerEntryAdded{}, id.SystemActorID, time.Now())
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeAggregateDeleted))
	assert.Equal(t, int64(2), l.Version())
}

func TestRaise_UnhandledEventFailsWithoutMutation(t *testing.T) {
	l, err := openLedger("main", time.Now())
	require.NoError(t, err)

	err = l.Raise(l, &ledgerUnhandled{}, id.SystemActorID, time.Now())
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnknownEventType))
	assert.Equal(t, int64(1), l.Version())
	assert.Len(t, l.Changes(), 1)
}

// TestReplay_VersionAndDeletedFold: Load(E).Version == len(E) and
// Load(E).IsDeleted == (last event of E is the deletion event).
func TestReplay_VersionAndDeletedFold(t *testing.T) {
	stream := ledgerStream("fold")
	envelope := func(v int64, e Event) Envelope {
		return Envelope{StreamID: stream, Version: v, OccurredOn: time.Now(), Event: e}
	}

	cases := map[string][]Envelope{
		"opened only": {envelope(1, &ledgerOpened{Name: "a"})},
		"with entries": {
			envelope(1, &ledgerOpened{Name: "a"}),
			envelope(2, &ledgerEntryAdded{}),
			envelope(3, &ledgerEntryAdded{}),
		},
		"closed last": {
			envelope(1, &ledgerOpened{Name: "a"}),
			envelope(2, &ledgerEntryAdded{}),
			envelope(3, &ledgerClosed{}),
		},
	}

	for name, history := range cases {
		t.Run(name, func(t *testing.T) {
			l := &ledger{}
			require.NoError(t, Replay(l, history))
			assert.Equal(t, int64(len(history)), l.Version())
			_, lastIsDeletion := history[len(history)-1].Event.(Deletion)
			assert.Equal(t, lastIsDeletion, l.IsDeleted())
			assert.False(t, l.HasChanges(), "replay must not buffer events")
		})
	}
}

func TestReplay_IsDeterministic(t *testing.T) {
	l, err := openLedger("main", time.Now())
	require.NoError(t, err)
	require.NoError(t, l.Raise(l, &ledgerUpdated{Note: Set("first")}, id.SystemActorID, time.Now()))
	require.NoError(t, l.Raise(l, &ledgerEntryAdded{}, id.SystemActorID, time.Now()))

	a, b := &ledger{}, &ledger{}
	require.NoError(t, Replay(a, l.Changes()))
	require.NoError(t, Replay(b, l.Changes()))
	assert.Equal(t, a.name, b.name)
	assert.Equal(t, a.note, b.note)
	assert.Equal(t, a.entries, b.entries)
	assert.Equal(t, l.entries, a.entries)
}

func TestReplay_RejectsGapsAndForeignStreams(t *testing.T) {
	stream := ledgerStream("gaps")

	t.Run("version gap", func(t *testing.T) {
		err := Replay(&ledger{}, []Envelope{
			{StreamID: stream, Version: 1, Event: &ledgerOpened{}},
			{StreamID: stream, Version: 3, Event: &ledgerEntryAdded{}},
		})
		require.ErrorIs(t, err, ErrInvalidStream)
	})

	t.Run("foreign stream", func(t *testing.T) {
		err := Replay(&ledger{}, []Envelope{
			{StreamID: stream, Version: 1, Event: &ledgerOpened{}},
			{StreamID: ledgerStream("other"), Version: 2, Event: &ledgerEntryAdded{}},
		})
		require.ErrorIs(t, err, ErrInvalidStream)
	})

	t.Run("events after deletion", func(t *testing.T) {
		err := Replay(&ledger{}, []Envelope{
			{StreamID: stream, Version: 1, Event: &ledgerOpened{}},
			{StreamID: stream, Version: 2, Event: &ledgerClosed{}},
			{StreamID: stream, Version: 3, Event: &ledgerEntryAdded{}},
		})
		assert.True(t, dErrors.HasCode(err, dErrors.CodeAggregateDeleted))
	})
}

func TestChange_DistinguishesAbsentFromClear(t *testing.T) {
	cases := []struct {
		name      string
		event     ledgerUpdated
		wantJSON  string
		wantNote  *string
		startNote string
	}{
		{name: "absent leaves unchanged", event: ledgerUpdated{}, wantJSON: `{}`, startNote: "keep"},
		{name: "null clears", event: ledgerUpdated{Note: Clear[string]()}, wantJSON: `{"note":{"value":null}}`, startNote: "drop"},
		{name: "value sets", event: ledgerUpdated{Note: Set("new")}, wantJSON: `{"note":{"value":"new"}}`, startNote: "old"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			data, err := json.Marshal(tc.event)
			require.NoError(t, err)
			assert.JSONEq(t, tc.wantJSON, string(data))

			var decoded ledgerUpdated
			require.NoError(t, json.Unmarshal(data, &decoded))

			note := tc.startNote
			current := &note
			decoded.Note.ApplyTo(&current)
			switch {
			case tc.event.Note == nil:
				require.NotNil(t, current)
				assert.Equal(t, tc.startNote, *current)
			case tc.event.Note.IsClear():
				assert.Nil(t, current)
			default:
				require.NotNil(t, current)
				assert.Equal(t, "new", *current)
			}
		})
	}
}

func TestCodec(t *testing.T) {
	codec := newLedgerCodec()
	l, err := openLedger("main", time.Now())
	require.NoError(t, err)

	t.Run("round-trips envelopes", func(t *testing.T) {
		env := l.Changes()[0]
		rec, err := codec.Encode(env)
		require.NoError(t, err)
		assert.Equal(t, "ledger.opened", rec.EventType)

		decoded, err := codec.Decode(rec)
		require.NoError(t, err)
		assert.Equal(t, env.StreamID, decoded.StreamID)
		assert.Equal(t, env.Version, decoded.Version)
		assert.Equal(t, &ledgerOpened{Name: "main"}, decoded.Event)
	})

	t.Run("unknown type fails fast on decode", func(t *testing.T) {
		_, err := codec.Decode(Record{StreamID: l.ID(), Version: 1, EventType: "ledger.renamed", Data: []byte(`{}`)})
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnknownEventType))
	})

	t.Run("unregistered type fails on encode", func(t *testing.T) {
		_, err := codec.Encode(Envelope{StreamID: l.ID(), Version: 2, Event: &ledgerUnhandled{}})
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnknownEventType))
	})

	t.Run("duplicate registration panics", func(t *testing.T) {
		assert.Panics(t, func() {
			codec.Register(func() Event { return &ledgerOpened{} })
		})
	})
}

func TestStreamID(t *testing.T) {
	s := NewStreamID("user", "realm:entity")
	assert.Equal(t, "user", s.Kind())
	assert.Equal(t, "realm:entity", s.Key())
}
