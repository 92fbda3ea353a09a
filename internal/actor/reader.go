package actor

import (
	"context"
	"sync"

	id "warden/pkg/domain"
)

// Reader loads actors from the read store in one batch. Ids it does not know
// are simply absent from the result.
type Reader interface {
	FindActors(ctx context.Context, ids []id.ActorID) ([]Actor, error)
}

// InMemoryReader is a Reader for development and tests.
type InMemoryReader struct {
	mu     sync.RWMutex
	actors map[id.ActorID]Actor
}

// NewInMemoryReader constructs a reader seeded with actors.
func NewInMemoryReader(actors ...Actor) *InMemoryReader {
	r := &InMemoryReader{actors: make(map[id.ActorID]Actor, len(actors))}
	for _, a := range actors {
		r.actors[a.ID] = a
	}
	return r
}

func (r *InMemoryReader) Put(a Actor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.actors[a.ID] = a
}

func (r *InMemoryReader) FindActors(_ context.Context, ids []id.ActorID) ([]Actor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Actor, 0, len(ids))
	for _, actorID := range ids {
		if a, ok := r.actors[actorID]; ok {
			out = append(out, a)
		}
	}
	return out, nil
}

// MultiReader asks each reader in turn for the ids still unresolved.
type MultiReader []Reader

func (m MultiReader) FindActors(ctx context.Context, ids []id.ActorID) ([]Actor, error) {
	var out []Actor
	pending := ids
	for _, r := range m {
		if len(pending) == 0 {
			break
		}
		found, err := r.FindActors(ctx, pending)
		if err != nil {
			return nil, err
		}
		out = append(out, found...)
		resolved := make(map[id.ActorID]struct{}, len(found))
		for _, a := range found {
			resolved[a.ID] = struct{}{}
		}
		next := make([]id.ActorID, 0, len(pending)-len(found))
		for _, actorID := range pending {
			if _, ok := resolved[actorID]; !ok {
				next = append(next, actorID)
			}
		}
		pending = next
	}
	return out, nil
}
