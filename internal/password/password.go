// Package password hashes and verifies secrets through tagged, versioned
// strategies. Encoded passwords have the form "<tag>:<payload>" so hashes
// produced by retired strategies stay verifiable.
package password

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	dErrors "warden/pkg/domain-errors"
)

const separator = ":"

// Password is a hashed (or encoded) secret.
type Password interface {
	// Encode returns "<tag>:<payload>".
	Encode() string
	// IsMatch reports whether candidate is the secret this password was built from.
	IsMatch(candidate string) bool
}

// Strategy builds passwords of one tag.
type Strategy interface {
	Key() string
	Hash(plaintext string) (Password, error)
	// Decode parses the payload following "<tag>:".
	Decode(payload string) (Password, error)
}

// Decoder parses encoded passwords. Aggregates verify secrets through it
// without depending on the registry.
type Decoder interface {
	Decode(encoded string) (Password, error)
}

type snapshot struct {
	strategies map[string]Strategy
	current    string
}

// Registry resolves strategies by tag. Reads are lock-free; writers publish a
// new snapshot.
type Registry struct {
	mu    sync.Mutex
	state atomic.Pointer[snapshot]
}

// NewRegistry registers strategies and makes current the hashing strategy.
func NewRegistry(current string, strategies ...Strategy) (*Registry, error) {
	r := &Registry{}
	r.state.Store(&snapshot{strategies: map[string]Strategy{}})
	r.Register(strategies...)
	if err := r.Rotate(current); err != nil {
		return nil, err
	}
	return r, nil
}

// Register adds or replaces strategies by tag.
func (r *Registry) Register(strategies ...Strategy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	old := r.state.Load()
	next := &snapshot{strategies: make(map[string]Strategy, len(old.strategies)+len(strategies)), current: old.current}
	for k, s := range old.strategies {
		next.strategies[k] = s
	}
	for _, s := range strategies {
		next.strategies[s.Key()] = s
	}
	r.state.Store(next)
}

// Rotate switches the strategy used by Hash. Existing hashes keep verifying.
func (r *Registry) Rotate(tag string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	old := r.state.Load()
	if _, ok := old.strategies[tag]; !ok {
		return UnknownPasswordStrategyError(tag)
	}
	r.state.Store(&snapshot{strategies: old.strategies, current: tag})
	return nil
}

// Current returns the tag used by Hash.
func (r *Registry) Current() string {
	return r.state.Load().current
}

// Supports reports whether a strategy is registered under tag.
func (r *Registry) Supports(tag string) bool {
	_, ok := r.state.Load().strategies[tag]
	return ok
}

// Hash hashes plaintext with the current strategy.
func (r *Registry) Hash(plaintext string) (Password, error) {
	return r.HashWith(r.Current(), plaintext)
}

// HashWith hashes plaintext with the strategy registered under tag.
func (r *Registry) HashWith(tag, plaintext string) (Password, error) {
	s, ok := r.state.Load().strategies[tag]
	if !ok {
		return nil, UnknownPasswordStrategyError(tag)
	}
	return s.Hash(plaintext)
}

// Decode parses an encoded password with the strategy named by its tag.
func (r *Registry) Decode(encoded string) (Password, error) {
	tag, payload, ok := strings.Cut(encoded, separator)
	if !ok || tag == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "encoded password has no strategy tag")
	}
	s, found := r.state.Load().strategies[tag]
	if !found {
		return nil, UnknownPasswordStrategyError(tag)
	}
	pw, err := s.Decode(payload)
	if err != nil {
		return nil, fmt.Errorf("decode %s password: %w", tag, err)
	}
	return pw, nil
}

func UnknownPasswordStrategyError(tag string) error {
	return dErrors.New(dErrors.CodeUnknownPasswordStrategy, fmt.Sprintf("password strategy %q is not registered", tag))
}

func encode(tag string, parts ...string) string {
	return tag + separator + strings.Join(parts, separator)
}

func malformed(tag, reason string) error {
	return dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("malformed %s password: %s", tag, reason))
}
