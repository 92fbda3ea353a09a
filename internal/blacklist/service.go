// Package blacklist revokes token ids until they expire.
package blacklist

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"warden/pkg/platform/strings"
)

// Store persists blacklisted token ids. A nil expiry never expires.
type Store interface {
	Upsert(ctx context.Context, tokenIDs []string, expiresOn *time.Time) error
	// FindActive returns the ids whose expiry is unset or strictly after now.
	FindActive(ctx context.Context, tokenIDs []string, now time.Time) ([]string, error)
	// Claim inserts tokenID unless it is already active at now, and reports
	// whether this call inserted it. An expired record is replaced.
	Claim(ctx context.Context, tokenID string, expiresOn *time.Time, now time.Time) (bool, error)
	// Purge deletes records whose expiry is at or before now.
	Purge(ctx context.Context, now time.Time) (int64, error)
}

// Service blacklists token ids and answers revocation lookups.
type Service struct {
	store   Store
	logger  *slog.Logger
	metrics *Metrics
	clock   func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger; slog.Default is used otherwise.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithMetrics records blacklist activity; a nil Metrics is a no-op.
func WithMetrics(m *Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithClock replaces time.Now for expiry checks.
func WithClock(clock func() time.Time) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// New constructs a Service over store.
func New(store Store, opts ...Option) *Service {
	s := &Service{
		store:  store,
		logger: slog.Default(),
		clock:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Blacklist revokes tokenIDs until expiresOn (forever when nil). Ids are
// trimmed and de-duplicated; blacklisting an id again overwrites its expiry.
func (s *Service) Blacklist(ctx context.Context, tokenIDs []string, expiresOn *time.Time) error {
	ids := strings.Normalize(tokenIDs)
	if len(ids) == 0 {
		return nil
	}
	if err := s.store.Upsert(ctx, ids, expiresOn); err != nil {
		return err
	}
	s.metrics.blacklisted(len(ids))
	return nil
}

// GetBlacklisted returns the subset of tokenIDs that are currently revoked.
func (s *Service) GetBlacklisted(ctx context.Context, tokenIDs []string) (map[string]struct{}, error) {
	start := time.Now()
	defer s.metrics.observeLookup(start)

	ids := strings.Normalize(tokenIDs)
	out := make(map[string]struct{}, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	active, err := s.store.FindActive(ctx, ids, s.clock())
	if err != nil {
		return nil, err
	}
	for _, tokenID := range active {
		out[tokenID] = struct{}{}
	}
	return out, nil
}

// IsBlacklisted reports whether a single token id is revoked. Blank ids are
// never revoked.
func (s *Service) IsBlacklisted(ctx context.Context, tokenID string) (bool, error) {
	tokenID, ok := single(tokenID)
	if !ok {
		return false, nil
	}
	set, err := s.GetBlacklisted(ctx, []string{tokenID})
	if err != nil {
		return false, err
	}
	_, ok = set[tokenID]
	return ok, nil
}

// Consume blacklists tokenID until expiresOn unless it is already revoked.
// It returns false when the id was already active, so only one caller can
// consume a given id.
func (s *Service) Consume(ctx context.Context, tokenID string, expiresOn *time.Time) (bool, error) {
	tokenID, ok := single(tokenID)
	if !ok {
		return false, nil
	}
	claimed, err := s.store.Claim(ctx, tokenID, expiresOn, s.clock())
	if err != nil {
		return false, fmt.Errorf("consume token: %w", err)
	}
	if claimed {
		s.metrics.blacklisted(1)
	}
	return claimed, nil
}

// Purge deletes expired records and returns how many were removed.
func (s *Service) Purge(ctx context.Context) (int64, error) {
	n, err := s.store.Purge(ctx, s.clock())
	if err != nil {
		return 0, fmt.Errorf("purge blacklist: %w", err)
	}
	s.metrics.purged(n)
	return n, nil
}

func single(tokenID string) (string, bool) {
	ids := strings.Normalize([]string{tokenID})
	if len(ids) == 0 {
		return "", false
	}
	return ids[0], true
}
