// Package token issues and validates HS256 JSON web tokens signed with a key
// derived from the realm secret. Consumable tokens are single-use: consuming
// one blacklists its jti until the token expires.
package token

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/hkdf"

	"warden/internal/blacklist"
	id "warden/pkg/domain"
	dErrors "warden/pkg/domain-errors"
	"warden/pkg/requestcontext"
)

const (
	DefaultType     = "JWT"
	DefaultLifetime = 15 * time.Minute
	keyInfo         = "warden/token/hs256"
)

// Secrets resolves the secret of a realm, or of the configuration for nil.
type Secrets interface {
	Secret(ctx context.Context, realmID *id.RealmID) (string, error)
}

// Claims are the claims of every issued token.
type Claims struct {
	Email  string            `json:"email,omitempty"`
	Realm  string            `json:"realm,omitempty"`
	Custom map[string]string `json:"custom,omitempty"`
	jwt.RegisteredClaims
}

// Service issues and validates tokens.
type Service struct {
	secrets   Secrets
	blacklist *blacklist.Service
	issuer    string
	lifetime  time.Duration
	logger    *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger; slog.Default is used otherwise.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithIssuer sets the iss claim written and required on every token.
func WithIssuer(issuer string) Option {
	return func(s *Service) {
		s.issuer = issuer
	}
}

// WithDefaultLifetime sets the lifetime of tokens created without one.
func WithDefaultLifetime(lifetime time.Duration) Option {
	return func(s *Service) {
		if lifetime > 0 {
			s.lifetime = lifetime
		}
	}
}

// New constructs a Service signing with keys derived from secrets.
func New(secrets Secrets, blacklist *blacklist.Service, opts ...Option) *Service {
	s := &Service{
		secrets:   secrets,
		blacklist: blacklist,
		lifetime:  DefaultLifetime,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateInput describes a token to issue.
type CreateInput struct {
	Subject  string
	Audience []string
	Email    string
	// Type is the "typ" header, DefaultType when empty.
	Type     string
	Lifetime time.Duration
	Claims   map[string]string
}

// Created is an issued token.
type Created struct {
	Token     string    `json:"token"`
	ID        string    `json:"id"`
	ExpiresOn time.Time `json:"expires_on"`
}

// ValidateInput describes the checks applied to a token.
type ValidateInput struct {
	Token    string
	Audience string
	Type     string
	// Consume blacklists the token once it validated. Of concurrent
	// consumers of one token exactly one succeeds.
	Consume bool
}

func (s *Service) Create(ctx context.Context, realmID *id.RealmID, in CreateInput) (*Created, error) {
	now := requestcontext.Now(ctx).UTC()
	key, err := s.signingKey(ctx, realmID)
	if err != nil {
		return nil, err
	}
	lifetime := in.Lifetime
	if lifetime <= 0 {
		lifetime = s.lifetime
	}
	claims := Claims{
		Email:  strings.TrimSpace(in.Email),
		Custom: in.Claims,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    s.issuer,
			Subject:   in.Subject,
			Audience:  in.Audience,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(lifetime)),
		},
	}
	if realmID != nil {
		claims.Realm = realmID.String()
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	t.Header["typ"] = typeOrDefault(in.Type)
	signed, err := t.SignedString(key)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to sign token")
	}
	return &Created{Token: signed, ID: claims.ID, ExpiresOn: claims.ExpiresAt.Time}, nil
}

// Validate checks the signature, the time window, the audience, the type and
// the blacklist. Every rejection is unauthorized.
func (s *Service) Validate(ctx context.Context, realmID *id.RealmID, in ValidateInput) (*Claims, error) {
	now := requestcontext.Now(ctx)
	key, err := s.signingKey(ctx, realmID)
	if err != nil {
		return nil, err
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(func() time.Time { return now }),
		jwt.WithExpirationRequired(),
	}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}
	if in.Audience != "" {
		opts = append(opts, jwt.WithAudience(in.Audience))
	}
	parsed, err := jwt.ParseWithClaims(in.Token, &Claims{}, func(*jwt.Token) (any, error) {
		return key, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "token has expired")
		}
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.ID == "" {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}
	if typ, _ := parsed.Header["typ"].(string); typ != typeOrDefault(in.Type) {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "unexpected token type")
	}
	wantRealm := ""
	if realmID != nil {
		wantRealm = realmID.String()
	}
	if claims.Realm != wantRealm {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "token was issued for another realm")
	}

	if in.Consume {
		expiresOn := claims.ExpiresAt.Time
		consumed, err := s.blacklist.Consume(ctx, claims.ID, &expiresOn)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to consume token")
		}
		if !consumed {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "token was revoked")
		}
		s.logger.InfoContext(ctx, "token consumed", "jti", claims.ID)
		return claims, nil
	}

	revoked, err := s.blacklist.IsBlacklisted(ctx, claims.ID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check token blacklist")
	}
	if revoked {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "token was revoked")
	}
	return claims, nil
}

// Revoke blacklists a token id until expiresOn, or forever when nil.
func (s *Service) Revoke(ctx context.Context, tokenID string, expiresOn *time.Time) error {
	if err := s.blacklist.Blacklist(ctx, []string{tokenID}, expiresOn); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to revoke token")
	}
	return nil
}

// signingKey derives a 256-bit HMAC key from the realm secret.
func (s *Service) signingKey(ctx context.Context, realmID *id.RealmID) ([]byte, error) {
	secret, err := s.secrets.Secret(ctx, realmID)
	if err != nil {
		return nil, err
	}
	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, []byte(keyInfo)), key); err != nil {
		return nil, fmt.Errorf("derive signing key: %w", err)
	}
	return key, nil
}

func typeOrDefault(typ string) string {
	if typ = strings.TrimSpace(typ); typ != "" {
		return typ
	}
	return DefaultType
}
