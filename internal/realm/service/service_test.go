package service_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"warden/internal/actor"
	"warden/internal/encryption"
	"warden/internal/eventsourcing"
	"warden/internal/query"
	"warden/internal/realm/models"
	"warden/internal/realm/service"
	"warden/internal/realm/store"
	id "warden/pkg/domain"
	dErrors "warden/pkg/domain-errors"
	"warden/pkg/testutil"
)

const admin id.ActorID = "admin"

type ServiceSuite struct {
	suite.Suite
	ctx        context.Context
	events     *eventsourcing.InMemoryStore
	views      *store.InMemoryStore
	encryption *encryption.Manager
	service    *service.Service
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

type stubConfiguration struct{}

func (stubConfiguration) Settings(context.Context) (id.RealmSettings, error) {
	return id.RealmSettings{PasswordSettings: id.PasswordSettings{RequiredLength: 12}}, nil
}

func (stubConfiguration) Secret(context.Context) (string, error) { return "global-secret", nil }

func (s *ServiceSuite) SetupTest() {
	s.ctx = testutil.Context(admin, time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC))
	repo, events := testutil.Repository(models.RegisterEvents)
	s.events = events
	s.views = store.NewInMemory()
	s.encryption = testutil.Encryption(s.T())
	actors, _ := testutil.Actors(actor.Actor{Type: id.ActorTypeUser, ID: admin, DisplayName: "Admin"})
	s.service = service.New(repo, s.views, s.encryption, actors, testutil.Passwords(s.T()),
		service.WithProjector(s.views),
		service.WithConfiguration(stubConfiguration{}),
	)
}

func ptr[T any](v T) *T { return &v }

func (s *ServiceSuite) create(slug string) *models.View {
	v, err := s.service.Create(s.ctx, service.CreateInput{UniqueSlug: slug})
	s.Require().NoError(err)
	return v
}

func (s *ServiceSuite) TestCreate_AcmeSecretIsEncryptedAtRest() {
	v, err := s.service.Create(s.ctx, service.CreateInput{
		UniqueSlug:  "acme",
		Secret:      ptr("s3cr3t"),
		DisplayName: ptr("Acme"),
	})
	s.Require().NoError(err)
	s.Equal("acme", v.UniqueSlug)
	s.Equal(int64(2), v.Version)
	s.Equal("Admin", v.CreatedBy.DisplayName)

	records, err := s.events.Load(s.ctx, models.StreamID(v.ID), 0)
	s.Require().NoError(err)
	s.Require().Len(records, 2)
	var created models.RealmCreated
	s.Require().NoError(json.Unmarshal(records[0].Data, &created))
	s.NotContains(string(created.Secret), "s3cr3t")

	secret, err := s.service.RevealSecret(s.ctx, v.ID)
	s.Require().NoError(err)
	s.Equal("s3cr3t", secret)

	_, err = s.encryption.Decrypt(created.Secret, id.NewRealmID().Ptr())
	s.Error(err, "another realm's key must not decrypt the secret")
}

func (s *ServiceSuite) TestCreate_GeneratesSecret() {
	v := s.create("generated")
	secret, err := s.service.RevealSecret(s.ctx, v.ID)
	s.Require().NoError(err)
	s.NotEmpty(secret)
}

func (s *ServiceSuite) TestCreate_SlugMustBeUnique() {
	s.create("acme")
	_, err := s.service.Create(s.ctx, service.CreateInput{UniqueSlug: "acme"})
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
}

func (s *ServiceSuite) TestCreate_ValidatesInput() {
	_, err := s.service.Create(s.ctx, service.CreateInput{
		UniqueSlug: "acme",
		URL:        ptr("not a url"),
		PasswordSettings: &id.PasswordSettings{
			RequiredLength:  8,
			HashingStrategy: "MD5",
		},
	})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	fields := map[string]bool{}
	for _, f := range dErrors.Fields(err) {
		fields[f.Field] = true
	}
	s.True(fields["url"])
	s.True(fields["password_settings.hashing_strategy"])
}

func (s *ServiceSuite) TestUpdate() {
	v := s.create("acme")
	updated, err := s.service.Update(s.ctx, v.ID, service.UpdateInput{
		UniqueSlug:         ptr("acme-corp"),
		DisplayName:        eventsourcing.Set("Acme Corp"),
		RequireUniqueEmail: ptr(true),
		CustomAttributes:   eventsourcing.AttributeChanges{"region": ptr("eu")},
	})
	s.Require().NoError(err)
	s.Equal("acme-corp", updated.UniqueSlug)
	s.Equal("Acme Corp", *updated.DisplayName)
	s.True(updated.RequireUniqueEmail)
	s.Equal(map[string]string{"region": "eu"}, updated.CustomAttributes)

	old, err := s.service.Read(s.ctx, nil, ptr("acme"))
	s.Require().NoError(err)
	s.Nil(old, "old slug no longer resolves")

	cleared, err := s.service.Update(s.ctx, v.ID, service.UpdateInput{DisplayName: eventsourcing.Clear[string]()})
	s.Require().NoError(err)
	s.Nil(cleared.DisplayName)
}

func (s *ServiceSuite) TestUpdate_SlugTakenByAnotherRealm() {
	s.create("acme")
	other := s.create("globex")
	_, err := s.service.Update(s.ctx, other.ID, service.UpdateInput{UniqueSlug: ptr("acme")})
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
}

func (s *ServiceSuite) TestRead_AmbiguousIDAndSlug() {
	acme := s.create("acme")
	s.create("globex")

	v, err := s.service.Read(s.ctx, &acme.ID, ptr("acme"))
	s.Require().NoError(err)
	s.Equal(acme.ID, v.ID)

	_, err = s.service.Read(s.ctx, &acme.ID, ptr("globex"))
	s.True(dErrors.HasCode(err, dErrors.CodeTooManyResults))
}

func (s *ServiceSuite) TestSearch() {
	s.create("acme")
	s.create("globex")
	s.create("initech")

	page, err := s.service.Search(s.ctx, query.SearchPayload{
		Sort:  []query.SortOption{{Field: "unique_slug", Direction: query.Descending}},
		Limit: 2,
	})
	s.Require().NoError(err)
	s.Equal(int64(3), page.Total)
	s.Require().Len(page.Items, 2)
	s.Equal("initech", page.Items[0].UniqueSlug)
	s.Equal("Admin", page.Items[0].UpdatedBy.DisplayName)

	page, err = s.service.Search(s.ctx, query.SearchPayload{Terms: []string{"GLO"}})
	s.Require().NoError(err)
	s.Equal(int64(1), page.Total)
}

func (s *ServiceSuite) TestDelete() {
	v := s.create("acme")
	deleted, err := s.service.Delete(s.ctx, v.ID)
	s.Require().NoError(err)
	s.Equal(int64(2), deleted.Version)

	read, err := s.service.Read(s.ctx, &v.ID, nil)
	s.Require().NoError(err)
	s.Nil(read)

	_, err = s.service.Delete(s.ctx, v.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	_, err = s.service.RevealSecret(s.ctx, v.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ServiceSuite) TestRotateSecret() {
	v, err := s.service.Create(s.ctx, service.CreateInput{UniqueSlug: "acme", Secret: ptr("s3cr3t")})
	s.Require().NoError(err)

	rotated, err := s.service.RotateSecret(s.ctx, v.ID, nil)
	s.Require().NoError(err)
	s.NotEqual("s3cr3t", rotated)

	secret, err := s.service.Secret(s.ctx, &v.ID)
	s.Require().NoError(err)
	s.Equal(rotated, secret)
}

func (s *ServiceSuite) TestSecretAndSettingsFallBackToConfiguration() {
	secret, err := s.service.Secret(s.ctx, nil)
	s.Require().NoError(err)
	s.Equal("global-secret", secret)

	settings, err := s.service.ResolveSettings(s.ctx, nil)
	s.Require().NoError(err)
	s.Equal(12, settings.PasswordSettings.RequiredLength)

	v := s.create("acme")
	settings, err = s.service.ResolveSettings(s.ctx, &v.ID)
	s.Require().NoError(err)
	s.Equal(id.DefaultPasswordSettings(), settings.PasswordSettings)
}

func (s *ServiceSuite) TestUnknownRealm() {
	_, err := s.service.Update(s.ctx, id.NewRealmID(), service.UpdateInput{})
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}
