// Package models holds the global configuration aggregate.
package models

import (
	"time"

	"warden/internal/actor"
	"warden/internal/encryption"
	"warden/internal/eventsourcing"
	"warden/internal/password"
	id "warden/pkg/domain"
	dErrors "warden/pkg/domain-errors"
)

const Kind = "configuration"

// StreamID is the single configuration stream.
var StreamID = eventsourcing.NewStreamID(Kind, "global")

// LoggingExtent selects which requests are logged.
type LoggingExtent string

const (
	LoggingNone         LoggingExtent = "None"
	LoggingActivityOnly LoggingExtent = "ActivityOnly"
	LoggingFull         LoggingExtent = "Full"
)

type LoggingSettings struct {
	Extent     LoggingExtent `json:"extent"`
	OnlyErrors bool          `json:"only_errors"`
}

func DefaultLoggingSettings() LoggingSettings {
	return LoggingSettings{Extent: LoggingActivityOnly}
}

func (l LoggingSettings) validate() error {
	switch l.Extent {
	case LoggingNone, LoggingActivityOnly, LoggingFull:
		return nil
	}
	return dErrors.Validation(dErrors.FieldError{
		Field:   "logging_settings.extent",
		Code:    "invalid_value",
		Message: "must be None, ActivityOnly or Full",
	})
}

// Configuration holds the defaults of the system and the policy of the
// default realm.
//
// Invariants:
//   - exactly one configuration exists, in the "configuration/global" stream
//   - Secret is always present, encrypted with the default-realm key
//   - configuration is never deleted
type Configuration struct {
	eventsourcing.Root

	secret             encryption.EncryptedString
	uniqueNameSettings id.UniqueNameSettings
	passwordSettings   id.PasswordSettings
	requireUniqueEmail bool
	loggingSettings    LoggingSettings

	pending ConfigurationUpdated
}

// Initialize creates the configuration with default settings.
func Initialize(secret encryption.EncryptedString, actorID id.ActorID, now time.Time) (*Configuration, error) {
	if secret == "" {
		return nil, dErrors.Validation(dErrors.FieldError{Field: "secret", Code: "required", Message: "is required"})
	}
	c := &Configuration{Root: eventsourcing.NewRoot(StreamID)}
	err := c.Raise(c, &ConfigurationInitialized{
		Secret:             secret,
		UniqueNameSettings: id.DefaultUniqueNameSettings(),
		PasswordSettings:   id.DefaultPasswordSettings(),
		RequireUniqueEmail: true,
		LoggingSettings:    DefaultLoggingSettings(),
	}, actorID, now)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Configuration) Secret() encryption.EncryptedString        { return c.secret }
func (c *Configuration) UniqueNameSettings() id.UniqueNameSettings { return c.uniqueNameSettings }
func (c *Configuration) PasswordSettings() id.PasswordSettings     { return c.passwordSettings }
func (c *Configuration) RequireUniqueEmail() bool                  { return c.requireUniqueEmail }
func (c *Configuration) LoggingSettings() LoggingSettings          { return c.loggingSettings }

// Settings is the policy of the default realm.
func (c *Configuration) Settings() id.RealmSettings {
	return id.RealmSettings{
		UniqueNameSettings: c.uniqueNameSettings,
		PasswordSettings:   c.passwordSettings,
		RequireUniqueEmail: c.requireUniqueEmail,
	}
}

func (c *Configuration) SetSecret(secret encryption.EncryptedString) error {
	if secret == "" {
		return dErrors.Validation(dErrors.FieldError{Field: "secret", Code: "required", Message: "is required"})
	}
	if secret != c.secret {
		c.pending.Secret = &secret
	}
	return nil
}

func (c *Configuration) SetUniqueNameSettings(settings id.UniqueNameSettings) {
	same := settings.AllowedCharacters == nil && c.uniqueNameSettings.AllowedCharacters == nil ||
		settings.AllowedCharacters != nil && c.uniqueNameSettings.AllowedCharacters != nil &&
			*settings.AllowedCharacters == *c.uniqueNameSettings.AllowedCharacters
	if !same {
		c.pending.UniqueNameSettings = &settings
	}
}

func (c *Configuration) SetPasswordSettings(settings id.PasswordSettings) error {
	if err := password.ValidateSettings("password_settings", settings); err != nil {
		return err
	}
	if settings != c.passwordSettings {
		c.pending.PasswordSettings = &settings
	}
	return nil
}

func (c *Configuration) SetRequireUniqueEmail(require bool) {
	if require != c.requireUniqueEmail {
		c.pending.RequireUniqueEmail = &require
	}
}

func (c *Configuration) SetLoggingSettings(settings LoggingSettings) error {
	if err := settings.validate(); err != nil {
		return err
	}
	if settings != c.loggingSettings {
		c.pending.LoggingSettings = &settings
	}
	return nil
}

// Update raises the staged changes, if any.
func (c *Configuration) Update(actorID id.ActorID, now time.Time) error {
	if c.pending.isEmpty() {
		return nil
	}
	e := c.pending
	if err := c.Raise(c, &e, actorID, now); err != nil {
		return err
	}
	c.pending = ConfigurationUpdated{}
	return nil
}

func (c *Configuration) Apply(env eventsourcing.Envelope) error {
	e, ok := env.Event.(Event)
	if !ok {
		return eventsourcing.UnknownEventTypeError(env.Event.EventType())
	}
	switch e := e.(type) {
	case *ConfigurationInitialized:
		c.secret = e.Secret
		c.uniqueNameSettings = e.UniqueNameSettings
		c.passwordSettings = e.PasswordSettings
		c.requireUniqueEmail = e.RequireUniqueEmail
		c.loggingSettings = e.LoggingSettings
	case *ConfigurationUpdated:
		if e.Secret != nil {
			c.secret = *e.Secret
		}
		if e.UniqueNameSettings != nil {
			c.uniqueNameSettings = *e.UniqueNameSettings
		}
		if e.PasswordSettings != nil {
			c.passwordSettings = *e.PasswordSettings
		}
		if e.RequireUniqueEmail != nil {
			c.requireUniqueEmail = *e.RequireUniqueEmail
		}
		if e.LoggingSettings != nil {
			c.loggingSettings = *e.LoggingSettings
		}
	default:
		return eventsourcing.UnknownEventTypeError(env.Event.EventType())
	}
	return nil
}

// View is the read model of the configuration. It never exposes the secret.
type View struct {
	UniqueNameSettings id.UniqueNameSettings `json:"unique_name_settings"`
	PasswordSettings   id.PasswordSettings   `json:"password_settings"`
	RequireUniqueEmail bool                  `json:"require_unique_email"`
	LoggingSettings    LoggingSettings       `json:"logging_settings"`
	actor.Audit
}

func NewView(c *Configuration) *View {
	return &View{
		UniqueNameSettings: c.uniqueNameSettings,
		PasswordSettings:   c.passwordSettings,
		RequireUniqueEmail: c.requireUniqueEmail,
		LoggingSettings:    c.loggingSettings,
		Audit:              actor.NewAudit(c.Version(), c.CreatedBy(), c.CreatedOn(), c.UpdatedBy(), c.UpdatedOn()),
	}
}
