package models

import (
	"warden/internal/encryption"
	"warden/internal/eventsourcing"
	id "warden/pkg/domain"
)

// Event is the sealed set of configuration events.
type Event interface {
	eventsourcing.Event
	isConfigurationEvent()
}

type ConfigurationInitialized struct {
	Secret             encryption.EncryptedString `json:"secret"`
	UniqueNameSettings id.UniqueNameSettings      `json:"unique_name_settings"`
	PasswordSettings   id.PasswordSettings        `json:"password_settings"`
	RequireUniqueEmail bool                       `json:"require_unique_email"`
	LoggingSettings    LoggingSettings            `json:"logging_settings"`
}

// ConfigurationUpdated carries only the fields that changed.
type ConfigurationUpdated struct {
	Secret             *encryption.EncryptedString `json:"secret,omitempty"`
	UniqueNameSettings *id.UniqueNameSettings      `json:"unique_name_settings,omitempty"`
	PasswordSettings   *id.PasswordSettings        `json:"password_settings,omitempty"`
	RequireUniqueEmail *bool                       `json:"require_unique_email,omitempty"`
	LoggingSettings    *LoggingSettings            `json:"logging_settings,omitempty"`
}

func (*ConfigurationInitialized) EventType() string { return "configuration.initialized" }
func (*ConfigurationUpdated) EventType() string     { return "configuration.updated" }

func (*ConfigurationInitialized) isConfigurationEvent() {}
func (*ConfigurationUpdated) isConfigurationEvent()     {}

func (e *ConfigurationUpdated) isEmpty() bool {
	return e.Secret == nil && e.UniqueNameSettings == nil && e.PasswordSettings == nil &&
		e.RequireUniqueEmail == nil && e.LoggingSettings == nil
}

// RegisterEvents adds the configuration events to codec.
func RegisterEvents(codec *eventsourcing.Codec) {
	codec.Register(
		func() eventsourcing.Event { return &ConfigurationInitialized{} },
		func() eventsourcing.Event { return &ConfigurationUpdated{} },
	)
}
