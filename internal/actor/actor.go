// Package actor resolves actor ids to display information through a cache.
package actor

import (
	id "warden/pkg/domain"
)

// Actor is the read projection of whoever performed an operation.
type Actor struct {
	Type         id.ActorType `json:"type"`
	ID           id.ActorID   `json:"id"`
	DisplayName  string       `json:"display_name"`
	EmailAddress *string      `json:"email_address,omitempty"`
	PictureURL   *string      `json:"picture_url,omitempty"`
	IsDeleted    bool         `json:"is_deleted"`
}

// System is the actor behind operations without an authenticated caller.
func System() Actor {
	return Actor{Type: id.ActorTypeSystem, ID: id.SystemActorID, DisplayName: "System"}
}

// Unknown is the placeholder for an id the read store no longer knows.
func Unknown(actorID id.ActorID) Actor {
	return Actor{Type: id.ActorTypeUser, ID: actorID, DisplayName: "Unknown", IsDeleted: true}
}
