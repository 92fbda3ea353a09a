package domain

// ActorType classifies who performed a mutation.
type ActorType string

const (
	ActorTypeSystem ActorType = "System"
	ActorTypeUser   ActorType = "User"
	ActorTypeAPIKey ActorType = "ApiKey"
)

// ActorID is the opaque identifier stamped on every event. The empty value is
// the system actor.
type ActorID string

// SystemActorID is stamped on events raised by the platform itself.
const SystemActorID ActorID = ""

func (id ActorID) IsSystem() bool { return id == SystemActorID }

func (id ActorID) String() string { return string(id) }

// ActorIDFromUser returns the actor id of a user.
func ActorIDFromUser(id UserID) ActorID { return ActorID(id.Entity.String()) }

// ActorIDFromAPIKey returns the actor id of an API key.
func ActorIDFromAPIKey(id APIKeyID) ActorID { return ActorID(id.Entity.String()) }
