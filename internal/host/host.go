// Package host declares the narrow interfaces through which the module
// consumes capabilities owned by the embedding host application: a
// world-scoped key-value settings store, a shared broadcast channel, and a
// roster of connected users with their roles. The host also supplies
// identity; the module performs no authentication of its own.
package host

import "context"

// Role of a connected user. The GM is the only authorized writer; players
// relay their writes through a connected GM.
type Role string

const (
	RoleGM     Role = "gm"
	RolePlayer Role = "player"
)

// IsGM reports whether the role may commit writes directly.
func (r Role) IsGM() bool { return r == RoleGM }

// User is a host-supplied identity. ID is stable; Name is a mutable display
// string and must never be used for ownership checks.
type User struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Role Role   `json:"role"`
}

// Settings is the host's generic world-scoped key-value store. Values are
// stored and returned verbatim; the store never wraps or rewrites them.
type Settings interface {
	// Get returns the stored bytes for key, or common.ErrorNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key and notifies every watcher on every
	// connected replica, including the writer's own.
	Set(ctx context.Context, key string, value []byte) error

	// Watch registers a callback for setting-change notifications. The
	// returned func cancels the registration.
	Watch(fn func(key string)) (cancel func())
}

// Channel is the single shared publish-subscribe topic for the module.
// Published payloads are delivered to every subscriber, the publisher's own
// replica included. Delivery is best effort; a dropped broadcast is
// recovered through the Settings watch fallback.
type Channel interface {
	Publish(ctx context.Context, payload []byte) error
	Subscribe(fn func(payload []byte)) (cancel func())
}

// Roster exposes the host's view of connected users.
type Roster interface {
	// Self returns the identity this replica runs as.
	Self() User

	// Connected returns the currently-connected users, self included.
	Connected() []User

	// WatchDisconnects registers a callback fired with the user id of any
	// peer whose connection drops.
	WatchDisconnects(fn func(userID string)) (cancel func())
}

// Session bundles the three capabilities one replica receives from its host.
type Session interface {
	Settings() Settings
	Channel() Channel
	Roster() Roster
}
