package hub

import (
	"encoding/json"

	"github.com/vttlabs/lorekeeper/internal/host"
)

// Frame kinds on the websocket connection between a replica and the hub.
const (
	// KindPublish (client → server): relay the payload to the world's
	// shared channel.
	KindPublish = "publish"

	// KindMessage (server → client): a channel payload, delivered to every
	// member of the world including the publisher.
	KindMessage = "message"

	// KindWelcome (server → client): first frame after joining; carries the
	// verified identity and the current roster.
	KindWelcome = "welcome"

	// KindRoster (server → client): full roster, sent on every join/leave.
	KindRoster = "roster"

	// KindSetting (server → client): a world setting changed; the fallback
	// refresh trigger.
	KindSetting = "setting"
)

// Frame is the envelope for all websocket traffic with the hub. Only the
// fields relevant to the kind are populated. Publish and message frames
// carry a channel name: the hub relays payloads verbatim for any topic, and
// subscribers filter on the topic they own.
type Frame struct {
	Kind    string          `json:"kind"`
	Channel string          `json:"channel,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Self    *host.User      `json:"self,omitempty"`
	Users   []host.User     `json:"users,omitempty"`
	Key     string          `json:"key,omitempty"`
}
