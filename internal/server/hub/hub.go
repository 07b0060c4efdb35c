// Package hub maintains the websocket connections of all replicas, grouped
// into world-scoped rooms, and fans channel payloads out to every member of
// a room — the publisher included, so a committer re-renders through the
// same path as its peers. Joining requires a valid join token; the roster
// visible to replicas is exactly the set of open connections.
package hub

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/vttlabs/lorekeeper/internal/host"
	"github.com/vttlabs/lorekeeper/internal/logging"
	"github.com/vttlabs/lorekeeper/internal/server/auth"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // The join token is the access control, not the origin.
	},
}

// Hub is the fan-out core. All room mutation happens on the Run goroutine.
type Hub struct {
	log    logging.Logger
	secret []byte

	register   chan *client
	unregister chan *client
	broadcast  chan roomMsg

	mu    sync.RWMutex
	rooms map[string]map[*client]struct{}
}

type roomMsg struct {
	world string
	data  []byte
}

type client struct {
	hub   *Hub
	conn  *websocket.Conn
	send  chan []byte
	user  host.User
	world string
}

func New(secret []byte, log logging.Logger) *Hub {
	return &Hub{
		log:        log.With("module", "hub"),
		secret:     secret,
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan roomMsg, 256),
		rooms:      make(map[string]map[*client]struct{}),
	}
}

// Run serves the hub's main event loop until ctx is done.
func (h *Hub) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return nil

		case c := <-h.register:
			h.mu.Lock()
			if h.rooms[c.world] == nil {
				h.rooms[c.world] = make(map[*client]struct{})
			}
			h.rooms[c.world][c] = struct{}{}
			h.mu.Unlock()

			c.trySend(h.frame(Frame{Kind: KindWelcome, Self: &c.user, Users: h.roster(c.world)}))
			h.fanOut(c.world, h.frame(Frame{Kind: KindRoster, Users: h.roster(c.world)}))
			h.log.Info(ctx, "client joined", "world", c.world, "user", c.user.ID, "role", string(c.user.Role))

		case c := <-h.unregister:
			h.mu.Lock()
			if room, ok := h.rooms[c.world]; ok {
				if _, member := room[c]; member {
					delete(room, c)
					close(c.send)
					if len(room) == 0 {
						delete(h.rooms, c.world)
					}
				}
			}
			h.mu.Unlock()

			h.fanOut(c.world, h.frame(Frame{Kind: KindRoster, Users: h.roster(c.world)}))
			h.log.Info(ctx, "client left", "world", c.world, "user", c.user.ID)

		case msg := <-h.broadcast:
			h.fanOut(msg.world, msg.data)
		}
	}
}

// NotifySetting pushes the storage-change notification to a world. This is
// the fallback convergence path for replicas that missed a broadcast.
func (h *Hub) NotifySetting(world, key string) {
	select {
	case h.broadcast <- roomMsg{world: world, data: h.frame(Frame{Kind: KindSetting, Key: key})}:
	default:
		h.log.Warn(context.Background(), "broadcast queue full, dropping setting notification", "world", world, "key", key)
	}
}

// ServeWS upgrades an authenticated request into a hub connection. The join
// token arrives as a "token" query parameter.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	ident, err := auth.VerifyToken(r.URL.Query().Get("token"), h.secret)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn(r.Context(), "ws upgrade failed", "error", err)
		return
	}

	c := &client{
		hub:   h,
		conn:  conn,
		send:  make(chan []byte, 64),
		user:  ident.User,
		world: ident.World,
	}
	h.register <- c

	go c.writePump()
	go c.readPump()
}

func (h *Hub) roster(world string) []host.User {
	h.mu.RLock()
	defer h.mu.RUnlock()

	room := h.rooms[world]
	out := make([]host.User, 0, len(room))
	for c := range room {
		out = append(out, c.user)
	}
	return out
}

func (h *Hub) fanOut(world string, data []byte) {
	h.mu.RLock()
	var slow []*client
	for c := range h.rooms[world] {
		if !c.trySend(data) {
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	// A client whose send buffer is full gets dropped; its disconnect is
	// what the presence cleanup keys on.
	for _, c := range slow {
		c.conn.Close()
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, room := range h.rooms {
		for c := range room {
			c.conn.Close()
		}
	}
}

func (h *Hub) frame(f Frame) []byte {
	data, err := json.Marshal(f)
	if err != nil {
		h.log.Error(context.Background(), "encoding frame", "error", err)
		return []byte(`{}`)
	}
	return data
}

func (c *client) trySend(data []byte) bool {
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// readPump relays publish frames from the connection into the room.
func (c *client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var f Frame
		if err := json.Unmarshal(message, &f); err != nil {
			continue
		}
		if f.Kind != KindPublish || len(f.Payload) == 0 {
			continue
		}

		out := c.hub.frame(Frame{Kind: KindMessage, Channel: f.Channel, Payload: f.Payload})
		select {
		case c.hub.broadcast <- roomMsg{world: c.world, data: out}:
		default:
		}
	}
}

// writePump drains the send buffer onto the connection.
func (c *client) writePump() {
	defer c.conn.Close()

	for message := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			return
		}
	}
}
