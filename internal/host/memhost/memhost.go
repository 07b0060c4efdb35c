// Package memhost is an in-process implementation of the host interfaces.
// One World connects any number of replica sessions; it backs the test
// suite and single-process demos. Fan-out mirrors the run loop of a
// websocket hub, minus the sockets.
package memhost

import (
	"context"
	"sync"

	"github.com/vttlabs/lorekeeper/internal/common"
	"github.com/vttlabs/lorekeeper/internal/host"
)

// World holds the shared state all sessions observe: the settings map and
// the set of connected sessions.
type World struct {
	mu       sync.Mutex
	settings map[string][]byte
	sessions map[*Session]struct{}
	nextID   int
}

func NewWorld() *World {
	return &World{
		settings: make(map[string][]byte),
		sessions: make(map[*Session]struct{}),
	}
}

// Join connects a new replica session for the given user.
func (w *World) Join(user host.User) *Session {
	w.mu.Lock()
	defer w.mu.Unlock()

	s := &Session{
		world:       w,
		user:        user,
		watchers:    make(map[int]func(string)),
		subscribers: make(map[int]func([]byte)),
		disconnects: make(map[int]func(string)),
	}
	w.sessions[s] = struct{}{}
	return s
}

func (w *World) snapshotSessions() []*Session {
	out := make([]*Session, 0, len(w.sessions))
	for s := range w.sessions {
		out = append(out, s)
	}
	return out
}

// Session is one replica's connection to the world. It implements
// host.Session and the three capability interfaces behind it.
type Session struct {
	world *World
	user  host.User

	mu          sync.Mutex
	watchers    map[int]func(string)
	subscribers map[int]func([]byte)
	disconnects map[int]func(string)
	nextID      int
}

var _ host.Session = (*Session)(nil)

func (s *Session) Settings() host.Settings { return s }
func (s *Session) Channel() host.Channel   { return s }
func (s *Session) Roster() host.Roster     { return s }

// Disconnect removes the session from the world and fires the host-level
// disconnect signal on every remaining session.
func (s *Session) Disconnect() {
	s.world.mu.Lock()
	delete(s.world.sessions, s)
	peers := s.world.snapshotSessions()
	s.world.mu.Unlock()

	for _, p := range peers {
		p.notifyDisconnect(s.user.ID)
	}
}

func (s *Session) Get(ctx context.Context, key string) ([]byte, error) {
	s.world.mu.Lock()
	defer s.world.mu.Unlock()

	value, ok := s.world.settings[key]
	if !ok {
		return nil, common.ErrorNotFound
	}
	out := make([]byte, len(value))
	copy(out, value)
	return out, nil
}

func (s *Session) Set(ctx context.Context, key string, value []byte) error {
	stored := make([]byte, len(value))
	copy(stored, value)

	s.world.mu.Lock()
	s.world.settings[key] = stored
	peers := s.world.snapshotSessions()
	s.world.mu.Unlock()

	// Setting-change notification reaches every replica, the writer included.
	for _, p := range peers {
		p.notifySetting(key)
	}
	return nil
}

func (s *Session) Watch(fn func(key string)) (cancel func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.watchers[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.watchers, id)
		s.mu.Unlock()
	}
}

func (s *Session) Publish(ctx context.Context, payload []byte) error {
	s.world.mu.Lock()
	peers := s.world.snapshotSessions()
	s.world.mu.Unlock()

	for _, p := range peers {
		p.deliver(payload)
	}
	return nil
}

func (s *Session) Subscribe(fn func(payload []byte)) (cancel func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subscribers[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subscribers, id)
		s.mu.Unlock()
	}
}

func (s *Session) Self() host.User { return s.user }

func (s *Session) Connected() []host.User {
	s.world.mu.Lock()
	defer s.world.mu.Unlock()

	out := make([]host.User, 0, len(s.world.sessions))
	for p := range s.world.sessions {
		out = append(out, p.user)
	}
	return out
}

func (s *Session) WatchDisconnects(fn func(userID string)) (cancel func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.disconnects[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.disconnects, id)
		s.mu.Unlock()
	}
}

func (s *Session) notifySetting(key string) {
	for _, fn := range s.callbacksSetting() {
		fn(key)
	}
}

func (s *Session) deliver(payload []byte) {
	data := make([]byte, len(payload))
	copy(data, payload)
	for _, fn := range s.callbacksSubscribe() {
		fn(data)
	}
}

func (s *Session) notifyDisconnect(userID string) {
	for _, fn := range s.callbacksDisconnect() {
		fn(userID)
	}
}

func (s *Session) callbacksSetting() []func(string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]func(string), 0, len(s.watchers))
	for _, fn := range s.watchers {
		out = append(out, fn)
	}
	return out
}

func (s *Session) callbacksSubscribe() []func([]byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]func([]byte), 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		out = append(out, fn)
	}
	return out
}

func (s *Session) callbacksDisconnect() []func(string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]func(string), 0, len(s.disconnects))
	for _, fn := range s.disconnects {
		out = append(out, fn)
	}
	return out
}
