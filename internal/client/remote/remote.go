// Package remote connects a replica to the reference host over a websocket
// plus a small REST surface, and presents the connection through the host
// capability interfaces. The websocket carries the shared channel, roster
// updates and setting-change notifications; settings reads and writes go
// over HTTP.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/vttlabs/lorekeeper/internal/common"
	"github.com/vttlabs/lorekeeper/internal/host"
	"github.com/vttlabs/lorekeeper/internal/logging"
	"github.com/vttlabs/lorekeeper/internal/server/hub"
)

// Session is a live connection to the reference host. It implements
// host.Session; all callbacks fire on the single read-loop goroutine.
type Session struct {
	log        logging.Logger
	httpBase   string
	token      string
	httpClient *http.Client

	conn    *websocket.Conn
	writeMu sync.Mutex

	mu              sync.Mutex
	self            host.User
	users           []host.User
	subscribers     map[int]func(payload []byte)
	settingWatchers map[int]func(key string)
	discWatchers    map[int]func(userID string)
	nextID          int

	done chan struct{}
}

// Dial joins the world the token names. It blocks until the welcome frame
// arrives, so Self and Connected are valid once Dial returns.
func Dial(ctx context.Context, serverURL, token string, log logging.Logger) (*Session, error) {
	base := strings.TrimRight(serverURL, "/")

	wsURL, err := websocketURL(base, token)
	if err != nil {
		return nil, err
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			return nil, common.ErrInvalidToken
		}
		return nil, fmt.Errorf("connecting to host: %w", err)
	}

	s := &Session{
		log:             log.With("module", "remote"),
		httpBase:        base,
		token:           token,
		httpClient:      &http.Client{},
		conn:            conn,
		subscribers:     make(map[int]func([]byte)),
		settingWatchers: make(map[int]func(string)),
		discWatchers:    make(map[int]func(string)),
		done:            make(chan struct{}),
	}

	var welcome hub.Frame
	if err := conn.ReadJSON(&welcome); err != nil {
		conn.Close()
		return nil, fmt.Errorf("reading welcome: %w", err)
	}
	if welcome.Kind != hub.KindWelcome || welcome.Self == nil {
		conn.Close()
		return nil, fmt.Errorf("unexpected first frame %q", welcome.Kind)
	}
	s.self = *welcome.Self
	s.users = welcome.Users

	go s.readLoop()

	return s, nil
}

func websocketURL(base, token string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parsing server url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path = "/ws"
	u.RawQuery = url.Values{"token": {token}}.Encode()
	return u.String(), nil
}

// Close drops the connection. The host reports the disconnect to peers.
func (s *Session) Close() error { return s.conn.Close() }

// Done is closed when the connection to the host is lost.
func (s *Session) Done() <-chan struct{} { return s.done }

func (s *Session) Settings() host.Settings { return settingsAPI{s} }
func (s *Session) Channel() host.Channel   { return channelAPI{s} }
func (s *Session) Roster() host.Roster     { return rosterAPI{s} }

func (s *Session) readLoop() {
	defer close(s.done)

	for {
		var f hub.Frame
		if err := s.conn.ReadJSON(&f); err != nil {
			s.log.Info(context.Background(), "host connection closed", "error", err)
			return
		}

		switch f.Kind {
		case hub.KindMessage:
			// Only this module's topic reaches subscribers; other modules
			// sharing the hub stay invisible.
			if f.Channel != common.ChannelName {
				continue
			}
			for _, fn := range s.snapshotSubscribers() {
				fn(f.Payload)
			}

		case hub.KindSetting:
			for _, fn := range s.snapshotSettingWatchers() {
				fn(f.Key)
			}

		case hub.KindRoster:
			for _, gone := range s.applyRoster(f.Users) {
				for _, fn := range s.snapshotDiscWatchers() {
					fn(gone)
				}
			}
		}
	}
}

// applyRoster swaps in the new roster and returns the ids that left.
func (s *Session) applyRoster(users []host.User) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	present := make(map[string]struct{}, len(users))
	for _, u := range users {
		present[u.ID] = struct{}{}
	}

	var gone []string
	for _, u := range s.users {
		if _, ok := present[u.ID]; !ok {
			gone = append(gone, u.ID)
		}
	}

	s.users = users
	return gone
}

func (s *Session) snapshotSubscribers() []func([]byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]func([]byte), 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		out = append(out, fn)
	}
	return out
}

func (s *Session) snapshotSettingWatchers() []func(string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]func(string), 0, len(s.settingWatchers))
	for _, fn := range s.settingWatchers {
		out = append(out, fn)
	}
	return out
}

func (s *Session) snapshotDiscWatchers() []func(string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]func(string), 0, len(s.discWatchers))
	for _, fn := range s.discWatchers {
		out = append(out, fn)
	}
	return out
}

func register[T any](s *Session, m map[int]T, fn T) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	m[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(m, id)
		s.mu.Unlock()
	}
}

func (s *Session) request(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.httpBase+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set(common.AuthHeaderName, "Bearer "+s.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return s.httpClient.Do(req)
}

type settingsAPI struct{ s *Session }

func (a settingsAPI) Get(ctx context.Context, key string) ([]byte, error) {
	resp, err := a.s.request(ctx, http.MethodGet, "/api/settings/"+url.PathEscape(key), nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return io.ReadAll(resp.Body)
	case http.StatusNotFound:
		return nil, common.ErrorNotFound
	case http.StatusUnauthorized:
		return nil, common.ErrInvalidToken
	default:
		return nil, fmt.Errorf("settings get: %w (status %d)", common.ErrorInternal, resp.StatusCode)
	}
}

func (a settingsAPI) Set(ctx context.Context, key string, value []byte) error {
	resp, err := a.s.request(ctx, http.MethodPut, "/api/settings/"+url.PathEscape(key), value)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusNoContent:
		return nil
	case http.StatusForbidden:
		return common.ErrPermissionDenied
	case http.StatusUnauthorized:
		return common.ErrInvalidToken
	default:
		return fmt.Errorf("settings set: %w (status %d)", common.ErrorInternal, resp.StatusCode)
	}
}

func (a settingsAPI) Watch(fn func(key string)) (cancel func()) {
	return register(a.s, a.s.settingWatchers, fn)
}

type channelAPI struct{ s *Session }

func (a channelAPI) Publish(_ context.Context, payload []byte) error {
	frame, err := json.Marshal(hub.Frame{Kind: hub.KindPublish, Channel: common.ChannelName, Payload: payload})
	if err != nil {
		return err
	}

	a.s.writeMu.Lock()
	defer a.s.writeMu.Unlock()
	return a.s.conn.WriteMessage(websocket.TextMessage, frame)
}

func (a channelAPI) Subscribe(fn func(payload []byte)) (cancel func()) {
	return register(a.s, a.s.subscribers, fn)
}

type rosterAPI struct{ s *Session }

func (a rosterAPI) Self() host.User { return a.s.self }

func (a rosterAPI) Connected() []host.User {
	a.s.mu.Lock()
	defer a.s.mu.Unlock()
	out := make([]host.User, len(a.s.users))
	copy(out, a.s.users)
	return out
}

func (a rosterAPI) WatchDisconnects(fn func(userID string)) (cancel func()) {
	return register(a.s, a.s.discWatchers, fn)
}
