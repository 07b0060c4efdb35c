package remote

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vttlabs/lorekeeper/internal/common"
	"github.com/vttlabs/lorekeeper/internal/host"
	"github.com/vttlabs/lorekeeper/internal/logging"
	"github.com/vttlabs/lorekeeper/internal/server/auth"
	"github.com/vttlabs/lorekeeper/internal/server/httpapi"
	"github.com/vttlabs/lorekeeper/internal/server/hub"
	"github.com/vttlabs/lorekeeper/internal/server/settings"
)

var testSecret = []byte("test-secret")

func testLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func startServer(t *testing.T) *httptest.Server {
	t.Helper()

	h := hub.New(testSecret, testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = h.Run(ctx) }()
	t.Cleanup(cancel)

	api := httpapi.New(testSecret, settings.NewMemoryRepository(), h, nil, testLogger())
	srv := httptest.NewServer(api.Router())
	t.Cleanup(srv.Close)
	return srv
}

func join(t *testing.T, srv *httptest.Server, user host.User, world string) *Session {
	t.Helper()

	token, err := auth.GenerateToken(user, world, testSecret, time.Hour)
	require.NoError(t, err)

	sess, err := Dial(context.Background(), srv.URL, token, testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { sess.Close() })
	return sess
}

func TestDialRejectsBadToken(t *testing.T) {
	srv := startServer(t)

	_, err := Dial(context.Background(), srv.URL, "garbage", testLogger())
	require.ErrorIs(t, err, common.ErrInvalidToken)
}

func TestSelfAndRosterFromWelcome(t *testing.T) {
	srv := startServer(t)

	sess := join(t, srv, host.User{ID: "u-g", Name: "Gwen", Role: host.RoleGM}, "w1")

	self := sess.Roster().Self()
	assert.Equal(t, "u-g", self.ID)
	assert.True(t, self.Role.IsGM())
	assert.Len(t, sess.Roster().Connected(), 1)
}

func TestSettingsRoundTripAndWatch(t *testing.T) {
	ctx := context.Background()
	srv := startServer(t)

	gm := join(t, srv, host.User{ID: "u-g", Name: "Gwen", Role: host.RoleGM}, "w1")
	player := join(t, srv, host.User{ID: "u-p", Name: "Pat", Role: host.RolePlayer}, "w1")

	_, err := player.Settings().Get(ctx, "wikiEntries")
	require.ErrorIs(t, err, common.ErrorNotFound)

	keys := make(chan string, 8)
	cancel := player.Settings().Watch(func(key string) { keys <- key })
	defer cancel()

	require.NoError(t, gm.Settings().Set(ctx, "wikiEntries", []byte(`[]`)))

	select {
	case key := <-keys:
		assert.Equal(t, "wikiEntries", key)
	case <-time.After(2 * time.Second):
		t.Fatal("no setting notification")
	}

	got, err := player.Settings().Get(ctx, "wikiEntries")
	require.NoError(t, err)
	assert.Equal(t, []byte(`[]`), got)

	// The transport enforces the write boundary too.
	require.ErrorIs(t, player.Settings().Set(ctx, "wikiEntries", []byte(`{}`)), common.ErrPermissionDenied)
}

func TestPublishEchoesToSender(t *testing.T) {
	ctx := context.Background()
	srv := startServer(t)

	gm := join(t, srv, host.User{ID: "u-g", Name: "Gwen", Role: host.RoleGM}, "w1")
	player := join(t, srv, host.User{ID: "u-p", Name: "Pat", Role: host.RolePlayer}, "w1")

	gmGot := make(chan []byte, 1)
	playerGot := make(chan []byte, 1)
	cancelGM := gm.Channel().Subscribe(func(p []byte) { gmGot <- p })
	defer cancelGM()
	cancelP := player.Channel().Subscribe(func(p []byte) { playerGot <- p })
	defer cancelP()

	require.NoError(t, player.Channel().Publish(ctx, []byte(`{"action":"refresh"}`)))

	for name, ch := range map[string]chan []byte{"gm": gmGot, "player": playerGot} {
		select {
		case p := <-ch:
			assert.JSONEq(t, `{"action":"refresh"}`, string(p), name)
		case <-time.After(2 * time.Second):
			t.Fatalf("%s got no payload", name)
		}
	}
}

// Traffic on a different topic of the same hub never reaches this module's
// subscribers.
func TestForeignChannelIsIgnored(t *testing.T) {
	ctx := context.Background()
	srv := startServer(t)

	sess := join(t, srv, host.User{ID: "u-g", Name: "Gwen", Role: host.RoleGM}, "w1")

	got := make(chan []byte, 8)
	cancel := sess.Channel().Subscribe(func(p []byte) { got <- p })
	defer cancel()

	// A raw peer publishing on another module's topic.
	token, err := auth.GenerateToken(host.User{ID: "u-x", Name: "X", Role: host.RolePlayer}, "w1", testSecret, time.Hour)
	require.NoError(t, err)
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=" + url.QueryEscape(token)
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	frame, err := json.Marshal(hub.Frame{Kind: hub.KindPublish, Channel: "dice-roller", Payload: json.RawMessage(`{"roll":20}`)})
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, frame))

	select {
	case p := <-got:
		t.Fatalf("foreign payload delivered: %s", p)
	case <-time.After(300 * time.Millisecond):
	}

	// The session's own topic still flows.
	require.NoError(t, sess.Channel().Publish(ctx, []byte(`{"action":"refresh"}`)))
	select {
	case p := <-got:
		assert.JSONEq(t, `{"action":"refresh"}`, string(p))
	case <-time.After(2 * time.Second):
		t.Fatal("own topic payload not delivered")
	}
}

func TestDisconnectSignal(t *testing.T) {
	srv := startServer(t)

	gm := join(t, srv, host.User{ID: "u-g", Name: "Gwen", Role: host.RoleGM}, "w1")
	player := join(t, srv, host.User{ID: "u-p", Name: "Pat", Role: host.RolePlayer}, "w1")

	require.Eventually(t, func() bool {
		return len(gm.Roster().Connected()) == 2
	}, 2*time.Second, 10*time.Millisecond)

	gone := make(chan string, 1)
	cancel := gm.Roster().WatchDisconnects(func(id string) { gone <- id })
	defer cancel()

	player.Close()

	select {
	case id := <-gone:
		assert.Equal(t, "u-p", id)
	case <-time.After(2 * time.Second):
		t.Fatal("no disconnect signal")
	}
	assert.Len(t, gm.Roster().Connected(), 1)
}
