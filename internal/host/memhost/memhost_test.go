package memhost

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vttlabs/lorekeeper/internal/common"
	"github.com/vttlabs/lorekeeper/internal/host"
)

func TestSettings_GetSet(t *testing.T) {
	w := NewWorld()
	a := w.Join(host.User{ID: "u1", Name: "Alice", Role: host.RoleGM})
	b := w.Join(host.User{ID: "u2", Name: "Bob", Role: host.RolePlayer})
	ctx := context.Background()

	_, err := a.Settings().Get(ctx, "missing")
	require.ErrorIs(t, err, common.ErrorNotFound)

	var notified []string
	b.Settings().Watch(func(key string) { notified = append(notified, key) })

	require.NoError(t, a.Settings().Set(ctx, "k", []byte(`[1]`)))

	got, err := b.Settings().Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, []byte(`[1]`), got)
	require.Equal(t, []string{"k"}, notified)

	// Mutating the returned slice must not reach the stored value.
	got[1] = 'x'
	again, err := b.Settings().Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, []byte(`[1]`), again)
}

func TestChannel_EchoesToSender(t *testing.T) {
	w := NewWorld()
	a := w.Join(host.User{ID: "u1", Role: host.RoleGM})
	b := w.Join(host.User{ID: "u2", Role: host.RolePlayer})

	var gotA, gotB [][]byte
	a.Channel().Subscribe(func(p []byte) { gotA = append(gotA, p) })
	b.Channel().Subscribe(func(p []byte) { gotB = append(gotB, p) })

	require.NoError(t, a.Channel().Publish(context.Background(), []byte(`{"action":"refresh"}`)))

	require.Len(t, gotA, 1)
	require.Len(t, gotB, 1)
}

func TestRoster_DisconnectSignal(t *testing.T) {
	w := NewWorld()
	a := w.Join(host.User{ID: "u1", Role: host.RoleGM})
	b := w.Join(host.User{ID: "u2", Role: host.RolePlayer})

	require.Len(t, a.Roster().Connected(), 2)

	var dropped []string
	a.Roster().WatchDisconnects(func(id string) { dropped = append(dropped, id) })

	b.Disconnect()

	require.Equal(t, []string{"u2"}, dropped)
	require.Len(t, a.Roster().Connected(), 1)
	require.Equal(t, "u1", a.Roster().Self().ID)
}
