package client

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vttlabs/lorekeeper/internal/gateway"
	"github.com/vttlabs/lorekeeper/internal/host"
	"github.com/vttlabs/lorekeeper/internal/host/memhost"
	"github.com/vttlabs/lorekeeper/internal/logging"
	"github.com/vttlabs/lorekeeper/internal/view"
	"github.com/vttlabs/lorekeeper/internal/wiki"
)

func testLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

type testReplica struct {
	sess    *memhost.Session
	replica *Replica
	cancel  context.CancelFunc
}

func joinReplica(t *testing.T, world *memhost.World, user host.User) *testReplica {
	t.Helper()

	sess := world.Join(user)
	r := NewReplica(sess, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = r.Run(ctx) }()
	t.Cleanup(cancel)

	return &testReplica{sess: sess, replica: r, cancel: cancel}
}

// A player's save with no GM online is blocked, the drafted entry survives
// locally, and a retry after a GM joins converges every replica on the new
// entry.
func TestBlockedSaveRetriesAfterGMJoins(t *testing.T) {
	ctx := context.Background()
	world := memhost.NewWorld()

	player := joinReplica(t, world, host.User{ID: "u-p", Name: "Pat", Role: host.RolePlayer})

	draft, res, err := player.replica.Ops.CreateEntry(ctx, "Dragon", "npcs", "Fire-breathing.")
	require.NoError(t, err)
	require.Equal(t, gateway.Blocked, res)

	// Nothing reached storage.
	entries, err := player.replica.Store.Read(ctx)
	require.NoError(t, err)
	require.Empty(t, entries)

	gm := joinReplica(t, world, host.User{ID: "u-g", Name: "Gwen", Role: host.RoleGM})

	// Retry with the retained draft.
	entries, err = player.replica.Store.Read(ctx)
	require.NoError(t, err)
	entries = append(entries, draft)
	res, err = player.replica.Gateway.Commit(ctx, entries)
	require.NoError(t, err)
	require.Equal(t, gateway.Relayed, res)

	for _, r := range []*testReplica{player, gm} {
		require.Eventually(t, func() bool {
			v, err := r.replica.Render(ctx, view.State{})
			return err == nil && len(v.Entries) == 1 && v.Entries[0].Title == "Dragon"
		}, time.Second, 5*time.Millisecond)

		v, err := r.replica.Render(ctx, view.State{Category: "npcs"})
		require.NoError(t, err)
		require.Len(t, v.Entries, 1)
		assert.Equal(t, "Dragon", v.Entries[0].Title)
	}
}

// Hiding an entry removes it from player projections everywhere and clears a
// player selection pointing at it.
func TestHiddenEntryDisappearsFromPlayers(t *testing.T) {
	ctx := context.Background()
	world := memhost.NewWorld()

	gm := joinReplica(t, world, host.User{ID: "u-g", Name: "Gwen", Role: host.RoleGM})
	player := joinReplica(t, world, host.User{ID: "u-p", Name: "Pat", Role: host.RolePlayer})

	e, res, err := gm.replica.Ops.CreateEntry(ctx, "Secret Door", "locations", "Behind the shelf.")
	require.NoError(t, err)
	require.Equal(t, gateway.Committed, res)

	require.Eventually(t, func() bool {
		v, err := player.replica.Render(ctx, view.State{})
		return err == nil && len(v.Entries) == 1
	}, time.Second, 5*time.Millisecond)

	_, res, err = gm.replica.Ops.CreateEntry(ctx, "Tavern", "locations", "")
	require.NoError(t, err)
	require.Equal(t, gateway.Committed, res)

	res, err = gm.replica.Ops.SetHidden(ctx, e.ID, true)
	require.NoError(t, err)
	require.Equal(t, gateway.Committed, res)

	require.Eventually(t, func() bool {
		v, err := player.replica.Render(ctx, view.State{SelectedID: e.ID})
		return err == nil && len(v.Entries) == 1 && v.Entries[0].Title == "Tavern" && v.SelectedID == ""
	}, time.Second, 5*time.Millisecond)

	// The GM still sees it, and Entry() withholds it from the player.
	v, err := gm.replica.Render(ctx, view.State{SelectedID: e.ID})
	require.NoError(t, err)
	assert.Len(t, v.Entries, 2)
	assert.Equal(t, e.ID, v.SelectedID)

	_, ok, err := player.replica.Entry(ctx, e.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

// GM notes never reach a player through the direct-selection path, and a
// player's round-tripped save does not wipe them.
func TestGMNotesWithheldFromPlayers(t *testing.T) {
	ctx := context.Background()
	world := memhost.NewWorld()

	gm := joinReplica(t, world, host.User{ID: "u-g", Name: "Gwen", Role: host.RoleGM})
	player := joinReplica(t, world, host.User{ID: "u-p", Name: "Pat", Role: host.RolePlayer})

	e, _, err := gm.replica.Ops.CreateEntry(ctx, "Dragon", "npcs", "Fire-breathing.")
	require.NoError(t, err)
	res, err := gm.replica.Ops.SetGMNotes(ctx, e.ID, "weak to cold iron")
	require.NoError(t, err)
	require.Equal(t, gateway.Committed, res)

	require.Eventually(t, func() bool {
		_, ok, err := player.replica.Entry(ctx, e.ID)
		return err == nil && ok
	}, time.Second, 5*time.Millisecond)

	got, ok, err := player.replica.Entry(ctx, e.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Empty(t, got.GMNotes)

	// The player edits what it received and relays. The notes survive the
	// round trip because the commit restores them from the stored copy.
	got.Content = "Fire-breathing. Scales like armor."
	res, err = player.replica.Ops.UpdateEntry(ctx, got)
	require.NoError(t, err)
	require.Equal(t, gateway.Relayed, res)

	require.Eventually(t, func() bool {
		fromGM, ok, err := gm.replica.Entry(ctx, e.ID)
		return err == nil && ok && fromGM.Content == "Fire-breathing. Scales like armor." &&
			fromGM.GMNotes == "weak to cold iron"
	}, time.Second, 5*time.Millisecond)
}

// An editing announcement annotates the entry on every replica, and the
// holder's disconnect clears the lock without any broadcast.
func TestEditingPresenceClearedOnDisconnect(t *testing.T) {
	ctx := context.Background()
	world := memhost.NewWorld()

	gm := joinReplica(t, world, host.User{ID: "u-g", Name: "Gwen", Role: host.RoleGM})
	player := joinReplica(t, world, host.User{ID: "u-p", Name: "Pat", Role: host.RolePlayer})

	e, _, err := gm.replica.Ops.CreateEntry(ctx, "Dragon", "npcs", "")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		_, ok, err := player.replica.Entry(ctx, e.ID)
		return err == nil && ok
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, player.replica.Dispatcher.AnnounceEditingStart(ctx, e.ID))

	require.Eventually(t, func() bool {
		holder, ok := gm.replica.Tracker.Holder(e.ID)
		return ok && holder.UserName == "Pat"
	}, time.Second, 5*time.Millisecond)

	v, err := gm.replica.Render(ctx, view.State{})
	require.NoError(t, err)
	require.Len(t, v.Entries, 1)
	assert.Equal(t, "Pat", v.Entries[0].EditedBy)

	player.sess.Disconnect()

	require.Eventually(t, func() bool {
		_, ok := gm.replica.Tracker.Holder(e.ID)
		return !ok
	}, time.Second, 5*time.Millisecond)
}

// A relayed comment lands through the GM and shows up on the author's own
// replica via the echoed refresh.
func TestPlayerCommentRelaysThroughGM(t *testing.T) {
	ctx := context.Background()
	world := memhost.NewWorld()

	gm := joinReplica(t, world, host.User{ID: "u-g", Name: "Gwen", Role: host.RoleGM})
	player := joinReplica(t, world, host.User{ID: "u-p", Name: "Pat", Role: host.RolePlayer})

	e, _, err := gm.replica.Ops.CreateEntry(ctx, "Dragon", "npcs", "")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		_, ok, err := player.replica.Entry(ctx, e.ID)
		return err == nil && ok
	}, time.Second, 5*time.Millisecond)

	res, err := player.replica.Ops.AddComment(ctx, e.ID, "scary!")
	require.NoError(t, err)
	require.Equal(t, gateway.Relayed, res)

	require.Eventually(t, func() bool {
		got, ok, err := player.replica.Entry(ctx, e.ID)
		return err == nil && ok && len(got.Comments) == 1 && got.Comments[0].UserID == "u-p"
	}, time.Second, 5*time.Millisecond)
}

// Category edits propagate and entries in a removed category fall into the
// uncategorized bucket.
func TestCategoryRemovalMovesEntriesToUncategorized(t *testing.T) {
	ctx := context.Background()
	world := memhost.NewWorld()

	gm := joinReplica(t, world, host.User{ID: "u-g", Name: "Gwen", Role: host.RoleGM})

	_, _, err := gm.replica.Ops.CreateEntry(ctx, "Dragon", "npcs", "")
	require.NoError(t, err)

	cats := gm.replica.Store.ReadCategories(ctx)
	kept := make([]wiki.Category, 0, len(cats))
	for _, c := range cats {
		if c.ID != "npcs" {
			kept = append(kept, c)
		}
	}
	require.NoError(t, gm.replica.Ops.SaveCategories(ctx, kept))

	require.Eventually(t, func() bool {
		v, err := gm.replica.Render(ctx, view.State{Category: view.Uncategorized})
		return err == nil && len(v.Entries) == 1
	}, time.Second, 5*time.Millisecond)
}
