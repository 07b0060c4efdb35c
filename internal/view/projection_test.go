package view

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vttlabs/lorekeeper/internal/host"
	"github.com/vttlabs/lorekeeper/internal/presence"
	"github.com/vttlabs/lorekeeper/internal/wiki"
)

func sample() ([]wiki.Entry, []wiki.Category) {
	return []wiki.Entry{
		{ID: "e1", Title: "Dragon", Category: "npcs", Content: "A big one.", GMNotes: "secretly friendly"},
		{ID: "e2", Title: "Hidden Keep", Category: "locations", Hidden: true, GMNotes: "trap inside"},
		{ID: "e3", Title: "Old Map", Category: "gone-category"},
	}, wiki.DefaultCategories()
}

func titles(entries []Entry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Title)
	}
	return out
}

func TestProject_HiddenRedactedForPlayers(t *testing.T) {
	entries, cats := sample()

	player := Project(entries, cats, host.RolePlayer, State{}, nil)
	require.Equal(t, []string{"Dragon", "Old Map"}, titles(player.Entries))

	gm := Project(entries, cats, host.RoleGM, State{}, nil)
	require.Equal(t, []string{"Dragon", "Hidden Keep", "Old Map"}, titles(gm.Entries))
}

func TestProject_HiddenAbsentFromPlayerSearch(t *testing.T) {
	entries, cats := sample()

	got := Project(entries, cats, host.RolePlayer, State{Search: "keep"}, nil)
	require.Empty(t, got.Entries)

	got = Project(entries, cats, host.RoleGM, State{Search: "keep"}, nil)
	require.Equal(t, []string{"Hidden Keep"}, titles(got.Entries))
}

func TestProject_GMNotesNeverReachPlayers(t *testing.T) {
	entries, cats := sample()

	got := Project(entries, cats, host.RolePlayer, State{}, nil)
	for _, e := range got.Entries {
		require.Empty(t, e.GMNotes)
	}

	data, err := json.Marshal(got.Entries)
	require.NoError(t, err)
	require.NotContains(t, string(data), "gmNotes")

	gm := Project(entries, cats, host.RoleGM, State{}, nil)
	require.Equal(t, "secretly friendly", gm.Entries[0].GMNotes)
}

func TestProject_SelectionAutoClear(t *testing.T) {
	entries, cats := sample()

	// Selected entry turns hidden: player selection clears, GM keeps it.
	got := Project(entries, cats, host.RolePlayer, State{SelectedID: "e2"}, nil)
	require.Empty(t, got.SelectedID)

	got = Project(entries, cats, host.RoleGM, State{SelectedID: "e2"}, nil)
	require.Equal(t, "e2", got.SelectedID)

	// Deleted entry clears for everyone.
	got = Project(entries[:2], cats, host.RoleGM, State{SelectedID: "e3"}, nil)
	require.Empty(t, got.SelectedID)

	// A search that filters the selected entry out does not clear it.
	got = Project(entries, cats, host.RolePlayer, State{SelectedID: "e1", Search: "map"}, nil)
	require.Equal(t, "e1", got.SelectedID)
}

func TestProject_StaleCategoryDegradesToUncategorized(t *testing.T) {
	entries, cats := sample()

	got := Project(entries, cats, host.RolePlayer, State{Category: Uncategorized}, nil)
	require.Equal(t, []string{"Old Map"}, titles(got.Entries))

	got = Project(entries, cats, host.RolePlayer, State{Category: "npcs"}, nil)
	require.Equal(t, []string{"Dragon"}, titles(got.Entries))
}

func TestProject_PresenceAnnotation(t *testing.T) {
	entries, cats := sample()
	locks := map[string]presence.Editor{"e1": {UserID: "u2", UserName: "Bob"}}

	got := Project(entries, cats, host.RolePlayer, State{}, locks)
	require.Equal(t, "Bob", got.Entries[0].EditedBy)
	require.Empty(t, got.Entries[1].EditedBy)
}

func TestResolveTitle(t *testing.T) {
	entries, _ := sample()

	e, ok := ResolveTitle(entries, host.RolePlayer, "dragon")
	require.True(t, ok)
	require.Equal(t, "e1", e.ID)

	// Hidden target behaves as nonexistent for a player, resolves for a GM.
	_, ok = ResolveTitle(entries, host.RolePlayer, "Hidden Keep")
	require.False(t, ok)
	e, ok = ResolveTitle(entries, host.RoleGM, "hidden keep")
	require.True(t, ok)
	require.Equal(t, "e2", e.ID)

	_, ok = ResolveTitle(entries, host.RoleGM, "Drag")
	require.False(t, ok, "match is exact, not prefix")
}

func TestResolveTitle_HiddenDoesNotShadowVisibleDuplicate(t *testing.T) {
	entries := []wiki.Entry{
		{ID: "e1", Title: "Dragon", Hidden: true},
		{ID: "e2", Title: "Dragon"},
	}

	// The hidden match is skipped, not a dead end; the scan reaches the
	// visible entry with the same title.
	e, ok := ResolveTitle(entries, host.RolePlayer, "dragon")
	require.True(t, ok)
	require.Equal(t, "e2", e.ID)

	// A GM resolves the first match.
	e, ok = ResolveTitle(entries, host.RoleGM, "dragon")
	require.True(t, ok)
	require.Equal(t, "e1", e.ID)
}

func TestRenderRefs(t *testing.T) {
	entries, _ := sample()
	content := "See [[Dragon]] near the [[Hidden Keep]], not the [[Lost City]]."

	segs := RenderRefs(content, entries, host.RolePlayer)
	require.Len(t, segs, 7)

	var refs []Segment
	for _, s := range segs {
		if s.IsRef {
			refs = append(refs, s)
		}
	}
	require.Len(t, refs, 3)

	require.Equal(t, "e1", refs[0].EntryID)
	require.False(t, refs[0].Broken)

	// Hidden entry reference is broken for players, resolved for GM.
	require.True(t, refs[1].Broken)
	require.True(t, refs[2].Broken, "nonexistent title is broken for everyone")

	gmSegs := RenderRefs(content, entries, host.RoleGM)
	var gmRefs []Segment
	for _, s := range gmSegs {
		if s.IsRef {
			gmRefs = append(gmRefs, s)
		}
	}
	require.Equal(t, "e2", gmRefs[1].EntryID)
	require.False(t, gmRefs[1].Broken)

	// Plain text survives around the refs.
	require.True(t, strings.HasPrefix(segs[0].Text, "See "))
}
