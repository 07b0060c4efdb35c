package protocol

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vttlabs/lorekeeper/internal/wiki"
)

func TestDecode_RoundTrip(t *testing.T) {
	entries := []wiki.Entry{{ID: "e1", Title: "Dragon", Category: "npcs"}}

	data, err := Encode(RequestSave(entries))
	require.NoError(t, err)

	got, err := Decode(data)
	require.NoError(t, err)
	require.Equal(t, ActionRequestSave, got.Action)
	require.Len(t, got.Entries, 1)
	require.Equal(t, "Dragon", got.Entries[0].Title)
}

func TestDecode_Rejects(t *testing.T) {
	_, err := Decode([]byte(`{"action":"format"}`))
	require.Error(t, err)

	_, err = Decode([]byte(`not json`))
	require.Error(t, err)
}

func TestEditingMessages_CarryIdentity(t *testing.T) {
	data, err := Encode(EditingStart("e1", "u1", "Alice"))
	require.NoError(t, err)

	got, err := Decode(data)
	require.NoError(t, err)
	require.Equal(t, "e1", got.EntryID)
	require.Equal(t, "u1", got.UserID)
	require.Equal(t, "Alice", got.UserName)

	data, err = Encode(EditingStop("e1", "u1"))
	require.NoError(t, err)
	got, err = Decode(data)
	require.NoError(t, err)
	require.Equal(t, ActionEditingStop, got.Action)
	require.Empty(t, got.UserName)
}
