// Package protocol defines the JSON messages exchanged on the module's
// shared broadcast channel. Every message is an object with an "action"
// discriminator; unknown actions are reported as errors so the dispatcher
// can drop them without dying.
package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/vttlabs/lorekeeper/internal/wiki"
)

const (
	// ActionRequestSave relays a full proposed collection to connected GMs.
	ActionRequestSave = "requestSave"

	// ActionRefresh tells every replica to re-derive its view from a fresh
	// store read.
	ActionRefresh = "refresh"

	// ActionCategoriesChanged tells every replica the category set changed.
	ActionCategoriesChanged = "categoriesChanged"

	// ActionEditingStart / ActionEditingStop drive the soft-lock presence map.
	ActionEditingStart = "editingStart"
	ActionEditingStop  = "editingStop"
)

// Message is the envelope for all channel traffic. Only the fields relevant
// to the action are populated.
type Message struct {
	Action   string       `json:"action"`
	Entries  []wiki.Entry `json:"entries,omitempty"`
	EntryID  string       `json:"entryId,omitempty"`
	UserID   string       `json:"userId,omitempty"`
	UserName string       `json:"userName,omitempty"`
}

// Encode serializes a message for publication.
func Encode(m Message) ([]byte, error) {
	return json.Marshal(m)
}

// Decode parses a channel payload. Malformed JSON and unknown actions are
// returned as errors; the payload is otherwise taken at face value.
func Decode(data []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return Message{}, fmt.Errorf("malformed channel payload: %w", err)
	}
	switch m.Action {
	case ActionRequestSave, ActionRefresh, ActionCategoriesChanged,
		ActionEditingStart, ActionEditingStop:
		return m, nil
	default:
		return Message{}, fmt.Errorf("unknown channel action %q", m.Action)
	}
}

// RequestSave builds the relay message carrying a full proposed collection.
func RequestSave(entries []wiki.Entry) Message {
	return Message{Action: ActionRequestSave, Entries: entries}
}

// Refresh builds the post-commit convergence signal.
func Refresh() Message {
	return Message{Action: ActionRefresh}
}

// CategoriesChanged builds the category-set convergence signal.
func CategoriesChanged() Message {
	return Message{Action: ActionCategoriesChanged}
}

// EditingStart announces a soft lock on an existing entry.
func EditingStart(entryID, userID, userName string) Message {
	return Message{Action: ActionEditingStart, EntryID: entryID, UserID: userID, UserName: userName}
}

// EditingStop releases a soft lock; receivers honor it only if the user id
// matches the current holder.
func EditingStop(entryID, userID string) Message {
	return Message{Action: ActionEditingStop, EntryID: entryID, UserID: userID}
}
