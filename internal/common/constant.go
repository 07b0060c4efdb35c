// Package common contains shared constants and sentinel errors used across
// Lorekeeper components.
package common

const (
	// Settings keys under which the authoritative state lives in the host's
	// world-scoped key-value store. Both hold bare JSON arrays, unwrapped.
	SettingKeyEntries    = "wikiEntries"
	SettingKeyCategories = "wikiCategories"

	// ChannelName is the single shared broadcast topic for the whole module.
	ChannelName = "lorekeeper"

	// MaxCommentLen bounds a single comment's text, in characters.
	MaxCommentLen = 10000

	// MaxCommentsPerEntry bounds the comment thread on one entry.
	MaxCommentsPerEntry = 500
)

// AuthHeaderName is the HTTP header carrying the join token on API requests.
const AuthHeaderName = "Authorization"
