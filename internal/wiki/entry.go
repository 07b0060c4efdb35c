// Package wiki defines the shared entry collection model: entries,
// comments, categories, deep copies and validation rules.
package wiki

import (
	"time"

	"github.com/google/uuid"
)

// Entry is a single wiki page. The whole collection is serialized as a bare
// JSON array under the host's wikiEntries setting; Content is opaque HTML
// owned entirely by the entry.
type Entry struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Category      string    `json:"category"`
	Content       string    `json:"content"`
	Hidden        bool      `json:"hidden"`
	PendingDelete bool      `json:"pendingDelete"`
	CreatedAt     int64     `json:"createdAt"`
	UpdatedAt     int64     `json:"updatedAt"`
	CreatedBy     string    `json:"createdBy"`
	UpdatedBy     string    `json:"updatedBy"`
	GMNotes       string    `json:"gmNotes"`
	Comments      []Comment `json:"comments"`
}

// Comment is a reply attached to one entry. UserID is a stable identifier;
// AuthorName is a display string and must not be used for ownership checks.
type Comment struct {
	ID         string `json:"id"`
	AuthorName string `json:"authorName"`
	UserID     string `json:"userId"`
	Text       string `json:"text"`
	CreatedAt  int64  `json:"createdAt"`
}

// NewID returns a fresh opaque identifier for entries and comments.
func NewID() string {
	return uuid.NewString()
}

// Now returns the current time in epoch milliseconds, the timestamp unit
// used throughout the stored model.
func Now() int64 {
	return time.Now().UnixMilli()
}

// Clone returns a deep copy of the entry, including its comment slice.
func (e Entry) Clone() Entry {
	out := e
	if e.Comments != nil {
		out.Comments = make([]Comment, len(e.Comments))
		copy(out.Comments, e.Comments)
	}
	return out
}

// CloneEntries deep-copies a collection. A nil input yields an empty,
// non-nil slice so callers can append without care.
func CloneEntries(entries []Entry) []Entry {
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Clone())
	}
	return out
}

// FindByID returns the index of the entry with the given id, or -1.
func FindByID(entries []Entry, id string) int {
	for i := range entries {
		if entries[i].ID == id {
			return i
		}
	}
	return -1
}
