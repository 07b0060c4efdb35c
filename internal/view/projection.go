// Package view builds role-redacted projections of the entry collection for
// rendering. Redaction is structural: hidden entries are absent from a
// player's projection entirely, and gmNotes never reaches non-GM view logic
// in any form. The host application owns the actual rendering.
package view

import (
	"sort"
	"strings"

	"github.com/vttlabs/lorekeeper/internal/host"
	"github.com/vttlabs/lorekeeper/internal/presence"
	"github.com/vttlabs/lorekeeper/internal/wiki"
)

// Uncategorized is the filter bucket entries fall into when their category
// id no longer names a configured category.
const Uncategorized = "uncategorized"

// Entry is the projected form of a wiki entry. GMNotes is populated only in
// GM-role projections; for players the field stays zero and is omitted from
// any serialized form.
type Entry struct {
	ID            string         `json:"id"`
	Title         string         `json:"title"`
	Category      string         `json:"category"`
	Content       string         `json:"content"`
	Hidden        bool           `json:"hidden"`
	PendingDelete bool           `json:"pendingDelete"`
	CreatedAt     int64          `json:"createdAt"`
	UpdatedAt     int64          `json:"updatedAt"`
	CreatedBy     string         `json:"createdBy"`
	UpdatedBy     string         `json:"updatedBy"`
	GMNotes       string         `json:"gmNotes,omitempty"`
	Comments      []wiki.Comment `json:"comments"`

	// EditedBy carries the display name of the current soft-lock holder,
	// empty when nobody has the entry open.
	EditedBy string `json:"editedBy,omitempty"`
}

// State is the per-replica UI state a projection folds in.
type State struct {
	SelectedID string
	Search     string
	Category   string
}

// View is what the rendering layer consumes.
type View struct {
	Entries    []Entry
	Categories []wiki.Category
	SelectedID string
}

// Project builds the redacted, filtered, presence-annotated view for one
// role. Selection is auto-cleared when the selected entry is no longer
// visible to this role (hidden, deleted), independent of search and
// category filters.
func Project(entries []wiki.Entry, cats []wiki.Category, role host.Role, state State, locks map[string]presence.Editor) View {
	visible := make([]wiki.Entry, 0, len(entries))
	for _, e := range entries {
		if e.Hidden && !role.IsGM() {
			continue
		}
		visible = append(visible, e)
	}

	selected := ""
	if state.SelectedID != "" && wiki.FindByID(visible, state.SelectedID) >= 0 {
		selected = state.SelectedID
	}

	search := strings.ToLower(strings.TrimSpace(state.Search))
	out := make([]Entry, 0, len(visible))
	for _, e := range visible {
		if state.Category != "" && bucketFor(e, cats) != state.Category {
			continue
		}
		if search != "" && !matches(e, search) {
			continue
		}
		out = append(out, project(e, role, locks))
	}

	sort.Slice(out, func(i, j int) bool {
		return strings.ToLower(out[i].Title) < strings.ToLower(out[j].Title)
	})

	return View{
		Entries:    out,
		Categories: wiki.CloneCategories(cats),
		SelectedID: selected,
	}
}

func project(e wiki.Entry, role host.Role, locks map[string]presence.Editor) Entry {
	out := Entry{
		ID:            e.ID,
		Title:         e.Title,
		Category:      e.Category,
		Content:       e.Content,
		Hidden:        e.Hidden,
		PendingDelete: e.PendingDelete,
		CreatedAt:     e.CreatedAt,
		UpdatedAt:     e.UpdatedAt,
		CreatedBy:     e.CreatedBy,
		UpdatedBy:     e.UpdatedBy,
		Comments:      append([]wiki.Comment(nil), e.Comments...),
	}
	if role.IsGM() {
		out.GMNotes = e.GMNotes
	}
	if holder, ok := locks[e.ID]; ok {
		out.EditedBy = holder.UserName
	}
	return out
}

func bucketFor(e wiki.Entry, cats []wiki.Category) string {
	if wiki.HasCategory(cats, e.Category) {
		return e.Category
	}
	return Uncategorized
}

func matches(e wiki.Entry, search string) bool {
	return strings.Contains(strings.ToLower(e.Title), search) ||
		strings.Contains(strings.ToLower(e.Content), search)
}
