package wiki

// Category is a tag with display metadata. ID is stable and referenced by
// Entry.Category; entries holding a stale id degrade to "uncategorized" in
// filtering rather than failing.
type Category struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Icon  string `json:"icon"`
}

// DefaultCategories returns the built-in category set used when the stored
// one is absent, empty or unreadable.
func DefaultCategories() []Category {
	return []Category{
		{ID: "lore", Label: "Lore", Icon: "book"},
		{ID: "locations", Label: "Locations", Icon: "map"},
		{ID: "npcs", Label: "NPCs", Icon: "users"},
		{ID: "factions", Label: "Factions", Icon: "flag"},
		{ID: "quests", Label: "Quests", Icon: "scroll"},
		{ID: "items", Label: "Items", Icon: "gem"},
		{ID: "session-notes", Label: "Session Notes", Icon: "pen"},
	}
}

// CloneCategories deep-copies a category set.
func CloneCategories(cats []Category) []Category {
	out := make([]Category, len(cats))
	copy(out, cats)
	return out
}

// HasCategory reports whether id names a configured category.
func HasCategory(cats []Category, id string) bool {
	for _, c := range cats {
		if c.ID == id {
			return true
		}
	}
	return false
}
