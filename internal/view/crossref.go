package view

import (
	"regexp"
	"strings"

	"github.com/vttlabs/lorekeeper/internal/host"
	"github.com/vttlabs/lorekeeper/internal/wiki"
)

// refPattern matches [[Title]] cross references inside entry content.
var refPattern = regexp.MustCompile(`\[\[([^\[\]]+)\]\]`)

// Segment is a piece of rendered content: either plain text or a cross
// reference. A reference whose target does not exist — or is hidden from
// this role — is Broken and renders as a dead link.
type Segment struct {
	Text    string
	IsRef   bool
	EntryID string
	Broken  bool
}

// ResolveTitle finds an entry by case-insensitive exact title match,
// honoring redaction: for a player a hidden entry behaves as if it does not
// exist, so the scan moves on and a visible entry with the same title can
// still resolve.
func ResolveTitle(entries []wiki.Entry, role host.Role, title string) (wiki.Entry, bool) {
	want := strings.ToLower(strings.TrimSpace(title))
	for _, e := range entries {
		if strings.ToLower(e.Title) != want {
			continue
		}
		if e.Hidden && !role.IsGM() {
			continue
		}
		return e.Clone(), true
	}
	return wiki.Entry{}, false
}

// RenderRefs splits content into text and reference segments, resolving
// each [[Title]] against the live collection at render time.
func RenderRefs(content string, entries []wiki.Entry, role host.Role) []Segment {
	var out []Segment
	last := 0
	for _, loc := range refPattern.FindAllStringSubmatchIndex(content, -1) {
		if loc[0] > last {
			out = append(out, Segment{Text: content[last:loc[0]]})
		}
		title := content[loc[2]:loc[3]]
		seg := Segment{Text: title, IsRef: true}
		if target, ok := ResolveTitle(entries, role, title); ok {
			seg.EntryID = target.ID
		} else {
			seg.Broken = true
		}
		out = append(out, seg)
		last = loc[1]
	}
	if last < len(content) {
		out = append(out, Segment{Text: content[last:]})
	}
	return out
}
