package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/vttlabs/lorekeeper/internal/gateway"
	"github.com/vttlabs/lorekeeper/internal/view"
	"github.com/vttlabs/lorekeeper/internal/wiki"
)

func (a *App) list(ctx context.Context) {
	a.mu.Lock()
	state := a.state
	a.mu.Unlock()

	v, err := a.replica.Render(ctx, state)
	if err != nil {
		fmt.Println("error:", err)
		return
	}

	a.mu.Lock()
	a.state.SelectedID = v.SelectedID
	a.mu.Unlock()

	if state.Search != "" {
		fmt.Printf("search: %q\n", state.Search)
	}
	if state.Category != "" {
		fmt.Printf("category: %s\n", state.Category)
	}
	if len(v.Entries) == 0 {
		fmt.Println("(no entries)")
		return
	}

	for _, e := range v.Entries {
		marks := ""
		if e.Hidden {
			marks += " [hidden]"
		}
		if e.PendingDelete {
			marks += " [delete requested]"
		}
		if e.EditedBy != "" {
			marks += fmt.Sprintf(" [editing: %s]", e.EditedBy)
		}
		if e.ID == v.SelectedID {
			marks += " *"
		}
		fmt.Printf("  %s  %-24s %s%s\n", e.ID, e.Title, e.Category, marks)
	}
}

func (a *App) show(ctx context.Context, args []string) {
	if len(args) == 0 {
		fmt.Println("Usage: show <id>")
		return
	}

	e, ok, err := a.replica.Entry(ctx, args[0])
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	if !ok {
		fmt.Println("no such entry")
		return
	}

	a.mu.Lock()
	a.state.SelectedID = e.ID
	a.mu.Unlock()

	entries, err := a.replica.Store.Read(ctx)
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	role := a.session.Roster().Self().Role

	fmt.Printf("# %s  (%s)\n", e.Title, e.Category)
	fmt.Printf("created by %s, updated by %s at %s\n",
		e.CreatedBy, e.UpdatedBy, time.UnixMilli(e.UpdatedAt).Format(time.RFC822))
	if e.PendingDelete {
		fmt.Println("!! delete requested")
	}

	for _, seg := range view.RenderRefs(e.Content, entries, role) {
		switch {
		case !seg.IsRef:
			fmt.Print(seg.Text)
		case seg.Broken:
			fmt.Printf("[[%s?]]", seg.Text)
		default:
			fmt.Printf("[%s -> %s]", seg.Text, seg.EntryID)
		}
	}
	fmt.Println()

	if role.IsGM() && e.GMNotes != "" {
		fmt.Println("-- gm notes --")
		fmt.Println(e.GMNotes)
	}

	for _, c := range e.Comments {
		fmt.Printf("  [%s] %s: %s\n", c.ID, c.AuthorName, c.Text)
	}
}

func (a *App) add(ctx context.Context) {
	title, err := GetSimpleText(a.reader, "Title:", os.Stdout)
	if err != nil {
		return
	}
	category, err := GetSimpleText(a.reader, "Category id:", os.Stdout)
	if err != nil {
		return
	}
	content, err := GetMultiline(a.reader, "Content:", os.Stdout)
	if err != nil {
		return
	}

	e, res, err := a.replica.Ops.CreateEntry(ctx, title, category, content)
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	a.report(res, "created "+e.ID)

	if res == gateway.Blocked {
		// Keep the unsaved entry as a draft so nothing typed is lost.
		a.mu.Lock()
		a.draft = e
		a.drafting = true
		a.mu.Unlock()
	} else {
		a.mu.Lock()
		a.state.SelectedID = e.ID
		a.mu.Unlock()
	}
}

func (a *App) edit(ctx context.Context, args []string) {
	if len(args) == 0 {
		fmt.Println("Usage: edit <id>")
		return
	}

	a.mu.Lock()
	drafting := a.drafting
	a.mu.Unlock()
	if drafting {
		fmt.Println("finish the current draft first ('save' or 'discard')")
		return
	}

	e, ok, err := a.replica.Entry(ctx, args[0])
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	if !ok {
		fmt.Println("no such entry")
		return
	}

	if holder, held := a.replica.Tracker.Holder(e.ID); held && holder.UserID != a.session.Roster().Self().ID {
		fmt.Printf("note: %s is editing this entry too\n", holder.UserName)
	}

	if err := a.replica.Dispatcher.AnnounceEditingStart(ctx, e.ID); err != nil {
		fmt.Println("warning: could not announce editing:", err)
	}

	fmt.Println("current content:")
	fmt.Println(e.Content)
	content, err := GetMultiline(a.reader, "New content (empty keeps current):", os.Stdout)
	if err != nil {
		return
	}
	if content != "" {
		e.Content = content
	}

	a.mu.Lock()
	a.draft = e
	a.drafting = true
	a.mu.Unlock()

	a.save(ctx)
}

// save commits the open draft. A blocked result keeps the draft; a later
// 'save' retries once a GM has connected.
func (a *App) save(ctx context.Context) {
	a.mu.Lock()
	if !a.drafting {
		a.mu.Unlock()
		fmt.Println("nothing to save")
		return
	}
	draft := a.draft
	a.mu.Unlock()

	_, exists, err := a.replica.Entry(ctx, draft.ID)
	if err != nil {
		fmt.Println("error:", err)
		return
	}

	var res gateway.Result
	if !exists {
		// A draft created while blocked: the entry never reached storage.
		res, err = a.commitNew(ctx, draft)
	} else {
		res, err = a.replica.Ops.UpdateEntry(ctx, draft)
	}
	if err != nil {
		fmt.Println("error:", err)
		return
	}

	a.report(res, "saved "+draft.Title)

	if res != gateway.Blocked {
		a.mu.Lock()
		a.drafting = false
		a.state.SelectedID = draft.ID
		a.mu.Unlock()
		if err := a.replica.Dispatcher.AnnounceEditingStop(ctx, draft.ID); err != nil {
			a.log.Warn(ctx, "announcing editing stop", "error", err)
		}
	}
}

// commitNew resubmits a draft whose create was blocked, reusing its id so a
// retried save stays idempotent from the user's point of view.
func (a *App) commitNew(ctx context.Context, draft wiki.Entry) (gateway.Result, error) {
	entries, err := a.replica.Store.Read(ctx)
	if err != nil {
		return 0, err
	}
	entries = append(entries, draft)
	return a.replica.Gateway.Commit(ctx, entries)
}

func (a *App) discard(ctx context.Context) {
	a.mu.Lock()
	if !a.drafting {
		a.mu.Unlock()
		fmt.Println("nothing to discard")
		return
	}
	id := a.draft.ID
	a.drafting = false
	a.draft = wiki.Entry{}
	a.mu.Unlock()

	if err := a.replica.Dispatcher.AnnounceEditingStop(ctx, id); err != nil {
		a.log.Warn(ctx, "announcing editing stop", "error", err)
	}
	fmt.Println("draft discarded")
}

func (a *App) setSearch(text string) {
	a.mu.Lock()
	a.state.Search = text
	a.mu.Unlock()
}

func (a *App) setCategory(args []string) {
	cat := ""
	if len(args) > 0 && args[0] != "-" {
		cat = args[0]
	}
	a.mu.Lock()
	a.state.Category = cat
	a.mu.Unlock()
}

func (a *App) categories(ctx context.Context) {
	for _, c := range a.replica.Store.ReadCategories(ctx) {
		fmt.Printf("  %-16s %s %s\n", c.ID, c.Icon, c.Label)
	}
}

func (a *App) addCategory(ctx context.Context, args []string) {
	if len(args) < 2 {
		fmt.Println("Usage: addcat <id> <label...>")
		return
	}
	cats := a.replica.Store.ReadCategories(ctx)
	cats = append(cats, wiki.Category{ID: args[0], Label: strings.Join(args[1:], " ")})
	if err := a.replica.Ops.SaveCategories(ctx, cats); err != nil {
		fmt.Println("error:", err)
		return
	}
	fmt.Println("categories saved")
}

func (a *App) deleteCategory(ctx context.Context, args []string) {
	if len(args) == 0 {
		fmt.Println("Usage: delcat <id>")
		return
	}
	cats := a.replica.Store.ReadCategories(ctx)
	kept := cats[:0]
	for _, c := range cats {
		if c.ID != args[0] {
			kept = append(kept, c)
		}
	}
	if len(kept) == len(cats) {
		fmt.Println("no such category")
		return
	}
	if err := a.replica.Ops.SaveCategories(ctx, kept); err != nil {
		fmt.Println("error:", err)
		return
	}
	fmt.Println("categories saved")
}

func (a *App) setHidden(ctx context.Context, args []string, hidden bool) {
	if len(args) == 0 {
		fmt.Println("Usage: hide|unhide <id>")
		return
	}
	res, err := a.replica.Ops.SetHidden(ctx, args[0], hidden)
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	a.report(res, "visibility updated")
}

func (a *App) gmNotes(ctx context.Context, args []string) {
	if len(args) == 0 {
		fmt.Println("Usage: notes <id>")
		return
	}
	notes, err := GetMultiline(a.reader, "GM notes:", os.Stdout)
	if err != nil {
		return
	}
	res, err := a.replica.Ops.SetGMNotes(ctx, args[0], notes)
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	a.report(res, "notes updated")
}

func (a *App) requestDelete(ctx context.Context, args []string) {
	if len(args) == 0 {
		fmt.Println("Usage: flag <id>")
		return
	}
	res, err := a.replica.Ops.RequestDelete(ctx, args[0])
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	a.report(res, "delete requested")
}

func (a *App) cancelDelete(ctx context.Context, args []string) {
	if len(args) == 0 {
		fmt.Println("Usage: unflag <id>")
		return
	}
	res, err := a.replica.Ops.CancelDelete(ctx, args[0])
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	a.report(res, "delete request cancelled")
}

func (a *App) deleteEntry(ctx context.Context, args []string) {
	if len(args) == 0 {
		fmt.Println("Usage: del <id>")
		return
	}
	res, err := a.replica.Ops.DeleteEntry(ctx, args[0])
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	a.report(res, "entry deleted")
}

func (a *App) addComment(ctx context.Context, args []string) {
	if len(args) < 2 {
		fmt.Println("Usage: comment <id> <text...>")
		return
	}
	res, err := a.replica.Ops.AddComment(ctx, args[0], strings.Join(args[1:], " "))
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	a.report(res, "comment added")
}

func (a *App) deleteComment(ctx context.Context, args []string) {
	if len(args) < 2 {
		fmt.Println("Usage: delcomment <id> <comment-id>")
		return
	}
	res, err := a.replica.Ops.DeleteComment(ctx, args[0], args[1])
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	a.report(res, "comment deleted")
}

func (a *App) who() {
	for _, u := range a.session.Roster().Connected() {
		fmt.Printf("  %s (%s, %s)\n", u.Name, u.ID, u.Role)
	}
}

func (a *App) report(res gateway.Result, done string) {
	switch res {
	case gateway.Committed:
		fmt.Println(done)
	case gateway.Relayed:
		fmt.Println(done, "(relayed to the GM)")
	case gateway.Blocked:
		fmt.Println("no GM connected — change not saved, kept locally; 'save' to retry")
	}
}
