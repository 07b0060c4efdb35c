// Package ops implements the entry mutators: the operations a UI action
// maps to. Each one reads a fresh snapshot, validates, applies the
// permission rules for the caller's role, and resubmits the whole mutated
// collection through the write gateway. There is no field-level update.
package ops

import (
	"context"
	"fmt"

	"github.com/vttlabs/lorekeeper/internal/common"
	"github.com/vttlabs/lorekeeper/internal/gateway"
	"github.com/vttlabs/lorekeeper/internal/host"
	"github.com/vttlabs/lorekeeper/internal/logging"
	"github.com/vttlabs/lorekeeper/internal/store"
	"github.com/vttlabs/lorekeeper/internal/wiki"
)

type Service struct {
	store   *store.Accessor
	gateway *gateway.Gateway
	roster  host.Roster
	log     logging.Logger
}

func NewService(st *store.Accessor, gw *gateway.Gateway, roster host.Roster, log logging.Logger) *Service {
	return &Service{
		store:   st,
		gateway: gw,
		roster:  roster,
		log:     log.With("module", "ops"),
	}
}

// CreateEntry adds a new entry and commits. The returned entry carries the
// generated id so the caller can select it once the refresh lands.
func (s *Service) CreateEntry(ctx context.Context, title, category, content string) (wiki.Entry, gateway.Result, error) {
	e := wiki.Entry{
		ID:       wiki.NewID(),
		Title:    title,
		Category: category,
		Content:  content,
		Comments: []wiki.Comment{},
	}
	if err := wiki.ValidateEntry(e); err != nil {
		return wiki.Entry{}, 0, err
	}

	self := s.roster.Self()
	now := wiki.Now()
	e.CreatedAt, e.UpdatedAt = now, now
	e.CreatedBy, e.UpdatedBy = self.Name, self.Name

	entries, err := s.store.Read(ctx)
	if err != nil {
		return wiki.Entry{}, 0, err
	}
	entries = append(entries, e)

	res, err := s.gateway.Commit(ctx, entries)
	return e, res, err
}

// UpdateEntry saves an edited entry. Saving clears a pending delete flag and
// refreshes the update stamp. Fields a player may not touch (hidden,
// gmNotes) are restored from the stored copy regardless of what the caller
// submitted — a player projection never carried them in the first place.
func (s *Service) UpdateEntry(ctx context.Context, e wiki.Entry) (gateway.Result, error) {
	if err := wiki.ValidateEntry(e); err != nil {
		return 0, err
	}

	entries, err := s.store.Read(ctx)
	if err != nil {
		return 0, err
	}
	i := wiki.FindByID(entries, e.ID)
	if i < 0 {
		return 0, fmt.Errorf("entry %s: %w", e.ID, common.ErrorNotFound)
	}

	self := s.roster.Self()
	if !self.Role.IsGM() {
		e.Hidden = entries[i].Hidden
		e.GMNotes = entries[i].GMNotes
	}
	e.CreatedAt, e.CreatedBy = entries[i].CreatedAt, entries[i].CreatedBy
	e.Comments = entries[i].Comments
	e.PendingDelete = false
	e.UpdatedAt = wiki.Now()
	e.UpdatedBy = self.Name

	entries[i] = e
	return s.gateway.Commit(ctx, entries)
}

// SetHidden toggles GM-only visibility for an entry.
func (s *Service) SetHidden(ctx context.Context, entryID string, hidden bool) (gateway.Result, error) {
	if !s.roster.Self().Role.IsGM() {
		return 0, fmt.Errorf("toggling visibility: %w", common.ErrPermissionDenied)
	}
	return s.mutate(ctx, entryID, func(e *wiki.Entry) error {
		e.Hidden = hidden
		return nil
	})
}

// SetGMNotes replaces the GM-only notes on an entry.
func (s *Service) SetGMNotes(ctx context.Context, entryID, notes string) (gateway.Result, error) {
	if !s.roster.Self().Role.IsGM() {
		return 0, fmt.Errorf("editing notes: %w", common.ErrPermissionDenied)
	}
	return s.mutate(ctx, entryID, func(e *wiki.Entry) error {
		e.GMNotes = notes
		return nil
	})
}

// RequestDelete flags an entry for deletion. Any role may request; only a
// GM performs the actual delete (or cancels the request).
func (s *Service) RequestDelete(ctx context.Context, entryID string) (gateway.Result, error) {
	return s.mutate(ctx, entryID, func(e *wiki.Entry) error {
		e.PendingDelete = true
		return nil
	})
}

// CancelDelete clears a pending delete flag.
func (s *Service) CancelDelete(ctx context.Context, entryID string) (gateway.Result, error) {
	if !s.roster.Self().Role.IsGM() {
		return 0, fmt.Errorf("cancelling delete: %w", common.ErrPermissionDenied)
	}
	return s.mutate(ctx, entryID, func(e *wiki.Entry) error {
		e.PendingDelete = false
		return nil
	})
}

// DeleteEntry permanently removes an entry.
func (s *Service) DeleteEntry(ctx context.Context, entryID string) (gateway.Result, error) {
	if !s.roster.Self().Role.IsGM() {
		return 0, fmt.Errorf("deleting entry: %w", common.ErrPermissionDenied)
	}

	entries, err := s.store.Read(ctx)
	if err != nil {
		return 0, err
	}
	i := wiki.FindByID(entries, entryID)
	if i < 0 {
		return 0, fmt.Errorf("entry %s: %w", entryID, common.ErrorNotFound)
	}
	entries = append(entries[:i], entries[i+1:]...)
	return s.gateway.Commit(ctx, entries)
}

// AddComment appends a comment authored by the current user.
func (s *Service) AddComment(ctx context.Context, entryID, text string) (gateway.Result, error) {
	if err := wiki.ValidateComment(text); err != nil {
		return 0, err
	}
	self := s.roster.Self()
	return s.mutate(ctx, entryID, func(e *wiki.Entry) error {
		if len(e.Comments) >= common.MaxCommentsPerEntry {
			return fmt.Errorf("%w: entry has reached %d comments", common.ErrValidation, common.MaxCommentsPerEntry)
		}
		e.Comments = append(e.Comments, wiki.Comment{
			ID:         wiki.NewID(),
			AuthorName: self.Name,
			UserID:     self.ID,
			Text:       text,
			CreatedAt:  wiki.Now(),
		})
		return nil
	})
}

// DeleteComment removes a comment. Allowed for the comment's owner (by
// stable user id, never display name) and for any GM.
func (s *Service) DeleteComment(ctx context.Context, entryID, commentID string) (gateway.Result, error) {
	self := s.roster.Self()
	return s.mutate(ctx, entryID, func(e *wiki.Entry) error {
		for i, c := range e.Comments {
			if c.ID != commentID {
				continue
			}
			if c.UserID != self.ID && !self.Role.IsGM() {
				return fmt.Errorf("deleting comment: %w", common.ErrPermissionDenied)
			}
			e.Comments = append(e.Comments[:i], e.Comments[i+1:]...)
			return nil
		}
		return fmt.Errorf("comment %s: %w", commentID, common.ErrorNotFound)
	})
}

// SaveCategories replaces the category set (GM only, validated in the
// gateway and store).
func (s *Service) SaveCategories(ctx context.Context, cats []wiki.Category) error {
	return s.gateway.SaveCategories(ctx, cats)
}

// mutate applies fn to one entry of a fresh snapshot and commits. Any error
// from fn aborts before the commit, leaving storage untouched.
func (s *Service) mutate(ctx context.Context, entryID string, fn func(*wiki.Entry) error) (gateway.Result, error) {
	entries, err := s.store.Read(ctx)
	if err != nil {
		return 0, err
	}
	i := wiki.FindByID(entries, entryID)
	if i < 0 {
		return 0, fmt.Errorf("entry %s: %w", entryID, common.ErrorNotFound)
	}
	if err := fn(&entries[i]); err != nil {
		return 0, err
	}
	return s.gateway.Commit(ctx, entries)
}
