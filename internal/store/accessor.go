// Package store implements the entry-store accessor: the single owner of
// the authoritative entry collection held in the host's settings store.
// Every read hands back an independent copy; every commit resubmits the
// whole collection. Field-level updates do not exist.
package store

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/vttlabs/lorekeeper/internal/common"
	"github.com/vttlabs/lorekeeper/internal/host"
	"github.com/vttlabs/lorekeeper/internal/logging"
	"github.com/vttlabs/lorekeeper/internal/wiki"
)

// Accessor reads and writes the canonical collection. Write is reserved for
// the permission gateway; all other components go through Read.
type Accessor struct {
	settings host.Settings
	log      logging.Logger

	mu       sync.Mutex
	lastRead [sha256.Size]byte
	haveRead bool
}

func New(settings host.Settings, log logging.Logger) *Accessor {
	return &Accessor{
		settings: settings,
		log:      log.With("module", "store"),
	}
}

// Read returns a deep, independent copy of the persisted collection.
// Callers may mutate the result freely; an absent setting reads as an empty
// collection, while unreadable stored bytes are a hard storage failure.
func (a *Accessor) Read(ctx context.Context) ([]wiki.Entry, error) {
	raw, err := a.settings.Get(ctx, common.SettingKeyEntries)
	if errors.Is(err, common.ErrorNotFound) {
		a.remember(nil)
		return []wiki.Entry{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading entries: %w", err)
	}

	var entries []wiki.Entry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("stored entries are unreadable: %w", err)
	}
	a.remember(raw)

	if entries == nil {
		entries = []wiki.Entry{}
	}
	return entries, nil
}

// ReadCategories returns the configured category set, or the built-in
// default set when storage is empty or unreadable. It never fails.
func (a *Accessor) ReadCategories(ctx context.Context) []wiki.Category {
	raw, err := a.settings.Get(ctx, common.SettingKeyCategories)
	if err != nil {
		if !errors.Is(err, common.ErrorNotFound) {
			a.log.Warn(ctx, "reading categories failed, using defaults", "error", err)
		}
		return wiki.DefaultCategories()
	}

	var cats []wiki.Category
	if err := json.Unmarshal(raw, &cats); err != nil {
		a.log.Warn(ctx, "stored categories are unreadable, using defaults", "error", err)
		return wiki.DefaultCategories()
	}
	if err := wiki.ValidateCategories(cats); err != nil {
		a.log.Warn(ctx, "stored categories are invalid, using defaults", "error", err)
		return wiki.DefaultCategories()
	}
	return cats
}

// Write persists the collection. Only the gateway calls this; everyone else
// commits through the gateway so the single-writer policy holds. When the
// stored bytes changed after this accessor's last read, the overwrite is
// still performed (last write wins) but the conflict is reported in the log.
func (a *Accessor) Write(ctx context.Context, entries []wiki.Entry) error {
	if entries == nil {
		entries = []wiki.Entry{}
	}
	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("encoding entries: %w", err)
	}

	a.mu.Lock()
	haveRead, lastRead := a.haveRead, a.lastRead
	a.mu.Unlock()
	if haveRead {
		current, err := a.settings.Get(ctx, common.SettingKeyEntries)
		if err == nil && sha256.Sum256(current) != lastRead {
			a.log.Warn(ctx, "overwriting entries changed since last read", "count", len(entries))
		}
	}

	if err := a.settings.Set(ctx, common.SettingKeyEntries, data); err != nil {
		return fmt.Errorf("writing entries: %w", err)
	}
	a.remember(data)
	return nil
}

// WriteCategories persists the category set after validating its invariants.
func (a *Accessor) WriteCategories(ctx context.Context, cats []wiki.Category) error {
	if err := wiki.ValidateCategories(cats); err != nil {
		return err
	}
	data, err := json.Marshal(cats)
	if err != nil {
		return fmt.Errorf("encoding categories: %w", err)
	}
	if err := a.settings.Set(ctx, common.SettingKeyCategories, data); err != nil {
		return fmt.Errorf("writing categories: %w", err)
	}
	return nil
}

func (a *Accessor) remember(raw []byte) {
	a.mu.Lock()
	a.lastRead = sha256.Sum256(raw)
	a.haveRead = true
	a.mu.Unlock()
}
