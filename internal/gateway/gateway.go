// Package gateway enforces the single-writer policy over the shared entry
// collection. Every commit in the module funnels through here: the GM path
// writes directly, the player path relays the proposed collection to a
// connected GM, and with no GM online the commit is blocked — a normal
// outcome, distinct from storage failure.
package gateway

import (
	"context"
	"fmt"

	"github.com/vttlabs/lorekeeper/internal/common"
	"github.com/vttlabs/lorekeeper/internal/host"
	"github.com/vttlabs/lorekeeper/internal/logging"
	"github.com/vttlabs/lorekeeper/internal/protocol"
	"github.com/vttlabs/lorekeeper/internal/store"
	"github.com/vttlabs/lorekeeper/internal/wiki"
)

// Result of a commit attempt.
type Result int

const (
	// Committed means the caller was a GM and the write is persisted.
	Committed Result = iota

	// Relayed means the proposed collection was handed to a connected GM.
	// The relay is optimistic; the caller does not wait for the GM commit.
	Relayed

	// Blocked means no GM is connected. The caller must keep its unsaved
	// editor state alive for a later retry.
	Blocked
)

func (r Result) String() string {
	switch r {
	case Committed:
		return "committed"
	case Relayed:
		return "relayed"
	case Blocked:
		return "blocked"
	default:
		return fmt.Sprintf("result(%d)", int(r))
	}
}

// Gateway is the sole authority for write-permission decisions.
type Gateway struct {
	store   *store.Accessor
	channel host.Channel
	roster  host.Roster
	log     logging.Logger
}

func New(st *store.Accessor, channel host.Channel, roster host.Roster, log logging.Logger) *Gateway {
	return &Gateway{
		store:   st,
		channel: channel,
		roster:  roster,
		log:     log.With("module", "gateway"),
	}
}

// Commit attempts to make entries the authoritative collection. The caller's
// role is resolved once, here, from the host roster. A Blocked result is not
// an error; storage and transport failures are.
func (g *Gateway) Commit(ctx context.Context, entries []wiki.Entry) (Result, error) {
	self := g.roster.Self()

	if self.Role.IsGM() {
		if err := g.store.Write(ctx, entries); err != nil {
			return 0, err
		}
		if err := g.publish(ctx, protocol.Refresh()); err != nil {
			return 0, err
		}
		g.log.Debug(ctx, "direct commit", "count", len(entries), "user", self.ID)
		return Committed, nil
	}

	if !g.gmConnected() {
		g.log.Info(ctx, "commit blocked, no GM connected", "user", self.ID)
		return Blocked, nil
	}

	if err := g.publish(ctx, protocol.RequestSave(entries)); err != nil {
		return 0, err
	}
	g.log.Debug(ctx, "commit relayed", "count", len(entries), "user", self.ID)
	return Relayed, nil
}

// SaveCategories persists a new category set and announces the change.
// Categories are world configuration; only a GM edits them, and there is no
// relay path for them.
func (g *Gateway) SaveCategories(ctx context.Context, cats []wiki.Category) error {
	if !g.roster.Self().Role.IsGM() {
		return fmt.Errorf("saving categories: %w", common.ErrPermissionDenied)
	}
	if err := g.store.WriteCategories(ctx, cats); err != nil {
		return err
	}
	return g.publish(ctx, protocol.CategoriesChanged())
}

// HandleRequestSave is the GM-side handler for a relayed commit. Non-GM
// replicas ignore the message silently (defense in depth): the relay is
// addressed to whoever holds the authority, not to a specific peer.
func (g *Gateway) HandleRequestSave(ctx context.Context, entries []wiki.Entry) error {
	if !g.roster.Self().Role.IsGM() {
		return nil
	}
	if err := g.store.Write(ctx, entries); err != nil {
		return err
	}
	g.log.Info(ctx, "relayed save committed", "count", len(entries))
	return g.publish(ctx, protocol.Refresh())
}

func (g *Gateway) gmConnected() bool {
	for _, u := range g.roster.Connected() {
		if u.Role.IsGM() {
			return true
		}
	}
	return false
}

func (g *Gateway) publish(ctx context.Context, m protocol.Message) error {
	data, err := protocol.Encode(m)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", m.Action, err)
	}
	if err := g.channel.Publish(ctx, data); err != nil {
		return fmt.Errorf("broadcasting %s: %w", m.Action, err)
	}
	return nil
}
