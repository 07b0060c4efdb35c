// Package client assembles one replica of the shared wiki: the storage
// accessor, write gateway, presence tracker and broadcast dispatcher wired
// to a host session, plus the operations a UI drives.
package client

import (
	"context"

	"github.com/vttlabs/lorekeeper/internal/broadcast"
	"github.com/vttlabs/lorekeeper/internal/gateway"
	"github.com/vttlabs/lorekeeper/internal/host"
	"github.com/vttlabs/lorekeeper/internal/logging"
	"github.com/vttlabs/lorekeeper/internal/ops"
	"github.com/vttlabs/lorekeeper/internal/presence"
	"github.com/vttlabs/lorekeeper/internal/store"
	"github.com/vttlabs/lorekeeper/internal/view"
	"github.com/vttlabs/lorekeeper/internal/wiki"
)

// Replica is one user's live copy of the wiki. All state it renders comes
// from fresh storage reads; nothing is cached across refreshes.
type Replica struct {
	Session    host.Session
	Store      *store.Accessor
	Gateway    *gateway.Gateway
	Tracker    *presence.Tracker
	Dispatcher *broadcast.Dispatcher
	Ops        *ops.Service
}

func NewReplica(sess host.Session, log logging.Logger) *Replica {
	st := store.New(sess.Settings(), log)
	gw := gateway.New(st, sess.Channel(), sess.Roster(), log)
	tracker := presence.NewTracker()
	disp := broadcast.New(sess, gw, tracker, log)

	return &Replica{
		Session:    sess,
		Store:      st,
		Gateway:    gw,
		Tracker:    tracker,
		Dispatcher: disp,
		Ops:        ops.NewService(st, gw, sess.Roster(), log),
	}
}

// Run serves the dispatcher loop until ctx is done. Refresh listeners and
// the focus-restore callback must be registered before calling Run.
func (r *Replica) Run(ctx context.Context) error {
	return r.Dispatcher.Run(ctx)
}

// Render reads a fresh snapshot and projects it for this replica's role and
// UI state.
func (r *Replica) Render(ctx context.Context, state view.State) (view.View, error) {
	entries, err := r.Store.Read(ctx)
	if err != nil {
		return view.View{}, err
	}
	cats := r.Store.ReadCategories(ctx)
	role := r.Session.Roster().Self().Role
	return view.Project(entries, cats, role, state, r.Tracker.Snapshot()), nil
}

// Entry returns one entry from a fresh snapshot, or a false flag when the id
// is unknown. Redaction applies here exactly as in the projection: hidden
// entries are withheld from players, and gmNotes never leaves this method
// for a non-GM caller.
func (r *Replica) Entry(ctx context.Context, id string) (wiki.Entry, bool, error) {
	entries, err := r.Store.Read(ctx)
	if err != nil {
		return wiki.Entry{}, false, err
	}
	i := wiki.FindByID(entries, id)
	if i < 0 {
		return wiki.Entry{}, false, nil
	}
	e := entries[i]
	if !r.Session.Roster().Self().Role.IsGM() {
		if e.Hidden {
			return wiki.Entry{}, false, nil
		}
		e.GMNotes = ""
	}
	return e, true, nil
}
