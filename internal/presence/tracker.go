// Package presence tracks soft locks: which user currently has which entry
// open for editing. The map is replicated by broadcast events, lives only in
// memory, and self-heals when the host reports a disconnect. A lock is
// advisory; nothing enforces it.
package presence

import "sync"

// Editor identifies the user holding a lock. UserID is the stable key used
// for match checks; UserName is display-only.
type Editor struct {
	UserID   string
	UserName string
}

// Tracker is a process-wide presence service with explicit lifecycle,
// injectable so tests can swap it. A freshly created tracker is empty and
// converges as lock events arrive.
type Tracker struct {
	mu    sync.Mutex
	locks map[string]Editor
}

func NewTracker() *Tracker {
	return &Tracker{locks: make(map[string]Editor)}
}

// Start records a lock on entryID. A later start for the same entry
// overwrites the holder; replicas apply events in arrival order and stay
// identical.
func (t *Tracker) Start(entryID string, e Editor) {
	if entryID == "" {
		return
	}
	t.mu.Lock()
	t.locks[entryID] = e
	t.mu.Unlock()
}

// Stop clears the lock on entryID only when userID matches the current
// holder. A stale or out-of-order stop from another session must not clear
// a newer lock.
func (t *Tracker) Stop(entryID, userID string) {
	t.mu.Lock()
	if holder, ok := t.locks[entryID]; ok && holder.UserID == userID {
		delete(t.locks, entryID)
	}
	t.mu.Unlock()
}

// DropUser purges every lock held by userID. Each replica calls this
// independently on the host's disconnect signal; no broadcast is involved.
func (t *Tracker) DropUser(userID string) {
	t.mu.Lock()
	for id, holder := range t.locks {
		if holder.UserID == userID {
			delete(t.locks, id)
		}
	}
	t.mu.Unlock()
}

// Holder returns the current lock holder for entryID, if any.
func (t *Tracker) Holder(entryID string) (Editor, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.locks[entryID]
	return e, ok
}

// Snapshot returns a copy of the current lock map for rendering.
func (t *Tracker) Snapshot() map[string]Editor {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]Editor, len(t.locks))
	for id, e := range t.locks {
		out[id] = e
	}
	return out
}
