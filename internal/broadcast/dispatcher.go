// Package broadcast connects one replica to the shared channel and the
// host's fallback signals, and fans incoming events out to the gateway, the
// presence tracker and the view layer. Events are handled strictly one at a
// time, in arrival order, on a single goroutine — the same run-loop shape as
// a websocket hub.
package broadcast

import (
	"context"

	"github.com/vttlabs/lorekeeper/internal/common"
	"github.com/vttlabs/lorekeeper/internal/gateway"
	"github.com/vttlabs/lorekeeper/internal/host"
	"github.com/vttlabs/lorekeeper/internal/logging"
	"github.com/vttlabs/lorekeeper/internal/presence"
	"github.com/vttlabs/lorekeeper/internal/protocol"
)

type eventKind int

const (
	eventMessage eventKind = iota
	eventSetting
	eventDisconnect
)

type event struct {
	kind    eventKind
	payload []byte
	key     string
	userID  string
}

// Dispatcher routes channel messages, setting-change notifications and
// disconnect signals for a single replica.
type Dispatcher struct {
	channel  host.Channel
	settings host.Settings
	roster   host.Roster
	gateway  *gateway.Gateway
	tracker  *presence.Tracker
	log      logging.Logger

	queue chan event

	refreshFns []func(context.Context)
	focusFn    func(context.Context)
}

func New(sess host.Session, gw *gateway.Gateway, tracker *presence.Tracker, log logging.Logger) *Dispatcher {
	return &Dispatcher{
		channel:  sess.Channel(),
		settings: sess.Settings(),
		roster:   sess.Roster(),
		gateway:  gw,
		tracker:  tracker,
		log:      log.With("module", "broadcast"),
		queue:    make(chan event, 256),
	}
}

// OnRefresh registers a re-render listener. Listeners run in registration
// order whenever a refresh is due. Must be called before Run.
func (d *Dispatcher) OnRefresh(fn func(context.Context)) {
	d.refreshFns = append(d.refreshFns, fn)
}

// SetFocusRestore registers the callback that reasserts the active editing
// window's foreground position. It runs after every refresh listener has
// completed, because those re-renders can steal focus. Must be called
// before Run.
func (d *Dispatcher) SetFocusRestore(fn func(context.Context)) {
	d.focusFn = fn
}

// AnnounceEditingStart broadcasts a soft lock for an existing entry. New
// entries have no id yet and are never announced.
func (d *Dispatcher) AnnounceEditingStart(ctx context.Context, entryID string) error {
	if entryID == "" {
		return nil
	}
	self := d.roster.Self()
	return d.publish(ctx, protocol.EditingStart(entryID, self.ID, self.Name))
}

// AnnounceEditingStop broadcasts the end of this replica's editing session.
func (d *Dispatcher) AnnounceEditingStop(ctx context.Context, entryID string) error {
	if entryID == "" {
		return nil
	}
	return d.publish(ctx, protocol.EditingStop(entryID, d.roster.Self().ID))
}

// Run subscribes to the channel and the host signals, then serves the event
// loop until ctx is done. Incoming events beyond the queue capacity are
// dropped; the setting-change fallback recovers convergence.
func (d *Dispatcher) Run(ctx context.Context) error {
	cancelMsg := d.channel.Subscribe(func(payload []byte) {
		d.enqueue(ctx, event{kind: eventMessage, payload: payload})
	})
	defer cancelMsg()

	cancelSet := d.settings.Watch(func(key string) {
		d.enqueue(ctx, event{kind: eventSetting, key: key})
	})
	defer cancelSet()

	cancelDrop := d.roster.WatchDisconnects(func(userID string) {
		d.enqueue(ctx, event{kind: eventDisconnect, userID: userID})
	})
	defer cancelDrop()

	d.log.Info(ctx, "dispatcher running", "user", d.roster.Self().ID)

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-d.queue:
			d.handle(ctx, ev)
		}
	}
}

func (d *Dispatcher) enqueue(ctx context.Context, ev event) {
	select {
	case d.queue <- ev:
	default:
		d.log.Warn(ctx, "event queue full, dropping event", "kind", int(ev.kind))
	}
}

func (d *Dispatcher) handle(ctx context.Context, ev event) {
	switch ev.kind {
	case eventMessage:
		d.handleMessage(ctx, ev.payload)
	case eventSetting:
		// Fallback convergence path: the storage-change notification fires
		// even when the explicit broadcast was dropped.
		if ev.key == common.SettingKeyEntries || ev.key == common.SettingKeyCategories {
			d.runRefresh(ctx)
		}
	case eventDisconnect:
		d.tracker.DropUser(ev.userID)
		d.runRefresh(ctx)
	}
}

func (d *Dispatcher) handleMessage(ctx context.Context, payload []byte) {
	m, err := protocol.Decode(payload)
	if err != nil {
		d.log.Warn(ctx, "dropping channel message", "error", err)
		return
	}

	switch m.Action {
	case protocol.ActionRequestSave:
		if err := d.gateway.HandleRequestSave(ctx, m.Entries); err != nil {
			d.log.Error(ctx, "relayed save failed", "error", err)
		}
	case protocol.ActionRefresh, protocol.ActionCategoriesChanged:
		d.runRefresh(ctx)
	case protocol.ActionEditingStart:
		d.tracker.Start(m.EntryID, presence.Editor{UserID: m.UserID, UserName: m.UserName})
		d.runRefresh(ctx)
	case protocol.ActionEditingStop:
		d.tracker.Stop(m.EntryID, m.UserID)
		d.runRefresh(ctx)
	}
}

// runRefresh re-renders every listener, then restores the active editor's
// focus once the batch has settled.
func (d *Dispatcher) runRefresh(ctx context.Context) {
	for _, fn := range d.refreshFns {
		fn(ctx)
	}
	if d.focusFn != nil {
		d.focusFn(ctx)
	}
}

func (d *Dispatcher) publish(ctx context.Context, m protocol.Message) error {
	data, err := protocol.Encode(m)
	if err != nil {
		return err
	}
	return d.channel.Publish(ctx, data)
}
