// Package cli is a terminal front end for one wiki replica. It is the
// reference rendering layer: every refresh re-reads storage and re-renders,
// a broadcast landing mid-edit leaves the draft untouched, and a blocked
// save keeps the draft around for a retry once a GM connects.
package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/vttlabs/lorekeeper/internal/client"
	"github.com/vttlabs/lorekeeper/internal/client/config"
	"github.com/vttlabs/lorekeeper/internal/client/remote"
	"github.com/vttlabs/lorekeeper/internal/logging"
	"github.com/vttlabs/lorekeeper/internal/view"
	"github.com/vttlabs/lorekeeper/internal/wiki"
)

type App struct {
	config  *config.Config
	log     logging.Logger
	session *remote.Session
	replica *client.Replica
	reader  *bufio.Reader

	// mu guards the UI state the dispatcher goroutine touches through the
	// refresh listener.
	mu    sync.Mutex
	state view.State

	// draft is an unsaved edit. It survives refreshes and blocked saves.
	draft    wiki.Entry
	drafting bool
}

func NewApp(c *config.Config, log logging.Logger) (*App, error) {
	if c.Token == "" {
		return nil, fmt.Errorf("a join token is required (-t or config file)")
	}

	sess, err := remote.Dial(context.Background(), c.ServerURL, c.Token, log)
	if err != nil {
		return nil, err
	}

	a := &App{
		config:  c,
		log:     log,
		session: sess,
		replica: client.NewReplica(sess, log),
		reader:  bufio.NewReader(os.Stdin),
	}

	a.replica.Dispatcher.OnRefresh(a.onRefresh)
	a.replica.Dispatcher.SetFocusRestore(a.onFocusRestore)

	return a, nil
}

// Run starts the dispatcher and serves the command loop until the user
// quits or the host connection drops.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer a.session.Close()

	go func() {
		if err := a.replica.Run(ctx); err != nil {
			a.log.Error(ctx, "dispatcher stopped", "error", err)
		}
	}()

	go func() {
		<-a.session.Done()
		fmt.Println("\nconnection to host lost")
		cancel()
	}()

	a.commandLoop(ctx)
	return nil
}

// onRefresh runs on the dispatcher goroutine after every convergence signal.
// It only signals that the world moved; the draft is never touched.
func (a *App) onRefresh(ctx context.Context) {
	fmt.Println("\n(world updated — 'list' to re-render)")
}

// onFocusRestore runs after a refresh batch. With an open draft it reprints
// the editing banner, the terminal analogue of re-raising an editor window
// a re-render pushed into the background.
func (a *App) onFocusRestore(ctx context.Context) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.drafting {
		fmt.Printf("(still editing %q — 'save' or 'discard')\n", a.draft.Title)
	}
}

func (a *App) status() string {
	self := a.session.Roster().Self()
	s := fmt.Sprintf("%s/%s", self.Name, self.Role)
	a.mu.Lock()
	if a.drafting {
		s += " editing"
	}
	a.mu.Unlock()
	return s
}
