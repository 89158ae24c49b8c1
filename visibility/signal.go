// Package visibility abstracts whether the hosting UI is in the foreground.
// Hosts without such a notion are always in the foreground.
package visibility

import (
	"context"
	"os"
	"sync"

	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
)

type Signal interface {
	Foreground() bool
	// Changes delivers the new state on every transition. Only the latest
	// undelivered state is kept.
	Changes() <-chan bool
}

// Tracker is a Signal driven by explicit Set calls.
type Tracker struct {
	mu         sync.Mutex
	foreground bool
	changes    chan bool
}

func NewTracker(foreground bool) *Tracker {
	return &Tracker{foreground: foreground, changes: make(chan bool, 1)}
}

// AlwaysForeground never reports a transition.
func AlwaysForeground() Signal {
	return NewTracker(true)
}

func (t *Tracker) Foreground() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.foreground
}

func (t *Tracker) Changes() <-chan bool {
	return t.changes
}

func (t *Tracker) Set(foreground bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.foreground == foreground {
		return
	}
	t.foreground = foreground
	select {
	case <-t.changes:
	default:
	}
	t.changes <- foreground
}

// Terminal follows job control of the controlling terminal until ctx is done.
// When stdout is not a terminal the process counts as always in foreground.
func Terminal(ctx context.Context) Signal {
	fd := os.Stdout.Fd()
	if !isatty.IsTerminal(fd) && !isatty.IsCygwinTerminal(fd) {
		logrus.Debugln("Stdout is not a terminal, treating as always foreground")
		return AlwaysForeground()
	}
	t := NewTracker(true)
	watchJobControl(ctx, t)
	return t
}
