// Package dashboard is the live terminal view: the full price list and the
// watchlist, redrawn on every price or session change, driven by short
// line commands.
package dashboard

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/polyrabbit/crypto-tracker/cache"
	"github.com/polyrabbit/crypto-tracker/event"
	"github.com/polyrabbit/crypto-tracker/model"
	"github.com/polyrabbit/crypto-tracker/watchlist"
	"github.com/polyrabbit/crypto-tracker/writer"
	"github.com/sirupsen/logrus"
)

type Prices interface {
	Snapshot() model.Snapshot
	State() cache.State
	Err() error
	LastSuccess() time.Time
	Refresh(ctx context.Context, force bool) error
}

type Sessions interface {
	Ready() <-chan struct{}
	Session() *model.Session
}

type Editor interface {
	Add(ctx context.Context, asset model.Asset) error
	Remove(ctx context.Context, coinID string) error
}

type Renderer interface {
	Render(f writer.Frame)
}

type Dashboard struct {
	prices   Prices
	sessions Sessions
	editor   Editor
	bus      *event.Bus
	out      Renderer

	mu     sync.Mutex
	search string
	notice string

	renderMu sync.Mutex
}

func New(prices Prices, sessions Sessions, editor Editor, bus *event.Bus, out Renderer) *Dashboard {
	return &Dashboard{prices: prices, sessions: sessions, editor: editor, bus: bus, out: out}
}

// Run draws once the session is resolved and keeps redrawing until ctx is
// done, the input reaches EOF or the user quits.
func (d *Dashboard) Run(ctx context.Context, in io.Reader) error {
	select {
	case <-d.sessions.Ready():
	case <-ctx.Done():
		return nil
	}

	onPrices := func(model.Snapshot) { d.Redraw() }
	onPriceState := func(string) { d.Redraw() }
	onSession := func(*model.Session) { d.Redraw() }
	if d.bus != nil {
		if err := d.bus.Subscribe(event.TopicPrices, onPrices); err != nil {
			return errors.Wrap(err, "subscribe to price updates")
		}
		defer d.bus.Unsubscribe(event.TopicPrices, onPrices)
		if err := d.bus.Subscribe(event.TopicPriceState, onPriceState); err != nil {
			return errors.Wrap(err, "subscribe to price state")
		}
		defer d.bus.Unsubscribe(event.TopicPriceState, onPriceState)
		if err := d.bus.Subscribe(event.TopicSession, onSession); err != nil {
			return errors.Wrap(err, "subscribe to session updates")
		}
		defer d.bus.Unsubscribe(event.TopicSession, onSession)
	}
	d.Redraw()

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil {
			logrus.WithError(err).Debugln("Stopped reading commands")
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if quit := d.Handle(ctx, line); quit {
				return nil
			}
			d.Redraw()
		}
	}
}

// Handle runs one line command and reports whether the user asked to quit.
func (d *Dashboard) Handle(ctx context.Context, line string) bool {
	line = strings.TrimSpace(line)
	d.setNotice("")
	switch {
	case line == "":
	case line == "q" || line == "quit":
		return true
	case line == "r":
		if err := d.prices.Refresh(ctx, true); err != nil {
			logrus.WithError(err).Debugln("Manual refresh failed")
		}
	case strings.HasPrefix(line, "/"):
		d.mu.Lock()
		d.search = strings.TrimSpace(line[1:])
		d.mu.Unlock()
	case strings.HasPrefix(line, "+"):
		d.add(ctx, strings.TrimSpace(line[1:]))
	case strings.HasPrefix(line, "-"):
		d.remove(ctx, strings.TrimSpace(line[1:]))
	default:
		d.setNotice(fmt.Sprintf("Unknown command %q", line))
	}
	return false
}

func (d *Dashboard) add(ctx context.Context, ref string) {
	asset, ok := d.prices.Snapshot().Resolve(ref)
	if !ok {
		d.setNotice(fmt.Sprintf("No coin %q in the price list", ref))
		return
	}
	if err := d.editor.Add(ctx, asset); err != nil {
		d.setNotice(userMessage(err))
		return
	}
	d.setNotice(fmt.Sprintf("Added %s to your watchlist", asset.Name))
}

func (d *Dashboard) remove(ctx context.Context, ref string) {
	coinID := ref
	if asset, ok := d.prices.Snapshot().Resolve(ref); ok {
		coinID = asset.ID
	}
	if err := d.editor.Remove(ctx, coinID); err != nil {
		d.setNotice(userMessage(err))
		return
	}
	d.setNotice(fmt.Sprintf("Removed %s from your watchlist", coinID))
}

func userMessage(err error) string {
	if errors.Is(err, watchlist.ErrNotAuthenticated) {
		return "Sign in first with crypto-tracker login"
	}
	return err.Error()
}

func (d *Dashboard) setNotice(notice string) {
	d.mu.Lock()
	d.notice = notice
	d.mu.Unlock()
}

// Frame derives what the screen shows from the current cache and session.
func (d *Dashboard) Frame() writer.Frame {
	snap := d.prices.Snapshot()
	sess := d.sessions.Session()
	view := watchlist.Derive(snap, sess)

	d.mu.Lock()
	search, notice := d.search, d.notice
	d.mu.Unlock()

	f := writer.Frame{
		Assets:    watchlist.Filter(snap.Assets, search),
		Search:    search,
		Watchlist: view,
		Missing:   view.Missing(sess),
		Members:   sess.Members(),
		State:     d.prices.State().String(),
		Err:       d.prices.Err(),
		UpdatedAt: d.prices.LastSuccess(),
		Notice:    notice,
	}
	if sess != nil {
		f.User = sess.User.Username
	}
	return f
}

// Redraw renders the current frame. Concurrent calls are serialized.
func (d *Dashboard) Redraw() {
	d.renderMu.Lock()
	defer d.renderMu.Unlock()
	d.out.Render(d.Frame())
}
