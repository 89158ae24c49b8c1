// Package cache keeps the shared, freshness-bounded price list.
package cache

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/polyrabbit/crypto-tracker/event"
	"github.com/polyrabbit/crypto-tracker/model"
	"github.com/polyrabbit/crypto-tracker/visibility"
	"github.com/sirupsen/logrus"
)

// Fetcher loads the full price list from the feed.
type Fetcher interface {
	TopAssets(ctx context.Context) ([]model.Asset, error)
}

type State int

const (
	StateIdle State = iota
	StateFetching
	StateReady
	StateStaleError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateFetching:
		return "FETCHING"
	case StateReady:
		return "READY"
	case StateStaleError:
		return "STALE_ERROR"
	default:
		return "UNKNOWN"
	}
}

type Options struct {
	// MinInterval debounces non-forced refreshes after a successful fetch.
	MinInterval time.Duration
	// RetryDelay is how long a failed fetch waits for its forced retry.
	RetryDelay time.Duration
	// RefreshPeriod is the background polling period.
	RefreshPeriod time.Duration
	// StaleAfter is the age that triggers a refresh when returning to foreground.
	StaleAfter time.Duration
	Clock      Clock
}

func DefaultOptions() Options {
	return Options{
		MinInterval:   5 * time.Second,
		RetryDelay:    10 * time.Second,
		RefreshPeriod: 60 * time.Second,
		StaleAfter:    30 * time.Second,
	}
}

// FetchError is a failed price list fetch. The previous snapshot stays in use.
type FetchError struct {
	Seq uint64
	Err error
}

func (e *FetchError) Error() string {
	return "failed to fetch cryptocurrency data: " + e.Err.Error()
}

func (e *FetchError) Unwrap() error { return e.Err }

type PriceCache struct {
	fetcher Fetcher
	bus     *event.Bus
	clock   Clock
	opts    Options

	mu          sync.Mutex
	baseCtx     context.Context
	snapshot    model.Snapshot
	err         error
	lastSuccess time.Time
	issued      uint64 // sequence number of the latest fetch started
	applied     uint64 // sequence number of the latest completion applied
	inFlight    int
	retries     map[uint64]Timer
	closed      bool
}

func New(fetcher Fetcher, bus *event.Bus, opts Options) *PriceCache {
	defaults := DefaultOptions()
	if opts.MinInterval <= 0 {
		opts.MinInterval = defaults.MinInterval
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = defaults.RetryDelay
	}
	if opts.RefreshPeriod <= 0 {
		opts.RefreshPeriod = defaults.RefreshPeriod
	}
	if opts.StaleAfter <= 0 {
		opts.StaleAfter = defaults.StaleAfter
	}
	clock := opts.Clock
	if clock == nil {
		clock = realClock{}
	}
	return &PriceCache{
		fetcher: fetcher,
		bus:     bus,
		clock:   clock,
		opts:    opts,
		baseCtx: context.Background(),
		retries: make(map[uint64]Timer),
	}
}

// Refresh fetches the price list unless force is false and the last
// successful fetch is younger than MinInterval, or another fetch is in
// flight. A failure keeps the current snapshot and schedules one forced
// retry after RetryDelay.
func (c *PriceCache) Refresh(ctx context.Context, force bool) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	if !force {
		if !c.lastSuccess.IsZero() && c.clock.Now().Sub(c.lastSuccess) < c.opts.MinInterval {
			c.mu.Unlock()
			logrus.Debugln("Price list is fresh, skipping refresh")
			return nil
		}
		if c.inFlight > 0 {
			c.mu.Unlock()
			logrus.Debugln("Price list fetch already in flight, skipping refresh")
			return nil
		}
	}
	c.issued++
	seq := c.issued
	c.inFlight++
	started := c.inFlight == 1
	c.mu.Unlock()
	if started {
		c.bus.Publish(event.TopicPriceState, StateFetching.String())
	}

	start := c.clock.Now()
	raw, err := c.fetcher.TopAssets(ctx)
	now := c.clock.Now()

	c.mu.Lock()
	c.inFlight--
	if seq <= c.applied {
		c.mu.Unlock()
		logrus.WithField("seq", seq).Debugln("Discarding superseded price list fetch")
		if err != nil {
			return &FetchError{Seq: seq, Err: err}
		}
		return nil
	}
	c.applied = seq

	if err != nil {
		fetchErr := &FetchError{Seq: seq, Err: err}
		c.err = fetchErr
		c.scheduleRetryLocked(seq)
		c.mu.Unlock()
		logrus.WithError(err).WithField("elapsed", now.Sub(start).String()).
			Warnf("Failed to fetch price list, retrying in %s", c.opts.RetryDelay)
		c.bus.Publish(event.TopicPriceState, StateStaleError.String())
		return fetchErr
	}

	snap := model.NewSnapshot(raw, now, seq)
	c.snapshot = snap
	c.lastSuccess = now
	c.err = nil
	c.stopRetriesLocked()
	c.mu.Unlock()

	logrus.WithField("seq", seq).Debugf("Price list refreshed with %d coins", len(snap.Assets))
	c.bus.Publish(event.TopicPrices, snap)
	return nil
}

func (c *PriceCache) scheduleRetryLocked(seq uint64) {
	if c.closed {
		return
	}
	c.retries[seq] = c.clock.AfterFunc(c.opts.RetryDelay, func() {
		c.mu.Lock()
		if _, pending := c.retries[seq]; !pending {
			c.mu.Unlock()
			return
		}
		delete(c.retries, seq)
		ctx := c.baseCtx
		c.mu.Unlock()

		logrus.WithField("seq", seq).Infoln("Retrying failed price list fetch")
		// The outcome is recorded by Refresh itself
		_ = c.Refresh(ctx, true)
	})
}

func (c *PriceCache) stopRetriesLocked() {
	for seq, timer := range c.retries {
		timer.Stop()
		delete(c.retries, seq)
	}
}

// Snapshot returns the current price list, empty before the first success.
func (c *PriceCache) Snapshot() model.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot
}

func (c *PriceCache) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case c.inFlight > 0:
		return StateFetching
	case c.err != nil:
		return StateStaleError
	case !c.lastSuccess.IsZero():
		return StateReady
	default:
		return StateIdle
	}
}

// Err is the error of the latest applied fetch, nil after a success.
func (c *PriceCache) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *PriceCache) LastSuccess() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastSuccess
}

func (c *PriceCache) age() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lastSuccess.IsZero() {
		return time.Duration(math.MaxInt64)
	}
	return c.clock.Now().Sub(c.lastSuccess)
}

// Run refreshes immediately, then on every RefreshPeriod while sig reports
// foreground, and on return to foreground once the list is older than
// StaleAfter. It blocks until ctx is done and closes the cache.
func (c *PriceCache) Run(ctx context.Context, sig visibility.Signal) {
	if sig == nil {
		sig = visibility.AlwaysForeground()
	}
	c.mu.Lock()
	c.baseCtx = ctx
	c.mu.Unlock()
	defer c.Close()

	defer func() {
		if r := recover(); r != nil {
			logrus.Errorf("Price polling panic recovered: %v", r)
		}
	}()

	ticker := c.clock.NewTicker(c.opts.RefreshPeriod)
	defer ticker.Stop()

	_ = c.Refresh(ctx, false)
	for {
		select {
		case <-ctx.Done():
			logrus.Debugln("Price polling stopped")
			return
		case <-ticker.C():
			if !sig.Foreground() {
				logrus.Debugln("In background, skipping scheduled refresh")
				continue
			}
			_ = c.Refresh(ctx, false)
		case foreground := <-sig.Changes():
			if foreground && c.age() > c.opts.StaleAfter {
				_ = c.Refresh(ctx, false)
			}
		}
	}
}

// Close cancels pending retries; later refreshes are no-ops.
func (c *PriceCache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.stopRetriesLocked()
}

// IsFetchError reports whether err came from a failed price list fetch.
func IsFetchError(err error) bool {
	var fetchErr *FetchError
	return errors.As(err, &fetchErr)
}
