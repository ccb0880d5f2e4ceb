package access

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/rh-console/rh-console/internal/identity"
)

// Status is the lifecycle state of a Cache.
type Status int

const (
	StatusAnonymous Status = iota
	StatusLoading
	StatusAuthorized
)

func (s Status) String() string {
	switch s {
	case StatusAnonymous:
		return "anonymous"
	case StatusLoading:
		return "loading"
	case StatusAuthorized:
		return "authorized"
	default:
		return "unknown"
	}
}

// MarshalText renders the status name.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

var (
	// ErrSuperseded is returned by Refresh when an identity change happened
	// while it was fetching; its result was discarded.
	ErrSuperseded = errors.New("access: refresh superseded by identity change")
	// ErrCacheClosed is returned by operations on a closed Cache.
	ErrCacheClosed = errors.New("access: cache closed")
)

// Snapshot is an immutable view of a Cache. Grant is nil unless Status is
// StatusAuthorized.
type Snapshot struct {
	Status     Status
	Principal  *identity.Principal
	Grant      *Grant
	Generation uint64
}

// Capability resolves r against the snapshot's grant.
func (s Snapshot) Capability(r Resource) Capability {
	return Resolve(s.Grant, r)
}

// Settled reports whether s is not waiting on a fetch.
func Settled(s Snapshot) bool {
	return s.Status != StatusLoading
}

// Option configures a Cache.
type Option func(*Cache)

// WithFetchTimeout bounds a single fetch. Zero leaves fetches unbounded.
func WithFetchTimeout(d time.Duration) Option {
	return func(c *Cache) {
		c.fetchTimeout = d
	}
}

type watcher struct {
	id uint64
	fn func(Snapshot)
}

// Cache holds the grant of the principal currently signed in to one session.
// Identity changes arrive through Apply; every change supersedes the fetches
// started before it, whose results are dropped on arrival.
type Cache struct {
	fetcher      Fetcher
	logger       *slog.Logger
	fetchTimeout time.Duration

	mu sync.Mutex
	// epoch advances on every identity change.
	epoch uint64
	// fetchSeq numbers fetches; only a fetch newer than appliedSeq may write.
	fetchSeq   uint64
	appliedSeq uint64
	state      Snapshot
	cancel     context.CancelFunc
	changed    chan struct{}
	watchers   []watcher
	nextWatch  uint64
	closed     bool
}

// NewCache constructs an anonymous Cache.
func NewCache(fetcher Fetcher, logger *slog.Logger, opts ...Option) *Cache {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	c := &Cache{
		fetcher: fetcher,
		logger:  logger,
		changed: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Snapshot returns the current state.
func (c *Cache) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Apply reacts to an identity change. A sign-out clears the grant before
// Apply returns. A sign-in enters the loading state and fetches the new
// principal's grant in the background. ctx only contributes values; the
// fetch outlives it.
func (c *Cache) Apply(ctx context.Context, ev identity.Event) {
	if ev.Principal == nil {
		c.clear(ev.Reason)
		return
	}
	c.load(ctx, *ev.Principal)
}

func (c *Cache) clear(reason identity.Reason) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.epoch++
	c.stopLocked()
	snap, ws := c.setLocked(Snapshot{Status: StatusAnonymous})
	c.mu.Unlock()

	c.logger.Debug("grant cleared", slog.String("reason", string(reason)))
	notify(ws, snap)
}

func (c *Cache) load(ctx context.Context, p identity.Principal) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.epoch++
	c.stopLocked()
	principal := p
	snap, ws := c.setLocked(Snapshot{Status: StatusLoading, Principal: &principal})
	epoch := c.epoch
	seq := c.nextSeqLocked()
	fetchCtx, cancel := c.fetchContext(context.WithoutCancel(ctx))
	c.cancel = cancel
	c.mu.Unlock()

	c.logger.Debug("loading grant", slog.String("principal", p.ID))
	notify(ws, snap)

	go func() {
		defer cancel()
		grant, err := c.fetcher.Fetch(fetchCtx, p)
		_ = c.settle(epoch, seq, p, grant, err)
	}()
}

// Refresh re-fetches the grant of the current principal and waits until it is
// in place. The fetch is marked fresh so it never reuses a shared round-trip
// that started before the call. Without a principal it does nothing. A failed fetch leaves the
// empty grant in place, like a failed sign-in fetch.
func (c *Cache) Refresh(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrCacheClosed
	}
	if c.state.Principal == nil {
		c.mu.Unlock()
		return nil
	}
	p := *c.state.Principal
	epoch := c.epoch
	seq := c.nextSeqLocked()
	c.mu.Unlock()

	fetchCtx, cancel := c.fetchContext(ContextWithFreshFetch(ctx))
	defer cancel()
	grant, err := c.fetcher.Fetch(fetchCtx, p)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return c.settle(epoch, seq, p, grant, err)
}

// settle writes a fetch result if no identity change and no newer fetch got
// there first.
func (c *Cache) settle(epoch, seq uint64, p identity.Principal, grant *Grant, err error) error {
	c.mu.Lock()
	if c.closed || epoch != c.epoch {
		c.mu.Unlock()
		c.logger.Debug("discard superseded grant", slog.String("principal", p.ID))
		return ErrSuperseded
	}
	if seq <= c.appliedSeq {
		c.mu.Unlock()
		return nil
	}
	if err != nil || grant == nil {
		grant = EmptyGrant()
	}
	c.appliedSeq = seq
	snap, ws := c.setLocked(Snapshot{Status: StatusAuthorized, Principal: c.state.Principal, Grant: grant})
	c.mu.Unlock()

	if err != nil {
		c.logger.Warn("permission fetch failed, denying all resources",
			slog.String("principal", p.ID), slog.Any("error", err))
	}
	notify(ws, snap)
	return nil
}

// Watch registers fn for every future transition. fn runs outside the cache
// lock and may be called concurrently; Generation orders snapshots.
func (c *Cache) Watch(fn func(Snapshot)) func() {
	c.mu.Lock()
	c.nextWatch++
	id := c.nextWatch
	c.watchers = append(c.watchers, watcher{id: id, fn: fn})
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			for i, w := range c.watchers {
				if w.id == id {
					c.watchers = append(c.watchers[:i], c.watchers[i+1:]...)
					return
				}
			}
		})
	}
}

// Wait blocks until pred holds for the current snapshot, ctx ends or the
// cache closes.
func (c *Cache) Wait(ctx context.Context, pred func(Snapshot) bool) (Snapshot, error) {
	for {
		c.mu.Lock()
		snap, ch, closed := c.snapshotLocked(), c.changed, c.closed
		c.mu.Unlock()

		if pred(snap) {
			return snap, nil
		}
		if closed {
			return snap, ErrCacheClosed
		}
		select {
		case <-ctx.Done():
			return snap, ctx.Err()
		case <-ch:
		}
	}
}

// Close cancels the in-flight fetch and releases watchers. Late results are
// dropped. Close is idempotent.
func (c *Cache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.stopLocked()
	c.watchers = nil
	close(c.changed)
}

func (c *Cache) setLocked(next Snapshot) (Snapshot, []func(Snapshot)) {
	next.Generation = c.state.Generation + 1
	c.state = next
	close(c.changed)
	c.changed = make(chan struct{})

	ws := make([]func(Snapshot), 0, len(c.watchers))
	for _, w := range c.watchers {
		ws = append(ws, w.fn)
	}
	return c.snapshotLocked(), ws
}

func (c *Cache) snapshotLocked() Snapshot {
	snap := c.state
	if snap.Principal != nil {
		p := *snap.Principal
		snap.Principal = &p
	}
	return snap
}

func (c *Cache) nextSeqLocked() uint64 {
	c.fetchSeq++
	return c.fetchSeq
}

func (c *Cache) stopLocked() {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

func (c *Cache) fetchContext(parent context.Context) (context.Context, context.CancelFunc) {
	if c.fetchTimeout > 0 {
		return context.WithTimeout(parent, c.fetchTimeout)
	}
	return context.WithCancel(parent)
}

func notify(ws []func(Snapshot), snap Snapshot) {
	for _, fn := range ws {
		fn(snap)
	}
}
