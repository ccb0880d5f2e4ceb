// Package console binds browser sessions to permission caches and serves the
// console's permission API.
package console

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/rh-console/rh-console/internal/access"
	"github.com/rh-console/rh-console/internal/identity"
)

type workspace struct {
	cache    *access.Cache
	lastSeen time.Time
}

// Registry owns one permission cache per session. Caches are created on the
// first identity event or request for a session and closed on sign-out.
type Registry struct {
	fetcher   access.Fetcher
	publisher identity.Publisher
	logger    *slog.Logger
	cacheOpts []access.Option
	now       func() time.Time

	mu          sync.Mutex
	workspaces  map[string]*workspace
	closed      bool
	unsubscribe func()
}

// NewRegistry subscribes to source and routes every event to the cache of its
// session. publisher announces expirations detected by Sync.
func NewRegistry(source identity.Source, publisher identity.Publisher, fetcher access.Fetcher, logger *slog.Logger, opts ...access.Option) *Registry {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	r := &Registry{
		fetcher:    fetcher,
		publisher:  publisher,
		logger:     logger,
		cacheOpts:  opts,
		now:        time.Now,
		workspaces: make(map[string]*workspace),
	}
	r.unsubscribe = source.Subscribe(r.handle)
	return r
}

func (r *Registry) handle(ev identity.Event) {
	if ev.SessionID == "" {
		return
	}
	if ev.Principal != nil {
		cache := r.ensure(ev.SessionID)
		if cache == nil {
			return
		}
		r.logger.Info("identity changed", slog.String("session", ev.SessionID),
			slog.String("principal", ev.Principal.ID), slog.String("reason", string(ev.Reason)))
		cache.Apply(context.Background(), ev)
		return
	}

	r.mu.Lock()
	ws, ok := r.workspaces[ev.SessionID]
	delete(r.workspaces, ev.SessionID)
	r.mu.Unlock()
	if !ok {
		return
	}
	ws.cache.Apply(context.Background(), ev)
	ws.cache.Close()
	r.logger.Info("identity cleared", slog.String("session", ev.SessionID), slog.String("reason", string(ev.Reason)))
}

func (r *Registry) ensure(sessionID string) *access.Cache {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	ws, ok := r.workspaces[sessionID]
	if !ok {
		ws = &workspace{cache: access.NewCache(r.fetcher, r.logger.With(slog.String("session", sessionID)), r.cacheOpts...)}
		r.workspaces[sessionID] = ws
	}
	ws.lastSeen = r.now()
	return ws.cache
}

// Cache returns the cache of sessionID, or nil when the session holds none.
func (r *Registry) Cache(sessionID string) *access.Cache {
	r.mu.Lock()
	defer r.mu.Unlock()
	ws, ok := r.workspaces[sessionID]
	if !ok {
		return nil
	}
	ws.lastSeen = r.now()
	return ws.cache
}

// Snapshot returns the permission state of sessionID. Sessions without a
// cache are anonymous.
func (r *Registry) Snapshot(sessionID string) access.Snapshot {
	if cache := r.Cache(sessionID); cache != nil {
		return cache.Snapshot()
	}
	return access.Snapshot{Status: access.StatusAnonymous}
}

// Sync reconciles the cache of sessionID with the principal its session
// store reports. A cache still holding a principal the store has lost is
// expired for every process; a principal the cache has not seen yet, such as
// one signed in on another instance, is loaded locally.
func (r *Registry) Sync(ctx context.Context, sessionID string, principal *identity.Principal) {
	if sessionID == "" {
		return
	}
	current := r.Snapshot(sessionID).Principal
	switch {
	case principal == nil && current != nil:
		r.logger.Info("session expired", slog.String("session", sessionID), slog.String("principal", current.ID))
		if err := r.publisher.Publish(ctx, identity.Expired(sessionID)); err != nil {
			r.logger.Warn("publish expiry", slog.String("session", sessionID), slog.Any("error", err))
			r.handle(identity.Expired(sessionID))
		}
	case principal != nil && (current == nil || current.ID != principal.ID):
		r.handle(identity.SignIn(sessionID, *principal))
	}
}

// Refresh re-fetches the grant of sessionID.
func (r *Registry) Refresh(ctx context.Context, sessionID string) error {
	cache := r.Cache(sessionID)
	if cache == nil {
		return nil
	}
	return cache.Refresh(ctx)
}

// RefreshPrincipal refreshes every session signed in as principalID. Refreshes
// superseded by a concurrent identity change are not errors.
func (r *Registry) RefreshPrincipal(ctx context.Context, principalID string) error {
	r.mu.Lock()
	caches := make([]*access.Cache, 0, len(r.workspaces))
	for _, ws := range r.workspaces {
		caches = append(caches, ws.cache)
	}
	r.mu.Unlock()

	var errs []error
	for _, cache := range caches {
		p := cache.Snapshot().Principal
		if p == nil || p.ID != principalID {
			continue
		}
		if err := cache.Refresh(ctx); err != nil && !errors.Is(err, access.ErrSuperseded) && !errors.Is(err, access.ErrCacheClosed) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Prune closes caches that have not been used for maxIdle and returns how
// many were dropped.
func (r *Registry) Prune(maxIdle time.Duration) int {
	cutoff := r.now().Add(-maxIdle)
	r.mu.Lock()
	var stale []*access.Cache
	for id, ws := range r.workspaces {
		if ws.lastSeen.Before(cutoff) {
			stale = append(stale, ws.cache)
			delete(r.workspaces, id)
		}
	}
	r.mu.Unlock()

	for _, cache := range stale {
		cache.Close()
	}
	if len(stale) > 0 {
		r.logger.Debug("pruned idle workspaces", slog.Int("count", len(stale)))
	}
	return len(stale)
}

// Len reports the number of live caches.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.workspaces)
}

// Close unsubscribes from the identity source and closes every cache.
func (r *Registry) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	workspaces := r.workspaces
	r.workspaces = make(map[string]*workspace)
	r.mu.Unlock()

	r.unsubscribe()
	for _, ws := range workspaces {
		ws.cache.Close()
	}
}
