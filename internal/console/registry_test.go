package console

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rh-console/rh-console/internal/access"
	"github.com/rh-console/rh-console/internal/identity"
)

type grantTable struct {
	mu     sync.Mutex
	grants map[string]*access.Grant
	calls  atomic.Int32
}

func (g *grantTable) set(id string, grant *access.Grant) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.grants[id] = grant
}

func (g *grantTable) Fetch(ctx context.Context, p identity.Principal) (*access.Grant, error) {
	g.calls.Add(1)
	g.mu.Lock()
	defer g.mu.Unlock()
	if grant, ok := g.grants[p.ID]; ok {
		return grant, nil
	}
	return nil, access.ErrGrantNotFound
}

func newTable() *grantTable {
	return &grantTable{grants: make(map[string]*access.Grant)}
}

func settle(t *testing.T, r *Registry, sessionID string) access.Snapshot {
	t.Helper()
	cache := r.Cache(sessionID)
	require.NotNil(t, cache, sessionID)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	snap, err := cache.Wait(ctx, access.Settled)
	require.NoError(t, err)
	return snap
}

var (
	ana = identity.Principal{ID: "ana", Email: "ana@rh.local"}
	bia = identity.Principal{ID: "bia", Email: "bia@rh.local"}
)

func TestRegistryRoutesEventsPerSession(t *testing.T) {
	hub := identity.NewHub()
	table := newTable()
	table.set("ana", access.NewGrant(true, nil))
	table.set("bia", access.NewGrant(false, map[string]access.Capability{"metas": {Ver: true}}))
	r := NewRegistry(hub, hub, table, nil)
	defer r.Close()

	require.NoError(t, hub.Publish(context.Background(), identity.SignIn("s1", ana)))
	require.NoError(t, hub.Publish(context.Background(), identity.SignIn("s2", bia)))
	assert.Equal(t, 2, r.Len())

	assert.True(t, settle(t, r, "s1").Grant.Admin())
	s2 := settle(t, r, "s2")
	assert.False(t, s2.Grant.Admin())
	assert.True(t, s2.Capability(access.ResourceMetas).Ver)

	cache := r.Cache("s1")
	require.NoError(t, hub.Publish(context.Background(), identity.SignOut("s1")))
	assert.Nil(t, r.Cache("s1"))
	assert.Equal(t, access.StatusAnonymous, r.Snapshot("s1").Status)
	assert.Equal(t, access.StatusAnonymous, cache.Snapshot().Status)
	assert.Equal(t, 1, r.Len())
	assert.Equal(t, "bia", r.Snapshot("s2").Principal.ID)
}

func TestRegistryIgnoresUnknownSessionSignOut(t *testing.T) {
	hub := identity.NewHub()
	r := NewRegistry(hub, hub, newTable(), nil)
	defer r.Close()

	require.NoError(t, hub.Publish(context.Background(), identity.SignOut("ghost")))
	require.NoError(t, hub.Publish(context.Background(), identity.SignIn("", ana)))
	assert.Zero(t, r.Len())
}

func TestRegistrySyncLoadsUnseenPrincipal(t *testing.T) {
	hub := identity.NewHub()
	table := newTable()
	table.set("ana", access.EmptyGrant())
	r := NewRegistry(hub, hub, table, nil)
	defer r.Close()

	r.Sync(context.Background(), "s1", &ana)
	snap := settle(t, r, "s1")
	assert.Equal(t, access.StatusAuthorized, snap.Status)
	assert.Equal(t, "ana", snap.Principal.ID)

	r.Sync(context.Background(), "s1", &ana)
	assert.Equal(t, int32(1), table.calls.Load())

	r.Sync(context.Background(), "s1", &bia)
	assert.Equal(t, "bia", settle(t, r, "s1").Principal.ID)
}

func TestRegistrySyncExpiresLostSession(t *testing.T) {
	hub := identity.NewHub()
	table := newTable()
	table.set("ana", access.NewGrant(true, nil))
	r := NewRegistry(hub, hub, table, nil)
	defer r.Close()

	var seen []identity.Event
	hub.Subscribe(func(ev identity.Event) { seen = append(seen, ev) })

	require.NoError(t, hub.Publish(context.Background(), identity.SignIn("s1", ana)))
	settle(t, r, "s1")

	r.Sync(context.Background(), "s1", nil)
	snap := r.Snapshot("s1")
	assert.Equal(t, access.StatusAnonymous, snap.Status)
	assert.Nil(t, snap.Grant)
	require.Len(t, seen, 2)
	assert.Equal(t, identity.Expired("s1"), seen[1])

	r.Sync(context.Background(), "s1", nil)
	assert.Len(t, seen, 2)
}

func TestRegistryRefreshPrincipal(t *testing.T) {
	hub := identity.NewHub()
	table := newTable()
	table.set("ana", access.EmptyGrant())
	table.set("bia", access.EmptyGrant())
	r := NewRegistry(hub, hub, table, nil)
	defer r.Close()

	for _, ev := range []identity.Event{
		identity.SignIn("s1", ana),
		identity.SignIn("s2", ana),
		identity.SignIn("s3", bia),
	} {
		require.NoError(t, hub.Publish(context.Background(), ev))
		settle(t, r, ev.SessionID)
	}

	updated := access.NewGrant(false, map[string]access.Capability{"usuarios": {Ver: true}})
	table.set("ana", updated)
	require.NoError(t, r.RefreshPrincipal(context.Background(), "ana"))

	assert.True(t, updated.Equal(r.Snapshot("s1").Grant))
	assert.True(t, updated.Equal(r.Snapshot("s2").Grant))
	assert.Zero(t, r.Snapshot("s3").Grant.Len())
	assert.NoError(t, r.RefreshPrincipal(context.Background(), "nobody"))
}

func TestRegistryPruneDropsIdleWorkspaces(t *testing.T) {
	hub := identity.NewHub()
	table := newTable()
	r := NewRegistry(hub, hub, table, nil)
	defer r.Close()

	clock := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return clock }

	require.NoError(t, hub.Publish(context.Background(), identity.SignIn("old", ana)))
	clock = clock.Add(time.Hour)
	require.NoError(t, hub.Publish(context.Background(), identity.SignIn("fresh", bia)))
	old := r.workspaces["old"].cache

	assert.Equal(t, 1, r.Prune(30*time.Minute))
	assert.Nil(t, r.Cache("old"))
	assert.NotNil(t, r.Cache("fresh"))
	_, err := old.Wait(context.Background(), func(access.Snapshot) bool { return false })
	assert.ErrorIs(t, err, access.ErrCacheClosed)
}

func TestRegistryCloseUnsubscribes(t *testing.T) {
	hub := identity.NewHub()
	r := NewRegistry(hub, hub, newTable(), nil)
	require.Equal(t, 1, hub.Len())

	require.NoError(t, hub.Publish(context.Background(), identity.SignIn("s1", ana)))
	cache := r.Cache("s1")
	r.Close()
	r.Close()

	assert.Zero(t, hub.Len())
	assert.Zero(t, r.Len())
	assert.ErrorIs(t, cache.Refresh(context.Background()), access.ErrCacheClosed)
}
