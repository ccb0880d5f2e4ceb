package access

import (
	"context"

	"golang.org/x/sync/singleflight"

	"github.com/rh-console/rh-console/internal/identity"
)

type freshFetchKey struct{}

// ContextWithFreshFetch marks a fetch that must not reuse a round-trip started
// before it, such as a refresh after the principal's permissions changed.
func ContextWithFreshFetch(ctx context.Context) context.Context {
	return context.WithValue(ctx, freshFetchKey{}, true)
}

// FreshFetch reports whether ctx was marked by ContextWithFreshFetch.
func FreshFetch(ctx context.Context) bool {
	fresh, _ := ctx.Value(freshFetchKey{}).(bool)
	return fresh
}

// CoalescingFetcher shares one authority round-trip between concurrent
// fetches for the same principal, e.g. two browser tabs signing in at once.
type CoalescingFetcher struct {
	next  Fetcher
	group singleflight.Group
}

// NewCoalescingFetcher wraps next.
func NewCoalescingFetcher(next Fetcher) *CoalescingFetcher {
	return &CoalescingFetcher{next: next}
}

// Fetch implements Fetcher. The shared call is detached from the caller's
// cancellation but keeps its deadline; each caller still stops waiting when
// its own ctx ends. A fresh fetch starts a new round-trip that later callers
// join, while callers already waiting keep the older one.
func (c *CoalescingFetcher) Fetch(ctx context.Context, p identity.Principal) (*Grant, error) {
	if FreshFetch(ctx) {
		c.group.Forget(p.ID)
	}
	shared := context.WithoutCancel(ctx)
	resultChan := c.group.DoChan(p.ID, func() (interface{}, error) {
		callCtx, cancel := shared, context.CancelFunc(func() {})
		if deadline, ok := ctx.Deadline(); ok {
			callCtx, cancel = context.WithDeadline(shared, deadline)
		}
		defer cancel()
		return c.next.Fetch(callCtx, p)
	})
	select {
	case <-ctx.Done():
		return nil, fetchError(p.ID, "wait", ctx.Err())
	case res := <-resultChan:
		if res.Err != nil {
			return nil, res.Err
		}
		grant, _ := res.Val.(*Grant)
		return grant, nil
	}
}

var _ Fetcher = (*CoalescingFetcher)(nil)
