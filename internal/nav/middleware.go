package nav

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/rh-console/rh-console/internal/access"
	"github.com/rh-console/rh-console/internal/platform/httpx"
)

// SnapshotFunc returns the permission snapshot of the request's session.
type SnapshotFunc func(r *http.Request) access.Snapshot

type screenContextKey struct{}

// ScreenFromContext returns the screen context installed by Require.
func ScreenFromContext(ctx context.Context) (Screen, bool) {
	s, ok := ctx.Value(screenContextKey{}).(Screen)
	return s, ok
}

// Require admits the request only when the session's grant allows action on
// resource. The resolved Screen is stored in the request context.
func (g *Gate) Require(snapshot SnapshotFunc, resource access.Resource, action access.Action) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			g.enforce(w, r, snapshot(r), resource, action, next)
		})
	}
}

// RequireParam is Require with the resource taken from a chi URL parameter.
// Keys outside the enumeration answer 404.
func (g *Gate) RequireParam(snapshot SnapshotFunc, param string, action access.Action) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			resource, ok := access.ParseResource(chi.URLParam(r, param))
			if !ok {
				httpx.Problem(w, http.StatusNotFound, "Not Found", "unknown resource")
				return
			}
			g.enforce(w, r, snapshot(r), resource, action, next)
		})
	}
}

func (g *Gate) enforce(w http.ResponseWriter, r *http.Request, snap access.Snapshot, resource access.Resource, action access.Action, next http.Handler) {
	switch snap.Status {
	case access.StatusLoading:
		httpx.RespondError(w, httpx.ErrLoading)
		return
	case access.StatusAnonymous:
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	screen := g.Screen(snap.Grant, string(resource))
	if !screen.Permissions.Allows(action) {
		httpx.RespondError(w, httpx.ErrForbidden)
		return
	}
	ctx := context.WithValue(r.Context(), screenContextKey{}, screen)
	next.ServeHTTP(w, r.WithContext(ctx))
}
