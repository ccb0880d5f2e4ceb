package console

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/rh-console/rh-console/internal/access"
	"github.com/rh-console/rh-console/internal/identity"
	"github.com/rh-console/rh-console/internal/nav"
	"github.com/rh-console/rh-console/internal/platform/httpx"
	"github.com/rh-console/rh-console/internal/shared"
)

// Handler serves the permission API of the console.
type Handler struct {
	registry    *Registry
	gate        *nav.Gate
	logger      *slog.Logger
	loadingWait time.Duration
}

// NewHandler constructs a Handler. Gated requests arriving while the grant
// loads wait up to loadingWait before answering 503.
func NewHandler(registry *Registry, gate *nav.Gate, logger *slog.Logger, loadingWait time.Duration) *Handler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Handler{registry: registry, gate: gate, logger: logger, loadingWait: loadingWait}
}

// MountRoutes registers the API routes on r.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Use(h.syncSession)
	r.Get("/session", h.handleSession)
	r.Get("/navigation", h.handleNavigation)
	r.Get("/screens/{resource}", h.handleScreen)
	r.Post("/permissions/refresh", h.handleRefresh)
	r.With(h.gate.RequireParam(h.Snapshot, "resource", access.ActionView)).
		Get("/resources/{resource}", h.handleResource)
}

// syncSession reconciles the session's cache with the session store before
// any handler reads it.
func (h *Handler) syncSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if sess := shared.SessionFromContext(r.Context()); sess != nil && !sess.Destroyed() {
			h.registry.Sync(r.Context(), sess.ID, sess.Principal())
		}
		next.ServeHTTP(w, r)
	})
}

// Snapshot returns the settled permission state of the request's session,
// waiting briefly when a fetch is in flight. It satisfies nav.SnapshotFunc.
func (h *Handler) Snapshot(r *http.Request) access.Snapshot {
	cache := h.registry.Cache(shared.SessionID(r.Context()))
	if cache == nil {
		return access.Snapshot{Status: access.StatusAnonymous}
	}
	snap := cache.Snapshot()
	if access.Settled(snap) || h.loadingWait <= 0 {
		return snap
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.loadingWait)
	defer cancel()
	snap, _ = cache.Wait(ctx, access.Settled)
	return snap
}

type sessionResponse struct {
	Status     access.Status       `json:"status"`
	Principal  *identity.Principal `json:"principal,omitempty"`
	Admin      bool                `json:"admin"`
	Generation uint64              `json:"generation"`
}

func (h *Handler) handleSession(w http.ResponseWriter, r *http.Request) {
	snap := h.registry.Snapshot(shared.SessionID(r.Context()))
	httpx.JSON(w, http.StatusOK, sessionResponse{
		Status:     snap.Status,
		Principal:  snap.Principal,
		Admin:      snap.Grant.Admin(),
		Generation: snap.Generation,
	})
}

type loadingResponse struct {
	Status access.Status `json:"status"`
}

type navigationResponse struct {
	Status   access.Status `json:"status"`
	Sections []nav.Section `json:"sections"`
}

func (h *Handler) handleNavigation(w http.ResponseWriter, r *http.Request) {
	snap := h.Snapshot(r)
	if !h.writeUnsettled(w, snap) {
		return
	}
	h.writeNavigation(w, snap)
}

func (h *Handler) writeNavigation(w http.ResponseWriter, snap access.Snapshot) {
	sections := h.gate.Navigation(snap.Grant)
	if sections == nil {
		sections = []nav.Section{}
	}
	httpx.JSON(w, http.StatusOK, navigationResponse{Status: snap.Status, Sections: sections})
}

func (h *Handler) handleScreen(w http.ResponseWriter, r *http.Request) {
	snap := h.Snapshot(r)
	if !h.writeUnsettled(w, snap) {
		return
	}
	httpx.JSON(w, http.StatusOK, h.gate.Screen(snap.Grant, chi.URLParam(r, "resource")))
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	sessionID := shared.SessionID(r.Context())
	if h.registry.Snapshot(sessionID).Principal == nil {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	if err := h.registry.Refresh(r.Context(), sessionID); err != nil {
		switch {
		case errors.Is(err, access.ErrSuperseded), errors.Is(err, access.ErrCacheClosed):
			httpx.Problem(w, http.StatusConflict, "Conflict", "identity changed during refresh")
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			httpx.Problem(w, http.StatusServiceUnavailable, "Refresh Interrupted", "refresh did not complete")
		default:
			h.logger.Error("refresh permissions", slog.Any("error", err))
			httpx.RespondError(w, err)
		}
		return
	}
	snap := h.registry.Snapshot(sessionID)
	if !h.writeUnsettled(w, snap) {
		return
	}
	h.writeNavigation(w, snap)
}

type affordances struct {
	Edit   bool `json:"edit"`
	Delete bool `json:"delete"`
}

type resourceResponse struct {
	Resource    access.Resource   `json:"resource"`
	Label       string            `json:"label"`
	Permissions access.Capability `json:"permissions"`
	Affordances affordances       `json:"affordances"`
}

// handleResource is the entry point of a gated resource screen. It reports
// which actions the screen may offer.
func (h *Handler) handleResource(w http.ResponseWriter, r *http.Request) {
	screen, ok := nav.ScreenFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrForbidden)
		return
	}
	httpx.JSON(w, http.StatusOK, resourceResponse{
		Resource:    screen.Resource,
		Label:       screen.Label,
		Permissions: screen.Permissions,
		Affordances: affordances{
			Edit:   screen.Permissions.Allows(access.ActionEdit),
			Delete: screen.Permissions.Allows(access.ActionDelete),
		},
	})
}

// writeUnsettled answers anonymous and loading snapshots and reports whether
// the caller should continue.
func (h *Handler) writeUnsettled(w http.ResponseWriter, snap access.Snapshot) bool {
	switch snap.Status {
	case access.StatusAnonymous:
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return false
	case access.StatusLoading:
		w.Header().Set("Retry-After", "1")
		httpx.JSON(w, http.StatusAccepted, loadingResponse{Status: snap.Status})
		return false
	}
	return true
}
