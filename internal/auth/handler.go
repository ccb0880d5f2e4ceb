package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/rh-console/rh-console/internal/identity"
	"github.com/rh-console/rh-console/internal/platform/httpx"
	"github.com/rh-console/rh-console/internal/shared"
)

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger         *slog.Logger
	service        *Service
	sessionManager *shared.SessionManager
	publisher      identity.Publisher
	validator      *validator.Validate
}

// NewHandler constructs a Handler instance. Identity changes are announced on
// publisher after the session is updated.
func NewHandler(logger *slog.Logger, service *Service, sessions *shared.SessionManager, publisher identity.Publisher) *Handler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Handler{
		logger:         logger,
		service:        service,
		sessionManager: sessions,
		publisher:      publisher,
		validator:      validator.New(),
	}
}

// MountRoutes registers auth routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/login", h.handleLogin)
	r.Post("/logout", h.handleLogout)
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

type loginResponse struct {
	Principal identity.Principal `json:"principal"`
	ExpiresAt time.Time          `json:"expires_at"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		h.logger.Error("session missing during login")
		httpx.RespondError(w, errors.New("session missing"))
		return
	}

	var req loginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, err)
		return
	}

	user, err := h.service.Authenticate(r.Context(), req.Email, req.Password)
	if errors.Is(err, shared.ErrInvalidCredentials) {
		h.logger.Info("login rejected", slog.String("email", req.Email))
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "invalid email or password")
		return
	}
	if err != nil {
		h.logger.Error("authenticate", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}

	if sess.Principal() != nil {
		h.endSession(r, sess.ID)
	}
	h.sessionManager.Renew(sess)
	principal := user.Principal()
	sess.SetPrincipal(principal)
	expiresAt := time.Now().Add(h.sessionManager.TTL())
	login := Login{SessionID: sess.ID, UserID: user.ID, ExpiresAt: expiresAt, IP: r.RemoteAddr, UserAgent: r.UserAgent()}
	if err := h.service.RegisterSession(r.Context(), login); err != nil {
		h.logger.Warn("register session", slog.Any("error", err))
	}
	if err := h.publisher.Publish(r.Context(), identity.SignIn(sess.ID, principal)); err != nil {
		h.logger.Warn("publish sign-in", slog.String("principal", principal.ID), slog.Any("error", err))
	}

	httpx.JSON(w, http.StatusOK, loginResponse{Principal: principal, ExpiresAt: expiresAt.UTC()})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil || sess.Principal() == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	id := sess.ID
	h.sessionManager.Destroy(sess)
	h.endSession(r, id)
	w.WriteHeader(http.StatusNoContent)
}

// endSession drops the ledger row of id and announces its sign-out.
func (h *Handler) endSession(r *http.Request, id string) {
	if err := h.service.RemoveSession(r.Context(), id); err != nil {
		h.logger.Warn("remove session", slog.Any("error", err))
	}
	if err := h.publisher.Publish(r.Context(), identity.SignOut(id)); err != nil {
		h.logger.Warn("publish sign-out", slog.String("session", id), slog.Any("error", err))
	}
}

// HandleLoginForTest exposes the login handler for tests.
func (h *Handler) HandleLoginForTest(w http.ResponseWriter, r *http.Request) {
	h.handleLogin(w, r)
}

// HandleLogoutForTest exposes the logout handler for tests.
func (h *Handler) HandleLogoutForTest(w http.ResponseWriter, r *http.Request) {
	h.handleLogout(w, r)
}
