package app_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/rh-console/rh-console/internal/access"
	"github.com/rh-console/rh-console/internal/app"
	"github.com/rh-console/rh-console/internal/auth"
	"github.com/rh-console/rh-console/internal/console"
	"github.com/rh-console/rh-console/internal/identity"
	"github.com/rh-console/rh-console/internal/nav"
	"github.com/rh-console/rh-console/internal/observability"
	"github.com/rh-console/rh-console/internal/shared"
	_ "github.com/rh-console/rh-console/testing"
)

type userRepo struct{ user *auth.User }

func (u userRepo) FindByEmail(ctx context.Context, email string) (*auth.User, error) {
	if email != u.user.Email {
		return nil, shared.ErrNotFound
	}
	return u.user, nil
}

func (userRepo) CreateSession(context.Context, string, string, time.Time, string, string) error {
	return nil
}

func (userRepo) DeleteSession(context.Context, string) error { return nil }

func newTestLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func newServer(t *testing.T, health map[string]app.HealthCheck) *httptest.Server {
	t.Helper()
	hashed, err := bcrypt.GenerateFromPassword([]byte("correctpass"), bcrypt.MinCost)
	require.NoError(t, err)
	repo := userRepo{user: &auth.User{ID: "u-1", Email: "ana@rh.local", PasswordHash: string(hashed), IsActive: true}}

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cfg := &app.Config{AppEnv: "test", AppRequestTimeout: 5 * time.Second, SessionSecret: "s"}
	sessions := shared.NewSessionManager(client, "rh_session", cfg.SessionSecret, time.Hour, false)

	hub := identity.NewHub()
	fetcher := access.FetcherFunc(func(ctx context.Context, p identity.Principal) (*access.Grant, error) {
		return access.NewGrant(false, map[string]access.Capability{
			"dashboard": {Ver: true},
			"metas":     {Ver: true, Editar: true},
		}), nil
	})
	registry := console.NewRegistry(hub, hub, fetcher, nil)
	t.Cleanup(registry.Close)
	catalog, err := nav.DefaultCatalog()
	require.NoError(t, err)

	router := app.NewRouter(app.RouterParams{
		Logger:         newTestLogger(),
		Config:         cfg,
		SessionManager: sessions,
		AuthHandler:    auth.NewHandler(nil, auth.NewService(repo), sessions, hub),
		ConsoleHandler: console.NewHandler(registry, nav.NewGate(catalog, nil), nil, 2*time.Second),
		Metrics:        observability.NewMetrics(),
		Health:         health,
	})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

func send(t *testing.T, srv *httptest.Server, method, path, body string, cookie *http.Cookie) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, srv.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if cookie != nil {
		req.AddCookie(cookie)
	}
	res, err := srv.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = res.Body.Close() })
	return res
}

func TestSignInNavigateSignOut(t *testing.T) {
	srv := newServer(t, nil)

	res := send(t, srv, http.MethodGet, "/api/navigation", "", nil)
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
	assert.Equal(t, "nosniff", res.Header.Get("X-Content-Type-Options"))

	res = send(t, srv, http.MethodPost, "/auth/login", `{"email":"ana@rh.local","password":"correctpass"}`, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	cookies := res.Cookies()
	require.Len(t, cookies, 1)
	cookie := cookies[0]

	res = send(t, srv, http.MethodGet, "/api/resources/metas", "", cookie)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	res = send(t, srv, http.MethodGet, "/api/resources/usuarios", "", cookie)
	assert.Equal(t, http.StatusForbidden, res.StatusCode)

	res = send(t, srv, http.MethodPost, "/auth/logout", "", cookie)
	assert.Equal(t, http.StatusNoContent, res.StatusCode)

	res = send(t, srv, http.MethodGet, "/api/resources/metas", "", cookie)
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
}

func TestHealthAndMetrics(t *testing.T) {
	srv := newServer(t, map[string]app.HealthCheck{
		"redis": func(*http.Request) error { return nil },
	})
	res := send(t, srv, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, res.StatusCode)

	send(t, srv, http.MethodGet, "/api/session", "", nil)
	res = send(t, srv, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	buf := new(strings.Builder)
	_, err := io.Copy(buf, res.Body)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), `rh_http_requests_total{code="200",route="/api/session"} 1`)
}

func TestHealthReportsDegraded(t *testing.T) {
	srv := newServer(t, map[string]app.HealthCheck{
		"postgres": func(*http.Request) error { return errors.New("connection refused") },
	})
	res := send(t, srv, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, res.StatusCode)
}

func TestUnknownRouteIsProblem(t *testing.T) {
	srv := newServer(t, nil)
	res := send(t, srv, http.MethodGet, "/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
	assert.Equal(t, "application/problem+json", res.Header.Get("Content-Type"))
}
