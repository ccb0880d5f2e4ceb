package shared_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rh-console/rh-console/internal/identity"
	"github.com/rh-console/rh-console/internal/shared"
)

func newManager(t *testing.T) (*shared.SessionManager, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return shared.NewSessionManager(client, "rh_session", "secret", time.Hour, true), mr
}

func request(cookie *http.Cookie) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	return req
}

func commit(t *testing.T, sm *shared.SessionManager, req *http.Request, sess *shared.Session) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	require.NoError(t, sm.Commit(context.Background(), rec, req, sess))
	return rec
}

func TestAnonymousSessionIsNotStored(t *testing.T) {
	sm, mr := newManager(t)

	req := request(nil)
	sess, err := sm.Load(context.Background(), req)
	require.NoError(t, err)
	assert.NotEmpty(t, sess.ID)
	assert.Nil(t, sess.Principal())
	assert.False(t, sess.Expired())

	rec := commit(t, sm, req, sess)
	assert.Empty(t, rec.Result().Cookies())
	assert.Empty(t, mr.Keys())
}

func TestPrincipalRoundTrip(t *testing.T) {
	sm, mr := newManager(t)
	ana := identity.Principal{ID: "ana", Email: "ana@rh.local", Name: "Ana"}

	req := request(nil)
	sess, err := sm.Load(context.Background(), req)
	require.NoError(t, err)
	sess.SetPrincipal(ana)
	rec := commit(t, sm, req, sess)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, sess.ID, cookies[0].Value)
	assert.True(t, cookies[0].HttpOnly)
	assert.True(t, cookies[0].Secure)
	assert.Equal(t, http.SameSiteStrictMode, cookies[0].SameSite)
	require.Len(t, mr.Keys(), 1)
	assert.Equal(t, time.Hour, mr.TTL(mr.Keys()[0]))

	loaded, err := sm.Load(context.Background(), request(cookies[0]))
	require.NoError(t, err)
	assert.Equal(t, sess.ID, loaded.ID)
	assert.Equal(t, &ana, loaded.Principal())
}

func TestExpiredSessionIsReported(t *testing.T) {
	sm, mr := newManager(t)

	req := request(nil)
	sess, err := sm.Load(context.Background(), req)
	require.NoError(t, err)
	sess.SetPrincipal(identity.Principal{ID: "ana"})
	cookie := commit(t, sm, req, sess).Result().Cookies()[0]

	mr.FastForward(2 * time.Hour)

	req = request(cookie)
	expired, err := sm.Load(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, expired.Expired())
	assert.Equal(t, cookie.Value, expired.ID)
	assert.Nil(t, expired.Principal())

	cleared := commit(t, sm, req, expired).Result().Cookies()
	require.Len(t, cleared, 1)
	assert.Equal(t, -1, cleared[0].MaxAge)
}

func TestRenewRotatesID(t *testing.T) {
	sm, mr := newManager(t)

	req := request(nil)
	sess, err := sm.Load(context.Background(), req)
	require.NoError(t, err)
	sess.SetPrincipal(identity.Principal{ID: "ana"})
	cookie := commit(t, sm, req, sess).Result().Cookies()[0]

	req = request(cookie)
	loaded, err := sm.Load(context.Background(), req)
	require.NoError(t, err)
	sm.Renew(loaded)
	loaded.SetPrincipal(identity.Principal{ID: "bia"})
	renewed := commit(t, sm, req, loaded).Result().Cookies()[0]

	assert.NotEqual(t, cookie.Value, renewed.Value)
	assert.Len(t, mr.Keys(), 1)

	stale, err := sm.Load(context.Background(), request(cookie))
	require.NoError(t, err)
	assert.True(t, stale.Expired())
}

func TestDestroyDropsRecord(t *testing.T) {
	sm, mr := newManager(t)

	req := request(nil)
	sess, err := sm.Load(context.Background(), req)
	require.NoError(t, err)
	sess.SetPrincipal(identity.Principal{ID: "ana"})
	cookie := commit(t, sm, req, sess).Result().Cookies()[0]

	req = request(cookie)
	loaded, err := sm.Load(context.Background(), req)
	require.NoError(t, err)
	sm.Destroy(loaded)
	assert.True(t, loaded.Destroyed())
	commit(t, sm, req, loaded)
	assert.Empty(t, mr.Keys())
}

func TestMalformedCookieStartsFreshSession(t *testing.T) {
	sm, _ := newManager(t)
	sess, err := sm.Load(context.Background(), request(&http.Cookie{Name: "rh_session", Value: "../../etc"}))
	require.NoError(t, err)
	assert.NotEqual(t, "../../etc", sess.ID)
	assert.False(t, sess.Expired())
}
