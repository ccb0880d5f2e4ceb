package shared

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/rh-console/rh-console/internal/identity"
)

// SessionManager orchestrates cookie based sessions backed by Redis.
type SessionManager struct {
	client     *redis.Client
	cookieName string
	ttl        time.Duration
	secure     bool
	prefix     string
}

// Session holds per-request session data. A session whose cookie outlived
// its redis record reports Expired.
type Session struct {
	ID         string
	principal  *identity.Principal
	previousID string
	isNew      bool
	expired    bool
	dirty      bool
	destroyed  bool
}

type sessionPayload struct {
	Principal *identity.Principal `json:"principal,omitempty"`
	IssuedAt  time.Time           `json:"issued_at"`
}

// NewSessionManager constructs a SessionManager. secret namespaces the redis
// keys so consoles sharing a redis do not read each other's sessions.
func NewSessionManager(client *redis.Client, cookieName string, secret string, ttl time.Duration, secure bool) *SessionManager {
	prefix := "rh:session:"
	if secret != "" {
		prefix = "rh:session:" + uuid.NewSHA1(uuid.NameSpaceOID, []byte(secret)).String()[:8] + ":"
	}
	return &SessionManager{
		client:     client,
		cookieName: cookieName,
		ttl:        ttl,
		secure:     secure,
		prefix:     prefix,
	}
}

// Load loads the session named by the request cookie or starts a new one.
func (sm *SessionManager) Load(ctx context.Context, r *http.Request) (*Session, error) {
	cookie, err := r.Cookie(sm.cookieName)
	if err != nil {
		if errors.Is(err, http.ErrNoCookie) {
			return sm.newSession(), nil
		}
		return nil, err
	}
	if _, err := uuid.Parse(cookie.Value); err != nil {
		return sm.newSession(), nil
	}

	payload, err := sm.client.Get(ctx, sm.redisKey(cookie.Value)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			sess := sm.newSession()
			sess.ID = cookie.Value
			sess.expired = true
			return sess, nil
		}
		return nil, fmt.Errorf("shared: load session: %w", err)
	}

	var stored sessionPayload
	if err := json.Unmarshal(payload, &stored); err != nil {
		return nil, fmt.Errorf("shared: decode session: %w", err)
	}
	return &Session{ID: cookie.Value, principal: stored.Principal}, nil
}

// Commit persists the session and writes cookie headers as needed.
func (sm *SessionManager) Commit(ctx context.Context, w http.ResponseWriter, r *http.Request, sess *Session) error {
	if sess == nil {
		return nil
	}
	if sess.previousID != "" {
		if err := sm.client.Del(ctx, sm.redisKey(sess.previousID)).Err(); err != nil && !errors.Is(err, redis.Nil) {
			return fmt.Errorf("shared: drop renewed session: %w", err)
		}
		sess.previousID = ""
	}

	if sess.destroyed || (sess.expired && sess.principal == nil) {
		if err := sm.client.Del(ctx, sm.redisKey(sess.ID)).Err(); err != nil && !errors.Is(err, redis.Nil) {
			return fmt.Errorf("shared: destroy session: %w", err)
		}
		http.SetCookie(w, &http.Cookie{
			Name:     sm.cookieName,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   sm.secure,
			SameSite: http.SameSiteStrictMode,
		})
		return nil
	}

	// Anonymous sessions are not stored.
	if sess.principal == nil {
		return nil
	}
	if sess.dirty {
		data, err := json.Marshal(sessionPayload{Principal: sess.principal, IssuedAt: time.Now().UTC()})
		if err != nil {
			return err
		}
		if err := sm.client.Set(ctx, sm.redisKey(sess.ID), data, sm.ttl).Err(); err != nil {
			return fmt.Errorf("shared: save session: %w", err)
		}
		sess.dirty = false
		sess.isNew = false
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sm.cookieName,
		Value:    sess.ID,
		Path:     "/",
		HttpOnly: true,
		Secure:   sm.secure,
		SameSite: http.SameSiteStrictMode,
		Expires:  time.Now().Add(sm.ttl),
	})
	return nil
}

// Destroy marks the session for deletion.
func (sm *SessionManager) Destroy(sess *Session) {
	if sess == nil {
		return
	}
	sess.destroyed = true
}

// Renew moves the session to a fresh ID. The old record is dropped on Commit.
func (sm *SessionManager) Renew(sess *Session) {
	if sess == nil {
		return
	}
	if !sess.isNew && !sess.expired {
		sess.previousID = sess.ID
	}
	sess.ID = uuid.NewString()
	sess.expired = false
	sess.dirty = true
}

// TTL exposes the configured session lifetime.
func (sm *SessionManager) TTL() time.Duration {
	return sm.ttl
}

// CookieName returns the cookie identifier used for sessions.
func (sm *SessionManager) CookieName() string {
	return sm.cookieName
}

// SetPrincipal signs p in to the session.
func (s *Session) SetPrincipal(p identity.Principal) {
	s.principal = &p
	s.dirty = true
}

// Principal returns a copy of the signed-in principal, or nil.
func (s *Session) Principal() *identity.Principal {
	if s == nil || s.principal == nil {
		return nil
	}
	p := *s.principal
	return &p
}

// Expired reports whether the request carried a cookie whose record is gone.
func (s *Session) Expired() bool {
	return s != nil && s.expired
}

// Destroyed reports whether the session is marked for deletion.
func (s *Session) Destroyed() bool {
	return s != nil && s.destroyed
}

func (sm *SessionManager) newSession() *Session {
	return &Session{ID: uuid.NewString(), isNew: true}
}

func (sm *SessionManager) redisKey(id string) string {
	return sm.prefix + id
}
