package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/rh-console/rh-console/internal/shared"
)

// dummyHash is compared against when no user matches so unknown emails cost
// the same bcrypt round as wrong passwords.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("rh-console-unknown-user"), bcrypt.DefaultCost)

// Login describes a session record written after a successful sign-in.
type Login struct {
	SessionID string
	UserID    string
	ExpiresAt time.Time
	IP        string
	UserAgent string
}

// Service checks credentials and keeps the session ledger.
type Service struct {
	repo Repository
}

// NewService constructs a new Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Authenticate validates email/password credentials. Unknown users, inactive
// users and wrong passwords all report shared.ErrInvalidCredentials; storage
// failures are returned as is.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	user, err := s.repo.FindByEmail(ctx, email)
	switch {
	case errors.Is(err, shared.ErrNotFound):
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return nil, shared.ErrInvalidCredentials
	case err != nil:
		return nil, fmt.Errorf("auth: authenticate: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, shared.ErrInvalidCredentials
	}
	return user, nil
}

// RegisterSession records l in the session ledger.
func (s *Service) RegisterSession(ctx context.Context, l Login) error {
	if l.SessionID == "" || l.UserID == "" {
		return errors.New("auth: register session: missing session or user id")
	}
	return s.repo.CreateSession(ctx, l.SessionID, l.UserID, l.ExpiresAt, l.IP, l.UserAgent)
}

// RemoveSession deletes a session record. A record already purged is not an
// error.
func (s *Service) RemoveSession(ctx context.Context, id string) error {
	if err := s.repo.DeleteSession(ctx, id); err != nil && !errors.Is(err, shared.ErrNotFound) {
		return err
	}
	return nil
}
