package auth_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/rh-console/rh-console/internal/auth"
	"github.com/rh-console/rh-console/internal/shared"
)

type lookupRepo struct {
	stubRepo
	lookups   []string
	lookupErr error
	deleteErr error
}

func (l *lookupRepo) FindByEmail(ctx context.Context, email string) (*auth.User, error) {
	l.lookups = append(l.lookups, email)
	if l.lookupErr != nil {
		return nil, l.lookupErr
	}
	return l.stubRepo.FindByEmail(ctx, email)
}

func (l *lookupRepo) DeleteSession(ctx context.Context, id string) error {
	return l.deleteErr
}

func newLookupRepo(t *testing.T, active bool) *lookupRepo {
	t.Helper()
	hashed, err := bcrypt.GenerateFromPassword([]byte("correctpass"), bcrypt.MinCost)
	require.NoError(t, err)
	return &lookupRepo{stubRepo: stubRepo{user: &auth.User{
		ID: "u-1", Email: "ana@rh.local", PasswordHash: string(hashed), IsActive: active,
	}}}
}

func TestAuthenticateNormalizesEmail(t *testing.T) {
	repo := newLookupRepo(t, true)
	user, err := auth.NewService(repo).Authenticate(context.Background(), "  Ana@RH.local ", "correctpass")
	require.NoError(t, err)
	assert.Equal(t, "u-1", user.ID)
	assert.Equal(t, []string{"ana@rh.local"}, repo.lookups)
}

func TestAuthenticateRejections(t *testing.T) {
	cases := map[string]struct {
		active   bool
		email    string
		password string
	}{
		"unknown user":   {active: true, email: "bruno@rh.local", password: "correctpass"},
		"wrong password": {active: true, email: "ana@rh.local", password: "wrongpass"},
		"inactive user":  {active: false, email: "ana@rh.local", password: "correctpass"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			svc := auth.NewService(newLookupRepo(t, tc.active))
			_, err := svc.Authenticate(context.Background(), tc.email, tc.password)
			assert.ErrorIs(t, err, shared.ErrInvalidCredentials)
		})
	}
}

func TestAuthenticateSurfacesStorageErrors(t *testing.T) {
	repo := newLookupRepo(t, true)
	repo.lookupErr = errors.New("pool closed")

	_, err := auth.NewService(repo).Authenticate(context.Background(), "ana@rh.local", "correctpass")
	require.Error(t, err)
	assert.NotErrorIs(t, err, shared.ErrInvalidCredentials)
	assert.ErrorIs(t, err, repo.lookupErr)
}

func TestRegisterSessionRequiresIDs(t *testing.T) {
	repo := newLookupRepo(t, true)
	svc := auth.NewService(repo)

	assert.Error(t, svc.RegisterSession(context.Background(), auth.Login{UserID: "u-1"}))
	require.NoError(t, svc.RegisterSession(context.Background(), auth.Login{
		SessionID: "s-1", UserID: "u-1", ExpiresAt: time.Now().Add(time.Hour),
	}))
	assert.Equal(t, []string{"s-1"}, repo.created)
}

func TestRemoveSessionIgnoresMissingRecord(t *testing.T) {
	repo := newLookupRepo(t, true)
	svc := auth.NewService(repo)

	repo.deleteErr = shared.ErrNotFound
	assert.NoError(t, svc.RemoveSession(context.Background(), "s-1"))

	repo.deleteErr = errors.New("connection reset")
	assert.Error(t, svc.RemoveSession(context.Background(), "s-1"))
}
