package auth

import (
	"time"

	"github.com/rh-console/rh-console/internal/identity"
)

// User represents a console account.
type User struct {
	ID           string
	Email        string
	Name         string
	PasswordHash string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Principal is the identity published for the user once signed in.
func (u *User) Principal() identity.Principal {
	return identity.Principal{ID: u.ID, Email: u.Email, Name: u.Name}
}
