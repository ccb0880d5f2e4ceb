package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rh-console/rh-console/internal/platform/db"
	"github.com/rh-console/rh-console/internal/shared"
)

// Repository defines persistence operations for auth module.
type Repository interface {
	FindByEmail(ctx context.Context, email string) (*User, error)
	CreateSession(ctx context.Context, id string, userID string, expiresAt time.Time, ip, ua string) error
	DeleteSession(ctx context.Context, id string) error
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const findUserByEmail = `
SELECT id::text, email, nome, password_hash, ativo, created_at, updated_at
FROM usuarios
WHERE lower(email) = lower($1)`

// FindByEmail fetches a user by email.
func (r *PGRepository) FindByEmail(ctx context.Context, email string) (*User, error) {
	var (
		user      User
		name      pgtype.Text
		createdAt pgtype.Timestamptz
		updatedAt pgtype.Timestamptz
	)
	err := r.pool.QueryRow(ctx, findUserByEmail, email).Scan(
		&user.ID, &user.Email, &name, &user.PasswordHash, &user.IsActive, &createdAt, &updatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("auth: find user: %w", err)
	}
	user.Name = name.String
	user.CreatedAt = createdAt.Time
	user.UpdatedAt = updatedAt.Time
	return &user, nil
}

// CreateSession records a login session and stamps the user's last login.
func (r *PGRepository) CreateSession(ctx context.Context, id string, userID string, expiresAt time.Time, ip, ua string) error {
	now := time.Now().UTC()
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
INSERT INTO usuario_sessoes (id, usuario_id, created_at, expires_at, ip, user_agent)
VALUES ($1, $2, $3, $4, $5, $6)`,
			id, userID,
			pgtype.Timestamptz{Time: now, Valid: true},
			pgtype.Timestamptz{Time: expiresAt.UTC(), Valid: true},
			pgtype.Text{String: ip, Valid: ip != ""},
			pgtype.Text{String: ua, Valid: ua != ""},
		); err != nil {
			return fmt.Errorf("auth: insert session: %w", err)
		}
		if _, err := tx.Exec(ctx, `UPDATE usuarios SET last_login_at = $2 WHERE id = $1`, userID, now); err != nil {
			return fmt.Errorf("auth: stamp login: %w", err)
		}
		return nil
	})
}

// DeleteSession removes a session record. A missing record reports
// shared.ErrNotFound.
func (r *PGRepository) DeleteSession(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM usuario_sessoes WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("auth: delete session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

var _ Repository = (*PGRepository)(nil)
