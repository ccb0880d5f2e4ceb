package access

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/rh-console/rh-console/internal/identity"
)

const selectGrantSQL = `SELECT permissoes FROM usuario_permissoes WHERE usuario_id = $1`

// RowQuerier is the subset of *pgxpool.Pool used by PGFetcher.
type RowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PGFetcher reads the principal's grant from the usuario_permissoes jsonb column.
type PGFetcher struct {
	db RowQuerier
}

// NewPGFetcher constructs a PGFetcher backed by db.
func NewPGFetcher(db RowQuerier) *PGFetcher {
	return &PGFetcher{db: db}
}

// Fetch implements Fetcher.
func (f *PGFetcher) Fetch(ctx context.Context, p identity.Principal) (*Grant, error) {
	var raw []byte
	if err := f.db.QueryRow(ctx, selectGrantSQL, p.ID).Scan(&raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fetchError(p.ID, "query", ErrGrantNotFound)
		}
		return nil, fetchError(p.ID, "query", err)
	}
	grant, err := ParseGrant(raw)
	if err != nil {
		return nil, fetchError(p.ID, "decode", err)
	}
	return grant, nil
}

var _ Fetcher = (*PGFetcher)(nil)
