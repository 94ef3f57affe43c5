package identity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/tokensmith/tokensmith/internal/dbx"
)

const pgUniqueViolation = "23505"

// PostgresProvider persists identities in the identities table. Uniqueness
// is enforced by a unique index on lower(email), so the database, not the
// caller, is the authority on duplicates.
type PostgresProvider struct {
	db dbx.DBTX
}

var _ Provider = (*PostgresProvider)(nil)

// NewPostgresProvider creates a provider bound to the given handle.
func NewPostgresProvider(db dbx.DBTX) *PostgresProvider {
	return &PostgresProvider{db: db}
}

func (p *PostgresProvider) Create(ctx context.Context, email, passwordHash string) (*Identity, error) {
	query := `
		INSERT INTO identities (email, password_hash)
		VALUES ($1, $2)
		RETURNING id, created_at
	`
	ident := &Identity{Email: email, PasswordHash: passwordHash}
	err := p.db.QueryRowContext(ctx, query, email, passwordHash).Scan(&ident.ID, &ident.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("create identity: %w", err)
	}
	return ident, nil
}

func (p *PostgresProvider) FindByEmail(ctx context.Context, email string) (*Identity, error) {
	query := `
		SELECT id, email, password_hash, created_at
		FROM identities
		WHERE lower(email) = lower($1)
	`
	return p.scanOne(p.db.QueryRowContext(ctx, query, email))
}

func (p *PostgresProvider) FindByID(ctx context.Context, id string) (*Identity, error) {
	query := `
		SELECT id, email, password_hash, created_at
		FROM identities
		WHERE id = $1
	`
	return p.scanOne(p.db.QueryRowContext(ctx, query, id))
}

func (p *PostgresProvider) scanOne(row *sql.Row) (*Identity, error) {
	ident := &Identity{}
	err := row.Scan(&ident.ID, &ident.Email, &ident.PasswordHash, &ident.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find identity: %w", err)
	}
	return ident, nil
}
