package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/tokensmith/tokensmith/internal/dbx"
)

const pgUniqueViolation = "23505"

// PostgresStore persists refresh session records in the refresh_sessions
// table. Revocation is a conditional UPDATE guarded by "revoked_at IS NULL
// AND expires_at > now()", which gives the same single-winner guarantee the
// Redis backend gets from its Lua script. Expired rows linger until a
// Sweeper deletes them; until then they decode to the expired state.
type PostgresStore struct {
	db dbx.DBTX
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates a PostgresStore bound to the given handle, which
// may be a *sql.DB or an open transaction.
func NewPostgresStore(db dbx.DBTX) *PostgresStore {
	return &PostgresStore{db: db}
}

// Create inserts a fresh active record.
func (s *PostgresStore) Create(ctx context.Context, rec *Record) error {
	query := `
		INSERT INTO refresh_sessions (fingerprint, owner_id, created_at, expires_at, ip, user_agent)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := s.db.ExecContext(ctx, query,
		rec.Fingerprint, rec.OwnerID, rec.CreatedAt, rec.ExpiresAt, rec.IP, rec.UserAgent)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return ErrDuplicateFingerprint
		}
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// FindByFingerprint returns the record or ErrNotFound.
func (s *PostgresStore) FindByFingerprint(ctx context.Context, fingerprint string) (*Record, error) {
	query := `
		SELECT owner_id, created_at, expires_at, revoked_at, replaced_by, ip, user_agent
		FROM refresh_sessions
		WHERE fingerprint = $1
	`
	rec := &Record{Fingerprint: fingerprint}
	var revokedAt sql.NullTime
	var replacedBy sql.NullString
	err := s.db.QueryRowContext(ctx, query, fingerprint).Scan(
		&rec.OwnerID, &rec.CreatedAt, &rec.ExpiresAt, &revokedAt, &replacedBy, &rec.IP, &rec.UserAgent)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if revokedAt.Valid {
		t := revokedAt.Time
		rec.RevokedAt = &t
	}
	if replacedBy.Valid {
		rec.ReplacedBy = replacedBy.String
	}
	return rec, nil
}

// FindActiveByOwner returns the owner's records that are neither revoked nor
// expired.
func (s *PostgresStore) FindActiveByOwner(ctx context.Context, ownerID string) ([]*Record, error) {
	query := `
		SELECT fingerprint, created_at, expires_at, ip, user_agent
		FROM refresh_sessions
		WHERE owner_id = $1 AND revoked_at IS NULL AND expires_at > now()
		ORDER BY created_at
	`
	rows, err := s.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer rows.Close()

	records := []*Record{}
	for rows.Next() {
		rec := &Record{OwnerID: ownerID}
		if err := rows.Scan(&rec.Fingerprint, &rec.CreatedAt, &rec.ExpiresAt, &rec.IP, &rec.UserAgent); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return records, nil
}

// Revoke sets revoked_at iff the record is still active. The WHERE clause is
// the compare-and-set: under concurrent calls exactly one UPDATE matches.
func (s *PostgresStore) Revoke(ctx context.Context, fingerprint string) (bool, error) {
	query := `
		UPDATE refresh_sessions
		SET revoked_at = now()
		WHERE fingerprint = $1 AND revoked_at IS NULL AND expires_at > now()
	`
	result, err := s.db.ExecContext(ctx, query, fingerprint)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return affected == 1, nil
}

// RevokeAll revokes every active record of the owner in one statement and
// reports how many rows transitioned.
func (s *PostgresStore) RevokeAll(ctx context.Context, ownerID string) (int, error) {
	query := `
		UPDATE refresh_sessions
		SET revoked_at = now()
		WHERE owner_id = $1 AND revoked_at IS NULL AND expires_at > now()
	`
	result, err := s.db.ExecContext(ctx, query, ownerID)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return int(affected), nil
}

// MarkReplaced links a rotated record to its successor. The link is
// write-once; a record that already carries one is left untouched.
func (s *PostgresStore) MarkReplaced(ctx context.Context, fingerprint, replacedBy string) error {
	query := `
		UPDATE refresh_sessions
		SET replaced_by = $2
		WHERE fingerprint = $1 AND replaced_by IS NULL
	`
	result, err := s.db.ExecContext(ctx, query, fingerprint, replacedBy)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if affected == 1 {
		return nil
	}

	// Zero rows: either the record is gone or it was linked already.
	var exists bool
	err = s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM refresh_sessions WHERE fingerprint = $1)`,
		fingerprint).Scan(&exists)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if !exists {
		return ErrNotFound
	}
	return nil
}

// DeleteExpired removes rows whose expiry has passed. Sweeping is advisory
// cleanup only: expired rows already fail the active checks above.
func (s *PostgresStore) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM refresh_sessions WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return int(affected), nil
}
