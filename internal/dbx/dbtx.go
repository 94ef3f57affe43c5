// Package dbx holds the minimal database/sql surface shared by the
// Postgres-backed stores, so each store works unchanged against *sql.DB or
// *sql.Tx.
package dbx

import (
	"context"
	"database/sql"
)

// DBTX is the query subset the stores need. Both *sql.DB and *sql.Tx
// satisfy it.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}
