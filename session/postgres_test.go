package session

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
)

func newStoreWithMock(t *testing.T) (*PostgresStore, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresStore(db), mock, db
}

func testRecord() *Record {
	now := time.Now().Truncate(time.Second)
	return &Record{
		Fingerprint: "fp-1",
		OwnerID:     "owner-1",
		CreatedAt:   now,
		ExpiresAt:   now.Add(time.Hour),
		IP:          "203.0.113.7",
		UserAgent:   "test-agent",
	}
}

func TestPostgresCreate(t *testing.T) {
	store, mock, db := newStoreWithMock(t)
	defer db.Close()

	q := `(?s)^\s*INSERT\s+INTO\s+refresh_sessions\b.*VALUES\s*\(\$1,\s*\$2,\s*\$3,\s*\$4,\s*\$5,\s*\$6\)\s*$`
	rec := testRecord()

	mock.ExpectExec(q).
		WithArgs(rec.Fingerprint, rec.OwnerID, rec.CreatedAt, rec.ExpiresAt, rec.IP, rec.UserAgent).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := store.Create(context.Background(), rec); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostgresCreateDuplicate(t *testing.T) {
	store, mock, db := newStoreWithMock(t)
	defer db.Close()

	rec := testRecord()
	mock.ExpectExec(`INSERT\s+INTO\s+refresh_sessions`).
		WithArgs(rec.Fingerprint, rec.OwnerID, rec.CreatedAt, rec.ExpiresAt, rec.IP, rec.UserAgent).
		WillReturnError(&pgconn.PgError{Code: "23505"})

	err := store.Create(context.Background(), rec)
	if !errors.Is(err, ErrDuplicateFingerprint) {
		t.Fatalf("want ErrDuplicateFingerprint, got %v", err)
	}
}

func TestPostgresFindByFingerprint(t *testing.T) {
	store, mock, db := newStoreWithMock(t)
	defer db.Close()

	q := `(?s)^\s*SELECT\s+owner_id,.*FROM\s+refresh_sessions\s+WHERE\s+fingerprint\s*=\s*\$1\s*$`
	created := time.Now().Add(-time.Minute)
	expires := time.Now().Add(time.Hour)
	revoked := time.Now()

	rows := sqlmock.NewRows([]string{"owner_id", "created_at", "expires_at", "revoked_at", "replaced_by", "ip", "user_agent"}).
		AddRow("owner-1", created, expires, revoked, "fp-next", "203.0.113.7", "test-agent")
	mock.ExpectQuery(q).WithArgs("fp-1").WillReturnRows(rows)

	rec, err := store.FindByFingerprint(context.Background(), "fp-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.OwnerID != "owner-1" || rec.ReplacedBy != "fp-next" {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if rec.RevokedAt == nil || !rec.RevokedAt.Equal(revoked) {
		t.Fatalf("revoked_at not decoded: %+v", rec.RevokedAt)
	}
	if got := rec.State(time.Now()); got != StateRotated {
		t.Fatalf("want rotated state, got %v", got)
	}
}

func TestPostgresFindByFingerprintNotFound(t *testing.T) {
	store, mock, db := newStoreWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT\s+owner_id,`).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := store.FindByFingerprint(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestPostgresRevoke(t *testing.T) {
	store, mock, db := newStoreWithMock(t)
	defer db.Close()

	q := `(?s)^\s*UPDATE\s+refresh_sessions\s+SET\s+revoked_at\s*=\s*now\(\)\s+WHERE\s+fingerprint\s*=\s*\$1\s+AND\s+revoked_at\s+IS\s+NULL\s+AND\s+expires_at\s*>\s*now\(\)\s*$`

	mock.ExpectExec(q).WithArgs("fp-1").WillReturnResult(sqlmock.NewResult(0, 1))
	ok, err := store.Revoke(context.Background(), "fp-1")
	if err != nil || !ok {
		t.Fatalf("want winner, got ok=%v err=%v", ok, err)
	}

	// Second attempt matches zero rows: the caller lost the race.
	mock.ExpectExec(q).WithArgs("fp-1").WillReturnResult(sqlmock.NewResult(0, 0))
	ok, err = store.Revoke(context.Background(), "fp-1")
	if err != nil || ok {
		t.Fatalf("want loser, got ok=%v err=%v", ok, err)
	}
}

func TestPostgresRevokeAll(t *testing.T) {
	store, mock, db := newStoreWithMock(t)
	defer db.Close()

	q := `(?s)^\s*UPDATE\s+refresh_sessions\s+SET\s+revoked_at\s*=\s*now\(\)\s+WHERE\s+owner_id\s*=\s*\$1\s+AND\s+revoked_at\s+IS\s+NULL\s+AND\s+expires_at\s*>\s*now\(\)\s*$`

	mock.ExpectExec(q).WithArgs("owner-1").WillReturnResult(sqlmock.NewResult(0, 3))
	count, err := store.RevokeAll(context.Background(), "owner-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 3 {
		t.Fatalf("want 3 transitions, got %d", count)
	}
}

func TestPostgresMarkReplaced(t *testing.T) {
	store, mock, db := newStoreWithMock(t)
	defer db.Close()

	q := `(?s)^\s*UPDATE\s+refresh_sessions\s+SET\s+replaced_by\s*=\s*\$2\s+WHERE\s+fingerprint\s*=\s*\$1\s+AND\s+replaced_by\s+IS\s+NULL\s*$`

	mock.ExpectExec(q).WithArgs("fp-1", "fp-2").WillReturnResult(sqlmock.NewResult(0, 1))
	if err := store.MarkReplaced(context.Background(), "fp-1", "fp-2"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestPostgresMarkReplacedAlreadyLinked(t *testing.T) {
	store, mock, db := newStoreWithMock(t)
	defer db.Close()

	mock.ExpectExec(`UPDATE\s+refresh_sessions\s+SET\s+replaced_by`).
		WithArgs("fp-1", "fp-3").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT\s+EXISTS`).
		WithArgs("fp-1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	if err := store.MarkReplaced(context.Background(), "fp-1", "fp-3"); err != nil {
		t.Fatalf("re-link should be a no-op, got %v", err)
	}
}

func TestPostgresMarkReplacedMissing(t *testing.T) {
	store, mock, db := newStoreWithMock(t)
	defer db.Close()

	mock.ExpectExec(`UPDATE\s+refresh_sessions\s+SET\s+replaced_by`).
		WithArgs("gone", "fp-3").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT\s+EXISTS`).
		WithArgs("gone").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	err := store.MarkReplaced(context.Background(), "gone", "fp-3")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestPostgresFindActiveByOwner(t *testing.T) {
	store, mock, db := newStoreWithMock(t)
	defer db.Close()

	q := `(?s)^\s*SELECT\s+fingerprint,.*WHERE\s+owner_id\s*=\s*\$1\s+AND\s+revoked_at\s+IS\s+NULL\s+AND\s+expires_at\s*>\s*now\(\).*$`
	now := time.Now()
	rows := sqlmock.NewRows([]string{"fingerprint", "created_at", "expires_at", "ip", "user_agent"}).
		AddRow("fp-1", now.Add(-2*time.Minute), now.Add(time.Hour), "203.0.113.7", "agent-a").
		AddRow("fp-2", now.Add(-time.Minute), now.Add(time.Hour), "203.0.113.8", "agent-b")
	mock.ExpectQuery(q).WithArgs("owner-1").WillReturnRows(rows)

	records, err := store.FindActiveByOwner(context.Background(), "owner-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 2 || records[0].Fingerprint != "fp-1" || records[1].Fingerprint != "fp-2" {
		t.Fatalf("unexpected records: %+v", records)
	}
}

func TestPostgresDeleteExpired(t *testing.T) {
	store, mock, db := newStoreWithMock(t)
	defer db.Close()

	mock.ExpectExec(`DELETE\s+FROM\s+refresh_sessions\s+WHERE\s+expires_at\s*<=\s*\$1`).
		WithArgs(sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 7))

	deleted, err := store.DeleteExpired(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if deleted != 7 {
		t.Fatalf("want 7 deleted, got %d", deleted)
	}
}

func TestPostgresUnavailable(t *testing.T) {
	store, mock, db := newStoreWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT\s+owner_id,`).
		WithArgs("fp-1").
		WillReturnError(errors.New("connection refused"))

	_, err := store.FindByFingerprint(context.Background(), "fp-1")
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("want ErrUnavailable, got %v", err)
	}
}
