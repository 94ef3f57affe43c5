package session

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned when no record exists for a fingerprint. For the
	// rotation protocol this is the Absent case: never issued here, or already
	// swept after expiry.
	ErrNotFound = errors.New("refresh session not found")
	// ErrDuplicateFingerprint is returned when Create would violate the
	// fingerprint uniqueness constraint.
	ErrDuplicateFingerprint = errors.New("refresh session fingerprint already exists")
	// ErrUnavailable wraps backend transport failures.
	ErrUnavailable = errors.New("session store unavailable")
)

// Store is the persistence contract for refresh session records. Revoke and
// RevokeAll must be atomic conditional updates ("revoke iff not yet revoked"),
// never read-then-write, so concurrent rotation attempts on one fingerprint
// resolve to exactly one winner.
type Store interface {
	// Create persists a fresh record. Fails with ErrDuplicateFingerprint when
	// the fingerprint is already present.
	Create(ctx context.Context, rec *Record) error

	// FindByFingerprint returns the record or ErrNotFound.
	FindByFingerprint(ctx context.Context, fingerprint string) (*Record, error)

	// FindActiveByOwner returns all records for the owner that are neither
	// revoked nor expired.
	FindActiveByOwner(ctx context.Context, ownerID string) ([]*Record, error)

	// Revoke sets revoked-at iff the record exists and is still active.
	// Returns true only for the call that performed the transition.
	Revoke(ctx context.Context, fingerprint string) (bool, error)

	// RevokeAll revokes every active record of the owner and returns the
	// number of records actually transitioned.
	RevokeAll(ctx context.Context, ownerID string) (int, error)

	// MarkReplaced links a rotated record forward to its successor. The link
	// is write-once; re-linking an already linked record is a no-op. Returns
	// ErrNotFound when the record is gone.
	MarkReplaced(ctx context.Context, fingerprint, replacedBy string) error
}
