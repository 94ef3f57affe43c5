package session

import "time"

// State is the lifecycle position of a refresh session record. A record is
// created exactly once, leaves Active exactly once, and never transitions
// again; fresh issuance always creates a brand-new record. Absence from the
// store (never issued, or already swept) is reported by the Store as
// ErrNotFound rather than a State value.
type State int

const (
	// StateActive means the record is neither revoked nor expired and may be
	// consumed by exactly one rotation.
	StateActive State = iota
	// StateRotated means the record was consumed by a rotation and links
	// forward to its replacement fingerprint.
	StateRotated
	// StateRevoked means the record was invalidated without replacement:
	// logout, global logout, or defensive revocation.
	StateRevoked
	// StateExpired means the record outlived its expiry but has not been
	// swept yet.
	StateExpired
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateRotated:
		return "rotated"
	case StateRevoked:
		return "revoked"
	case StateExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// Record is the server-side entity tracked per issued refresh token.
type Record struct {
	// Fingerprint is the one-way digest of the refresh token string and the
	// unique storage key.
	Fingerprint string
	OwnerID     string
	CreatedAt   time.Time
	ExpiresAt   time.Time
	// RevokedAt is write-once: nil means eligible for use, and once set it is
	// never cleared.
	RevokedAt *time.Time
	// ReplacedBy holds the successor fingerprint when the record was rotated
	// forward, forming an auditable chain of issuances.
	ReplacedBy string
	IP         string
	UserAgent  string
}

// State derives the tagged lifecycle state once, so callers branch on a
// single value instead of re-deriving it from nullable fields. Revocation
// takes precedence over expiry: a record revoked before expiring stays
// Rotated/Revoked.
func (r *Record) State(now time.Time) State {
	if r.RevokedAt != nil {
		if r.ReplacedBy != "" {
			return StateRotated
		}
		return StateRevoked
	}
	if r.IsExpired(now) {
		return StateExpired
	}
	return StateActive
}

// IsExpired reports whether now is at or past the record's expiry.
func (r *Record) IsExpired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}

// IsActive reports whether the record is neither revoked nor expired.
func (r *Record) IsActive(now time.Time) bool {
	return r.RevokedAt == nil && !r.IsExpired(now)
}
