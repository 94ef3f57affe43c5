// Package identity stores the accounts that own refresh sessions. It is the
// minimum surface the token flows need: create on registration, look up by
// email on login, look up by ID on rotation.
package identity

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when no identity matches the lookup.
	ErrNotFound = errors.New("identity not found")
	// ErrEmailTaken is returned when registration collides with an existing
	// email, compared case-insensitively.
	ErrEmailTaken = errors.New("email already registered")
)

// Identity is a registered account.
type Identity struct {
	ID           string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// Provider is the persistence contract for identities. Email comparisons are
// case-insensitive in every implementation.
type Provider interface {
	// Create stores a new identity and returns it with its generated ID.
	Create(ctx context.Context, email, passwordHash string) (*Identity, error)

	// FindByEmail returns the identity whose email matches, or ErrNotFound.
	FindByEmail(ctx context.Context, email string) (*Identity, error)

	// FindByID returns the identity or ErrNotFound.
	FindByID(ctx context.Context, id string) (*Identity, error)
}
