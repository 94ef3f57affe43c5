// Package password hashes and verifies credentials with bcrypt.
package password

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

const (
	minCost = bcrypt.DefaultCost
	maxCost = bcrypt.MaxCost

	// DefaultCost balances verification latency against brute-force cost.
	DefaultCost = 12

	minPasswordLength = 8
	// bcrypt silently truncates beyond 72 bytes, so longer inputs are
	// rejected instead.
	maxPasswordBytes = 72
)

// ErrPasswordPolicy is returned when a password fails the length checks.
var ErrPasswordPolicy = errors.New("password does not meet policy")

// Hasher wraps bcrypt with a fixed cost.
type Hasher struct {
	cost int
}

// NewHasher creates a Hasher. A zero cost selects DefaultCost.
func NewHasher(cost int) (*Hasher, error) {
	if cost == 0 {
		cost = DefaultCost
	}
	if cost < minCost || cost > maxCost {
		return nil, fmt.Errorf("bcrypt cost %d out of range [%d, %d]", cost, minCost, maxCost)
	}
	return &Hasher{cost: cost}, nil
}

// Hash returns the bcrypt hash of the password after policy checks.
func (h *Hasher) Hash(password string) (string, error) {
	if len(password) < minPasswordLength || len(password) > maxPasswordBytes {
		return "", ErrPasswordPolicy
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hashed), nil
}

// Verify reports whether the password matches the stored hash. A mismatch is
// (false, nil); errors indicate a malformed hash.
func (h *Hasher) Verify(password, hash string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return false, nil
	}
	return false, fmt.Errorf("verify password: %w", err)
}
