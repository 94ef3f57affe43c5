package tokensmith

import "errors"

var (
	// ErrUnauthorized is returned for access tokens that fail verification.
	// Join semantics preserve the underlying token sentinel, so callers can
	// still distinguish an expired token from a forged one.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidCredentials covers unknown email and wrong password alike.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrEmailExists is returned when registration hits an existing email.
	ErrEmailExists = errors.New("email already registered")
	// ErrInvalidEmail is returned when the supplied email does not parse.
	ErrInvalidEmail = errors.New("invalid email address")
	// ErrIdentityNotFound is returned when a rotation's owner no longer exists.
	ErrIdentityNotFound = errors.New("identity not found")
	// ErrLoginRateLimited is returned when the login budget is exhausted.
	ErrLoginRateLimited = errors.New("login rate limited")
	// ErrRefreshRateLimited is returned when the rotation budget is exhausted.
	ErrRefreshRateLimited = errors.New("refresh rate limited")
	// ErrRefreshInvalid is returned for refresh tokens whose signature or
	// claims fail verification. Nothing is revealed about stored state.
	ErrRefreshInvalid = errors.New("invalid refresh token")
	// ErrRefreshInactive is returned when the presented token's record exists
	// but is no longer consumable: already rotated, revoked, or expired.
	ErrRefreshInactive = errors.New("refresh token no longer active")
	// ErrRefreshReuse is returned when a token with a valid signature has no
	// record: the rotation-or-sweep already consumed it, so someone is
	// replaying. All of the subject's sessions are revoked as a side effect.
	ErrRefreshReuse = errors.New("refresh token reuse detected")
	// ErrEngineNotReady is returned when the engine is missing a dependency.
	ErrEngineNotReady = errors.New("engine not initialized")
)
