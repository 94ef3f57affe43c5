// Package tokensmith provides a token-based authentication engine with JWT
// access tokens, single-use rotating refresh tokens, replay detection, and
// pluggable Redis or Postgres session storage.
//
// The package is designed for concurrent server workloads: Engine methods are
// safe to call from multiple goroutines after initialization through
// [Builder.Build].
//
// # Architecture boundaries
//
// tokensmith is the public surface. It exposes [Engine], [Builder], [Config],
// and value types (TokenPair, AuthResult, SessionInfo, MetricsSnapshot).
// Supporting concerns — rate limiting, audit dispatch — live under internal/
// and are never exported. Session storage ([session.Store]) and identity
// lookup ([identity.Provider]) are public interfaces so callers can supply
// their own backends.
//
// # Refresh rotation contract
//
// A refresh token is single-use. Rotate atomically revokes the presented
// session and issues a replacement; under concurrent presentation of the same
// token exactly one caller wins. A token that verifies cryptographically but
// has no session record is treated as replay evidence: every session of that
// subject is revoked and [ErrRefreshReuse] is returned.
//
// # Performance contract
//
// VerifyAccess is the hot path. It is pure signature verification — no
// storage round-trip — and must not allocate beyond the returned AuthResult.
// Login, Rotate, and revocation operations are allowed storage round-trips.
package tokensmith
