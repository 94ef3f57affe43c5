package tokensmith

import "time"

// TokenPair is one issuance: a short-lived access token and the single-use
// refresh token that can replace it.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	// TokenType is always "Bearer"; carried so transports can echo it.
	TokenType string
	// ExpiresIn is the access token lifetime in whole seconds.
	ExpiresIn int64
}

// AuthResult is returned by the credential and verification flows.
type AuthResult struct {
	OwnerID string
	Email   string
	// TokenID is the access token's jti claim; set by VerifyAccess.
	TokenID string
	// ExpiresAt is the access token expiry; set by VerifyAccess.
	ExpiresAt time.Time
	// Pair is set by the flows that issue tokens (Register, Login, Rotate).
	Pair *TokenPair
}

// SessionInfo is the caller-facing view of one active refresh session.
// Fingerprints stay internal.
type SessionInfo struct {
	CreatedAt time.Time
	ExpiresAt time.Time
	IP        string
	UserAgent string
}
