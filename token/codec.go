package token

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Kind tags a signed token as access or refresh. The kind travels inside the
// signed claims and is enforced on verification, so a refresh token can never
// pass verification as an access token even if both secrets were equal.
type Kind string

const (
	// KindAccess marks short-lived bearer tokens.
	KindAccess Kind = "access"
	// KindRefresh marks long-lived rotation tokens.
	KindRefresh Kind = "refresh"
)

var (
	// ErrTokenExpired reports a well-formed, correctly signed token past its
	// expiry window.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenInvalid reports every other verification failure: bad signature,
	// wrong issuer or audience, malformed payload, or wrong token kind.
	ErrTokenInvalid = errors.New("token invalid")
)

// Claims is the claims bundle carried by both token kinds.
type Claims struct {
	Email string `json:"email,omitempty"`
	Kind  Kind   `json:"typ"`
	jwt.RegisteredClaims
}

// Config holds the signing material and lifetimes for both token kinds.
// Access and refresh tokens use independent secrets so a leaked refresh
// secret does not compromise access-token verification and vice versa.
type Config struct {
	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string
	Audience      string
	Leeway        time.Duration
}

// Codec signs and verifies access and refresh tokens. It is pure computation
// over process configuration and safe for concurrent use.
type Codec struct {
	config Config
	now    func() time.Time
}

// NewCodec validates the configuration and returns a ready Codec.
func NewCodec(cfg Config) (*Codec, error) {
	if len(cfg.AccessSecret) < 32 {
		return nil, errors.New("access secret must be at least 32 bytes")
	}
	if len(cfg.RefreshSecret) < 32 {
		return nil, errors.New("refresh secret must be at least 32 bytes")
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if cfg.RefreshTTL <= cfg.AccessTTL {
		return nil, errors.New("refresh TTL must exceed access TTL")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}

	return &Codec{config: cfg, now: time.Now}, nil
}

// IssueAccess signs a short-lived access token for the subject.
func (c *Codec) IssueAccess(subject, email string) (string, error) {
	return c.sign(KindAccess, subject, email, c.config.AccessSecret, c.config.AccessTTL)
}

// IssueRefresh signs a long-lived refresh token for the subject.
func (c *Codec) IssueRefresh(subject, email string) (string, error) {
	return c.sign(KindRefresh, subject, email, c.config.RefreshSecret, c.config.RefreshTTL)
}

// VerifyAccess verifies signature, expiry, issuer, audience, and kind of an
// access token. Returns ErrTokenExpired or ErrTokenInvalid; the two are
// distinguishable with errors.Is and both wrap the underlying parser error.
func (c *Codec) VerifyAccess(tokenStr string) (*Claims, error) {
	return c.verify(tokenStr, KindAccess, c.config.AccessSecret)
}

// VerifyRefresh is VerifyAccess for refresh tokens, under the refresh secret.
func (c *Codec) VerifyRefresh(tokenStr string) (*Claims, error) {
	return c.verify(tokenStr, KindRefresh, c.config.RefreshSecret)
}

func (c *Codec) sign(kind Kind, subject, email string, secret []byte, ttl time.Duration) (string, error) {
	if subject == "" {
		return "", errors.New("empty token subject")
	}

	now := c.now()
	claims := Claims{
		Email: email,
		Kind:  kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			Issuer:    c.config.Issuer,
		},
	}
	if c.config.Audience != "" {
		claims.Audience = jwt.ClaimStrings{c.config.Audience}
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

func (c *Codec) verify(tokenStr string, kind Kind, secret []byte) (*Claims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	}
	if c.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(c.config.Leeway))
	}
	if c.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(c.config.Issuer))
	}
	if c.config.Audience != "" {
		options = append(options, jwt.WithAudience(c.config.Audience))
	}

	parser := jwt.NewParser(options...)
	parsed, err := parser.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %v", ErrTokenExpired, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, jwt.ErrTokenInvalidClaims)
	}
	if claims.Kind != kind {
		return nil, fmt.Errorf("%w: token kind %q", ErrTokenInvalid, claims.Kind)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrTokenInvalid)
	}

	return claims, nil
}

// Fingerprint returns the deterministic one-way digest of a token string,
// used as the storage key so the raw refresh token is never persisted.
func Fingerprint(tokenStr string) string {
	sum := sha256.Sum256([]byte(tokenStr))
	return hex.EncodeToString(sum[:])
}
