package tokensmith

import (
	"errors"
	"time"

	"github.com/tokensmith/tokensmith/password"
	"github.com/tokensmith/tokensmith/token"
)

// Config is the full engine configuration tree. Zero values select the
// defaults from defaultConfig; only the token secrets are mandatory.
type Config struct {
	Token     token.Config
	Session   SessionConfig
	RateLimit RateLimitConfig
	Password  PasswordConfig
	Audit     AuditConfig
	Metrics   MetricsConfig
}

// SessionConfig tunes the refresh session store.
type SessionConfig struct {
	// RedisPrefix namespaces all Redis keys when the Redis backend is used.
	RedisPrefix string
	// SweepInterval controls the Postgres expiry sweeper. Ignored by the
	// Redis backend, which expires keys natively.
	SweepInterval time.Duration
}

// RateLimitConfig tunes the login and rotation budgets. Disabled turns the
// limiter off entirely, for embedding behind an upstream gateway that
// already throttles.
type RateLimitConfig struct {
	Disabled      bool
	LoginLimit    int
	LoginWindow   time.Duration
	RefreshLimit  int
	RefreshWindow time.Duration
}

// PasswordConfig tunes credential hashing.
type PasswordConfig struct {
	BcryptCost int
}

// AuditConfig tunes the async audit dispatcher. Auditing is on by default;
// Disabled skips dispatcher construction entirely.
type AuditConfig struct {
	Disabled   bool
	BufferSize int
}

// MetricsConfig tunes the in-process counters. Counting is on by default.
type MetricsConfig struct {
	Disabled bool
}

func defaultConfig() Config {
	return Config{
		Token: token.Config{
			AccessTTL:  15 * time.Minute,
			RefreshTTL: 7 * 24 * time.Hour,
			Issuer:     "tokensmith",
			Audience:   "tokensmith",
			Leeway:     30 * time.Second,
		},
		Session: SessionConfig{
			RedisPrefix:   "ts",
			SweepInterval: time.Hour,
		},
		RateLimit: RateLimitConfig{
			LoginLimit:    10,
			LoginWindow:   15 * time.Minute,
			RefreshLimit:  30,
			RefreshWindow: 5 * time.Minute,
		},
		Password: PasswordConfig{
			BcryptCost: password.DefaultCost,
		},
		Audit: AuditConfig{
			BufferSize: 256,
		},
	}
}

// Validate rejects configurations the engine cannot run with. Token config
// is re-validated by the codec at build time; the checks here cover the
// rest of the tree.
func (c Config) Validate() error {
	if len(c.Token.AccessSecret) == 0 || len(c.Token.RefreshSecret) == 0 {
		return errors.New("token secrets are required")
	}
	if c.Session.SweepInterval < 0 {
		return errors.New("session sweep interval must not be negative")
	}
	if c.RateLimit.LoginLimit < 0 || c.RateLimit.RefreshLimit < 0 {
		return errors.New("rate limits must not be negative")
	}
	if c.RateLimit.LoginWindow < 0 || c.RateLimit.RefreshWindow < 0 {
		return errors.New("rate limit windows must not be negative")
	}
	if c.Password.BcryptCost < 0 {
		return errors.New("bcrypt cost must not be negative")
	}
	if c.Audit.BufferSize < 0 {
		return errors.New("audit buffer size must not be negative")
	}
	return nil
}

// cloneConfig deep-copies the secret slices so the engine's config cannot be
// mutated through the caller's byte slices after Build.
func cloneConfig(c Config) Config {
	out := c
	out.Token.AccessSecret = cloneBytes(c.Token.AccessSecret)
	out.Token.RefreshSecret = cloneBytes(c.Token.RefreshSecret)
	return out
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
