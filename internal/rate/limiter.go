package rate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrLimited is returned when an identifier exhausted its window budget.
	ErrLimited = errors.New("rate limited")
	// ErrRedisUnavailable wraps transport failures to the counter backend.
	ErrRedisUnavailable = errors.New("redis unavailable")
)

// Config holds the per-window budgets.
type Config struct {
	LoginLimit    int
	LoginWindow   time.Duration
	RefreshLimit  int
	RefreshWindow time.Duration
}

func defaultConfig() Config {
	return Config{
		LoginLimit:    10,
		LoginWindow:   15 * time.Minute,
		RefreshLimit:  30,
		RefreshWindow: 5 * time.Minute,
	}
}

// Limiter enforces the login and rotation budgets with Redis counters.
type Limiter struct {
	redis  redis.UniversalClient
	prefix string
	config Config
}

// New creates a Limiter. Zero config fields fall back to the defaults.
func New(redisClient redis.UniversalClient, prefix string, cfg Config) *Limiter {
	def := defaultConfig()
	if cfg.LoginLimit <= 0 {
		cfg.LoginLimit = def.LoginLimit
	}
	if cfg.LoginWindow <= 0 {
		cfg.LoginWindow = def.LoginWindow
	}
	if cfg.RefreshLimit <= 0 {
		cfg.RefreshLimit = def.RefreshLimit
	}
	if cfg.RefreshWindow <= 0 {
		cfg.RefreshWindow = def.RefreshWindow
	}
	if prefix == "" {
		prefix = "rl"
	}
	return &Limiter{redis: redisClient, prefix: prefix, config: cfg}
}

func (l *Limiter) loginEmailKey(email string) string { return l.prefix + ":le:" + email }
func (l *Limiter) loginIPKey(ip string) string       { return l.prefix + ":li:" + ip }
func (l *Limiter) refreshKey(fp string) string       { return l.prefix + ":rf:" + fp }

// AllowLogin reports whether the email+IP pair still has budget. It does not
// consume budget: only failures do, via RecordLoginFailure.
func (l *Limiter) AllowLogin(ctx context.Context, email, ip string) error {
	if err := l.checkCounter(ctx, l.loginEmailKey(email)); err != nil {
		return err
	}
	if ip != "" {
		return l.checkCounter(ctx, l.loginIPKey(ip))
	}
	return nil
}

// RecordLoginFailure consumes login budget for the email+IP pair.
func (l *Limiter) RecordLoginFailure(ctx context.Context, email, ip string) error {
	count, err := l.incrementWithTTL(ctx, l.loginEmailKey(email), l.config.LoginWindow)
	if err != nil {
		return err
	}
	if count > int64(l.config.LoginLimit) {
		return ErrLimited
	}

	if ip != "" {
		count, err = l.incrementWithTTL(ctx, l.loginIPKey(ip), l.config.LoginWindow)
		if err != nil {
			return err
		}
		if count > int64(l.config.LoginLimit) {
			return ErrLimited
		}
	}
	return nil
}

// ResetLogin clears the failure counters after a successful login.
func (l *Limiter) ResetLogin(ctx context.Context, email, ip string) error {
	keys := []string{l.loginEmailKey(email)}
	if ip != "" {
		keys = append(keys, l.loginIPKey(ip))
	}
	if err := l.redis.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// AllowRefresh consumes one rotation attempt for the fingerprint and returns
// ErrLimited once the window budget is exceeded.
func (l *Limiter) AllowRefresh(ctx context.Context, fingerprint string) error {
	count, err := l.incrementWithTTL(ctx, l.refreshKey(fingerprint), l.config.RefreshWindow)
	if err != nil {
		return err
	}
	if count > int64(l.config.RefreshLimit) {
		return ErrLimited
	}
	return nil
}

func (l *Limiter) checkCounter(ctx context.Context, key string) error {
	count, err := l.redis.Get(ctx, key).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if count >= int64(l.config.LoginLimit) {
		return ErrLimited
	}
	return nil
}

func (l *Limiter) incrementWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	// Fixed-window semantics: TTL is set only on the first hit in the window.
	if count == 1 {
		if err := l.redis.Expire(ctx, key, ttl).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}
	return count, nil
}
