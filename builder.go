package tokensmith

import (
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tokensmith/tokensmith/identity"
	"github.com/tokensmith/tokensmith/internal/audit"
	"github.com/tokensmith/tokensmith/internal/rate"
	"github.com/tokensmith/tokensmith/password"
	"github.com/tokensmith/tokensmith/session"
	"github.com/tokensmith/tokensmith/token"
)

// Builder assembles an Engine. The minimum viable wiring is token secrets,
// an identity provider, and either a Redis client or an explicit session
// store.
type Builder struct {
	config Config
	redis  redis.UniversalClient
	store  session.Store

	identities identity.Provider
	auditSink  audit.Sink
	logger     *slog.Logger

	built bool
}

// New starts a Builder with the default configuration.
func New() *Builder {
	return &Builder{config: defaultConfig()}
}

// WithConfig replaces the configuration. Zero fields inside cfg fall back to
// the defaults at Build time.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis supplies the Redis client used for the session store (unless
// WithSessionStore overrides it) and the rate limiter.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithSessionStore overrides the session backend, e.g. with a PostgresStore.
// Rate limiting still requires a Redis client.
func (b *Builder) WithSessionStore(store session.Store) *Builder {
	b.store = store
	return b
}

// WithIdentityProvider supplies the account backend.
func (b *Builder) WithIdentityProvider(p identity.Provider) *Builder {
	b.identities = p
	return b
}

// WithAuditSink supplies the audit event consumer.
func (b *Builder) WithAuditSink(sink audit.Sink) *Builder {
	b.auditSink = sink
	return b
}

// WithLogger supplies the structured logger. Defaults to a logger that
// discards everything.
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithMetricsEnabled toggles the in-process counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Disabled = !enabled
	return b
}

// Build validates the wiring and returns the Engine. A Builder is single
// use.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := applyDefaults(cloneConfig(b.config))
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.identities == nil {
		return nil, errors.New("identity provider required")
	}

	store := b.store
	if store == nil {
		if b.redis == nil {
			return nil, errors.New("session store or redis client required")
		}
		store = session.NewRedisStore(b.redis, cfg.Session.RedisPrefix)
	}

	var limiter *rate.Limiter
	if !cfg.RateLimit.Disabled {
		if b.redis == nil {
			return nil, errors.New("rate limiting requires redis client; set RateLimit.Disabled to opt out")
		}
		limiter = rate.New(b.redis, cfg.Session.RedisPrefix+":rl", rate.Config{
			LoginLimit:    cfg.RateLimit.LoginLimit,
			LoginWindow:   cfg.RateLimit.LoginWindow,
			RefreshLimit:  cfg.RateLimit.RefreshLimit,
			RefreshWindow: cfg.RateLimit.RefreshWindow,
		})
	}

	codec, err := token.NewCodec(cfg.Token)
	if err != nil {
		return nil, err
	}

	hasher, err := password.NewHasher(cfg.Password.BcryptCost)
	if err != nil {
		return nil, err
	}

	logger := b.logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	var dispatcher *audit.Dispatcher
	if !cfg.Audit.Disabled {
		dispatcher = audit.NewDispatcher(b.auditSink, cfg.Audit.BufferSize)
	}

	b.built = true

	return &Engine{
		config:     cfg,
		logger:     logger,
		codec:      codec,
		hasher:     hasher,
		store:      store,
		identities: b.identities,
		limiter:    limiter,
		audit:      dispatcher,
		metrics:    NewMetrics(cfg.Metrics),
		now:        time.Now,
	}, nil
}

// applyDefaults fills zero config fields from the default tree so a caller
// passing a partially specified Config gets working values.
func applyDefaults(cfg Config) Config {
	def := defaultConfig()

	if cfg.Token.AccessTTL == 0 {
		cfg.Token.AccessTTL = def.Token.AccessTTL
	}
	if cfg.Token.RefreshTTL == 0 {
		cfg.Token.RefreshTTL = def.Token.RefreshTTL
	}
	if cfg.Token.Issuer == "" {
		cfg.Token.Issuer = def.Token.Issuer
	}
	if cfg.Token.Audience == "" {
		cfg.Token.Audience = def.Token.Audience
	}
	if cfg.Session.RedisPrefix == "" {
		cfg.Session.RedisPrefix = def.Session.RedisPrefix
	}
	if cfg.Session.SweepInterval == 0 {
		cfg.Session.SweepInterval = def.Session.SweepInterval
	}
	if cfg.RateLimit.LoginLimit == 0 {
		cfg.RateLimit.LoginLimit = def.RateLimit.LoginLimit
	}
	if cfg.RateLimit.LoginWindow == 0 {
		cfg.RateLimit.LoginWindow = def.RateLimit.LoginWindow
	}
	if cfg.RateLimit.RefreshLimit == 0 {
		cfg.RateLimit.RefreshLimit = def.RateLimit.RefreshLimit
	}
	if cfg.RateLimit.RefreshWindow == 0 {
		cfg.RateLimit.RefreshWindow = def.RateLimit.RefreshWindow
	}
	if cfg.Password.BcryptCost == 0 {
		cfg.Password.BcryptCost = def.Password.BcryptCost
	}
	if cfg.Audit.BufferSize == 0 {
		cfg.Audit.BufferSize = def.Audit.BufferSize
	}
	return cfg
}
