package tokensmith

import (
	"context"
	"log/slog"
	"time"

	"github.com/tokensmith/tokensmith/identity"
	"github.com/tokensmith/tokensmith/internal/audit"
	"github.com/tokensmith/tokensmith/internal/rate"
	"github.com/tokensmith/tokensmith/password"
	"github.com/tokensmith/tokensmith/session"
	"github.com/tokensmith/tokensmith/token"
)

// Engine is the authentication core: it issues token pairs, rotates refresh
// tokens with single-use semantics, and revokes sessions. Construct it with
// the Builder; a zero Engine is not usable.
//
// All methods are safe for concurrent use.
type Engine struct {
	config     Config
	logger     *slog.Logger
	codec      *token.Codec
	hasher     *password.Hasher
	store      session.Store
	identities identity.Provider
	limiter    *rate.Limiter
	audit      *audit.Dispatcher
	metrics    *Metrics

	// now is swappable in tests.
	now func() time.Time
}

// Close flushes the audit dispatcher. Call it when shutting down.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped reports how many audit events were discarded under
// backpressure.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a copy of the engine counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{Counters: map[MetricID]uint64{}}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

// issuePair mints an access+refresh pair for the identity and persists the
// refresh session record. The record must exist before the pair is handed
// out: a token the store has never seen must stay classified as reuse, not
// as a fresh session.
func (e *Engine) issuePair(ctx context.Context, ident *identity.Identity) (*TokenPair, error) {
	access, err := e.codec.IssueAccess(ident.ID, ident.Email)
	if err != nil {
		return nil, err
	}
	refresh, err := e.codec.IssueRefresh(ident.ID, ident.Email)
	if err != nil {
		return nil, err
	}

	ip, userAgent := requestMeta(ctx)
	now := e.now()
	rec := &session.Record{
		Fingerprint: token.Fingerprint(refresh),
		OwnerID:     ident.ID,
		CreatedAt:   now,
		ExpiresAt:   now.Add(e.config.Token.RefreshTTL),
		IP:          ip,
		UserAgent:   userAgent,
	}
	if err := e.store.Create(ctx, rec); err != nil {
		return nil, err
	}

	e.metricInc(MetricIssueSuccess)
	e.emitAudit(ctx, audit.TypeTokenIssue, true, ident.ID, rec.Fingerprint, nil, nil)

	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    int64(e.config.Token.AccessTTL / time.Second),
	}, nil
}
