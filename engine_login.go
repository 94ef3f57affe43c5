package tokensmith

import (
	"context"
	"errors"

	"github.com/tokensmith/tokensmith/identity"
	"github.com/tokensmith/tokensmith/internal/audit"
	"github.com/tokensmith/tokensmith/internal/rate"
)

// Login verifies credentials and issues a fresh token pair. Unknown email
// and wrong password both collapse into ErrInvalidCredentials, and both
// consume login budget; a successful login clears it.
func (e *Engine) Login(ctx context.Context, email, plainPassword string) (*AuthResult, error) {
	if e == nil || e.identities == nil {
		return nil, ErrEngineNotReady
	}

	email = normalizeEmail(email)
	ip := clientIPFromContext(ctx)

	if e.limiter != nil {
		if err := e.limiter.AllowLogin(ctx, email, ip); err != nil {
			if errors.Is(err, rate.ErrLimited) {
				e.metricInc(MetricLoginRateLimited)
				e.emitAudit(ctx, audit.TypeLoginLimited, false, "", "", ErrLoginRateLimited, func() map[string]string {
					return map[string]string{"email": email}
				})
				return nil, ErrLoginRateLimited
			}
			return nil, err
		}
	}

	ident, err := e.identities.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			return nil, e.loginFailure(ctx, email, ip, "", "unknown_email")
		}
		return nil, err
	}

	ok, err := e.hasher.Verify(plainPassword, ident.PasswordHash)
	if err != nil || !ok {
		return nil, e.loginFailure(ctx, email, ip, ident.ID, "password_mismatch")
	}

	if e.limiter != nil {
		// Reset is best-effort; a stale counter only costs future budget.
		if err := e.limiter.ResetLogin(ctx, email, ip); err != nil {
			e.logger.WarnContext(ctx, "login limiter reset failed", "error", err)
		}
	}

	pair, err := e.issuePair(ctx, ident)
	if err != nil {
		return nil, err
	}

	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, audit.TypeLoginSuccess, true, ident.ID, "", nil, nil)

	return &AuthResult{OwnerID: ident.ID, Email: ident.Email, Pair: pair}, nil
}

// loginFailure burns budget and reports the uniform credentials error.
func (e *Engine) loginFailure(ctx context.Context, email, ip, ownerID, reason string) error {
	if e.limiter != nil {
		if err := e.limiter.RecordLoginFailure(ctx, email, ip); errors.Is(err, rate.ErrLimited) {
			e.metricInc(MetricLoginRateLimited)
			e.emitAudit(ctx, audit.TypeLoginLimited, false, ownerID, "", ErrLoginRateLimited, func() map[string]string {
				return map[string]string{"email": email}
			})
			return ErrLoginRateLimited
		}
	}

	e.metricInc(MetricLoginFailure)
	e.emitAudit(ctx, audit.TypeLoginFailure, false, ownerID, "", ErrInvalidCredentials, func() map[string]string {
		return map[string]string{"email": email, "reason": reason}
	})
	return ErrInvalidCredentials
}
