package tokensmith

import (
	"context"
	"errors"
	"strconv"

	"github.com/tokensmith/tokensmith/identity"
	"github.com/tokensmith/tokensmith/internal/audit"
	"github.com/tokensmith/tokensmith/internal/rate"
	"github.com/tokensmith/tokensmith/session"
	"github.com/tokensmith/tokensmith/token"
)

// Rotate consumes a refresh token and issues a replacement pair. The
// protocol, in order:
//
//  1. Spend the per-fingerprint rotation budget. Every attempt pays, forged
//     tokens included, so a replay burst is throttled before it reaches
//     crypto or storage.
//  2. Verify the token's signature and claims. Failure says nothing about
//     stored state, so it reports ErrRefreshInvalid only.
//  3. Look up the record by fingerprint. A verified token with no record
//     means the single-use token came back a second time after its record
//     was consumed or swept: reuse. Every session of the token's subject is
//     revoked defensively before reporting ErrRefreshReuse.
//  4. A record that exists but is rotated, revoked, or expired reports
//     ErrRefreshInactive with no defensive action: the legitimate outcome
//     already happened.
//  5. An active record is claimed by the atomic conditional revoke. Exactly
//     one concurrent caller wins; losers see ErrRefreshInactive.
//  6. The winner gets a new pair, and the old record is linked to the new
//     fingerprint. Revoke-then-create ordering means a crash between steps
//     costs the user a re-login, never an extra live token.
func (e *Engine) Rotate(ctx context.Context, refreshToken string) (*AuthResult, error) {
	if e == nil || e.store == nil {
		return nil, ErrEngineNotReady
	}

	fingerprint := token.Fingerprint(refreshToken)

	if e.limiter != nil {
		if err := e.limiter.AllowRefresh(ctx, fingerprint); err != nil {
			if errors.Is(err, rate.ErrLimited) {
				e.metricInc(MetricRotateRateLimited)
				e.emitAudit(ctx, audit.TypeTokenRotate, false, "", fingerprint, ErrRefreshRateLimited, nil)
				return nil, ErrRefreshRateLimited
			}
			return nil, err
		}
	}

	claims, err := e.codec.VerifyRefresh(refreshToken)
	if err != nil {
		e.metricInc(MetricRotateInvalid)
		e.emitAudit(ctx, audit.TypeTokenRotate, false, "", fingerprint, ErrRefreshInvalid, func() map[string]string {
			return map[string]string{"reason": "verification_failed"}
		})
		return nil, errors.Join(ErrRefreshInvalid, err)
	}

	rec, err := e.store.FindByFingerprint(ctx, fingerprint)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return nil, e.handleReuse(ctx, claims.Subject, fingerprint)
		}
		return nil, err
	}

	if rec.State(e.now()) != session.StateActive {
		e.metricInc(MetricRotateInactive)
		e.emitAudit(ctx, audit.TypeTokenRotate, false, rec.OwnerID, fingerprint, ErrRefreshInactive, func() map[string]string {
			return map[string]string{"state": rec.State(e.now()).String()}
		})
		return nil, ErrRefreshInactive
	}

	won, err := e.store.Revoke(ctx, fingerprint)
	if err != nil {
		return nil, err
	}
	if !won {
		// Lost the race against a concurrent rotation of the same token.
		e.metricInc(MetricRotateInactive)
		e.emitAudit(ctx, audit.TypeTokenRotate, false, rec.OwnerID, fingerprint, ErrRefreshInactive, func() map[string]string {
			return map[string]string{"state": "lost_race"}
		})
		return nil, ErrRefreshInactive
	}

	ident, err := e.identities.FindByID(ctx, rec.OwnerID)
	if err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			return nil, ErrIdentityNotFound
		}
		return nil, err
	}

	pair, err := e.issuePair(ctx, ident)
	if err != nil {
		return nil, err
	}

	// Link the consumed record forward. The link is audit metadata; a
	// failure here must not invalidate the already-issued pair.
	newFingerprint := token.Fingerprint(pair.RefreshToken)
	if err := e.store.MarkReplaced(ctx, fingerprint, newFingerprint); err != nil {
		e.logger.WarnContext(ctx, "replacement link failed",
			"owner_id", rec.OwnerID, "error", err)
	}

	e.metricInc(MetricRotateSuccess)
	e.emitAudit(ctx, audit.TypeTokenRotate, true, ident.ID, fingerprint, nil, func() map[string]string {
		return map[string]string{"replaced_by": shortFingerprint(newFingerprint)}
	})

	return &AuthResult{OwnerID: ident.ID, Email: ident.Email, Pair: pair}, nil
}

// handleReuse is the replay response: a verified signature with no stored
// record. The subject claim is trusted here exactly because the signature
// verified, so the defensive revocation hits the right account.
func (e *Engine) handleReuse(ctx context.Context, ownerID, fingerprint string) error {
	e.metricInc(MetricReuseDetected)

	revoked := 0
	if ownerID != "" {
		n, err := e.store.RevokeAll(ctx, ownerID)
		if err != nil {
			e.logger.ErrorContext(ctx, "defensive revocation failed",
				"owner_id", ownerID, "error", err)
		} else {
			revoked = n
		}
	}

	e.logger.WarnContext(ctx, "refresh token reuse detected",
		"owner_id", ownerID, "fingerprint", shortFingerprint(fingerprint), "sessions_revoked", revoked)
	e.emitAudit(ctx, audit.TypeReuseDetected, false, ownerID, fingerprint, ErrRefreshReuse, func() map[string]string {
		return map[string]string{"sessions_revoked": strconv.Itoa(revoked)}
	})

	return ErrRefreshReuse
}
