package tokensmith

import (
	"context"
	"errors"

	"github.com/tokensmith/tokensmith/internal/audit"
	"github.com/tokensmith/tokensmith/token"
)

// Logout revokes the session behind one refresh token. It is deliberately
// forgiving: an empty, malformed, or already-dead token is a successful
// logout, because the caller's goal — that token not working anymore — is
// met. Only a storage failure is an error.
func (e *Engine) Logout(ctx context.Context, refreshToken string) error {
	if e == nil || e.store == nil {
		return ErrEngineNotReady
	}
	if refreshToken == "" {
		return nil
	}

	claims, err := e.codec.VerifyRefresh(refreshToken)
	if err != nil {
		return nil
	}

	fingerprint := token.Fingerprint(refreshToken)
	won, err := e.store.Revoke(ctx, fingerprint)
	if err != nil {
		return err
	}
	if won {
		e.metricInc(MetricRevoke)
	}
	e.emitAudit(ctx, audit.TypeRevoke, true, claims.Subject, fingerprint, nil, nil)
	return nil
}

// LogoutAll revokes every active session of the owner and reports how many
// were transitioned.
func (e *Engine) LogoutAll(ctx context.Context, ownerID string) (int, error) {
	if e == nil || e.store == nil {
		return 0, ErrEngineNotReady
	}
	if ownerID == "" {
		return 0, errors.New("owner id required")
	}

	revoked, err := e.store.RevokeAll(ctx, ownerID)
	if err != nil {
		return 0, err
	}

	e.metricInc(MetricRevokeAll)
	e.emitAudit(ctx, audit.TypeRevokeAll, true, ownerID, "", nil, nil)
	e.logger.InfoContext(ctx, "all sessions revoked", "owner_id", ownerID, "count", revoked)
	return revoked, nil
}

// ActiveSessions lists the owner's live refresh sessions without exposing
// fingerprints.
func (e *Engine) ActiveSessions(ctx context.Context, ownerID string) ([]SessionInfo, error) {
	if e == nil || e.store == nil {
		return nil, ErrEngineNotReady
	}

	records, err := e.store.FindActiveByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	infos := make([]SessionInfo, 0, len(records))
	for _, rec := range records {
		infos = append(infos, SessionInfo{
			CreatedAt: rec.CreatedAt,
			ExpiresAt: rec.ExpiresAt,
			IP:        rec.IP,
			UserAgent: rec.UserAgent,
		})
	}
	return infos, nil
}
