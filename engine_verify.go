package tokensmith

import (
	"context"
	"errors"
	"time"
)

// VerifyAccess checks an access token and returns its authenticated subject.
// It is purely cryptographic: no store round trip, so a revoked refresh
// session does not kill outstanding access tokens early. The returned error
// joins ErrUnauthorized with the token-level sentinel, so callers can
// distinguish an expired token from an invalid one.
func (e *Engine) VerifyAccess(ctx context.Context, accessToken string) (*AuthResult, error) {
	if e == nil || e.codec == nil {
		return nil, ErrEngineNotReady
	}

	start := time.Now()
	claims, err := e.codec.VerifyAccess(accessToken)
	if e.metrics != nil {
		e.metrics.Observe(time.Since(start))
	}
	if err != nil {
		e.metricInc(MetricVerifyFailure)
		return nil, errors.Join(ErrUnauthorized, err)
	}

	e.metricInc(MetricVerifySuccess)
	result := &AuthResult{
		OwnerID: claims.Subject,
		Email:   claims.Email,
		TokenID: claims.ID,
	}
	if claims.ExpiresAt != nil {
		result.ExpiresAt = claims.ExpiresAt.Time
	}
	return result, nil
}
