package tokensmith

import (
	"context"
	"errors"
	"net/mail"
	"strings"

	"github.com/tokensmith/tokensmith/identity"
	"github.com/tokensmith/tokensmith/internal/audit"
)

// Register creates an account and logs it straight in, returning the first
// token pair. Email comparison is case-insensitive: the address is stored as
// given but normalized for lookups.
func (e *Engine) Register(ctx context.Context, email, plainPassword string) (*AuthResult, error) {
	if e == nil || e.identities == nil {
		return nil, ErrEngineNotReady
	}

	email = strings.TrimSpace(email)
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, ErrInvalidEmail
	}

	hash, err := e.hasher.Hash(plainPassword)
	if err != nil {
		return nil, err
	}

	ident, err := e.identities.Create(ctx, email, hash)
	if err != nil {
		if errors.Is(err, identity.ErrEmailTaken) {
			e.metricInc(MetricRegisterDuplicate)
			e.emitAudit(ctx, audit.TypeRegister, false, "", "", ErrEmailExists, func() map[string]string {
				return map[string]string{"email": normalizeEmail(email)}
			})
			return nil, ErrEmailExists
		}
		return nil, err
	}

	pair, err := e.issuePair(ctx, ident)
	if err != nil {
		return nil, err
	}

	e.metricInc(MetricRegisterSuccess)
	e.emitAudit(ctx, audit.TypeRegister, true, ident.ID, "", nil, nil)
	e.logger.InfoContext(ctx, "identity registered", "owner_id", ident.ID)

	return &AuthResult{OwnerID: ident.ID, Email: ident.Email, Pair: pair}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
