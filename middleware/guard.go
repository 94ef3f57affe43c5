package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	tokensmith "github.com/tokensmith/tokensmith"
	"github.com/tokensmith/tokensmith/token"
)

type authResultContextKey struct{}

// AuthResultFromContext returns the result injected by RequireAuth.
func AuthResultFromContext(ctx context.Context) (*tokensmith.AuthResult, bool) {
	res, ok := ctx.Value(authResultContextKey{}).(*tokensmith.AuthResult)
	return res, ok
}

// RequireAuth rejects requests without a verifiable bearer access token. The
// 401 body distinguishes an expired token from an invalid one so clients
// know whether refreshing is worth trying.
func RequireAuth(engine *tokensmith.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			raw, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				http.Error(w, "missing bearer token", http.StatusUnauthorized)
				return
			}

			res, err := engine.VerifyAccess(r.Context(), raw)
			if err != nil {
				if errors.Is(err, token.ErrTokenExpired) {
					http.Error(w, "token expired", http.StatusUnauthorized)
					return
				}
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), authResultContextKey{}, res)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}
	raw := value[len(bearer):]
	if raw == "" {
		return "", false
	}
	return raw, true
}
