package middleware

import (
	"net/http"
	"time"
)

// RefreshCookieName is the cookie carrying the refresh token. The cookie is
// HttpOnly and path-restricted to the refresh endpoints so scripts and
// unrelated routes never see it.
const RefreshCookieName = "refresh_token"

// SetRefreshCookie installs the refresh token cookie.
func SetRefreshCookie(w http.ResponseWriter, refreshToken string, ttl time.Duration, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     RefreshCookieName,
		Value:    refreshToken,
		Path:     "/auth",
		MaxAge:   int(ttl / time.Second),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteStrictMode,
	})
}

// ClearRefreshCookie expires the refresh token cookie. Called on logout and
// on any refresh failure, so a dead token never lingers client-side.
func ClearRefreshCookie(w http.ResponseWriter, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     RefreshCookieName,
		Value:    "",
		Path:     "/auth",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteStrictMode,
	})
}
