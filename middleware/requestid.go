package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/tokensmith/tokensmith/logging"
)

const requestIDHeader = "X-Request-ID"

// RequestID accepts an incoming X-Request-ID or generates one, stamps it on
// the request context for log correlation, and echoes it on the response.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}

		w.Header().Set(requestIDHeader, id)
		ctx := logging.WithRequestID(r.Context(), id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
