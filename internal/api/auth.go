package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/complyport/realtime-service/internal/ratelimit"
)

// sessionCookie is the cookie carrying the opaque session token issued by
// the external auth system. This subsystem never inspects the token's
// contents; absence is a normal unauthenticated state, not an error.
const sessionCookie = "session"

type contextKey string

const identityKey contextKey = "identity"

// identityMiddleware extracts the opaque identity token from the session
// cookie or the Authorization Bearer header and stashes it in the request
// context. Requests without a token proceed with an empty identity; each
// handler decides between 401 and degraded output.
func identityMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity := ""

		if cookie, err := r.Cookie(sessionCookie); err == nil && cookie.Value != "" {
			identity = cookie.Value
		} else if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
			identity = strings.TrimPrefix(auth, "Bearer ")
		}

		ctx := context.WithValue(r.Context(), identityKey, identity)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// identityFrom returns the opaque token for this request, or "" when
// unauthenticated.
func identityFrom(r *http.Request) string {
	if v, ok := r.Context().Value(identityKey).(string); ok {
		return v
	}
	return ""
}

// rateLimitMiddleware denies requests over the per-identity sliding window.
// Anonymous requests are keyed by remote address so an unauthenticated
// client cannot exhaust the shared budget.
func rateLimitMiddleware(limiter *ratelimit.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := identityFrom(r)
			if key == "" {
				key = "anon:" + r.RemoteAddr
			}

			if !limiter.Allow(r.Context(), key) {
				respondError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
