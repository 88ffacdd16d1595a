// File: internal/middleware/auth.go
package middleware

import (
	"net/http"
	"strings"

	"github.com/iyunix/go-mechanic/internal/auth"
)

// NewIdentityMiddleware resolves the caller from a bearer token or the auth cookie.
// Requests without credentials continue as guests; a bad token is rejected with 401.
func NewIdentityMiddleware(secretKey []byte, logger Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			id, err := auth.ValidateToken(token, secretKey)
			if err != nil {
				logger.Warn("rejected invalid token", "path", r.URL.Path, "error", err)
				writeJSONError(w, http.StatusUnauthorized, "Invalid or expired token")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

// RequireUser rejects guests. It must run after NewIdentityMiddleware.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := IdentityFromContext(r.Context()); !ok {
			writeJSONError(w, http.StatusUnauthorized, "Authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}
	if cookie, err := r.Cookie(AuthCookieName); err == nil {
		return cookie.Value
	}
	return ""
}
