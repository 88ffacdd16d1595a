// File: internal/middleware/admin_middleware.go
package middleware

import "net/http"

// RequireAdmin only lets through callers whose token carries the admin flag.
// It MUST be used AFTER NewIdentityMiddleware.
func RequireAdmin(logger Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := IdentityFromContext(r.Context())
			if !ok {
				writeJSONError(w, http.StatusUnauthorized, "Authentication required")
				return
			}
			if !id.Admin {
				logger.Warn("non-admin user attempted admin route", "user_id", id.UserID, "path", r.URL.Path)
				writeJSONError(w, http.StatusForbidden, "Forbidden: You do not have permission to access this resource.")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
