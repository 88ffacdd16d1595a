// File: internal/middleware/constants.go
package middleware

import (
	"context"

	"github.com/iyunix/go-mechanic/internal/auth"
)

// Context keys for middleware communication
type contextKey string

const (
	identityKey contextKey = "identity"
)

// AuthCookieName is read when no Authorization header is sent.
const AuthCookieName = "auth_token"

// Logger is the logging surface middleware needs.
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
	Debug(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
}

// WithIdentity stores the caller's identity on ctx.
func WithIdentity(ctx context.Context, id auth.Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFromContext returns the authenticated caller, if any.
func IdentityFromContext(ctx context.Context) (auth.Identity, bool) {
	id, ok := ctx.Value(identityKey).(auth.Identity)
	return id, ok && id.UserID != 0
}

// UserIDFromContext is 0 for guests.
func UserIDFromContext(ctx context.Context) uint {
	id, _ := IdentityFromContext(ctx)
	return id.UserID
}
