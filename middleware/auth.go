package middleware

import (
	"context"
	"net/http"

	"docdash/internal/identity"
	"docdash/pkg/logger"
)

type contextKey string

const IdentityKey contextKey = "identity"

// Authenticator resolves a session token to an identity.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (identity.Identity, error)
}

func AuthMiddleware(auth Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString := identity.TokenFromRequest(r)
			if tokenString == "" {
				http.Error(w, "Unauthorized: No token provided", http.StatusUnauthorized)
				return
			}

			id, err := auth.Authenticate(r.Context(), tokenString)
			if err != nil {
				if identity.IsAuthError(err) {
					logger.Sugar.Infof("Invalid token: %v", err)
					http.Error(w, "Unauthorized: Invalid or expired token", http.StatusUnauthorized)
					return
				}
				logger.Sugar.Errorf("Authentication backend failed: %v", err)
				http.Error(w, "Authentication unavailable", http.StatusServiceUnavailable)
				return
			}

			ctx := WithIdentity(r.Context(), id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func WithIdentity(ctx context.Context, id identity.Identity) context.Context {
	return context.WithValue(ctx, IdentityKey, id)
}

// IdentityFrom returns the identity placed in ctx by AuthMiddleware.
func IdentityFrom(ctx context.Context) (identity.Identity, bool) {
	id, ok := ctx.Value(IdentityKey).(identity.Identity)
	return id, ok && !id.IsZero()
}

// UserID returns the authenticated user id or "".
func UserID(ctx context.Context) string {
	id, _ := IdentityFrom(ctx)
	return id.ID
}
