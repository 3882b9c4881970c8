package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"novahub/internal/core/domain"
	"novahub/pkg/logging"
)

type contextKey string

const UserIDKey contextKey = "user_id"

// TokenValidator resolves a bearer token to a user id.
type TokenValidator interface {
	ValidateToken(token string) (string, error)
}

func AuthMiddleware(tokens TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Extract Bearer token
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, "Authorization header required", http.StatusUnauthorized)
				return
			}
			scheme, token, ok := strings.Cut(authHeader, " ")
			if !ok || !strings.EqualFold(scheme, "Bearer") {
				http.Error(w, "Invalid authorization format", http.StatusUnauthorized)
				return
			}
			userID, err := tokens.ValidateToken(token)
			if err != nil {
				logging.FromContext(r.Context()).InfoContext(r.Context(), "auth - validate token - rejected", logging.Err(err))
				msg := "Unauthorized: token invalid"
				if errors.Is(err, domain.ErrTokenMissing) {
					msg = "Unauthorized: token missing"
				}
				http.Error(w, msg, http.StatusUnauthorized)
				return
			}
			ctx := context.WithValue(r.Context(), UserIDKey, userID)
			ctx = logging.WithContext(ctx, logging.FromContext(ctx).With(logging.User(userID)))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserID returns the authenticated user id stored by AuthMiddleware.
func UserID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(UserIDKey).(string)
	return id, ok && id != ""
}
