// Package middleware holds HTTP middleware for the operator API.
package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// ContextKey is a custom type for context keys to avoid collisions.
type ContextKey string

// AuthenticatedUserContextKey carries the authenticated operator's subject.
const AuthenticatedUserContextKey = ContextKey("authenticatedUser")

// AuthenticatedUser identifies the operator behind a validated token.
type AuthenticatedUser struct {
	ID       string
	TenantID string
}

// Auth validates HMAC-signed bearer tokens and stores the subject in the
// request context. The webhook endpoints are not behind this middleware;
// they authenticate by per-channel token instead.
func Auth(secret string, logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				logger.WarnContext(r.Context(), "authorization header missing")
				http.Error(w, "authorization header required", http.StatusUnauthorized)
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" {
				logger.WarnContext(r.Context(), "invalid authorization header format")
				http.Error(w, "invalid authorization header format", http.StatusUnauthorized)
				return
			}

			claims := jwt.MapClaims{}
			token, err := jwt.ParseWithClaims(parts[1], claims, func(t *jwt.Token) (any, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
				}
				return []byte(secret), nil
			})
			if err != nil || !token.Valid {
				logger.WarnContext(r.Context(), "token validation failed", "error", err)
				http.Error(w, "invalid or expired token", http.StatusUnauthorized)
				return
			}

			user := AuthenticatedUser{}
			if sub, err := claims.GetSubject(); err == nil {
				user.ID = sub
			}
			if tenant, ok := claims["tenantId"].(string); ok {
				user.TenantID = tenant
			}

			ctx := context.WithValue(r.Context(), AuthenticatedUserContextKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
