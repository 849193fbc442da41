/**
 * @description
 * This package provides middleware for the HTTP server, specifically for
 * handling authentication and authorization of back-office staff routes.
 * Tokens are HS256 JWTs minted by the gateway; the role claim gates access
 * to admin/teller endpoints.
 */
package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// AuthContextKey is a custom type for the context key to avoid collisions.
type AuthContextKey string

const (
	// SubjectKey is the key used to store the token subject in the request context.
	SubjectKey AuthContextKey = "subject"
	// RoleKey is the key used to store the caller's role in the request context.
	RoleKey AuthContextKey = "role"
)

// RequireRole creates a middleware that validates a bearer JWT signed with
// jwtSecret and rejects callers whose role claim is not in allowed.
func RequireRole(jwtSecret string, allowed ...string) func(http.Handler) http.Handler {
	allowedSet := make(map[string]struct{}, len(allowed))
	for _, role := range allowed {
		allowedSet[role] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, "Authorization header required", http.StatusUnauthorized)
				return
			}

			tokenString := strings.TrimPrefix(authHeader, "Bearer ")
			if tokenString == authHeader {
				http.Error(w, "Invalid Authorization header format", http.StatusUnauthorized)
				return
			}

			token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
				}
				return []byte(jwtSecret), nil
			})
			if err != nil || !token.Valid {
				http.Error(w, "Invalid token", http.StatusUnauthorized)
				return
			}

			claims, ok := token.Claims.(jwt.MapClaims)
			if !ok {
				http.Error(w, "Invalid token claims", http.StatusUnauthorized)
				return
			}

			role, _ := claims["role"].(string)
			if _, ok := allowedSet[role]; !ok {
				http.Error(w, "Forbidden: insufficient role", http.StatusForbidden)
				return
			}

			subject, _ := claims["sub"].(string)
			ctx := context.WithValue(r.Context(), SubjectKey, subject)
			ctx = context.WithValue(ctx, RoleKey, role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetSubjectFromContext retrieves the token subject from the request context.
// It returns an empty string if the subject is not found.
func GetSubjectFromContext(ctx context.Context) string {
	subject, ok := ctx.Value(SubjectKey).(string)
	if !ok {
		return ""
	}
	return subject
}

// GetRoleFromContext retrieves the caller's role from the request context.
func GetRoleFromContext(ctx context.Context) string {
	role, ok := ctx.Value(RoleKey).(string)
	if !ok {
		return ""
	}
	return role
}
