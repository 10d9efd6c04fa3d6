package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
)

type contextKeyType string

const (
	userIDKey      contextKeyType = "user_id"
	tenantIDKey    contextKeyType = "tenant_id"
	roleIDKey      contextKeyType = "role_id"
	permissionsKey contextKeyType = "permissions"
	claimsKey      contextKeyType = "claims"
)

// Claims represents the authenticated principal extracted by the auth middleware.
// TenantID is nil for a cross-tenant super-principal.
type Claims struct {
	UserID      string   `json:"user_id"`
	Email       string   `json:"email"`
	TenantID    *string  `json:"tenant_id"`
	RoleID      string   `json:"role_id"`
	Permissions []string `json:"permissions"`
}

// TokenValidator validates a bearer token and returns the resolved claims.
// The service injects its own validation logic (JWT verification plus
// session validation against the credential store).
type TokenValidator func(ctx context.Context, token string) (*Claims, error)

// Auth middleware extracts the bearer token, runs the validator, and injects
// the resolved claims into the request context.
func Auth(validate TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := BearerToken(r)
			if !ok {
				writeAuthError(w, "missing or malformed authorization header")
				return
			}

			claims, err := validate(r.Context(), token)
			if err != nil {
				writeAuthError(w, "invalid or expired token")
				return
			}

			ctx := context.WithValue(r.Context(), userIDKey, claims.UserID)
			ctx = context.WithValue(ctx, tenantIDKey, claims.TenantID)
			ctx = context.WithValue(ctx, roleIDKey, claims.RoleID)
			ctx = context.WithValue(ctx, permissionsKey, claims.Permissions)
			ctx = context.WithValue(ctx, claimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// BearerToken extracts the token from the Authorization header.
func BearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", false
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// RequirePermission middleware checks that the authenticated principal holds
// all of the given capability strings.
func RequirePermission(perms ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			held := PermissionsFromContext(r.Context())
			heldSet := make(map[string]struct{}, len(held))
			for _, p := range held {
				heldSet[p] = struct{}{}
			}
			for _, p := range perms {
				if _, ok := heldSet[p]; !ok {
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusForbidden)
					_ = json.NewEncoder(w).Encode(map[string]string{
						"code":    "FORBIDDEN",
						"message": "insufficient permissions",
					})
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClaimsFromContext extracts the full resolved claims from the request
// context. Returns nil for an unauthenticated context.
func ClaimsFromContext(ctx context.Context) *Claims {
	if claims, ok := ctx.Value(claimsKey).(*Claims); ok {
		return claims
	}
	return nil
}

// UserIDFromContext extracts the user ID from the request context.
func UserIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(userIDKey).(string); ok {
		return id
	}
	return ""
}

// TenantIDFromContext extracts the tenant ID from the request context.
// Returns nil both for a super-principal and for an unauthenticated context.
func TenantIDFromContext(ctx context.Context) *string {
	if id, ok := ctx.Value(tenantIDKey).(*string); ok {
		return id
	}
	return nil
}

// RoleIDFromContext extracts the role ID from the request context.
func RoleIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(roleIDKey).(string); ok {
		return id
	}
	return ""
}

// PermissionsFromContext extracts the permission set from the request context.
func PermissionsFromContext(ctx context.Context) []string {
	if perms, ok := ctx.Value(permissionsKey).([]string); ok {
		return perms
	}
	return nil
}

func writeAuthError(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"code":    "UNAUTHORIZED",
		"message": message,
	})
}
