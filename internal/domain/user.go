package domain

import (
	"time"
)

// UserStatus is the administrative status of an account.
type UserStatus string

const (
	StatusActive    UserStatus = "active"
	StatusInactive  UserStatus = "inactive"
	StatusSuspended UserStatus = "suspended"
)

// User represents a principal: an account scoped to zero or one tenant.
// TenantID is nil for a cross-tenant super-principal.
type User struct {
	ID               string     `json:"id"`
	Email            string     `json:"email"`
	PasswordHash     string     `json:"-"`
	FirstName        string     `json:"first_name"`
	LastName         string     `json:"last_name"`
	TenantID         *string    `json:"tenant_id"`
	RoleID           string     `json:"role_id"`
	Status           UserStatus `json:"status"`
	IsDeleted        bool       `json:"-"`
	ExtraPermissions []string   `json:"-"`
	LoginAttempts    int        `json:"-"`
	LockedUntil      *time.Time `json:"-"`
	LastLoginAt      *time.Time `json:"last_login_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// RefreshToken represents a stored refresh token for a user session.
// Only the SHA-256 hash of the opaque token is persisted. A row transitions
// Active -> Revoked exactly once and never back.
type RefreshToken struct {
	ID            string     `json:"id"`
	UserID        string     `json:"user_id"`
	TokenHash     string     `json:"-"`
	DeviceInfo    string     `json:"device_info,omitempty"`
	IPAddress     string     `json:"ip_address,omitempty"`
	ExpiresAt     time.Time  `json:"expires_at"`
	IsRevoked     bool       `json:"is_revoked"`
	RevokedAt     *time.Time `json:"revoked_at,omitempty"`
	RevokedReason string     `json:"revoked_reason,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// Revocation reasons recorded on refresh token rows.
const (
	RevokedReasonLogout  = "logout"
	RevokedReasonRotated = "rotated during refresh"
	RevokedReasonReuse   = "reuse detected"
)

// TokenPair holds an access and refresh token pair. Only the refresh half is
// persisted (as a RefreshToken row); the pair itself is never stored.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

// AuthenticatedUser is an enriched principal snapshot: the user plus the
// flattened, de-duplicated union of role permissions and any
// principal-specific grants.
type AuthenticatedUser struct {
	User        *User    `json:"user"`
	Permissions []string `json:"permissions"`
}

// MergePermissions returns the union of role permissions and extra grants,
// de-duplicated while preserving first-seen order.
func MergePermissions(rolePerms, extraPerms []string) []string {
	merged := make([]string, 0, len(rolePerms)+len(extraPerms))
	seen := make(map[string]struct{}, len(rolePerms)+len(extraPerms))
	for _, p := range rolePerms {
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		merged = append(merged, p)
	}
	for _, p := range extraPerms {
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		merged = append(merged, p)
	}
	return merged
}
