package domain

import "time"

// Role is a named set of capability strings. TenantID is nil for system-wide
// roles. Roles are read-only from this service's perspective.
type Role struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	TenantID    *string   `json:"tenant_id"`
	Level       int       `json:"level"`
	Permissions []string  `json:"permissions"`
	CreatedAt   time.Time `json:"created_at"`
}

// Tenant is a salon business account. Users and tenant-scoped roles belong to
// exactly one tenant.
type Tenant struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}
