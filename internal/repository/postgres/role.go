package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	apperrors "github.com/salonsphere/auth-service/pkg/errors"

	"github.com/salonsphere/auth-service/internal/domain"
)

// RoleRepository implements repository.RoleRepository using PostgreSQL.
type RoleRepository struct {
	db DB
}

// NewRoleRepository creates a new PostgreSQL-backed role repository.
func NewRoleRepository(db DB) *RoleRepository {
	return &RoleRepository{db: db}
}

// GetByID retrieves a role by its ID.
func (r *RoleRepository) GetByID(ctx context.Context, id string) (*domain.Role, error) {
	query := `
		SELECT id, name, tenant_id, level, permissions, created_at
		FROM roles
		WHERE id = $1`

	var role domain.Role
	err := querier(ctx, r.db).QueryRow(ctx, query, id).Scan(
		&role.ID,
		&role.Name,
		&role.TenantID,
		&role.Level,
		&role.Permissions,
		&role.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("scan role: %w", err)
	}

	return &role, nil
}

// TenantRepository implements repository.TenantRepository using PostgreSQL.
type TenantRepository struct {
	db DB
}

// NewTenantRepository creates a new PostgreSQL-backed tenant repository.
func NewTenantRepository(db DB) *TenantRepository {
	return &TenantRepository{db: db}
}

// GetByID retrieves a tenant by its ID.
func (r *TenantRepository) GetByID(ctx context.Context, id string) (*domain.Tenant, error) {
	query := `
		SELECT id, name, is_active, created_at
		FROM tenants
		WHERE id = $1`

	var t domain.Tenant
	err := querier(ctx, r.db).QueryRow(ctx, query, id).Scan(
		&t.ID,
		&t.Name,
		&t.IsActive,
		&t.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("scan tenant: %w", err)
	}

	return &t, nil
}
