package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	apperrors "github.com/salonsphere/auth-service/pkg/errors"

	"github.com/salonsphere/auth-service/internal/domain"
)

// UserRepository implements repository.UserRepository using PostgreSQL.
type UserRepository struct {
	db DB
}

// NewUserRepository creates a new PostgreSQL-backed user repository.
func NewUserRepository(db DB) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `id, email, password_hash, first_name, last_name, tenant_id, role_id, status, is_deleted, extra_permissions, login_attempts, locked_until, last_login_at, created_at, updated_at`

// Create inserts a new user into the database.
func (r *UserRepository) Create(ctx context.Context, u *domain.User) error {
	query := `
		INSERT INTO users (id, email, password_hash, first_name, last_name, tenant_id, role_id, status, is_deleted, extra_permissions, login_attempts, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err := querier(ctx, r.db).Exec(ctx, query,
		u.ID,
		u.Email,
		u.PasswordHash,
		u.FirstName,
		u.LastName,
		u.TenantID,
		u.RoleID,
		string(u.Status),
		u.IsDeleted,
		u.ExtraPermissions,
		u.LoginAttempts,
		u.CreatedAt,
		u.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.DuplicateEmail(u.Email)
		}
		return fmt.Errorf("insert user: %w", err)
	}

	return nil
}

// GetByID retrieves a user by their ID.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE id = $1`

	return r.scanUser(ctx, query, id)
}

// GetByEmail retrieves a user by their email address.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE email = $1`

	return r.scanUser(ctx, query, email)
}

// RecordLoginFailure increments the attempt counter and conditionally sets
// the lock window in one statement, so concurrent failed attempts cannot lose
// an increment or a lockout. The post-increment count is returned.
func (r *UserRepository) RecordLoginFailure(ctx context.Context, id string, maxAttempts int, lockFor time.Duration) (int, error) {
	query := `
		UPDATE users
		SET login_attempts = login_attempts + 1,
		    locked_until = CASE
		        WHEN login_attempts + 1 >= $2 THEN $3::timestamptz
		        ELSE locked_until
		    END,
		    updated_at = $4
		WHERE id = $1
		RETURNING login_attempts`

	now := time.Now().UTC()
	var attempts int
	err := querier(ctx, r.db).QueryRow(ctx, query, id, maxAttempts, now.Add(lockFor), now).Scan(&attempts)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, apperrors.ErrNotFound
		}
		return 0, fmt.Errorf("record login failure: %w", err)
	}

	return attempts, nil
}

// RecordLoginSuccess resets the attempt counter, clears the lock, and stamps
// the last login time.
func (r *UserRepository) RecordLoginSuccess(ctx context.Context, id string) error {
	query := `
		UPDATE users
		SET login_attempts = 0,
		    locked_until = NULL,
		    last_login_at = $2,
		    updated_at = $2
		WHERE id = $1`

	now := time.Now().UTC()
	ct, err := querier(ctx, r.db).Exec(ctx, query, id, now)
	if err != nil {
		return fmt.Errorf("record login success: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("user", id)
	}

	return nil
}

// scanUser is a helper that executes a query expected to return a single user row.
func (r *UserRepository) scanUser(ctx context.Context, query string, args ...any) (*domain.User, error) {
	var u domain.User
	var status string

	err := querier(ctx, r.db).QueryRow(ctx, query, args...).Scan(
		&u.ID,
		&u.Email,
		&u.PasswordHash,
		&u.FirstName,
		&u.LastName,
		&u.TenantID,
		&u.RoleID,
		&status,
		&u.IsDeleted,
		&u.ExtraPermissions,
		&u.LoginAttempts,
		&u.LockedUntil,
		&u.LastLoginAt,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	u.Status = domain.UserStatus(status)

	return &u, nil
}

// isUniqueViolation checks if the error is a PostgreSQL unique constraint violation (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "23505")
}
