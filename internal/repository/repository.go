package repository

import (
	"context"
	"time"

	"github.com/salonsphere/auth-service/internal/domain"
)

// UserRepository defines the persistence contract for principals. All state
// transitions are single atomic conditional updates so concurrent requests
// for the same principal cannot race into an inconsistent state.
type UserRepository interface {
	// Create inserts a new user into the store.
	Create(ctx context.Context, user *domain.User) error

	// GetByID retrieves a user by their unique identifier.
	GetByID(ctx context.Context, id string) (*domain.User, error)

	// GetByEmail retrieves a user by their email address.
	GetByEmail(ctx context.Context, email string) (*domain.User, error)

	// RecordLoginFailure atomically increments the login attempt counter and,
	// if the post-increment count reaches maxAttempts, sets the lock window in
	// the same statement. It returns the post-increment attempt count.
	RecordLoginFailure(ctx context.Context, id string, maxAttempts int, lockFor time.Duration) (int, error)

	// RecordLoginSuccess resets the attempt counter, clears any lock, and
	// stamps the last login time.
	RecordLoginSuccess(ctx context.Context, id string) error
}

// RoleRepository reads roles. Roles are immutable from this service's
// perspective.
type RoleRepository interface {
	// GetByID retrieves a role by its unique identifier.
	GetByID(ctx context.Context, id string) (*domain.Role, error)
}

// TenantRepository reads tenants.
type TenantRepository interface {
	// GetByID retrieves a tenant by its unique identifier.
	GetByID(ctx context.Context, id string) (*domain.Tenant, error)
}

// RefreshTokenRepository defines the persistence contract for refresh tokens.
// A row transitions Active -> Revoked exactly once; every revocation is a
// conditional "revoke where currently active" update so two concurrent
// rotations of the same token cannot both succeed.
type RefreshTokenRepository interface {
	// Create stores a new refresh token row.
	Create(ctx context.Context, token *domain.RefreshToken) error

	// GetByHash retrieves a refresh token record by its hash.
	GetByHash(ctx context.Context, tokenHash string) (*domain.RefreshToken, error)

	// Revoke revokes the token with the given hash if it is still active.
	// Returns ErrNotFound if no active row matched.
	Revoke(ctx context.Context, tokenHash, reason string) error

	// RevokeOwned is Revoke with an ownership predicate: the row must also
	// belong to userID. Returns ErrNotFound if no active row matched.
	RevokeOwned(ctx context.Context, tokenHash, userID, reason string) error

	// RevokeAllByUser revokes every active token for the given user and
	// returns the number of rows revoked.
	RevokeAllByUser(ctx context.Context, userID, reason string) (int64, error)

	// DeleteExpired removes all rows whose expiry is before the given time.
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)

	// DeleteRevokedBefore removes all revoked rows whose revocation is older
	// than the given cutoff.
	DeleteRevokedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// ReleaseFunc ends a tenant-scoped datastore session. It must be called
// exactly once, after the scoped reads are done.
type ReleaseFunc func()

// TenantScope activates the row-level-security tenant context on the
// datastore. A nil tenantID denotes a cross-tenant super-principal. Activate
// returns a context that pins every repository call to the datastore session
// carrying the setting; reads issued with any other context are not scoped.
// Callers must activate scope before issuing any tenant-scoped read, must
// treat an activation failure as fatal for the request, and must call release
// when done.
type TenantScope interface {
	Activate(ctx context.Context, tenantID *string) (context.Context, ReleaseFunc, error)
}
