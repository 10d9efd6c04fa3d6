package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	apperrors "github.com/salonsphere/auth-service/pkg/errors"

	"github.com/salonsphere/auth-service/internal/domain"
)

// RefreshTokenRepository implements repository.RefreshTokenRepository using
// PostgreSQL. Every revocation is a conditional "where not yet revoked"
// update: of two concurrent refresh calls on the same token, exactly one
// observes RowsAffected == 1.
type RefreshTokenRepository struct {
	db DB
}

// NewRefreshTokenRepository creates a new PostgreSQL-backed refresh token repository.
func NewRefreshTokenRepository(db DB) *RefreshTokenRepository {
	return &RefreshTokenRepository{db: db}
}

// Create stores a new refresh token row.
func (r *RefreshTokenRepository) Create(ctx context.Context, t *domain.RefreshToken) error {
	query := `
		INSERT INTO refresh_tokens (id, user_id, token_hash, device_info, ip_address, expires_at, is_revoked, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, false, $7)`

	_, err := querier(ctx, r.db).Exec(ctx, query,
		t.ID,
		t.UserID,
		t.TokenHash,
		t.DeviceInfo,
		t.IPAddress,
		t.ExpiresAt,
		t.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert refresh token: %w", err)
	}

	return nil
}

// GetByHash retrieves a refresh token record by its hash.
func (r *RefreshTokenRepository) GetByHash(ctx context.Context, tokenHash string) (*domain.RefreshToken, error) {
	query := `
		SELECT id, user_id, token_hash, device_info, ip_address, expires_at, is_revoked, revoked_at, revoked_reason, created_at
		FROM refresh_tokens
		WHERE token_hash = $1`

	var t domain.RefreshToken
	var reason *string
	err := querier(ctx, r.db).QueryRow(ctx, query, tokenHash).Scan(
		&t.ID,
		&t.UserID,
		&t.TokenHash,
		&t.DeviceInfo,
		&t.IPAddress,
		&t.ExpiresAt,
		&t.IsRevoked,
		&t.RevokedAt,
		&reason,
		&t.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("scan refresh token: %w", err)
	}
	if reason != nil {
		t.RevokedReason = *reason
	}

	return &t, nil
}

// Revoke revokes the token with the given hash if it is still active.
func (r *RefreshTokenRepository) Revoke(ctx context.Context, tokenHash, reason string) error {
	query := `
		UPDATE refresh_tokens
		SET is_revoked = true, revoked_at = $2, revoked_reason = $3
		WHERE token_hash = $1 AND is_revoked = false`

	ct, err := querier(ctx, r.db).Exec(ctx, query, tokenHash, time.Now().UTC(), reason)
	if err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

// RevokeOwned revokes the token only if it is still active and belongs to userID.
func (r *RefreshTokenRepository) RevokeOwned(ctx context.Context, tokenHash, userID, reason string) error {
	query := `
		UPDATE refresh_tokens
		SET is_revoked = true, revoked_at = $3, revoked_reason = $4
		WHERE token_hash = $1 AND user_id = $2 AND is_revoked = false`

	ct, err := querier(ctx, r.db).Exec(ctx, query, tokenHash, userID, time.Now().UTC(), reason)
	if err != nil {
		return fmt.Errorf("revoke owned refresh token: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

// RevokeAllByUser revokes every active token for the given user.
func (r *RefreshTokenRepository) RevokeAllByUser(ctx context.Context, userID, reason string) (int64, error) {
	query := `
		UPDATE refresh_tokens
		SET is_revoked = true, revoked_at = $2, revoked_reason = $3
		WHERE user_id = $1 AND is_revoked = false`

	ct, err := querier(ctx, r.db).Exec(ctx, query, userID, time.Now().UTC(), reason)
	if err != nil {
		return 0, fmt.Errorf("revoke refresh tokens by user: %w", err)
	}

	return ct.RowsAffected(), nil
}

// DeleteExpired removes all rows whose expiry is before the given time.
func (r *RefreshTokenRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	query := `DELETE FROM refresh_tokens WHERE expires_at < $1`

	ct, err := querier(ctx, r.db).Exec(ctx, query, before)
	if err != nil {
		return 0, fmt.Errorf("delete expired refresh tokens: %w", err)
	}

	return ct.RowsAffected(), nil
}

// DeleteRevokedBefore removes all revoked rows whose revocation is older than cutoff.
func (r *RefreshTokenRepository) DeleteRevokedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `DELETE FROM refresh_tokens WHERE is_revoked = true AND revoked_at < $1`

	ct, err := querier(ctx, r.db).Exec(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete revoked refresh tokens: %w", err)
	}

	return ct.RowsAffected(), nil
}
