package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/salonsphere/auth-service/internal/metrics"
	"github.com/salonsphere/auth-service/internal/repository"
)

// Janitor removes refresh token rows that can no longer affect any session:
// expired rows, and revoked rows past the retention window. Both sweeps are
// idempotent and safe against live traffic; failures are logged and retried
// on the next scheduled run, never propagated. The janitor owns no schedule
// of its own.
type Janitor struct {
	tokenRepo repository.RefreshTokenRepository
	retention time.Duration
	logger    *slog.Logger
}

// NewJanitor creates a janitor with the given revoked-row retention window.
func NewJanitor(tokenRepo repository.RefreshTokenRepository, retention time.Duration, logger *slog.Logger) *Janitor {
	return &Janitor{
		tokenRepo: tokenRepo,
		retention: retention,
		logger:    logger,
	}
}

// RunExpiredSweep deletes all rows whose expiry has passed.
func (j *Janitor) RunExpiredSweep(ctx context.Context) {
	deleted, err := j.tokenRepo.DeleteExpired(ctx, time.Now().UTC())
	if err != nil {
		metrics.JanitorSweepErrors.WithLabelValues("expired").Inc()
		j.logger.ErrorContext(ctx, "expired token sweep failed",
			slog.String("error", err.Error()),
		)
		return
	}

	metrics.JanitorDeletedTokens.WithLabelValues("expired").Add(float64(deleted))
	if deleted > 0 {
		j.logger.InfoContext(ctx, "expired tokens swept",
			slog.Int64("deleted", deleted),
		)
	}
}

// RunRevokedSweep deletes revoked rows older than the retention window.
func (j *Janitor) RunRevokedSweep(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-j.retention)

	deleted, err := j.tokenRepo.DeleteRevokedBefore(ctx, cutoff)
	if err != nil {
		metrics.JanitorSweepErrors.WithLabelValues("revoked").Inc()
		j.logger.ErrorContext(ctx, "revoked token sweep failed",
			slog.String("error", err.Error()),
		)
		return
	}

	metrics.JanitorDeletedTokens.WithLabelValues("revoked").Add(float64(deleted))
	if deleted > 0 {
		j.logger.InfoContext(ctx, "revoked tokens swept",
			slog.Int64("deleted", deleted),
		)
	}
}
