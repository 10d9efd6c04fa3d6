package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	apperrors "github.com/salonsphere/auth-service/pkg/errors"

	"github.com/salonsphere/auth-service/internal/auth"
	"github.com/salonsphere/auth-service/internal/cache"
	"github.com/salonsphere/auth-service/internal/domain"
	"github.com/salonsphere/auth-service/internal/metrics"
	"github.com/salonsphere/auth-service/internal/repository"
)

// sessionKeyPrefix namespaces cached principal snapshots.
const sessionKeyPrefix = "auth:principal:"

// SessionService resolves verified access-token claims into an authenticated
// principal. Tenant scope is activated before any store read, on every call,
// from the signed claims; a freshly read row can never widen an issued
// token's scope. The cache is purely advisory.
type SessionService struct {
	userRepo repository.UserRepository
	roleRepo repository.RoleRepository
	scope    repository.TenantScope
	cache    cache.Store
	cacheTTL time.Duration
	logger   *slog.Logger
}

// NewSessionService creates a new session validator.
func NewSessionService(
	userRepo repository.UserRepository,
	roleRepo repository.RoleRepository,
	scope repository.TenantScope,
	cacheStore cache.Store,
	cacheTTL time.Duration,
	logger *slog.Logger,
) *SessionService {
	return &SessionService{
		userRepo: userRepo,
		roleRepo: roleRepo,
		scope:    scope,
		cache:    cacheStore,
		cacheTTL: cacheTTL,
		logger:   logger,
	}
}

// ValidateSession turns verified claims into an enriched principal snapshot.
// Scope activation failure fails closed with AuthenticationFailed; an
// unscoped fallback query is never issued. Every store read below goes
// through the context returned by Activate, which pins it to the datastore
// session carrying the tenant setting.
func (s *SessionService) ValidateSession(ctx context.Context, claims *auth.AccessClaims) (*domain.AuthenticatedUser, error) {
	ctx, release, err := s.scope.Activate(ctx, claims.TenantID)
	if err != nil {
		metrics.SessionValidations.WithLabelValues("failed").Inc()
		s.logger.ErrorContext(ctx, "tenant scope activation failed",
			slog.String("user_id", claims.UserID),
			slog.String("error", err.Error()),
		)
		return nil, apperrors.AuthenticationFailed()
	}
	defer release()

	key := sessionKeyPrefix + claims.UserID
	if data, err := s.cache.Get(ctx, key); err == nil {
		var snapshot domain.AuthenticatedUser
		if jerr := json.Unmarshal(data, &snapshot); jerr == nil && snapshot.User != nil {
			metrics.SessionValidations.WithLabelValues("cache_hit").Inc()
			return &snapshot, nil
		}
		// Corrupt entry, fall through to the store.
	} else if !errors.Is(err, cache.ErrMiss) {
		s.logger.WarnContext(ctx, "session cache read failed",
			slog.String("user_id", claims.UserID),
			slog.String("error", err.Error()),
		)
	}

	user, err := s.userRepo.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			metrics.SessionValidations.WithLabelValues("invalid").Inc()
			return nil, apperrors.UserNotFound(claims.UserID)
		}
		return nil, fmt.Errorf("find user for session: %w", err)
	}

	if err := domain.ValidateAccount(user, time.Now().UTC()); err != nil {
		metrics.SessionValidations.WithLabelValues("invalid").Inc()
		return nil, err
	}

	role, err := s.roleRepo.GetByID(ctx, user.RoleID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			metrics.SessionValidations.WithLabelValues("invalid").Inc()
			return nil, apperrors.RoleNotFound(user.RoleID)
		}
		return nil, fmt.Errorf("find role for session: %w", err)
	}

	snapshot := &domain.AuthenticatedUser{
		User:        user,
		Permissions: domain.MergePermissions(role.Permissions, user.ExtraPermissions),
	}

	if data, jerr := json.Marshal(snapshot); jerr == nil {
		if cerr := s.cache.Set(ctx, key, data, s.cacheTTL); cerr != nil {
			s.logger.WarnContext(ctx, "session cache write failed",
				slog.String("user_id", claims.UserID),
				slog.String("error", cerr.Error()),
			)
		}
	}

	metrics.SessionValidations.WithLabelValues("success").Inc()
	return snapshot, nil
}

// Invalidate drops the cached snapshot for a user so the next validation
// re-reads the store. Called after bulk revocations and administrative
// status changes.
func (s *SessionService) Invalidate(ctx context.Context, userID string) {
	if err := s.cache.Delete(ctx, sessionKeyPrefix+userID); err != nil {
		s.logger.WarnContext(ctx, "session cache invalidation failed",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
	}
}
