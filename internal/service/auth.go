package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"

	apperrors "github.com/salonsphere/auth-service/pkg/errors"

	"github.com/salonsphere/auth-service/internal/auth"
	"github.com/salonsphere/auth-service/internal/domain"
	"github.com/salonsphere/auth-service/internal/event"
	"github.com/salonsphere/auth-service/internal/metrics"
	"github.com/salonsphere/auth-service/internal/repository"
)

// minPasswordLength is the minimum password length required.
const minPasswordLength = 8

// maxDeviceInfoLength bounds the stored device info string.
const maxDeviceInfoLength = 255

// AuthConfig holds the tunable knobs of the authentication core. It is built
// once at process start; the core never reads ambient global state.
type AuthConfig struct {
	MaxLoginAttempts int
	LockDuration     time.Duration
	RefreshExpiry    time.Duration
}

// AuthService implements credential verification, token issuance, rotation
// with reuse detection, and revocation.
type AuthService struct {
	userRepo   repository.UserRepository
	roleRepo   repository.RoleRepository
	tenantRepo repository.TenantRepository
	tokenRepo  repository.RefreshTokenRepository
	jwtManager *auth.JWTManager
	hasher     auth.PasswordHasher
	producer   *event.Producer
	logger     *slog.Logger
	cfg        AuthConfig
}

// NewAuthService creates a new authentication service.
func NewAuthService(
	userRepo repository.UserRepository,
	roleRepo repository.RoleRepository,
	tenantRepo repository.TenantRepository,
	tokenRepo repository.RefreshTokenRepository,
	jwtManager *auth.JWTManager,
	hasher auth.PasswordHasher,
	producer *event.Producer,
	logger *slog.Logger,
	cfg AuthConfig,
) *AuthService {
	return &AuthService{
		userRepo:   userRepo,
		roleRepo:   roleRepo,
		tenantRepo: tenantRepo,
		tokenRepo:  tokenRepo,
		jwtManager: jwtManager,
		hasher:     hasher,
		producer:   producer,
		logger:     logger,
		cfg:        cfg,
	}
}

// RegisterInput holds the parameters for registering a new principal.
type RegisterInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	TenantID  *string
	RoleID    string
}

// Register creates a new principal with an active status and zero login
// attempts. The referenced role, and tenant when given, must exist.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*domain.AuthenticatedUser, error) {
	if input.Email == "" {
		return nil, apperrors.InvalidInput("email is required")
	}
	if input.FirstName == "" {
		return nil, apperrors.InvalidInput("first name is required")
	}
	if input.LastName == "" {
		return nil, apperrors.InvalidInput("last name is required")
	}
	if input.RoleID == "" {
		return nil, apperrors.InvalidInput("role id is required")
	}
	if err := validatePassword(input.Password); err != nil {
		return nil, err
	}

	role, err := s.roleRepo.GetByID(ctx, input.RoleID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.RoleNotFound(input.RoleID)
		}
		return nil, fmt.Errorf("find role: %w", err)
	}

	if input.TenantID != nil {
		if _, err := s.tenantRepo.GetByID(ctx, *input.TenantID); err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				return nil, apperrors.TenantNotFound(*input.TenantID)
			}
			return nil, fmt.Errorf("find tenant: %w", err)
		}
	}

	hashedPassword, err := s.hasher.Hash(input.Password)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	user := &domain.User{
		ID:           uuid.New().String(),
		Email:        input.Email,
		PasswordHash: hashedPassword,
		FirstName:    input.FirstName,
		LastName:     input.LastName,
		TenantID:     input.TenantID,
		RoleID:       input.RoleID,
		Status:       domain.StatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	// Publish registration event (non-blocking on failure).
	if err := s.producer.PublishUserRegistered(ctx, user); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish user.registered event",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "user registered",
		slog.String("user_id", user.ID),
		slog.String("email", user.Email),
	)

	return &domain.AuthenticatedUser{
		User:        user,
		Permissions: domain.MergePermissions(role.Permissions, user.ExtraPermissions),
	}, nil
}

// Authenticate verifies email and password. The bcrypt comparison runs
// exactly once per attempt, against the dummy hash when the email resolves to
// no user, so response latency does not leak account existence. Failed
// attempts are counted with a single atomic increment; reaching the maximum
// locks the account in the same statement.
func (s *AuthService) Authenticate(ctx context.Context, email, password string) (*domain.AuthenticatedUser, error) {
	if email == "" || password == "" {
		return nil, apperrors.InvalidInput("email and password are required")
	}

	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			s.hasher.VerifyDummy(password)
			metrics.LoginAttempts.WithLabelValues("invalid_credentials").Inc()
			return nil, apperrors.InvalidCredentials()
		}
		return nil, fmt.Errorf("find user by email: %w", err)
	}

	match := s.hasher.Verify(password, user.PasswordHash)

	if err := domain.ValidateAccount(user, time.Now().UTC()); err != nil {
		metrics.LoginAttempts.WithLabelValues(loginOutcome(err)).Inc()
		return nil, err
	}

	if !match {
		attempts, ferr := s.userRepo.RecordLoginFailure(ctx, user.ID, s.cfg.MaxLoginAttempts, s.cfg.LockDuration)
		if ferr != nil {
			s.logger.ErrorContext(ctx, "failed to record login failure",
				slog.String("user_id", user.ID),
				slog.String("error", ferr.Error()),
			)
		} else if attempts >= s.cfg.MaxLoginAttempts {
			metrics.AccountLockouts.Inc()
			s.logger.WarnContext(ctx, "account locked after repeated failed logins",
				slog.String("user_id", user.ID),
				slog.Int("attempts", attempts),
			)
		}
		metrics.LoginAttempts.WithLabelValues("invalid_credentials").Inc()
		return nil, apperrors.InvalidCredentials()
	}

	if err := s.userRepo.RecordLoginSuccess(ctx, user.ID); err != nil {
		return nil, fmt.Errorf("record login success: %w", err)
	}
	user.LoginAttempts = 0
	user.LockedUntil = nil

	enriched, err := s.enrich(ctx, user)
	if err != nil {
		return nil, err
	}

	metrics.LoginAttempts.WithLabelValues("success").Inc()
	s.logger.InfoContext(ctx, "user authenticated",
		slog.String("user_id", user.ID),
		slog.String("email", user.Email),
	)

	return enriched, nil
}

// IssueTokenPair mints a signed access token from the enriched principal and
// a fresh opaque refresh token, persisting the refresh half by hash.
func (s *AuthService) IssueTokenPair(ctx context.Context, principal *domain.AuthenticatedUser, deviceInfo, ipAddress string) (*domain.TokenPair, error) {
	user := principal.User

	accessToken, err := s.jwtManager.GenerateAccessToken(user.ID, user.Email, user.TenantID, user.RoleID, principal.Permissions)
	if err != nil {
		return nil, err
	}

	refreshToken, err := auth.NewRefreshToken()
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	row := &domain.RefreshToken{
		ID:         uuid.New().String(),
		UserID:     user.ID,
		TokenHash:  auth.HashToken(refreshToken),
		DeviceInfo: sanitizeDeviceInfo(deviceInfo),
		IPAddress:  ipAddress,
		ExpiresAt:  now.Add(s.cfg.RefreshExpiry),
		CreatedAt:  now,
	}

	if err := s.tokenRepo.Create(ctx, row); err != nil {
		return nil, fmt.Errorf("store refresh token: %w", err)
	}

	return &domain.TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(s.jwtManager.AccessExpiry().Seconds()),
	}, nil
}

// Refresh rotates a refresh token: the presented token is revoked and exactly
// one replacement pair is issued. Presenting an already revoked token is
// treated as theft: every active token of the owner is revoked and the caller
// gets a distinct TokenReuseDetected error demanding full re-authentication.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*domain.TokenPair, error) {
	if refreshToken == "" {
		return nil, apperrors.InvalidToken()
	}

	tokenHash := auth.HashToken(refreshToken)
	stored, err := s.tokenRepo.GetByHash(ctx, tokenHash)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			metrics.TokenRefreshes.WithLabelValues("invalid").Inc()
			return nil, apperrors.InvalidToken()
		}
		return nil, fmt.Errorf("find refresh token: %w", err)
	}

	if stored.IsRevoked {
		return nil, s.handleTokenReuse(ctx, stored)
	}

	if time.Now().UTC().After(stored.ExpiresAt) {
		metrics.TokenRefreshes.WithLabelValues("expired").Inc()
		return nil, apperrors.TokenExpired()
	}

	user, err := s.userRepo.GetByID(ctx, stored.UserID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.UserNotFound(stored.UserID)
		}
		return nil, fmt.Errorf("find user for refresh: %w", err)
	}

	// Status only; the lock window gates new logins, not live sessions.
	if err := domain.CheckStatus(user); err != nil {
		return nil, err
	}

	// Conditional revoke: of two concurrent rotations of the same token,
	// exactly one passes this point.
	if err := s.tokenRepo.Revoke(ctx, tokenHash, domain.RevokedReasonRotated); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			metrics.TokenRefreshes.WithLabelValues("invalid").Inc()
			return nil, apperrors.InvalidToken()
		}
		return nil, fmt.Errorf("revoke rotated token: %w", err)
	}

	enriched, err := s.enrich(ctx, user)
	if err != nil {
		return nil, err
	}

	pair, err := s.IssueTokenPair(ctx, enriched, stored.DeviceInfo, stored.IPAddress)
	if err != nil {
		return nil, err
	}

	metrics.TokenRefreshes.WithLabelValues("success").Inc()
	s.logger.InfoContext(ctx, "refresh token rotated",
		slog.String("user_id", user.ID),
	)

	return pair, nil
}

// handleTokenReuse runs the breach response for a revoked token presented
// again: revoke all of the owner's sessions and surface TokenReuseDetected.
func (s *AuthService) handleTokenReuse(ctx context.Context, stored *domain.RefreshToken) error {
	count, err := s.tokenRepo.RevokeAllByUser(ctx, stored.UserID, domain.RevokedReasonReuse)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to revoke sessions after token reuse",
			slog.String("user_id", stored.UserID),
			slog.String("error", err.Error()),
		)
	}

	if err := s.producer.PublishTokenReuseDetected(ctx, stored.UserID, stored.ID, count); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish token.reuse_detected event",
			slog.String("user_id", stored.UserID),
			slog.String("error", err.Error()),
		)
	}

	metrics.TokenReuseDetections.Inc()
	metrics.TokenRefreshes.WithLabelValues("reuse_detected").Inc()
	s.logger.WarnContext(ctx, "revoked refresh token presented again",
		slog.String("user_id", stored.UserID),
		slog.String("token_id", stored.ID),
		slog.Int64("revoked_count", count),
	)

	return apperrors.TokenReuseDetected()
}

// Revoke revokes a single refresh token. Fails with ErrNotFound when no
// active row matches, so revoking an already revoked token is not silent.
func (s *AuthService) Revoke(ctx context.Context, refreshToken, reason string) error {
	return s.tokenRepo.Revoke(ctx, auth.HashToken(refreshToken), reason)
}

// RevokeOwned is Revoke with an ownership check: the token must belong to
// userID, so one principal cannot revoke another's session.
func (s *AuthService) RevokeOwned(ctx context.Context, refreshToken, userID, reason string) error {
	return s.tokenRepo.RevokeOwned(ctx, auth.HashToken(refreshToken), userID, reason)
}

// RevokeAll revokes every active token for a user and returns the count.
func (s *AuthService) RevokeAll(ctx context.Context, userID, reason string) (int64, error) {
	count, err := s.tokenRepo.RevokeAllByUser(ctx, userID, reason)
	if err != nil {
		return 0, fmt.Errorf("revoke all tokens: %w", err)
	}

	if err := s.producer.PublishSessionsRevoked(ctx, userID, count, reason); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish sessions.revoked event",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "all sessions revoked",
		slog.String("user_id", userID),
		slog.Int64("count", count),
		slog.String("reason", reason),
	)

	return count, nil
}

// Logout revokes the presented refresh token for the given user. A store-side
// failure is logged and swallowed: clearing the client's session must succeed
// even when the revocation does not.
func (s *AuthService) Logout(ctx context.Context, refreshToken, userID string) {
	if refreshToken == "" {
		return
	}

	if err := s.tokenRepo.RevokeOwned(ctx, auth.HashToken(refreshToken), userID, domain.RevokedReasonLogout); err != nil {
		s.logger.WarnContext(ctx, "failed to revoke refresh token on logout",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		return
	}

	s.logger.InfoContext(ctx, "user logged out",
		slog.String("user_id", userID),
	)
}

// enrich loads the principal's role and returns the snapshot with the
// flattened, de-duplicated permission set.
func (s *AuthService) enrich(ctx context.Context, user *domain.User) (*domain.AuthenticatedUser, error) {
	role, err := s.roleRepo.GetByID(ctx, user.RoleID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.RoleNotFound(user.RoleID)
		}
		return nil, fmt.Errorf("find role: %w", err)
	}

	return &domain.AuthenticatedUser{
		User:        user,
		Permissions: domain.MergePermissions(role.Permissions, user.ExtraPermissions),
	}, nil
}

// loginOutcome maps a guard error to a metrics label.
func loginOutcome(err error) string {
	switch {
	case errors.Is(err, apperrors.ErrAccountLocked):
		return "locked"
	case errors.Is(err, apperrors.ErrAccountDeleted):
		return "deleted"
	case errors.Is(err, apperrors.ErrAccountNotActive):
		return "not_active"
	default:
		return "failed"
	}
}

// sanitizeDeviceInfo strips characters outside a safe allow-list and caps the
// result at maxDeviceInfoLength bytes before storage.
func sanitizeDeviceInfo(deviceInfo string) string {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			return r
		case strings.ContainsRune(" .,;:/()_-", r):
			return r
		default:
			return -1
		}
	}, deviceInfo)

	if runes := []rune(cleaned); len(runes) > maxDeviceInfoLength {
		cleaned = string(runes[:maxDeviceInfoLength])
	}

	return cleaned
}

// validatePassword checks that the password meets minimum complexity requirements.
func validatePassword(password string) error {
	if len(password) < minPasswordLength {
		return apperrors.InvalidInput(fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}

	var hasUpper, hasLower, hasDigit bool
	for _, ch := range password {
		switch {
		case unicode.IsUpper(ch):
			hasUpper = true
		case unicode.IsLower(ch):
			hasLower = true
		case unicode.IsDigit(ch):
			hasDigit = true
		}
	}

	if !hasUpper || !hasLower || !hasDigit {
		return apperrors.InvalidInput("password must contain at least one uppercase letter, one lowercase letter, and one digit")
	}

	return nil
}
