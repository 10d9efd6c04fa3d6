package service

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	apperrors "github.com/salonsphere/auth-service/pkg/errors"
	pkgkafka "github.com/salonsphere/auth-service/pkg/kafka"

	"github.com/salonsphere/auth-service/internal/auth"
	"github.com/salonsphere/auth-service/internal/domain"
	"github.com/salonsphere/auth-service/internal/event"
	"github.com/salonsphere/auth-service/internal/repository"
)

// --- Mock User Repository ---

type mockUserRepository struct {
	mock.Mock
}

func (m *mockUserRepository) Create(ctx context.Context, user *domain.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *mockUserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockUserRepository) RecordLoginFailure(ctx context.Context, id string, maxAttempts int, lockFor time.Duration) (int, error) {
	args := m.Called(ctx, id, maxAttempts, lockFor)
	return args.Int(0), args.Error(1)
}

func (m *mockUserRepository) RecordLoginSuccess(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// --- Mock Role Repository ---

type mockRoleRepository struct {
	mock.Mock
}

func (m *mockRoleRepository) GetByID(ctx context.Context, id string) (*domain.Role, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Role), args.Error(1)
}

// --- Mock Tenant Repository ---

type mockTenantRepository struct {
	mock.Mock
}

func (m *mockTenantRepository) GetByID(ctx context.Context, id string) (*domain.Tenant, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Tenant), args.Error(1)
}

// --- Mock Refresh Token Repository ---

type mockRefreshTokenRepository struct {
	mock.Mock
}

func (m *mockRefreshTokenRepository) Create(ctx context.Context, token *domain.RefreshToken) error {
	args := m.Called(ctx, token)
	return args.Error(0)
}

func (m *mockRefreshTokenRepository) GetByHash(ctx context.Context, tokenHash string) (*domain.RefreshToken, error) {
	args := m.Called(ctx, tokenHash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RefreshToken), args.Error(1)
}

func (m *mockRefreshTokenRepository) Revoke(ctx context.Context, tokenHash, reason string) error {
	args := m.Called(ctx, tokenHash, reason)
	return args.Error(0)
}

func (m *mockRefreshTokenRepository) RevokeOwned(ctx context.Context, tokenHash, userID, reason string) error {
	args := m.Called(ctx, tokenHash, userID, reason)
	return args.Error(0)
}

func (m *mockRefreshTokenRepository) RevokeAllByUser(ctx context.Context, userID, reason string) (int64, error) {
	args := m.Called(ctx, userID, reason)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockRefreshTokenRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	args := m.Called(ctx, before)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockRefreshTokenRepository) DeleteRevokedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, cutoff)
	return args.Get(0).(int64), args.Error(1)
}

// --- Mock Tenant Scope ---

type mockTenantScope struct {
	mock.Mock
	releases int
}

func (m *mockTenantScope) Activate(ctx context.Context, tenantID *string) (context.Context, repository.ReleaseFunc, error) {
	args := m.Called(ctx, tenantID)
	if err := args.Error(0); err != nil {
		return ctx, nil, err
	}
	return ctx, func() { m.releases++ }, nil
}

// --- Mock Password Hasher ---

type mockPasswordHasher struct {
	mock.Mock
}

func (m *mockPasswordHasher) Hash(password string) (string, error) {
	args := m.Called(password)
	return args.String(0), args.Error(1)
}

func (m *mockPasswordHasher) Verify(password, hash string) bool {
	args := m.Called(password, hash)
	return args.Bool(0)
}

func (m *mockPasswordHasher) VerifyDummy(password string) bool {
	args := m.Called(password)
	return args.Bool(0)
}

// --- Test Helpers ---

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestJWTManager() *auth.JWTManager {
	return auth.NewJWTManager("test-secret-key-for-testing", 15*time.Minute)
}

func newTestEventProducer() *event.Producer {
	logger := newTestLogger()
	kafkaCfg := pkgkafka.DefaultProducerConfig([]string{"localhost:9092"})
	kafkaProducer := pkgkafka.NewProducer(kafkaCfg, logger)
	return event.NewProducer(kafkaProducer, logger)
}

func testAuthConfig() AuthConfig {
	return AuthConfig{
		MaxLoginAttempts: 5,
		LockDuration:     15 * time.Minute,
		RefreshExpiry:    7 * 24 * time.Hour,
	}
}

func newTestAuthService(
	userRepo *mockUserRepository,
	roleRepo *mockRoleRepository,
	tenantRepo *mockTenantRepository,
	tokenRepo *mockRefreshTokenRepository,
) *AuthService {
	return newTestAuthServiceWithHasher(userRepo, roleRepo, tenantRepo, tokenRepo, auth.BcryptHasher{})
}

func newTestAuthServiceWithHasher(
	userRepo *mockUserRepository,
	roleRepo *mockRoleRepository,
	tenantRepo *mockTenantRepository,
	tokenRepo *mockRefreshTokenRepository,
	hasher auth.PasswordHasher,
) *AuthService {
	return NewAuthService(
		userRepo, roleRepo, tenantRepo, tokenRepo,
		newTestJWTManager(), hasher, newTestEventProducer(), newTestLogger(), testAuthConfig(),
	)
}

func strPtr(s string) *string {
	return &s
}

// hashForTest creates a bcrypt hash with cost 4 for fast tests.
func hashForTest(password string) string {
	h, err := bcrypt.GenerateFromPassword([]byte(password), 4)
	if err != nil {
		panic(err)
	}
	return string(h)
}

func sampleRole() *domain.Role {
	return &domain.Role{
		ID:          "r-staff",
		Name:        "staff",
		TenantID:    strPtr("t-0001"),
		Level:       10,
		Permissions: []string{"appointments:read", "appointments:write"},
	}
}

func activeUser() *domain.User {
	now := time.Now().UTC()
	return &domain.User{
		ID:               "u-1234",
		Email:            "alice@example.com",
		PasswordHash:     hashForTest("SecurePass123"),
		FirstName:        "Alice",
		LastName:         "Smith",
		TenantID:         strPtr("t-0001"),
		RoleID:           "r-staff",
		Status:           domain.StatusActive,
		ExtraPermissions: []string{"reports:read"},
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

func activeToken(userID string) *domain.RefreshToken {
	now := time.Now().UTC()
	return &domain.RefreshToken{
		ID:         "rt-1",
		UserID:     userID,
		TokenHash:  auth.HashToken("opaque-token-value"),
		DeviceInfo: "Mozilla/5.0",
		IPAddress:  "203.0.113.7",
		ExpiresAt:  now.Add(7 * 24 * time.Hour),
		CreatedAt:  now,
	}
}

// --- Register ---

func TestRegister_Success(t *testing.T) {
	userRepo := new(mockUserRepository)
	roleRepo := new(mockRoleRepository)
	tenantRepo := new(mockTenantRepository)
	tokenRepo := new(mockRefreshTokenRepository)
	svc := newTestAuthService(userRepo, roleRepo, tenantRepo, tokenRepo)
	ctx := context.Background()

	roleRepo.On("GetByID", ctx, "r-staff").Return(sampleRole(), nil)
	tenantRepo.On("GetByID", ctx, "t-0001").Return(&domain.Tenant{ID: "t-0001", Name: "Shear Genius", IsActive: true}, nil)
	userRepo.On("Create", ctx, mock.AnythingOfType("*domain.User")).Return(nil)

	principal, err := svc.Register(ctx, RegisterInput{
		Email:     "alice@example.com",
		Password:  "SecurePass123",
		FirstName: "Alice",
		LastName:  "Smith",
		TenantID:  strPtr("t-0001"),
		RoleID:    "r-staff",
	})

	require.NoError(t, err)
	require.NotNil(t, principal)
	assert.NotEmpty(t, principal.User.ID)
	assert.Equal(t, "alice@example.com", principal.User.Email)
	assert.Equal(t, domain.StatusActive, principal.User.Status)
	assert.Zero(t, principal.User.LoginAttempts)
	assert.Nil(t, principal.User.LockedUntil)
	assert.Equal(t, []string{"appointments:read", "appointments:write"}, principal.Permissions)
	userRepo.AssertExpectations(t)
}

func TestRegister_RoleNotFound(t *testing.T) {
	userRepo := new(mockUserRepository)
	roleRepo := new(mockRoleRepository)
	tenantRepo := new(mockTenantRepository)
	tokenRepo := new(mockRefreshTokenRepository)
	svc := newTestAuthService(userRepo, roleRepo, tenantRepo, tokenRepo)
	ctx := context.Background()

	roleRepo.On("GetByID", ctx, "r-ghost").Return(nil, apperrors.ErrNotFound)

	_, err := svc.Register(ctx, RegisterInput{
		Email:     "alice@example.com",
		Password:  "SecurePass123",
		FirstName: "Alice",
		LastName:  "Smith",
		RoleID:    "r-ghost",
	})

	require.Error(t, err)
	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "ROLE_NOT_FOUND", appErr.Code)
	userRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestRegister_TenantNotFound(t *testing.T) {
	userRepo := new(mockUserRepository)
	roleRepo := new(mockRoleRepository)
	tenantRepo := new(mockTenantRepository)
	tokenRepo := new(mockRefreshTokenRepository)
	svc := newTestAuthService(userRepo, roleRepo, tenantRepo, tokenRepo)
	ctx := context.Background()

	roleRepo.On("GetByID", ctx, "r-staff").Return(sampleRole(), nil)
	tenantRepo.On("GetByID", ctx, "t-ghost").Return(nil, apperrors.ErrNotFound)

	_, err := svc.Register(ctx, RegisterInput{
		Email:     "alice@example.com",
		Password:  "SecurePass123",
		FirstName: "Alice",
		LastName:  "Smith",
		TenantID:  strPtr("t-ghost"),
		RoleID:    "r-staff",
	})

	require.Error(t, err)
	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "TENANT_NOT_FOUND", appErr.Code)
	userRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestRegister_DuplicateEmail(t *testing.T) {
	userRepo := new(mockUserRepository)
	roleRepo := new(mockRoleRepository)
	tenantRepo := new(mockTenantRepository)
	tokenRepo := new(mockRefreshTokenRepository)
	svc := newTestAuthService(userRepo, roleRepo, tenantRepo, tokenRepo)
	ctx := context.Background()

	roleRepo.On("GetByID", ctx, "r-staff").Return(sampleRole(), nil)
	userRepo.On("Create", ctx, mock.AnythingOfType("*domain.User")).
		Return(apperrors.DuplicateEmail("alice@example.com"))

	_, err := svc.Register(ctx, RegisterInput{
		Email:     "alice@example.com",
		Password:  "SecurePass123",
		FirstName: "Alice",
		LastName:  "Smith",
		RoleID:    "r-staff",
	})

	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrAlreadyExists))
}

func TestRegister_WeakPassword(t *testing.T) {
	svc := newTestAuthService(new(mockUserRepository), new(mockRoleRepository), new(mockTenantRepository), new(mockRefreshTokenRepository))

	cases := []string{"short1A", "alllowercase1", "ALLUPPERCASE1", "NoDigitsHere"}
	for _, password := range cases {
		_, err := svc.Register(context.Background(), RegisterInput{
			Email:     "alice@example.com",
			Password:  password,
			FirstName: "Alice",
			LastName:  "Smith",
			RoleID:    "r-staff",
		})
		assert.True(t, errors.Is(err, apperrors.ErrInvalidInput), "password %q should be rejected", password)
	}
}

// --- Authenticate ---

func TestAuthenticate_Success(t *testing.T) {
	userRepo := new(mockUserRepository)
	roleRepo := new(mockRoleRepository)
	tenantRepo := new(mockTenantRepository)
	tokenRepo := new(mockRefreshTokenRepository)
	svc := newTestAuthService(userRepo, roleRepo, tenantRepo, tokenRepo)
	ctx := context.Background()

	user := activeUser()
	userRepo.On("GetByEmail", ctx, user.Email).Return(user, nil)
	userRepo.On("RecordLoginSuccess", ctx, user.ID).Return(nil)
	roleRepo.On("GetByID", ctx, "r-staff").Return(sampleRole(), nil)

	principal, err := svc.Authenticate(ctx, user.Email, "SecurePass123")

	require.NoError(t, err)
	assert.Equal(t, user.ID, principal.User.ID)
	assert.Zero(t, principal.User.LoginAttempts)
	assert.Nil(t, principal.User.LockedUntil)
	assert.Equal(t, []string{"appointments:read", "appointments:write", "reports:read"}, principal.Permissions)
	userRepo.AssertExpectations(t)
	userRepo.AssertNotCalled(t, "RecordLoginFailure", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestAuthenticate_UnknownEmail(t *testing.T) {
	userRepo := new(mockUserRepository)
	svc := newTestAuthService(userRepo, new(mockRoleRepository), new(mockTenantRepository), new(mockRefreshTokenRepository))
	ctx := context.Background()

	userRepo.On("GetByEmail", ctx, "nobody@example.com").Return(nil, apperrors.ErrNotFound)

	_, err := svc.Authenticate(ctx, "nobody@example.com", "SecurePass123")

	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidCredentials))
	userRepo.AssertNotCalled(t, "RecordLoginFailure", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestAuthenticate_UnknownEmail_BurnsOneHashComparison(t *testing.T) {
	userRepo := new(mockUserRepository)
	hasher := new(mockPasswordHasher)
	svc := newTestAuthServiceWithHasher(userRepo, new(mockRoleRepository), new(mockTenantRepository), new(mockRefreshTokenRepository), hasher)
	ctx := context.Background()

	userRepo.On("GetByEmail", ctx, "nobody@example.com").Return(nil, apperrors.ErrNotFound)
	hasher.On("VerifyDummy", "SecurePass123").Return(false).Once()

	_, err := svc.Authenticate(ctx, "nobody@example.com", "SecurePass123")

	// An unknown email costs the same hash work as a wrong password, so
	// response latency does not reveal whether the account exists.
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidCredentials))
	hasher.AssertExpectations(t)
	hasher.AssertNotCalled(t, "Verify", mock.Anything, mock.Anything)
}

func TestAuthenticate_WrongPassword_BurnsOneHashComparison(t *testing.T) {
	userRepo := new(mockUserRepository)
	hasher := new(mockPasswordHasher)
	svc := newTestAuthServiceWithHasher(userRepo, new(mockRoleRepository), new(mockTenantRepository), new(mockRefreshTokenRepository), hasher)
	ctx := context.Background()

	user := activeUser()
	userRepo.On("GetByEmail", ctx, user.Email).Return(user, nil)
	hasher.On("Verify", "WrongPass999", user.PasswordHash).Return(false).Once()
	userRepo.On("RecordLoginFailure", ctx, user.ID, 5, 15*time.Minute).Return(1, nil)

	_, err := svc.Authenticate(ctx, user.Email, "WrongPass999")

	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidCredentials))
	hasher.AssertExpectations(t)
	hasher.AssertNotCalled(t, "VerifyDummy", mock.Anything)
}

func TestAuthenticate_WrongPassword_IncrementsAttempts(t *testing.T) {
	userRepo := new(mockUserRepository)
	svc := newTestAuthService(userRepo, new(mockRoleRepository), new(mockTenantRepository), new(mockRefreshTokenRepository))
	ctx := context.Background()

	user := activeUser()
	userRepo.On("GetByEmail", ctx, user.Email).Return(user, nil)
	userRepo.On("RecordLoginFailure", ctx, user.ID, 5, 15*time.Minute).Return(1, nil)

	_, err := svc.Authenticate(ctx, user.Email, "WrongPass999")

	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidCredentials))
	userRepo.AssertExpectations(t)
	userRepo.AssertNotCalled(t, "RecordLoginSuccess", mock.Anything, mock.Anything)
}

func TestAuthenticate_WrongPassword_AtThreshold_StillInvalidCredentials(t *testing.T) {
	userRepo := new(mockUserRepository)
	svc := newTestAuthService(userRepo, new(mockRoleRepository), new(mockTenantRepository), new(mockRefreshTokenRepository))
	ctx := context.Background()

	user := activeUser()
	userRepo.On("GetByEmail", ctx, user.Email).Return(user, nil)
	userRepo.On("RecordLoginFailure", ctx, user.ID, 5, 15*time.Minute).Return(5, nil)

	_, err := svc.Authenticate(ctx, user.Email, "WrongPass999")

	// The response must not reveal that this attempt tripped the lock.
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidCredentials))
	assert.False(t, errors.Is(err, apperrors.ErrAccountLocked))
}

func TestAuthenticate_LockedAccount(t *testing.T) {
	userRepo := new(mockUserRepository)
	svc := newTestAuthService(userRepo, new(mockRoleRepository), new(mockTenantRepository), new(mockRefreshTokenRepository))
	ctx := context.Background()

	user := activeUser()
	lockedUntil := time.Now().UTC().Add(10 * time.Minute)
	user.LockedUntil = &lockedUntil
	user.LoginAttempts = 5
	userRepo.On("GetByEmail", ctx, user.Email).Return(user, nil)

	// Even the correct password fails while the lock window is open.
	_, err := svc.Authenticate(ctx, user.Email, "SecurePass123")

	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrAccountLocked))
	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Contains(t, appErr.Message, "10 minutes")
	userRepo.AssertNotCalled(t, "RecordLoginFailure", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestAuthenticate_InactiveAccount(t *testing.T) {
	userRepo := new(mockUserRepository)
	svc := newTestAuthService(userRepo, new(mockRoleRepository), new(mockTenantRepository), new(mockRefreshTokenRepository))
	ctx := context.Background()

	user := activeUser()
	user.Status = domain.StatusSuspended
	userRepo.On("GetByEmail", ctx, user.Email).Return(user, nil)

	_, err := svc.Authenticate(ctx, user.Email, "SecurePass123")

	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrAccountNotActive))
}

func TestAuthenticate_DeletedAccount(t *testing.T) {
	userRepo := new(mockUserRepository)
	svc := newTestAuthService(userRepo, new(mockRoleRepository), new(mockTenantRepository), new(mockRefreshTokenRepository))
	ctx := context.Background()

	user := activeUser()
	user.IsDeleted = true
	userRepo.On("GetByEmail", ctx, user.Email).Return(user, nil)

	_, err := svc.Authenticate(ctx, user.Email, "SecurePass123")

	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrAccountDeleted))
}

// --- IssueTokenPair ---

func TestIssueTokenPair_Success(t *testing.T) {
	userRepo := new(mockUserRepository)
	roleRepo := new(mockRoleRepository)
	tenantRepo := new(mockTenantRepository)
	tokenRepo := new(mockRefreshTokenRepository)
	svc := newTestAuthService(userRepo, roleRepo, tenantRepo, tokenRepo)
	ctx := context.Background()

	user := activeUser()
	principal := &domain.AuthenticatedUser{User: user, Permissions: []string{"appointments:read"}}

	var stored *domain.RefreshToken
	tokenRepo.On("Create", ctx, mock.AnythingOfType("*domain.RefreshToken")).
		Run(func(args mock.Arguments) {
			stored = args.Get(1).(*domain.RefreshToken)
		}).
		Return(nil)

	pair, err := svc.IssueTokenPair(ctx, principal, "Mozilla/5.0 (X11; Linux)", "203.0.113.7")

	require.NoError(t, err)
	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEmpty(t, pair.RefreshToken)
	assert.Equal(t, int64(900), pair.ExpiresIn)

	// Only the hash of the opaque token is persisted.
	require.NotNil(t, stored)
	assert.Equal(t, auth.HashToken(pair.RefreshToken), stored.TokenHash)
	assert.NotEqual(t, pair.RefreshToken, stored.TokenHash)
	assert.Equal(t, user.ID, stored.UserID)
	assert.Equal(t, "203.0.113.7", stored.IPAddress)
	assert.WithinDuration(t, time.Now().UTC().Add(7*24*time.Hour), stored.ExpiresAt, time.Minute)

	claims, err := newTestJWTManager().ValidateAccessToken(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, user.TenantID, claims.TenantID)
	assert.Equal(t, []string{"appointments:read"}, claims.Permissions)
}

func TestIssueTokenPair_SanitizesDeviceInfo(t *testing.T) {
	tokenRepo := new(mockRefreshTokenRepository)
	svc := newTestAuthService(new(mockUserRepository), new(mockRoleRepository), new(mockTenantRepository), tokenRepo)
	ctx := context.Background()

	principal := &domain.AuthenticatedUser{User: activeUser(), Permissions: nil}

	var stored *domain.RefreshToken
	tokenRepo.On("Create", ctx, mock.AnythingOfType("*domain.RefreshToken")).
		Run(func(args mock.Arguments) {
			stored = args.Get(1).(*domain.RefreshToken)
		}).
		Return(nil)

	_, err := svc.IssueTokenPair(ctx, principal, "Mozilla/5.0 <script>alert('x')</script>"+strings.Repeat("A", 300), "203.0.113.7")

	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.NotContains(t, stored.DeviceInfo, "<")
	assert.NotContains(t, stored.DeviceInfo, "'")
	assert.LessOrEqual(t, len(stored.DeviceInfo), 255)
}

func Test_sanitizeDeviceInfo(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain user agent", "Mozilla/5.0 (X11; Linux x86_64)", "Mozilla/5.0 (X11; Linux x86_64)"},
		{"strips markup", "<script>alert(1)</script>", "scriptalert(1)/script"},
		{"strips quotes", `evil"quote'here`, "evilquotehere"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, sanitizeDeviceInfo(tt.input))
		})
	}

	long := strings.Repeat("x", 400)
	assert.Len(t, sanitizeDeviceInfo(long), 255)
}

// --- Refresh ---

func TestRefresh_Success_Rotates(t *testing.T) {
	userRepo := new(mockUserRepository)
	roleRepo := new(mockRoleRepository)
	tokenRepo := new(mockRefreshTokenRepository)
	svc := newTestAuthService(userRepo, roleRepo, new(mockTenantRepository), tokenRepo)
	ctx := context.Background()

	user := activeUser()
	stored := activeToken(user.ID)

	tokenRepo.On("GetByHash", ctx, stored.TokenHash).Return(stored, nil)
	userRepo.On("GetByID", ctx, user.ID).Return(user, nil)
	tokenRepo.On("Revoke", ctx, stored.TokenHash, domain.RevokedReasonRotated).Return(nil)
	roleRepo.On("GetByID", ctx, "r-staff").Return(sampleRole(), nil)

	var newRow *domain.RefreshToken
	tokenRepo.On("Create", ctx, mock.AnythingOfType("*domain.RefreshToken")).
		Run(func(args mock.Arguments) {
			newRow = args.Get(1).(*domain.RefreshToken)
		}).
		Return(nil)

	pair, err := svc.Refresh(ctx, "opaque-token-value")

	require.NoError(t, err)
	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEqual(t, "opaque-token-value", pair.RefreshToken)

	// Device context is carried forward to the replacement row.
	require.NotNil(t, newRow)
	assert.Equal(t, stored.DeviceInfo, newRow.DeviceInfo)
	assert.Equal(t, stored.IPAddress, newRow.IPAddress)
	assert.NotEqual(t, stored.TokenHash, newRow.TokenHash)

	claims, err := newTestJWTManager().ValidateAccessToken(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, user.TenantID, claims.TenantID)
	assert.Equal(t, []string{"appointments:read", "appointments:write", "reports:read"}, claims.Permissions)

	tokenRepo.AssertExpectations(t)
	tokenRepo.AssertNotCalled(t, "RevokeAllByUser", mock.Anything, mock.Anything, mock.Anything)
}

func TestRefresh_UnknownToken(t *testing.T) {
	tokenRepo := new(mockRefreshTokenRepository)
	svc := newTestAuthService(new(mockUserRepository), new(mockRoleRepository), new(mockTenantRepository), tokenRepo)
	ctx := context.Background()

	tokenRepo.On("GetByHash", ctx, mock.AnythingOfType("string")).Return(nil, apperrors.ErrNotFound)

	_, err := svc.Refresh(ctx, "never-issued")

	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidToken))
	tokenRepo.AssertNotCalled(t, "RevokeAllByUser", mock.Anything, mock.Anything, mock.Anything)
}

func TestRefresh_RevokedToken_TriggersCascade(t *testing.T) {
	tokenRepo := new(mockRefreshTokenRepository)
	svc := newTestAuthService(new(mockUserRepository), new(mockRoleRepository), new(mockTenantRepository), tokenRepo)
	ctx := context.Background()

	stored := activeToken("u-1234")
	revokedAt := time.Now().UTC().Add(-time.Hour)
	stored.IsRevoked = true
	stored.RevokedAt = &revokedAt
	stored.RevokedReason = domain.RevokedReasonRotated

	tokenRepo.On("GetByHash", ctx, stored.TokenHash).Return(stored, nil)
	tokenRepo.On("RevokeAllByUser", ctx, "u-1234", domain.RevokedReasonReuse).Return(int64(3), nil)

	_, err := svc.Refresh(ctx, "opaque-token-value")

	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrTokenReuseDetected))
	assert.False(t, errors.Is(err, apperrors.ErrInvalidToken))
	tokenRepo.AssertExpectations(t)
	tokenRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestRefresh_ExpiredToken(t *testing.T) {
	tokenRepo := new(mockRefreshTokenRepository)
	svc := newTestAuthService(new(mockUserRepository), new(mockRoleRepository), new(mockTenantRepository), tokenRepo)
	ctx := context.Background()

	stored := activeToken("u-1234")
	stored.ExpiresAt = time.Now().UTC().Add(-time.Minute)

	tokenRepo.On("GetByHash", ctx, stored.TokenHash).Return(stored, nil)

	_, err := svc.Refresh(ctx, "opaque-token-value")

	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrTokenExpired))
	tokenRepo.AssertNotCalled(t, "RevokeAllByUser", mock.Anything, mock.Anything, mock.Anything)
	tokenRepo.AssertNotCalled(t, "Revoke", mock.Anything, mock.Anything, mock.Anything)
}

func TestRefresh_LostRotationRace(t *testing.T) {
	userRepo := new(mockUserRepository)
	tokenRepo := new(mockRefreshTokenRepository)
	svc := newTestAuthService(userRepo, new(mockRoleRepository), new(mockTenantRepository), tokenRepo)
	ctx := context.Background()

	user := activeUser()
	stored := activeToken(user.ID)

	tokenRepo.On("GetByHash", ctx, stored.TokenHash).Return(stored, nil)
	userRepo.On("GetByID", ctx, user.ID).Return(user, nil)
	// A concurrent rotation won the conditional update.
	tokenRepo.On("Revoke", ctx, stored.TokenHash, domain.RevokedReasonRotated).Return(apperrors.ErrNotFound)

	_, err := svc.Refresh(ctx, "opaque-token-value")

	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidToken))
	tokenRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestRefresh_InactiveUser(t *testing.T) {
	userRepo := new(mockUserRepository)
	tokenRepo := new(mockRefreshTokenRepository)
	svc := newTestAuthService(userRepo, new(mockRoleRepository), new(mockTenantRepository), tokenRepo)
	ctx := context.Background()

	user := activeUser()
	user.Status = domain.StatusInactive
	stored := activeToken(user.ID)

	tokenRepo.On("GetByHash", ctx, stored.TokenHash).Return(stored, nil)
	userRepo.On("GetByID", ctx, user.ID).Return(user, nil)

	_, err := svc.Refresh(ctx, "opaque-token-value")

	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrAccountNotActive))
	tokenRepo.AssertNotCalled(t, "Revoke", mock.Anything, mock.Anything, mock.Anything)
}

func TestRefresh_LockedUserStillRefreshes(t *testing.T) {
	userRepo := new(mockUserRepository)
	roleRepo := new(mockRoleRepository)
	tokenRepo := new(mockRefreshTokenRepository)
	svc := newTestAuthService(userRepo, roleRepo, new(mockTenantRepository), tokenRepo)
	ctx := context.Background()

	// The lock gates new password logins only; an established session keeps
	// rotating until its refresh token expires.
	user := activeUser()
	lockedUntil := time.Now().UTC().Add(10 * time.Minute)
	user.LockedUntil = &lockedUntil
	stored := activeToken(user.ID)

	tokenRepo.On("GetByHash", ctx, stored.TokenHash).Return(stored, nil)
	userRepo.On("GetByID", ctx, user.ID).Return(user, nil)
	tokenRepo.On("Revoke", ctx, stored.TokenHash, domain.RevokedReasonRotated).Return(nil)
	roleRepo.On("GetByID", ctx, "r-staff").Return(sampleRole(), nil)
	tokenRepo.On("Create", ctx, mock.AnythingOfType("*domain.RefreshToken")).Return(nil)

	pair, err := svc.Refresh(ctx, "opaque-token-value")

	require.NoError(t, err)
	assert.NotEmpty(t, pair.AccessToken)
}

// --- Revoke / RevokeAll / Logout ---

func TestRevokeOwned_OwnershipEnforced(t *testing.T) {
	tokenRepo := new(mockRefreshTokenRepository)
	svc := newTestAuthService(new(mockUserRepository), new(mockRoleRepository), new(mockTenantRepository), tokenRepo)
	ctx := context.Background()

	hash := auth.HashToken("opaque-token-value")
	tokenRepo.On("RevokeOwned", ctx, hash, "u-other", domain.RevokedReasonLogout).Return(apperrors.ErrNotFound)

	err := svc.RevokeOwned(ctx, "opaque-token-value", "u-other", domain.RevokedReasonLogout)

	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
}

func TestRevoke_AlreadyRevoked(t *testing.T) {
	tokenRepo := new(mockRefreshTokenRepository)
	svc := newTestAuthService(new(mockUserRepository), new(mockRoleRepository), new(mockTenantRepository), tokenRepo)
	ctx := context.Background()

	hash := auth.HashToken("opaque-token-value")
	tokenRepo.On("Revoke", ctx, hash, "security audit").Return(apperrors.ErrNotFound)

	err := svc.Revoke(ctx, "opaque-token-value", "security audit")

	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
}

func TestRevokeAll_ReturnsCount(t *testing.T) {
	tokenRepo := new(mockRefreshTokenRepository)
	svc := newTestAuthService(new(mockUserRepository), new(mockRoleRepository), new(mockTenantRepository), tokenRepo)
	ctx := context.Background()

	tokenRepo.On("RevokeAllByUser", ctx, "u-1234", "security audit").Return(int64(3), nil)

	count, err := svc.RevokeAll(ctx, "u-1234", "security audit")

	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
}

func TestLogout_RevokesOwnToken(t *testing.T) {
	tokenRepo := new(mockRefreshTokenRepository)
	svc := newTestAuthService(new(mockUserRepository), new(mockRoleRepository), new(mockTenantRepository), tokenRepo)
	ctx := context.Background()

	hash := auth.HashToken("opaque-token-value")
	tokenRepo.On("RevokeOwned", ctx, hash, "u-1234", domain.RevokedReasonLogout).Return(nil)

	svc.Logout(ctx, "opaque-token-value", "u-1234")

	tokenRepo.AssertExpectations(t)
}

func TestLogout_SwallowsRevocationFailure(t *testing.T) {
	tokenRepo := new(mockRefreshTokenRepository)
	svc := newTestAuthService(new(mockUserRepository), new(mockRoleRepository), new(mockTenantRepository), tokenRepo)
	ctx := context.Background()

	tokenRepo.On("RevokeOwned", ctx, mock.AnythingOfType("string"), "u-1234", domain.RevokedReasonLogout).
		Return(errors.New("store unavailable"))

	// Must not panic or surface the failure.
	svc.Logout(ctx, "opaque-token-value", "u-1234")

	tokenRepo.AssertExpectations(t)
}

func TestLogout_EmptyTokenIsNoop(t *testing.T) {
	tokenRepo := new(mockRefreshTokenRepository)
	svc := newTestAuthService(new(mockUserRepository), new(mockRoleRepository), new(mockTenantRepository), tokenRepo)

	svc.Logout(context.Background(), "", "u-1234")

	tokenRepo.AssertNotCalled(t, "RevokeOwned", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}
