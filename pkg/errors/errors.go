package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Standard sentinel errors for common cases.
var (
	ErrNotFound       = errors.New("resource not found")
	ErrAlreadyExists  = errors.New("resource already exists")
	ErrInvalidInput   = errors.New("invalid input")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrInternal       = errors.New("internal error")
	ErrConflict       = errors.New("conflict")
	ErrServiceUnavail = errors.New("service unavailable")
)

// Auth-domain sentinel errors. Each maps to exactly one terminal failure of
// the authentication core and is surfaced directly to the calling boundary.
var (
	ErrInvalidCredentials   = errors.New("invalid credentials")
	ErrAccountLocked        = errors.New("account locked")
	ErrAccountNotActive     = errors.New("account not active")
	ErrAccountDeleted       = errors.New("account deleted")
	ErrInvalidToken         = errors.New("invalid token")
	ErrTokenExpired         = errors.New("token expired")
	ErrTokenReuseDetected   = errors.New("token reuse detected")
	ErrAuthenticationFailed = errors.New("authentication failed")
)

// AppError represents a structured application error with HTTP status mapping.
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NotFound creates a 404 error.
func NotFound(resource, id string) *AppError {
	return &AppError{
		Code:    "NOT_FOUND",
		Message: fmt.Sprintf("%s with id %s not found", resource, id),
		Status:  http.StatusNotFound,
		Err:     ErrNotFound,
	}
}

// AlreadyExists creates a 409 error.
func AlreadyExists(resource, field, value string) *AppError {
	return &AppError{
		Code:    "ALREADY_EXISTS",
		Message: fmt.Sprintf("%s with %s %q already exists", resource, field, value),
		Status:  http.StatusConflict,
		Err:     ErrAlreadyExists,
	}
}

// InvalidInput creates a 400 error.
func InvalidInput(message string) *AppError {
	return &AppError{
		Code:    "INVALID_INPUT",
		Message: message,
		Status:  http.StatusBadRequest,
		Err:     ErrInvalidInput,
	}
}

// Unauthorized creates a 401 error.
func Unauthorized(message string) *AppError {
	return &AppError{
		Code:    "UNAUTHORIZED",
		Message: message,
		Status:  http.StatusUnauthorized,
		Err:     ErrUnauthorized,
	}
}

// Forbidden creates a 403 error.
func Forbidden(message string) *AppError {
	return &AppError{
		Code:    "FORBIDDEN",
		Message: message,
		Status:  http.StatusForbidden,
		Err:     ErrForbidden,
	}
}

// Internal creates a 500 error.
func Internal(err error) *AppError {
	return &AppError{
		Code:    "INTERNAL_ERROR",
		Message: "an internal error occurred",
		Status:  http.StatusInternalServerError,
		Err:     err,
	}
}

// InvalidCredentials creates a 401 error for a failed login. The message is a
// fixed string: it must not reveal whether the email exists, whether the
// password was wrong, or whether the failure tripped a lockout.
func InvalidCredentials() *AppError {
	return &AppError{
		Code:    "INVALID_CREDENTIALS",
		Message: "invalid email or password",
		Status:  http.StatusUnauthorized,
		Err:     ErrInvalidCredentials,
	}
}

// AccountLocked creates a 423 error carrying the remaining lock window in minutes.
func AccountLocked(remainingMinutes int) *AppError {
	return &AppError{
		Code:    "ACCOUNT_LOCKED",
		Message: fmt.Sprintf("account is locked, try again in %d minutes", remainingMinutes),
		Status:  http.StatusLocked,
		Err:     ErrAccountLocked,
	}
}

// AccountNotActive creates a 403 error for an inactive or suspended account.
func AccountNotActive() *AppError {
	return &AppError{
		Code:    "ACCOUNT_NOT_ACTIVE",
		Message: "account is not active",
		Status:  http.StatusForbidden,
		Err:     ErrAccountNotActive,
	}
}

// AccountDeleted creates a 403 error for a soft-deleted account.
func AccountDeleted() *AppError {
	return &AppError{
		Code:    "ACCOUNT_DELETED",
		Message: "account has been deleted",
		Status:  http.StatusForbidden,
		Err:     ErrAccountDeleted,
	}
}

// DuplicateEmail creates a 409 error for registration with a taken email.
func DuplicateEmail(email string) *AppError {
	return &AppError{
		Code:    "DUPLICATE_EMAIL",
		Message: fmt.Sprintf("email %q is already registered", email),
		Status:  http.StatusConflict,
		Err:     ErrAlreadyExists,
	}
}

// InvalidToken creates a 401 error for an unknown or malformed refresh token.
func InvalidToken() *AppError {
	return &AppError{
		Code:    "INVALID_TOKEN",
		Message: "refresh token is invalid",
		Status:  http.StatusUnauthorized,
		Err:     ErrInvalidToken,
	}
}

// TokenExpired creates a 401 error for an expired refresh token.
func TokenExpired() *AppError {
	return &AppError{
		Code:    "TOKEN_EXPIRED",
		Message: "refresh token has expired",
		Status:  http.StatusUnauthorized,
		Err:     ErrTokenExpired,
	}
}

// TokenReuseDetected creates a 401 error distinct from InvalidToken: a revoked
// token was presented again, all sessions for the owner have been revoked, and
// the client must fully re-authenticate.
func TokenReuseDetected() *AppError {
	return &AppError{
		Code:    "TOKEN_REUSE_DETECTED",
		Message: "refresh token reuse detected, all sessions have been revoked, please log in again",
		Status:  http.StatusUnauthorized,
		Err:     ErrTokenReuseDetected,
	}
}

// UserNotFound creates a 401 error for a session whose principal no longer exists.
func UserNotFound(id string) *AppError {
	return &AppError{
		Code:    "USER_NOT_FOUND",
		Message: fmt.Sprintf("user %s not found", id),
		Status:  http.StatusUnauthorized,
		Err:     ErrNotFound,
	}
}

// AuthenticationFailed creates a 401 error for a session validation that must
// fail closed (for example, tenant scope activation failure).
func AuthenticationFailed() *AppError {
	return &AppError{
		Code:    "AUTHENTICATION_FAILED",
		Message: "authentication failed",
		Status:  http.StatusUnauthorized,
		Err:     ErrAuthenticationFailed,
	}
}

// RoleNotFound creates a 400 error for a registration referencing an unknown role.
func RoleNotFound(id string) *AppError {
	return &AppError{
		Code:    "ROLE_NOT_FOUND",
		Message: fmt.Sprintf("role %s not found", id),
		Status:  http.StatusBadRequest,
		Err:     ErrNotFound,
	}
}

// TenantNotFound creates a 400 error for a registration referencing an unknown tenant.
func TenantNotFound(id string) *AppError {
	return &AppError{
		Code:    "TENANT_NOT_FOUND",
		Message: fmt.Sprintf("tenant %s not found", id),
		Status:  http.StatusBadRequest,
		Err:     ErrNotFound,
	}
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	return fmt.Errorf("%s: %w", message, err)
}

// HTTPStatus returns the HTTP status code for the given error.
func HTTPStatus(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Status
	}

	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrAlreadyExists), errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, ErrInvalidCredentials),
		errors.Is(err, ErrInvalidToken),
		errors.Is(err, ErrTokenExpired),
		errors.Is(err, ErrTokenReuseDetected),
		errors.Is(err, ErrAuthenticationFailed):
		return http.StatusUnauthorized
	case errors.Is(err, ErrAccountLocked):
		return http.StatusLocked
	case errors.Is(err, ErrForbidden),
		errors.Is(err, ErrAccountNotActive),
		errors.Is(err, ErrAccountDeleted):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}
