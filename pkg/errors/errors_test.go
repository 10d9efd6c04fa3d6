package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestAppError_Error(t *testing.T) {
	e := NotFound("user", "u-1")
	want := `NOT_FOUND: user with id u-1 not found`
	if e.Error() != want {
		t.Errorf("Error() = %q, want %q", e.Error(), want)
	}
}

func TestAppError_Unwrap(t *testing.T) {
	e := InvalidCredentials()
	if !errors.Is(e, ErrInvalidCredentials) {
		t.Error("InvalidCredentials should unwrap to ErrInvalidCredentials")
	}
}

func TestAppError_WrappedStillMatches(t *testing.T) {
	e := fmt.Errorf("authenticate: %w", TokenReuseDetected())
	if !errors.Is(e, ErrTokenReuseDetected) {
		t.Error("wrapped AppError should still match its sentinel")
	}
	var appErr *AppError
	if !errors.As(e, &appErr) {
		t.Fatal("wrapped AppError should still be extractable")
	}
	if appErr.Code != "TOKEN_REUSE_DETECTED" {
		t.Errorf("Code = %q, want TOKEN_REUSE_DETECTED", appErr.Code)
	}
}

func TestAccountLocked_CarriesRemainingMinutes(t *testing.T) {
	e := AccountLocked(12)
	want := "account is locked, try again in 12 minutes"
	if e.Message != want {
		t.Errorf("Message = %q, want %q", e.Message, want)
	}
	if e.Status != http.StatusLocked {
		t.Errorf("Status = %d, want %d", e.Status, http.StatusLocked)
	}
}

func TestReuseDetected_DistinctFromInvalidToken(t *testing.T) {
	reuse := TokenReuseDetected()
	invalid := InvalidToken()
	if reuse.Code == invalid.Code {
		t.Error("TokenReuseDetected and InvalidToken must carry distinct codes")
	}
	if errors.Is(invalid, ErrTokenReuseDetected) {
		t.Error("InvalidToken must not match ErrTokenReuseDetected")
	}
	if errors.Is(reuse, ErrInvalidToken) {
		t.Error("TokenReuseDetected must not match ErrInvalidToken")
	}
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"app error status wins", AccountLocked(3), http.StatusLocked},
		{"not found sentinel", ErrNotFound, http.StatusNotFound},
		{"already exists sentinel", ErrAlreadyExists, http.StatusConflict},
		{"invalid input sentinel", ErrInvalidInput, http.StatusBadRequest},
		{"invalid credentials sentinel", ErrInvalidCredentials, http.StatusUnauthorized},
		{"invalid token sentinel", ErrInvalidToken, http.StatusUnauthorized},
		{"token expired sentinel", ErrTokenExpired, http.StatusUnauthorized},
		{"reuse detected sentinel", ErrTokenReuseDetected, http.StatusUnauthorized},
		{"authentication failed sentinel", ErrAuthenticationFailed, http.StatusUnauthorized},
		{"account locked sentinel", ErrAccountLocked, http.StatusLocked},
		{"account not active sentinel", ErrAccountNotActive, http.StatusForbidden},
		{"account deleted sentinel", ErrAccountDeleted, http.StatusForbidden},
		{"wrapped sentinel", fmt.Errorf("ctx: %w", ErrTokenExpired), http.StatusUnauthorized},
		{"unknown error", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HTTPStatus(tt.err); got != tt.want {
				t.Errorf("HTTPStatus(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

func TestDuplicateEmail_MapsToConflict(t *testing.T) {
	e := DuplicateEmail("alice@example.com")
	if e.Status != http.StatusConflict {
		t.Errorf("Status = %d, want %d", e.Status, http.StatusConflict)
	}
	if !errors.Is(e, ErrAlreadyExists) {
		t.Error("DuplicateEmail should unwrap to ErrAlreadyExists")
	}
}
