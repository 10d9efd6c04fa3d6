package http

import (
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/salonsphere/auth-service/internal/domain"
	"github.com/salonsphere/auth-service/internal/service"
	apperrors "github.com/salonsphere/auth-service/pkg/errors"
	"github.com/salonsphere/auth-service/pkg/httputil"
	"github.com/salonsphere/auth-service/pkg/middleware"
	"github.com/salonsphere/auth-service/pkg/validator"
)

// maxBodyBytes caps request bodies at 1 MiB.
const maxBodyBytes = 1 << 20

// AuthHandler serves the authentication endpoints.
type AuthHandler struct {
	authService    *service.AuthService
	sessionService *service.SessionService
	logger         *slog.Logger
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(authService *service.AuthService, sessionService *service.SessionService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		authService:    authService,
		sessionService: sessionService,
		logger:         logger,
	}
}

// RegisterRequest is the request body for POST /auth/register.
type RegisterRequest struct {
	Email     string  `json:"email" validate:"required,email"`
	Password  string  `json:"password" validate:"required,min=8,max=128"`
	FirstName string  `json:"first_name" validate:"required,max=100"`
	LastName  string  `json:"last_name" validate:"required,max=100"`
	TenantID  *string `json:"tenant_id" validate:"omitempty,max=64"`
	RoleID    string  `json:"role_id" validate:"required,max=64"`
}

// LoginRequest is the request body for POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RefreshRequest is the request body for POST /auth/refresh.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// LogoutRequest is the request body for POST /auth/logout. The refresh token
// is optional; without it only the client-side session is cleared.
type LogoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// RevokeSessionsRequest is the request body for the administrative
// POST /auth/sessions/revoke.
type RevokeSessionsRequest struct {
	UserID string `json:"user_id" validate:"required"`
	Reason string `json:"reason" validate:"omitempty,max=255"`
}

// AuthResponse bundles the principal snapshot with a freshly issued token pair.
type AuthResponse struct {
	User   *domain.AuthenticatedUser `json:"user"`
	Tokens *domain.TokenPair         `json:"tokens"`
}

// Register handles POST /auth/register.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var req RegisterRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	principal, err := h.authService.Register(r.Context(), service.RegisterInput{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		TenantID:  req.TenantID,
		RoleID:    req.RoleID,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	tokens, err := h.authService.IssueTokenPair(r.Context(), principal, r.UserAgent(), clientIP(r))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to issue tokens after registration",
			slog.String("user_id", principal.User.ID),
			slog.String("error", err.Error()),
		)
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: AuthResponse{User: principal, Tokens: tokens}})
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var req LoginRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	principal, err := h.authService.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	tokens, err := h.authService.IssueTokenPair(r.Context(), principal, r.UserAgent(), clientIP(r))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: AuthResponse{User: principal, Tokens: tokens}})
}

// Refresh handles POST /auth/refresh. Rotation is single-use: the presented
// token is revoked and a replacement pair is returned.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var req RefreshRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	tokens, err := h.authService.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: tokens})
}

// Logout handles POST /auth/logout. Always answers 200: a revocation failure
// must not keep the client logged in.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var req LogoutRequest
	// A missing or malformed body just means there is no token to revoke.
	_ = json.NewDecoder(r.Body).Decode(&req)

	userID := middleware.UserIDFromContext(r.Context())
	h.authService.Logout(r.Context(), req.RefreshToken, userID)
	h.sessionService.Invalidate(r.Context(), userID)

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: map[string]string{"message": "logged out"}})
}

// LogoutAll handles POST /auth/logout-all, revoking every active session of
// the calling principal.
func (h *AuthHandler) LogoutAll(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())

	count, err := h.authService.RevokeAll(r.Context(), userID, domain.RevokedReasonLogout)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	h.sessionService.Invalidate(r.Context(), userID)

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: map[string]any{
		"message":       "all sessions revoked",
		"revoked_count": count,
	}})
}

// Me handles GET /auth/me, answering from the claims resolved by the auth
// middleware. The session was already validated against the store there.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		httputil.WriteError(w, r, apperrors.Unauthorized("authentication required"), h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: claims})
}

// RevokeSessions handles the administrative POST /auth/sessions/revoke,
// terminating every active session of the named user.
func (h *AuthHandler) RevokeSessions(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var req RevokeSessionsRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	reason := req.Reason
	if reason == "" {
		reason = "revoked by administrator"
	}

	count, err := h.authService.RevokeAll(r.Context(), req.UserID, reason)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	h.sessionService.Invalidate(r.Context(), req.UserID)

	h.logger.InfoContext(r.Context(), "sessions revoked by administrator",
		slog.String("target_user_id", req.UserID),
		slog.String("actor_user_id", middleware.UserIDFromContext(r.Context())),
		slog.Int64("count", count),
	)

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: map[string]any{
		"message":       "sessions revoked",
		"revoked_count": count,
	}})
}

// clientIP returns the originating client address, preferring the first entry
// of X-Forwarded-For when a proxy sits in front. The header is
// client-controlled, so an entry that does not parse as an IP is discarded in
// favor of the transport address rather than stored.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first := fwd
		if idx := strings.IndexByte(fwd, ','); idx >= 0 {
			first = fwd[:idx]
		}
		if ip := net.ParseIP(strings.TrimSpace(first)); ip != nil {
			return ip.String()
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	if ip := net.ParseIP(strings.Trim(host, "[]")); ip != nil {
		return ip.String()
	}
	return ""
}
