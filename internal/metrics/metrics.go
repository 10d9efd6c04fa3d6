package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Auth flow counters. Labels stay low-cardinality: outcome and reason values
// come from fixed sets, never from request data.
var (
	// LoginAttempts counts authentication attempts by outcome
	// (success, invalid_credentials, locked, not_active, deleted).
	LoginAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_login_attempts_total",
			Help: "Total number of authentication attempts by outcome.",
		},
		[]string{"outcome"},
	)

	// AccountLockouts counts accounts transitioning into the locked state.
	AccountLockouts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "auth_account_lockouts_total",
			Help: "Total number of account lockouts triggered by failed logins.",
		},
	)

	// TokenRefreshes counts refresh operations by outcome
	// (success, invalid, expired, reuse_detected).
	TokenRefreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_token_refreshes_total",
			Help: "Total number of refresh token rotations by outcome.",
		},
		[]string{"outcome"},
	)

	// TokenReuseDetections counts revoked tokens presented again.
	TokenReuseDetections = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "auth_token_reuse_detections_total",
			Help: "Total number of revoked refresh tokens presented again.",
		},
	)

	// SessionValidations counts access token validations by outcome
	// (success, cache_hit, invalid, failed).
	SessionValidations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_session_validations_total",
			Help: "Total number of session validations by outcome.",
		},
		[]string{"outcome"},
	)

	// JanitorDeletedTokens counts rows removed by janitor sweeps, by sweep
	// kind (expired, revoked).
	JanitorDeletedTokens = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_janitor_deleted_tokens_total",
			Help: "Total number of refresh token rows removed by janitor sweeps.",
		},
		[]string{"sweep"},
	)

	// JanitorSweepErrors counts janitor sweeps that failed, by sweep kind.
	JanitorSweepErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_janitor_sweep_errors_total",
			Help: "Total number of janitor sweeps that failed.",
		},
		[]string{"sweep"},
	)
)
