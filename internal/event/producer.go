package event

import (
	"context"
	"fmt"
	"log/slog"

	pkgkafka "github.com/salonsphere/auth-service/pkg/kafka"

	"github.com/salonsphere/auth-service/internal/domain"
)

// Kafka topic constants for auth domain events.
const (
	TopicUserRegistered     = "salonsphere.auth.user.registered"
	TopicSessionsRevoked    = "salonsphere.auth.sessions.revoked"
	TopicTokenReuseDetected = "salonsphere.auth.token.reuse_detected"
)

// Aggregate type constant.
const AggregateTypeUser = "user"

// Source identifier for events originating from this service.
const SourceAuthService = "auth-service"

// UserRegisteredData is the payload for a user.registered event.
type UserRegisteredData struct {
	ID        string  `json:"id"`
	Email     string  `json:"email"`
	FirstName string  `json:"first_name"`
	LastName  string  `json:"last_name"`
	TenantID  *string `json:"tenant_id"`
	RoleID    string  `json:"role_id"`
}

// SessionsRevokedData is the payload for a sessions.revoked event.
type SessionsRevokedData struct {
	UserID       string `json:"user_id"`
	RevokedCount int64  `json:"revoked_count"`
	Reason       string `json:"reason"`
}

// TokenReuseDetectedData is the payload for a token.reuse_detected event.
// Emitted when a revoked refresh token is presented again, which indicates
// the token value leaked to a second party.
type TokenReuseDetectedData struct {
	UserID       string `json:"user_id"`
	TokenID      string `json:"token_id"`
	RevokedCount int64  `json:"revoked_count"`
}

// Producer publishes auth domain events to Kafka.
type Producer struct {
	kafka  *pkgkafka.Producer
	logger *slog.Logger
}

// NewProducer creates a new event producer for the auth service.
func NewProducer(kafka *pkgkafka.Producer, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:  kafka,
		logger: logger,
	}
}

// PublishUserRegistered publishes a user.registered event.
func (p *Producer) PublishUserRegistered(ctx context.Context, user *domain.User) error {
	data := UserRegisteredData{
		ID:        user.ID,
		Email:     user.Email,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		TenantID:  user.TenantID,
		RoleID:    user.RoleID,
	}

	event, err := pkgkafka.NewEvent(TopicUserRegistered, user.ID, AggregateTypeUser, SourceAuthService, data)
	if err != nil {
		return fmt.Errorf("create user.registered event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicUserRegistered, event); err != nil {
		return fmt.Errorf("publish user.registered event: %w", err)
	}

	p.logger.DebugContext(ctx, "published user.registered event",
		slog.String("user_id", user.ID),
		slog.String("email", user.Email),
	)

	return nil
}

// PublishSessionsRevoked publishes a sessions.revoked event.
func (p *Producer) PublishSessionsRevoked(ctx context.Context, userID string, revokedCount int64, reason string) error {
	data := SessionsRevokedData{
		UserID:       userID,
		RevokedCount: revokedCount,
		Reason:       reason,
	}

	event, err := pkgkafka.NewEvent(TopicSessionsRevoked, userID, AggregateTypeUser, SourceAuthService, data)
	if err != nil {
		return fmt.Errorf("create sessions.revoked event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicSessionsRevoked, event); err != nil {
		return fmt.Errorf("publish sessions.revoked event: %w", err)
	}

	p.logger.DebugContext(ctx, "published sessions.revoked event",
		slog.String("user_id", userID),
		slog.Int64("revoked_count", revokedCount),
	)

	return nil
}

// PublishTokenReuseDetected publishes a token.reuse_detected event.
func (p *Producer) PublishTokenReuseDetected(ctx context.Context, userID, tokenID string, revokedCount int64) error {
	data := TokenReuseDetectedData{
		UserID:       userID,
		TokenID:      tokenID,
		RevokedCount: revokedCount,
	}

	event, err := pkgkafka.NewEvent(TopicTokenReuseDetected, userID, AggregateTypeUser, SourceAuthService, data)
	if err != nil {
		return fmt.Errorf("create token.reuse_detected event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicTokenReuseDetected, event); err != nil {
		return fmt.Errorf("publish token.reuse_detected event: %w", err)
	}

	p.logger.DebugContext(ctx, "published token.reuse_detected event",
		slog.String("user_id", userID),
		slog.String("token_id", tokenID),
	)

	return nil
}
