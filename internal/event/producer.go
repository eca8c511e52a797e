package event

import (
	"context"
	"fmt"
	"log/slog"

	pkgkafka "github.com/dkoval/auth-service/pkg/kafka"
)

// Kafka topic constants for auth domain events.
const (
	TopicUserSignedUp       = "auth.user.signed_up"
	TopicUserVerified       = "auth.user.verified"
	TopicUserPasswordReset  = "auth.user.password_reset"
	TopicTokenTheftDetected = "auth.token_theft_detected"
)

// Aggregate type constant.
const AggregateTypeUser = "user"

// Source identifier for events originating from this service.
const SourceAuthService = "auth-service"

// UserSignedUpData is the payload for an auth.user.signed_up event.
type UserSignedUpData struct {
	UserID   string `json:"user_id"`
	Email    string `json:"email"`
	Username string `json:"username"`
}

// UserVerifiedData is the payload for an auth.user.verified event.
type UserVerifiedData struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}

// UserPasswordResetData is the payload for an auth.user.password_reset event.
type UserPasswordResetData struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}

// TokenTheftDetectedData is the payload for an auth.token_theft_detected
// event, emitted when a signature-valid refresh token has no stored row.
type TokenTheftDetectedData struct {
	UserID string `json:"user_id"`
}

// Publisher is the event publishing surface the service layer depends on.
type Publisher interface {
	PublishUserSignedUp(ctx context.Context, userID, email, username string) error
	PublishUserVerified(ctx context.Context, userID, email string) error
	PublishUserPasswordReset(ctx context.Context, userID, email string) error
	PublishTokenTheftDetected(ctx context.Context, userID string) error
}

// Producer publishes auth domain events to Kafka.
type Producer struct {
	kafka  *pkgkafka.Producer
	logger *slog.Logger
}

// NewProducer creates a new event producer.
func NewProducer(kafka *pkgkafka.Producer, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:  kafka,
		logger: logger,
	}
}

// PublishUserSignedUp publishes an auth.user.signed_up event.
func (p *Producer) PublishUserSignedUp(ctx context.Context, userID, email, username string) error {
	data := UserSignedUpData{
		UserID:   userID,
		Email:    email,
		Username: username,
	}

	if err := p.publish(ctx, TopicUserSignedUp, userID, data); err != nil {
		return err
	}

	p.logger.DebugContext(ctx, "published user.signed_up event",
		slog.String("user_id", userID),
		slog.String("email", email),
	)

	return nil
}

// PublishUserVerified publishes an auth.user.verified event.
func (p *Producer) PublishUserVerified(ctx context.Context, userID, email string) error {
	data := UserVerifiedData{
		UserID: userID,
		Email:  email,
	}

	if err := p.publish(ctx, TopicUserVerified, userID, data); err != nil {
		return err
	}

	p.logger.DebugContext(ctx, "published user.verified event",
		slog.String("user_id", userID),
	)

	return nil
}

// PublishUserPasswordReset publishes an auth.user.password_reset event.
func (p *Producer) PublishUserPasswordReset(ctx context.Context, userID, email string) error {
	data := UserPasswordResetData{
		UserID: userID,
		Email:  email,
	}

	if err := p.publish(ctx, TopicUserPasswordReset, userID, data); err != nil {
		return err
	}

	p.logger.DebugContext(ctx, "published user.password_reset event",
		slog.String("user_id", userID),
	)

	return nil
}

// PublishTokenTheftDetected publishes an auth.token_theft_detected event.
func (p *Producer) PublishTokenTheftDetected(ctx context.Context, userID string) error {
	data := TokenTheftDetectedData{UserID: userID}

	if err := p.publish(ctx, TopicTokenTheftDetected, userID, data); err != nil {
		return err
	}

	p.logger.WarnContext(ctx, "published token_theft_detected event",
		slog.String("user_id", userID),
	)

	return nil
}

func (p *Producer) publish(ctx context.Context, topic, aggregateID string, data any) error {
	evt, err := pkgkafka.NewEvent(topic, aggregateID, AggregateTypeUser, SourceAuthService, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", topic, err)
	}

	if err := p.kafka.Publish(ctx, topic, evt); err != nil {
		return fmt.Errorf("publish %s event: %w", topic, err)
	}

	return nil
}
