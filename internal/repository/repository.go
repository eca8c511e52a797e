package repository

import (
	"context"
	"time"

	"github.com/dkoval/auth-service/internal/domain"
)

// UserRepository defines the interface for user persistence operations.
type UserRepository interface {
	// Create inserts a new user into the store.
	Create(ctx context.Context, user *domain.User) error

	// GetByID retrieves a user by their unique identifier.
	GetByID(ctx context.Context, id string) (*domain.User, error)

	// GetByEmail retrieves a user by their email address.
	GetByEmail(ctx context.Context, email string) (*domain.User, error)

	// MarkEmailVerified records the instant the user's email was verified.
	MarkEmailVerified(ctx context.Context, userID string, at time.Time) error

	// UpdatePasswordHash replaces the user's stored password hash.
	UpdatePasswordHash(ctx context.Context, userID, passwordHash string) error
}

// RefreshTokenRepository defines the interface for refresh token persistence
// operations. Tokens are stored verbatim; presence of the row is what makes a
// signed refresh token live.
type RefreshTokenRepository interface {
	// Create stores a refresh token for the user.
	Create(ctx context.Context, token, userID string) error

	// GetByToken retrieves a refresh token record.
	GetByToken(ctx context.Context, token string) (*domain.RefreshToken, error)

	// Delete removes a specific refresh token.
	Delete(ctx context.Context, token string) error

	// DeleteByUserID removes every refresh token belonging to the user.
	DeleteByUserID(ctx context.Context, userID string) error
}

// VerificationTokenRepository defines the interface for email verification
// token persistence operations.
type VerificationTokenRepository interface {
	// Create stores a verification token for the user.
	Create(ctx context.Context, token *domain.VerificationToken) error

	// GetByToken retrieves a verification token record regardless of expiry.
	GetByToken(ctx context.Context, token string) (*domain.VerificationToken, error)

	// GetLiveByUserID retrieves an unexpired verification token for the user,
	// if one exists.
	GetLiveByUserID(ctx context.Context, userID string, now time.Time) (*domain.VerificationToken, error)

	// DeleteByUserID removes every verification token belonging to the user.
	DeleteByUserID(ctx context.Context, userID string) error
}

// ResetTokenRepository defines the interface for password reset token
// persistence operations.
type ResetTokenRepository interface {
	// Create stores a reset token for the user.
	Create(ctx context.Context, token *domain.VerificationToken) error

	// GetLiveByToken retrieves an unexpired reset token record.
	GetLiveByToken(ctx context.Context, token string, now time.Time) (*domain.VerificationToken, error)

	// DeleteByUserID removes every reset token belonging to the user.
	DeleteByUserID(ctx context.Context, userID string) error
}
