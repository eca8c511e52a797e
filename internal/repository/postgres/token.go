package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/dkoval/auth-service/internal/domain"
	"github.com/dkoval/auth-service/pkg/database"
	apperrors "github.com/dkoval/auth-service/pkg/errors"
)

// RefreshTokenRepository implements repository.RefreshTokenRepository using PostgreSQL.
type RefreshTokenRepository struct {
	pool database.DBTX
}

// NewRefreshTokenRepository creates a new PostgreSQL-backed refresh token repository.
func NewRefreshTokenRepository(pool database.DBTX) *RefreshTokenRepository {
	return &RefreshTokenRepository{pool: pool}
}

// Create stores a refresh token in the database.
func (r *RefreshTokenRepository) Create(ctx context.Context, token, userID string) error {
	query := `
		INSERT INTO refresh_tokens (token, user_id, created_at)
		VALUES ($1, $2, $3)`

	_, err := r.pool.Exec(ctx, query, token, userID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("insert refresh token: %w", err)
	}

	return nil
}

// GetByToken retrieves a refresh token record.
func (r *RefreshTokenRepository) GetByToken(ctx context.Context, token string) (*domain.RefreshToken, error) {
	query := `
		SELECT token, user_id, created_at
		FROM refresh_tokens
		WHERE token = $1`

	var rt domain.RefreshToken
	err := r.pool.QueryRow(ctx, query, token).Scan(&rt.Token, &rt.UserID, &rt.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("scan refresh token: %w", err)
	}

	return &rt, nil
}

// Delete removes a specific refresh token. Deleting a token that is already
// gone is not an error.
func (r *RefreshTokenRepository) Delete(ctx context.Context, token string) error {
	query := `DELETE FROM refresh_tokens WHERE token = $1`

	if _, err := r.pool.Exec(ctx, query, token); err != nil {
		return fmt.Errorf("delete refresh token: %w", err)
	}

	return nil
}

// DeleteByUserID removes every refresh token belonging to the user.
func (r *RefreshTokenRepository) DeleteByUserID(ctx context.Context, userID string) error {
	query := `DELETE FROM refresh_tokens WHERE user_id = $1`

	if _, err := r.pool.Exec(ctx, query, userID); err != nil {
		return fmt.Errorf("delete refresh tokens by user: %w", err)
	}

	return nil
}

// VerificationTokenRepository implements repository.VerificationTokenRepository
// using PostgreSQL.
type VerificationTokenRepository struct {
	pool database.DBTX
}

// NewVerificationTokenRepository creates a new PostgreSQL-backed verification token repository.
func NewVerificationTokenRepository(pool database.DBTX) *VerificationTokenRepository {
	return &VerificationTokenRepository{pool: pool}
}

// Create stores a verification token in the database.
func (r *VerificationTokenRepository) Create(ctx context.Context, t *domain.VerificationToken) error {
	query := `
		INSERT INTO email_verification_tokens (token, user_id, expires_at, created_at)
		VALUES ($1, $2, $3, $4)`

	_, err := r.pool.Exec(ctx, query, t.Token, t.UserID, t.ExpiresAt, t.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert verification token: %w", err)
	}

	return nil
}

// GetByToken retrieves a verification token record regardless of expiry.
func (r *VerificationTokenRepository) GetByToken(ctx context.Context, token string) (*domain.VerificationToken, error) {
	query := `
		SELECT token, user_id, expires_at, created_at
		FROM email_verification_tokens
		WHERE token = $1`

	return scanVerificationToken(r.pool.QueryRow(ctx, query, token))
}

// GetLiveByUserID retrieves an unexpired verification token for the user.
func (r *VerificationTokenRepository) GetLiveByUserID(ctx context.Context, userID string, now time.Time) (*domain.VerificationToken, error) {
	query := `
		SELECT token, user_id, expires_at, created_at
		FROM email_verification_tokens
		WHERE user_id = $1 AND expires_at > $2
		ORDER BY created_at DESC
		LIMIT 1`

	return scanVerificationToken(r.pool.QueryRow(ctx, query, userID, now))
}

// DeleteByUserID removes every verification token belonging to the user.
func (r *VerificationTokenRepository) DeleteByUserID(ctx context.Context, userID string) error {
	query := `DELETE FROM email_verification_tokens WHERE user_id = $1`

	if _, err := r.pool.Exec(ctx, query, userID); err != nil {
		return fmt.Errorf("delete verification tokens by user: %w", err)
	}

	return nil
}

// ResetTokenRepository implements repository.ResetTokenRepository using PostgreSQL.
type ResetTokenRepository struct {
	pool database.DBTX
}

// NewResetTokenRepository creates a new PostgreSQL-backed reset token repository.
func NewResetTokenRepository(pool database.DBTX) *ResetTokenRepository {
	return &ResetTokenRepository{pool: pool}
}

// Create stores a reset token in the database.
func (r *ResetTokenRepository) Create(ctx context.Context, t *domain.VerificationToken) error {
	query := `
		INSERT INTO reset_tokens (token, user_id, expires_at, created_at)
		VALUES ($1, $2, $3, $4)`

	_, err := r.pool.Exec(ctx, query, t.Token, t.UserID, t.ExpiresAt, t.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert reset token: %w", err)
	}

	return nil
}

// GetLiveByToken retrieves an unexpired reset token record. Expired tokens
// are filtered in SQL, so a stale token looks identical to a missing one.
func (r *ResetTokenRepository) GetLiveByToken(ctx context.Context, token string, now time.Time) (*domain.VerificationToken, error) {
	query := `
		SELECT token, user_id, expires_at, created_at
		FROM reset_tokens
		WHERE token = $1 AND expires_at > $2`

	return scanVerificationToken(r.pool.QueryRow(ctx, query, token, now))
}

// DeleteByUserID removes every reset token belonging to the user.
func (r *ResetTokenRepository) DeleteByUserID(ctx context.Context, userID string) error {
	query := `DELETE FROM reset_tokens WHERE user_id = $1`

	if _, err := r.pool.Exec(ctx, query, userID); err != nil {
		return fmt.Errorf("delete reset tokens by user: %w", err)
	}

	return nil
}

func scanVerificationToken(row pgx.Row) (*domain.VerificationToken, error) {
	var t domain.VerificationToken
	err := row.Scan(&t.Token, &t.UserID, &t.ExpiresAt, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("scan verification token: %w", err)
	}

	return &t, nil
}
