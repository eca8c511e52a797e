package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/dkoval/auth-service/internal/auth"
	"github.com/dkoval/auth-service/internal/domain"
	"github.com/dkoval/auth-service/internal/event"
	"github.com/dkoval/auth-service/internal/mailer"
	"github.com/dkoval/auth-service/internal/repository"
	apperrors "github.com/dkoval/auth-service/pkg/errors"
)

// AuthService implements the authentication flows: signup, login, logout,
// token refresh, email verification, and password reset.
type AuthService struct {
	users           repository.UserRepository
	refreshTokens   repository.RefreshTokenRepository
	verifyTokens    repository.VerificationTokenRepository
	resetTokens     repository.ResetTokenRepository
	issuer          *auth.TokenIssuer
	mailer          mailer.Mailer
	events          event.Publisher
	verificationTTL time.Duration
	resetTTL        time.Duration
	logger          *slog.Logger
}

// NewAuthService creates a new auth service.
func NewAuthService(
	users repository.UserRepository,
	refreshTokens repository.RefreshTokenRepository,
	verifyTokens repository.VerificationTokenRepository,
	resetTokens repository.ResetTokenRepository,
	issuer *auth.TokenIssuer,
	m mailer.Mailer,
	events event.Publisher,
	verificationTTL time.Duration,
	resetTTL time.Duration,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:           users,
		refreshTokens:   refreshTokens,
		verifyTokens:    verifyTokens,
		resetTokens:     resetTokens,
		issuer:          issuer,
		mailer:          m,
		events:          events,
		verificationTTL: verificationTTL,
		resetTTL:        resetTTL,
		logger:          logger,
	}
}

// SignupInput holds the parameters for creating a new account.
type SignupInput struct {
	Username string
	Email    string
	Password string
}

// Signup creates an unverified account and mails a verification link. The
// email itself is best-effort, but a failed verification-token insert
// surfaces as an internal error: the account exists without any way to
// verify it until a resend, so the caller should see the failure.
func (s *AuthService) Signup(ctx context.Context, input SignupInput) (*domain.User, error) {
	hash, err := auth.HashPassword(input.Password)
	if err != nil {
		return nil, apperrors.Internal(fmt.Errorf("hash password: %w", err))
	}

	now := time.Now().UTC()
	user := &domain.User{
		ID:           uuid.New().String(),
		Email:        input.Email,
		Username:     input.Username,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	if err := s.issueVerificationToken(ctx, user); err != nil {
		return nil, apperrors.Internal(err)
	}

	if err := s.events.PublishUserSignedUp(ctx, user.ID, user.Email, user.Username); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish user.signed_up event",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "user signed up",
		slog.String("user_id", user.ID),
		slog.String("email", user.Email),
	)

	return user, nil
}

// LoginResult carries the outcome of a successful login or refresh.
type LoginResult struct {
	User   *domain.User
	Tokens *domain.TokenPair
}

// Login authenticates a user. priorRefreshToken is the refresh cookie value
// the request carried, empty if none; a cookie that does not match a stored
// row for this user is treated as evidence of theft and every session for
// the user is revoked.
//
// The error asymmetry is deliberate: an unknown email yields 403, a known
// email with a wrong password yields 401.
func (s *AuthService) Login(ctx context.Context, email, password, priorRefreshToken string) (*LoginResult, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.Forbidden("access denied")
		}
		return nil, apperrors.Internal(err)
	}

	if !user.EmailVerified() {
		return nil, apperrors.Forbidden("email is not verified")
	}

	if err := auth.VerifyPassword(password, user.PasswordHash); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			return nil, apperrors.Unauthorized("invalid credentials")
		}
		return nil, apperrors.Internal(err)
	}

	if priorRefreshToken != "" {
		s.retirePriorToken(ctx, user.ID, priorRefreshToken)
	}

	tokens, err := s.issueTokenPair(ctx, user)
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	s.logger.InfoContext(ctx, "user logged in",
		slog.String("user_id", user.ID),
		slog.String("email", user.Email),
	)

	return &LoginResult{User: user, Tokens: tokens}, nil
}

// Logout deletes the stored refresh token if present. It never fails: an
// unknown or already-deleted token is the same as a successful logout.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) {
	if refreshToken == "" {
		return
	}

	if err := s.refreshTokens.Delete(ctx, refreshToken); err != nil {
		s.logger.WarnContext(ctx, "failed to delete refresh token on logout",
			slog.String("error", err.Error()),
		)
	}
}

// Refresh rotates a refresh token: the presented token is retired and a new
// pair is issued. A signature-valid token with no stored row means the row
// was already spent, so every session for the signed subject is revoked.
//
// Every failure maps to 403. Collapsing storage errors into the same status
// keeps the endpoint from leaking which check failed.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*LoginResult, error) {
	row, err := s.refreshTokens.GetByToken(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			s.handleTokenTheft(ctx, refreshToken)
		} else {
			s.logger.ErrorContext(ctx, "refresh token lookup failed",
				slog.String("error", err.Error()),
			)
		}
		return nil, apperrors.Forbidden("access denied")
	}

	// Single use: retire the row before anything else.
	if err := s.refreshTokens.Delete(ctx, refreshToken); err != nil {
		s.logger.ErrorContext(ctx, "failed to retire refresh token",
			slog.String("user_id", row.UserID),
			slog.String("error", err.Error()),
		)
		return nil, apperrors.Forbidden("access denied")
	}

	claims, err := s.issuer.ValidateRefreshToken(refreshToken)
	if err != nil || claims.UserID != row.UserID {
		return nil, apperrors.Forbidden("access denied")
	}

	user, err := s.users.GetByID(ctx, row.UserID)
	if err != nil {
		return nil, apperrors.Forbidden("access denied")
	}

	tokens, err := s.issueTokenPair(ctx, user)
	if err != nil {
		return nil, apperrors.Forbidden("access denied")
	}

	return &LoginResult{User: user, Tokens: tokens}, nil
}

// SendVerificationEmail issues a fresh verification token for an unverified
// account, rejecting the request while a previous token is still live.
func (s *AuthService) SendVerificationEmail(ctx context.Context, email string) error {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return apperrors.Unauthorized("access denied")
		}
		return apperrors.Internal(err)
	}

	if user.EmailVerified() {
		return apperrors.Conflict("email is already verified")
	}

	now := time.Now().UTC()
	if _, err := s.verifyTokens.GetLiveByUserID(ctx, user.ID, now); err == nil {
		return apperrors.InvalidInput("verification email already sent")
	} else if !errors.Is(err, apperrors.ErrNotFound) {
		return apperrors.Internal(err)
	}

	if err := s.issueVerificationToken(ctx, user); err != nil {
		return apperrors.Internal(err)
	}
	return nil
}

// VerifyEmail marks the account behind the token as verified. Absent and
// expired tokens are indistinguishable to the caller.
func (s *AuthService) VerifyEmail(ctx context.Context, token string) error {
	record, err := s.verifyTokens.GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return apperrors.NotFound("invalid or expired token")
		}
		return apperrors.Internal(err)
	}

	now := time.Now().UTC()
	if !record.Live(now) {
		return apperrors.NotFound("invalid or expired token")
	}

	user, err := s.users.GetByID(ctx, record.UserID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return apperrors.NotFound("invalid or expired token")
		}
		return apperrors.Internal(err)
	}

	if err := s.users.MarkEmailVerified(ctx, user.ID, now); err != nil {
		return apperrors.Internal(err)
	}

	if err := s.verifyTokens.DeleteByUserID(ctx, user.ID); err != nil {
		s.logger.WarnContext(ctx, "failed to delete verification tokens",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}

	if err := s.events.PublishUserVerified(ctx, user.ID, user.Email); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish user.verified event",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "email verified", slog.String("user_id", user.ID))
	return nil
}

// ForgotPassword issues a reset token for a verified account and mails the
// reset link. Unknown and unverified accounts are rejected identically.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return apperrors.Unauthorized("access denied")
		}
		return apperrors.Internal(err)
	}

	if !user.EmailVerified() {
		return apperrors.Unauthorized("access denied")
	}

	now := time.Now().UTC()
	token := &domain.VerificationToken{
		Token:     uuid.New().String(),
		UserID:    user.ID,
		ExpiresAt: now.Add(s.resetTTL),
		CreatedAt: now,
	}

	if err := s.resetTokens.Create(ctx, token); err != nil {
		return apperrors.Internal(err)
	}

	if err := s.mailer.SendPasswordResetEmail(ctx, user.Email, token.Token); err != nil {
		s.logger.ErrorContext(ctx, "failed to send password reset email",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}

	return nil
}

// ResetPassword sets a new password for the account behind a live reset
// token. The hash update, reset token cleanup, and session purge run
// concurrently; every branch is awaited so one failure cannot silently
// drop the others.
func (s *AuthService) ResetPassword(ctx context.Context, token, newPassword string) error {
	record, err := s.resetTokens.GetLiveByToken(ctx, token, time.Now().UTC())
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return apperrors.NotFound("invalid or expired token")
		}
		return apperrors.Internal(err)
	}

	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		return apperrors.Internal(fmt.Errorf("hash password: %w", err))
	}

	var g errgroup.Group
	g.Go(func() error {
		return s.users.UpdatePasswordHash(ctx, record.UserID, hash)
	})
	g.Go(func() error {
		return s.resetTokens.DeleteByUserID(ctx, record.UserID)
	})
	g.Go(func() error {
		return s.refreshTokens.DeleteByUserID(ctx, record.UserID)
	})
	if err := g.Wait(); err != nil {
		return apperrors.Internal(err)
	}

	user, err := s.users.GetByID(ctx, record.UserID)
	email := ""
	if err == nil {
		email = user.Email
	}
	if err := s.events.PublishUserPasswordReset(ctx, record.UserID, email); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish user.password_reset event",
			slog.String("user_id", record.UserID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "password reset", slog.String("user_id", record.UserID))
	return nil
}

// ValidateAccessToken verifies an access token and returns its claims.
func (s *AuthService) ValidateAccessToken(token string) (*auth.Claims, error) {
	return s.issuer.ValidateAccessToken(token)
}

// RefreshExpiry returns the refresh token lifetime for cookie sizing.
func (s *AuthService) RefreshExpiry() time.Duration {
	return s.issuer.RefreshExpiry()
}

// retirePriorToken handles a refresh cookie presented at login. A cookie
// with no stored row, or a row owned by someone else, triggers a full
// session purge for the authenticated user.
func (s *AuthService) retirePriorToken(ctx context.Context, userID, priorToken string) {
	row, err := s.refreshTokens.GetByToken(ctx, priorToken)
	if err != nil || row.UserID != userID {
		s.logger.WarnContext(ctx, "stale refresh cookie at login, revoking all sessions",
			slog.String("user_id", userID),
		)
		if err := s.refreshTokens.DeleteByUserID(ctx, userID); err != nil {
			s.logger.ErrorContext(ctx, "failed to purge refresh tokens",
				slog.String("user_id", userID),
				slog.String("error", err.Error()),
			)
		}
		if err := s.events.PublishTokenTheftDetected(ctx, userID); err != nil {
			s.logger.ErrorContext(ctx, "failed to publish token_theft_detected event",
				slog.String("user_id", userID),
				slog.String("error", err.Error()),
			)
		}
		return
	}

	if err := s.refreshTokens.Delete(ctx, priorToken); err != nil {
		s.logger.WarnContext(ctx, "failed to delete prior refresh token",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
	}
}

// handleTokenTheft reacts to a refresh token that verifies but has no stored
// row: someone replayed an already-rotated token, so every session for the
// signed subject is revoked.
func (s *AuthService) handleTokenTheft(ctx context.Context, refreshToken string) {
	claims, err := s.issuer.ValidateRefreshToken(refreshToken)
	if err != nil {
		return
	}

	s.logger.WarnContext(ctx, "refresh token reuse detected, revoking all sessions",
		slog.String("user_id", claims.UserID),
	)

	if err := s.refreshTokens.DeleteByUserID(ctx, claims.UserID); err != nil {
		s.logger.ErrorContext(ctx, "failed to purge refresh tokens",
			slog.String("user_id", claims.UserID),
			slog.String("error", err.Error()),
		)
	}

	if err := s.events.PublishTokenTheftDetected(ctx, claims.UserID); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish token_theft_detected event",
			slog.String("user_id", claims.UserID),
			slog.String("error", err.Error()),
		)
	}
}

// issueTokenPair signs access and refresh tokens concurrently and persists
// the refresh row.
func (s *AuthService) issueTokenPair(ctx context.Context, user *domain.User) (*domain.TokenPair, error) {
	var (
		g            errgroup.Group
		accessToken  string
		refreshToken string
	)

	g.Go(func() error {
		var err error
		accessToken, err = s.issuer.GenerateAccessToken(user.ID, user.Email)
		return err
	})
	g.Go(func() error {
		var err error
		refreshToken, err = s.issuer.GenerateRefreshToken(user.ID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("issue token pair: %w", err)
	}

	if err := s.refreshTokens.Create(ctx, refreshToken, user.ID); err != nil {
		return nil, fmt.Errorf("persist refresh token: %w", err)
	}

	return &domain.TokenPair{AccessToken: accessToken, RefreshToken: refreshToken}, nil
}

// issueVerificationToken creates a verification token and mails the link.
// The token insert must succeed; the email is best-effort, since the link
// can always be resent while the token is live.
func (s *AuthService) issueVerificationToken(ctx context.Context, user *domain.User) error {
	now := time.Now().UTC()
	token := &domain.VerificationToken{
		Token:     uuid.New().String(),
		UserID:    user.ID,
		ExpiresAt: now.Add(s.verificationTTL),
		CreatedAt: now,
	}

	if err := s.verifyTokens.Create(ctx, token); err != nil {
		return fmt.Errorf("create verification token: %w", err)
	}

	if err := s.mailer.SendVerificationEmail(ctx, user.Email, token.Token); err != nil {
		s.logger.ErrorContext(ctx, "failed to send verification email",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}

	return nil
}
