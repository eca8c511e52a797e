package service

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dkoval/auth-service/internal/auth"
	"github.com/dkoval/auth-service/internal/domain"
	apperrors "github.com/dkoval/auth-service/pkg/errors"
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

func (m *mockUserRepository) MarkEmailVerified(ctx context.Context, userID string, at time.Time) error {
	args := m.Called(ctx, userID, at)
	return args.Error(0)
}

func (m *mockUserRepository) UpdatePasswordHash(ctx context.Context, userID, passwordHash string) error {
	args := m.Called(ctx, userID, passwordHash)
	return args.Error(0)
}

// --- Mock Refresh Token Repository ---

type mockRefreshTokenRepository struct {
	mock.Mock
}

func (m *mockRefreshTokenRepository) Create(ctx context.Context, token, userID string) error {
	args := m.Called(ctx, token, userID)
	return args.Error(0)
}

func (m *mockRefreshTokenRepository) GetByToken(ctx context.Context, token string) (*domain.RefreshToken, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RefreshToken), args.Error(1)
}

func (m *mockRefreshTokenRepository) Delete(ctx context.Context, token string) error {
	args := m.Called(ctx, token)
	return args.Error(0)
}

func (m *mockRefreshTokenRepository) DeleteByUserID(ctx context.Context, userID string) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

// --- Mock Verification Token Repository ---

type mockVerificationTokenRepository struct {
	mock.Mock
}

func (m *mockVerificationTokenRepository) Create(ctx context.Context, token *domain.VerificationToken) error {
	args := m.Called(ctx, token)
	return args.Error(0)
}

func (m *mockVerificationTokenRepository) GetByToken(ctx context.Context, token string) (*domain.VerificationToken, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.VerificationToken), args.Error(1)
}

func (m *mockVerificationTokenRepository) GetLiveByUserID(ctx context.Context, userID string, now time.Time) (*domain.VerificationToken, error) {
	args := m.Called(ctx, userID, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.VerificationToken), args.Error(1)
}

func (m *mockVerificationTokenRepository) DeleteByUserID(ctx context.Context, userID string) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

// --- Mock Reset Token Repository ---

type mockResetTokenRepository struct {
	mock.Mock
}

func (m *mockResetTokenRepository) Create(ctx context.Context, token *domain.VerificationToken) error {
	args := m.Called(ctx, token)
	return args.Error(0)
}

func (m *mockResetTokenRepository) GetLiveByToken(ctx context.Context, token string, now time.Time) (*domain.VerificationToken, error) {
	args := m.Called(ctx, token, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.VerificationToken), args.Error(1)
}

func (m *mockResetTokenRepository) DeleteByUserID(ctx context.Context, userID string) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

// --- Mock Mailer ---

type mockMailer struct {
	mock.Mock
}

func (m *mockMailer) SendVerificationEmail(ctx context.Context, to, token string) error {
	args := m.Called(ctx, to, token)
	return args.Error(0)
}

func (m *mockMailer) SendPasswordResetEmail(ctx context.Context, to, token string) error {
	args := m.Called(ctx, to, token)
	return args.Error(0)
}

// --- Mock Event Publisher ---

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) PublishUserSignedUp(ctx context.Context, userID, email, username string) error {
	args := m.Called(ctx, userID, email, username)
	return args.Error(0)
}

func (m *mockPublisher) PublishUserVerified(ctx context.Context, userID, email string) error {
	args := m.Called(ctx, userID, email)
	return args.Error(0)
}

func (m *mockPublisher) PublishUserPasswordReset(ctx context.Context, userID, email string) error {
	args := m.Called(ctx, userID, email)
	return args.Error(0)
}

func (m *mockPublisher) PublishTokenTheftDetected(ctx context.Context, userID string) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

// --- Test Fixture ---

type fixture struct {
	users   *mockUserRepository
	refresh *mockRefreshTokenRepository
	verify  *mockVerificationTokenRepository
	reset   *mockResetTokenRepository
	mailer  *mockMailer
	events  *mockPublisher
	issuer  *auth.TokenIssuer
	svc     *AuthService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		users:   &mockUserRepository{},
		refresh: &mockRefreshTokenRepository{},
		verify:  &mockVerificationTokenRepository{},
		reset:   &mockResetTokenRepository{},
		mailer:  &mockMailer{},
		events:  &mockPublisher{},
		issuer: auth.NewTokenIssuer(
			"access-secret-for-tests-0123456789",
			"refresh-secret-for-tests-0123456789",
			20*time.Minute,
			24*time.Hour,
		),
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError + 1}))
	f.svc = NewAuthService(
		f.users, f.refresh, f.verify, f.reset,
		f.issuer, f.mailer, f.events,
		time.Hour, time.Hour, logger,
	)
	return f
}

func (f *fixture) assertExpectations(t *testing.T) {
	t.Helper()
	f.users.AssertExpectations(t)
	f.refresh.AssertExpectations(t)
	f.verify.AssertExpectations(t)
	f.reset.AssertExpectations(t)
	f.mailer.AssertExpectations(t)
	f.events.AssertExpectations(t)
}

func verifiedUser(t *testing.T, password string) *domain.User {
	t.Helper()
	hash, err := auth.HashPassword(password)
	require.NoError(t, err)
	verifiedAt := time.Now().UTC().Add(-time.Hour)
	return &domain.User{
		ID:              "u-1234",
		Email:           "alice@example.com",
		Username:        "alice",
		PasswordHash:    hash,
		EmailVerifiedAt: &verifiedAt,
	}
}

// ---------------------------------------------------------------------------
// Signup
// ---------------------------------------------------------------------------

func TestSignup_Success(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.users.On("Create", ctx, mock.MatchedBy(func(u *domain.User) bool {
		return u.Email == "alice@example.com" && u.Username == "alice" &&
			u.ID != "" && u.PasswordHash != "" && !u.EmailVerified()
	})).Return(nil)
	f.verify.On("Create", ctx, mock.MatchedBy(func(tok *domain.VerificationToken) bool {
		return tok.Token != "" && tok.ExpiresAt.After(time.Now().Add(59*time.Minute))
	})).Return(nil)
	f.mailer.On("SendVerificationEmail", ctx, "alice@example.com", mock.Anything).Return(nil)
	f.events.On("PublishUserSignedUp", ctx, mock.Anything, "alice@example.com", "alice").Return(nil)

	user, err := f.svc.Signup(ctx, SignupInput{Username: "alice", Email: "alice@example.com", Password: "password123"})
	require.NoError(t, err)
	assert.NotEmpty(t, user.ID)
	assert.NotEqual(t, "password123", user.PasswordHash)
	f.assertExpectations(t)
}

func TestSignup_DuplicateEmail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.users.On("Create", ctx, mock.Anything).Return(apperrors.Conflict("email already registered"))

	_, err := f.svc.Signup(ctx, SignupInput{Username: "alice", Email: "alice@example.com", Password: "password123"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrConflict))
	f.verify.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	f.assertExpectations(t)
}

func TestSignup_MailFailureDoesNotFailRequest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.users.On("Create", ctx, mock.Anything).Return(nil)
	f.verify.On("Create", ctx, mock.Anything).Return(nil)
	f.mailer.On("SendVerificationEmail", ctx, mock.Anything, mock.Anything).Return(errors.New("smtp down"))
	f.events.On("PublishUserSignedUp", ctx, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	_, err := f.svc.Signup(ctx, SignupInput{Username: "alice", Email: "alice@example.com", Password: "password123"})
	assert.NoError(t, err)
	f.assertExpectations(t)
}

func TestSignup_VerificationTokenInsertFailure_Is500(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.users.On("Create", ctx, mock.Anything).Return(nil)
	f.verify.On("Create", ctx, mock.Anything).Return(errors.New("insert failed"))

	_, err := f.svc.Signup(ctx, SignupInput{Username: "alice", Email: "alice@example.com", Password: "password123"})
	require.Error(t, err)
	assert.Equal(t, 500, apperrors.HTTPStatus(err))
	// The account exists but cannot be verified, so the failure surfaces
	// instead of being swallowed; no signed-up event goes out either.
	f.mailer.AssertNotCalled(t, "SendVerificationEmail", mock.Anything, mock.Anything, mock.Anything)
	f.events.AssertNotCalled(t, "PublishUserSignedUp", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	f.assertExpectations(t)
}

// ---------------------------------------------------------------------------
// Login
// ---------------------------------------------------------------------------

func TestLogin_Success_NoPriorCookie(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := verifiedUser(t, "password123")

	f.users.On("GetByEmail", ctx, user.Email).Return(user, nil)
	f.refresh.On("Create", ctx, mock.Anything, user.ID).Return(nil)

	res, err := f.svc.Login(ctx, user.Email, "password123", "")
	require.NoError(t, err)
	assert.NotEmpty(t, res.Tokens.AccessToken)
	assert.NotEmpty(t, res.Tokens.RefreshToken)

	claims, err := f.issuer.ValidateAccessToken(res.Tokens.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	f.assertExpectations(t)
}

func TestLogin_UnknownEmail_Forbidden(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.users.On("GetByEmail", ctx, "ghost@example.com").Return(nil, apperrors.ErrNotFound)

	_, err := f.svc.Login(ctx, "ghost@example.com", "password123", "")
	assert.True(t, errors.Is(err, apperrors.ErrForbidden))
	f.assertExpectations(t)
}

func TestLogin_UnverifiedEmail_Forbidden(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := verifiedUser(t, "password123")
	user.EmailVerifiedAt = nil

	f.users.On("GetByEmail", ctx, user.Email).Return(user, nil)

	_, err := f.svc.Login(ctx, user.Email, "password123", "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrForbidden))
	assert.Contains(t, err.Error(), "not verified")
	f.assertExpectations(t)
}

func TestLogin_WrongPassword_Unauthorized(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := verifiedUser(t, "password123")

	f.users.On("GetByEmail", ctx, user.Email).Return(user, nil)

	_, err := f.svc.Login(ctx, user.Email, "wrong-password", "")
	assert.True(t, errors.Is(err, apperrors.ErrUnauthorized))
	// No store mutation on failed login.
	f.refresh.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
	f.assertExpectations(t)
}

func TestLogin_PriorCookie_OwnRow_DeletesSingleToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := verifiedUser(t, "password123")

	f.users.On("GetByEmail", ctx, user.Email).Return(user, nil)
	f.refresh.On("GetByToken", ctx, "prior-token").
		Return(&domain.RefreshToken{Token: "prior-token", UserID: user.ID}, nil)
	f.refresh.On("Delete", ctx, "prior-token").Return(nil)
	f.refresh.On("Create", ctx, mock.Anything, user.ID).Return(nil)

	_, err := f.svc.Login(ctx, user.Email, "password123", "prior-token")
	require.NoError(t, err)
	f.refresh.AssertNotCalled(t, "DeleteByUserID", mock.Anything, mock.Anything)
	f.assertExpectations(t)
}

func TestLogin_PriorCookie_UnknownRow_PurgesAllSessions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := verifiedUser(t, "password123")

	f.users.On("GetByEmail", ctx, user.Email).Return(user, nil)
	f.refresh.On("GetByToken", ctx, "stolen-token").Return(nil, apperrors.ErrNotFound)
	f.refresh.On("DeleteByUserID", ctx, user.ID).Return(nil)
	f.events.On("PublishTokenTheftDetected", ctx, user.ID).Return(nil)
	f.refresh.On("Create", ctx, mock.Anything, user.ID).Return(nil)

	_, err := f.svc.Login(ctx, user.Email, "password123", "stolen-token")
	require.NoError(t, err)
	f.assertExpectations(t)
}

func TestLogin_PriorCookie_ForeignRow_PurgesAllSessions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := verifiedUser(t, "password123")

	f.users.On("GetByEmail", ctx, user.Email).Return(user, nil)
	f.refresh.On("GetByToken", ctx, "foreign-token").
		Return(&domain.RefreshToken{Token: "foreign-token", UserID: "someone-else"}, nil)
	f.refresh.On("DeleteByUserID", ctx, user.ID).Return(nil)
	f.events.On("PublishTokenTheftDetected", ctx, user.ID).Return(nil)
	f.refresh.On("Create", ctx, mock.Anything, user.ID).Return(nil)

	_, err := f.svc.Login(ctx, user.Email, "password123", "foreign-token")
	require.NoError(t, err)
	f.assertExpectations(t)
}

// ---------------------------------------------------------------------------
// Logout
// ---------------------------------------------------------------------------

func TestLogout_NoToken_NoStoreCall(t *testing.T) {
	f := newFixture(t)
	f.svc.Logout(context.Background(), "")
	f.refresh.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}

func TestLogout_DeleteErrorSwallowed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.refresh.On("Delete", ctx, "some-token").Return(errors.New("db down"))

	f.svc.Logout(ctx, "some-token")
	f.assertExpectations(t)
}

// ---------------------------------------------------------------------------
// Refresh
// ---------------------------------------------------------------------------

func TestRefresh_Success_RotatesToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := verifiedUser(t, "password123")

	token, err := f.issuer.GenerateRefreshToken(user.ID)
	require.NoError(t, err)

	f.refresh.On("GetByToken", ctx, token).
		Return(&domain.RefreshToken{Token: token, UserID: user.ID}, nil)
	f.refresh.On("Delete", ctx, token).Return(nil)
	f.users.On("GetByID", ctx, user.ID).Return(user, nil)
	f.refresh.On("Create", ctx, mock.Anything, user.ID).Return(nil)

	res, err := f.svc.Refresh(ctx, token)
	require.NoError(t, err)
	assert.NotEmpty(t, res.Tokens.AccessToken)
	assert.NotEqual(t, token, res.Tokens.RefreshToken)
	f.assertExpectations(t)
}

func TestRefresh_ValidButUnstored_TheftPurge(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	token, err := f.issuer.GenerateRefreshToken("u-1234")
	require.NoError(t, err)

	f.refresh.On("GetByToken", ctx, token).Return(nil, apperrors.ErrNotFound)
	f.refresh.On("DeleteByUserID", ctx, "u-1234").Return(nil)
	f.events.On("PublishTokenTheftDetected", ctx, "u-1234").Return(nil)

	_, err = f.svc.Refresh(ctx, token)
	assert.True(t, errors.Is(err, apperrors.ErrForbidden))
	f.assertExpectations(t)
}

func TestRefresh_GarbageToken_ForbiddenWithoutPurge(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.refresh.On("GetByToken", ctx, "garbage").Return(nil, apperrors.ErrNotFound)

	_, err := f.svc.Refresh(ctx, "garbage")
	assert.True(t, errors.Is(err, apperrors.ErrForbidden))
	f.refresh.AssertNotCalled(t, "DeleteByUserID", mock.Anything, mock.Anything)
	f.assertExpectations(t)
}

func TestRefresh_SubjectMismatch_Forbidden(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	token, err := f.issuer.GenerateRefreshToken("u-1234")
	require.NoError(t, err)

	f.refresh.On("GetByToken", ctx, token).
		Return(&domain.RefreshToken{Token: token, UserID: "someone-else"}, nil)
	f.refresh.On("Delete", ctx, token).Return(nil)

	_, err = f.svc.Refresh(ctx, token)
	assert.True(t, errors.Is(err, apperrors.ErrForbidden))
	f.assertExpectations(t)
}

func TestRefresh_StorageErrorCollapsesTo403(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.refresh.On("GetByToken", ctx, "whatever").Return(nil, errors.New("connection refused"))

	_, err := f.svc.Refresh(ctx, "whatever")
	assert.True(t, errors.Is(err, apperrors.ErrForbidden))
	f.assertExpectations(t)
}

// ---------------------------------------------------------------------------
// Send verification email
// ---------------------------------------------------------------------------

func TestSendVerificationEmail_UnknownUser_Unauthorized(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.users.On("GetByEmail", ctx, "ghost@example.com").Return(nil, apperrors.ErrNotFound)

	err := f.svc.SendVerificationEmail(ctx, "ghost@example.com")
	assert.True(t, errors.Is(err, apperrors.ErrUnauthorized))
	f.assertExpectations(t)
}

func TestSendVerificationEmail_AlreadyVerified_Conflict(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := verifiedUser(t, "password123")

	f.users.On("GetByEmail", ctx, user.Email).Return(user, nil)

	err := f.svc.SendVerificationEmail(ctx, user.Email)
	assert.True(t, errors.Is(err, apperrors.ErrConflict))
	f.assertExpectations(t)
}

func TestSendVerificationEmail_LiveTokenExists_InvalidInput(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := verifiedUser(t, "password123")
	user.EmailVerifiedAt = nil

	f.users.On("GetByEmail", ctx, user.Email).Return(user, nil)
	f.verify.On("GetLiveByUserID", ctx, user.ID, mock.Anything).
		Return(&domain.VerificationToken{Token: "live", UserID: user.ID}, nil)

	err := f.svc.SendVerificationEmail(ctx, user.Email)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))
	f.verify.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	f.assertExpectations(t)
}

func TestSendVerificationEmail_Success(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := verifiedUser(t, "password123")
	user.EmailVerifiedAt = nil

	f.users.On("GetByEmail", ctx, user.Email).Return(user, nil)
	f.verify.On("GetLiveByUserID", ctx, user.ID, mock.Anything).Return(nil, apperrors.ErrNotFound)
	f.verify.On("Create", ctx, mock.Anything).Return(nil)
	f.mailer.On("SendVerificationEmail", ctx, user.Email, mock.Anything).Return(nil)

	assert.NoError(t, f.svc.SendVerificationEmail(ctx, user.Email))
	f.assertExpectations(t)
}

// ---------------------------------------------------------------------------
// Verify email
// ---------------------------------------------------------------------------

func TestVerifyEmail_Success(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := verifiedUser(t, "password123")
	user.EmailVerifiedAt = nil

	record := &domain.VerificationToken{
		Token:     "tok-123",
		UserID:    user.ID,
		ExpiresAt: time.Now().UTC().Add(30 * time.Minute),
	}

	f.verify.On("GetByToken", ctx, "tok-123").Return(record, nil)
	f.users.On("GetByID", ctx, user.ID).Return(user, nil)
	f.users.On("MarkEmailVerified", ctx, user.ID, mock.Anything).Return(nil)
	f.verify.On("DeleteByUserID", ctx, user.ID).Return(nil)
	f.events.On("PublishUserVerified", ctx, user.ID, user.Email).Return(nil)

	assert.NoError(t, f.svc.VerifyEmail(ctx, "tok-123"))
	f.assertExpectations(t)
}

func TestVerifyEmail_UnknownToken_NotFound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.verify.On("GetByToken", ctx, "unknown").Return(nil, apperrors.ErrNotFound)

	err := f.svc.VerifyEmail(ctx, "unknown")
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
	f.assertExpectations(t)
}

func TestVerifyEmail_ExpiredToken_NotFound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	record := &domain.VerificationToken{
		Token:     "stale",
		UserID:    "u-1234",
		ExpiresAt: time.Now().UTC().Add(-time.Minute),
	}

	f.verify.On("GetByToken", ctx, "stale").Return(record, nil)

	err := f.svc.VerifyEmail(ctx, "stale")
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
	f.users.AssertNotCalled(t, "MarkEmailVerified", mock.Anything, mock.Anything, mock.Anything)
	f.assertExpectations(t)
}

// ---------------------------------------------------------------------------
// Forgot password
// ---------------------------------------------------------------------------

func TestForgotPassword_Success(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := verifiedUser(t, "password123")

	f.users.On("GetByEmail", ctx, user.Email).Return(user, nil)
	f.reset.On("Create", ctx, mock.MatchedBy(func(tok *domain.VerificationToken) bool {
		return tok.UserID == user.ID && tok.Token != ""
	})).Return(nil)
	f.mailer.On("SendPasswordResetEmail", ctx, user.Email, mock.Anything).Return(nil)

	assert.NoError(t, f.svc.ForgotPassword(ctx, user.Email))
	f.assertExpectations(t)
}

func TestForgotPassword_UnknownUser_Unauthorized(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.users.On("GetByEmail", ctx, "ghost@example.com").Return(nil, apperrors.ErrNotFound)

	err := f.svc.ForgotPassword(ctx, "ghost@example.com")
	assert.True(t, errors.Is(err, apperrors.ErrUnauthorized))
	f.assertExpectations(t)
}

func TestForgotPassword_UnverifiedUser_Unauthorized(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := verifiedUser(t, "password123")
	user.EmailVerifiedAt = nil

	f.users.On("GetByEmail", ctx, user.Email).Return(user, nil)

	err := f.svc.ForgotPassword(ctx, user.Email)
	assert.True(t, errors.Is(err, apperrors.ErrUnauthorized))
	f.reset.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	f.assertExpectations(t)
}

// ---------------------------------------------------------------------------
// Reset password
// ---------------------------------------------------------------------------

func TestResetPassword_Success_AllThreeEffects(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := verifiedUser(t, "old-password")

	record := &domain.VerificationToken{
		Token:     "reset-tok",
		UserID:    user.ID,
		ExpiresAt: time.Now().UTC().Add(30 * time.Minute),
	}

	f.reset.On("GetLiveByToken", ctx, "reset-tok", mock.Anything).Return(record, nil)
	f.users.On("UpdatePasswordHash", ctx, user.ID, mock.MatchedBy(func(hash string) bool {
		return auth.VerifyPassword("new-password-1", hash) == nil
	})).Return(nil)
	f.reset.On("DeleteByUserID", ctx, user.ID).Return(nil)
	f.refresh.On("DeleteByUserID", ctx, user.ID).Return(nil)
	f.users.On("GetByID", ctx, user.ID).Return(user, nil)
	f.events.On("PublishUserPasswordReset", ctx, user.ID, user.Email).Return(nil)

	assert.NoError(t, f.svc.ResetPassword(ctx, "reset-tok", "new-password-1"))
	f.assertExpectations(t)
}

func TestResetPassword_UnknownOrExpiredToken_NotFound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.reset.On("GetLiveByToken", ctx, "stale", mock.Anything).Return(nil, apperrors.ErrNotFound)

	err := f.svc.ResetPassword(ctx, "stale", "new-password-1")
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
	f.users.AssertNotCalled(t, "UpdatePasswordHash", mock.Anything, mock.Anything, mock.Anything)
	f.assertExpectations(t)
}

func TestResetPassword_BranchFailure_AllBranchesStillRun(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	record := &domain.VerificationToken{
		Token:     "reset-tok",
		UserID:    "u-1234",
		ExpiresAt: time.Now().UTC().Add(30 * time.Minute),
	}

	f.reset.On("GetLiveByToken", ctx, "reset-tok", mock.Anything).Return(record, nil)
	f.users.On("UpdatePasswordHash", ctx, "u-1234", mock.Anything).Return(errors.New("db down"))
	f.reset.On("DeleteByUserID", ctx, "u-1234").Return(nil)
	f.refresh.On("DeleteByUserID", ctx, "u-1234").Return(nil)

	err := f.svc.ResetPassword(ctx, "reset-tok", "new-password-1")
	require.Error(t, err)
	assert.Equal(t, 500, apperrors.HTTPStatus(err))
	// The other two branches were not skipped.
	f.reset.AssertCalled(t, "DeleteByUserID", ctx, "u-1234")
	f.refresh.AssertCalled(t, "DeleteByUserID", ctx, "u-1234")
	f.assertExpectations(t)
}
