package domain

import (
	"time"
)

// User represents a registered account.
type User struct {
	ID              string     `json:"id"`
	Email           string     `json:"email"`
	Username        string     `json:"username"`
	PasswordHash    string     `json:"-"`
	EmailVerifiedAt *time.Time `json:"email_verified_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// EmailVerified reports whether the user has completed email verification.
func (u *User) EmailVerified() bool {
	return u.EmailVerifiedAt != nil
}

// RefreshToken is a stored refresh token row. The token column holds the
// signed JWT itself; a refresh JWT that verifies but has no matching row is
// treated as stolen.
type RefreshToken struct {
	Token     string    `json:"-"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// VerificationToken is a single-use, time-limited token mailed to a user,
// used for both email verification and password reset flows.
type VerificationToken struct {
	Token     string    `json:"-"`
	UserID    string    `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// Live reports whether the token is still usable at the given instant.
func (t *VerificationToken) Live(now time.Time) bool {
	return t.ExpiresAt.After(now)
}

// TokenPair holds an access and refresh token pair issued at login or refresh.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}
