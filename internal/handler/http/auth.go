package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dkoval/auth-service/internal/service"
	"github.com/dkoval/auth-service/pkg/middleware"
	"github.com/dkoval/auth-service/pkg/validator"
)

// AuthHandler handles HTTP requests for the auth endpoints.
type AuthHandler struct {
	service    *service.AuthService
	cookieName string
	logger     *slog.Logger
}

// NewAuthHandler creates a new auth HTTP handler.
func NewAuthHandler(svc *service.AuthService, cookieName string, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{service: svc, cookieName: cookieName, logger: logger}
}

// --- Request DTOs ---

// SignupRequest is the JSON request body for account creation.
type SignupRequest struct {
	Username        string `json:"username" validate:"required,min=1,max=100"`
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required,min=8"`
	ConfirmPassword string `json:"confirmPassword" validate:"required,eqfield=Password"`
}

// LoginRequest is the JSON request body for login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// EmailRequest is the JSON request body for flows keyed only by email.
type EmailRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// ResetPasswordRequest is the JSON request body for password reset.
type ResetPasswordRequest struct {
	Password        string `json:"password" validate:"required,min=8"`
	ConfirmPassword string `json:"confirmPassword" validate:"required,eqfield=Password"`
}

// TokenResponse carries the access token; the refresh token travels only in
// the cookie.
type TokenResponse struct {
	AccessToken string `json:"accessToken"`
}

// --- Handlers ---

// Signup handles POST /auth/signup
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB limit

	var req SignupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, response{
			Error: &errorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return
	}

	if err := validator.Validate(req); err != nil {
		writeValidationError(w, err)
		return
	}

	user, err := h.service.Signup(r.Context(), service.SignupInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		writeAppError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, response{Data: user})
}

// Login handles POST /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB limit

	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, response{
			Error: &errorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return
	}

	if err := validator.Validate(req); err != nil {
		writeValidationError(w, err)
		return
	}

	prior := refreshTokenFromRequest(r, h.cookieName)

	res, err := h.service.Login(r.Context(), req.Email, req.Password, prior)
	if err != nil {
		writeAppError(w, err)
		return
	}

	setRefreshCookie(w, h.cookieName, res.Tokens.RefreshToken, h.service.RefreshExpiry())
	writeJSON(w, http.StatusOK, response{Data: TokenResponse{AccessToken: res.Tokens.AccessToken}})
}

// Logout handles POST /auth/logout. Always 204: logging out without a
// session is already logged out.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	token := refreshTokenFromRequest(r, h.cookieName)
	if token != "" {
		h.service.Logout(r.Context(), token)
		clearRefreshCookie(w, h.cookieName)
	}
	w.WriteHeader(http.StatusNoContent)
}

// Refresh handles POST /auth/refresh. The presented cookie is single-use:
// on failure it is cleared, on success it is replaced by the rotated token.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	token := refreshTokenFromRequest(r, h.cookieName)
	if token == "" {
		writeJSON(w, http.StatusUnauthorized, response{
			Error: &errorResponse{Code: "UNAUTHORIZED", Message: "missing refresh token"},
		})
		return
	}

	res, err := h.service.Refresh(r.Context(), token)
	if err != nil {
		clearRefreshCookie(w, h.cookieName)
		writeAppError(w, err)
		return
	}

	setRefreshCookie(w, h.cookieName, res.Tokens.RefreshToken, h.service.RefreshExpiry())
	writeJSON(w, http.StatusOK, response{Data: TokenResponse{AccessToken: res.Tokens.AccessToken}})
}

// SendVerificationEmail handles POST /send-verification-email
func (h *AuthHandler) SendVerificationEmail(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB limit

	var req EmailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, response{
			Error: &errorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return
	}

	if err := validator.Validate(req); err != nil {
		writeValidationError(w, err)
		return
	}

	if err := h.service.SendVerificationEmail(r.Context(), req.Email); err != nil {
		writeAppError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, response{
		Data: map[string]string{"message": "verification email sent"},
	})
}

// VerifyEmail handles POST /verify-email/{token}
func (h *AuthHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	if token == "" {
		writeJSON(w, http.StatusNotFound, response{
			Error: &errorResponse{Code: "NOT_FOUND", Message: "invalid or expired token"},
		})
		return
	}

	if err := h.service.VerifyEmail(r.Context(), token); err != nil {
		writeAppError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, response{
		Data: map[string]string{"message": "email verified"},
	})
}

// ForgotPassword handles POST /forgot-password
func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB limit

	var req EmailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, response{
			Error: &errorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return
	}

	if err := validator.Validate(req); err != nil {
		writeValidationError(w, err)
		return
	}

	if err := h.service.ForgotPassword(r.Context(), req.Email); err != nil {
		writeAppError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, response{
		Data: map[string]string{"message": "password reset email sent"},
	})
}

// ResetPassword handles POST /reset-password/{token}
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	if token == "" {
		writeJSON(w, http.StatusNotFound, response{
			Error: &errorResponse{Code: "NOT_FOUND", Message: "invalid or expired token"},
		})
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB limit

	var req ResetPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, response{
			Error: &errorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return
	}

	if err := validator.Validate(req); err != nil {
		writeValidationError(w, err)
		return
	}

	if err := h.service.ResetPassword(r.Context(), token, req.Password); err != nil {
		writeAppError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, response{
		Data: map[string]string{"message": "password has been reset"},
	})
}

// Identity handles GET /identity, echoing the access token claims placed in
// context by the auth middleware.
func (h *AuthHandler) Identity(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())
	if userID == "" {
		writeJSON(w, http.StatusUnauthorized, response{
			Error: &errorResponse{Code: "UNAUTHORIZED", Message: "user not authenticated"},
		})
		return
	}

	writeJSON(w, http.StatusOK, response{
		Data: map[string]string{
			"user_id": userID,
			"email":   middleware.EmailFromContext(r.Context()),
		},
	})
}
