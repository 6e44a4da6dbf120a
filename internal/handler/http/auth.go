package http

import (
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/sodmaq/auth-service/internal/domain"
	"github.com/sodmaq/auth-service/internal/service"
	apperrors "github.com/sodmaq/auth-service/pkg/errors"
	"github.com/sodmaq/auth-service/pkg/httputil"
	"github.com/sodmaq/auth-service/pkg/middleware"
	"github.com/sodmaq/auth-service/pkg/validator"
)

// AuthHandler handles HTTP requests for auth endpoints.
type AuthHandler struct {
	service AuthService
	cookie  CookieConfig
	logger  *slog.Logger
}

// NewAuthHandler creates a new auth HTTP handler.
func NewAuthHandler(svc AuthService, cookie CookieConfig, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{service: svc, cookie: cookie, logger: logger}
}

// --- Request DTOs ---

// SignupRequest is the JSON request body for registration.
type SignupRequest struct {
	Name     string `json:"name" validate:"notblank,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,bcryptmax"`
}

// LoginRequest is the JSON request body for login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RefreshRequest carries a refresh token for clients that cannot use cookies.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// EmailRequest is the body of resend and forgot-password.
type EmailRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// ResetPasswordRequest is the JSON request body for completing a reset.
type ResetPasswordRequest struct {
	Password string `json:"password" validate:"required,min=8,bcryptmax"`
}

// UpdatePasswordRequest is the JSON request body for changing a password.
type UpdatePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	Password        string `json:"password" validate:"required,min=8,bcryptmax,nefield=CurrentPassword"`
}

// --- Response types ---

// UserResponse wraps a user with an optional message.
type UserResponse struct {
	Message string       `json:"message,omitempty"`
	User    *domain.User `json:"user"`
}

// LoginResponse wraps user data with tokens.
type LoginResponse struct {
	User   *domain.User      `json:"user"`
	Tokens *domain.TokenPair `json:"tokens"`
}

// AccessTokenResponse is returned by refresh.
type AccessTokenResponse struct {
	AccessToken string `json:"access_token"`
}

// --- Handlers ---

// Signup handles POST /api/v1/auth/signup
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if err := validator.DecodeAndValidate(w, r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	user, err := h.service.Signup(r.Context(), service.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusCreated, UserResponse{
		Message: "User created successfully, please check your email to verify your account",
		User:    user,
	})
}

// Login handles POST /api/v1/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := validator.DecodeAndValidate(w, r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	user, tokens, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	http.SetCookie(w, h.cookie.refreshCookie(tokens.RefreshToken))
	httputil.WriteData(w, http.StatusOK, LoginResponse{User: user, Tokens: tokens})
}

// Logout handles GET and POST /api/v1/auth/logout. It succeeds whether or
// not a refresh token was presented.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	token, err := h.refreshTokenFrom(w, r)
	if err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	if err := h.service.Logout(r.Context(), token); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	http.SetCookie(w, h.cookie.clearedCookie())
	httputil.WriteMessage(w, http.StatusOK, "Logged out successfully")
}

// Refresh handles POST /api/v1/auth/refresh
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	token, err := h.refreshTokenFrom(w, r)
	if err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	access, err := h.service.Refresh(r.Context(), token)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, AccessTokenResponse{AccessToken: access})
}

// Confirm handles GET /api/v1/auth/confirm/{email}/{token}
func (h *AuthHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	email, errEmail := pathParam(r, "email")
	token, errToken := pathParam(r, "token")
	if errEmail != nil || errToken != nil {
		httputil.WriteError(w, r, apperrors.TokenInvalid("verification link is invalid or has expired"), h.logger)
		return
	}

	result, err := h.service.Confirm(r.Context(), email, token)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	msg := "Your account has been successfully verified"
	if result == service.RedeemAlreadyVerified {
		msg = "User has already been verified, please login"
	}
	httputil.WriteMessage(w, http.StatusOK, msg)
}

// Resend handles POST /api/v1/auth/resend
func (h *AuthHandler) Resend(w http.ResponseWriter, r *http.Request) {
	var req EmailRequest
	if err := validator.DecodeAndValidate(w, r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	if err := h.service.ResendVerification(r.Context(), req.Email); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteMessage(w, http.StatusOK, "A verification email has been sent to "+domain.NormalizeEmail(req.Email))
}

// ForgotPassword handles POST /api/v1/auth/forgot-password
func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req EmailRequest
	if err := validator.DecodeAndValidate(w, r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	if err := h.service.ForgotPassword(r.Context(), req.Email); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteMessage(w, http.StatusOK, "Token sent to email")
}

// ResetPassword handles PATCH /api/v1/auth/reset-password/{token}
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if err := validator.DecodeAndValidate(w, r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	user, err := h.service.ResetPassword(r.Context(), chi.URLParam(r, "token"), req.Password)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, UserResponse{
		Message: "Password has been reset successfully",
		User:    user,
	})
}

// UpdatePassword handles PATCH /api/v1/auth/update-password
func (h *AuthHandler) UpdatePassword(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.PrincipalFromContext[*domain.User](r.Context())
	if !ok {
		httputil.WriteError(w, r, errNoPrincipal, h.logger)
		return
	}

	var req UpdatePasswordRequest
	if err := validator.DecodeAndValidate(w, r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	if err := h.service.UpdatePassword(r.Context(), user.ID, req.CurrentPassword, req.Password); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteMessage(w, http.StatusOK, "Password updated successfully")
}

// refreshTokenFrom prefers the cookie and falls back to an optional JSON
// body. An absent token yields "".
func (h *AuthHandler) refreshTokenFrom(w http.ResponseWriter, r *http.Request) (string, error) {
	if c, err := r.Cookie(RefreshCookieName); err == nil && c.Value != "" {
		return c.Value, nil
	}
	if r.Body == nil || r.Body == http.NoBody || r.ContentLength == 0 {
		return "", nil
	}

	var req RefreshRequest
	if err := validator.DecodeAndValidate(w, r, &req); err != nil {
		return "", err
	}
	return req.RefreshToken, nil
}

// pathParam returns a decoded URL parameter. chi matches on RawPath when the
// request has one, so segments such as an email holding %2F arrive escaped.
func pathParam(r *http.Request, key string) (string, error) {
	v := chi.URLParam(r, key)
	if r.URL.RawPath == "" {
		return v, nil
	}
	return url.PathUnescape(v)
}
