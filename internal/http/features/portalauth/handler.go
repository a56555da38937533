package portalauth

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/haqqman/gatekeeper/internal/http/middleware"
	"github.com/haqqman/gatekeeper/internal/httputil"
	"github.com/haqqman/gatekeeper/pkg/auth"
	"github.com/haqqman/gatekeeper/pkg/domain"
)

type Handler struct {
	logger *slog.Logger
	portal *auth.PortalService
}

func NewHandler(logger *slog.Logger, portal *auth.PortalService) *Handler {
	return &Handler{logger: logger, portal: portal}
}

type RegisterRequest struct {
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Password  string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type VerifyOTPRequest struct {
	OTP string `json:"otp"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type ResetRequest struct {
	Email string `json:"email"`
}

type ResetConfirmRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

type VerifyEmailRequest struct {
	Code string `json:"code"`
}

type UpdateEmailRequest struct {
	OldEmail string `json:"oldEmail"`
	NewEmail string `json:"newEmail"`
}

type UpdateEmailConfirmRequest struct {
	Code     string `json:"code"`
	NewEmail string `json:"newEmail"`
}

type OTPOptionRequest struct {
	Enabled bool `json:"enabled"`
}

type UserResponse struct {
	ID              string `json:"id"`
	Email           string `json:"email"`
	FirstName       string `json:"firstName"`
	LastName        string `json:"lastName"`
	IsEmailVerified bool   `json:"isEmailVerified"`
	OTPEnabled      bool   `json:"otpEnabled"`
}

type TokensResponse struct {
	AccessToken      string `json:"accessToken"`
	AccessExpiresAt  string `json:"accessExpiresAt"`
	RefreshToken     string `json:"refreshToken"`
	RefreshExpiresAt string `json:"refreshExpiresAt"`
}

type AuthResponse struct {
	User        *UserResponse   `json:"user,omitempty"`
	Tokens      *TokensResponse `json:"tokens,omitempty"`
	OTPRequired bool            `json:"otpRequired,omitempty"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

func userResponse(user *domain.PortalUser) *UserResponse {
	return &UserResponse{
		ID:              user.ID.String(),
		Email:           user.Email,
		FirstName:       user.FirstName,
		LastName:        user.LastName,
		IsEmailVerified: user.IsEmailVerified,
		OTPEnabled:      user.OTPEnabled,
	}
}

func tokensResponse(pair *domain.TokenPair) *TokensResponse {
	if pair == nil {
		return nil
	}
	return &TokensResponse{
		AccessToken:      pair.AccessToken,
		AccessExpiresAt:  pair.AccessExpiresAt.Format("2006-01-02T15:04:05Z07:00"),
		RefreshToken:     pair.RefreshToken,
		RefreshExpiresAt: pair.RefreshExpiresAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

// Register handles portal account creation.
// POST /v1/portal/{app}/auth/register
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request")
		return
	}
	if req.Email == "" || req.Password == "" {
		httputil.Error(w, http.StatusBadRequest, "email and password are required")
		return
	}

	result, err := h.portal.Register(r.Context(), auth.RegisterInput{
		AppSlug:   chi.URLParam(r, "app"),
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Password:  req.Password,
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrAppNotFound):
			httputil.Error(w, http.StatusNotFound, "app not found")
		case errors.Is(err, domain.ErrDuplicateEmail):
			httputil.Error(w, http.StatusConflict, "email already registered")
		default:
			h.logger.Error("register failed", "error", err)
			httputil.Error(w, http.StatusInternalServerError, "registration failed")
		}
		return
	}

	h.logger.Info("portal user registered", "user_id", result.User.ID)

	httputil.JSON(w, http.StatusCreated, AuthResponse{
		User:   userResponse(result.User),
		Tokens: tokensResponse(result.Tokens),
	})
}

// Login handles portal login.
// POST /v1/portal/{app}/auth/login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request")
		return
	}

	result, err := h.portal.Login(r.Context(), chi.URLParam(r, "app"), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrAppNotFound):
			httputil.Error(w, http.StatusNotFound, "app not found")
		case errors.Is(err, domain.ErrInvalidCredentials):
			httputil.Error(w, http.StatusUnauthorized, "invalid email or password")
		default:
			h.logger.Error("login failed", "error", err)
			httputil.Error(w, http.StatusInternalServerError, "login failed")
		}
		return
	}

	httputil.JSON(w, http.StatusOK, AuthResponse{
		User:        userResponse(result.User),
		Tokens:      tokensResponse(result.Tokens),
		OTPRequired: result.OTPRequired,
	})
}

// VerifyOTP finishes an OTP-gated login.
// POST /v1/portal/{app}/auth/verify-otp
func (h *Handler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID string `json:"userId"`
		OTP    string `json:"otp"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request")
		return
	}
	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid user id")
		return
	}

	pair, err := h.portal.VerifyOTP(r.Context(), userID, req.OTP)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrTokenNotFound), errors.Is(err, domain.ErrTokenExpired):
			httputil.Error(w, http.StatusUnauthorized, "invalid or expired passcode")
		default:
			h.logger.Error("otp verification failed", "error", err)
			httputil.Error(w, http.StatusInternalServerError, "verification failed")
		}
		return
	}

	httputil.JSON(w, http.StatusOK, AuthResponse{Tokens: tokensResponse(pair)})
}

// Logout deletes the presented refresh token.
// POST /v1/portal/{app}/auth/logout
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request")
		return
	}

	if err := h.portal.Logout(r.Context(), req.RefreshToken); err != nil {
		switch {
		case errors.Is(err, domain.ErrTokenNotFound), errors.Is(err, domain.ErrInvalidToken), errors.Is(err, domain.ErrTokenExpired):
			httputil.Error(w, http.StatusUnauthorized, "invalid refresh token")
		default:
			h.logger.Error("logout failed", "error", err)
			httputil.Error(w, http.StatusInternalServerError, "logout failed")
		}
		return
	}

	httputil.JSON(w, http.StatusOK, MessageResponse{Message: "logged out"})
}

// Refresh rotates a refresh token.
// POST /v1/portal/{app}/auth/refresh
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request")
		return
	}

	pair, err := h.portal.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrTokenNotFound), errors.Is(err, domain.ErrInvalidToken), errors.Is(err, domain.ErrTokenExpired):
			httputil.Error(w, http.StatusUnauthorized, "invalid or expired refresh token")
		default:
			h.logger.Error("refresh failed", "error", err)
			httputil.Error(w, http.StatusInternalServerError, "refresh failed")
		}
		return
	}

	httputil.JSON(w, http.StatusOK, AuthResponse{Tokens: tokensResponse(pair)})
}

// RequestPasswordReset issues and emails a reset token.
// POST /v1/portal/{app}/auth/reset-password/request
func (h *Handler) RequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req ResetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request")
		return
	}

	err := h.portal.RequestPasswordReset(r.Context(), chi.URLParam(r, "app"), req.Email)
	if err != nil && !errors.Is(err, domain.ErrUserNotFound) {
		if errors.Is(err, domain.ErrAppNotFound) {
			httputil.Error(w, http.StatusNotFound, "app not found")
			return
		}
		h.logger.Error("password reset request failed", "error", err)
		httputil.Error(w, http.StatusInternalServerError, "reset request failed")
		return
	}

	// Unknown emails get the same response so accounts cannot be enumerated.
	httputil.JSON(w, http.StatusOK, MessageResponse{Message: "if the account exists, a reset email has been sent"})
}

// ConfirmPasswordReset applies a new password from a reset token.
// POST /v1/portal/{app}/auth/reset-password/confirm
func (h *Handler) ConfirmPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req ResetConfirmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request")
		return
	}
	if req.Password == "" {
		httputil.Error(w, http.StatusBadRequest, "password is required")
		return
	}

	if err := h.portal.ConfirmPasswordReset(r.Context(), req.Token, req.Password); err != nil {
		switch {
		case errors.Is(err, domain.ErrTokenNotFound), errors.Is(err, domain.ErrInvalidToken), errors.Is(err, domain.ErrTokenExpired):
			httputil.Error(w, http.StatusUnauthorized, "invalid or expired reset token")
		default:
			h.logger.Error("password reset failed", "error", err)
			httputil.Error(w, http.StatusInternalServerError, "password reset failed")
		}
		return
	}

	httputil.JSON(w, http.StatusOK, MessageResponse{Message: "password updated"})
}

// SendVerificationEmail mints and emails a fresh verification code.
// POST /v1/portal/{app}/auth/verify-email/send
// Requires authentication.
func (h *Handler) SendVerificationEmail(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	if err := h.portal.SendVerificationEmail(r.Context(), chi.URLParam(r, "app"), userID); err != nil {
		h.logger.Error("send verification failed", "error", err, "user_id", userID)
		httputil.Error(w, http.StatusInternalServerError, "failed to send verification email")
		return
	}

	httputil.JSON(w, http.StatusOK, MessageResponse{Message: "verification email sent"})
}

// VerifyEmail consumes a verification code.
// POST /v1/portal/{app}/auth/verify-email
// Requires authentication.
func (h *Handler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req VerifyEmailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request")
		return
	}

	if err := h.portal.VerifyEmail(r.Context(), userID, req.Code); err != nil {
		switch {
		case errors.Is(err, domain.ErrTokenNotFound), errors.Is(err, domain.ErrTokenExpired):
			httputil.Error(w, http.StatusBadRequest, "invalid or expired code")
		default:
			h.logger.Error("email verification failed", "error", err, "user_id", userID)
			httputil.Error(w, http.StatusInternalServerError, "verification failed")
		}
		return
	}

	h.logger.Info("email verified", "user_id", userID)

	httputil.JSON(w, http.StatusOK, MessageResponse{Message: "email verified"})
}

// RequestEmailUpdate mints an email-change code and sends it to the new
// address.
// POST /v1/portal/{app}/auth/update-email/request
// Requires authentication.
func (h *Handler) RequestEmailUpdate(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req UpdateEmailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request")
		return
	}

	err := h.portal.RequestEmailUpdate(r.Context(), chi.URLParam(r, "app"), userID, req.OldEmail, req.NewEmail)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrEmailMismatch):
			httputil.Error(w, http.StatusBadRequest, "current email does not match")
		case errors.Is(err, domain.ErrDuplicateEmail):
			httputil.Error(w, http.StatusConflict, "email already registered")
		default:
			h.logger.Error("email update request failed", "error", err, "user_id", userID)
			httputil.Error(w, http.StatusInternalServerError, "email update request failed")
		}
		return
	}

	httputil.JSON(w, http.StatusOK, MessageResponse{Message: "confirmation code sent"})
}

// ConfirmEmailUpdate applies a new email address from a change code.
// POST /v1/portal/{app}/auth/update-email/confirm
func (h *Handler) ConfirmEmailUpdate(w http.ResponseWriter, r *http.Request) {
	var req UpdateEmailConfirmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request")
		return
	}

	if err := h.portal.ConfirmEmailUpdate(r.Context(), req.Code, req.NewEmail); err != nil {
		switch {
		case errors.Is(err, domain.ErrTokenNotFound), errors.Is(err, domain.ErrTokenExpired):
			httputil.Error(w, http.StatusBadRequest, "invalid or expired code")
		case errors.Is(err, domain.ErrDuplicateEmail):
			httputil.Error(w, http.StatusConflict, "email already registered")
		default:
			h.logger.Error("email update failed", "error", err)
			httputil.Error(w, http.StatusInternalServerError, "email update failed")
		}
		return
	}

	httputil.JSON(w, http.StatusOK, MessageResponse{Message: "email updated"})
}

// UpdateOTPOption toggles the OTP login requirement for the caller.
// PATCH /v1/portal/{app}/auth/otp-option
// Requires authentication.
func (h *Handler) UpdateOTPOption(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req OTPOptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request")
		return
	}

	user, err := h.portal.UpdateOTPOption(r.Context(), userID, req.Enabled)
	if err != nil {
		h.logger.Error("otp option update failed", "error", err, "user_id", userID)
		httputil.Error(w, http.StatusInternalServerError, "update failed")
		return
	}

	httputil.JSON(w, http.StatusOK, AuthResponse{User: userResponse(user)})
}
