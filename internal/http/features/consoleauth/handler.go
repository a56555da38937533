package consoleauth

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/haqqman/gatekeeper/internal/httputil"
	"github.com/haqqman/gatekeeper/pkg/auth"
	"github.com/haqqman/gatekeeper/pkg/domain"
)

type Handler struct {
	logger  *slog.Logger
	console *auth.ConsoleService
}

func NewHandler(logger *slog.Logger, console *auth.ConsoleService) *Handler {
	return &Handler{logger: logger, console: console}
}

type LoginRequest struct {
	Workmail string `json:"workmail"`
	Password string `json:"password"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type ResetRequest struct {
	Workmail string `json:"workmail"`
}

type ResetConfirmRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

type InviteRequest struct {
	Workmail  string `json:"workmail"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Role      string `json:"role"`
}

type AcceptInviteRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

type UserResponse struct {
	ID         string `json:"id"`
	Workmail   string `json:"workmail"`
	FirstName  string `json:"firstName"`
	LastName   string `json:"lastName"`
	Role       string `json:"role"`
	OTPEnabled bool   `json:"otpEnabled"`
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

func userResponse(user *domain.ConsoleUser) *UserResponse {
	return &UserResponse{
		ID:         user.ID.String(),
		Workmail:   user.Workmail,
		FirstName:  user.FirstName,
		LastName:   user.LastName,
		Role:       user.Role,
		OTPEnabled: user.OTPEnabled,
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

// Login handles console login. A workmail on a blocked domain is rejected
// before credentials are checked.
// POST /v1/console/{app}/auth/login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request")
		return
	}

	result, err := h.console.Login(r.Context(), chi.URLParam(r, "app"), req.Workmail, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrAppNotFound):
			httputil.Error(w, http.StatusNotFound, "app not found")
		case errors.Is(err, domain.ErrBlockedDomain):
			httputil.Error(w, http.StatusForbidden, "workmail domain is not allowed")
		case errors.Is(err, domain.ErrInvalidCredentials):
			httputil.Error(w, http.StatusUnauthorized, "invalid workmail or password")
		default:
			h.logger.Error("console login failed", "error", err)
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
// POST /v1/console/{app}/auth/verify-otp
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

	pair, err := h.console.VerifyOTP(r.Context(), userID, req.OTP)
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
// POST /v1/console/{app}/auth/logout
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request")
		return
	}

	if err := h.console.Logout(r.Context(), req.RefreshToken); err != nil {
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
// POST /v1/console/{app}/auth/refresh
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request")
		return
	}

	pair, err := h.console.Refresh(r.Context(), req.RefreshToken)
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
// POST /v1/console/{app}/auth/reset-password/request
func (h *Handler) RequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req ResetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request")
		return
	}

	err := h.console.RequestPasswordReset(r.Context(), chi.URLParam(r, "app"), req.Workmail)
	if err != nil && !errors.Is(err, domain.ErrUserNotFound) {
		if errors.Is(err, domain.ErrAppNotFound) {
			httputil.Error(w, http.StatusNotFound, "app not found")
			return
		}
		h.logger.Error("password reset request failed", "error", err)
		httputil.Error(w, http.StatusInternalServerError, "reset request failed")
		return
	}

	// Unknown workmails get the same response so accounts cannot be enumerated.
	httputil.JSON(w, http.StatusOK, MessageResponse{Message: "if the account exists, a reset email has been sent"})
}

// ConfirmPasswordReset applies a new password from a reset token.
// POST /v1/console/{app}/auth/reset-password/confirm
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

	if err := h.console.ConfirmPasswordReset(r.Context(), req.Token, req.Password); err != nil {
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

// Invite emails a signed invitation for a new console user.
// POST /v1/console/{app}/auth/invite
// Requires authentication.
func (h *Handler) Invite(w http.ResponseWriter, r *http.Request) {
	var req InviteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request")
		return
	}
	if req.Workmail == "" || req.Role == "" {
		httputil.Error(w, http.StatusBadRequest, "workmail and role are required")
		return
	}

	err := h.console.Invite(r.Context(), chi.URLParam(r, "app"), domain.ConsoleInvite{
		Workmail:  req.Workmail,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Role:      req.Role,
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrAppNotFound):
			httputil.Error(w, http.StatusNotFound, "app not found")
		case errors.Is(err, domain.ErrDuplicateWorkmail):
			httputil.Error(w, http.StatusConflict, "workmail already registered")
		default:
			h.logger.Error("invite failed", "error", err)
			httputil.Error(w, http.StatusInternalServerError, "invite failed")
		}
		return
	}

	httputil.JSON(w, http.StatusOK, MessageResponse{Message: "invitation sent"})
}

// AcceptInvite redeems an invitation token and creates the console account.
// POST /v1/console/{app}/auth/accept-invite
func (h *Handler) AcceptInvite(w http.ResponseWriter, r *http.Request) {
	var req AcceptInviteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request")
		return
	}
	if req.Password == "" {
		httputil.Error(w, http.StatusBadRequest, "password is required")
		return
	}

	user, pair, err := h.console.AcceptInvite(r.Context(), chi.URLParam(r, "app"), req.Token, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrAppNotFound):
			httputil.Error(w, http.StatusNotFound, "app not found")
		case errors.Is(err, domain.ErrInvalidToken), errors.Is(err, domain.ErrTokenExpired):
			httputil.Error(w, http.StatusUnauthorized, "invalid or expired invitation")
		case errors.Is(err, domain.ErrDuplicateWorkmail):
			httputil.Error(w, http.StatusConflict, "workmail already registered")
		default:
			h.logger.Error("accept invite failed", "error", err)
			httputil.Error(w, http.StatusInternalServerError, "accept invite failed")
		}
		return
	}

	h.logger.Info("console user created from invite", "user_id", user.ID)

	httputil.JSON(w, http.StatusCreated, AuthResponse{
		User:   userResponse(user),
		Tokens: tokensResponse(pair),
	})
}
