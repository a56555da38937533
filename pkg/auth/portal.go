package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/haqqman/gatekeeper/pkg/domain"
)

// PortalService implements the portal end-user flows: registration, login
// with tenant/user OTP policy, logout, refresh rotation, password reset,
// email verification, OTP verification, and email change.
type PortalService struct {
	users  PortalDirectory
	apps   AppDirectory
	tokens *TokenService
	email  EmailSender
	logger *slog.Logger
}

// NewPortalService creates a portal auth service.
func NewPortalService(users PortalDirectory, apps AppDirectory, tokens *TokenService, email EmailSender, logger *slog.Logger) *PortalService {
	if logger == nil {
		logger = slog.Default()
	}
	return &PortalService{
		users:  users,
		apps:   apps,
		tokens: tokens,
		email:  email,
		logger: logger,
	}
}

// RegisterInput holds a new portal account request.
type RegisterInput struct {
	AppSlug   string
	Email     string
	FirstName string
	LastName  string
	Password  string
}

// RegisterResult is returned on successful account creation.
type RegisterResult struct {
	User   *domain.PortalUser
	Tokens *domain.TokenPair
}

// Register creates a portal account, mints its signup verification code, and
// dispatches the welcome and verification emails.
func (s *PortalService) Register(ctx context.Context, input RegisterInput) (*RegisterResult, error) {
	app, err := s.apps.FindBySlug(ctx, input.AppSlug)
	if err != nil {
		return nil, err
	}

	taken, err := s.users.IsEmailTaken(ctx, input.Email, uuid.Nil)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, domain.ErrDuplicateEmail
	}

	hash, err := HashPassword(input.Password)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	user := &domain.PortalUser{
		ID:           uuid.New(),
		AppID:        app.ID,
		Email:        input.Email,
		FirstName:    input.FirstName,
		LastName:     input.LastName,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	code, err := s.tokens.GenerateSignupVerificationCode(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	s.send(ctx, EmailVerificationCode, EmailPayload{To: user.Email, FirstName: user.FirstName, Code: code, App: app})
	s.send(ctx, EmailPortalWelcome, EmailPayload{To: user.Email, FirstName: user.FirstName, App: app})

	pair, err := s.tokens.GenerateAuthTokens(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	return &RegisterResult{User: user, Tokens: pair}, nil
}

// LoginResult is returned by Login. Tokens is nil while OTP verification is
// pending.
type LoginResult struct {
	User        *domain.PortalUser
	Tokens      *domain.TokenPair
	OTPRequired bool
}

// Login authenticates a portal user. When the tenant requires OTP, or the
// user opted in, a one-time passcode is issued and emailed and no tokens are
// granted until VerifyOTP succeeds. Absent users and bad passwords are both
// reported as invalid credentials.
func (s *PortalService) Login(ctx context.Context, appSlug, email, password string) (*LoginResult, error) {
	app, err := s.apps.FindBySlug(ctx, appSlug)
	if err != nil {
		return nil, err
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}
	if !VerifyPassword(password, user.PasswordHash) {
		return nil, domain.ErrInvalidCredentials
	}

	if app.PortalOTPRequired || user.OTPEnabled {
		otp, err := s.tokens.GenerateAccessOTP(ctx, user.ID)
		if err != nil {
			return nil, err
		}
		s.send(ctx, EmailPortalOTP, EmailPayload{To: user.Email, FirstName: user.FirstName, Code: otp, App: app})
		return &LoginResult{User: user, OTPRequired: true}, nil
	}

	pair, err := s.tokens.GenerateAuthTokens(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	return &LoginResult{User: user, Tokens: pair}, nil
}

// VerifyOTP consumes a login passcode and grants the withheld token pair.
func (s *PortalService) VerifyOTP(ctx context.Context, userID uuid.UUID, otp string) (*domain.TokenPair, error) {
	if _, err := s.tokens.VerifyCode(ctx, domain.TokenKindVerifyOTP, userID, otp); err != nil {
		return nil, err
	}
	return s.tokens.GenerateAuthTokens(ctx, userID)
}

// Logout deletes the presented refresh token, ending that session.
func (s *PortalService) Logout(ctx context.Context, refreshToken string) error {
	return s.tokens.DeleteRefreshToken(ctx, refreshToken)
}

// Refresh rotates a refresh token into a fresh token pair.
func (s *PortalService) Refresh(ctx context.Context, refreshToken string) (*domain.TokenPair, error) {
	pair, _, err := s.tokens.RotateAuthTokens(ctx, refreshToken)
	return pair, err
}

// RequestPasswordReset issues a reset token for the account and emails it.
func (s *PortalService) RequestPasswordReset(ctx context.Context, appSlug, email string) error {
	app, err := s.apps.FindBySlug(ctx, appSlug)
	if err != nil {
		return err
	}
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return err
	}
	token, err := s.tokens.GenerateResetPasswordToken(ctx, user.ID)
	if err != nil {
		return err
	}
	s.send(ctx, EmailResetPassword, EmailPayload{To: user.Email, FirstName: user.FirstName, Token: token, App: app})
	return nil
}

// ConfirmPasswordReset verifies a reset token, stores the new password hash,
// and spends every outstanding reset token for the account.
func (s *PortalService) ConfirmPasswordReset(ctx context.Context, resetToken, newPassword string) error {
	token, err := s.tokens.VerifyToken(ctx, domain.TokenKindResetPassword, resetToken)
	if err != nil {
		return err
	}
	user, err := s.users.FindByID(ctx, token.OwnerID)
	if err != nil {
		return err
	}
	hash, err := HashPassword(newPassword)
	if err != nil {
		return err
	}
	user.PasswordHash = hash
	user.UpdatedAt = time.Now()
	if err := s.users.Update(ctx, user); err != nil {
		return err
	}
	return s.tokens.DeleteTokens(ctx, user.ID, domain.TokenKindResetPassword)
}

// SendVerificationEmail mints a fresh email verification code for an
// authenticated user and emails it.
func (s *PortalService) SendVerificationEmail(ctx context.Context, appSlug string, userID uuid.UUID) error {
	app, err := s.apps.FindBySlug(ctx, appSlug)
	if err != nil {
		return err
	}
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	code, err := s.tokens.GenerateVerifyEmailCode(ctx, user.ID)
	if err != nil {
		return err
	}
	s.send(ctx, EmailVerificationCode, EmailPayload{To: user.Email, FirstName: user.FirstName, Code: code, App: app})
	return nil
}

// VerifyEmail consumes a verification code and marks the account's email as
// verified.
func (s *PortalService) VerifyEmail(ctx context.Context, userID uuid.UUID, code string) error {
	if _, err := s.tokens.VerifyCode(ctx, domain.TokenKindVerifyEmail, userID, code); err != nil {
		return err
	}
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	user.IsEmailVerified = true
	user.UpdatedAt = time.Now()
	return s.users.Update(ctx, user)
}

// RequestEmailUpdate mints an email-change code and sends it to the new
// address. The presented old email must match the account's current one.
func (s *PortalService) RequestEmailUpdate(ctx context.Context, appSlug string, userID uuid.UUID, oldEmail, newEmail string) error {
	app, err := s.apps.FindBySlug(ctx, appSlug)
	if err != nil {
		return err
	}
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	if user.Email != oldEmail {
		return domain.ErrEmailMismatch
	}
	taken, err := s.users.IsEmailTaken(ctx, newEmail, user.ID)
	if err != nil {
		return err
	}
	if taken {
		return domain.ErrDuplicateEmail
	}
	code, err := s.tokens.GenerateUpdateEmailCode(ctx, user.ID)
	if err != nil {
		return err
	}
	s.send(ctx, EmailUpdateEmailCode, EmailPayload{To: newEmail, FirstName: user.FirstName, Code: code, App: app})
	return nil
}

// ConfirmEmailUpdate consumes an email-change code and applies the new
// address to the account the code was issued for.
func (s *PortalService) ConfirmEmailUpdate(ctx context.Context, code, newEmail string) error {
	token, err := s.tokens.VerifyUpdateEmailCode(ctx, code)
	if err != nil {
		return err
	}
	user, err := s.users.FindByID(ctx, token.OwnerID)
	if err != nil {
		return err
	}
	taken, err := s.users.IsEmailTaken(ctx, newEmail, user.ID)
	if err != nil {
		return err
	}
	if taken {
		return domain.ErrDuplicateEmail
	}
	user.Email = newEmail
	user.UpdatedAt = time.Now()
	return s.users.Update(ctx, user)
}

// UpdateOTPOption toggles the per-user OTP login requirement.
func (s *PortalService) UpdateOTPOption(ctx context.Context, userID uuid.UUID, enabled bool) (*domain.PortalUser, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	user.OTPEnabled = enabled
	user.UpdatedAt = time.Now()
	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// send dispatches a notification without affecting the calling flow: issued
// tokens are authoritative, email is best-effort.
func (s *PortalService) send(ctx context.Context, kind EmailKind, payload EmailPayload) {
	if s.email == nil {
		return
	}
	if err := s.email.Send(ctx, kind, payload); err != nil {
		s.logger.Warn("email send failed", "kind", string(kind), "to", payload.To, "error", err)
	}
}
