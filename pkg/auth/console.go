package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/haqqman/gatekeeper/pkg/domain"
)

// ConsoleService implements the console staff flows: login behind the tenant
// workmail-domain guard, logout, refresh rotation, password reset, OTP
// verification, and the invite/accept-invite pair.
type ConsoleService struct {
	users  ConsoleDirectory
	apps   AppDirectory
	tokens *TokenService
	email  EmailSender
	logger *slog.Logger
}

// NewConsoleService creates a console auth service.
func NewConsoleService(users ConsoleDirectory, apps AppDirectory, tokens *TokenService, email EmailSender, logger *slog.Logger) *ConsoleService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ConsoleService{
		users:  users,
		apps:   apps,
		tokens: tokens,
		email:  email,
		logger: logger,
	}
}

// ConsoleLoginResult is returned by Login. Tokens is nil while OTP
// verification is pending.
type ConsoleLoginResult struct {
	User        *domain.ConsoleUser
	Tokens      *domain.TokenPair
	OTPRequired bool
}

// Login authenticates a console user. The workmail domain is checked against
// the tenant blocklist before credentials are even looked at; a blocked
// domain fails with its own error rather than bad credentials.
func (s *ConsoleService) Login(ctx context.Context, appSlug, workmail, password string) (*ConsoleLoginResult, error) {
	app, err := s.apps.FindBySlug(ctx, appSlug)
	if err != nil {
		return nil, err
	}

	if HasBlockedDomain(workmail, app.BlockedWorkmailDomains) {
		return nil, domain.ErrBlockedDomain
	}

	user, err := s.users.FindByWorkmail(ctx, workmail)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}
	if !VerifyPassword(password, user.PasswordHash) {
		return nil, domain.ErrInvalidCredentials
	}

	if user.OTPEnabled {
		otp, err := s.tokens.GenerateAccessOTP(ctx, user.ID)
		if err != nil {
			return nil, err
		}
		s.send(ctx, EmailConsoleOTP, EmailPayload{To: user.Workmail, FirstName: user.FirstName, Code: otp, App: app})
		return &ConsoleLoginResult{User: user, OTPRequired: true}, nil
	}

	pair, err := s.tokens.GenerateAuthTokens(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	return &ConsoleLoginResult{User: user, Tokens: pair}, nil
}

// VerifyOTP consumes a login passcode and grants the withheld token pair.
func (s *ConsoleService) VerifyOTP(ctx context.Context, userID uuid.UUID, otp string) (*domain.TokenPair, error) {
	if _, err := s.tokens.VerifyCode(ctx, domain.TokenKindVerifyOTP, userID, otp); err != nil {
		return nil, err
	}
	return s.tokens.GenerateAuthTokens(ctx, userID)
}

// Logout deletes the presented refresh token, ending that session.
func (s *ConsoleService) Logout(ctx context.Context, refreshToken string) error {
	return s.tokens.DeleteRefreshToken(ctx, refreshToken)
}

// Refresh rotates a refresh token into a fresh token pair.
func (s *ConsoleService) Refresh(ctx context.Context, refreshToken string) (*domain.TokenPair, error) {
	pair, _, err := s.tokens.RotateAuthTokens(ctx, refreshToken)
	return pair, err
}

// RequestPasswordReset issues a reset token for the account and emails it.
func (s *ConsoleService) RequestPasswordReset(ctx context.Context, appSlug, workmail string) error {
	app, err := s.apps.FindBySlug(ctx, appSlug)
	if err != nil {
		return err
	}
	user, err := s.users.FindByWorkmail(ctx, workmail)
	if err != nil {
		return err
	}
	token, err := s.tokens.GenerateResetPasswordToken(ctx, user.ID)
	if err != nil {
		return err
	}
	s.send(ctx, EmailResetPassword, EmailPayload{To: user.Workmail, FirstName: user.FirstName, Token: token, App: app})
	return nil
}

// ConfirmPasswordReset verifies a reset token, stores the new password hash,
// and spends every outstanding reset token for the account.
func (s *ConsoleService) ConfirmPasswordReset(ctx context.Context, resetToken, newPassword string) error {
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

// Invite signs a self-contained invite token for a prospective console user
// and emails it. Nothing is persisted until the invite is accepted.
func (s *ConsoleService) Invite(ctx context.Context, appSlug string, invite domain.ConsoleInvite) error {
	app, err := s.apps.FindBySlug(ctx, appSlug)
	if err != nil {
		return err
	}
	taken, err := s.users.IsWorkmailTaken(ctx, invite.Workmail, uuid.Nil)
	if err != nil {
		return err
	}
	if taken {
		return domain.ErrDuplicateWorkmail
	}
	token, err := s.tokens.GenerateInviteToken(invite)
	if err != nil {
		return err
	}
	s.send(ctx, EmailConsoleInvite, EmailPayload{To: invite.Workmail, FirstName: invite.FirstName, Token: token, App: app})
	return nil
}

// AcceptInvite verifies an invite token and materializes the console account
// it describes, returning the new user and their first token pair.
func (s *ConsoleService) AcceptInvite(ctx context.Context, appSlug, inviteToken, password string) (*domain.ConsoleUser, *domain.TokenPair, error) {
	app, err := s.apps.FindBySlug(ctx, appSlug)
	if err != nil {
		return nil, nil, err
	}
	invite, err := s.tokens.VerifyInviteToken(inviteToken)
	if err != nil {
		return nil, nil, err
	}
	taken, err := s.users.IsWorkmailTaken(ctx, invite.Workmail, uuid.Nil)
	if err != nil {
		return nil, nil, err
	}
	if taken {
		return nil, nil, domain.ErrDuplicateWorkmail
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, nil, err
	}

	now := time.Now()
	user := &domain.ConsoleUser{
		ID:           uuid.New(),
		AppID:        app.ID,
		Workmail:     invite.Workmail,
		FirstName:    invite.FirstName,
		LastName:     invite.LastName,
		Role:         invite.Role,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, nil, err
	}

	pair, err := s.tokens.GenerateAuthTokens(ctx, user.ID)
	if err != nil {
		return nil, nil, err
	}
	return user, pair, nil
}

func (s *ConsoleService) send(ctx context.Context, kind EmailKind, payload EmailPayload) {
	if s.email == nil {
		return
	}
	if err := s.email.Send(ctx, kind, payload); err != nil {
		s.logger.Warn("email send failed", "kind", string(kind), "to", payload.To, "error", err)
	}
}
