package auth

import (
	"context"

	"github.com/google/uuid"

	"github.com/haqqman/gatekeeper/pkg/domain"
)

// PortalDirectory is the user-directory capability consumed by the portal
// flows. Pass uuid.Nil as excludeID to check every account.
type PortalDirectory interface {
	FindByEmail(ctx context.Context, email string) (*domain.PortalUser, error)
	FindByID(ctx context.Context, id uuid.UUID) (*domain.PortalUser, error)
	Create(ctx context.Context, user *domain.PortalUser) error
	Update(ctx context.Context, user *domain.PortalUser) error
	IsEmailTaken(ctx context.Context, email string, excludeID uuid.UUID) (bool, error)
}

// ConsoleDirectory is the user-directory capability consumed by the console
// flows.
type ConsoleDirectory interface {
	FindByWorkmail(ctx context.Context, workmail string) (*domain.ConsoleUser, error)
	FindByID(ctx context.Context, id uuid.UUID) (*domain.ConsoleUser, error)
	Create(ctx context.Context, user *domain.ConsoleUser) error
	Update(ctx context.Context, user *domain.ConsoleUser) error
	IsWorkmailTaken(ctx context.Context, workmail string, excludeID uuid.UUID) (bool, error)
}

// AppDirectory resolves tenant configuration.
type AppDirectory interface {
	FindBySlug(ctx context.Context, slug string) (*domain.App, error)
}

// EmailKind selects the template of an outbound notification.
type EmailKind string

const (
	EmailPortalWelcome    EmailKind = "portalWelcome"
	EmailVerificationCode EmailKind = "verificationCode"
	EmailPortalOTP        EmailKind = "portalOTP"
	EmailConsoleOTP       EmailKind = "consoleOTP"
	EmailResetPassword    EmailKind = "resetPassword"
	EmailUpdateEmailCode  EmailKind = "updateEmailCode"
	EmailConsoleInvite    EmailKind = "consoleInvite"
)

// EmailPayload carries the recipient, tenant branding, and the token or code
// value for an outbound notification.
type EmailPayload struct {
	To        string
	FirstName string
	Code      string
	Token     string
	App       *domain.App
}

// EmailSender dispatches a templated notification. Sends are best-effort:
// a failure never rolls back the token or state change already committed.
type EmailSender interface {
	Send(ctx context.Context, kind EmailKind, payload EmailPayload) error
}
