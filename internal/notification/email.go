package notification

import (
	"context"
	"fmt"
	"net/smtp"

	"github.com/haqqman/gatekeeper/pkg/auth"
)

type EmailConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
	FromName string
}

// EmailService delivers auth notifications over SMTP. It satisfies
// auth.EmailSender.
type EmailService struct {
	config EmailConfig
}

func NewEmailService(config EmailConfig) *EmailService {
	return &EmailService{config: config}
}

// Send renders the template for the given kind and dispatches it.
func (s *EmailService) Send(ctx context.Context, kind auth.EmailKind, payload auth.EmailPayload) error {
	appName := "your account"
	portalURL := "#"
	consoleURL := "#"
	if payload.App != nil {
		appName = payload.App.Name
		portalURL = payload.App.PortalURL
		consoleURL = payload.App.ConsoleURL
	}

	var subject, body string
	switch kind {
	case auth.EmailPortalWelcome:
		subject = fmt.Sprintf("Welcome to %s", appName)
		body = fmt.Sprintf(`<html><body>
			<h2>Welcome, %s!</h2>
			<p>Your %s account has been created.</p>
			<p><a href="%s">Sign in to get started</a></p>
		</body></html>`, payload.FirstName, appName, portalURL)
	case auth.EmailVerificationCode:
		subject = "Verify Your Email Address"
		body = fmt.Sprintf(`<html><body>
			<h2>Verify Your Email Address</h2>
			<p>Hi %s, use this code to verify your email address:</p>
			<h1>%s</h1>
			<p>This code will expire in 10 minutes.</p>
		</body></html>`, payload.FirstName, payload.Code)
	case auth.EmailPortalOTP, auth.EmailConsoleOTP:
		subject = "Your One-Time Passcode"
		body = fmt.Sprintf(`<html><body>
			<h2>Your One-Time Passcode</h2>
			<p>Hi %s, enter this code to finish signing in:</p>
			<h1>%s</h1>
			<p>This code will expire in 10 minutes. If you did not try to sign in, please reset your password.</p>
		</body></html>`, payload.FirstName, payload.Code)
	case auth.EmailResetPassword:
		subject = "Reset Your Password"
		body = fmt.Sprintf(`<html><body>
			<h2>Reset Your Password</h2>
			<p>Hi %s, a password reset has been requested for your account.</p>
			<p><a href="%s/reset-password?token=%s">Click here to reset your password</a></p>
			<p>This link will expire in 10 minutes.</p>
			<p>If you did not request this password reset, please ignore this email.</p>
		</body></html>`, payload.FirstName, portalURL, payload.Token)
	case auth.EmailUpdateEmailCode:
		subject = "Confirm Your New Email Address"
		body = fmt.Sprintf(`<html><body>
			<h2>Confirm Your New Email Address</h2>
			<p>Hi %s, use this code to confirm your new email address:</p>
			<h1>%s</h1>
			<p>This code will expire in 10 minutes. If you did not request this change, please ignore this email.</p>
		</body></html>`, payload.FirstName, payload.Code)
	case auth.EmailConsoleInvite:
		subject = fmt.Sprintf("You have been invited to the %s console", appName)
		body = fmt.Sprintf(`<html><body>
			<h2>You're Invited</h2>
			<p>Hi %s, you have been invited to join the %s console.</p>
			<p><a href="%s/accept-invite?token=%s">Click here to accept the invitation</a></p>
			<p>This invitation will expire in 72 hours.</p>
		</body></html>`, payload.FirstName, appName, consoleURL, payload.Token)
	default:
		return fmt.Errorf("unknown email kind: %s", kind)
	}

	return s.sendEmail(payload.To, subject, body)
}

func (s *EmailService) sendEmail(to, subject, body string) error {
	from := s.config.From
	if s.config.FromName != "" {
		from = fmt.Sprintf("%s <%s>", s.config.FromName, s.config.From)
	}

	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/html; charset=UTF-8\r\n\r\n%s",
		from, to, subject, body)

	auth := smtp.PlainAuth("", s.config.User, s.config.Password, s.config.Host)
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	return smtp.SendMail(addr, auth, s.config.From, []string{to}, []byte(msg))
}
