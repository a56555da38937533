package domain

import (
	"time"

	"github.com/google/uuid"
)

// App is a tenant application. Each app exposes a portal surface for end
// users and a console surface for staff, with its own OTP policy and
// workmail-domain blocklist.
type App struct {
	ID                     uuid.UUID
	Name                   string
	Slug                   string
	PortalURL              string
	ConsoleURL             string
	PortalOTPRequired      bool
	BlockedWorkmailDomains []string
	CreatedAt              time.Time
	UpdatedAt              time.Time
}
