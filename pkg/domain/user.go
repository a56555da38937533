package domain

import (
	"time"

	"github.com/google/uuid"
)

// PortalUser represents an end-user account on a tenant's portal surface.
type PortalUser struct {
	ID              uuid.UUID
	AppID           uuid.UUID
	Email           string
	FirstName       string
	LastName        string
	PasswordHash    string
	IsEmailVerified bool
	OTPEnabled      bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// ConsoleUser represents a staff account on a tenant's console surface.
// Console users authenticate with their workmail address.
type ConsoleUser struct {
	ID           uuid.UUID
	AppID        uuid.UUID
	Workmail     string
	FirstName    string
	LastName     string
	Role         string
	PasswordHash string
	OTPEnabled   bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Console user roles.
const (
	RoleAdministrator = "administrator"
	RoleManager       = "manager"
	RoleAnalyst       = "analyst"
)
