// Package gatekeeper provides multi-tenant authentication for portal and
// console users: password login with optional email OTP, refresh token
// rotation, password reset, email verification and change, and signed
// console invitations.
//
// Setup:
//
//  1. Run migrations from migrations/ folder using your preferred tool
//  2. Create a Gatekeeper instance and mount its router
//
// Basic usage:
//
//	db, _ := sql.Open("postgres", "postgres://localhost/myapp?sslmode=disable")
//
//	gk, err := gatekeeper.New(gatekeeper.Config{
//	    DB:        db,
//	    JWTSecret: "your-secret-key-at-least-32-chars",
//	})
//	if err != nil {
//	    log.Fatal(err) // Will fail if migrations haven't been run
//	}
//
//	http.ListenAndServe(":8080", gk.Router())
package gatekeeper

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	httpserver "github.com/haqqman/gatekeeper/internal/http"
	"github.com/haqqman/gatekeeper/internal/http/middleware"
	"github.com/haqqman/gatekeeper/internal/notification"
	"github.com/haqqman/gatekeeper/pkg/auth"
	"github.com/haqqman/gatekeeper/pkg/repository"
)

// Config holds the configuration for the gatekeeper library.
type Config struct {
	// DB is the database connection (required).
	DB *sql.DB

	// Redis optionally backs the token store instead of PostgreSQL.
	Redis *redis.Client

	// JWTSecret is the secret key for signing JWT tokens (required, min 32 chars).
	JWTSecret string

	// JWTIssuer is the issuer claim in JWT tokens (default: "gatekeeper").
	JWTIssuer string

	// AccessTokenTTL is the lifetime of access tokens (default: 30 minutes).
	AccessTokenTTL time.Duration

	// RefreshTokenTTL is the lifetime of refresh tokens (default: 30 days).
	RefreshTokenTTL time.Duration

	// ResetPasswordTTL is the lifetime of password reset tokens (default: 10 minutes).
	ResetPasswordTTL time.Duration

	// VerifyEmailTTL is the lifetime of email verification codes (default: 10 minutes).
	VerifyEmailTTL time.Duration

	// VerifyOTPTTL is the lifetime of login passcodes (default: 10 minutes).
	VerifyOTPTTL time.Duration

	// UpdateEmailTTL is the lifetime of email change codes (default: 10 minutes).
	UpdateEmailTTL time.Duration

	// InviteTTL is the lifetime of console invite tokens (default: 72 hours).
	InviteTTL time.Duration

	// Email enables outbound notifications (optional).
	Email *EmailConfig

	// Logger is the structured logger (default: JSON to stdout).
	Logger *slog.Logger
}

// EmailConfig holds SMTP configuration.
type EmailConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
	FromName string
}

// Gatekeeper is the main authentication instance.
type Gatekeeper struct {
	config         Config
	db             *sql.DB
	tokenService   *auth.TokenService
	portalService  *auth.PortalService
	consoleService *auth.ConsoleService
}

// New creates a new Gatekeeper instance with the given configuration.
// Returns an error if required database tables don't exist.
// Run migrations first - see migrations/ folder for SQL files.
func New(cfg Config) (*Gatekeeper, error) {
	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)

	if err := validateSchema(cfg.DB); err != nil {
		return nil, err
	}

	portalUsersRepo := repository.NewPortalUsersRepository(cfg.DB)
	consoleUsersRepo := repository.NewConsoleUsersRepository(cfg.DB)
	appsRepo := repository.NewAppsRepository(cfg.DB)

	var store auth.TokenStore
	if cfg.Redis != nil {
		store = repository.NewRedisTokensRepository(cfg.Redis)
	} else {
		store = repository.NewTokensRepository(cfg.DB)
	}

	tokenService := auth.NewTokenService(tokenConfig(cfg), store)

	var emailSender auth.EmailSender
	if cfg.Email != nil {
		emailSender = notification.NewEmailService(notification.EmailConfig{
			Host:     cfg.Email.Host,
			Port:     cfg.Email.Port,
			User:     cfg.Email.User,
			Password: cfg.Email.Password,
			From:     cfg.Email.From,
			FromName: cfg.Email.FromName,
		})
	}

	portalService := auth.NewPortalService(portalUsersRepo, appsRepo, tokenService, emailSender, cfg.Logger)
	consoleService := auth.NewConsoleService(consoleUsersRepo, appsRepo, tokenService, emailSender, cfg.Logger)

	return &Gatekeeper{
		config:         cfg,
		db:             cfg.DB,
		tokenService:   tokenService,
		portalService:  portalService,
		consoleService: consoleService,
	}, nil
}

// Router returns an http.Handler with all auth routes registered.
//
// Routes are grouped per tenant app slug:
//
//	POST /v1/portal/{app}/auth/register
//	POST /v1/portal/{app}/auth/login
//	POST /v1/portal/{app}/auth/verify-otp
//	POST /v1/portal/{app}/auth/refresh
//	POST /v1/portal/{app}/auth/logout
//	...
//	POST /v1/console/{app}/auth/login
//	POST /v1/console/{app}/auth/invite
//	POST /v1/console/{app}/auth/accept-invite
func (g *Gatekeeper) Router() http.Handler {
	return httpserver.NewRouter(httpserver.RouterConfig{
		Logger:         g.config.Logger,
		TokenService:   g.tokenService,
		PortalService:  g.portalService,
		ConsoleService: g.consoleService,
	})
}

// TokenService returns the token service for advanced usage.
func (g *Gatekeeper) TokenService() *auth.TokenService {
	return g.tokenService
}

// PortalService returns the portal auth service for advanced usage.
func (g *Gatekeeper) PortalService() *auth.PortalService {
	return g.portalService
}

// ConsoleService returns the console auth service for advanced usage.
func (g *Gatekeeper) ConsoleService() *auth.ConsoleService {
	return g.consoleService
}

// AuthMiddleware returns middleware that validates bearer access tokens.
// Use this to protect your own routes:
//
//	r.Group(func(r chi.Router) {
//	    r.Use(gk.AuthMiddleware())
//	    r.Get("/protected", handler)
//	})
func (g *Gatekeeper) AuthMiddleware() func(http.Handler) http.Handler {
	return middleware.Auth(g.tokenService)
}

// GetUserID extracts the authenticated user ID from a context.
// Use after AuthMiddleware.
func GetUserID(ctx context.Context) (uuid.UUID, bool) {
	return middleware.GetUserID(ctx)
}

// tokenConfig maps the facade config onto the token service config. Zero
// TTLs fall back to the service defaults.
func tokenConfig(cfg Config) auth.TokenConfig {
	return auth.TokenConfig{
		Secret:           []byte(cfg.JWTSecret),
		Issuer:           cfg.JWTIssuer,
		AccessTokenTTL:   cfg.AccessTokenTTL,
		RefreshTokenTTL:  cfg.RefreshTokenTTL,
		ResetPasswordTTL: cfg.ResetPasswordTTL,
		VerifyEmailTTL:   cfg.VerifyEmailTTL,
		VerifyOTPTTL:     cfg.VerifyOTPTTL,
		UpdateEmailTTL:   cfg.UpdateEmailTTL,
		InviteTTL:        cfg.InviteTTL,
	}
}

func validateConfig(cfg *Config) error {
	if cfg.DB == nil {
		return errors.New("gatekeeper: DB is required")
	}
	if cfg.JWTSecret == "" {
		return errors.New("gatekeeper: JWTSecret is required")
	}
	if len(cfg.JWTSecret) < 32 {
		return errors.New("gatekeeper: JWTSecret must be at least 32 characters")
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.JWTIssuer == "" {
		cfg.JWTIssuer = "gatekeeper"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewJSONHandler(os.Stdout, nil))
	}
}

// validateSchema checks that required database tables exist.
func validateSchema(db *sql.DB) error {
	requiredTables := []string{"apps", "portal_users", "console_users", "tokens"}

	query := `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = 'public' AND table_name = $1
	`

	for _, table := range requiredTables {
		var name string
		err := db.QueryRow(query, table).Scan(&name)
		if err == sql.ErrNoRows {
			return fmt.Errorf("gatekeeper: missing table '%s' - run migrations first (see migrations/ folder)", table)
		}
		if err != nil {
			return fmt.Errorf("gatekeeper: failed to check schema: %w", err)
		}
	}

	return nil
}
