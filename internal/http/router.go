package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/haqqman/gatekeeper/internal/http/features/consoleauth"
	"github.com/haqqman/gatekeeper/internal/http/features/portalauth"
	"github.com/haqqman/gatekeeper/internal/http/middleware"
	"github.com/haqqman/gatekeeper/internal/httputil"
	"github.com/haqqman/gatekeeper/pkg/auth"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Logger         *slog.Logger
	TokenService   *auth.TokenService
	PortalService  *auth.PortalService
	ConsoleService *auth.ConsoleService
}

// NewRouter creates a new HTTP router with all routes registered.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Apply global middleware
	r.Use(middleware.Recover(cfg.Logger))
	r.Use(middleware.Logging(cfg.Logger))
	r.Use(middleware.SecurityHeaders())

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	rateLimiters := middleware.CreateRateLimiters(cfg.Logger)
	requireAuth := middleware.Auth(cfg.TokenService)

	// Portal routes
	portalHandler := portalauth.NewHandler(cfg.Logger, cfg.PortalService)
	r.Route("/v1/portal/{app}/auth", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(rateLimiters["auth"])
			r.Post("/register", portalHandler.Register)
			r.Post("/login", portalHandler.Login)
			r.Post("/verify-otp", portalHandler.VerifyOTP)
		})
		r.Group(func(r chi.Router) {
			r.Use(rateLimiters["refresh"])
			r.Post("/refresh", portalHandler.Refresh)
		})
		r.Post("/logout", portalHandler.Logout)
		r.Group(func(r chi.Router) {
			r.Use(rateLimiters["reset"])
			r.Post("/reset-password/request", portalHandler.RequestPasswordReset)
			r.Post("/reset-password/confirm", portalHandler.ConfirmPasswordReset)
		})
		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			r.Use(rateLimiters["verify"])
			r.Post("/verify-email/send", portalHandler.SendVerificationEmail)
			r.Post("/verify-email", portalHandler.VerifyEmail)
			r.Post("/update-email/request", portalHandler.RequestEmailUpdate)
		})
		r.With(rateLimiters["verify"]).Post("/update-email/confirm", portalHandler.ConfirmEmailUpdate)
		r.With(requireAuth).Patch("/otp-option", portalHandler.UpdateOTPOption)
	})

	// Console routes
	consoleHandler := consoleauth.NewHandler(cfg.Logger, cfg.ConsoleService)
	r.Route("/v1/console/{app}/auth", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(rateLimiters["auth"])
			r.Post("/login", consoleHandler.Login)
			r.Post("/verify-otp", consoleHandler.VerifyOTP)
			r.Post("/accept-invite", consoleHandler.AcceptInvite)
		})
		r.Group(func(r chi.Router) {
			r.Use(rateLimiters["refresh"])
			r.Post("/refresh", consoleHandler.Refresh)
		})
		r.Post("/logout", consoleHandler.Logout)
		r.Group(func(r chi.Router) {
			r.Use(rateLimiters["reset"])
			r.Post("/reset-password/request", consoleHandler.RequestPasswordReset)
			r.Post("/reset-password/confirm", consoleHandler.ConfirmPasswordReset)
		})
		r.With(requireAuth).Post("/invite", consoleHandler.Invite)
	})

	return r
}
