package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/haqqman/gatekeeper/internal/config"
	httpserver "github.com/haqqman/gatekeeper/internal/http"
	"github.com/haqqman/gatekeeper/internal/notification"
	"github.com/haqqman/gatekeeper/pkg/auth"
	"github.com/haqqman/gatekeeper/pkg/repository"
)

func main() {
	// Load .env file if present (ignore error if not found)
	_ = godotenv.Load()

	// Setup logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Connect to database
	db, err := repository.NewDB(repository.DBConfig{
		Host:     cfg.DBHost,
		Port:     cfg.DBPort,
		User:     cfg.DBUser,
		Password: cfg.DBPassword,
		Name:     cfg.DBName,
		SSLMode:  cfg.DBSSLMode,
	})
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	logger.Info("connected to database")

	// Initialize repositories
	portalUsersRepo := repository.NewPortalUsersRepository(db)
	consoleUsersRepo := repository.NewConsoleUsersRepository(db)
	appsRepo := repository.NewAppsRepository(db)

	// Token store backend
	var store auth.TokenStore
	if cfg.TokenStore == config.TokenStoreRedis {
		client := redis.NewClient(&redis.Options{
			Addr: cfg.RedisAddr,
			DB:   cfg.RedisDB,
		})
		if err := client.Ping(context.Background()).Err(); err != nil {
			logger.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
		store = repository.NewRedisTokensRepository(client)
		logger.Info("token store: redis", "addr", cfg.RedisAddr)
	} else {
		store = repository.NewTokensRepository(db)
		logger.Info("token store: postgres")
	}

	// Initialize services
	tokenService := auth.NewTokenService(auth.TokenConfig{
		Secret:           []byte(cfg.JWTSecret),
		Issuer:           cfg.JWTIssuer,
		AccessTokenTTL:   cfg.AccessTokenTTL,
		RefreshTokenTTL:  cfg.RefreshTokenTTL,
		ResetPasswordTTL: cfg.ResetPasswordTTL,
		VerifyEmailTTL:   cfg.VerifyEmailTTL,
		VerifyOTPTTL:     cfg.VerifyOTPTTL,
		UpdateEmailTTL:   cfg.UpdateEmailTTL,
		InviteTTL:        cfg.ConsoleInviteTTL,
	}, store)

	// Initialize email service if configured
	var emailSender auth.EmailSender
	if cfg.HasSMTP() {
		emailSender = notification.NewEmailService(notification.EmailConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			User:     cfg.SMTPUser,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
		})
		logger.Info("email service enabled")
	}

	portalService := auth.NewPortalService(portalUsersRepo, appsRepo, tokenService, emailSender, logger)
	consoleService := auth.NewConsoleService(consoleUsersRepo, appsRepo, tokenService, emailSender, logger)

	// Create router
	router := httpserver.NewRouter(httpserver.RouterConfig{
		Logger:         logger,
		TokenService:   tokenService,
		PortalService:  portalService,
		ConsoleService: consoleService,
	})

	// Create HTTP server
	addr := fmt.Sprintf("%s:%d", cfg.ServerAddr, cfg.ServerPort)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("starting server", "addr", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	logger.Info("server stopped")
}
