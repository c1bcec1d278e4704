package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"

	"github.com/humanize/server/internal/auth"
	"github.com/humanize/server/internal/config"
	"github.com/humanize/server/internal/db"
	httpserver "github.com/humanize/server/internal/http"
	"github.com/humanize/server/internal/http/handlers"
	"github.com/humanize/server/internal/registration"
	"github.com/humanize/server/internal/repo"
	"github.com/humanize/server/internal/sms"

	_ "github.com/lib/pq"
)

func main() {
	// Load .env from CWD or server/ so it works from repo root or server/
	// (env vars override)
	_ = godotenv.Load(".env")
	_ = godotenv.Load("server/.env")

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync() //nolint:errcheck

	ctx := context.Background()

	database, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("failed to open database", zap.Error(err))
	}
	defer database.Close()

	if err := runMigrations(database, logger); err != nil {
		logger.Fatal("failed to run migrations", zap.Error(err))
	}

	// Repositories
	userRepo := repo.NewUserRepo(database)
	regRepos := registration.Repos{
		Registrations: repo.NewRegistrationRepo(database),
		Profiles:      repo.NewProfileRepo(database),
		Modelings:     repo.NewModelingRepo(database),
		Verifications: repo.NewVerificationRepo(database),
		Phones:        repo.NewPhoneVerificationRepo(database),
	}

	// Services
	tokens := auth.NewTokenService(cfg.JWTSecret, cfg.JWTRefreshSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	authService := auth.NewService(userRepo, tokens, logger)
	smsClient := sms.NewClient(cfg.SMSAPIKey, cfg.SMSSenderName, logger)
	regService := registration.NewService(regRepos, smsClient, cfg.OTPLength, !cfg.Production(), logger)

	// Handlers and router
	authHandler := handlers.NewAuthHandler(authService, logger)
	regHandler := handlers.NewRegistrationHandler(regService, logger)
	router := httpserver.NewRouter(authHandler, regHandler, tokens, userRepo)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		logger.Info("server starting", zap.String("port", cfg.Port), zap.String("env", cfg.AppEnv))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed to start", zap.Error(err))
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("server forced to shutdown", zap.Error(err))
	}

	logger.Info("server exited")
}

// newLogger builds a zap logger matching the runtime environment.
func newLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.Production() {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

// runMigrations runs database migrations using goose
func runMigrations(database *sql.DB, logger *zap.Logger) error {
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	// Resolve migration dir so it works from server/ or repo root
	migrationDir := "internal/db/migrations"
	if info, err := os.Stat(migrationDir); err != nil || !info.IsDir() {
		migrationDir = "server/internal/db/migrations"
	}
	if info, err := os.Stat(migrationDir); err != nil || !info.IsDir() {
		return fmt.Errorf("migrations directory not found (run from server/ or repo root)")
	}

	logger.Info("running migrations", zap.String("dir", migrationDir))
	if err := goose.Up(database, migrationDir); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}
