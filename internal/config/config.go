package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds the application configuration
type Config struct {
	DatabaseURL      string
	Port             string
	JWTSecret        string
	JWTRefreshSecret string
	AccessTokenTTL   time.Duration
	RefreshTokenTTL  time.Duration
	OTPLength        int
	SMSAPIKey        string
	SMSSenderName    string
	AppEnv           string
}

// Production reports whether the server runs with production hardening
// (OTP codes are never echoed in responses).
func (c *Config) Production() bool {
	return c.AppEnv == "production"
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Port:            "8080",
		AccessTokenTTL:  24 * time.Hour,
		RefreshTokenTTL: 7 * 24 * time.Hour,
		OTPLength:       6,
		SMSSenderName:   "humanize",
		AppEnv:          "development",
	}

	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is required")
	}
	cfg.DatabaseURL = databaseURL

	if port := os.Getenv("PORT"); port != "" {
		cfg.Port = port
	}

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET environment variable is required")
	}
	cfg.JWTSecret = jwtSecret

	// Refresh tokens are signed with their own secret so leaking one kind of
	// token never allows minting the other.
	refreshSecret := os.Getenv("JWT_REFRESH_SECRET")
	if refreshSecret == "" {
		return nil, fmt.Errorf("JWT_REFRESH_SECRET environment variable is required")
	}
	if refreshSecret == jwtSecret {
		return nil, fmt.Errorf("JWT_REFRESH_SECRET must differ from JWT_SECRET")
	}
	cfg.JWTRefreshSecret = refreshSecret

	if v := os.Getenv("JWT_EXPIRES_IN"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid JWT_EXPIRES_IN: %w", err)
		}
		cfg.AccessTokenTTL = d
	}
	if v := os.Getenv("JWT_REFRESH_EXPIRES_IN"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid JWT_REFRESH_EXPIRES_IN: %w", err)
		}
		cfg.RefreshTokenTTL = d
	}

	if v := os.Getenv("OTP_LENGTH"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 4 || n > 10 {
			return nil, fmt.Errorf("invalid OTP_LENGTH %q (want 4..10)", v)
		}
		cfg.OTPLength = n
	}

	// SMS credentials are optional: without them OTP delivery degrades to a
	// logged no-op instead of failing the registration flow.
	cfg.SMSAPIKey = os.Getenv("MPP_API_KEY")
	if v := os.Getenv("MPP_SENDER_NAME"); v != "" {
		cfg.SMSSenderName = v
	}

	if v := os.Getenv("APP_ENV"); v != "" {
		cfg.AppEnv = v
	}

	return cfg, nil
}
