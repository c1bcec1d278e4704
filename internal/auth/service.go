package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/humanize/server/internal/model"
	"github.com/humanize/server/internal/repo"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// bcryptCost is the work factor for stored password hashes.
const bcryptCost = 12

var (
	// ErrEmailTaken is returned when registering with an email that already
	// has an account.
	ErrEmailTaken = errors.New("user with this email already exists")
	// ErrInvalidCredentials covers absent account, deactivated account and
	// password mismatch. A single error for all three so login responses
	// never reveal whether an email is registered.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrInvalidRefreshToken is returned when a refresh token is invalid,
	// expired, or references a missing/inactive account.
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	// ErrInvalidResetToken is returned for invalid, expired or wrong-purpose
	// password-reset tokens.
	ErrInvalidResetToken = errors.New("invalid or expired reset token")
	// ErrWrongPassword is returned when the current password check fails on
	// a password change.
	ErrWrongPassword = errors.New("current password is incorrect")
	// ErrInvalidAccountType is returned when registering with an unknown
	// account type.
	ErrInvalidAccountType = errors.New("invalid account type")
)

// TokenPair is an access/refresh token pair issued on register and login.
type TokenPair struct {
	Access  string
	Refresh string
}

// Service orchestrates credential and session operations
type Service struct {
	users  repo.UserRepo
	tokens *TokenService
	log    *zap.Logger
}

// NewService creates a new auth service
func NewService(users repo.UserRepo, tokens *TokenService, log *zap.Logger) *Service {
	return &Service{users: users, tokens: tokens, log: log}
}

// Register creates an account and issues a token pair
func (s *Service) Register(ctx context.Context, email, password, name string, accountType model.AccountType) (model.User, TokenPair, error) {
	email = normalizeEmail(email)
	if !accountType.Valid() {
		return model.User{}, TokenPair{}, ErrInvalidAccountType
	}

	_, err := s.users.GetByEmail(ctx, email)
	switch {
	case err == nil:
		return model.User{}, TokenPair{}, ErrEmailTaken
	case !errors.Is(err, repo.ErrNotFound):
		return model.User{}, TokenPair{}, fmt.Errorf("lookup email: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return model.User{}, TokenPair{}, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.users.Create(ctx, email, name, string(hash), accountType)
	if err != nil {
		return model.User{}, TokenPair{}, fmt.Errorf("create user: %w", err)
	}

	pair, err := s.issuePair(user)
	if err != nil {
		return model.User{}, TokenPair{}, err
	}

	s.log.Info("account registered",
		zap.String("user_id", user.ID.String()),
		zap.String("account_type", string(user.AccountType)))
	return user, pair, nil
}

// Login verifies credentials and issues a fresh token pair
func (s *Service) Login(ctx context.Context, email, password string) (model.User, TokenPair, error) {
	email = normalizeEmail(email)

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return model.User{}, TokenPair{}, ErrInvalidCredentials
		}
		return model.User{}, TokenPair{}, fmt.Errorf("lookup email: %w", err)
	}

	if !user.IsActive {
		return model.User{}, TokenPair{}, ErrInvalidCredentials
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return model.User{}, TokenPair{}, ErrInvalidCredentials
	}

	now := time.Now()
	if err := s.users.UpdateLastLogin(ctx, user.ID, now); err != nil {
		return model.User{}, TokenPair{}, fmt.Errorf("update last login: %w", err)
	}
	user.LastLogin = &now

	pair, err := s.issuePair(user)
	if err != nil {
		return model.User{}, TokenPair{}, err
	}
	return user, pair, nil
}

// Refresh verifies a refresh token and issues a new access token only; the
// refresh token is not rotated.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (string, time.Time, error) {
	claims, err := s.tokens.VerifyRefreshToken(refreshToken)
	if err != nil {
		return "", time.Time{}, ErrInvalidRefreshToken
	}

	user, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		return "", time.Time{}, ErrInvalidRefreshToken
	}
	if !user.IsActive {
		return "", time.Time{}, ErrInvalidRefreshToken
	}

	access, expiresAt, err := s.tokens.IssueAccessToken(user.ID, user.Email, user.AccountType)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("issue access token: %w", err)
	}
	return access, expiresAt, nil
}

// ForgotPassword issues a reset token when the account exists. It never
// reports whether the email is registered; the handler always returns the
// same generic message. Email delivery is out of scope, the token is logged.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	email = normalizeEmail(email)

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("lookup email: %w", err)
	}

	token, err := s.tokens.IssuePasswordResetToken(user.ID)
	if err != nil {
		return fmt.Errorf("issue reset token: %w", err)
	}

	s.log.Info("password reset token issued",
		zap.String("user_id", user.ID.String()),
		zap.String("reset_token", token))
	return nil
}

// ResetPassword verifies a reset-purpose token and stores a new password hash
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	userID, err := s.tokens.VerifyPasswordResetToken(token)
	if err != nil {
		return ErrInvalidResetToken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcryptCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	if err := s.users.UpdatePassword(ctx, userID, string(hash)); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrInvalidResetToken
		}
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

// ChangePassword verifies the current password and stores a new hash
func (s *Service) ChangePassword(ctx context.Context, userID uuid.UUID, currentPassword, newPassword string) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("lookup user: %w", err)
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(currentPassword)) != nil {
		return ErrWrongPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcryptCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	if err := s.users.UpdatePassword(ctx, userID, string(hash)); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

// Profile returns the account for an authenticated subject
func (s *Service) Profile(ctx context.Context, userID uuid.UUID) (model.User, error) {
	return s.users.GetByID(ctx, userID)
}

func (s *Service) issuePair(user model.User) (TokenPair, error) {
	access, _, err := s.tokens.IssueAccessToken(user.ID, user.Email, user.AccountType)
	if err != nil {
		return TokenPair{}, fmt.Errorf("issue access token: %w", err)
	}
	refresh, _, err := s.tokens.IssueRefreshToken(user.ID, user.Email, user.AccountType)
	if err != nil {
		return TokenPair{}, fmt.Errorf("issue refresh token: %w", err)
	}
	return TokenPair{Access: access, Refresh: refresh}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
