package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/humanize/server/internal/model"
)

const (
	resetTokenTTL        = time.Hour
	purposePasswordReset = "password_reset"
)

var (
	// ErrInvalidToken covers bad signature, expiry and malformed input.
	ErrInvalidToken = errors.New("invalid token")
	// ErrWrongPurpose is returned when a reset token's purpose claim is
	// absent or does not match.
	ErrWrongPurpose = errors.New("wrong token purpose")
)

// Claims represents the JWT token claims for access, refresh and reset tokens
type Claims struct {
	UserID      uuid.UUID         `json:"sub"`
	Email       string            `json:"email,omitempty"`
	AccountType model.AccountType `json:"account_type,omitempty"`
	Purpose     string            `json:"purpose,omitempty"`
	jwt.RegisteredClaims
}

// TokenService issues and verifies signed, time-boxed tokens. Access and
// refresh tokens use distinct secrets so possession of one kind can never
// mint the other. Verification is stateless; expiry lives in the claims.
type TokenService struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
}

// NewTokenService creates a new token service
func NewTokenService(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration) *TokenService {
	return &TokenService{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
	}
}

// IssueAccessToken creates a short-lived access token for an account
func (s *TokenService) IssueAccessToken(userID uuid.UUID, email string, accountType model.AccountType) (string, time.Time, error) {
	return s.sign(s.accessSecret, s.accessTTL, Claims{
		UserID:      userID,
		Email:       email,
		AccountType: accountType,
	})
}

// IssueRefreshToken creates a long-lived refresh token for an account
func (s *TokenService) IssueRefreshToken(userID uuid.UUID, email string, accountType model.AccountType) (string, time.Time, error) {
	return s.sign(s.refreshSecret, s.refreshTTL, Claims{
		UserID:      userID,
		Email:       email,
		AccountType: accountType,
	})
}

// IssuePasswordResetToken creates a single-purpose token with a 1-hour expiry.
// It is signed with the access secret but carries a purpose tag so it can
// never be replayed as an access token.
func (s *TokenService) IssuePasswordResetToken(userID uuid.UUID) (string, error) {
	token, _, err := s.sign(s.accessSecret, resetTokenTTL, Claims{
		UserID:  userID,
		Purpose: purposePasswordReset,
	})
	return token, err
}

// VerifyAccessToken verifies and parses an access token
func (s *TokenService) VerifyAccessToken(tokenString string) (*Claims, error) {
	claims, err := s.verify(s.accessSecret, tokenString)
	if err != nil {
		return nil, err
	}
	// A purpose-tagged token is never a valid access token.
	if claims.Purpose != "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// VerifyRefreshToken verifies and parses a refresh token
func (s *TokenService) VerifyRefreshToken(tokenString string) (*Claims, error) {
	return s.verify(s.refreshSecret, tokenString)
}

// VerifyPasswordResetToken verifies a reset token and returns the subject id
func (s *TokenService) VerifyPasswordResetToken(tokenString string) (uuid.UUID, error) {
	claims, err := s.verify(s.accessSecret, tokenString)
	if err != nil {
		return uuid.Nil, err
	}
	if claims.Purpose != purposePasswordReset {
		return uuid.Nil, ErrWrongPurpose
	}
	return claims.UserID, nil
}

func (s *TokenService) sign(secret []byte, ttl time.Duration, claims Claims) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(ttl)
	claims.RegisteredClaims = jwt.RegisteredClaims{
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &claims)
	tokenString, err := token.SignedString(secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return tokenString, expiresAt, nil
}

func (s *TokenService) verify(secret []byte, tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
