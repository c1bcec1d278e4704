package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/humanize/server/internal/auth"
	"github.com/humanize/server/internal/middleware"
	"github.com/humanize/server/internal/model"
	"go.uber.org/zap"
)

// AuthHandler handles authentication endpoints
type AuthHandler struct {
	authService *auth.Service
	log         *zap.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(authService *auth.Service, log *zap.Logger) *AuthHandler {
	return &AuthHandler{authService: authService, log: log}
}

// userResponse is the public account view in API responses
type userResponse struct {
	ID          string     `json:"id"`
	Email       string     `json:"email"`
	Name        string     `json:"name"`
	AccountType string     `json:"accountType"`
	DateJoined  *time.Time `json:"dateJoined,omitempty"`
	LastLogin   *time.Time `json:"lastLogin,omitempty"`
}

func toUserResponse(u model.User) userResponse {
	return userResponse{
		ID:          u.ID.String(),
		Email:       u.Email,
		Name:        u.Name,
		AccountType: string(u.AccountType),
	}
}

// tokenPairResponse carries tokens plus the account view
type tokenPairResponse struct {
	Access  string       `json:"access"`
	Refresh string       `json:"refresh"`
	User    userResponse `json:"user"`
}

type registerRequest struct {
	Name        string `json:"name"`
	Email       string `json:"email"`
	Password1   string `json:"password1"`
	Password2   string `json:"password2"`
	AccountType string `json:"account_type"`
}

// HandleRegister handles POST /auth/register
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || req.Password1 == "" || req.Name == "" {
		respondWithError(w, http.StatusBadRequest, "name, email and password are required")
		return
	}
	if req.Password1 != req.Password2 {
		respondWithError(w, http.StatusBadRequest, "passwords do not match")
		return
	}

	user, pair, err := h.authService.Register(r.Context(), req.Email, req.Password1, req.Name, model.AccountType(req.AccountType))
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrEmailTaken):
			respondWithError(w, http.StatusConflict, err.Error())
		case errors.Is(err, auth.ErrInvalidAccountType):
			respondWithError(w, http.StatusBadRequest, err.Error())
		default:
			h.log.Error("register failed", zap.Error(err))
			respondWithError(w, http.StatusInternalServerError, "registration failed")
		}
		return
	}

	respondJSON(w, http.StatusCreated, tokenPairResponse{
		Access:  pair.Access,
		Refresh: pair.Refresh,
		User:    toUserResponse(user),
	})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// HandleLogin handles POST /auth/login
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, pair, err := h.authService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			respondWithError(w, http.StatusUnauthorized, err.Error())
			return
		}
		h.log.Error("login failed", zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "login failed")
		return
	}

	respondJSON(w, http.StatusOK, tokenPairResponse{
		Access:  pair.Access,
		Refresh: pair.Refresh,
		User:    toUserResponse(user),
	})
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// HandleRefresh handles POST /auth/token/refresh. Only a new access token is
// issued; the refresh token is not rotated.
func (h *AuthHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.RefreshToken = strings.TrimSpace(req.RefreshToken)
	if req.RefreshToken == "" {
		respondWithError(w, http.StatusBadRequest, "refreshToken is required")
		return
	}

	access, _, err := h.authService.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidRefreshToken) {
			respondWithError(w, http.StatusUnauthorized, err.Error())
			return
		}
		h.log.Error("refresh failed", zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "refresh failed")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"access": access})
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

// HandleForgotPassword handles POST /auth/password/reset. The response is
// identical whether or not the email has an account.
func (h *AuthHandler) HandleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req forgotPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.authService.ForgotPassword(r.Context(), req.Email); err != nil {
		h.log.Error("forgot password failed", zap.Error(err))
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"message": "If an account exists with this email, you will receive a password reset link",
	})
}

type resetPasswordRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

// HandleResetPassword handles POST /auth/password/reset/confirm
func (h *AuthHandler) HandleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Token == "" || req.Password == "" {
		respondWithError(w, http.StatusBadRequest, "token and password are required")
		return
	}

	if err := h.authService.ResetPassword(r.Context(), req.Token, req.Password); err != nil {
		if errors.Is(err, auth.ErrInvalidResetToken) {
			respondWithError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.log.Error("reset password failed", zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "reset failed")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"message": "Password reset successfully"})
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// HandleChangePassword handles POST /auth/password/change (protected)
func (h *AuthHandler) HandleChangePassword(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req changePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.CurrentPassword == "" || req.NewPassword == "" {
		respondWithError(w, http.StatusBadRequest, "currentPassword and newPassword are required")
		return
	}

	if err := h.authService.ChangePassword(r.Context(), user.ID, req.CurrentPassword, req.NewPassword); err != nil {
		if errors.Is(err, auth.ErrWrongPassword) {
			respondWithError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.log.Error("change password failed", zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "change password failed")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"message": "Password changed successfully"})
}

// HandleMe handles GET /auth/user (protected)
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	view := toUserResponse(*user)
	view.DateJoined = &user.DateJoined
	view.LastLogin = user.LastLogin
	respondJSON(w, http.StatusOK, view)
}

// HandleLogout handles POST /auth/logout (protected). Tokens are stateless,
// the client just discards them.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"message": "Logged out successfully"})
}
