package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/humanize/server/internal/auth"
	"github.com/humanize/server/internal/model"
	"github.com/humanize/server/internal/repo"
)

type memUserRepo struct {
	byID    map[uuid.UUID]model.User
	byEmail map[string]uuid.UUID
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{byID: make(map[uuid.UUID]model.User), byEmail: make(map[string]uuid.UUID)}
}

func (m *memUserRepo) GetByID(_ context.Context, id uuid.UUID) (model.User, error) {
	u, ok := m.byID[id]
	if !ok {
		return model.User{}, repo.ErrNotFound
	}
	return u, nil
}

func (m *memUserRepo) GetByEmail(_ context.Context, email string) (model.User, error) {
	id, ok := m.byEmail[email]
	if !ok {
		return model.User{}, repo.ErrNotFound
	}
	return m.byID[id], nil
}

func (m *memUserRepo) Create(_ context.Context, email, name, passwordHash string, accountType model.AccountType) (model.User, error) {
	u := model.User{
		ID:           uuid.New(),
		Email:        email,
		Name:         name,
		PasswordHash: passwordHash,
		AccountType:  accountType,
		IsActive:     true,
		DateJoined:   time.Now(),
	}
	m.byID[u.ID] = u
	m.byEmail[email] = u.ID
	return u, nil
}

func (m *memUserRepo) UpdateLastLogin(_ context.Context, id uuid.UUID, at time.Time) error {
	u, ok := m.byID[id]
	if !ok {
		return repo.ErrNotFound
	}
	u.LastLogin = &at
	m.byID[id] = u
	return nil
}

func (m *memUserRepo) UpdatePassword(_ context.Context, id uuid.UUID, hash string) error {
	u, ok := m.byID[id]
	if !ok {
		return repo.ErrNotFound
	}
	u.PasswordHash = hash
	m.byID[id] = u
	return nil
}

func newAuthHandlerForTest() *AuthHandler {
	tokens := auth.NewTokenService("test-access-secret", "test-refresh-secret", time.Hour, 24*time.Hour)
	svc := auth.NewService(newMemUserRepo(), tokens, zap.NewNop())
	return NewAuthHandler(svc, zap.NewNop())
}

func postJSON(t *testing.T, handler http.HandlerFunc, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func TestHandleRegister(t *testing.T) {
	h := newAuthHandlerForTest()

	rec := postJSON(t, h.HandleRegister, "/auth/register", map[string]string{
		"name":         "Alice",
		"email":        "alice@example.com",
		"password1":    "s3cret-pass",
		"password2":    "s3cret-pass",
		"account_type": "human",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp tokenPairResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Access)
	assert.NotEmpty(t, resp.Refresh)
	assert.Equal(t, "alice@example.com", resp.User.Email)
	assert.Equal(t, "human", resp.User.AccountType)

	// Same email again conflicts.
	rec = postJSON(t, h.HandleRegister, "/auth/register", map[string]string{
		"name":         "Alice2",
		"email":        "alice@example.com",
		"password1":    "s3cret-pass",
		"password2":    "s3cret-pass",
		"account_type": "human",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestHandleRegister_badInput(t *testing.T) {
	h := newAuthHandlerForTest()

	rec := postJSON(t, h.HandleRegister, "/auth/register", map[string]string{
		"name":         "Alice",
		"email":        "alice@example.com",
		"password1":    "one-password",
		"password2":    "another-password",
		"account_type": "human",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "password mismatch")

	rec = postJSON(t, h.HandleRegister, "/auth/register", map[string]string{
		"name":         "Alice",
		"email":        "alice@example.com",
		"password1":    "s3cret-pass",
		"password2":    "s3cret-pass",
		"account_type": "robot",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "unknown account type")
}

func TestHandleLoginAndRefresh(t *testing.T) {
	h := newAuthHandlerForTest()

	rec := postJSON(t, h.HandleRegister, "/auth/register", map[string]string{
		"name":         "Alice",
		"email":        "alice@example.com",
		"password1":    "s3cret-pass",
		"password2":    "s3cret-pass",
		"account_type": "human",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = postJSON(t, h.HandleLogin, "/auth/login", map[string]string{
		"email":    "alice@example.com",
		"password": "s3cret-pass",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var pair tokenPairResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &pair))

	rec = postJSON(t, h.HandleRefresh, "/auth/token/refresh", map[string]string{
		"refreshToken": pair.Refresh,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var refreshed map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &refreshed))
	assert.NotEmpty(t, refreshed["access"])

	rec = postJSON(t, h.HandleRefresh, "/auth/token/refresh", map[string]string{
		"refreshToken": pair.Access,
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "access token is not a refresh token")
}

func TestHandleLogin_wrongCredentials(t *testing.T) {
	h := newAuthHandlerForTest()

	rec := postJSON(t, h.HandleLogin, "/auth/login", map[string]string{
		"email":    "nobody@example.com",
		"password": "whatever",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "invalid email or password", body["error"])
}

// The forgot-password response never reveals whether the email exists.
func TestHandleForgotPassword_genericResponse(t *testing.T) {
	h := newAuthHandlerForTest()

	rec := postJSON(t, h.HandleRegister, "/auth/register", map[string]string{
		"name":         "Alice",
		"email":        "alice@example.com",
		"password1":    "s3cret-pass",
		"password2":    "s3cret-pass",
		"account_type": "human",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	known := postJSON(t, h.HandleForgotPassword, "/auth/password/reset", map[string]string{
		"email": "alice@example.com",
	})
	unknown := postJSON(t, h.HandleForgotPassword, "/auth/password/reset", map[string]string{
		"email": "nobody@example.com",
	})

	assert.Equal(t, http.StatusOK, known.Code)
	assert.Equal(t, http.StatusOK, unknown.Code)
	assert.Equal(t, known.Body.String(), unknown.Body.String())
}
