package router

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"go-freelance/internal/config"
	"go-freelance/internal/event"
	"go-freelance/internal/handler"
	"go-freelance/internal/metrics"
	"go-freelance/internal/middleware"
	"go-freelance/internal/model"
	"go-freelance/internal/ratelimit"
	"go-freelance/internal/repository"
	"go-freelance/internal/service"
	"go-freelance/internal/websocket"
)

type testAPI struct {
	handler http.Handler
	store   *repository.MemoryStore
	tokens  *service.TokenService
	cfg     service.TokenConfig
	auth    *service.AuthService
	notes   *service.NotificationService
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()

	cfg := &config.Config{
		Env:                config.EnvTest,
		RequestTimeout:     5 * time.Second,
		RateLimitRPM:       10000,
		AuthRateLimitRPM:   10000,
		IdentityRateLimit:  10000,
		IdentityRateWindow: time.Minute,
	}
	tokenCfg := service.TokenConfig{
		AccessSecret:  "router-access",
		RefreshSecret: "router-refresh",
		Issuer:        "freelance-api",
		Audience:      "freelance-clients",
	}

	m := metrics.New()
	store := repository.NewMemoryStore()
	bus := event.NewBus()
	tokens, err := service.NewTokenService(tokenCfg, service.NewPasswordHasher(bcrypt.MinCost, 4), store, m)
	require.NoError(t, err)
	notes := service.NewNotificationService(store, bus)
	authService := service.NewAuthService(store, tokens, notes, m)

	hub := websocket.NewHub(bus, nil, m)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	h := New(cfg, middleware.NewAuthMiddleware(authService), ratelimit.NewMemoryStore(), m, Handlers{
		Auth:         handler.NewAuthHandler(authService, true),
		User:         handler.NewUserHandler(authService),
		Notification: handler.NewNotificationHandler(notes),
		Admin:        handler.NewAdminHandler(tokens),
		Health:       handler.NewHealthHandler(nil),
		Docs:         handler.NewDocsHandler(),
		Socket:       websocket.NewHandler(hub, authService, nil),
	})

	return &testAPI{handler: h, store: store, tokens: tokens, cfg: tokenCfg, auth: authService, notes: notes}
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Code    string          `json:"code"`
	Data    json.RawMessage `json:"data"`
	Errors  []struct {
		Field   string `json:"field"`
		Message string `json:"message"`
	} `json:"errors"`
}

func (a *testAPI) do(t *testing.T, method string, path string, token string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	}
	return rec, env
}

func clientRegistration(email string) map[string]any {
	return map[string]any{
		"email":       email,
		"password":    "Abcdef12",
		"firstName":   "A",
		"lastName":    "B",
		"role":        "CLIENT",
		"companyName": "Acme",
	}
}

type authData struct {
	User         map[string]any `json:"user"`
	AccessToken  string         `json:"accessToken"`
	RefreshToken string         `json:"refreshToken"`
}

func (a *testAPI) register(t *testing.T, email string) authData {
	t.Helper()
	rec, env := a.do(t, http.MethodPost, "/api/auth/register", "", clientRegistration(email))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var data authData
	require.NoError(t, json.Unmarshal(env.Data, &data))
	return data
}

func TestRegisterScenario(t *testing.T) {
	api := newTestAPI(t)

	rec, env := api.do(t, http.MethodPost, "/api/auth/register", "", clientRegistration("a@b.com"))
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.True(t, env.Success)

	var data authData
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, "a@b.com", data.User["email"])
	assert.NotContains(t, data.User, "passwordHash")
	assert.NotContains(t, rec.Body.String(), "$2a$")
	assert.NotEmpty(t, data.AccessToken)
	assert.NotEmpty(t, data.RefreshToken)
	assert.NotEqual(t, data.AccessToken, data.RefreshToken)

	rec, env = api.do(t, http.MethodPost, "/api/auth/register", "", clientRegistration("A@B.com"))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "CONFLICT", env.Code)
}

func TestRegisterValidation(t *testing.T) {
	api := newTestAPI(t)

	body := clientRegistration("not-an-email")
	body["password"] = "short"
	delete(body, "companyName")

	rec, env := api.do(t, http.MethodPost, "/api/auth/register", "", body)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", env.Code)

	fields := map[string]bool{}
	for _, fe := range env.Errors {
		fields[fe.Field] = true
	}
	assert.True(t, fields["email"])
	assert.True(t, fields["password"])
	assert.True(t, fields["companyName"])

	rec, env = api.do(t, http.MethodPost, "/api/auth/register", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "BAD_REQUEST", env.Code)
}

func TestRegisterRejectsPasswordBeyondBcryptLimit(t *testing.T) {
	api := newTestAPI(t)

	body := clientRegistration("long@b.com")
	body["password"] = "Abcdef12" + strings.Repeat("x", 70)

	rec, env := api.do(t, http.MethodPost, "/api/auth/register", "", body)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", env.Code)
	require.Len(t, env.Errors, 1)
	assert.Equal(t, "password", env.Errors[0].Field)
	assert.Equal(t, "must be at most 72 bytes", env.Errors[0].Message)
}

func TestLoginScenario(t *testing.T) {
	api := newTestAPI(t)
	api.register(t, "login@b.com")

	recWrong, envWrong := api.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": "login@b.com", "password": "Wrongpass1"})
	recMissing, envMissing := api.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": "ghost@b.com", "password": "Abcdef12"})

	assert.Equal(t, http.StatusUnauthorized, recWrong.Code)
	assert.Equal(t, http.StatusUnauthorized, recMissing.Code)
	assert.Equal(t, envWrong.Message, envMissing.Message)
	assert.Equal(t, "Invalid email or password", envWrong.Message)

	rec, env := api.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": "login@b.com", "password": "Abcdef12"})
	require.Equal(t, http.StatusOK, rec.Code)
	var data authData
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, true, data.User["isOnline"])
}

func TestMeScenario(t *testing.T) {
	api := newTestAPI(t)
	reg := api.register(t, "me@b.com")

	rec, env := api.do(t, http.MethodGet, "/api/auth/me", reg.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var profile map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &profile))
	assert.Equal(t, "me@b.com", profile["email"])
	assert.Equal(t, []any{}, profile["skills"])
	assert.Nil(t, profile["portfolio"])

	t.Run("expired access token", func(t *testing.T) {
		past, err := service.NewTokenService(api.cfg, service.NewPasswordHasher(bcrypt.MinCost, 1), api.store, nil)
		require.NoError(t, err)
		past.SetClock(func() time.Time { return time.Now().Add(-3 * time.Hour) })

		expired, err := past.GenerateAccessToken(model.AuthClaims{UserID: reg.User["id"].(string), Email: "me@b.com", Role: model.RoleClient})
		require.NoError(t, err)

		rec, env := api.do(t, http.MethodGet, "/api/auth/me", expired, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "Invalid or expired token", env.Message)
	})

	t.Run("no token", func(t *testing.T) {
		rec, env := api.do(t, http.MethodGet, "/api/auth/me", "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "Access token required", env.Message)
	})
}

func TestRefreshAndLogout(t *testing.T) {
	api := newTestAPI(t)
	reg := api.register(t, "session@b.com")

	rec, env := api.do(t, http.MethodPost, "/api/auth/refresh", "", map[string]string{"refreshToken": reg.RefreshToken})
	require.Equal(t, http.StatusOK, rec.Code)
	var refreshed map[string]string
	require.NoError(t, json.Unmarshal(env.Data, &refreshed))
	assert.NotEmpty(t, refreshed["accessToken"])
	assert.NotContains(t, refreshed, "refreshToken")

	rec, _ = api.do(t, http.MethodPost, "/api/auth/refresh", "", map[string]string{"refreshToken": "garbage"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = api.do(t, http.MethodPost, "/api/auth/logout", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = api.do(t, http.MethodPost, "/api/auth/logout", reg.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, _ = api.do(t, http.MethodPost, "/api/auth/refresh", "", map[string]string{"refreshToken": reg.RefreshToken})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// access tokens stay valid until they expire
	rec, _ = api.do(t, http.MethodGet, "/api/auth/me", reg.AccessToken, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestPasswordResetScenario(t *testing.T) {
	api := newTestAPI(t)
	reg := api.register(t, "reset@b.com")

	rec, _ := api.do(t, http.MethodPost, "/api/auth/forgot-password", "", map[string]string{"email": "nobody@b.com"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, env := api.do(t, http.MethodPost, "/api/auth/forgot-password", "", map[string]string{"email": "reset@b.com"})
	require.Equal(t, http.StatusOK, rec.Code)
	var forgot map[string]string
	require.NoError(t, json.Unmarshal(env.Data, &forgot))
	token := forgot["resetToken"]
	require.NotEmpty(t, token)

	rec, env = api.do(t, http.MethodPost, "/api/auth/reset-password", "", map[string]string{"token": token, "newPassword": "weak"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", env.Code)

	rec, env = api.do(t, http.MethodPost, "/api/auth/reset-password", "", map[string]string{"token": token, "newPassword": "Brandnew9" + strings.Repeat("x", 70)})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", env.Code)

	rec, _ = api.do(t, http.MethodPost, "/api/auth/reset-password", "", map[string]string{"token": token, "newPassword": "Brandnew9"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec, env = api.do(t, http.MethodPost, "/api/auth/reset-password", "", map[string]string{"token": token, "newPassword": "Brandnew9"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid or expired reset token", env.Message)

	rec, _ = api.do(t, http.MethodPost, "/api/auth/refresh", "", map[string]string{"refreshToken": reg.RefreshToken})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = api.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": "reset@b.com", "password": "Abcdef12"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec, _ = api.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": "reset@b.com", "password": "Brandnew9"})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestNotificationsOwnership(t *testing.T) {
	api := newTestAPI(t)
	owner := api.register(t, "owner@b.com")
	other := api.register(t, "other@b.com")

	rec, env := api.do(t, http.MethodGet, "/api/notifications", owner.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []model.Notification
	require.NoError(t, json.Unmarshal(env.Data, &list))
	require.Len(t, list, 1)
	assert.Equal(t, model.NotificationWelcome, list[0].Type)

	path := "/api/notifications/" + list[0].ID + "/read"
	rec, _ = api.do(t, http.MethodPatch, path, other.AccessToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, _ = api.do(t, http.MethodPatch, "/api/notifications/missing/read", owner.AccessToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = api.do(t, http.MethodPatch, path, owner.AccessToken, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestUserProfileVisibility(t *testing.T) {
	api := newTestAPI(t)
	owner := api.register(t, "visible@b.com")
	id := owner.User["id"].(string)

	_, env := api.do(t, http.MethodGet, "/api/users/"+id, "", nil)
	var anonymous map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &anonymous))
	assert.NotContains(t, anonymous, "email")

	_, env = api.do(t, http.MethodGet, "/api/users/"+id, owner.AccessToken, nil)
	var self map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &self))
	assert.Equal(t, "visible@b.com", self["email"])

	rec, _ := api.do(t, http.MethodGet, "/api/users/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdminCleanupGuards(t *testing.T) {
	api := newTestAPI(t)
	user := api.register(t, "plain@b.com")

	rec, _ := api.do(t, http.MethodPost, "/api/admin/tokens/cleanup", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, env := api.do(t, http.MethodPost, "/api/admin/tokens/cleanup", user.AccessToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "Insufficient permissions", env.Message)

	admin := seedAdmin(t, api, "root@b.com", false)
	rec, env = api.do(t, http.MethodPost, "/api/admin/tokens/cleanup", admin, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "Email verification required", env.Message)

	verified := seedAdmin(t, api, "verified-root@b.com", true)
	rec, env = api.do(t, http.MethodPost, "/api/admin/tokens/cleanup", verified, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var result model.CleanupResult
	require.NoError(t, json.Unmarshal(env.Data, &result))
	assert.Zero(t, result.RefreshTokens)
}

func TestOperationalEndpoints(t *testing.T) {
	api := newTestAPI(t)

	rec, env := api.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","database":"memory"}`, string(env.Data))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

	api.register(t, "metrics@b.com")
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	mrec := httptest.NewRecorder()
	api.handler.ServeHTTP(mrec, req)
	assert.Equal(t, http.StatusOK, mrec.Code)
	assert.Contains(t, mrec.Body.String(), `auth_events_total{event="register",outcome="success"} 1`)
	assert.Contains(t, mrec.Body.String(), `route="/api/auth/register"`)

	req = httptest.NewRequest(http.MethodGet, "/openapi.yaml", nil)
	drec := httptest.NewRecorder()
	api.handler.ServeHTTP(drec, req)
	assert.Equal(t, http.StatusOK, drec.Code)
	assert.Equal(t, "application/yaml", drec.Header().Get("Content-Type"))
	assert.Contains(t, drec.Body.String(), "/api/auth/register:")
}

// seedAdmin inserts an ADMIN directly, since registration cannot grant it.
func seedAdmin(t *testing.T, api *testAPI, email string, verified bool) string {
	t.Helper()
	ctx := context.Background()

	hash, err := api.tokens.HashPassword(ctx, "Abcdef12")
	require.NoError(t, err)
	user := model.User{ID: uuid.NewString(), Email: email, PasswordHash: hash, Role: model.RoleAdmin, IsVerified: verified, FirstName: "Root", LastName: "Admin"}
	require.NoError(t, api.store.Users().Create(ctx, user))

	token, err := api.tokens.GenerateAccessToken(model.AuthClaims{UserID: user.ID, Email: email, Role: model.RoleAdmin})
	require.NoError(t, err)
	return token
}
