package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"go-freelance/internal/event"
	"go-freelance/internal/model"
	"go-freelance/internal/repository"
)

const testPassword = "Abcdef12"

func testTokenConfig() TokenConfig {
	return TokenConfig{
		AccessSecret:  "access-secret-for-tests",
		RefreshSecret: "refresh-secret-for-tests",
		Issuer:        "freelance-api",
		Audience:      "freelance-clients",
	}
}

type testEnv struct {
	store  *repository.MemoryStore
	bus    *event.InMemoryBus
	tokens *TokenService
	notes  *NotificationService
	auth   *AuthService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store := repository.NewMemoryStore()
	bus := event.NewBus()
	tokens, err := NewTokenService(testTokenConfig(), NewPasswordHasher(bcrypt.MinCost, 4), store, nil)
	require.NoError(t, err)

	notes := NewNotificationService(store, bus)
	return &testEnv{
		store:  store,
		bus:    bus,
		tokens: tokens,
		notes:  notes,
		auth:   NewAuthService(store, tokens, notes, nil),
	}
}

func (e *testEnv) register(t *testing.T, email string) model.AuthResult {
	t.Helper()

	result, err := e.auth.Register(context.Background(), model.RegisterRequest{
		Email:       email,
		Password:    testPassword,
		FirstName:   "A",
		LastName:    "B",
		Role:        string(model.RoleClient),
		CompanyName: "Acme",
	})
	require.NoError(t, err)
	return result
}

func fixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}
