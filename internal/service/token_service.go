package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"go-freelance/internal/metrics"
	"go-freelance/internal/model"
	"go-freelance/internal/repository"
)

const (
	DefaultAccessTTL       = time.Hour
	DefaultRefreshTTL      = 7 * 24 * time.Hour
	DefaultRefreshStoreTTL = 7 * 24 * time.Hour
	DefaultResetTTL        = time.Hour
)

type TokenConfig struct {
	AccessSecret  string
	RefreshSecret string
	Issuer        string
	Audience      string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	// RefreshStoreTTL is the persisted lifetime of a refresh token row. It is
	// an independent policy from the signed exp claim of RefreshTTL.
	RefreshStoreTTL time.Duration
	ResetTTL        time.Duration
}

type tokenClaims struct {
	model.AuthClaims
	jwt.RegisteredClaims
}

type TokenService struct {
	cfg     TokenConfig
	hasher  *PasswordHasher
	store   repository.Store
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewTokenService(cfg TokenConfig, hasher *PasswordHasher, store repository.Store, m *metrics.Metrics) (*TokenService, error) {
	if strings.TrimSpace(cfg.AccessSecret) == "" || strings.TrimSpace(cfg.RefreshSecret) == "" {
		return nil, errors.New("access and refresh secrets are required")
	}
	if cfg.AccessSecret == cfg.RefreshSecret {
		return nil, errors.New("access and refresh secrets must differ")
	}
	if cfg.Issuer == "" {
		cfg.Issuer = "freelance-api"
	}
	if cfg.Audience == "" {
		cfg.Audience = "freelance-clients"
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = DefaultAccessTTL
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = DefaultRefreshTTL
	}
	if cfg.RefreshStoreTTL <= 0 {
		cfg.RefreshStoreTTL = DefaultRefreshStoreTTL
	}
	if cfg.ResetTTL <= 0 {
		cfg.ResetTTL = DefaultResetTTL
	}

	return &TokenService{
		cfg:     cfg,
		hasher:  hasher,
		store:   store,
		metrics: m,
		now:     func() time.Time { return time.Now().UTC() },
	}, nil
}

// SetClock replaces the time source used for signing, verification and
// persisted expiries.
func (s *TokenService) SetClock(now func() time.Time) {
	s.now = now
}

func (s *TokenService) HashPassword(ctx context.Context, plain string) (string, error) {
	return s.hasher.Hash(ctx, plain)
}

func (s *TokenService) ComparePassword(ctx context.Context, plain string, hash string) bool {
	return s.hasher.Compare(ctx, plain, hash)
}

func (s *TokenService) GenerateAccessToken(identity model.AuthClaims) (string, error) {
	return s.sign(identity, s.cfg.AccessSecret, s.cfg.AccessTTL)
}

func (s *TokenService) GenerateRefreshToken(identity model.AuthClaims) (string, error) {
	return s.sign(identity, s.cfg.RefreshSecret, s.cfg.RefreshTTL)
}

// GenerateTokenPair issues both tokens and persists the refresh token. Earlier
// sessions of the same user stay valid.
func (s *TokenService) GenerateTokenPair(ctx context.Context, user model.User) (model.TokenPair, error) {
	identity := claimsFor(user)

	access, err := s.GenerateAccessToken(identity)
	if err != nil {
		return model.TokenPair{}, err
	}
	refresh, err := s.GenerateRefreshToken(identity)
	if err != nil {
		return model.TokenPair{}, err
	}

	now := s.now()
	err = s.store.Tokens().CreateRefresh(ctx, model.RefreshToken{
		Token:     refresh,
		UserID:    user.ID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.cfg.RefreshStoreTTL),
	})
	if err != nil {
		return model.TokenPair{}, err
	}

	return model.TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func (s *TokenService) VerifyAccessToken(token string) *model.AuthClaims {
	return s.verify(token, s.cfg.AccessSecret)
}

func (s *TokenService) VerifyRefreshToken(token string) *model.AuthClaims {
	return s.verify(token, s.cfg.RefreshSecret)
}

// RefreshAccessToken exchanges a persisted refresh token for a new access
// token minted from the user's current record. It returns
// model.ErrInvalidToken for a bad signature, an unknown token, an expired row
// (which is deleted) or a user that no longer exists.
func (s *TokenService) RefreshAccessToken(ctx context.Context, token string) (string, error) {
	if s.VerifyRefreshToken(token) == nil {
		return "", model.ErrInvalidToken
	}

	row, err := s.store.Tokens().FindRefresh(ctx, token)
	if errors.Is(err, model.ErrTokenNotFound) {
		return "", model.ErrInvalidToken
	}
	if err != nil {
		return "", err
	}

	if row.Expired(s.now()) {
		if err := s.store.Tokens().DeleteRefresh(ctx, token); err != nil && !errors.Is(err, model.ErrTokenNotFound) {
			slog.Warn("failed to delete expired refresh token", "user_id", row.UserID, "error", err)
		}
		return "", model.ErrInvalidToken
	}

	user, err := s.store.Users().FindByID(ctx, row.UserID)
	if errors.Is(err, model.ErrUserNotFound) {
		return "", model.ErrInvalidToken
	}
	if err != nil {
		return "", err
	}

	return s.GenerateAccessToken(claimsFor(user))
}

func (s *TokenService) RevokeRefreshToken(ctx context.Context, token string) bool {
	if err := s.store.Tokens().DeleteRefresh(ctx, token); err != nil {
		if !errors.Is(err, model.ErrTokenNotFound) {
			slog.Error("failed to revoke refresh token", "error", err)
		}
		return false
	}
	return true
}

// RevokeUserRefreshToken is RevokeRefreshToken limited to tokens issued to
// userID. Another user's token is left untouched and reported as not revoked.
func (s *TokenService) RevokeUserRefreshToken(ctx context.Context, userID string, token string) bool {
	if err := s.store.Tokens().DeleteUserRefresh(ctx, userID, token); err != nil {
		if !errors.Is(err, model.ErrTokenNotFound) {
			slog.Error("failed to revoke refresh token", "user_id", userID, "error", err)
		}
		return false
	}
	return true
}

func (s *TokenService) RevokeAllUserTokens(ctx context.Context, userID string) bool {
	if _, err := s.store.Tokens().DeleteRefreshForUser(ctx, userID); err != nil {
		slog.Error("failed to revoke user refresh tokens", "user_id", userID, "error", err)
		return false
	}
	return true
}

// GeneratePasswordResetToken stores a random single-use token. Outstanding
// tokens for the same user are left in place.
func (s *TokenService) GeneratePasswordResetToken(ctx context.Context, userID string) (string, error) {
	now := s.now()
	token := uuid.NewString()

	err := s.store.Tokens().CreateReset(ctx, model.PasswordResetToken{
		Token:     token,
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.cfg.ResetTTL),
	})
	if err != nil {
		return "", err
	}
	return token, nil
}

func (s *TokenService) VerifyPasswordResetToken(ctx context.Context, token string) (model.User, error) {
	row, err := s.store.Tokens().FindReset(ctx, token)
	if errors.Is(err, model.ErrTokenNotFound) {
		return model.User{}, model.ErrInvalidToken
	}
	if err != nil {
		return model.User{}, err
	}

	if row.Expired(s.now()) {
		if err := s.store.Tokens().DeleteReset(ctx, token); err != nil && !errors.Is(err, model.ErrTokenNotFound) {
			slog.Warn("failed to delete expired reset token", "user_id", row.UserID, "error", err)
		}
		return model.User{}, model.ErrInvalidToken
	}

	user, err := s.store.Users().FindByID(ctx, row.UserID)
	if errors.Is(err, model.ErrUserNotFound) {
		return model.User{}, model.ErrInvalidToken
	}
	if err != nil {
		return model.User{}, err
	}
	return user, nil
}

func (s *TokenService) ConsumePasswordResetToken(ctx context.Context, token string) bool {
	if err := s.store.Tokens().DeleteReset(ctx, token); err != nil {
		if !errors.Is(err, model.ErrTokenNotFound) {
			slog.Error("failed to consume reset token", "error", err)
		}
		return false
	}
	return true
}

// CleanupExpiredTokens purges refresh and reset rows past their expiry.
func (s *TokenService) CleanupExpiredTokens(ctx context.Context) (model.CleanupResult, error) {
	result, err := s.store.Tokens().DeleteExpired(ctx, s.now())
	if err != nil {
		return result, fmt.Errorf("cleanup expired tokens: %w", err)
	}

	s.metrics.Purged("refresh", result.RefreshTokens)
	s.metrics.Purged("reset", result.ResetTokens)
	slog.Info("expired tokens purged", "refresh_tokens", result.RefreshTokens, "reset_tokens", result.ResetTokens)
	return result, nil
}

func (s *TokenService) sign(identity model.AuthClaims, secret string, ttl time.Duration) (string, error) {
	now := s.now()
	claims := tokenClaims{
		AuthClaims: identity,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   identity.UserID,
			Issuer:    s.cfg.Issuer,
			Audience:  jwt.ClaimStrings{s.cfg.Audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func (s *TokenService) verify(token string, secret string) *model.AuthClaims {
	if strings.TrimSpace(token) == "" {
		return nil
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.cfg.Issuer),
		jwt.WithAudience(s.cfg.Audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)

	var claims tokenClaims
	parsed, err := parser.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return []byte(secret), nil
	})
	if err != nil || !parsed.Valid {
		return nil
	}

	if claims.UserID == "" || !claims.Role.Valid() {
		return nil
	}

	identity := claims.AuthClaims
	return &identity
}

func claimsFor(user model.User) model.AuthClaims {
	return model.AuthClaims{UserID: user.ID, Email: user.Email, Role: user.Role}
}
