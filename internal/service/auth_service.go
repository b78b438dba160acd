package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"go-freelance/internal/metrics"
	"go-freelance/internal/model"
	"go-freelance/internal/repository"
	"go-freelance/pkg/apierror"
)

// Notifier delivers a persisted notification to a user.
type Notifier interface {
	Notify(ctx context.Context, userID string, kind string, title string, message string, data map[string]any) error
}

type AuthService struct {
	store    repository.Store
	tokens   *TokenService
	notifier Notifier
	metrics  *metrics.Metrics
	now      func() time.Time
}

func NewAuthService(store repository.Store, tokens *TokenService, notifier Notifier, m *metrics.Metrics) *AuthService {
	return &AuthService{
		store:    store,
		tokens:   tokens,
		notifier: notifier,
		metrics:  m,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *AuthService) Register(ctx context.Context, req model.RegisterRequest) (model.AuthResult, error) {
	role, ok := model.ParseRole(req.Role)
	if !ok || !role.SelfAssignable() {
		return model.AuthResult{}, apierror.Validation([]apierror.FieldError{{Field: "role", Message: "role must be FREELANCER or CLIENT"}})
	}

	email := normalizeEmail(req.Email)
	exists, err := s.store.Users().ExistsByEmail(ctx, email)
	if err != nil {
		return model.AuthResult{}, err
	}
	if exists {
		s.metrics.AuthEvent("register", "conflict")
		return model.AuthResult{}, model.ErrEmailTaken
	}

	hash, err := s.tokens.HashPassword(ctx, req.Password)
	if err != nil {
		return model.AuthResult{}, err
	}

	now := s.now()
	user := model.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		FirstName:    strings.TrimSpace(req.FirstName),
		LastName:     strings.TrimSpace(req.LastName),
		Bio:          strings.TrimSpace(req.Bio),
		CompanyName:  strings.TrimSpace(req.CompanyName),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if role == model.RoleFreelancer {
		user.HourlyRate = req.HourlyRate
	}

	err = s.store.WithinTx(ctx, func(tx repository.Store) error {
		if err := tx.Users().Create(ctx, user); err != nil {
			return err
		}
		if skills := cleanSkills(req.Skills); len(skills) > 0 {
			return tx.Users().AddSkills(ctx, user.ID, skills)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, model.ErrEmailTaken) {
			s.metrics.AuthEvent("register", "conflict")
		}
		return model.AuthResult{}, err
	}

	pair, err := s.tokens.GenerateTokenPair(ctx, user)
	if err != nil {
		return model.AuthResult{}, err
	}

	s.notify(ctx, user.ID, model.NotificationWelcome, "Welcome", fmt.Sprintf("Welcome aboard, %s!", user.FirstName), nil)
	s.metrics.AuthEvent("register", "success")
	slog.Info("user registered", "user_id", user.ID, "role", user.Role)

	return model.AuthResult{User: user.Public(), AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken}, nil
}

// Login never tells the caller whether the email or the password was wrong.
func (s *AuthService) Login(ctx context.Context, req model.LoginRequest) (model.AuthResult, error) {
	user, err := s.store.Users().FindByEmail(ctx, normalizeEmail(req.Email))
	if errors.Is(err, model.ErrUserNotFound) {
		s.metrics.AuthEvent("login", "failure")
		return model.AuthResult{}, model.ErrInvalidCredentials
	}
	if err != nil {
		return model.AuthResult{}, err
	}

	if !s.tokens.ComparePassword(ctx, req.Password, user.PasswordHash) {
		s.metrics.AuthEvent("login", "failure")
		return model.AuthResult{}, model.ErrInvalidCredentials
	}

	now := s.now()
	if err := s.store.Users().UpdatePresence(ctx, user.ID, true, now); err != nil {
		return model.AuthResult{}, err
	}
	user.IsOnline = true
	user.LastSeen = &now

	pair, err := s.tokens.GenerateTokenPair(ctx, user)
	if err != nil {
		return model.AuthResult{}, err
	}

	s.metrics.AuthEvent("login", "success")
	return model.AuthResult{User: user.Public(), AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken}, nil
}

func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (string, error) {
	access, err := s.tokens.RefreshAccessToken(ctx, refreshToken)
	if err != nil {
		s.metrics.AuthEvent("refresh", "failure")
		return "", err
	}

	s.metrics.AuthEvent("refresh", "success")
	return access, nil
}

// Logout marks the user offline, then revokes the supplied refresh token or,
// when none is given, every refresh token of the user. Revocation outcome is
// not reported to the caller.
func (s *AuthService) Logout(ctx context.Context, userID string, refreshToken string) error {
	if err := s.store.Users().UpdatePresence(ctx, userID, false, s.now()); err != nil && !errors.Is(err, model.ErrUserNotFound) {
		return err
	}

	revoked := false
	if strings.TrimSpace(refreshToken) != "" {
		revoked = s.tokens.RevokeUserRefreshToken(ctx, userID, refreshToken)
	} else {
		revoked = s.tokens.RevokeAllUserTokens(ctx, userID)
	}

	outcome := "success"
	if !revoked {
		outcome = "noop"
	}
	s.metrics.AuthEvent("logout", outcome)
	return nil
}

// ForgotPassword issues a reset token. Unknown emails yield ErrUserNotFound.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) (string, error) {
	user, err := s.store.Users().FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return "", err
	}

	token, err := s.tokens.GeneratePasswordResetToken(ctx, user.ID)
	if err != nil {
		return "", err
	}

	slog.Info("password reset requested", "user_id", user.ID)
	return token, nil
}

// ResetPassword sets a new password, consumes the reset token and revokes
// every refresh token of the user in one transaction.
func (s *AuthService) ResetPassword(ctx context.Context, token string, newPassword string) error {
	user, err := s.tokens.VerifyPasswordResetToken(ctx, token)
	if err != nil {
		s.metrics.AuthEvent("password_reset", "failure")
		return err
	}

	hash, err := s.tokens.HashPassword(ctx, newPassword)
	if err != nil {
		return err
	}

	err = s.store.WithinTx(ctx, func(tx repository.Store) error {
		if err := tx.Users().UpdatePassword(ctx, user.ID, hash); err != nil {
			return fmt.Errorf("update password: %w", err)
		}
		if err := tx.Tokens().DeleteReset(ctx, token); err != nil {
			if errors.Is(err, model.ErrTokenNotFound) {
				// consumed concurrently
				return model.ErrInvalidToken
			}
			return fmt.Errorf("consume reset token: %w", err)
		}
		if _, err := tx.Tokens().DeleteRefreshForUser(ctx, user.ID); err != nil {
			return fmt.Errorf("revoke refresh tokens: %w", err)
		}
		return nil
	})
	if err != nil {
		s.metrics.AuthEvent("password_reset", "failure")
		return err
	}

	s.notify(ctx, user.ID, model.NotificationPasswordChanged, "Password changed",
		"Your password was changed and all sessions were signed out.", nil)
	s.metrics.AuthEvent("password_reset", "success")
	slog.Info("password reset completed", "user_id", user.ID)
	return nil
}

// Profile composes the full user view with side tables flattened and the
// stored portfolio blob decoded.
func (s *AuthService) Profile(ctx context.Context, userID string) (model.Profile, error) {
	user, err := s.store.Users().FindByID(ctx, userID)
	if err != nil {
		return model.Profile{}, err
	}

	skills, err := s.store.Users().Skills(ctx, userID)
	if err != nil {
		return model.Profile{}, err
	}
	languages, err := s.store.Users().Languages(ctx, userID)
	if err != nil {
		return model.Profile{}, err
	}

	return model.Profile{
		PublicUser: user.Public(),
		Skills:     skills,
		Languages:  languages,
		Portfolio:  parsePortfolio(user),
	}, nil
}

// ResolveIdentity verifies an access token and loads the user it names.
func (s *AuthService) ResolveIdentity(ctx context.Context, accessToken string) (model.Identity, error) {
	claims := s.tokens.VerifyAccessToken(accessToken)
	if claims == nil {
		return model.Identity{}, model.ErrInvalidToken
	}

	user, err := s.store.Users().FindByID(ctx, claims.UserID)
	if err != nil {
		return model.Identity{}, err
	}
	return user.Identity(), nil
}

func (s *AuthService) SetPresence(ctx context.Context, userID string, online bool) error {
	return s.store.Users().UpdatePresence(ctx, userID, online, s.now())
}

func (s *AuthService) notify(ctx context.Context, userID string, kind string, title string, message string, data map[string]any) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, userID, kind, title, message, data); err != nil {
		slog.Warn("failed to send notification", "user_id", userID, "type", kind, "error", err)
	}
}

func parsePortfolio(user model.User) *model.Portfolio {
	if user.Portfolio == nil || strings.TrimSpace(*user.Portfolio) == "" {
		return nil
	}

	var portfolio model.Portfolio
	if err := json.Unmarshal([]byte(*user.Portfolio), &portfolio); err != nil {
		slog.Warn("stored portfolio is not valid JSON", "user_id", user.ID, "error", err)
		return nil
	}
	if portfolio.Items == nil {
		portfolio.Items = []model.PortfolioItem{}
	}
	return &portfolio
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func cleanSkills(skills []string) []string {
	out := make([]string, 0, len(skills))
	seen := map[string]struct{}{}
	for _, skill := range skills {
		skill = strings.TrimSpace(skill)
		if skill == "" {
			continue
		}
		key := strings.ToLower(skill)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, skill)
	}
	return out
}
