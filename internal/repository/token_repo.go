package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"go-freelance/internal/model"
)

type TokenRepository struct {
	db dbtx
}

func NewTokenRepository(db dbtx) *TokenRepository {
	return &TokenRepository{db: db}
}

func (r *TokenRepository) CreateRefresh(ctx context.Context, t model.RefreshToken) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO refresh_tokens (token, user_id, created_at, expires_at)
		 VALUES ($1, $2, $3, $4)`,
		t.Token, t.UserID, t.CreatedAt, t.ExpiresAt)
	if err != nil {
		return fmt.Errorf("store refresh token: %w", err)
	}
	return nil
}

// FindRefresh returns the row regardless of expiry; callers decide what a
// stale row means.
func (r *TokenRepository) FindRefresh(ctx context.Context, token string) (model.RefreshToken, error) {
	var t model.RefreshToken
	err := r.db.QueryRow(ctx,
		`SELECT token, user_id, expires_at, created_at FROM refresh_tokens WHERE token = $1`, token).
		Scan(&t.Token, &t.UserID, &t.ExpiresAt, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.RefreshToken{}, model.ErrTokenNotFound
	}
	if err != nil {
		return model.RefreshToken{}, fmt.Errorf("find refresh token: %w", err)
	}
	return t, nil
}

func (r *TokenRepository) DeleteRefresh(ctx context.Context, token string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM refresh_tokens WHERE token = $1`, token)
	if err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrTokenNotFound
	}
	return nil
}

func (r *TokenRepository) DeleteUserRefresh(ctx context.Context, userID string, token string) error {
	if _, err := uuid.Parse(userID); err != nil {
		return model.ErrTokenNotFound
	}
	tag, err := r.db.Exec(ctx, `DELETE FROM refresh_tokens WHERE token = $1 AND user_id = $2`, token, userID)
	if err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrTokenNotFound
	}
	return nil
}

func (r *TokenRepository) DeleteRefreshForUser(ctx context.Context, userID string) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM refresh_tokens WHERE user_id = $1`, userID)
	if err != nil {
		return 0, fmt.Errorf("revoke all refresh tokens: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *TokenRepository) CreateReset(ctx context.Context, t model.PasswordResetToken) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO password_reset_tokens (token, user_id, created_at, expires_at)
		 VALUES ($1, $2, $3, $4)`,
		t.Token, t.UserID, t.CreatedAt, t.ExpiresAt)
	if err != nil {
		return fmt.Errorf("store password reset token: %w", err)
	}
	return nil
}

func (r *TokenRepository) FindReset(ctx context.Context, token string) (model.PasswordResetToken, error) {
	var t model.PasswordResetToken
	err := r.db.QueryRow(ctx,
		`SELECT token, user_id, expires_at, created_at FROM password_reset_tokens WHERE token = $1`, token).
		Scan(&t.Token, &t.UserID, &t.ExpiresAt, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.PasswordResetToken{}, model.ErrTokenNotFound
	}
	if err != nil {
		return model.PasswordResetToken{}, fmt.Errorf("find password reset token: %w", err)
	}
	return t, nil
}

func (r *TokenRepository) DeleteReset(ctx context.Context, token string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM password_reset_tokens WHERE token = $1`, token)
	if err != nil {
		return fmt.Errorf("delete password reset token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrTokenNotFound
	}
	return nil
}

func (r *TokenRepository) DeleteExpired(ctx context.Context, now time.Time) (model.CleanupResult, error) {
	var result model.CleanupResult

	tag, err := r.db.Exec(ctx, `DELETE FROM refresh_tokens WHERE expires_at <= $1`, now)
	if err != nil {
		return result, fmt.Errorf("clean expired refresh tokens: %w", err)
	}
	result.RefreshTokens = tag.RowsAffected()

	tag, err = r.db.Exec(ctx, `DELETE FROM password_reset_tokens WHERE expires_at <= $1`, now)
	if err != nil {
		return result, fmt.Errorf("clean expired reset tokens: %w", err)
	}
	result.ResetTokens = tag.RowsAffected()

	return result, nil
}
