package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"go-freelance/internal/model"
)

const uniqueViolationCode = "23505"

type UserStore interface {
	Create(ctx context.Context, u model.User) error
	AddSkills(ctx context.Context, userID string, skills []string) error
	FindByID(ctx context.Context, id string) (model.User, error)
	FindByEmail(ctx context.Context, email string) (model.User, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	UpdatePresence(ctx context.Context, id string, online bool, lastSeen time.Time) error
	UpdatePassword(ctx context.Context, id string, passwordHash string) error
	Skills(ctx context.Context, userID string) ([]string, error)
	Languages(ctx context.Context, userID string) ([]model.Language, error)
}

type TokenStore interface {
	CreateRefresh(ctx context.Context, t model.RefreshToken) error
	FindRefresh(ctx context.Context, token string) (model.RefreshToken, error)
	DeleteRefresh(ctx context.Context, token string) error
	// DeleteUserRefresh removes token only when it was issued to userID.
	DeleteUserRefresh(ctx context.Context, userID string, token string) error
	DeleteRefreshForUser(ctx context.Context, userID string) (int64, error)
	CreateReset(ctx context.Context, t model.PasswordResetToken) error
	FindReset(ctx context.Context, token string) (model.PasswordResetToken, error)
	DeleteReset(ctx context.Context, token string) error
	DeleteExpired(ctx context.Context, now time.Time) (model.CleanupResult, error)
}

type NotificationStore interface {
	Create(ctx context.Context, n model.Notification) error
	FindByID(ctx context.Context, id string) (model.Notification, error)
	ListByUser(ctx context.Context, userID string, unreadOnly bool, limit int) ([]model.Notification, error)
	MarkRead(ctx context.Context, id string) error
}

// Store is the credential store. WithinTx runs fn against a Store whose
// writes commit together or not at all.
type Store interface {
	Users() UserStore
	Tokens() TokenStore
	Notifications() NotificationStore
	WithinTx(ctx context.Context, fn func(tx Store) error) error
}

type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PostgresStore struct {
	pool *pgxpool.Pool
	db   dbtx
	inTx bool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool, db: pool}
}

func (s *PostgresStore) Users() UserStore {
	return NewUserRepository(s.db)
}

func (s *PostgresStore) Tokens() TokenStore {
	return NewTokenRepository(s.db)
}

func (s *PostgresStore) Notifications() NotificationStore {
	return NewNotificationRepository(s.db)
}

func (s *PostgresStore) WithinTx(ctx context.Context, fn func(tx Store) error) error {
	if s.inTx {
		return fn(s)
	}

	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(&PostgresStore{pool: s.pool, db: tx, inTx: true})
	})
	if err != nil {
		return fmt.Errorf("transaction: %w", err)
	}
	return nil
}
