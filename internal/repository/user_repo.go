package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"go-freelance/internal/model"
)

const userColumns = `id, email, password_hash, role, is_verified, is_online, last_seen,
	first_name, last_name, bio, hourly_rate, company_name, avatar_url, location,
	portfolio::text, rating, total_earnings, total_spent, created_at, updated_at`

type UserRepository struct {
	db dbtx
}

func NewUserRepository(db dbtx) *UserRepository {
	return &UserRepository{db: db}
}

func scanUser(row pgx.Row) (model.User, error) {
	var u model.User
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Role, &u.IsVerified, &u.IsOnline, &u.LastSeen,
		&u.FirstName, &u.LastName, &u.Bio, &u.HourlyRate, &u.CompanyName, &u.AvatarURL, &u.Location,
		&u.Portfolio, &u.Rating, &u.TotalEarnings, &u.TotalSpent, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (model.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return model.User{}, model.ErrUserNotFound
	}
	u, err := scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.User{}, model.ErrUserNotFound
	}
	if err != nil {
		return model.User{}, fmt.Errorf("find user by id: %w", err)
	}
	return u, nil
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (model.User, error) {
	u, err := scanUser(r.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, strings.TrimSpace(email)))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.User{}, model.ErrUserNotFound
	}
	if err != nil {
		return model.User{}, fmt.Errorf("find user by email: %w", err)
	}
	return u, nil
}

func (r *UserRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM users WHERE lower(email) = lower($1))`,
		strings.TrimSpace(email)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check email exists: %w", err)
	}
	return exists, nil
}

func (r *UserRepository) Create(ctx context.Context, u model.User) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO users (id, email, password_hash, role, is_verified, first_name, last_name,
		                    bio, hourly_rate, company_name, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		u.ID, u.Email, u.PasswordHash, string(u.Role), u.IsVerified, u.FirstName, u.LastName,
		u.Bio, u.HourlyRate, u.CompanyName, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return model.ErrEmailTaken
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (r *UserRepository) AddSkills(ctx context.Context, userID string, skills []string) error {
	for _, skill := range skills {
		_, err := r.db.Exec(ctx,
			`INSERT INTO user_skills (user_id, name) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			userID, skill)
		if err != nil {
			return fmt.Errorf("add skill: %w", err)
		}
	}
	return nil
}

func (r *UserRepository) UpdatePresence(ctx context.Context, id string, online bool, lastSeen time.Time) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE users SET is_online = $2, last_seen = $3 WHERE id = $1`,
		id, online, lastSeen)
	if err != nil {
		return fmt.Errorf("update presence: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrUserNotFound
	}
	return nil
}

func (r *UserRepository) UpdatePassword(ctx context.Context, id string, passwordHash string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE users SET password_hash = $2, updated_at = $3 WHERE id = $1`,
		id, passwordHash, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrUserNotFound
	}
	return nil
}

func (r *UserRepository) Skills(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.db.Query(ctx, `SELECT name FROM user_skills WHERE user_id = $1 ORDER BY name`, userID)
	if err != nil {
		return nil, fmt.Errorf("list skills: %w", err)
	}
	defer rows.Close()

	skills := make([]string, 0)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan skill: %w", err)
		}
		skills = append(skills, name)
	}
	return skills, rows.Err()
}

func (r *UserRepository) Languages(ctx context.Context, userID string) ([]model.Language, error) {
	rows, err := r.db.Query(ctx,
		`SELECT language, proficiency FROM user_languages WHERE user_id = $1 ORDER BY language`, userID)
	if err != nil {
		return nil, fmt.Errorf("list languages: %w", err)
	}
	defer rows.Close()

	languages := make([]model.Language, 0)
	for rows.Next() {
		var l model.Language
		if err := rows.Scan(&l.Language, &l.Proficiency); err != nil {
			return nil, fmt.Errorf("scan language: %w", err)
		}
		languages = append(languages, l)
	}
	return languages, rows.Err()
}
