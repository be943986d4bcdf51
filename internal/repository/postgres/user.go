package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/medvault/medvault-api/internal/model"
	"github.com/medvault/medvault-api/internal/repository"
)

type userRepository struct {
	db *sqlx.DB
}

func NewUserRepository(db *sqlx.DB) repository.UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(ctx context.Context, user *model.User) error {
	query := `
		INSERT INTO users (id, user_code, role, name, email, password_hash, is_active, must_reset_password, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	user.CreatedAt = time.Now()
	user.UpdatedAt = time.Now()

	_, err := r.db.ExecContext(ctx, query,
		user.ID,
		user.UserCode,
		user.Role,
		user.Name,
		user.Email,
		user.PasswordHash,
		user.IsActive,
		user.MustResetPassword,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (r *userRepository) Get(ctx context.Context, id uuid.UUID) (*model.User, error) {
	query := `SELECT * FROM users WHERE id = $1`
	var user model.User
	if err := r.db.GetContext(ctx, &user, query, id); err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

func (r *userRepository) GetByCode(ctx context.Context, userCode string) (*model.User, error) {
	query := `SELECT * FROM users WHERE user_code = $1`
	var user model.User
	if err := r.db.GetContext(ctx, &user, query, userCode); err != nil {
		return nil, fmt.Errorf("failed to get user by code: %w", err)
	}
	return &user, nil
}

func (r *userRepository) GetByCodeAndRole(ctx context.Context, userCode, role string) (*model.User, error) {
	query := `SELECT * FROM users WHERE user_code = $1 AND role = $2`
	var user model.User
	if err := r.db.GetContext(ctx, &user, query, userCode, role); err != nil {
		return nil, fmt.Errorf("failed to get user by code and role: %w", err)
	}
	return &user, nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	query := `SELECT * FROM users WHERE email = $1`
	var user model.User
	err := r.db.GetContext(ctx, &user, query, email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}
	return &user, nil
}

func (r *userRepository) List(ctx context.Context) ([]*model.User, error) {
	query := `SELECT * FROM users ORDER BY created_at DESC`
	var users []*model.User
	if err := r.db.SelectContext(ctx, &users, query); err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

func (r *userRepository) ListCodesByPrefix(ctx context.Context, prefix string) ([]string, error) {
	query := `SELECT user_code FROM users WHERE user_code LIKE $1`
	var codes []string
	if err := r.db.SelectContext(ctx, &codes, query, prefix+"%"); err != nil {
		return nil, fmt.Errorf("failed to list user codes: %w", err)
	}
	return codes, nil
}

func (r *userRepository) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string, mustReset bool) error {
	query := `UPDATE users SET password_hash = $1, must_reset_password = $2, updated_at = $3 WHERE id = $4`
	_, err := r.db.ExecContext(ctx, query, passwordHash, mustReset, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	return nil
}

func (r *userRepository) StampLastLogin(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE users SET last_login_at = $1, updated_at = $1 WHERE id = $2`
	_, err := r.db.ExecContext(ctx, query, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to stamp last login: %w", err)
	}
	return nil
}
