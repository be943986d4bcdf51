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

type biometricRepository struct {
	db *sqlx.DB
}

func NewBiometricRepository(db *sqlx.DB) repository.BiometricRepository {
	return &biometricRepository{db: db}
}

func (r *biometricRepository) CreateCredential(ctx context.Context, cred *model.BiometricCredential) error {
	query := `
		INSERT INTO biometric_credentials (id, user_id, user_code, device_id, secret, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_code, device_id) DO UPDATE SET secret = EXCLUDED.secret
	`
	cred.CreatedAt = time.Now()

	_, err := r.db.ExecContext(ctx, query,
		cred.ID,
		cred.UserID,
		cred.UserCode,
		cred.DeviceID,
		cred.Secret,
		cred.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create biometric credential: %w", err)
	}
	return nil
}

func (r *biometricRepository) GetCredential(ctx context.Context, userCode, deviceID string) (*model.BiometricCredential, error) {
	query := `SELECT * FROM biometric_credentials WHERE user_code = $1 AND device_id = $2`
	var cred model.BiometricCredential
	err := r.db.GetContext(ctx, &cred, query, userCode, deviceID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get biometric credential: %w", err)
	}
	return &cred, nil
}

func (r *biometricRepository) HasCredential(ctx context.Context, userCode string) (bool, error) {
	query := `SELECT COUNT(1) FROM biometric_credentials WHERE user_code = $1`
	var count int
	if err := r.db.GetContext(ctx, &count, query, userCode); err != nil {
		return false, fmt.Errorf("failed to check biometric credential: %w", err)
	}
	return count > 0, nil
}

func (r *biometricRepository) CreateChallenge(ctx context.Context, ch *model.BiometricChallenge) error {
	query := `
		INSERT INTO biometric_challenges (id, user_code, device_id, challenge, used, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	ch.CreatedAt = time.Now()

	_, err := r.db.ExecContext(ctx, query,
		ch.ID,
		ch.UserCode,
		ch.DeviceID,
		ch.Challenge,
		ch.Used,
		ch.ExpiresAt,
		ch.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create biometric challenge: %w", err)
	}
	return nil
}

func (r *biometricRepository) GetChallenge(ctx context.Context, id uuid.UUID) (*model.BiometricChallenge, error) {
	query := `SELECT * FROM biometric_challenges WHERE id = $1`
	var ch model.BiometricChallenge
	if err := r.db.GetContext(ctx, &ch, query, id); err != nil {
		return nil, fmt.Errorf("failed to get biometric challenge: %w", err)
	}
	return &ch, nil
}

func (r *biometricRepository) MarkChallengeUsed(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE biometric_challenges SET used = true WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to mark challenge used: %w", err)
	}
	return nil
}
