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

type keyPairRepository struct {
	db *sqlx.DB
}

func NewKeyPairRepository(db *sqlx.DB) repository.KeyPairRepository {
	return &keyPairRepository{db: db}
}

func (r *keyPairRepository) Create(ctx context.Context, pair *model.KeyPair) error {
	query := `
		INSERT INTO key_pairs (id, doctor_code, patient_code, encrypted_key, status, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	pair.CreatedAt = time.Now()

	_, err := r.db.ExecContext(ctx, query,
		pair.ID,
		pair.DoctorCode,
		pair.PatientCode,
		pair.EncryptedKey,
		pair.Status,
		pair.CreatedAt,
		pair.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create key pair: %w", err)
	}
	return nil
}

func (r *keyPairRepository) Get(ctx context.Context, id uuid.UUID) (*model.KeyPair, error) {
	query := `SELECT * FROM key_pairs WHERE id = $1`
	var pair model.KeyPair
	if err := r.db.GetContext(ctx, &pair, query, id); err != nil {
		return nil, fmt.Errorf("failed to get key pair: %w", err)
	}
	return &pair, nil
}

func (r *keyPairRepository) GetLiveByPair(ctx context.Context, doctorCode, patientCode string) (*model.KeyPair, error) {
	query := `
		SELECT * FROM key_pairs
		WHERE doctor_code = $1 AND patient_code = $2 AND status IN ($3, $4)
		ORDER BY created_at DESC
		LIMIT 1
	`
	var pair model.KeyPair
	err := r.db.GetContext(ctx, &pair, query, doctorCode, patientCode, model.KeyPairStatusPending, model.KeyPairStatusActive)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get live key pair: %w", err)
	}
	return &pair, nil
}

func (r *keyPairRepository) List(ctx context.Context) ([]*model.KeyPair, error) {
	query := `SELECT * FROM key_pairs ORDER BY created_at DESC`
	var pairs []*model.KeyPair
	if err := r.db.SelectContext(ctx, &pairs, query); err != nil {
		return nil, fmt.Errorf("failed to list key pairs: %w", err)
	}
	return pairs, nil
}

func (r *keyPairRepository) ListByParticipant(ctx context.Context, userCode string) ([]*model.KeyPair, error) {
	query := `
		SELECT * FROM key_pairs
		WHERE doctor_code = $1 OR patient_code = $1
		ORDER BY created_at DESC
	`
	var pairs []*model.KeyPair
	if err := r.db.SelectContext(ctx, &pairs, query, userCode); err != nil {
		return nil, fmt.Errorf("failed to list key pairs for user: %w", err)
	}
	return pairs, nil
}

func (r *keyPairRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status model.KeyPairStatus) error {
	query := `UPDATE key_pairs SET status = $1 WHERE id = $2`
	_, err := r.db.ExecContext(ctx, query, status, id)
	if err != nil {
		return fmt.Errorf("failed to update key pair status: %w", err)
	}
	return nil
}

func (r *keyPairRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM key_pairs WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete key pair: %w", err)
	}
	return nil
}
