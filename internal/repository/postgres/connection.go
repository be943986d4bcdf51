package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/medvault/medvault-api/internal/model"
	"github.com/medvault/medvault-api/internal/repository"
)

type connectionRepository struct {
	db *sqlx.DB
}

func NewConnectionRepository(db *sqlx.DB) repository.ConnectionRepository {
	return &connectionRepository{db: db}
}

func (r *connectionRepository) Create(ctx context.Context, conn *model.Connection) error {
	query := `
		INSERT INTO doctor_patient_connections (id, doctor_code, patient_code, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (doctor_code, patient_code) DO NOTHING
	`
	conn.CreatedAt = time.Now()

	_, err := r.db.ExecContext(ctx, query, conn.ID, conn.DoctorCode, conn.PatientCode, conn.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create connection: %w", err)
	}
	return nil
}

func (r *connectionRepository) Exists(ctx context.Context, doctorCode, patientCode string) (bool, error) {
	query := `SELECT COUNT(1) FROM doctor_patient_connections WHERE doctor_code = $1 AND patient_code = $2`
	var count int
	if err := r.db.GetContext(ctx, &count, query, doctorCode, patientCode); err != nil {
		return false, fmt.Errorf("failed to check connection: %w", err)
	}
	return count > 0, nil
}

func (r *connectionRepository) ListForUser(ctx context.Context, userCode string) ([]*model.Connection, error) {
	query := `
		SELECT * FROM doctor_patient_connections
		WHERE doctor_code = $1 OR patient_code = $1
		ORDER BY created_at DESC
	`
	var conns []*model.Connection
	if err := r.db.SelectContext(ctx, &conns, query, userCode); err != nil {
		return nil, fmt.Errorf("failed to list connections: %w", err)
	}
	return conns, nil
}

func (r *connectionRepository) Delete(ctx context.Context, doctorCode, patientCode string) error {
	query := `DELETE FROM doctor_patient_connections WHERE doctor_code = $1 AND patient_code = $2`
	_, err := r.db.ExecContext(ctx, query, doctorCode, patientCode)
	if err != nil {
		return fmt.Errorf("failed to delete connection: %w", err)
	}
	return nil
}
