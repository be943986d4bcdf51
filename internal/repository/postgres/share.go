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

type shareRepository struct {
	db *sqlx.DB
}

func NewShareRepository(db *sqlx.DB) repository.ShareRepository {
	return &shareRepository{db: db}
}

const shareViewColumns = `
	s.id, s.file_id, s.sender_code, s.recipient_code, s.access_level,
	s.status, s.shared_at, s.revoked_at,
	f.file_name, f.file_size, f.owner_code
`

func (r *shareRepository) Create(ctx context.Context, share *model.FileShare) error {
	query := `
		INSERT INTO file_shares (id, file_id, sender_code, recipient_code, access_level, status, shared_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	share.SharedAt = time.Now()

	_, err := r.db.ExecContext(ctx, query,
		share.ID,
		share.FileID,
		share.SenderCode,
		share.RecipientCode,
		share.AccessLevel,
		share.Status,
		share.SharedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create share: %w", err)
	}
	return nil
}

func (r *shareRepository) Get(ctx context.Context, id uuid.UUID) (*model.FileShare, error) {
	query := `SELECT * FROM file_shares WHERE id = $1`
	var share model.FileShare
	if err := r.db.GetContext(ctx, &share, query, id); err != nil {
		return nil, fmt.Errorf("failed to get share: %w", err)
	}
	return &share, nil
}

func (r *shareRepository) GetActiveByFileAndRecipient(ctx context.Context, fileID uuid.UUID, recipientCode string) (*model.FileShare, error) {
	query := `
		SELECT * FROM file_shares
		WHERE file_id = $1 AND recipient_code = $2 AND status = $3
		LIMIT 1
	`
	var share model.FileShare
	err := r.db.GetContext(ctx, &share, query, fileID, recipientCode, model.ShareStatusActive)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get active share: %w", err)
	}
	return &share, nil
}

func (r *shareRepository) Revoke(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE file_shares SET status = $1, revoked_at = $2 WHERE id = $3`
	_, err := r.db.ExecContext(ctx, query, model.ShareStatusRevoked, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to revoke share: %w", err)
	}
	return nil
}

func (r *shareRepository) RevokeAllForFile(ctx context.Context, fileID uuid.UUID) error {
	query := `UPDATE file_shares SET status = $1, revoked_at = $2 WHERE file_id = $3 AND status = $4`
	_, err := r.db.ExecContext(ctx, query, model.ShareStatusRevoked, time.Now(), fileID, model.ShareStatusActive)
	if err != nil {
		return fmt.Errorf("failed to revoke shares for file: %w", err)
	}
	return nil
}

func (r *shareRepository) ListByFile(ctx context.Context, fileID uuid.UUID) ([]*model.FileShare, error) {
	query := `SELECT * FROM file_shares WHERE file_id = $1 ORDER BY shared_at DESC`
	var shares []*model.FileShare
	if err := r.db.SelectContext(ctx, &shares, query, fileID); err != nil {
		return nil, fmt.Errorf("failed to list shares by file: %w", err)
	}
	return shares, nil
}

func (r *shareRepository) ListBySender(ctx context.Context, senderCode string) ([]*model.ShareView, error) {
	query := `
		SELECT ` + shareViewColumns + `
		FROM file_shares s
		JOIN encrypted_files f ON f.id = s.file_id
		WHERE s.sender_code = $1
		ORDER BY s.shared_at DESC
	`
	var shares []*model.ShareView
	if err := r.db.SelectContext(ctx, &shares, query, senderCode); err != nil {
		return nil, fmt.Errorf("failed to list sent shares: %w", err)
	}
	return shares, nil
}

func (r *shareRepository) ListByRecipient(ctx context.Context, recipientCode string) ([]*model.ShareView, error) {
	query := `
		SELECT ` + shareViewColumns + `
		FROM file_shares s
		JOIN encrypted_files f ON f.id = s.file_id
		WHERE s.recipient_code = $1 AND s.status = $2
		AND f.is_deleted = false AND f.upload_status = $3
		ORDER BY s.shared_at DESC
	`
	var shares []*model.ShareView
	err := r.db.SelectContext(ctx, &shares, query, recipientCode, model.ShareStatusActive, model.UploadStatusCompleted)
	if err != nil {
		return nil, fmt.Errorf("failed to list received shares: %w", err)
	}
	return shares, nil
}

func (r *shareRepository) ListAll(ctx context.Context) ([]*model.ShareView, error) {
	query := `
		SELECT ` + shareViewColumns + `
		FROM file_shares s
		JOIN encrypted_files f ON f.id = s.file_id
		ORDER BY s.shared_at DESC
	`
	var shares []*model.ShareView
	if err := r.db.SelectContext(ctx, &shares, query); err != nil {
		return nil, fmt.Errorf("failed to list all shares: %w", err)
	}
	return shares, nil
}
