package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/medvault/medvault-api/internal/model"
	"github.com/medvault/medvault-api/internal/repository"
)

type fileRepository struct {
	db *sqlx.DB
}

func NewFileRepository(db *sqlx.DB) repository.FileRepository {
	return &fileRepository{db: db}
}

func (r *fileRepository) Create(ctx context.Context, file *model.EncryptedFile) error {
	query := `
		INSERT INTO encrypted_files (
			id, owner_id, owner_code, file_name, object_name, file_size,
			mime_type, encryption_meta, bucket, upload_status, is_deleted, uploaded_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	file.UploadedAt = time.Now()

	_, err := r.db.ExecContext(ctx, query,
		file.ID,
		file.OwnerID,
		file.OwnerCode,
		file.FileName,
		file.ObjectName,
		file.FileSize,
		file.MimeType,
		file.EncryptionMeta,
		file.Bucket,
		file.UploadStatus,
		file.IsDeleted,
		file.UploadedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create file record: %w", err)
	}
	return nil
}

func (r *fileRepository) Get(ctx context.Context, id uuid.UUID) (*model.EncryptedFile, error) {
	query := `SELECT * FROM encrypted_files WHERE id = $1`
	var file model.EncryptedFile
	if err := r.db.GetContext(ctx, &file, query, id); err != nil {
		return nil, fmt.Errorf("failed to get file: %w", err)
	}
	return &file, nil
}

func (r *fileRepository) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*model.EncryptedFile, error) {
	query := `
		SELECT * FROM encrypted_files
		WHERE owner_id = $1 AND is_deleted = false AND upload_status = $2
		ORDER BY uploaded_at DESC
	`
	var files []*model.EncryptedFile
	if err := r.db.SelectContext(ctx, &files, query, ownerID, model.UploadStatusCompleted); err != nil {
		return nil, fmt.Errorf("failed to list files by owner: %w", err)
	}
	return files, nil
}

// ConfirmUpload flips pending to completed. Returns false when the row is
// missing or already confirmed, so callers can report 404.
func (r *fileRepository) ConfirmUpload(ctx context.Context, id uuid.UUID) (bool, error) {
	query := `UPDATE encrypted_files SET upload_status = $1 WHERE id = $2 AND upload_status = $3`
	res, err := r.db.ExecContext(ctx, query, model.UploadStatusCompleted, id, model.UploadStatusPending)
	if err != nil {
		return false, fmt.Errorf("failed to confirm upload: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read confirm result: %w", err)
	}
	return n > 0, nil
}

func (r *fileRepository) SoftDelete(ctx context.Context, id, ownerID uuid.UUID) (bool, error) {
	query := `UPDATE encrypted_files SET is_deleted = true WHERE id = $1 AND owner_id = $2 AND is_deleted = false`
	res, err := r.db.ExecContext(ctx, query, id, ownerID)
	if err != nil {
		return false, fmt.Errorf("failed to soft-delete file: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read delete result: %w", err)
	}
	return n > 0, nil
}

func (r *fileRepository) HardDelete(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM encrypted_files WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to hard-delete file: %w", err)
	}
	return nil
}

func (r *fileRepository) StampLastAccessed(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE encrypted_files SET last_accessed_at = $1 WHERE id = $2`
	_, err := r.db.ExecContext(ctx, query, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to stamp last access: %w", err)
	}
	return nil
}

func (r *fileRepository) ListPendingOlderThan(ctx context.Context, cutoff time.Time) ([]*model.EncryptedFile, error) {
	query := `SELECT * FROM encrypted_files WHERE upload_status = $1 AND uploaded_at < $2`
	var files []*model.EncryptedFile
	if err := r.db.SelectContext(ctx, &files, query, model.UploadStatusPending, cutoff); err != nil {
		return nil, fmt.Errorf("failed to list stale pending files: %w", err)
	}
	return files, nil
}

func (r *fileRepository) ListOutdated(ctx context.Context, cutoff time.Time) ([]*model.EncryptedFile, error) {
	query := `
		SELECT * FROM encrypted_files
		WHERE upload_status = $1 AND is_deleted = false
		AND COALESCE(last_accessed_at, uploaded_at) < $2
		ORDER BY uploaded_at ASC
	`
	var files []*model.EncryptedFile
	if err := r.db.SelectContext(ctx, &files, query, model.UploadStatusCompleted, cutoff); err != nil {
		return nil, fmt.Errorf("failed to list outdated files: %w", err)
	}
	return files, nil
}

func (r *fileRepository) ListOperations(ctx context.Context) ([]*model.FileOperation, error) {
	query := `
		SELECT id AS file_id, file_name, owner_code, upload_status, is_deleted,
		       uploaded_at, last_accessed_at AS last_accessed
		FROM encrypted_files
		ORDER BY uploaded_at DESC
	`
	var ops []*model.FileOperation
	if err := r.db.SelectContext(ctx, &ops, query); err != nil {
		return nil, fmt.Errorf("failed to list file operations: %w", err)
	}
	return ops, nil
}
