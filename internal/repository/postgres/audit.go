package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/medvault/medvault-api/internal/model"
	"github.com/medvault/medvault-api/internal/repository"
)

type auditRepository struct {
	db *sqlx.DB
}

func NewAuditRepository(db *sqlx.DB) repository.AuditRepository {
	return &auditRepository{db: db}
}

func (r *auditRepository) CreateLog(ctx context.Context, entry *model.AuditLog) error {
	query := `
		INSERT INTO audit_logs (
			id, user_code, action, resource_type, resource_id,
			details, result, error_message, metadata, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	entry.CreatedAt = time.Now()

	_, err := r.db.ExecContext(ctx, query,
		entry.ID,
		entry.UserCode,
		entry.Action,
		entry.ResourceType,
		entry.ResourceID,
		entry.Details,
		entry.Result,
		entry.ErrorMessage,
		entry.Metadata,
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create audit log: %w", err)
	}
	return nil
}

func (r *auditRepository) CreateLoginAudit(ctx context.Context, entry *model.LoginAudit) error {
	query := `
		INSERT INTO login_audit (
			id, user_code, action, result, details, error_message, ip_address, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	entry.CreatedAt = time.Now()

	_, err := r.db.ExecContext(ctx, query,
		entry.ID,
		entry.UserCode,
		entry.Action,
		entry.Result,
		entry.Details,
		entry.ErrorMessage,
		entry.IPAddress,
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create login audit: %w", err)
	}
	return nil
}

func (r *auditRepository) ListLogs(ctx context.Context, from, to *time.Time, limit int) ([]*model.AuditLog, error) {
	query := `SELECT * FROM audit_logs WHERE 1=1`
	args := []interface{}{}
	if from != nil {
		args = append(args, *from)
		query += fmt.Sprintf(" AND created_at >= $%d", len(args))
	}
	if to != nil {
		args = append(args, *to)
		query += fmt.Sprintf(" AND created_at <= $%d", len(args))
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", len(args))

	var logs []*model.AuditLog
	if err := r.db.SelectContext(ctx, &logs, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list audit logs: %w", err)
	}
	return logs, nil
}

func (r *auditRepository) ListLoginAudits(ctx context.Context, from, to *time.Time, limit int) ([]*model.LoginAudit, error) {
	query := `SELECT * FROM login_audit WHERE 1=1`
	args := []interface{}{}
	if from != nil {
		args = append(args, *from)
		query += fmt.Sprintf(" AND created_at >= $%d", len(args))
	}
	if to != nil {
		args = append(args, *to)
		query += fmt.Sprintf(" AND created_at <= $%d", len(args))
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", len(args))

	var logs []*model.LoginAudit
	if err := r.db.SelectContext(ctx, &logs, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list login audits: %w", err)
	}
	return logs, nil
}

func (r *auditRepository) DeleteOlderThan(ctx context.Context, before time.Time) (int64, error) {
	var total int64
	res, err := r.db.ExecContext(ctx, `DELETE FROM audit_logs WHERE created_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("failed to purge audit logs: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil {
		total += n
	}

	res, err = r.db.ExecContext(ctx, `DELETE FROM login_audit WHERE created_at < $1`, before)
	if err != nil {
		return total, fmt.Errorf("failed to purge login audits: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil {
		total += n
	}
	return total, nil
}
