package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/medvault/medvault-api/internal/model"
)

// All repository interfaces in one file.
// Lookup methods that back existence checks return (nil, nil) when no row
// matches; Get methods return a wrapped sql.ErrNoRows.
type (
	UserRepository interface {
		Create(ctx context.Context, user *model.User) error
		Get(ctx context.Context, id uuid.UUID) (*model.User, error)
		GetByCode(ctx context.Context, userCode string) (*model.User, error)
		GetByCodeAndRole(ctx context.Context, userCode, role string) (*model.User, error)
		GetByEmail(ctx context.Context, email string) (*model.User, error)
		List(ctx context.Context) ([]*model.User, error)
		ListCodesByPrefix(ctx context.Context, prefix string) ([]string, error)
		UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string, mustReset bool) error
		StampLastLogin(ctx context.Context, id uuid.UUID) error
	}

	KeyPairRepository interface {
		Create(ctx context.Context, pair *model.KeyPair) error
		Get(ctx context.Context, id uuid.UUID) (*model.KeyPair, error)
		// GetLiveByPair returns the newest Pending or Active pair for the
		// doctor/patient combination, nil when none exists.
		GetLiveByPair(ctx context.Context, doctorCode, patientCode string) (*model.KeyPair, error)
		List(ctx context.Context) ([]*model.KeyPair, error)
		ListByParticipant(ctx context.Context, userCode string) ([]*model.KeyPair, error)
		UpdateStatus(ctx context.Context, id uuid.UUID, status model.KeyPairStatus) error
		Delete(ctx context.Context, id uuid.UUID) error
	}

	ConnectionRepository interface {
		Create(ctx context.Context, conn *model.Connection) error
		Exists(ctx context.Context, doctorCode, patientCode string) (bool, error)
		ListForUser(ctx context.Context, userCode string) ([]*model.Connection, error)
		Delete(ctx context.Context, doctorCode, patientCode string) error
	}

	FileRepository interface {
		Create(ctx context.Context, file *model.EncryptedFile) error
		Get(ctx context.Context, id uuid.UUID) (*model.EncryptedFile, error)
		ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*model.EncryptedFile, error)
		ConfirmUpload(ctx context.Context, id uuid.UUID) (bool, error)
		SoftDelete(ctx context.Context, id, ownerID uuid.UUID) (bool, error)
		HardDelete(ctx context.Context, id uuid.UUID) error
		StampLastAccessed(ctx context.Context, id uuid.UUID) error
		ListPendingOlderThan(ctx context.Context, cutoff time.Time) ([]*model.EncryptedFile, error)
		ListOutdated(ctx context.Context, cutoff time.Time) ([]*model.EncryptedFile, error)
		ListOperations(ctx context.Context) ([]*model.FileOperation, error)
	}

	ShareRepository interface {
		Create(ctx context.Context, share *model.FileShare) error
		Get(ctx context.Context, id uuid.UUID) (*model.FileShare, error)
		GetActiveByFileAndRecipient(ctx context.Context, fileID uuid.UUID, recipientCode string) (*model.FileShare, error)
		Revoke(ctx context.Context, id uuid.UUID) error
		RevokeAllForFile(ctx context.Context, fileID uuid.UUID) error
		ListByFile(ctx context.Context, fileID uuid.UUID) ([]*model.FileShare, error)
		ListBySender(ctx context.Context, senderCode string) ([]*model.ShareView, error)
		ListByRecipient(ctx context.Context, recipientCode string) ([]*model.ShareView, error)
		ListAll(ctx context.Context) ([]*model.ShareView, error)
	}

	NotificationRepository interface {
		Create(ctx context.Context, n *model.Notification) error
		ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*model.Notification, error)
		MarkRead(ctx context.Context, id, userID uuid.UUID) (bool, error)
		MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error)
		Delete(ctx context.Context, id, userID uuid.UUID) (bool, error)
		DeleteAll(ctx context.Context, userID uuid.UUID) (int64, error)
		UnreadCount(ctx context.Context, userID uuid.UUID) (int, error)
	}

	AuditRepository interface {
		CreateLog(ctx context.Context, entry *model.AuditLog) error
		CreateLoginAudit(ctx context.Context, entry *model.LoginAudit) error
		ListLogs(ctx context.Context, from, to *time.Time, limit int) ([]*model.AuditLog, error)
		ListLoginAudits(ctx context.Context, from, to *time.Time, limit int) ([]*model.LoginAudit, error)
		DeleteOlderThan(ctx context.Context, before time.Time) (int64, error)
	}

	BiometricRepository interface {
		CreateCredential(ctx context.Context, cred *model.BiometricCredential) error
		GetCredential(ctx context.Context, userCode, deviceID string) (*model.BiometricCredential, error)
		HasCredential(ctx context.Context, userCode string) (bool, error)
		CreateChallenge(ctx context.Context, ch *model.BiometricChallenge) error
		GetChallenge(ctx context.Context, id uuid.UUID) (*model.BiometricChallenge, error)
		MarkChallengeUsed(ctx context.Context, id uuid.UUID) error
	}

	OutboxRepository interface {
		Create(ctx context.Context, event *model.OutboxEvent) error
		GetPendingEvents(ctx context.Context, limit int) ([]*model.OutboxEvent, error)
		MarkProcessed(ctx context.Context, id uuid.UUID) error
		MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error
		DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)
	}
)
