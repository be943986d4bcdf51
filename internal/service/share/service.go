package share

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/medvault/medvault-api/internal/model"
	"github.com/medvault/medvault-api/internal/repository"
	"github.com/medvault/medvault-api/internal/service/audit"
	"github.com/medvault/medvault-api/internal/service/notification"
	apperrors "github.com/medvault/medvault-api/pkg/errors"
)

// Service manages file shares between connected doctors and patients.
type Service struct {
	shareRepo  repository.ShareRepository
	fileRepo   repository.FileRepository
	userRepo   repository.UserRepository
	connRepo   repository.ConnectionRepository
	outboxRepo repository.OutboxRepository
	notifier   *notification.Service
	auditor    *audit.Service
}

func NewService(
	shareRepo repository.ShareRepository,
	fileRepo repository.FileRepository,
	userRepo repository.UserRepository,
	connRepo repository.ConnectionRepository,
	outboxRepo repository.OutboxRepository,
	notifier *notification.Service,
	auditor *audit.Service,
) *Service {
	return &Service{
		shareRepo:  shareRepo,
		fileRepo:   fileRepo,
		userRepo:   userRepo,
		connRepo:   connRepo,
		outboxRepo: outboxRepo,
		notifier:   notifier,
		auditor:    auditor,
	}
}

// Share grants a recipient access to one of the sender's files. The file
// must be completed and owned by the sender, the recipient must exist and
// differ from the sender, and at most one active share may exist per
// file-recipient pair. Both parties get a best-effort notification.
func (s *Service) Share(ctx context.Context, req *model.ShareRequest, senderCode string) (*model.FileShare, error) {
	fileID, err := uuid.Parse(req.FileID)
	if err != nil {
		return nil, apperrors.BadRequest("invalid file id", err)
	}

	file, err := s.fileRepo.Get(ctx, fileID)
	if err != nil {
		return nil, apperrors.NotFound("file", err)
	}
	if file.IsDeleted || file.UploadStatus != model.UploadStatusCompleted {
		return nil, apperrors.NotFound("file", nil)
	}
	if file.OwnerCode != senderCode {
		s.auditShare(ctx, senderCode, model.AuditActionFileShare, nil,
			fmt.Sprintf("share of %s denied: not the owner", fileID), fmt.Errorf("not the owner"))
		return nil, apperrors.Forbidden("only the owner can share a file", nil)
	}

	if req.RecipientCode == senderCode {
		return nil, apperrors.BadRequest("cannot share a file with yourself", nil)
	}
	recipient, err := s.userRepo.GetByCode(ctx, req.RecipientCode)
	if err != nil {
		return nil, apperrors.NotFound("recipient", err)
	}
	if !recipient.IsActive {
		return nil, apperrors.Forbidden("recipient account is deactivated", nil)
	}

	existing, err := s.shareRepo.GetActiveByFileAndRecipient(ctx, file.ID, recipient.UserCode)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing share: %w", err)
	}
	if existing != nil {
		return nil, apperrors.Conflict(
			fmt.Sprintf("file is already shared with this recipient (share %s)", existing.ID), nil)
	}

	share := &model.FileShare{
		ID:            uuid.New(),
		FileID:        file.ID,
		SenderCode:    senderCode,
		RecipientCode: recipient.UserCode,
		AccessLevel:   req.AccessLevel,
		Status:        model.ShareStatusActive,
	}
	if err := s.shareRepo.Create(ctx, share); err != nil {
		return nil, fmt.Errorf("failed to create share: %w", err)
	}

	s.auditShare(ctx, senderCode, model.AuditActionFileShare, &share.ID,
		fmt.Sprintf("shared %s with %s (%s)", file.FileName, recipient.UserCode, req.AccessLevel), nil)

	s.notifier.Notify(ctx, recipient.UserCode, model.NotificationTypeFileShared,
		"New file shared with you",
		fmt.Sprintf("%s shared %s with you", senderCode, file.FileName),
		&file.ID, &senderCode)
	s.notifier.Notify(ctx, senderCode, model.NotificationTypeShareSent,
		"File shared",
		fmt.Sprintf("You shared %s with %s", file.FileName, recipient.UserCode),
		&file.ID, &recipient.UserCode)

	s.publish(ctx, model.EventFileShared, map[string]string{
		"share_id":       share.ID.String(),
		"file_id":        file.ID.String(),
		"file_name":      file.FileName,
		"sender_code":    senderCode,
		"recipient_code": recipient.UserCode,
		"access_level":   req.AccessLevel,
	})

	return share, nil
}

// Revoke withdraws an active share. Only the file owner or the original
// sender may revoke; the recipient is notified.
func (s *Service) Revoke(ctx context.Context, shareID uuid.UUID, actorCode string) error {
	share, err := s.shareRepo.Get(ctx, shareID)
	if err != nil {
		return apperrors.NotFound("share", err)
	}
	if share.Status != model.ShareStatusActive {
		return apperrors.Conflict("share is already revoked", nil)
	}

	file, err := s.fileRepo.Get(ctx, share.FileID)
	if err != nil {
		return apperrors.NotFound("file", err)
	}
	if actorCode != share.SenderCode && actorCode != file.OwnerCode {
		s.auditShare(ctx, actorCode, model.AuditActionShareRevoke, &share.ID,
			"revoke denied: not owner or sender", fmt.Errorf("not authorized"))
		return apperrors.Forbidden("only the owner or sender can revoke a share", nil)
	}

	if err := s.shareRepo.Revoke(ctx, share.ID); err != nil {
		return fmt.Errorf("failed to revoke share: %w", err)
	}

	s.auditShare(ctx, actorCode, model.AuditActionShareRevoke, &share.ID,
		fmt.Sprintf("revoked share of %s from %s", file.FileName, share.RecipientCode), nil)

	s.notifier.Notify(ctx, share.RecipientCode, model.NotificationTypeShareRevoked,
		"File access revoked",
		fmt.Sprintf("Your access to %s was revoked", file.FileName),
		&file.ID, &actorCode)

	s.publish(ctx, model.EventShareRevoked, map[string]string{
		"share_id":       share.ID.String(),
		"file_id":        file.ID.String(),
		"recipient_code": share.RecipientCode,
		"revoked_by":     actorCode,
	})

	return nil
}

// ListReceived returns shares where the user is the recipient.
func (s *Service) ListReceived(ctx context.Context, userCode string) ([]*model.ShareView, error) {
	return s.shareRepo.ListByRecipient(ctx, userCode)
}

// ListSent returns shares where the user is the sender.
func (s *Service) ListSent(ctx context.Context, userCode string) ([]*model.ShareView, error) {
	return s.shareRepo.ListBySender(ctx, userCode)
}

// ListByFile returns all shares of one file to its owner.
func (s *Service) ListByFile(ctx context.Context, fileID uuid.UUID, actorCode string) ([]*model.FileShare, error) {
	file, err := s.fileRepo.Get(ctx, fileID)
	if err != nil {
		return nil, apperrors.NotFound("file", err)
	}
	if file.OwnerCode != actorCode {
		return nil, apperrors.Forbidden("only the owner can list a file's shares", nil)
	}
	return s.shareRepo.ListByFile(ctx, fileID)
}

// SharedWith returns the recipient codes currently holding an active
// share of the file. Owner only.
func (s *Service) SharedWith(ctx context.Context, fileID uuid.UUID, actorCode string) ([]string, error) {
	shares, err := s.ListByFile(ctx, fileID, actorCode)
	if err != nil {
		return nil, err
	}
	recipients := make([]string, 0, len(shares))
	for _, sh := range shares {
		if sh.Status == model.ShareStatusActive {
			recipients = append(recipients, sh.RecipientCode)
		}
	}
	return recipients, nil
}

// ListAll returns every share row. Admin read path.
func (s *Service) ListAll(ctx context.Context) ([]*model.ShareView, error) {
	return s.shareRepo.ListAll(ctx)
}

// AvailableRecipients lists the users a file can be shared with: the
// actor's connected counterparts from the pairing table.
func (s *Service) AvailableRecipients(ctx context.Context, actorCode string) ([]*model.Recipient, error) {
	actor, err := s.userRepo.GetByCode(ctx, actorCode)
	if err != nil {
		return nil, apperrors.NotFound("user", err)
	}

	conns, err := s.connRepo.ListForUser(ctx, actorCode)
	if err != nil {
		return nil, fmt.Errorf("failed to list connections: %w", err)
	}

	recipients := make([]*model.Recipient, 0, len(conns))
	seen := make(map[string]bool)
	for _, conn := range conns {
		counterpart := conn.DoctorCode
		if actor.Role == model.RoleDoctor {
			counterpart = conn.PatientCode
		}
		if seen[counterpart] {
			continue
		}
		seen[counterpart] = true

		user, err := s.userRepo.GetByCode(ctx, counterpart)
		if err != nil {
			log.Warn().Err(err).Str("user_code", counterpart).Msg("connection references unknown user")
			continue
		}
		if !user.IsActive {
			continue
		}
		recipients = append(recipients, &model.Recipient{
			UserCode: user.UserCode,
			Name:     user.Name,
			Role:     user.Role,
		})
	}
	return recipients, nil
}

func (s *Service) auditShare(ctx context.Context, actorCode, action string, shareID *uuid.UUID, details string, opErr error) {
	resourceType := "file_share"
	var resourceID *string
	if shareID != nil {
		id := shareID.String()
		resourceID = &id
	}
	s.auditor.LogAction(ctx, &actorCode, action, &resourceType, resourceID, details, opErr, nil)
}

func (s *Service) publish(ctx context.Context, eventType string, payload interface{}) {
	raw, err := json.Marshal(payload)
	if err != nil {
		log.Warn().Err(err).Str("event_type", eventType).Msg("failed to marshal outbox payload")
		return
	}
	event := &model.OutboxEvent{
		ID:        uuid.New(),
		EventType: eventType,
		Payload:   raw,
		Status:    string(model.OutboxStatusPending),
	}
	if err := s.outboxRepo.Create(ctx, event); err != nil {
		log.Warn().Err(err).Str("event_type", eventType).Msg("failed to enqueue outbox event")
	}
}
