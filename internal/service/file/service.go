package file

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/medvault/medvault-api/internal/model"
	"github.com/medvault/medvault-api/internal/repository"
	"github.com/medvault/medvault-api/internal/service/audit"
	"github.com/medvault/medvault-api/internal/storage"
	apperrors "github.com/medvault/medvault-api/pkg/errors"
)

// Service handles the encrypted-file lifecycle: upload, confirmation,
// listing, download, deletion, and the background sweeps. File bytes go
// to the blob store; only metadata lives in Postgres.
type Service struct {
	fileRepo   repository.FileRepository
	shareRepo  repository.ShareRepository
	userRepo   repository.UserRepository
	outboxRepo repository.OutboxRepository
	blobs      storage.BlobStore
	bucket     string
	auditor    *audit.Service
}

func NewService(
	fileRepo repository.FileRepository,
	shareRepo repository.ShareRepository,
	userRepo repository.UserRepository,
	outboxRepo repository.OutboxRepository,
	blobs storage.BlobStore,
	bucket string,
	auditor *audit.Service,
) *Service {
	return &Service{
		fileRepo:   fileRepo,
		shareRepo:  shareRepo,
		userRepo:   userRepo,
		outboxRepo: outboxRepo,
		blobs:      blobs,
		bucket:     bucket,
		auditor:    auditor,
	}
}

// Upload stores the file bytes and a pending metadata row. The client must
// confirm the upload within the pending window or the sweep removes it.
func (s *Service) Upload(ctx context.Context, ownerCode, fileName, mimeType string, encryptionMeta json.RawMessage, size int64, body io.Reader) (*model.EncryptedFile, error) {
	owner, err := s.userRepo.GetByCode(ctx, ownerCode)
	if err != nil {
		return nil, apperrors.NotFound("user", err)
	}
	if size <= 0 {
		return nil, apperrors.BadRequest("empty file", nil)
	}
	if size > model.MaxFileSize {
		s.auditFile(ctx, ownerCode, model.AuditActionFileUpload, uuid.Nil,
			fmt.Sprintf("upload of %s rejected: %d bytes over limit", fileName, size), fmt.Errorf("file too large"))
		return nil, apperrors.BadRequest("file exceeds the 50MB limit", nil)
	}
	if !model.ExtensionAllowed(fileName) {
		s.auditFile(ctx, ownerCode, model.AuditActionFileUpload, uuid.Nil,
			fmt.Sprintf("upload of %s rejected: extension not allowed", fileName), fmt.Errorf("extension not allowed"))
		return nil, apperrors.BadRequest("file type is not allowed", nil)
	}

	id := uuid.New()
	objectName := fmt.Sprintf("files/%s/%s%s", owner.UserCode, id, strings.ToLower(filepath.Ext(fileName)))

	if err := s.blobs.Put(ctx, objectName, body, size, mimeType); err != nil {
		return nil, fmt.Errorf("failed to store file bytes: %w", err)
	}

	file := &model.EncryptedFile{
		ID:             id,
		OwnerID:        owner.ID,
		OwnerCode:      owner.UserCode,
		FileName:       fileName,
		ObjectName:     objectName,
		FileSize:       size,
		MimeType:       mimeType,
		EncryptionMeta: encryptionMeta,
		Bucket:         s.bucket,
		UploadStatus:   model.UploadStatusPending,
	}
	if err := s.fileRepo.Create(ctx, file); err != nil {
		// Roll back the orphaned object; the sweep would never see it.
		if delErr := s.blobs.Delete(ctx, objectName); delErr != nil {
			log.Warn().Err(delErr).Str("object", objectName).Msg("failed to remove orphaned object")
		}
		return nil, fmt.Errorf("failed to store file metadata: %w", err)
	}

	s.auditFile(ctx, ownerCode, model.AuditActionFileUpload, file.ID,
		fmt.Sprintf("uploaded %s (%d bytes)", fileName, size), nil)
	return file, nil
}

// Confirm flips a pending upload to completed. Confirming an already
// completed or unknown file reports not found.
func (s *Service) Confirm(ctx context.Context, fileID uuid.UUID, actorCode string) (*model.ConfirmUploadResponse, error) {
	file, err := s.fileRepo.Get(ctx, fileID)
	if err != nil {
		return nil, apperrors.NotFound("file", err)
	}
	if file.OwnerCode != actorCode {
		return nil, apperrors.Forbidden("only the owner can confirm an upload", nil)
	}

	ok, err := s.fileRepo.ConfirmUpload(ctx, fileID)
	if err != nil {
		return nil, fmt.Errorf("failed to confirm upload: %w", err)
	}
	if !ok {
		return nil, apperrors.NotFound("pending upload", nil)
	}

	s.auditFile(ctx, actorCode, model.AuditActionFileConfirm, fileID,
		fmt.Sprintf("confirmed upload of %s", file.FileName), nil)
	return &model.ConfirmUploadResponse{
		FileID: fileID.String(),
		Status: model.UploadStatusCompleted,
	}, nil
}

// ListMyFiles builds the user's unified file view: owned completed files
// plus active shares received, filtered, searched, sorted, and paginated
// in memory.
func (s *Service) ListMyFiles(ctx context.Context, userCode string, req *model.FileListRequest) (*model.FileListResponse, error) {
	user, err := s.userRepo.GetByCode(ctx, userCode)
	if err != nil {
		return nil, apperrors.NotFound("user", err)
	}

	names := newNameCache(s.userRepo)

	var views []*model.FileView

	if req.Filter != model.FileFilterReceived {
		owned, err := s.fileRepo.ListByOwner(ctx, user.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to list owned files: %w", err)
		}
		sent, err := s.shareRepo.ListBySender(ctx, userCode)
		if err != nil {
			return nil, fmt.Errorf("failed to list sent shares: %w", err)
		}
		recipientsByFile := make(map[uuid.UUID][]string)
		for _, sh := range sent {
			if sh.Status == model.ShareStatusActive {
				recipientsByFile[sh.FileID] = append(recipientsByFile[sh.FileID], sh.RecipientCode)
			}
		}

		for _, f := range owned {
			if f.UploadStatus != model.UploadStatusCompleted {
				continue
			}
			recipients := recipientsByFile[f.ID]
			if req.Filter == model.FileFilterShared && len(recipients) == 0 {
				continue
			}
			views = append(views, &model.FileView{
				ID:             f.ID,
				FileName:       f.FileName,
				FileSize:       f.FileSize,
				MimeType:       f.MimeType,
				UploadedAt:     f.UploadedAt,
				IsOwned:        true,
				OwnerCode:      f.OwnerCode,
				OwnerName:      names.resolve(ctx, f.OwnerCode),
				Recipients:     recipients,
				EncryptionMeta: f.EncryptionMeta,
			})
		}
	}

	if req.Filter == model.FileFilterAll || req.Filter == "" || req.Filter == model.FileFilterReceived {
		received, err := s.shareRepo.ListByRecipient(ctx, userCode)
		if err != nil {
			return nil, fmt.Errorf("failed to list received shares: %w", err)
		}
		for _, sh := range received {
			if sh.Status != model.ShareStatusActive {
				continue
			}
			sharedAt := sh.SharedAt
			views = append(views, &model.FileView{
				ID:           sh.FileID,
				FileName:     sh.FileName,
				FileSize:     sh.FileSize,
				MimeType:     "",
				UploadedAt:   sh.SharedAt,
				IsOwned:      false,
				OwnerCode:    sh.OwnerCode,
				OwnerName:    names.resolve(ctx, sh.OwnerCode),
				SharedBy:     sh.SenderCode,
				SharedByName: names.resolve(ctx, sh.SenderCode),
				SharedAt:     &sharedAt,
				AccessLevel:  sh.AccessLevel,
			})
		}
	}

	if req.Search != "" {
		needle := strings.ToLower(req.Search)
		filtered := views[:0]
		for _, v := range views {
			if strings.Contains(strings.ToLower(v.FileName), needle) ||
				strings.Contains(strings.ToLower(v.OwnerName), needle) ||
				strings.Contains(strings.ToLower(v.SharedByName), needle) {
				filtered = append(filtered, v)
			}
		}
		views = filtered
	}

	sortViews(views, req.SortBy, req.SortDir)

	total := len(views)
	req.Pagination.Normalize()
	offset := req.Pagination.Offset()
	if offset > total {
		offset = total
	}
	end := offset + req.Pagination.PageSize
	if end > total {
		end = total
	}
	page := views[offset:end]
	if page == nil {
		page = []*model.FileView{}
	}

	return &model.FileListResponse{
		Files:    page,
		Total:    total,
		Page:     req.Pagination.Page,
		PageSize: req.Pagination.PageSize,
	}, nil
}

// Download streams the file bytes to the owner or an active-share holder
// and stamps last access.
func (s *Service) Download(ctx context.Context, fileID uuid.UUID, actorCode string) (*model.EncryptedFile, io.ReadCloser, error) {
	file, err := s.authorizeAccess(ctx, fileID, actorCode)
	if err != nil {
		s.auditFile(ctx, actorCode, model.AuditActionFileDownload, fileID, "download denied", err)
		return nil, nil, err
	}

	body, err := s.blobs.Get(ctx, file.ObjectName)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read file bytes: %w", err)
	}

	if err := s.fileRepo.StampLastAccessed(ctx, file.ID); err != nil {
		log.Warn().Err(err).Str("file_id", file.ID.String()).Msg("failed to stamp last access")
	}

	s.auditFile(ctx, actorCode, model.AuditActionFileDownload, file.ID,
		fmt.Sprintf("downloaded %s", file.FileName), nil)
	return file, body, nil
}

// Metadata returns filename and encryption metadata to the owner or an
// active-share holder.
func (s *Service) Metadata(ctx context.Context, fileID uuid.UUID, actorCode string) (*model.FileMetadataResponse, error) {
	file, err := s.authorizeAccess(ctx, fileID, actorCode)
	if err != nil {
		return nil, err
	}
	return &model.FileMetadataResponse{
		FileID:         file.ID.String(),
		FileName:       file.FileName,
		EncryptionMeta: file.EncryptionMeta,
	}, nil
}

// Delete soft-deletes an owned file, revokes all its shares, removes the
// blob, and queues a FILE_DELETED event.
func (s *Service) Delete(ctx context.Context, fileID uuid.UUID, actorCode string) error {
	file, err := s.fileRepo.Get(ctx, fileID)
	if err != nil {
		return apperrors.NotFound("file", err)
	}
	if file.IsDeleted {
		return apperrors.NotFound("file", nil)
	}
	if file.OwnerCode != actorCode {
		s.auditFile(ctx, actorCode, model.AuditActionFileDelete, fileID, "delete denied: not the owner", fmt.Errorf("not the owner"))
		return apperrors.Forbidden("only the owner can delete a file", nil)
	}

	ok, err := s.fileRepo.SoftDelete(ctx, file.ID, file.OwnerID)
	if err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	if !ok {
		return apperrors.NotFound("file", nil)
	}

	if err := s.shareRepo.RevokeAllForFile(ctx, file.ID); err != nil {
		log.Warn().Err(err).Str("file_id", file.ID.String()).Msg("failed to revoke shares of deleted file")
	}
	if err := s.blobs.Delete(ctx, file.ObjectName); err != nil {
		log.Warn().Err(err).Str("object", file.ObjectName).Msg("failed to delete file bytes")
	}

	s.auditFile(ctx, actorCode, model.AuditActionFileDelete, file.ID,
		fmt.Sprintf("deleted %s", file.FileName), nil)
	s.publish(ctx, model.EventFileDeleted, map[string]string{
		"file_id":    file.ID.String(),
		"file_name":  file.FileName,
		"owner_code": file.OwnerCode,
	})
	return nil
}

// CleanupPending removes uploads that were never confirmed within the
// pending window. Each row is handled independently so one failure does
// not block the sweep.
func (s *Service) CleanupPending(ctx context.Context) (int, error) {
	cutoff := time.Now().Add(-model.PendingMaxAge)
	stale, err := s.fileRepo.ListPendingOlderThan(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to list stale uploads: %w", err)
	}

	removed := 0
	for _, f := range stale {
		if err := s.blobs.Delete(ctx, f.ObjectName); err != nil {
			log.Warn().Err(err).Str("object", f.ObjectName).Msg("failed to delete stale object")
			continue
		}
		if err := s.fileRepo.HardDelete(ctx, f.ID); err != nil {
			log.Warn().Err(err).Str("file_id", f.ID.String()).Msg("failed to delete stale file row")
			continue
		}
		removed++
		s.auditFile(ctx, "", model.AuditActionFileCleanup, f.ID,
			fmt.Sprintf("removed unconfirmed upload %s", f.FileName), nil)
	}
	return removed, nil
}

// Outdated lists completed files not accessed since the cutoff.
func (s *Service) Outdated(ctx context.Context, olderThan time.Duration) ([]*model.EncryptedFile, error) {
	return s.fileRepo.ListOutdated(ctx, time.Now().Add(-olderThan))
}

// BulkDeleteOutdated deletes every file not accessed since the cutoff.
// Admin maintenance path; shares are revoked like a normal delete.
func (s *Service) BulkDeleteOutdated(ctx context.Context, olderThan time.Duration, actorCode string) (int, error) {
	files, err := s.fileRepo.ListOutdated(ctx, time.Now().Add(-olderThan))
	if err != nil {
		return 0, fmt.Errorf("failed to list outdated files: %w", err)
	}

	deleted := 0
	for _, f := range files {
		ok, err := s.fileRepo.SoftDelete(ctx, f.ID, f.OwnerID)
		if err != nil || !ok {
			log.Warn().Err(err).Str("file_id", f.ID.String()).Msg("failed to delete outdated file")
			continue
		}
		if err := s.shareRepo.RevokeAllForFile(ctx, f.ID); err != nil {
			log.Warn().Err(err).Str("file_id", f.ID.String()).Msg("failed to revoke shares of outdated file")
		}
		if err := s.blobs.Delete(ctx, f.ObjectName); err != nil {
			log.Warn().Err(err).Str("object", f.ObjectName).Msg("failed to delete outdated object")
		}
		deleted++
	}

	s.auditFile(ctx, actorCode, model.AuditActionBulkFileDelete, uuid.Nil,
		fmt.Sprintf("bulk deleted %d outdated files", deleted), nil)
	return deleted, nil
}

// AllOperations returns the admin view over every file row.
func (s *Service) AllOperations(ctx context.Context) ([]*model.FileOperation, error) {
	return s.fileRepo.ListOperations(ctx)
}

// authorizeAccess loads the file and checks the actor is the owner or
// holds an active share. Pending and deleted files are invisible.
func (s *Service) authorizeAccess(ctx context.Context, fileID uuid.UUID, actorCode string) (*model.EncryptedFile, error) {
	file, err := s.fileRepo.Get(ctx, fileID)
	if err != nil {
		return nil, apperrors.NotFound("file", err)
	}
	if file.IsDeleted || file.UploadStatus != model.UploadStatusCompleted {
		return nil, apperrors.NotFound("file", nil)
	}
	if file.OwnerCode == actorCode {
		return file, nil
	}

	share, err := s.shareRepo.GetActiveByFileAndRecipient(ctx, file.ID, actorCode)
	if err != nil {
		return nil, fmt.Errorf("failed to check share access: %w", err)
	}
	if share == nil {
		return nil, apperrors.Forbidden("you do not have access to this file", nil)
	}
	return file, nil
}

func (s *Service) auditFile(ctx context.Context, actorCode, action string, fileID uuid.UUID, details string, opErr error) {
	resourceType := "file"
	var code *string
	if actorCode != "" {
		code = &actorCode
	}
	var resourceID *string
	if fileID != uuid.Nil {
		id := fileID.String()
		resourceID = &id
	}
	s.auditor.LogAction(ctx, code, action, &resourceType, resourceID, details, opErr, nil)
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

// nameCache resolves user codes to display names once per request.
type nameCache struct {
	repo  repository.UserRepository
	names map[string]string
}

func newNameCache(repo repository.UserRepository) *nameCache {
	return &nameCache{repo: repo, names: make(map[string]string)}
}

func (c *nameCache) resolve(ctx context.Context, userCode string) string {
	if name, ok := c.names[userCode]; ok {
		return name
	}
	name := userCode
	if user, err := c.repo.GetByCode(ctx, userCode); err == nil {
		name = user.Name
	}
	c.names[userCode] = name
	return name
}

func sortViews(views []*model.FileView, sortBy, sortDir string) {
	desc := strings.EqualFold(sortDir, "desc")
	less := func(i, j int) bool { return views[i].UploadedAt.After(views[j].UploadedAt) }
	switch sortBy {
	case model.FileSortName:
		less = func(i, j int) bool {
			return strings.ToLower(views[i].FileName) < strings.ToLower(views[j].FileName)
		}
	case model.FileSortSize:
		less = func(i, j int) bool { return views[i].FileSize < views[j].FileSize }
	case model.FileSortRecency:
		less = func(i, j int) bool { return views[i].UploadedAt.Before(views[j].UploadedAt) }
	}
	sort.SliceStable(views, less)
	if desc && sortBy != "" {
		for i, j := 0, len(views)-1; i < j; i, j = i+1, j-1 {
			views[i], views[j] = views[j], views[i]
		}
	}
}
