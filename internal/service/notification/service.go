package notification

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/medvault/medvault-api/internal/model"
	"github.com/medvault/medvault-api/internal/repository"
	apperrors "github.com/medvault/medvault-api/pkg/errors"
)

// Service manages per-user in-app notifications. Callers identify users
// by code; the service resolves codes to ids once per call.
type Service struct {
	repo     repository.NotificationRepository
	userRepo repository.UserRepository
}

func NewService(repo repository.NotificationRepository, userRepo repository.UserRepository) *Service {
	return &Service{repo: repo, userRepo: userRepo}
}

// Create resolves the recipient code and stores the notification.
func (s *Service) Create(ctx context.Context, req *model.CreateNotificationRequest) (*model.Notification, error) {
	recipient, err := s.userRepo.GetByCode(ctx, req.RecipientCode)
	if err != nil {
		return nil, apperrors.NotFound("recipient", err)
	}

	n := &model.Notification{
		ID:              uuid.New(),
		UserID:          recipient.ID,
		Type:            req.Type,
		Title:           req.Title,
		Message:         req.Message,
		RelatedUserCode: req.RelatedUserCode,
	}
	if req.RelatedFileID != nil {
		fileID, err := uuid.Parse(*req.RelatedFileID)
		if err != nil {
			return nil, apperrors.BadRequest("invalid related file id", err)
		}
		n.RelatedFileID = &fileID
	}
	if req.Metadata != nil {
		raw, err := json.Marshal(req.Metadata)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal notification metadata: %w", err)
		}
		n.Metadata = raw
	}

	if err := s.repo.Create(ctx, n); err != nil {
		return nil, fmt.Errorf("failed to create notification: %w", err)
	}
	return n, nil
}

// Notify is the best-effort variant used by other services: failures are
// logged and swallowed so the primary operation never fails on a
// notification write.
func (s *Service) Notify(ctx context.Context, recipientCode, notifType, title, message string, fileID *uuid.UUID, relatedUserCode *string) {
	recipient, err := s.userRepo.GetByCode(ctx, recipientCode)
	if err != nil {
		log.Warn().Err(err).Str("recipient_code", recipientCode).Msg("notification recipient lookup failed")
		return
	}
	n := &model.Notification{
		ID:              uuid.New(),
		UserID:          recipient.ID,
		Type:            notifType,
		Title:           title,
		Message:         message,
		RelatedFileID:   fileID,
		RelatedUserCode: relatedUserCode,
	}
	if err := s.repo.Create(ctx, n); err != nil {
		log.Warn().Err(err).Str("recipient_code", recipientCode).Msg("notification write failed")
	}
}

// List returns the newest notifications for a user, capped at the
// listing limit, along with the unread count.
func (s *Service) List(ctx context.Context, userCode string) (*model.NotificationListResponse, error) {
	userID, err := s.resolve(ctx, userCode)
	if err != nil {
		return nil, err
	}

	notifications, err := s.repo.ListByUser(ctx, userID, model.NotificationListLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	unread, err := s.repo.UnreadCount(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to count unread notifications: %w", err)
	}
	if notifications == nil {
		notifications = []*model.Notification{}
	}
	return &model.NotificationListResponse{
		Notifications: notifications,
		UnreadCount:   unread,
	}, nil
}

// MarkRead marks one notification read. Ownership is enforced in the
// query; marking someone else's notification reports not found.
func (s *Service) MarkRead(ctx context.Context, id uuid.UUID, userCode string) error {
	userID, err := s.resolve(ctx, userCode)
	if err != nil {
		return err
	}
	ok, err := s.repo.MarkRead(ctx, id, userID)
	if err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	if !ok {
		return apperrors.NotFound("notification", nil)
	}
	return nil
}

// MarkAllRead marks every unread notification for the user.
func (s *Service) MarkAllRead(ctx context.Context, userCode string) (int64, error) {
	userID, err := s.resolve(ctx, userCode)
	if err != nil {
		return 0, err
	}
	return s.repo.MarkAllRead(ctx, userID)
}

// Delete removes one notification owned by the user.
func (s *Service) Delete(ctx context.Context, id uuid.UUID, userCode string) error {
	userID, err := s.resolve(ctx, userCode)
	if err != nil {
		return err
	}
	ok, err := s.repo.Delete(ctx, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete notification: %w", err)
	}
	if !ok {
		return apperrors.NotFound("notification", nil)
	}
	return nil
}

// DeleteAll removes every notification for the user.
func (s *Service) DeleteAll(ctx context.Context, userCode string) (int64, error) {
	userID, err := s.resolve(ctx, userCode)
	if err != nil {
		return 0, err
	}
	return s.repo.DeleteAll(ctx, userID)
}

// UnreadCount returns the user's unread notification count.
func (s *Service) UnreadCount(ctx context.Context, userCode string) (int, error) {
	userID, err := s.resolve(ctx, userCode)
	if err != nil {
		return 0, err
	}
	return s.repo.UnreadCount(ctx, userID)
}

func (s *Service) resolve(ctx context.Context, userCode string) (uuid.UUID, error) {
	user, err := s.userRepo.GetByCode(ctx, userCode)
	if err != nil {
		return uuid.Nil, apperrors.NotFound("user", err)
	}
	return user.ID, nil
}
