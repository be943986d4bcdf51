package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Notification types
const (
	NotificationTypeFileShared   = "file_shared"
	NotificationTypeShareRevoked = "share_revoked"
	NotificationTypeShareSent    = "share_sent"
	NotificationTypeKeyActivated = "key_activated"
	NotificationTypeSystem       = "system"
)

// Per-user listing cap; older rows stay in the table but are not returned.
const NotificationListLimit = 50

type Notification struct {
	ID              uuid.UUID       `json:"id" db:"id"`
	UserID          uuid.UUID       `json:"user_id" db:"user_id"`
	Type            string          `json:"type" db:"type"`
	Title           string          `json:"title" db:"title"`
	Message         string          `json:"message" db:"message"`
	IsRead          bool            `json:"is_read" db:"is_read"`
	ReadAt          *time.Time      `json:"read_at,omitempty" db:"read_at"`
	RelatedFileID   *uuid.UUID      `json:"related_file_id,omitempty" db:"related_file_id"`
	RelatedUserCode *string         `json:"related_user_code,omitempty" db:"related_user_code"`
	Metadata        json.RawMessage `json:"metadata,omitempty" db:"metadata"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
}

type CreateNotificationRequest struct {
	RecipientCode   string  `json:"recipient_code" binding:"required"`
	Type            string  `json:"type" binding:"required"`
	Title           string  `json:"title" binding:"required"`
	Message         string  `json:"message" binding:"required"`
	RelatedFileID   *string `json:"related_file_id"`
	RelatedUserCode *string `json:"related_user_code"`
	Metadata        JSONMap `json:"metadata"`
}

type NotificationListResponse struct {
	Notifications []*Notification `json:"notifications"`
	UnreadCount   int             `json:"unread_count"`
}
