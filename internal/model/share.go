package model

import (
	"time"

	"github.com/google/uuid"
)

// Share statuses
const (
	ShareStatusActive  = "active"
	ShareStatusRevoked = "revoked"
)

// Access levels
const (
	AccessLevelRead  = "read"
	AccessLevelWrite = "write"
)

// FileShare is a share edge between a file and a recipient.
type FileShare struct {
	ID            uuid.UUID  `json:"id" db:"id"`
	FileID        uuid.UUID  `json:"file_id" db:"file_id"`
	SenderCode    string     `json:"sender_code" db:"sender_code"`
	RecipientCode string     `json:"recipient_code" db:"recipient_code"`
	AccessLevel   string     `json:"access_level" db:"access_level"`
	Status        string     `json:"status" db:"status"`
	SharedAt      time.Time  `json:"shared_at" db:"shared_at"`
	RevokedAt     *time.Time `json:"revoked_at,omitempty" db:"revoked_at"`
}

// ShareView is a listing row joined with the shared file.
type ShareView struct {
	FileShare
	FileName  string `json:"file_name" db:"file_name"`
	FileSize  int64  `json:"file_size" db:"file_size"`
	OwnerCode string `json:"owner_code" db:"owner_code"`
}

type ShareRequest struct {
	FileID        string `json:"file_id" binding:"required,uuid"`
	RecipientCode string `json:"recipient_code" binding:"required"`
	AccessLevel   string `json:"access_level" binding:"required,oneof=read write"`
}

// Recipient is an entry in the available-recipients listing, derived
// from the doctor-patient connection table.
type Recipient struct {
	UserCode string `json:"user_code" db:"user_code"`
	Name     string `json:"name" db:"name"`
	Role     string `json:"role" db:"role"`
}
