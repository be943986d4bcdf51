package model

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Upload statuses
const (
	UploadStatusPending   = "pending"
	UploadStatusCompleted = "completed"
)

// Upload limits
const (
	MaxFileSize   = 50 << 20 // 50MB
	PendingMaxAge = 3 * time.Minute
)

// allowedExtensions is the upload allow-list. Files arrive already encrypted
// client-side, so the extension reflects the original document type.
var allowedExtensions = map[string]bool{
	".pdf": true, ".doc": true, ".docx": true, ".xls": true, ".xlsx": true,
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".bmp": true,
	".txt": true, ".csv": true, ".dcm": true, ".zip": true, ".enc": true,
}

// ExtensionAllowed reports whether the filename's extension may be uploaded.
func ExtensionAllowed(filename string) bool {
	idx := strings.LastIndex(filename, ".")
	if idx < 0 {
		return false
	}
	return allowedExtensions[strings.ToLower(filename[idx:])]
}

// EncryptedFile is a stored file record; the bytes live in the blob store.
type EncryptedFile struct {
	ID             uuid.UUID       `json:"id" db:"id"`
	OwnerID        uuid.UUID       `json:"owner_id" db:"owner_id"`
	OwnerCode      string          `json:"owner_code" db:"owner_code"`
	FileName       string          `json:"file_name" db:"file_name"`
	ObjectName     string          `json:"object_name" db:"object_name"`
	FileSize       int64           `json:"file_size" db:"file_size"`
	MimeType       string          `json:"mime_type" db:"mime_type"`
	EncryptionMeta json.RawMessage `json:"encryption_meta" db:"encryption_meta"`
	Bucket         string          `json:"bucket" db:"bucket"`
	UploadStatus   string          `json:"upload_status" db:"upload_status"`
	IsDeleted      bool            `json:"is_deleted" db:"is_deleted"`
	UploadedAt     time.Time       `json:"uploaded_at" db:"uploaded_at"`
	LastAccessedAt *time.Time      `json:"last_accessed_at,omitempty" db:"last_accessed_at"`
}

// FileView is a listing row: an owned or received file enriched with
// resolved display names and share context.
type FileView struct {
	ID             uuid.UUID       `json:"id"`
	FileName       string          `json:"file_name"`
	FileSize       int64           `json:"file_size"`
	MimeType       string          `json:"mime_type"`
	UploadedAt     time.Time       `json:"uploaded_at"`
	IsOwned        bool            `json:"is_owned"`
	OwnerCode      string          `json:"owner_code"`
	OwnerName      string          `json:"owner_name"`
	SharedBy       string          `json:"shared_by,omitempty"`
	SharedByName   string          `json:"shared_by_name,omitempty"`
	SharedAt       *time.Time      `json:"shared_at,omitempty"`
	AccessLevel    string          `json:"access_level,omitempty"`
	Recipients     []string        `json:"recipients,omitempty"`
	EncryptionMeta json.RawMessage `json:"encryption_meta,omitempty"`
}

// File listing filters
const (
	FileFilterAll      = "all"
	FileFilterOwned    = "owned"
	FileFilterShared   = "shared"
	FileFilterReceived = "received"
)

// File listing sort keys
const (
	FileSortName    = "name"
	FileSortSize    = "size"
	FileSortRecency = "recency"
)

type FileListRequest struct {
	Filter  string `form:"filter"`
	Search  string `form:"search"`
	SortBy  string `form:"sort_by"`
	SortDir string `form:"sort_dir"`
	Pagination
}

type FileListResponse struct {
	Files    []*FileView `json:"files"`
	Total    int         `json:"total"`
	Page     int         `json:"page"`
	PageSize int         `json:"page_size"`
}

type ConfirmUploadResponse struct {
	FileID string `json:"file_id"`
	Status string `json:"status"`
}

// FileMetadataResponse exposes filename and encryption metadata to
// the owner or an active-share holder.
type FileMetadataResponse struct {
	FileID         string          `json:"file_id"`
	FileName       string          `json:"file_name"`
	EncryptionMeta json.RawMessage `json:"encryption_meta"`
}

// FileOperation is a row in the admin all-operations view.
type FileOperation struct {
	FileID       uuid.UUID  `json:"file_id" db:"file_id"`
	FileName     string     `json:"file_name" db:"file_name"`
	OwnerCode    string     `json:"owner_code" db:"owner_code"`
	UploadStatus string     `json:"upload_status" db:"upload_status"`
	IsDeleted    bool       `json:"is_deleted" db:"is_deleted"`
	UploadedAt   time.Time  `json:"uploaded_at" db:"uploaded_at"`
	LastAccessed *time.Time `json:"last_accessed,omitempty" db:"last_accessed"`
}
