package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Audit results
const (
	AuditResultSuccess = "SUCCESS"
	AuditResultFailed  = "FAILED"
)

// Audit action tags
const (
	AuditActionLogin          = "LOGIN"
	AuditActionLogout         = "LOGOUT"
	AuditActionVerifyOtp      = "VERIFY_OTP"
	AuditActionResetPassword  = "RESET_PASSWORD"
	AuditActionCreateUser     = "CREATE_USER"
	AuditActionKeyGenerate    = "KEY_GENERATE"
	AuditActionKeyScan        = "KEY_SCAN"
	AuditActionKeyRotate      = "KEY_ROTATE"
	AuditActionKeyRevoke      = "KEY_REVOKE"
	AuditActionKeyRetrieve    = "KEY_RETRIEVE"
	AuditActionKeyStatus      = "KEY_STATUS"
	AuditActionKeyDelete      = "KEY_DELETE"
	AuditActionFileUpload     = "FILE_UPLOAD"
	AuditActionFileConfirm    = "FILE_CONFIRM"
	AuditActionFileDownload   = "FILE_DOWNLOAD"
	AuditActionFileDelete     = "FILE_DELETE"
	AuditActionFileCleanup    = "FILE_CLEANUP"
	AuditActionFileShare      = "FILE_SHARE"
	AuditActionShareRevoke    = "SHARE_REVOKE"
	AuditActionBiometricAuth  = "BIOMETRIC_AUTH"
	AuditActionBulkFileDelete = "BULK_FILE_DELETE"
)

// keyActions is the key-and-pairing action family used by read-path filters.
var keyActions = map[string]bool{
	AuditActionKeyGenerate: true,
	AuditActionKeyScan:     true,
	AuditActionKeyRotate:   true,
	AuditActionKeyRevoke:   true,
	AuditActionKeyRetrieve: true,
	AuditActionKeyStatus:   true,
	AuditActionKeyDelete:   true,
}

// IsKeyAction reports whether action belongs to the key/pairing family.
func IsKeyAction(action string) bool {
	return keyActions[action]
}

// AuditLog is a row in the general append-only log table.
// UserCode is nil for system-initiated actions.
type AuditLog struct {
	ID           uuid.UUID       `json:"id" db:"id"`
	UserCode     *string         `json:"user_code" db:"user_code"`
	Action       string          `json:"action" db:"action"`
	ResourceType *string         `json:"resource_type,omitempty" db:"resource_type"`
	ResourceID   *string         `json:"resource_id,omitempty" db:"resource_id"`
	Details      string          `json:"details" db:"details"`
	Result       string          `json:"result" db:"result"`
	ErrorMessage *string         `json:"error_message,omitempty" db:"error_message"`
	Metadata     json.RawMessage `json:"metadata,omitempty" db:"metadata"`
	CreatedAt    time.Time       `json:"created_at" db:"created_at"`
}

// LoginAudit is a row in the auth-event log table.
type LoginAudit struct {
	ID           uuid.UUID `json:"id" db:"id"`
	UserCode     *string   `json:"user_code" db:"user_code"`
	Action       string    `json:"action" db:"action"`
	Result       string    `json:"result" db:"result"`
	Details      string    `json:"details" db:"details"`
	ErrorMessage *string   `json:"error_message,omitempty" db:"error_message"`
	IPAddress    string    `json:"ip_address" db:"ip_address"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// AuditEntry is the unified display shape the read path merges both
// physical tables into.
type AuditEntry struct {
	ID        uuid.UUID `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	UserCode  string    `json:"user_code"`
	Action    string    `json:"action"`
	Target    string    `json:"target"`
	Details   string    `json:"details"`
	Result    string    `json:"result"`
	Source    string    `json:"source"`
}

// Audit action-family filters
const (
	AuditFamilyAll         = "all"
	AuditFamilyKeysOnly    = "keys_only"
	AuditFamilyExcludeKeys = "exclude_keys"
)

// AuditLogQuery carries the read-path filters. TzOffsetMinutes is the
// caller's offset east of UTC, applied to the date bounds before querying.
type AuditLogQuery struct {
	From            *time.Time `form:"from" time_format:"2006-01-02"`
	To              *time.Time `form:"to" time_format:"2006-01-02"`
	TzOffsetMinutes int        `form:"tz_offset"`
	Search          string     `form:"search"`
	Family          string     `form:"family"`
	Limit           int        `form:"limit"`
}

// UTCBounds converts the caller-local date range into UTC query bounds.
// From marks the start of its day, To the end of its day, both shifted
// by the caller's offset east of UTC.
func (q *AuditLogQuery) UTCBounds() (*time.Time, *time.Time) {
	offset := time.Duration(q.TzOffsetMinutes) * time.Minute
	var from, to *time.Time
	if q.From != nil {
		f := q.From.Add(-offset)
		from = &f
	}
	if q.To != nil {
		t := q.To.Add(24*time.Hour - time.Nanosecond).Add(-offset)
		to = &t
	}
	return from, to
}

// ActionStat aggregates outcomes for one action tag.
type ActionStat struct {
	Success int `json:"success"`
	Failed  int `json:"failed"`
}

type AuditStats struct {
	Total    int                   `json:"total"`
	ByAction map[string]ActionStat `json:"by_action"`
}
