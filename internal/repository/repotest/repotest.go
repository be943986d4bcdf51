// Package repotest provides in-memory repository implementations used by
// service and handler tests. Miss semantics match the postgres layer:
// lookup methods return (nil, nil), Get methods return an error.
package repotest

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/medvault/medvault-api/internal/model"
)

// UserRepo is an in-memory UserRepository.
type UserRepo struct {
	mu    sync.Mutex
	Users []*model.User
}

func NewUserRepo(users ...*model.User) *UserRepo {
	return &UserRepo{Users: users}
}

func (r *UserRepo) Create(ctx context.Context, user *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now
	r.Users = append(r.Users, user)
	return nil
}

func (r *UserRepo) Get(ctx context.Context, id uuid.UUID) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.Users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, fmt.Errorf("user %s not found", id)
}

func (r *UserRepo) GetByCode(ctx context.Context, userCode string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.Users {
		if u.UserCode == userCode {
			return u, nil
		}
	}
	return nil, fmt.Errorf("user %s not found", userCode)
}

func (r *UserRepo) GetByCodeAndRole(ctx context.Context, userCode, role string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.Users {
		if u.UserCode == userCode && u.Role == role {
			return u, nil
		}
	}
	return nil, fmt.Errorf("user %s with role %s not found", userCode, role)
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.Users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, nil
}

func (r *UserRepo) List(ctx context.Context) ([]*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*model.User(nil), r.Users...), nil
}

func (r *UserRepo) ListCodesByPrefix(ctx context.Context, prefix string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var codes []string
	for _, u := range r.Users {
		if strings.HasPrefix(u.UserCode, prefix) {
			codes = append(codes, u.UserCode)
		}
	}
	return codes, nil
}

func (r *UserRepo) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string, mustReset bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.Users {
		if u.ID == id {
			u.PasswordHash = passwordHash
			u.MustResetPassword = mustReset
			u.UpdatedAt = time.Now()
			return nil
		}
	}
	return fmt.Errorf("user %s not found", id)
}

func (r *UserRepo) StampLastLogin(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.Users {
		if u.ID == id {
			now := time.Now()
			u.LastLoginAt = &now
			return nil
		}
	}
	return fmt.Errorf("user %s not found", id)
}

// KeyPairRepo is an in-memory KeyPairRepository.
type KeyPairRepo struct {
	mu    sync.Mutex
	Pairs []*model.KeyPair
}

func NewKeyPairRepo() *KeyPairRepo { return &KeyPairRepo{} }

func (r *KeyPairRepo) Create(ctx context.Context, pair *model.KeyPair) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if pair.CreatedAt.IsZero() {
		pair.CreatedAt = time.Now()
	}
	r.Pairs = append(r.Pairs, pair)
	return nil
}

func (r *KeyPairRepo) Get(ctx context.Context, id uuid.UUID) (*model.KeyPair, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.Pairs {
		if p.ID == id {
			cp := *p
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("key pair %s not found", id)
}

func (r *KeyPairRepo) GetLiveByPair(ctx context.Context, doctorCode, patientCode string) (*model.KeyPair, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.Pairs) - 1; i >= 0; i-- {
		p := r.Pairs[i]
		if p.DoctorCode == doctorCode && p.PatientCode == patientCode &&
			(p.Status == model.KeyPairStatusPending || p.Status == model.KeyPairStatusActive) {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *KeyPairRepo) List(ctx context.Context) ([]*model.KeyPair, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*model.KeyPair(nil), r.Pairs...), nil
}

func (r *KeyPairRepo) ListByParticipant(ctx context.Context, userCode string) ([]*model.KeyPair, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.KeyPair
	for _, p := range r.Pairs {
		if p.DoctorCode == userCode || p.PatientCode == userCode {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *KeyPairRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status model.KeyPairStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.Pairs {
		if p.ID == id {
			p.Status = status
			return nil
		}
	}
	return fmt.Errorf("key pair %s not found", id)
}

func (r *KeyPairRepo) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, p := range r.Pairs {
		if p.ID == id {
			r.Pairs = append(r.Pairs[:i], r.Pairs[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("key pair %s not found", id)
}

// ConnectionRepo is an in-memory ConnectionRepository.
type ConnectionRepo struct {
	mu    sync.Mutex
	Conns []*model.Connection
}

func NewConnectionRepo() *ConnectionRepo { return &ConnectionRepo{} }

func (r *ConnectionRepo) Create(ctx context.Context, conn *model.Connection) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if conn.CreatedAt.IsZero() {
		conn.CreatedAt = time.Now()
	}
	r.Conns = append(r.Conns, conn)
	return nil
}

func (r *ConnectionRepo) Exists(ctx context.Context, doctorCode, patientCode string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.Conns {
		if c.DoctorCode == doctorCode && c.PatientCode == patientCode {
			return true, nil
		}
	}
	return false, nil
}

func (r *ConnectionRepo) ListForUser(ctx context.Context, userCode string) ([]*model.Connection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Connection
	for _, c := range r.Conns {
		if c.DoctorCode == userCode || c.PatientCode == userCode {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *ConnectionRepo) Delete(ctx context.Context, doctorCode, patientCode string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, c := range r.Conns {
		if c.DoctorCode == doctorCode && c.PatientCode == patientCode {
			r.Conns = append(r.Conns[:i], r.Conns[i+1:]...)
			return nil
		}
	}
	return nil
}

// FileRepo is an in-memory FileRepository.
type FileRepo struct {
	mu    sync.Mutex
	Files []*model.EncryptedFile
}

func NewFileRepo() *FileRepo { return &FileRepo{} }

func (r *FileRepo) Create(ctx context.Context, file *model.EncryptedFile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if file.UploadedAt.IsZero() {
		file.UploadedAt = time.Now()
	}
	r.Files = append(r.Files, file)
	return nil
}

func (r *FileRepo) Get(ctx context.Context, id uuid.UUID) (*model.EncryptedFile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, f := range r.Files {
		if f.ID == id {
			cp := *f
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("file %s not found", id)
}

func (r *FileRepo) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*model.EncryptedFile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.EncryptedFile
	for _, f := range r.Files {
		if f.OwnerID == ownerID && !f.IsDeleted {
			out = append(out, f)
		}
	}
	return out, nil
}

func (r *FileRepo) ConfirmUpload(ctx context.Context, id uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, f := range r.Files {
		if f.ID == id && f.UploadStatus == model.UploadStatusPending {
			f.UploadStatus = model.UploadStatusCompleted
			return true, nil
		}
	}
	return false, nil
}

func (r *FileRepo) SoftDelete(ctx context.Context, id, ownerID uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, f := range r.Files {
		if f.ID == id && f.OwnerID == ownerID && !f.IsDeleted {
			f.IsDeleted = true
			return true, nil
		}
	}
	return false, nil
}

func (r *FileRepo) HardDelete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, f := range r.Files {
		if f.ID == id {
			r.Files = append(r.Files[:i], r.Files[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("file %s not found", id)
}

func (r *FileRepo) StampLastAccessed(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, f := range r.Files {
		if f.ID == id {
			now := time.Now()
			f.LastAccessedAt = &now
			return nil
		}
	}
	return fmt.Errorf("file %s not found", id)
}

func (r *FileRepo) ListPendingOlderThan(ctx context.Context, cutoff time.Time) ([]*model.EncryptedFile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.EncryptedFile
	for _, f := range r.Files {
		if f.UploadStatus == model.UploadStatusPending && f.UploadedAt.Before(cutoff) {
			cp := *f
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *FileRepo) ListOutdated(ctx context.Context, cutoff time.Time) ([]*model.EncryptedFile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.EncryptedFile
	for _, f := range r.Files {
		if f.UploadStatus != model.UploadStatusCompleted || f.IsDeleted {
			continue
		}
		last := f.UploadedAt
		if f.LastAccessedAt != nil {
			last = *f.LastAccessedAt
		}
		if last.Before(cutoff) {
			cp := *f
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *FileRepo) ListOperations(ctx context.Context) ([]*model.FileOperation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.FileOperation
	for _, f := range r.Files {
		out = append(out, &model.FileOperation{
			FileID:       f.ID,
			FileName:     f.FileName,
			OwnerCode:    f.OwnerCode,
			UploadStatus: f.UploadStatus,
			IsDeleted:    f.IsDeleted,
			UploadedAt:   f.UploadedAt,
			LastAccessed: f.LastAccessedAt,
		})
	}
	return out, nil
}

// ShareRepo is an in-memory ShareRepository. Files, when set, backs the
// joined fields of ShareView listings.
type ShareRepo struct {
	mu     sync.Mutex
	Shares []*model.FileShare
	Files  *FileRepo
}

func NewShareRepo(files *FileRepo) *ShareRepo {
	return &ShareRepo{Files: files}
}

func (r *ShareRepo) Create(ctx context.Context, share *model.FileShare) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if share.SharedAt.IsZero() {
		share.SharedAt = time.Now()
	}
	r.Shares = append(r.Shares, share)
	return nil
}

func (r *ShareRepo) Get(ctx context.Context, id uuid.UUID) (*model.FileShare, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.Shares {
		if s.ID == id {
			cp := *s
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("share %s not found", id)
}

func (r *ShareRepo) GetActiveByFileAndRecipient(ctx context.Context, fileID uuid.UUID, recipientCode string) (*model.FileShare, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.Shares {
		if s.FileID == fileID && s.RecipientCode == recipientCode && s.Status == model.ShareStatusActive {
			cp := *s
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *ShareRepo) Revoke(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.Shares {
		if s.ID == id {
			now := time.Now()
			s.Status = model.ShareStatusRevoked
			s.RevokedAt = &now
			return nil
		}
	}
	return fmt.Errorf("share %s not found", id)
}

func (r *ShareRepo) RevokeAllForFile(ctx context.Context, fileID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	for _, s := range r.Shares {
		if s.FileID == fileID && s.Status == model.ShareStatusActive {
			s.Status = model.ShareStatusRevoked
			s.RevokedAt = &now
		}
	}
	return nil
}

func (r *ShareRepo) ListByFile(ctx context.Context, fileID uuid.UUID) ([]*model.FileShare, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.FileShare
	for _, s := range r.Shares {
		if s.FileID == fileID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *ShareRepo) ListBySender(ctx context.Context, senderCode string) ([]*model.ShareView, error) {
	return r.views(func(s *model.FileShare) bool { return s.SenderCode == senderCode }), nil
}

func (r *ShareRepo) ListByRecipient(ctx context.Context, recipientCode string) ([]*model.ShareView, error) {
	return r.views(func(s *model.FileShare) bool { return s.RecipientCode == recipientCode }), nil
}

func (r *ShareRepo) ListAll(ctx context.Context) ([]*model.ShareView, error) {
	return r.views(func(*model.FileShare) bool { return true }), nil
}

func (r *ShareRepo) views(match func(*model.FileShare) bool) []*model.ShareView {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.ShareView
	for _, s := range r.Shares {
		if !match(s) {
			continue
		}
		view := &model.ShareView{FileShare: *s}
		if r.Files != nil {
			if f, err := r.Files.Get(context.Background(), s.FileID); err == nil {
				view.FileName = f.FileName
				view.FileSize = f.FileSize
				view.OwnerCode = f.OwnerCode
			}
		}
		out = append(out, view)
	}
	return out
}

// NotificationRepo is an in-memory NotificationRepository.
type NotificationRepo struct {
	mu            sync.Mutex
	Notifications []*model.Notification
}

func NewNotificationRepo() *NotificationRepo { return &NotificationRepo{} }

func (r *NotificationRepo) Create(ctx context.Context, n *model.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}
	r.Notifications = append(r.Notifications, n)
	return nil
}

func (r *NotificationRepo) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*model.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Notification
	for i := len(r.Notifications) - 1; i >= 0 && len(out) < limit; i-- {
		if r.Notifications[i].UserID == userID {
			out = append(out, r.Notifications[i])
		}
	}
	return out, nil
}

func (r *NotificationRepo) MarkRead(ctx context.Context, id, userID uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, n := range r.Notifications {
		if n.ID == id && n.UserID == userID && !n.IsRead {
			now := time.Now()
			n.IsRead = true
			n.ReadAt = &now
			return true, nil
		}
	}
	return false, nil
}

func (r *NotificationRepo) MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	now := time.Now()
	for _, n := range r.Notifications {
		if n.UserID == userID && !n.IsRead {
			n.IsRead = true
			n.ReadAt = &now
			count++
		}
	}
	return count, nil
}

func (r *NotificationRepo) Delete(ctx context.Context, id, userID uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, n := range r.Notifications {
		if n.ID == id && n.UserID == userID {
			r.Notifications = append(r.Notifications[:i], r.Notifications[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (r *NotificationRepo) DeleteAll(ctx context.Context, userID uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var kept []*model.Notification
	var removed int64
	for _, n := range r.Notifications {
		if n.UserID == userID {
			removed++
			continue
		}
		kept = append(kept, n)
	}
	r.Notifications = kept
	return removed, nil
}

func (r *NotificationRepo) UnreadCount(ctx context.Context, userID uuid.UUID) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, n := range r.Notifications {
		if n.UserID == userID && !n.IsRead {
			count++
		}
	}
	return count, nil
}

// AuditRepo is an in-memory AuditRepository.
type AuditRepo struct {
	mu          sync.Mutex
	Logs        []*model.AuditLog
	LoginAudits []*model.LoginAudit
}

func NewAuditRepo() *AuditRepo { return &AuditRepo{} }

func (r *AuditRepo) CreateLog(ctx context.Context, entry *model.AuditLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	r.Logs = append(r.Logs, entry)
	return nil
}

func (r *AuditRepo) CreateLoginAudit(ctx context.Context, entry *model.LoginAudit) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	r.LoginAudits = append(r.LoginAudits, entry)
	return nil
}

func (r *AuditRepo) ListLogs(ctx context.Context, from, to *time.Time, limit int) ([]*model.AuditLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.AuditLog
	for _, l := range r.Logs {
		if inRange(l.CreatedAt, from, to) {
			out = append(out, l)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *AuditRepo) ListLoginAudits(ctx context.Context, from, to *time.Time, limit int) ([]*model.LoginAudit, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.LoginAudit
	for _, l := range r.LoginAudits {
		if inRange(l.CreatedAt, from, to) {
			out = append(out, l)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *AuditRepo) DeleteOlderThan(ctx context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var removed int64
	var keptLogs []*model.AuditLog
	for _, l := range r.Logs {
		if l.CreatedAt.Before(before) {
			removed++
			continue
		}
		keptLogs = append(keptLogs, l)
	}
	r.Logs = keptLogs
	var keptLogins []*model.LoginAudit
	for _, l := range r.LoginAudits {
		if l.CreatedAt.Before(before) {
			removed++
			continue
		}
		keptLogins = append(keptLogins, l)
	}
	r.LoginAudits = keptLogins
	return removed, nil
}

func inRange(t time.Time, from, to *time.Time) bool {
	if from != nil && t.Before(*from) {
		return false
	}
	if to != nil && t.After(*to) {
		return false
	}
	return true
}

// BiometricRepo is an in-memory BiometricRepository.
type BiometricRepo struct {
	mu          sync.Mutex
	Credentials []*model.BiometricCredential
	Challenges  []*model.BiometricChallenge
}

func NewBiometricRepo() *BiometricRepo { return &BiometricRepo{} }

func (r *BiometricRepo) CreateCredential(ctx context.Context, cred *model.BiometricCredential) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cred.CreatedAt.IsZero() {
		cred.CreatedAt = time.Now()
	}
	r.Credentials = append(r.Credentials, cred)
	return nil
}

func (r *BiometricRepo) GetCredential(ctx context.Context, userCode, deviceID string) (*model.BiometricCredential, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.Credentials {
		if c.UserCode == userCode && c.DeviceID == deviceID {
			return c, nil
		}
	}
	return nil, nil
}

func (r *BiometricRepo) HasCredential(ctx context.Context, userCode string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.Credentials {
		if c.UserCode == userCode {
			return true, nil
		}
	}
	return false, nil
}

func (r *BiometricRepo) CreateChallenge(ctx context.Context, ch *model.BiometricChallenge) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ch.CreatedAt.IsZero() {
		ch.CreatedAt = time.Now()
	}
	r.Challenges = append(r.Challenges, ch)
	return nil
}

func (r *BiometricRepo) GetChallenge(ctx context.Context, id uuid.UUID) (*model.BiometricChallenge, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ch := range r.Challenges {
		if ch.ID == id {
			return ch, nil
		}
	}
	return nil, fmt.Errorf("challenge %s not found", id)
}

func (r *BiometricRepo) MarkChallengeUsed(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ch := range r.Challenges {
		if ch.ID == id {
			ch.Used = true
			return nil
		}
	}
	return fmt.Errorf("challenge %s not found", id)
}

// OutboxRepo is an in-memory OutboxRepository.
type OutboxRepo struct {
	mu     sync.Mutex
	Events []*model.OutboxEvent
}

func NewOutboxRepo() *OutboxRepo { return &OutboxRepo{} }

func (r *OutboxRepo) Create(ctx context.Context, event *model.OutboxEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}
	r.Events = append(r.Events, event)
	return nil
}

func (r *OutboxRepo) GetPendingEvents(ctx context.Context, limit int) ([]*model.OutboxEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.OutboxEvent
	for _, e := range r.Events {
		if e.Status == string(model.OutboxStatusPending) {
			out = append(out, e)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *OutboxRepo) MarkProcessed(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.Events {
		if e.ID == id {
			now := time.Now()
			e.Status = string(model.OutboxStatusProcessed)
			e.ProcessedAt = &now
			return nil
		}
	}
	return fmt.Errorf("event %s not found", id)
}

func (r *OutboxRepo) MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.Events {
		if e.ID == id {
			e.Status = string(model.OutboxStatusFailed)
			e.ErrorMessage = &errMsg
			e.RetryCount++
			return nil
		}
	}
	return fmt.Errorf("event %s not found", id)
}

func (r *OutboxRepo) DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var kept []*model.OutboxEvent
	var removed int64
	for _, e := range r.Events {
		if e.Status == string(model.OutboxStatusProcessed) && e.ProcessedAt != nil && e.ProcessedAt.Before(before) {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	r.Events = kept
	return removed, nil
}

// EventTypes returns the types of all stored events in insertion order.
func (r *OutboxRepo) EventTypes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.Events))
	for _, e := range r.Events {
		out = append(out, e.EventType)
	}
	return out
}
