package keypair

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/medvault/medvault-api/internal/model"
	"github.com/medvault/medvault-api/internal/repository"
	"github.com/medvault/medvault-api/internal/service/audit"
	apperrors "github.com/medvault/medvault-api/pkg/errors"
	"github.com/medvault/medvault-api/pkg/qr"
	"github.com/medvault/medvault-api/pkg/security"
)

// Service manages the doctor-patient key lifecycle: generation, QR
// scanning, rotation, and revocation. Key material is stored wrapped
// under the server master key and only leaves unwrapped inside QR
// payloads and participant retrievals.
type Service struct {
	keyRepo    repository.KeyPairRepository
	connRepo   repository.ConnectionRepository
	userRepo   repository.UserRepository
	outboxRepo repository.OutboxRepository
	wrapper    security.KeyWrapper
	auditor    *audit.Service
}

func NewService(
	keyRepo repository.KeyPairRepository,
	connRepo repository.ConnectionRepository,
	userRepo repository.UserRepository,
	outboxRepo repository.OutboxRepository,
	wrapper security.KeyWrapper,
	auditor *audit.Service,
) *Service {
	return &Service{
		keyRepo:    keyRepo,
		connRepo:   connRepo,
		userRepo:   userRepo,
		outboxRepo: outboxRepo,
		wrapper:    wrapper,
		auditor:    auditor,
	}
}

// Generate creates a Pending pair with a fresh symmetric key and returns
// the QR transport. At most one non-revoked, non-expired pair may exist
// per doctor-patient combination.
func (s *Service) Generate(ctx context.Context, req *model.GenerateKeyRequest, actorCode string) (*model.GenerateKeyResponse, error) {
	if req.DoctorCode == req.PatientCode {
		return nil, apperrors.BadRequest("doctor and patient must differ", nil)
	}
	doctor, err := s.userRepo.GetByCodeAndRole(ctx, req.DoctorCode, model.RoleDoctor)
	if err != nil {
		return nil, apperrors.NotFound("doctor", err)
	}
	patient, err := s.userRepo.GetByCodeAndRole(ctx, req.PatientCode, model.RolePatient)
	if err != nil {
		return nil, apperrors.NotFound("patient", err)
	}

	existing, err := s.keyRepo.GetLiveByPair(ctx, doctor.UserCode, patient.UserCode)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing pair: %w", err)
	}
	if existing != nil && !existing.Expired() {
		s.auditKey(ctx, actorCode, model.AuditActionKeyGenerate, existing.ID,
			fmt.Sprintf("pair %s/%s already has key %s", doctor.UserCode, patient.UserCode, existing.ID),
			fmt.Errorf("duplicate pair"))
		return nil, apperrors.Conflict("a key already exists for this doctor and patient", nil)
	}

	rawKey, err := security.GenerateSymmetricKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}
	wrapped, err := s.wrapper.Wrap(rawKey)
	if err != nil {
		return nil, fmt.Errorf("failed to wrap key: %w", err)
	}

	pair := &model.KeyPair{
		ID:           uuid.New(),
		DoctorCode:   doctor.UserCode,
		PatientCode:  patient.UserCode,
		EncryptedKey: wrapped,
		Status:       model.KeyPairStatusPending,
		ExpiresAt:    time.Now().Add(model.KeyPairDefaultTTL),
	}
	if err := s.keyRepo.Create(ctx, pair); err != nil {
		return nil, fmt.Errorf("failed to store key pair: %w", err)
	}

	qrData, err := qr.Encode(&qr.Payload{
		KeyID:       pair.ID.String(),
		DoctorCode:  pair.DoctorCode,
		PatientCode: pair.PatientCode,
		Key:         base64.StdEncoding.EncodeToString(rawKey),
		ExpiresAt:   pair.ExpiresAt,
	})
	if err != nil {
		return nil, err
	}

	s.auditKey(ctx, actorCode, model.AuditActionKeyGenerate, pair.ID,
		fmt.Sprintf("generated key for %s/%s", pair.DoctorCode, pair.PatientCode), nil)

	return &model.GenerateKeyResponse{
		KeyID:       pair.ID.String(),
		DoctorCode:  pair.DoctorCode,
		PatientCode: pair.PatientCode,
		QRData:      qrData,
		Status:      pair.Status,
		ExpiresAt:   pair.ExpiresAt,
	}, nil
}

// Scan processes a scanned QR payload on behalf of actorCode. The first
// successful scan activates the pair and persists the doctor-patient
// connection edge; repeat scans of an Active pair return the key again
// without re-activating. Every failure branch is audited.
func (s *Service) Scan(ctx context.Context, req *model.ScanKeyRequest, actorCode string) (*model.KeyMaterialResponse, error) {
	payload, err := qr.Decode(req.QRData)
	if err != nil {
		s.auditor.LogAction(ctx, &actorCode, model.AuditActionKeyScan, nil, nil, "unreadable QR payload", err, nil)
		return nil, apperrors.BadRequest("invalid QR data", err)
	}

	keyID, err := uuid.Parse(payload.KeyID)
	if err != nil {
		s.auditor.LogAction(ctx, &actorCode, model.AuditActionKeyScan, nil, nil, "malformed key id in QR payload", err, nil)
		return nil, apperrors.BadRequest("invalid QR data", err)
	}

	pair, err := s.keyRepo.Get(ctx, keyID)
	if err != nil {
		s.auditKey(ctx, actorCode, model.AuditActionKeyScan, keyID, "scanned key not found", err)
		return nil, apperrors.NotFound("key", err)
	}

	if payload.DoctorCode != pair.DoctorCode || payload.PatientCode != pair.PatientCode {
		err := fmt.Errorf("payload names %s/%s, stored pair is %s/%s",
			payload.DoctorCode, payload.PatientCode, pair.DoctorCode, pair.PatientCode)
		s.auditKey(ctx, actorCode, model.AuditActionKeyScan, pair.ID, "QR payload does not match stored pair", err)
		return nil, apperrors.BadRequest("QR data does not match this key", nil)
	}
	if !pair.IsParticipant(actorCode) {
		err := fmt.Errorf("scanner %s is not a participant", actorCode)
		s.auditKey(ctx, actorCode, model.AuditActionKeyScan, pair.ID, "scan by non-participant", err)
		return nil, apperrors.Forbidden("you are not a participant of this key", nil)
	}
	if pair.Expired() {
		s.auditKey(ctx, actorCode, model.AuditActionKeyScan, pair.ID, "scan of expired key", fmt.Errorf("key expired"))
		return nil, apperrors.Forbidden("key has expired", nil)
	}

	switch pair.Status {
	case model.KeyPairStatusPending:
		if err := s.keyRepo.UpdateStatus(ctx, pair.ID, model.KeyPairStatusActive); err != nil {
			return nil, fmt.Errorf("failed to activate key: %w", err)
		}
		pair.Status = model.KeyPairStatusActive

		if err := s.connRepo.Create(ctx, &model.Connection{
			ID:          uuid.New(),
			DoctorCode:  pair.DoctorCode,
			PatientCode: pair.PatientCode,
		}); err != nil {
			return nil, fmt.Errorf("failed to persist connection: %w", err)
		}

		s.auditKey(ctx, actorCode, model.AuditActionKeyScan, pair.ID,
			fmt.Sprintf("key activated for %s/%s", pair.DoctorCode, pair.PatientCode), nil)
		s.publish(ctx, model.EventKeyActivated, map[string]string{
			"key_id":       pair.ID.String(),
			"doctor_code":  pair.DoctorCode,
			"patient_code": pair.PatientCode,
			"scanned_by":   actorCode,
		})
	case model.KeyPairStatusActive:
		// Repeat scan; hand the key back without another activation audit.
	default:
		err := fmt.Errorf("key status is %s", pair.Status)
		s.auditKey(ctx, actorCode, model.AuditActionKeyScan, pair.ID, "scan of non-scannable key", err)
		return nil, apperrors.Forbidden("key is not available for scanning", nil)
	}

	key, err := s.wrapper.Unwrap(pair.EncryptedKey)
	if err != nil {
		return nil, fmt.Errorf("failed to unwrap key: %w", err)
	}

	return &model.KeyMaterialResponse{
		KeyID:       pair.ID.String(),
		DoctorCode:  pair.DoctorCode,
		PatientCode: pair.PatientCode,
		Key:         base64.StdEncoding.EncodeToString(key),
		Status:      pair.Status,
		ExpiresAt:   pair.ExpiresAt,
	}, nil
}

// Retrieve hands the unwrapped key material back to a participant of an
// Active pair.
func (s *Service) Retrieve(ctx context.Context, keyID uuid.UUID, actorCode string) (*model.KeyMaterialResponse, error) {
	pair, err := s.keyRepo.Get(ctx, keyID)
	if err != nil {
		return nil, apperrors.NotFound("key", err)
	}
	if !pair.IsParticipant(actorCode) {
		s.auditKey(ctx, actorCode, model.AuditActionKeyRetrieve, pair.ID, "retrieval by non-participant", fmt.Errorf("not a participant"))
		return nil, apperrors.Forbidden("you are not a participant of this key", nil)
	}
	if pair.Status != model.KeyPairStatusActive {
		return nil, apperrors.Forbidden("key is not active", nil)
	}
	if pair.Expired() {
		return nil, apperrors.Forbidden("key has expired", nil)
	}

	key, err := s.wrapper.Unwrap(pair.EncryptedKey)
	if err != nil {
		return nil, fmt.Errorf("failed to unwrap key: %w", err)
	}

	s.auditKey(ctx, actorCode, model.AuditActionKeyRetrieve, pair.ID,
		fmt.Sprintf("key material retrieved for %s/%s", pair.DoctorCode, pair.PatientCode), nil)

	return &model.KeyMaterialResponse{
		KeyID:       pair.ID.String(),
		DoctorCode:  pair.DoctorCode,
		PatientCode: pair.PatientCode,
		Key:         base64.StdEncoding.EncodeToString(key),
		Status:      pair.Status,
		ExpiresAt:   pair.ExpiresAt,
	}, nil
}

// Get returns pair metadata without key material.
func (s *Service) Get(ctx context.Context, keyID uuid.UUID, actorCode string) (*model.KeyMaterialResponse, error) {
	pair, err := s.keyRepo.Get(ctx, keyID)
	if err != nil {
		return nil, apperrors.NotFound("key", err)
	}
	if !pair.IsParticipant(actorCode) {
		return nil, apperrors.Forbidden("you are not a participant of this key", nil)
	}
	return &model.KeyMaterialResponse{
		KeyID:       pair.ID.String(),
		DoctorCode:  pair.DoctorCode,
		PatientCode: pair.PatientCode,
		Status:      pair.Status,
		ExpiresAt:   pair.ExpiresAt,
	}, nil
}

// Rotate revokes the old pair and issues a fresh Pending pair for the
// same doctor and patient. The existing connection edge survives.
func (s *Service) Rotate(ctx context.Context, keyID uuid.UUID, actorCode string) (*model.GenerateKeyResponse, error) {
	old, err := s.keyRepo.Get(ctx, keyID)
	if err != nil {
		return nil, apperrors.NotFound("key", err)
	}
	if !old.IsParticipant(actorCode) {
		s.auditKey(ctx, actorCode, model.AuditActionKeyRotate, old.ID, "rotation by non-participant", fmt.Errorf("not a participant"))
		return nil, apperrors.Forbidden("you are not a participant of this key", nil)
	}
	if old.Status == model.KeyPairStatusRevoked {
		return nil, apperrors.Conflict("key is already revoked", nil)
	}

	if err := s.keyRepo.UpdateStatus(ctx, old.ID, model.KeyPairStatusRevoked); err != nil {
		return nil, fmt.Errorf("failed to revoke old key: %w", err)
	}

	rawKey, err := security.GenerateSymmetricKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}
	wrapped, err := s.wrapper.Wrap(rawKey)
	if err != nil {
		return nil, fmt.Errorf("failed to wrap key: %w", err)
	}

	replacement := &model.KeyPair{
		ID:           uuid.New(),
		DoctorCode:   old.DoctorCode,
		PatientCode:  old.PatientCode,
		EncryptedKey: wrapped,
		Status:       model.KeyPairStatusPending,
		ExpiresAt:    time.Now().Add(model.KeyPairDefaultTTL),
	}
	if err := s.keyRepo.Create(ctx, replacement); err != nil {
		return nil, fmt.Errorf("failed to store rotated key: %w", err)
	}

	qrData, err := qr.Encode(&qr.Payload{
		KeyID:       replacement.ID.String(),
		DoctorCode:  replacement.DoctorCode,
		PatientCode: replacement.PatientCode,
		Key:         base64.StdEncoding.EncodeToString(rawKey),
		ExpiresAt:   replacement.ExpiresAt,
	})
	if err != nil {
		return nil, err
	}

	s.auditKey(ctx, actorCode, model.AuditActionKeyRotate, old.ID,
		fmt.Sprintf("key rotated for %s/%s, replacement %s", old.DoctorCode, old.PatientCode, replacement.ID), nil)

	return &model.GenerateKeyResponse{
		KeyID:       replacement.ID.String(),
		DoctorCode:  replacement.DoctorCode,
		PatientCode: replacement.PatientCode,
		QRData:      qrData,
		Status:      replacement.Status,
		ExpiresAt:   replacement.ExpiresAt,
	}, nil
}

// UpdateStatus applies a lifecycle transition. Revoked is terminal and
// activation by status update follows the same rule as scanning.
func (s *Service) UpdateStatus(ctx context.Context, keyID uuid.UUID, req *model.UpdateKeyStatusRequest, actorCode string) (*model.KeyPair, error) {
	pair, err := s.keyRepo.Get(ctx, keyID)
	if err != nil {
		return nil, apperrors.NotFound("key", err)
	}
	if !pair.IsParticipant(actorCode) {
		return nil, apperrors.Forbidden("you are not a participant of this key", nil)
	}
	if !model.CanTransition(pair.Status, req.Status) {
		return nil, apperrors.Conflict(
			fmt.Sprintf("cannot change key status from %s to %s", pair.Status, req.Status), nil)
	}

	if err := s.keyRepo.UpdateStatus(ctx, pair.ID, req.Status); err != nil {
		return nil, fmt.Errorf("failed to update key status: %w", err)
	}

	action := model.AuditActionKeyStatus
	if req.Status == model.KeyPairStatusRevoked {
		action = model.AuditActionKeyRevoke
	}
	s.auditKey(ctx, actorCode, action, pair.ID,
		fmt.Sprintf("key status %s -> %s", pair.Status, req.Status), nil)

	pair.Status = req.Status
	return pair, nil
}

// Delete removes the pair record and the doctor-patient connection edge.
func (s *Service) Delete(ctx context.Context, keyID uuid.UUID, actorCode string) error {
	pair, err := s.keyRepo.Get(ctx, keyID)
	if err != nil {
		return apperrors.NotFound("key", err)
	}
	if !pair.IsParticipant(actorCode) {
		return apperrors.Forbidden("you are not a participant of this key", nil)
	}
	if err := s.keyRepo.Delete(ctx, pair.ID); err != nil {
		return fmt.Errorf("failed to delete key: %w", err)
	}
	if err := s.connRepo.Delete(ctx, pair.DoctorCode, pair.PatientCode); err != nil {
		log.Warn().Err(err).Str("key_id", pair.ID.String()).Msg("failed to remove connection edge")
	}
	s.auditKey(ctx, actorCode, model.AuditActionKeyDelete,
		pair.ID, fmt.Sprintf("key deleted for %s/%s", pair.DoctorCode, pair.PatientCode), nil)
	return nil
}

// ListForUser returns all pairs the user participates in, without key material.
func (s *Service) ListForUser(ctx context.Context, userCode string) ([]*model.KeyPair, error) {
	return s.keyRepo.ListByParticipant(ctx, userCode)
}

// ListAll returns every pair record. Admin read path.
func (s *Service) ListAll(ctx context.Context) ([]*model.KeyPair, error) {
	return s.keyRepo.List(ctx)
}

// Connections returns the persisted doctor-patient edges for a user.
func (s *Service) Connections(ctx context.Context, userCode string) ([]*model.Connection, error) {
	return s.connRepo.ListForUser(ctx, userCode)
}

// QRImage re-renders the QR PNG for a pair a participant still has access
// to. Only Pending and Active pairs are renderable.
func (s *Service) QRImage(ctx context.Context, keyID uuid.UUID, actorCode string, size int) ([]byte, error) {
	pair, err := s.keyRepo.Get(ctx, keyID)
	if err != nil {
		return nil, apperrors.NotFound("key", err)
	}
	if !pair.IsParticipant(actorCode) {
		return nil, apperrors.Forbidden("you are not a participant of this key", nil)
	}
	if pair.Status != model.KeyPairStatusPending && pair.Status != model.KeyPairStatusActive {
		return nil, apperrors.Forbidden("key is not available", nil)
	}
	if pair.Expired() {
		return nil, apperrors.Forbidden("key has expired", nil)
	}

	key, err := s.wrapper.Unwrap(pair.EncryptedKey)
	if err != nil {
		return nil, fmt.Errorf("failed to unwrap key: %w", err)
	}
	qrData, err := qr.Encode(&qr.Payload{
		KeyID:       pair.ID.String(),
		DoctorCode:  pair.DoctorCode,
		PatientCode: pair.PatientCode,
		Key:         base64.StdEncoding.EncodeToString(key),
		ExpiresAt:   pair.ExpiresAt,
	})
	if err != nil {
		return nil, err
	}
	return qr.RenderPNG(qrData, size)
}

func (s *Service) auditKey(ctx context.Context, actorCode, action string, keyID uuid.UUID, details string, opErr error) {
	resourceType := "key_pair"
	resourceID := keyID.String()
	s.auditor.LogAction(ctx, &actorCode, action, &resourceType, &resourceID, details, opErr, nil)
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
