package model

import (
	"time"

	"github.com/google/uuid"
)

// KeyPairStatus is the lifecycle state of a doctor-patient key.
type KeyPairStatus string

const (
	KeyPairStatusPending  KeyPairStatus = "Pending"
	KeyPairStatusActive   KeyPairStatus = "Active"
	KeyPairStatusRevoked  KeyPairStatus = "Revoked"
	KeyPairStatusInactive KeyPairStatus = "Inactive"
)

// KeyPairDefaultTTL is how long a generated pair stays scannable.
const KeyPairDefaultTTL = 60 * 24 * time.Hour

// ValidKeyPairStatus reports whether s is a known status.
func ValidKeyPairStatus(s KeyPairStatus) bool {
	switch s {
	case KeyPairStatusPending, KeyPairStatusActive, KeyPairStatusRevoked, KeyPairStatusInactive:
		return true
	}
	return false
}

// CanTransition reports whether the status machine allows from → to.
// Revoked is terminal; activation only happens out of Pending.
func CanTransition(from, to KeyPairStatus) bool {
	if from == KeyPairStatusRevoked {
		return false
	}
	switch to {
	case KeyPairStatusActive:
		return from == KeyPairStatusPending || from == KeyPairStatusActive
	case KeyPairStatusRevoked, KeyPairStatusInactive:
		return true
	}
	return false
}

// KeyPair is a shared symmetric key record between one doctor and one patient.
// EncryptedKey holds the key wrapped under the server master key.
type KeyPair struct {
	ID           uuid.UUID     `json:"id" db:"id"`
	DoctorCode   string        `json:"doctor_code" db:"doctor_code"`
	PatientCode  string        `json:"patient_code" db:"patient_code"`
	EncryptedKey string        `json:"-" db:"encrypted_key"`
	Status       KeyPairStatus `json:"status" db:"status"`
	CreatedAt    time.Time     `json:"created_at" db:"created_at"`
	ExpiresAt    time.Time     `json:"expires_at" db:"expires_at"`
}

// Expired reports whether the pair is past its expiry.
func (k *KeyPair) Expired() bool {
	return time.Now().After(k.ExpiresAt)
}

// IsParticipant reports whether userCode is one of the pair's two parties.
func (k *KeyPair) IsParticipant(userCode string) bool {
	return userCode == k.DoctorCode || userCode == k.PatientCode
}

// Connection is the doctor-patient edge persisted on first successful scan.
type Connection struct {
	ID          uuid.UUID `json:"id" db:"id"`
	DoctorCode  string    `json:"doctor_code" db:"doctor_code"`
	PatientCode string    `json:"patient_code" db:"patient_code"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

type GenerateKeyRequest struct {
	DoctorCode  string `json:"doctor_code" binding:"required"`
	PatientCode string `json:"patient_code" binding:"required"`
}

type ScanKeyRequest struct {
	QRData string `json:"qr_data" binding:"required"`
}

type UpdateKeyStatusRequest struct {
	Status KeyPairStatus `json:"status" binding:"required,oneof=Active Inactive Revoked"`
}

// GenerateKeyResponse carries the QR transport for a freshly created pair.
type GenerateKeyResponse struct {
	KeyID       string        `json:"key_id"`
	DoctorCode  string        `json:"doctor_code"`
	PatientCode string        `json:"patient_code"`
	QRData      string        `json:"qr_data"`
	Status      KeyPairStatus `json:"status"`
	ExpiresAt   time.Time     `json:"expires_at"`
}

// KeyMaterialResponse returns unwrapped key material to an authorized participant.
type KeyMaterialResponse struct {
	KeyID       string        `json:"key_id"`
	DoctorCode  string        `json:"doctor_code"`
	PatientCode string        `json:"patient_code"`
	Key         string        `json:"key,omitempty"`
	Status      KeyPairStatus `json:"status"`
	ExpiresAt   time.Time     `json:"expires_at"`
}
