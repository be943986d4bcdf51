package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// OtpChallenge is the process-local record behind a pending login.
// It lives in the in-memory cache only and is lost on restart.
type OtpChallenge struct {
	Code      string
	ExpiresAt time.Time
	User      *User
}

// Expired reports whether the challenge is past its expiry.
func (c *OtpChallenge) Expired() bool {
	return time.Now().After(c.ExpiresAt)
}

// ChallengeKey builds the cache key for a user's OTP challenge.
func ChallengeKey(userID uuid.UUID, email string) string {
	return fmt.Sprintf("%s_%s", userID, email)
}

// OTP and biometric challenge lifetimes.
const (
	OtpTTL                = 10 * time.Minute
	BiometricChallengeTTL = 5 * time.Minute
)

// BiometricCredential is a device-bound secret registered for passwordless login.
type BiometricCredential struct {
	ID        uuid.UUID `json:"id" db:"id"`
	UserID    uuid.UUID `json:"user_id" db:"user_id"`
	UserCode  string    `json:"user_code" db:"user_code"`
	DeviceID  string    `json:"device_id" db:"device_id"`
	Secret    string    `json:"-" db:"secret"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// BiometricChallenge is a single-use random value the device must sign.
type BiometricChallenge struct {
	ID        uuid.UUID `json:"id" db:"id"`
	UserCode  string    `json:"user_code" db:"user_code"`
	DeviceID  string    `json:"device_id" db:"device_id"`
	Challenge string    `json:"challenge" db:"challenge"`
	Used      bool      `json:"used" db:"used"`
	ExpiresAt time.Time `json:"expires_at" db:"expires_at"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type BiometricRegisterRequest struct {
	UserCode string `json:"user_code" binding:"required"`
	DeviceID string `json:"device_id" binding:"required"`
	Secret   string `json:"secret" binding:"required"`
}

type BiometricChallengeRequest struct {
	UserCode string `json:"user_code" binding:"required"`
	DeviceID string `json:"device_id" binding:"required"`
}

type BiometricVerifyRequest struct {
	ChallengeID string `json:"challenge_id" binding:"required"`
	UserCode    string `json:"user_code" binding:"required"`
	DeviceID    string `json:"device_id" binding:"required"`
	Signature   string `json:"signature" binding:"required"`
}
