package qr

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	qrcode "github.com/skip2/go-qrcode"
)

// Payload is the QR-encoded key transport between a doctor and a patient.
// The symmetric key travels unwrapped here; the QR image is the out-of-band
// channel, the wrapped copy stays in the database.
type Payload struct {
	KeyID       string    `json:"key_id"`
	DoctorCode  string    `json:"doctor_code"`
	PatientCode string    `json:"patient_code"`
	Key         string    `json:"key"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Encode serializes the payload to the base64 string embedded in QR images.
func Encode(p *Payload) (string, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("failed to marshal QR payload: %w", err)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// Decode parses a scanned QR string back into a payload.
func Decode(encoded string) (*Payload, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("invalid QR encoding: %w", err)
	}
	var p Payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("invalid QR payload: %w", err)
	}
	if p.KeyID == "" || p.DoctorCode == "" || p.PatientCode == "" {
		return nil, fmt.Errorf("QR payload missing identifiers")
	}
	return &p, nil
}

// RenderPNG renders the encoded payload as a PNG image.
func RenderPNG(encoded string, size int) ([]byte, error) {
	if size <= 0 {
		size = 256
	}
	png, err := qrcode.Encode(encoded, qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("failed to render QR image: %w", err)
	}
	return png, nil
}
