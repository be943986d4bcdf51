package qr

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func samplePayload() *Payload {
	return &Payload{
		KeyID:       uuid.NewString(),
		DoctorCode:  "DOC-0001",
		PatientCode: "PAT-0001",
		Key:         base64.StdEncoding.EncodeToString([]byte("0123456789abcdef0123456789abcdef")),
		ExpiresAt:   time.Now().Add(time.Hour).UTC().Truncate(time.Second),
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	p := samplePayload()

	encoded, err := Encode(p)
	require.NoError(t, err)
	assert.NotEmpty(t, encoded)

	decoded, err := Decode(encoded)
	require.NoError(t, err)
	assert.Equal(t, p.KeyID, decoded.KeyID)
	assert.Equal(t, p.DoctorCode, decoded.DoctorCode)
	assert.Equal(t, p.PatientCode, decoded.PatientCode)
	assert.Equal(t, p.Key, decoded.Key)
	assert.True(t, p.ExpiresAt.Equal(decoded.ExpiresAt))
}

func TestDecodeRejectsBadEncoding(t *testing.T) {
	_, err := Decode("%%% not base64 %%%")
	assert.Error(t, err)
}

func TestDecodeRejectsNonJSON(t *testing.T) {
	_, err := Decode(base64.StdEncoding.EncodeToString([]byte("hello")))
	assert.Error(t, err)
}

func TestDecodeRejectsMissingIdentifiers(t *testing.T) {
	encoded, err := Encode(&Payload{KeyID: uuid.NewString()})
	require.NoError(t, err)

	_, err = Decode(encoded)
	assert.Error(t, err)
}

func TestRenderPNG(t *testing.T) {
	encoded, err := Encode(samplePayload())
	require.NoError(t, err)

	png, err := RenderPNG(encoded, 256)
	require.NoError(t, err)
	assert.NotEmpty(t, png)
	// PNG magic bytes.
	assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, png[:4])

	// Non-positive sizes fall back to the default.
	fallback, err := RenderPNG(encoded, 0)
	require.NoError(t, err)
	assert.NotEmpty(t, fallback)
}
