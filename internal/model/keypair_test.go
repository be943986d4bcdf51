package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to KeyPairStatus
		want     bool
	}{
		{KeyPairStatusPending, KeyPairStatusActive, true},
		{KeyPairStatusPending, KeyPairStatusRevoked, true},
		{KeyPairStatusPending, KeyPairStatusInactive, true},
		{KeyPairStatusActive, KeyPairStatusActive, true},
		{KeyPairStatusActive, KeyPairStatusRevoked, true},
		{KeyPairStatusActive, KeyPairStatusInactive, true},
		{KeyPairStatusInactive, KeyPairStatusActive, false},
		{KeyPairStatusInactive, KeyPairStatusRevoked, true},
		{KeyPairStatusRevoked, KeyPairStatusActive, false},
		{KeyPairStatusRevoked, KeyPairStatusInactive, false},
		{KeyPairStatusRevoked, KeyPairStatusRevoked, false},
		{KeyPairStatusActive, KeyPairStatusPending, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CanTransition(tt.from, tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestValidKeyPairStatus(t *testing.T) {
	assert.True(t, ValidKeyPairStatus(KeyPairStatusPending))
	assert.True(t, ValidKeyPairStatus(KeyPairStatusRevoked))
	assert.False(t, ValidKeyPairStatus(KeyPairStatus("Expired")))
	assert.False(t, ValidKeyPairStatus(KeyPairStatus("")))
}

func TestKeyPairExpired(t *testing.T) {
	fresh := &KeyPair{ExpiresAt: time.Now().Add(time.Hour)}
	stale := &KeyPair{ExpiresAt: time.Now().Add(-time.Hour)}
	assert.False(t, fresh.Expired())
	assert.True(t, stale.Expired())
}

func TestKeyPairIsParticipant(t *testing.T) {
	pair := &KeyPair{DoctorCode: "DOC-0001", PatientCode: "PAT-0002"}
	assert.True(t, pair.IsParticipant("DOC-0001"))
	assert.True(t, pair.IsParticipant("PAT-0002"))
	assert.False(t, pair.IsParticipant("PAT-0003"))
	assert.False(t, pair.IsParticipant(""))
}
