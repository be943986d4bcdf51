package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsKeyAction(t *testing.T) {
	assert.True(t, IsKeyAction(AuditActionKeyGenerate))
	assert.True(t, IsKeyAction(AuditActionKeyScan))
	assert.True(t, IsKeyAction(AuditActionKeyRevoke))
	assert.False(t, IsKeyAction(AuditActionFileUpload))
	assert.False(t, IsKeyAction(AuditActionLogin))
}

func TestUTCBounds(t *testing.T) {
	day := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	q := &AuditLogQuery{From: &day, To: &day, TzOffsetMinutes: 120}

	from, to := q.UTCBounds()
	require.NotNil(t, from)
	require.NotNil(t, to)

	// Caller is 2h east of UTC: their day starts at 22:00 UTC the day before.
	assert.Equal(t, time.Date(2026, 3, 9, 22, 0, 0, 0, time.UTC), *from)
	assert.Equal(t, time.Date(2026, 3, 10, 21, 59, 59, int(time.Second-time.Nanosecond), time.UTC), *to)
}

func TestUTCBoundsNilRange(t *testing.T) {
	q := &AuditLogQuery{TzOffsetMinutes: -300}
	from, to := q.UTCBounds()
	assert.Nil(t, from)
	assert.Nil(t, to)
}
