package otp

import (
	"regexp"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medvault/medvault-api/internal/model"
)

func TestStorePutGetDelete(t *testing.T) {
	store := NewStore()
	user := &model.User{ID: uuid.New(), Email: "doc@example.com"}
	key := model.ChallengeKey(user.ID, user.Email)

	challenge := &model.OtpChallenge{
		Code:      "123456",
		ExpiresAt: time.Now().Add(model.OtpTTL),
		User:      user,
	}
	store.Put(key, challenge)

	got, ok := store.Get(key)
	require.True(t, ok)
	assert.Equal(t, "123456", got.Code)

	store.Delete(key)
	_, ok = store.Get(key)
	assert.False(t, ok)
}

func TestStoreFindByEmail(t *testing.T) {
	store := NewStore()
	user := &model.User{ID: uuid.New(), Email: "pat@example.com"}
	key := model.ChallengeKey(user.ID, user.Email)
	store.Put(key, &model.OtpChallenge{
		Code:      "654321",
		ExpiresAt: time.Now().Add(model.OtpTTL),
		User:      user,
	})

	foundKey, challenge, ok := store.FindByEmail("pat@example.com")
	require.True(t, ok)
	assert.Equal(t, key, foundKey)
	assert.Equal(t, "654321", challenge.Code)

	_, _, ok = store.FindByEmail("nobody@example.com")
	assert.False(t, ok)
}

func TestGenerateCode(t *testing.T) {
	pattern := regexp.MustCompile(`^\d{6}$`)
	for i := 0; i < 20; i++ {
		code, err := GenerateCode()
		require.NoError(t, err)
		assert.Regexp(t, pattern, code)
	}
}
