package otp

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/medvault/medvault-api/internal/model"
)

// Store holds pending OTP challenges in process-local memory.
// Challenges are keyed {userID}_{email} and evaporate on restart; a
// shared cache service is the redesign path if this ever runs multi-instance.
type Store struct {
	c *cache.Cache
}

func NewStore() *Store {
	return &Store{
		c: cache.New(model.OtpTTL, 5*time.Minute),
	}
}

// Put stores a challenge under key with its own expiry.
func (s *Store) Put(key string, challenge *model.OtpChallenge) {
	s.c.Set(key, challenge, time.Until(challenge.ExpiresAt))
}

// Get returns the challenge stored under key, if any.
func (s *Store) Get(key string) (*model.OtpChallenge, bool) {
	v, ok := s.c.Get(key)
	if !ok {
		return nil, false
	}
	return v.(*model.OtpChallenge), true
}

// FindByEmail scans all stored challenges for one whose key contains the
// email. Linear, matching how challenges are looked up at verification time
// when only the email is known.
func (s *Store) FindByEmail(email string) (string, *model.OtpChallenge, bool) {
	for key, item := range s.c.Items() {
		if strings.Contains(key, email) {
			return key, item.Object.(*model.OtpChallenge), true
		}
	}
	return "", nil, false
}

// Delete evicts the challenge under key.
func (s *Store) Delete(key string) {
	s.c.Delete(key)
}

// GenerateCode returns a random 6-digit numeric code.
func GenerateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", fmt.Errorf("failed to generate OTP: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
