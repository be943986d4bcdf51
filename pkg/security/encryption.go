package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"io"
)

var (
	ErrInvalidKeySize = errors.New("invalid key size")
	ErrEncryption     = errors.New("encryption failed")
	ErrDecryption     = errors.New("decryption failed")
)

// SymmetricKeySize is the size of the per-pair file keys exchanged over QR.
const SymmetricKeySize = 32

// Encryptor provides a generic interface for encryption/decryption
type Encryptor interface {
	Encrypt(data []byte) ([]byte, error)
	Decrypt(data []byte) ([]byte, error)
}

// KeyWrapper wraps symmetric keys under a server-held master key before
// they are persisted and unwraps them on the way out.
type KeyWrapper interface {
	Wrap(key []byte) (string, error)
	Unwrap(wrapped string) ([]byte, error)
}

// NewAESEncryptor creates a new AES-GCM encryptor
func NewAESEncryptor(key []byte) (Encryptor, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, ErrInvalidKeySize
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, ErrEncryption
	}

	return &aesEncryptor{
		gcm: gcm,
	}, nil
}

type aesEncryptor struct {
	gcm cipher.AEAD
}

func (a *aesEncryptor) Encrypt(data []byte) ([]byte, error) {
	nonce := make([]byte, a.gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, ErrEncryption
	}

	return a.gcm.Seal(nonce, nonce, data, nil), nil
}

func (a *aesEncryptor) Decrypt(data []byte) ([]byte, error) {
	nonceSize := a.gcm.NonceSize()
	if len(data) < nonceSize {
		return nil, ErrDecryption
	}

	nonce, ciphertext := data[:nonceSize], data[nonceSize:]
	plaintext, err := a.gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrDecryption
	}

	return plaintext, nil
}

// NewMasterKeyWrapper returns a KeyWrapper backed by AES-GCM under masterKey.
// Wrapped keys are stored base64-encoded.
func NewMasterKeyWrapper(masterKey []byte) (KeyWrapper, error) {
	enc, err := NewAESEncryptor(masterKey)
	if err != nil {
		return nil, err
	}
	return &masterKeyWrapper{enc: enc}, nil
}

type masterKeyWrapper struct {
	enc Encryptor
}

func (w *masterKeyWrapper) Wrap(key []byte) (string, error) {
	sealed, err := w.enc.Encrypt(key)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(sealed), nil
}

func (w *masterKeyWrapper) Unwrap(wrapped string) ([]byte, error) {
	sealed, err := base64.StdEncoding.DecodeString(wrapped)
	if err != nil {
		return nil, ErrDecryption
	}
	return w.enc.Decrypt(sealed)
}

// GenerateSymmetricKey returns a fresh random key for a doctor-patient pair.
func GenerateSymmetricKey() ([]byte, error) {
	key := make([]byte, SymmetricKeySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, err
	}
	return key, nil
}
