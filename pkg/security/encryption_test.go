package security

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testMasterKey() []byte {
	return bytes.Repeat([]byte{0x42}, SymmetricKeySize)
}

func TestKeyWrapperRoundTrip(t *testing.T) {
	wrapper, err := NewMasterKeyWrapper(testMasterKey())
	require.NoError(t, err)

	key, err := GenerateSymmetricKey()
	require.NoError(t, err)
	assert.Len(t, key, SymmetricKeySize)

	wrapped, err := wrapper.Wrap(key)
	require.NoError(t, err)
	assert.NotEmpty(t, wrapped)
	assert.NotContains(t, wrapped, string(key))

	unwrapped, err := wrapper.Unwrap(wrapped)
	require.NoError(t, err)
	assert.Equal(t, key, unwrapped)
}

func TestKeyWrapperWrapsDiffer(t *testing.T) {
	wrapper, err := NewMasterKeyWrapper(testMasterKey())
	require.NoError(t, err)

	key, err := GenerateSymmetricKey()
	require.NoError(t, err)

	first, err := wrapper.Wrap(key)
	require.NoError(t, err)
	second, err := wrapper.Wrap(key)
	require.NoError(t, err)

	// Random nonces make every wrap of the same key distinct.
	assert.NotEqual(t, first, second)
}

func TestKeyWrapperRejectsWrongMasterKey(t *testing.T) {
	wrapper, err := NewMasterKeyWrapper(testMasterKey())
	require.NoError(t, err)
	other, err := NewMasterKeyWrapper(bytes.Repeat([]byte{0x17}, SymmetricKeySize))
	require.NoError(t, err)

	key, err := GenerateSymmetricKey()
	require.NoError(t, err)
	wrapped, err := wrapper.Wrap(key)
	require.NoError(t, err)

	_, err = other.Unwrap(wrapped)
	assert.ErrorIs(t, err, ErrDecryption)
}

func TestKeyWrapperRejectsGarbage(t *testing.T) {
	wrapper, err := NewMasterKeyWrapper(testMasterKey())
	require.NoError(t, err)

	_, err = wrapper.Unwrap("not base64!!!")
	assert.ErrorIs(t, err, ErrDecryption)

	_, err = wrapper.Unwrap("dG9vc2hvcnQ=")
	assert.ErrorIs(t, err, ErrDecryption)
}

func TestNewMasterKeyWrapperRejectsBadKeySize(t *testing.T) {
	_, err := NewMasterKeyWrapper([]byte("short"))
	assert.ErrorIs(t, err, ErrInvalidKeySize)
}

func TestGenerateSymmetricKeyIsRandom(t *testing.T) {
	a, err := GenerateSymmetricKey()
	require.NoError(t, err)
	b, err := GenerateSymmetricKey()
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}
