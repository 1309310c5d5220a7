package crypto

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey(t *testing.T) []byte {
	t.Helper()
	key, err := GenerateRandom(KeySize)
	require.NoError(t, err)
	return key
}

func TestEncryptor_RoundTrip(t *testing.T) {
	for _, suite := range []CipherSuite{AES256GCM, ChaCha20Poly1305} {
		t.Run(string(suite), func(t *testing.T) {
			enc, err := NewEncryptor(testKey(t), suite)
			require.NoError(t, err)
			defer enc.Destroy()

			plaintext := []byte("JPEGDATA")
			ct, err := enc.Encrypt(plaintext)
			require.NoError(t, err)
			assert.Len(t, ct, NonceSize+len(plaintext)+TagSize)

			got, err := enc.Decrypt(ct)
			require.NoError(t, err)
			assert.Equal(t, plaintext, got)
		})
	}
}

func TestEncryptor_FreshNonce(t *testing.T) {
	enc, err := NewEncryptor(testKey(t), AES256GCM)
	require.NoError(t, err)

	a, err := enc.Encrypt([]byte("same"))
	require.NoError(t, err)
	b, err := enc.Encrypt([]byte("same"))
	require.NoError(t, err)
	assert.False(t, bytes.Equal(a, b), "two encryptions of the same plaintext must differ")
}

func TestEncryptor_WrongKey(t *testing.T) {
	enc1, err := NewEncryptor(testKey(t), AES256GCM)
	require.NoError(t, err)
	enc2, err := NewEncryptor(testKey(t), AES256GCM)
	require.NoError(t, err)

	ct, err := enc1.Encrypt([]byte("secret"))
	require.NoError(t, err)

	_, err = enc2.Decrypt(ct)
	assert.ErrorIs(t, err, ErrAuthFailed)

	_, err = enc1.Decrypt(ct[:5])
	assert.ErrorIs(t, err, ErrInvalidCiphertext)
}

func TestNewEncryptor_Validation(t *testing.T) {
	_, err := NewEncryptor([]byte("short"), AES256GCM)
	assert.ErrorIs(t, err, ErrInvalidKey)

	_, err = NewEncryptor(testKey(t), CipherSuite("rot13"))
	assert.ErrorIs(t, err, ErrUnknownCipher)
}

func TestNewEncryptor_CopiesKey(t *testing.T) {
	key := testKey(t)
	enc, err := NewEncryptor(key, AES256GCM)
	require.NoError(t, err)
	ct, err := enc.Encrypt([]byte("x"))
	require.NoError(t, err)

	ClearBytes(key)
	_, err = enc.Decrypt(ct)
	assert.NoError(t, err)
}

func TestBackupKDF_Deterministic(t *testing.T) {
	kdf := NewBackupKDF(1000)
	a := kdf.DeriveKey([]byte("correct"))
	b := NewBackupKDF(1000).DeriveKey([]byte("correct"))
	c := kdf.DeriveKey([]byte("wrong"))

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, KeySize)
	assert.Equal(t, DefaultIters, NewBackupKDF(0).Iterations)
}

func TestNewKDF_RandomSalt(t *testing.T) {
	a, err := NewKDF()
	require.NoError(t, err)
	b, err := NewKDF()
	require.NoError(t, err)
	assert.NotEqual(t, a.Salt, b.Salt)
	assert.Len(t, a.Salt, SaltSize)
}

func TestParseCipherSuite(t *testing.T) {
	s, err := ParseCipherSuite("")
	require.NoError(t, err)
	assert.Equal(t, AES256GCM, s)

	s, err = ParseCipherSuite("chacha20-poly1305")
	require.NoError(t, err)
	assert.Equal(t, ChaCha20Poly1305, s)

	_, err = ParseCipherSuite("des")
	assert.ErrorIs(t, err, ErrUnknownCipher)
}
