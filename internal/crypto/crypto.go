package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/pbkdf2"
)

const (
	SaltSize     = 32     // Salt size in bytes
	KeySize      = 32     // AES-256 / ChaCha20 key size
	NonceSize    = 12     // GCM and ChaCha20-Poly1305 nonce size
	TagSize      = 16     // Authentication tag size
	DefaultIters = 210000 // Default PBKDF2 iterations (OWASP minimum)
)

// BackupSalt is the fixed application salt for backup key derivation.
// The same password always yields the same backup key.
var BackupSalt = []byte("photovault.backup.kdf.v1")

var (
	ErrInvalidCiphertext = errors.New("invalid ciphertext")
	ErrAuthFailed        = errors.New("authentication failed")
	ErrInvalidKey        = errors.New("invalid key size")
	ErrUnknownCipher     = errors.New("unknown cipher suite")
)

// CipherSuite selects the AEAD construction.
type CipherSuite string

const (
	AES256GCM        CipherSuite = "aes-256-gcm"
	ChaCha20Poly1305 CipherSuite = "chacha20-poly1305"
)

// ParseCipherSuite maps a config string to a CipherSuite. Empty means AES-256-GCM.
func ParseCipherSuite(s string) (CipherSuite, error) {
	switch CipherSuite(s) {
	case "", AES256GCM:
		return AES256GCM, nil
	case ChaCha20Poly1305:
		return ChaCha20Poly1305, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownCipher, s)
	}
}

// KDF handles key derivation from passwords
type KDF struct {
	Salt       []byte
	Iterations int
}

// NewKDF creates a new KDF with a random salt
func NewKDF() (*KDF, error) {
	salt := make([]byte, SaltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}

	return &KDF{
		Salt:       salt,
		Iterations: DefaultIters,
	}, nil
}

// NewBackupKDF returns the deterministic KDF used for backup containers.
// iterations <= 0 selects DefaultIters.
func NewBackupKDF(iterations int) *KDF {
	if iterations <= 0 {
		iterations = DefaultIters
	}
	return &KDF{Salt: BackupSalt, Iterations: iterations}
}

// DeriveKey derives an encryption key from a password
func (k *KDF) DeriveKey(password []byte) []byte {
	return pbkdf2.Key(password, k.Salt, k.Iterations, KeySize, sha256.New)
}

// Encryptor provides authenticated encryption. Output layout is nonce || ciphertext || tag.
type Encryptor struct {
	key  []byte
	aead cipher.AEAD
}

// NewEncryptor creates a new encryptor with the given key and cipher suite.
// The encryptor keeps its own copy of key.
func NewEncryptor(key []byte, suite CipherSuite) (*Encryptor, error) {
	if len(key) != KeySize {
		return nil, ErrInvalidKey
	}
	own := append([]byte(nil), key...)

	var (
		aead cipher.AEAD
		err  error
	)
	switch suite {
	case "", AES256GCM:
		block, berr := aes.NewCipher(own)
		if berr != nil {
			return nil, fmt.Errorf("failed to create cipher: %w", berr)
		}
		aead, err = cipher.NewGCM(block)
	case ChaCha20Poly1305:
		aead, err = chacha20poly1305.New(own)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCipher, suite)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create AEAD: %w", err)
	}

	return &Encryptor{key: own, aead: aead}, nil
}

// Encrypt seals plaintext under a fresh random nonce.
func (e *Encryptor) Encrypt(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, NonceSize, NonceSize+len(plaintext)+TagSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	// Prepend nonce to ciphertext
	return e.aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Decrypt opens data produced by Encrypt.
func (e *Encryptor) Decrypt(ciphertext []byte) ([]byte, error) {
	if len(ciphertext) < NonceSize+TagSize {
		return nil, ErrInvalidCiphertext
	}

	plaintext, err := e.aead.Open(nil, ciphertext[:NonceSize], ciphertext[NonceSize:], nil)
	if err != nil {
		return nil, ErrAuthFailed
	}

	return plaintext, nil
}

// Destroy clears the encryptor's key from memory
func (e *Encryptor) Destroy() {
	ClearBytes(e.key)
}

// ClearBytes securely clears a byte slice
func ClearBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// ConstantTimeCompare performs a constant-time comparison of two byte slices
func ConstantTimeCompare(a, b []byte) bool {
	return subtle.ConstantTimeCompare(a, b) == 1
}

// GenerateRandom generates n random bytes
func GenerateRandom(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return b, nil
}
