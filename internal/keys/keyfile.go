package keys

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/illarion/photovault/internal/crypto"
	"github.com/illarion/photovault/internal/errs"
	"github.com/illarion/photovault/internal/fsutil"
)

const keyFileVersion = 1

// ErrWrongPassword is returned when a key file cannot be unwrapped.
var ErrWrongPassword = errors.New("wrong password")

// keyFile is the on-disk form of a password-wrapped master key.
type keyFile struct {
	Version    int    `json:"version"`
	Salt       []byte `json:"salt"`
	Iterations int    `json:"iterations"`
	Wrapped    []byte `json:"wrapped"`
}

// OpenKeyFile unwraps the master key stored at path with password, creating
// a new random master key when the file does not exist yet.
func OpenKeyFile(path string, password []byte, suite crypto.CipherSuite) (*AEAD, error) {
	const op = "keys.OpenKeyFile"

	if len(password) == 0 {
		return nil, errs.Errorf(errs.ErrInvalidInput, op, "password required")
	}

	kf, err := readKeyFile(path)
	if errors.Is(err, os.ErrNotExist) {
		master, err := crypto.GenerateRandom(crypto.KeySize)
		if err != nil {
			return nil, errs.E(errs.ErrIO, op, err)
		}
		defer crypto.ClearBytes(master)

		if err := writeKeyFile(path, master, password); err != nil {
			return nil, errs.E(errs.ErrIO, op, err)
		}
		return NewAEAD(master, suite)
	}
	if err != nil {
		return nil, errs.E(errs.ErrIO, op, err)
	}

	master, err := kf.unwrap(password)
	if err != nil {
		return nil, errs.E(errs.ErrAuthFailed, op, err)
	}
	defer crypto.ClearBytes(master)

	return NewAEAD(master, suite)
}

// ChangeKeyFilePassword re-wraps the master key under newPassword.
// Object ciphertexts are untouched since the master key does not change.
func ChangeKeyFilePassword(path string, currentPassword, newPassword []byte) error {
	const op = "keys.ChangeKeyFilePassword"

	if len(newPassword) == 0 {
		return errs.Errorf(errs.ErrInvalidInput, op, "new password required")
	}

	kf, err := readKeyFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return errs.E(errs.ErrNotFound, op, err)
	}
	if err != nil {
		return errs.E(errs.ErrIO, op, err)
	}

	master, err := kf.unwrap(currentPassword)
	if err != nil {
		return errs.E(errs.ErrAuthFailed, op, err)
	}
	defer crypto.ClearBytes(master)

	if err := writeKeyFile(path, master, newPassword); err != nil {
		return errs.E(errs.ErrIO, op, err)
	}
	return nil
}

func (kf *keyFile) unwrap(password []byte) ([]byte, error) {
	kdf := &crypto.KDF{Salt: kf.Salt, Iterations: kf.Iterations}
	kek := kdf.DeriveKey(password)
	defer crypto.ClearBytes(kek)

	enc, err := crypto.NewEncryptor(kek, crypto.AES256GCM)
	if err != nil {
		return nil, err
	}
	defer enc.Destroy()

	master, err := enc.Decrypt(kf.Wrapped)
	if err != nil {
		return nil, ErrWrongPassword
	}
	return master, nil
}

func readKeyFile(path string) (*keyFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var kf keyFile
	if err := json.Unmarshal(data, &kf); err != nil {
		return nil, fmt.Errorf("malformed key file: %w", err)
	}
	if kf.Version > keyFileVersion {
		return nil, fmt.Errorf("unsupported key file version %d", kf.Version)
	}
	return &kf, nil
}

func writeKeyFile(path string, master, password []byte) error {
	kdf, err := crypto.NewKDF()
	if err != nil {
		return err
	}
	kek := kdf.DeriveKey(password)
	defer crypto.ClearBytes(kek)

	enc, err := crypto.NewEncryptor(kek, crypto.AES256GCM)
	if err != nil {
		return err
	}
	defer enc.Destroy()

	wrapped, err := enc.Encrypt(master)
	if err != nil {
		return err
	}

	data, err := json.Marshal(keyFile{
		Version:    keyFileVersion,
		Salt:       kdf.Salt,
		Iterations: kdf.Iterations,
		Wrapped:    wrapped,
	})
	if err != nil {
		return err
	}
	return fsutil.WriteFileAtomic(path, data)
}
