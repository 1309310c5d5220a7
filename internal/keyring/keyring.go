// Package keyring stores vault master keys in the OS keyring.
package keyring

import (
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

const serviceName = "photovault"

// ErrNotFound is returned when no key is stored for a vault.
var ErrNotFound = keyring.ErrNotFound

// SaveKey stores a master key in the OS keyring
func SaveKey(vaultID string, key []byte) error {
	return keyring.Set(serviceName, vaultID, hex.EncodeToString(key))
}

// GetKey retrieves a master key from the OS keyring
func GetKey(vaultID string) ([]byte, error) {
	encoded, err := keyring.Get(serviceName, vaultID)
	if err != nil {
		return nil, err
	}
	key, err := hex.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("malformed keyring entry: %w", err)
	}
	return key, nil
}

// DeleteKey removes a master key from the OS keyring
func DeleteKey(vaultID string) error {
	return keyring.Delete(serviceName, vaultID)
}

// HasKey checks if a master key is stored in the keyring
func HasKey(vaultID string) bool {
	_, err := keyring.Get(serviceName, vaultID)
	return err == nil
}

// IsNotFound reports whether err means the keyring has no entry.
func IsNotFound(err error) bool {
	return errors.Is(err, keyring.ErrNotFound)
}
