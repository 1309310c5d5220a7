package keys

import (
	"github.com/illarion/photovault/internal/crypto"
	"github.com/illarion/photovault/internal/errs"
	"github.com/illarion/photovault/internal/keyring"
)

// NewKeyringProvider loads the master key for vaultID from the OS keyring,
// generating and storing a fresh random key on first use.
func NewKeyringProvider(vaultID string, suite crypto.CipherSuite) (*AEAD, error) {
	const op = "keys.NewKeyringProvider"

	key, err := keyring.GetKey(vaultID)
	if keyring.IsNotFound(err) {
		key, err = crypto.GenerateRandom(crypto.KeySize)
		if err != nil {
			return nil, errs.E(errs.ErrIO, op, err)
		}
		if err := keyring.SaveKey(vaultID, key); err != nil {
			crypto.ClearBytes(key)
			return nil, errs.E(errs.ErrIO, op, err)
		}
	} else if err != nil {
		return nil, errs.E(errs.ErrIO, op, err)
	}
	defer crypto.ClearBytes(key)

	return NewAEAD(key, suite)
}
