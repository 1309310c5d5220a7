package keys

import (
	"fmt"
	"sync"

	"github.com/illarion/photovault/internal/crypto"
	"github.com/illarion/photovault/internal/errs"
)

// Provider is an authenticated encrypt/decrypt capability.
type Provider interface {
	Encrypt(plaintext []byte) ([]byte, error)
	Decrypt(ciphertext []byte) ([]byte, error)
}

// AEAD is a Provider over an in-memory key.
type AEAD struct {
	enc *crypto.Encryptor
}

// NewAEAD creates a provider for key under suite. key is copied.
func NewAEAD(key []byte, suite crypto.CipherSuite) (*AEAD, error) {
	enc, err := crypto.NewEncryptor(key, suite)
	if err != nil {
		return nil, errs.E(errs.ErrInvalidInput, "keys.NewAEAD", err)
	}
	return &AEAD{enc: enc}, nil
}

func (a *AEAD) Encrypt(plaintext []byte) ([]byte, error) {
	ct, err := a.enc.Encrypt(plaintext)
	if err != nil {
		return nil, errs.E(errs.ErrIO, "keys.Encrypt", err)
	}
	return ct, nil
}

func (a *AEAD) Decrypt(ciphertext []byte) ([]byte, error) {
	pt, err := a.enc.Decrypt(ciphertext)
	if err != nil {
		return nil, errs.E(errs.ErrAuthFailed, "keys.Decrypt", err)
	}
	return pt, nil
}

// Destroy wipes the key.
func (a *AEAD) Destroy() {
	a.enc.Destroy()
}

// Deferred resolves its underlying Provider on first use. Resolution errors
// are sticky: every later call returns the same error.
type Deferred struct {
	resolve func() (Provider, error)

	once sync.Once
	p    Provider
	err  error
}

// NewDeferred creates a lazily resolved provider.
func NewDeferred(resolve func() (Provider, error)) *Deferred {
	return &Deferred{resolve: resolve}
}

func (d *Deferred) get() (Provider, error) {
	d.once.Do(func() {
		d.p, d.err = d.resolve()
		if d.err == nil && d.p == nil {
			d.err = fmt.Errorf("key provider resolved to nil")
		}
	})
	return d.p, d.err
}

// Resolve forces resolution and reports its error.
func (d *Deferred) Resolve() error {
	_, err := d.get()
	return err
}

func (d *Deferred) Encrypt(plaintext []byte) ([]byte, error) {
	p, err := d.get()
	if err != nil {
		return nil, err
	}
	return p.Encrypt(plaintext)
}

func (d *Deferred) Decrypt(ciphertext []byte) ([]byte, error) {
	p, err := d.get()
	if err != nil {
		return nil, err
	}
	return p.Decrypt(ciphertext)
}
