package keys

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"

	"github.com/illarion/photovault/internal/crypto"
	"github.com/illarion/photovault/internal/errs"
)

func TestAEAD_RoundTripAndAuthFailure(t *testing.T) {
	key, err := crypto.GenerateRandom(crypto.KeySize)
	require.NoError(t, err)
	p, err := NewAEAD(key, crypto.AES256GCM)
	require.NoError(t, err)

	ct, err := p.Encrypt([]byte("hello"))
	require.NoError(t, err)
	pt, err := p.Decrypt(ct)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(pt))

	ct[len(ct)-1] ^= 0xff
	_, err = p.Decrypt(ct)
	assert.ErrorIs(t, err, errs.ErrAuthFailed)
}

func TestNewAEAD_BadKey(t *testing.T) {
	_, err := NewAEAD([]byte("short"), crypto.AES256GCM)
	assert.ErrorIs(t, err, errs.ErrInvalidInput)
}

func TestKeyringProvider_StableAcrossOpens(t *testing.T) {
	keyring.MockInit()

	p1, err := NewKeyringProvider("vault-a", crypto.AES256GCM)
	require.NoError(t, err)
	ct, err := p1.Encrypt([]byte("photo"))
	require.NoError(t, err)

	p2, err := NewKeyringProvider("vault-a", crypto.AES256GCM)
	require.NoError(t, err)
	pt, err := p2.Decrypt(ct)
	require.NoError(t, err)
	assert.Equal(t, "photo", string(pt))

	p3, err := NewKeyringProvider("vault-b", crypto.AES256GCM)
	require.NoError(t, err)
	_, err = p3.Decrypt(ct)
	assert.ErrorIs(t, err, errs.ErrAuthFailed)
}

func TestKeyFile_CreateOpenWrongPassword(t *testing.T) {
	path := filepath.Join(t.TempDir(), "master.key")

	p1, err := OpenKeyFile(path, []byte("pw"), crypto.ChaCha20Poly1305)
	require.NoError(t, err)
	ct, err := p1.Encrypt([]byte("photo"))
	require.NoError(t, err)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	p2, err := OpenKeyFile(path, []byte("pw"), crypto.ChaCha20Poly1305)
	require.NoError(t, err)
	pt, err := p2.Decrypt(ct)
	require.NoError(t, err)
	assert.Equal(t, "photo", string(pt))

	_, err = OpenKeyFile(path, []byte("nope"), crypto.ChaCha20Poly1305)
	assert.ErrorIs(t, err, errs.ErrAuthFailed)
	assert.ErrorIs(t, err, ErrWrongPassword)

	_, err = OpenKeyFile(path, nil, crypto.ChaCha20Poly1305)
	assert.ErrorIs(t, err, errs.ErrInvalidInput)
}

func TestChangeKeyFilePassword(t *testing.T) {
	path := filepath.Join(t.TempDir(), "master.key")

	p1, err := OpenKeyFile(path, []byte("old"), crypto.AES256GCM)
	require.NoError(t, err)
	ct, err := p1.Encrypt([]byte("photo"))
	require.NoError(t, err)

	err = ChangeKeyFilePassword(path, []byte("bad"), []byte("new"))
	assert.ErrorIs(t, err, errs.ErrAuthFailed)

	require.NoError(t, ChangeKeyFilePassword(path, []byte("old"), []byte("new")))

	_, err = OpenKeyFile(path, []byte("old"), crypto.AES256GCM)
	assert.ErrorIs(t, err, ErrWrongPassword)

	p2, err := OpenKeyFile(path, []byte("new"), crypto.AES256GCM)
	require.NoError(t, err)
	pt, err := p2.Decrypt(ct)
	require.NoError(t, err)
	assert.Equal(t, "photo", string(pt))

	err = ChangeKeyFilePassword(filepath.Join(t.TempDir(), "missing"), []byte("a"), []byte("b"))
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestDeferred(t *testing.T) {
	calls := 0
	key, err := crypto.GenerateRandom(crypto.KeySize)
	require.NoError(t, err)

	d := NewDeferred(func() (Provider, error) {
		calls++
		return NewAEAD(key, crypto.AES256GCM)
	})
	assert.Equal(t, 0, calls)

	ct, err := d.Encrypt([]byte("x"))
	require.NoError(t, err)
	_, err = d.Decrypt(ct)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)

	boom := errors.New("locked")
	failing := NewDeferred(func() (Provider, error) { return nil, boom })
	_, err = failing.Encrypt([]byte("x"))
	assert.ErrorIs(t, err, boom)
	_, err = failing.Decrypt([]byte("x"))
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, failing.Resolve(), boom)
	assert.NoError(t, d.Resolve())
	assert.Equal(t, 1, calls)
}
