package eraser

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/illarion/photovault/internal/errs"
)

func writeFile(t *testing.T, dir, name string, size int) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, bytes.Repeat([]byte{0xAB}, size), 0o600))
	return p
}

func TestErase_ThreePassesThenRemoved(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "photo.enc", 200_000)

	type passInfo struct {
		pass    int
		written int64
		first   []byte
	}
	var seen []passInfo

	e := New(
		WithChunkSize(4096),
		WithFillByte(0x00),
		WithPassHook(func(p string, pass int, written int64) {
			head := make([]byte, 64)
			f, err := os.Open(p)
			require.NoError(t, err)
			_, err = io.ReadFull(f, head)
			f.Close()
			require.NoError(t, err)
			seen = append(seen, passInfo{pass: pass, written: written, first: head})
		}),
	)

	require.NoError(t, e.Erase(path))

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	require.Len(t, seen, Passes)
	for i, s := range seen {
		assert.Equal(t, i+1, s.pass)
		assert.Equal(t, int64(200_000), s.written)
	}
	assert.Equal(t, make([]byte, 64), seen[1].first, "pass 2 writes the fill byte")
	assert.NotEqual(t, bytes.Repeat([]byte{0xAB}, 64), seen[0].first, "pass 1 replaces the original")
	assert.NotEqual(t, seen[0].first, seen[2].first, "passes 1 and 3 use fresh randomness")
}

func TestErase_EmptyFile(t *testing.T) {
	path := writeFile(t, t.TempDir(), "empty.enc", 0)

	passes := 0
	e := New(WithPassHook(func(string, int, int64) { passes++ }))
	require.NoError(t, e.Erase(path))

	assert.Equal(t, Passes, passes)
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestErase_NotFound(t *testing.T) {
	err := New().Erase(filepath.Join(t.TempDir(), "missing"))
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestErase_Directory(t *testing.T) {
	err := New().Erase(t.TempDir())
	assert.ErrorIs(t, err, errs.ErrInvalidInput)
}

func TestErase_AccessDenied(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root bypasses file permissions")
	}
	path := writeFile(t, t.TempDir(), "ro.enc", 10)
	require.NoError(t, os.Chmod(path, 0o400))

	err := New().Erase(path)
	assert.ErrorIs(t, err, ErrAccessDenied)
	assert.ErrorIs(t, err, errs.ErrIO)

	_, statErr := os.Stat(path)
	assert.NoError(t, statErr, "file is left in place")
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("entropy exhausted") }

func TestErase_PassFailureLeavesFile(t *testing.T) {
	path := writeFile(t, t.TempDir(), "photo.enc", 1024)

	err := New(WithRandom(failingReader{})).Erase(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrOverwriteFailed)

	var ow *OverwriteError
	require.ErrorAs(t, err, &ow)
	assert.Equal(t, 1, ow.Pass)

	_, statErr := os.Stat(path)
	assert.NoError(t, statErr, "failed erase does not unlink")
}

func TestEraseMany(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.enc", 100)
	b := writeFile(t, dir, "b.enc", 100)
	missing := filepath.Join(dir, "missing.enc")

	res := New().EraseMany([]string{a, missing, b})
	require.Len(t, res, 3)
	assert.NoError(t, res[a])
	assert.NoError(t, res[b])
	assert.ErrorIs(t, res[missing], errs.ErrNotFound)

	for _, p := range []string{a, b} {
		_, err := os.Stat(p)
		assert.True(t, os.IsNotExist(err))
	}
}
