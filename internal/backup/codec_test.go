package backup

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/illarion/photovault/internal/crypto"
	"github.com/illarion/photovault/internal/errs"
	"github.com/illarion/photovault/internal/keys"
	"github.com/illarion/photovault/internal/storage"
	"github.com/illarion/photovault/internal/vault"
)

const testIters = 1000

func newVault(t *testing.T) *vault.Store {
	t.Helper()
	key, err := crypto.GenerateRandom(crypto.KeySize)
	require.NoError(t, err)
	p, err := keys.NewAEAD(key, crypto.AES256GCM)
	require.NoError(t, err)

	s := vault.New(t.TempDir(), p)
	require.NoError(t, s.Initialize(context.Background()))
	t.Cleanup(func() { s.Close() })
	return s
}

func newCodec(v Vault, scratch string) *Codec {
	return New(v, scratch, WithIterations(testIters), WithDeviceName("test-device"))
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 120, 80))
	for i := range img.Pix {
		img.Pix[i] = uint8(i)
	}
	img.Set(0, 0, color.White)
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func fill(t *testing.T, s *vault.Store) map[string][]byte {
	t.Helper()
	payloads := [][]byte{pngBytes(t), []byte("raw bytes"), bytes.Repeat([]byte{7}, 300_000)}
	names := []string{"a.png", "b.raw", "c.bin"}

	byName := make(map[string][]byte)
	for i, p := range payloads {
		_, err := s.Save(context.Background(), p, storage.PhotoMetadata{OriginalFilename: names[i], Tags: []string{"t"}})
		require.NoError(t, err)
		byName[names[i]] = p
	}
	return byName
}

func contents(t *testing.T, s *vault.Store) map[string][]byte {
	t.Helper()
	out := make(map[string][]byte)
	for _, obj := range s.List() {
		data, err := s.Retrieve(context.Background(), obj.ID)
		require.NoError(t, err)
		out[obj.Metadata.OriginalFilename] = data
	}
	return out
}

func TestBackupRestoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	src := newVault(t)
	want := fill(t, src)

	dest := filepath.Join(t.TempDir(), "vault.lucb")
	res, err := newCodec(src, src.TempDir()).CreateBackup(ctx, []byte("hunter2"), src.List(), dest, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Exported)
	assert.Empty(t, res.Failed)
	assert.Equal(t, "test-device", res.Manifest.DeviceName)

	info, err := os.Stat(dest)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	raw, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, []byte(Magic), raw[:4])
	assert.False(t, bytes.Contains(raw, []byte("raw bytes")), "payloads are encrypted")

	dst := newVault(t)
	restored, err := newCodec(dst, dst.TempDir()).RestoreBackup(ctx, dest, []byte("hunter2"), nil)
	require.NoError(t, err)
	assert.Equal(t, 3, restored.Imported)
	assert.Len(t, restored.ImportedIDs, 3)
	assert.Empty(t, restored.Failed)

	assert.Equal(t, want, contents(t, dst))
	for _, obj := range dst.List() {
		assert.Equal(t, []string{"t"}, obj.Metadata.Tags, "metadata travels with the photo")
	}

	entries, err := os.ReadDir(dst.TempDir())
	require.NoError(t, err)
	assert.Empty(t, entries, "scratch area is removed")
}

func TestRestoreWrongPassword(t *testing.T) {
	ctx := context.Background()
	src := newVault(t)
	fill(t, src)

	dest := filepath.Join(t.TempDir(), "vault.lucb")
	_, err := newCodec(src, src.TempDir()).CreateBackup(ctx, []byte("right"), src.List(), dest, nil)
	require.NoError(t, err)

	dst := newVault(t)
	codec := newCodec(dst, dst.TempDir())

	_, err = codec.RestoreBackup(ctx, dest, []byte("wrong"), nil)
	assert.ErrorIs(t, err, ErrWrongPassword)
	assert.ErrorIs(t, err, errs.ErrAuthFailed)
	assert.Empty(t, dst.List(), "vault unchanged")

	_, err = codec.ReadMetadataOnly(ctx, dest, []byte("wrong"))
	assert.ErrorIs(t, err, ErrWrongPassword)

	// Different iteration count derives a different key
	_, err = New(dst, dst.TempDir(), WithIterations(testIters+1)).ReadMetadataOnly(ctx, dest, []byte("right"))
	assert.ErrorIs(t, err, ErrWrongPassword)
}

func TestRestoreWrongPasswordKeepsExistingPhotos(t *testing.T) {
	ctx := context.Background()
	v := newVault(t)
	want := fill(t, v)
	before := v.List()
	require.Len(t, before, 3)

	dest := filepath.Join(t.TempDir(), "vault.lucb")
	codec := newCodec(v, v.TempDir())
	_, err := codec.CreateBackup(ctx, []byte("right"), before, dest, nil)
	require.NoError(t, err)

	res, err := codec.RestoreBackup(ctx, dest, []byte("wrong"), nil)
	assert.ErrorIs(t, err, ErrWrongPassword)
	assert.Nil(t, res)

	after := v.List()
	require.Len(t, after, 3, "no photo imported or lost")
	for i := range before {
		assert.Equal(t, before[i].ID, after[i].ID)
	}
	assert.Equal(t, want, contents(t, v))
}

func TestReadMetadataOnly(t *testing.T) {
	ctx := context.Background()
	src := newVault(t)
	fill(t, src)

	dest := filepath.Join(t.TempDir(), "vault.lucb")
	_, err := newCodec(src, src.TempDir()).CreateBackup(ctx, []byte("pw"), src.List(), dest, nil)
	require.NoError(t, err)

	dst := newVault(t)
	m, err := newCodec(dst, dst.TempDir()).ReadMetadataOnly(ctx, dest, []byte("pw"))
	require.NoError(t, err)

	assert.Equal(t, ManifestVersion, m.Version)
	assert.Equal(t, 3, m.PhotoCount)
	assert.Equal(t, int64(len(pngBytes(t))+len("raw bytes")+300_000), m.TotalSize)

	var names []string
	for _, p := range m.Photos {
		names = append(names, p.Metadata.OriginalFilename)
		assert.Equal(t, photoEntry(p.ID), p.Entry)
	}
	sort.Strings(names)
	assert.Equal(t, []string{"a.png", "b.raw", "c.bin"}, names)
	assert.Empty(t, dst.List(), "preview imports nothing")
}

func TestBackupIncludesThumbnails(t *testing.T) {
	ctx := context.Background()
	src := newVault(t)
	fill(t, src)

	dest := filepath.Join(t.TempDir(), "vault.lucb")
	res, err := newCodec(src, src.TempDir()).CreateBackup(ctx, []byte("pw"), src.List(), dest, nil)
	require.NoError(t, err)

	f, err := os.Open(dest)
	require.NoError(t, err)
	defer f.Close()
	cr, err := NewReader(f)
	require.NoError(t, err)

	var names []string
	for {
		hdr, err := cr.Next()
		if err != nil {
			break
		}
		names = append(names, hdr.Name)
	}
	assert.Equal(t, ManifestEntry, names[0])
	assert.Len(t, names, 1+3+1, "manifest, three photos, one thumbnail")

	withThumb := 0
	for _, p := range res.Manifest.Photos {
		if p.ThumbnailEntry != "" {
			withThumb++
			assert.Contains(t, names, p.ThumbnailEntry)
		}
	}
	assert.Equal(t, 1, withThumb)
}

func TestProgressPhasesOrdered(t *testing.T) {
	ctx := context.Background()
	src := newVault(t)
	fill(t, src)

	var events []Progress
	record := func(p Progress) { events = append(events, p) }

	dest := filepath.Join(t.TempDir(), "vault.lucb")
	_, err := newCodec(src, src.TempDir()).CreateBackup(ctx, []byte("pw"), src.List(), dest, record)
	require.NoError(t, err)
	assertOrdered(t, events, []Phase{PhasePreparing, PhaseEncrypting, PhaseWriting, PhaseComplete})

	events = nil
	dst := newVault(t)
	_, err = newCodec(dst, dst.TempDir()).RestoreBackup(ctx, dest, []byte("pw"), record)
	require.NoError(t, err)
	assertOrdered(t, events, []Phase{PhaseReading, PhaseImporting, PhaseComplete})
}

func assertOrdered(t *testing.T, events []Progress, phases []Phase) {
	t.Helper()
	require.NotEmpty(t, events)

	var seen []Phase
	for i, e := range events {
		if i == 0 || e.Phase != events[i-1].Phase {
			seen = append(seen, e.Phase)
			continue
		}
		assert.GreaterOrEqual(t, e.Current, events[i-1].Current, "current is non-decreasing in %s", e.Phase)
		assert.LessOrEqual(t, e.Current, e.Total)
	}
	assert.Equal(t, phases, seen)
}

type flakyVault struct {
	*vault.Store
	failIDs map[string]bool
}

func (f *flakyVault) Retrieve(ctx context.Context, id string) ([]byte, error) {
	if f.failIDs[id] {
		return nil, errs.Errorf(errs.ErrIO, "test", "disk error")
	}
	return f.Store.Retrieve(ctx, id)
}

func TestBackupSkipsFailedPhotos(t *testing.T) {
	ctx := context.Background()
	src := newVault(t)
	fill(t, src)
	objs := src.List()

	v := &flakyVault{Store: src, failIDs: map[string]bool{objs[1].ID: true}}
	dest := filepath.Join(t.TempDir(), "vault.lucb")
	res, err := newCodec(v, src.TempDir()).CreateBackup(ctx, []byte("pw"), objs, dest, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Exported)
	require.Len(t, res.Failed, 1)
	assert.ErrorIs(t, res.Failed[objs[1].ID], errs.ErrIO)
	assert.Equal(t, 2, res.Manifest.PhotoCount)
}

func TestBackupNothingExported(t *testing.T) {
	ctx := context.Background()
	src := newVault(t)
	fill(t, src)
	objs := src.List()

	fails := make(map[string]bool)
	for _, o := range objs {
		fails[o.ID] = true
	}
	dest := filepath.Join(t.TempDir(), "vault.lucb")
	_, err := newCodec(&flakyVault{Store: src, failIDs: fails}, src.TempDir()).CreateBackup(ctx, []byte("pw"), objs, dest, nil)
	assert.ErrorIs(t, err, ErrNothingExported)

	_, statErr := os.Stat(dest)
	assert.True(t, os.IsNotExist(statErr))

	_, err = newCodec(src, src.TempDir()).CreateBackup(ctx, []byte("pw"), nil, dest, nil)
	assert.ErrorIs(t, err, ErrNothingExported)
}

func TestBackupCancelled(t *testing.T) {
	src := newVault(t)
	fill(t, src)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	cancelAfterFirst := func(p Progress) {
		if p.Phase == PhaseEncrypting && p.Current == 1 {
			cancel()
		}
	}

	destDir := t.TempDir()
	dest := filepath.Join(destDir, "vault.lucb")
	_, err := newCodec(src, src.TempDir()).CreateBackup(ctx, []byte("pw"), src.List(), dest, cancelAfterFirst)
	assert.ErrorIs(t, err, errs.ErrCancelled)

	entries, err := os.ReadDir(destDir)
	require.NoError(t, err)
	assert.Empty(t, entries, "cancelled backup leaves no output")

	scratch, err := os.ReadDir(src.TempDir())
	require.NoError(t, err)
	assert.Empty(t, scratch)
}

func TestRestoreCancelledKeepsImportedPhotos(t *testing.T) {
	src := newVault(t)
	fill(t, src)
	dest := filepath.Join(t.TempDir(), "vault.lucb")
	_, err := newCodec(src, src.TempDir()).CreateBackup(context.Background(), []byte("pw"), src.List(), dest, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	dst := newVault(t)
	res, err := newCodec(dst, dst.TempDir()).RestoreBackup(ctx, dest, []byte("pw"), func(p Progress) {
		if p.Phase == PhaseImporting && p.Current == 1 {
			cancel()
		}
	})
	assert.ErrorIs(t, err, errs.ErrCancelled)
	require.NotNil(t, res)
	assert.Equal(t, 1, res.Imported)
	assert.Len(t, dst.List(), 1, "only whole photos are imported")
}

func writeRawContainer(t *testing.T, entries [][2]string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "crafted.lucb")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	cw, err := NewWriter(f)
	require.NoError(t, err)
	for _, e := range entries {
		require.NoError(t, cw.WriteBytes(e[0], []byte(e[1])))
	}
	return path
}

func TestRestoreRejectsTraversal(t *testing.T) {
	dst := newVault(t)
	outside := filepath.Join(dst.TempDir(), "evil")

	path := writeRawContainer(t, [][2]string{{"../evil", "pwned"}, {ManifestEntry, "x"}})
	_, err := newCodec(dst, dst.TempDir()).RestoreBackup(context.Background(), path, []byte("pw"), nil)
	assert.ErrorIs(t, err, ErrInvalidContainer)
	assert.ErrorIs(t, err, errs.ErrInvalidInput)

	_, statErr := os.Stat(outside)
	assert.True(t, os.IsNotExist(statErr))
}

func TestRestoreRejectsDuplicatesAndMissingManifest(t *testing.T) {
	dst := newVault(t)
	codec := newCodec(dst, dst.TempDir())

	dup := writeRawContainer(t, [][2]string{{"photos/a.enc", "1"}, {"photos/a.enc", "2"}})
	_, err := codec.RestoreBackup(context.Background(), dup, []byte("pw"), nil)
	assert.ErrorIs(t, err, ErrInvalidContainer)

	noManifest := writeRawContainer(t, [][2]string{{"photos/a.enc", "1"}})
	_, err = codec.RestoreBackup(context.Background(), noManifest, []byte("pw"), nil)
	assert.ErrorIs(t, err, ErrInvalidContainer)

	_, err = codec.RestoreBackup(context.Background(), filepath.Join(t.TempDir(), "missing"), []byte("pw"), nil)
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestRestoreRejectsNewerContainer(t *testing.T) {
	path := filepath.Join(t.TempDir(), "future.lucb")
	require.NoError(t, os.WriteFile(path, header(ContainerVersion+1), 0o600))

	dst := newVault(t)
	_, err := newCodec(dst, dst.TempDir()).ReadMetadataOnly(context.Background(), path, []byte("pw"))
	assert.ErrorIs(t, err, ErrUnsupportedVersion)
}

func TestPasswordRequired(t *testing.T) {
	dst := newVault(t)
	codec := newCodec(dst, dst.TempDir())
	ctx := context.Background()

	_, err := codec.CreateBackup(ctx, nil, nil, filepath.Join(t.TempDir(), "x"), nil)
	assert.ErrorIs(t, err, errs.ErrInvalidInput)
	_, err = codec.RestoreBackup(ctx, "x", nil, nil)
	assert.ErrorIs(t, err, errs.ErrInvalidInput)
	_, err = codec.ReadMetadataOnly(ctx, "x", nil)
	assert.True(t, errors.Is(err, errs.ErrInvalidInput))
}
