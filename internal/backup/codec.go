package backup

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/illarion/photovault/internal/crypto"
	"github.com/illarion/photovault/internal/errs"
	"github.com/illarion/photovault/internal/fsutil"
	"github.com/illarion/photovault/internal/keys"
	"github.com/illarion/photovault/internal/metrics"
	"github.com/illarion/photovault/internal/security"
	"github.com/illarion/photovault/internal/storage"
)

var (
	// ErrWrongPassword is returned when the manifest cannot be decrypted.
	// A corrupted container produces the same error.
	ErrWrongPassword = errors.New("wrong password or damaged backup")
	// ErrNothingExported is returned when no photo could be exported.
	ErrNothingExported = errors.New("no photos could be exported")
)

// Vault is the subset of the object store used by the codec.
type Vault interface {
	Retrieve(ctx context.Context, id string) ([]byte, error)
	Thumbnail(ctx context.Context, id string) ([]byte, error)
	Save(ctx context.Context, plaintext []byte, meta storage.PhotoMetadata) (*storage.Object, error)
}

// BackupResult summarizes CreateBackup.
type BackupResult struct {
	Path     string
	Exported int
	Failed   map[string]error // object ID -> reason
	Manifest *Manifest
}

// RestoreResult summarizes RestoreBackup.
type RestoreResult struct {
	Imported    int
	ImportedIDs []string
	Failed      map[string]error // manifest photo ID -> reason
	Manifest    *Manifest
}

// Codec builds and reads backup containers.
type Codec struct {
	vault      Vault
	scratchDir string
	iterations int
	device     string
	log        zerolog.Logger
	now        func() time.Time
}

// Option configures a Codec.
type Option func(*Codec)

// WithIterations sets the PBKDF2 iteration count of the backup key.
// Containers only open with the count they were written with.
func WithIterations(n int) Option {
	return func(c *Codec) {
		if n > 0 {
			c.iterations = n
		}
	}
}

// WithDeviceName sets the label stored in new manifests.
func WithDeviceName(name string) Option {
	return func(c *Codec) { c.device = name }
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Codec) { c.log = l }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Codec) { c.now = now }
}

// New creates a Codec. Private working directories are created under
// scratchDir and removed after each operation.
func New(v Vault, scratchDir string, opts ...Option) *Codec {
	c := &Codec{
		vault:      v,
		scratchDir: scratchDir,
		iterations: crypto.DefaultIters,
		log:        zerolog.Nop(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.device == "" {
		c.device, _ = os.Hostname()
	}
	return c
}

// backupKey derives the container key. The salt is fixed, so the same
// password always yields the same key.
func (c *Codec) backupKey(password []byte) (*keys.AEAD, error) {
	key := crypto.NewBackupKDF(c.iterations).DeriveKey(password)
	defer crypto.ClearBytes(key)
	return keys.NewAEAD(key, crypto.AES256GCM)
}

func (c *Codec) scratch(prefix string) (string, error) {
	if _, err := fsutil.EnsureDir(c.scratchDir); err != nil {
		return "", err
	}
	return os.MkdirTemp(c.scratchDir, prefix)
}

func (c *Codec) removeScratch(dir string) {
	if err := os.RemoveAll(dir); err != nil {
		c.log.Warn().Err(err).Msg("failed to remove scratch directory")
	}
}

// CreateBackup exports objects into a container at destPath. Photos that
// cannot be exported are recorded in the result; the call fails only when
// none could be exported. A cancelled backup leaves no file at destPath.
func (c *Codec) CreateBackup(ctx context.Context, password []byte, objects []storage.Object, destPath string, progress ProgressFunc) (*BackupResult, error) {
	const op = "backup.CreateBackup"

	if len(password) == 0 {
		return nil, errs.Errorf(errs.ErrInvalidInput, op, "password required")
	}
	total := int64(len(objects))
	progress.report(PhasePreparing, 0, total, "")

	enc, err := c.backupKey(password)
	if err != nil {
		return nil, errs.E(errs.ErrIO, op, err)
	}
	defer enc.Destroy()

	dir, err := c.scratch("backup-*")
	if err != nil {
		return nil, errs.E(errs.ErrIO, op, err)
	}
	defer c.removeScratch(dir)

	result := &BackupResult{Path: destPath, Failed: make(map[string]error)}
	manifest := &Manifest{
		Version:    ManifestVersion,
		CreatedAt:  c.now().UTC(),
		DeviceName: c.device,
	}

	progress.report(PhaseEncrypting, 0, total, "")
	for i, obj := range objects {
		if err := ctx.Err(); err != nil {
			return nil, errs.E(errs.ErrCancelled, op, err)
		}

		photo, err := c.exportPhoto(ctx, enc, dir, obj)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, errs.ErrCancelled) {
				return nil, errs.E(errs.ErrCancelled, op, err)
			}
			result.Failed[obj.ID] = err
			metrics.BackupPhotos.WithLabelValues(metrics.ResultFailed).Inc()
			c.log.Warn().Err(err).Str("id", obj.ID).Msg("skipping photo in backup")
		} else {
			manifest.Photos = append(manifest.Photos, *photo)
			manifest.TotalSize += photo.Metadata.FileSize
			metrics.BackupPhotos.WithLabelValues(metrics.ResultOK).Inc()
		}
		progress.report(PhaseEncrypting, int64(i+1), total, displayName(obj))
	}

	manifest.PhotoCount = len(manifest.Photos)
	if manifest.PhotoCount == 0 {
		return nil, errs.E(errs.ErrIO, op, ErrNothingExported)
	}

	if err := c.writeContainer(ctx, enc, dir, manifest, destPath, progress); err != nil {
		return nil, errs.E(errs.ErrIO, op, err)
	}

	result.Exported = manifest.PhotoCount
	result.Manifest = manifest
	progress.report(PhaseComplete, total, total, "")

	c.log.Info().Int("exported", result.Exported).Int("failed", len(result.Failed)).Msg("backup created")
	return result, nil
}

// exportPhoto re-encrypts one object (and its thumbnail, when present)
// under the backup key into dir.
func (c *Codec) exportPhoto(ctx context.Context, enc *keys.AEAD, dir string, obj storage.Object) (*ManifestPhoto, error) {
	plaintext, err := c.vault.Retrieve(ctx, obj.ID)
	if err != nil {
		return nil, err
	}
	ciphertext, err := enc.Encrypt(plaintext)
	crypto.ClearBytes(plaintext)
	if err != nil {
		return nil, err
	}

	photo := &ManifestPhoto{
		ID:       obj.ID,
		Entry:    photoEntry(obj.ID),
		Metadata: obj.Metadata.Clone(),
		AddedAt:  obj.CreatedAt,
	}
	if err := writeScratch(dir, photo.Entry, ciphertext); err != nil {
		return nil, err
	}

	if obj.HasThumbnail {
		if err := c.exportThumbnail(ctx, enc, dir, obj.ID); err != nil {
			c.log.Debug().Err(err).Str("id", obj.ID).Msg("thumbnail omitted from backup")
		} else {
			photo.ThumbnailEntry = thumbnailEntry(obj.ID)
		}
	}
	return photo, nil
}

func (c *Codec) exportThumbnail(ctx context.Context, enc *keys.AEAD, dir, id string) error {
	thumb, err := c.vault.Thumbnail(ctx, id)
	if err != nil {
		return err
	}
	ciphertext, err := enc.Encrypt(thumb)
	if err != nil {
		return err
	}
	return writeScratch(dir, thumbnailEntry(id), ciphertext)
}

func writeScratch(dir, entry string, data []byte) error {
	path := filepath.Join(dir, filepath.FromSlash(entry))
	if _, err := fsutil.EnsureDir(filepath.Dir(path)); err != nil {
		return err
	}
	return fsutil.WriteFileAtomic(path, data)
}

// writeContainer assembles the container next to destPath and renames it
// into place once complete.
func (c *Codec) writeContainer(ctx context.Context, enc *keys.AEAD, dir string, manifest *Manifest, destPath string, progress ProgressFunc) error {
	manifestJSON, err := json.Marshal(manifest)
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	manifestCT, err := enc.Encrypt(manifestJSON)
	if err != nil {
		return fmt.Errorf("encrypt manifest: %w", err)
	}

	var entries []string
	for _, p := range manifest.Photos {
		entries = append(entries, p.Entry)
		if p.ThumbnailEntry != "" {
			entries = append(entries, p.ThumbnailEntry)
		}
	}
	total := int64(len(entries) + 1)

	tmp, err := os.CreateTemp(filepath.Dir(destPath), "."+filepath.Base(destPath)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	fail := func(err error) error {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Chmod(fsutil.FilePerm); err != nil {
		return fail(err)
	}

	bw := bufio.NewWriterSize(tmp, copyBufferSize)
	cw, err := NewWriter(bw)
	if err != nil {
		return fail(err)
	}

	progress.report(PhaseWriting, 0, total, "")
	if err := cw.WriteBytes(ManifestEntry, manifestCT); err != nil {
		return fail(err)
	}
	progress.report(PhaseWriting, 1, total, ManifestEntry)

	for i, entry := range entries {
		if err := ctx.Err(); err != nil {
			return fail(err)
		}
		if err := copyEntry(cw, dir, entry); err != nil {
			return fail(err)
		}
		progress.report(PhaseWriting, int64(i+2), total, entry)
	}

	if err := bw.Flush(); err != nil {
		return fail(err)
	}
	if err := tmp.Sync(); err != nil {
		return fail(err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}

func copyEntry(cw *Writer, dir, entry string) error {
	f, err := os.Open(filepath.Join(dir, filepath.FromSlash(entry)))
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	return cw.WriteEntry(entry, info.Size(), f)
}

// RestoreBackup imports every photo of the container into the vault,
// re-encrypted under the vault key. Photos that fail are recorded in the
// result. A wrong password fails before anything is imported.
func (c *Codec) RestoreBackup(ctx context.Context, containerPath string, password []byte, progress ProgressFunc) (*RestoreResult, error) {
	const op = "backup.RestoreBackup"

	if len(password) == 0 {
		return nil, errs.Errorf(errs.ErrInvalidInput, op, "password required")
	}

	dir, err := c.scratch("restore-*")
	if err != nil {
		return nil, errs.E(errs.ErrIO, op, err)
	}
	defer c.removeScratch(dir)

	pv, err := security.New(dir)
	if err != nil {
		return nil, errs.E(errs.ErrIO, op, err)
	}
	defer pv.Close()

	if err := c.extract(ctx, containerPath, pv, nil, progress); err != nil {
		return nil, classify(op, err)
	}

	dec, err := c.backupKey(password)
	if err != nil {
		return nil, errs.E(errs.ErrIO, op, err)
	}
	defer dec.Destroy()

	manifest, err := readManifest(pv, dec)
	if err != nil {
		return nil, classify(op, err)
	}

	result := &RestoreResult{Failed: make(map[string]error), Manifest: manifest}
	total := int64(len(manifest.Photos))
	progress.report(PhaseImporting, 0, total, "")
	for i, photo := range manifest.Photos {
		if err := ctx.Err(); err != nil {
			return result, errs.E(errs.ErrCancelled, op, err)
		}

		obj, err := c.importPhoto(ctx, pv, dec, photo)
		if err != nil {
			if errors.Is(err, errs.ErrCancelled) {
				return result, errs.E(errs.ErrCancelled, op, err)
			}
			result.Failed[photo.ID] = err
			metrics.RestorePhotos.WithLabelValues(metrics.ResultFailed).Inc()
			c.log.Warn().Err(err).Str("id", photo.ID).Msg("skipping photo in restore")
		} else {
			result.Imported++
			result.ImportedIDs = append(result.ImportedIDs, obj.ID)
			metrics.RestorePhotos.WithLabelValues(metrics.ResultOK).Inc()
		}
		progress.report(PhaseImporting, int64(i+1), total, photo.Metadata.OriginalFilename)
	}
	progress.report(PhaseComplete, total, total, "")

	c.log.Info().Int("imported", result.Imported).Int("failed", len(result.Failed)).Msg("backup restored")
	return result, nil
}

func (c *Codec) importPhoto(ctx context.Context, pv *security.PathValidator, dec *keys.AEAD, photo ManifestPhoto) (*storage.Object, error) {
	ciphertext, err := pv.ReadFileInRoot(photo.Entry)
	if err != nil {
		return nil, err
	}
	plaintext, err := dec.Decrypt(ciphertext)
	if err != nil {
		return nil, err
	}
	defer crypto.ClearBytes(plaintext)
	return c.vault.Save(ctx, plaintext, photo.Metadata)
}

// ReadMetadataOnly decrypts and returns the manifest without importing.
func (c *Codec) ReadMetadataOnly(ctx context.Context, containerPath string, password []byte) (*Manifest, error) {
	const op = "backup.ReadMetadataOnly"

	if len(password) == 0 {
		return nil, errs.Errorf(errs.ErrInvalidInput, op, "password required")
	}

	dir, err := c.scratch("inspect-*")
	if err != nil {
		return nil, errs.E(errs.ErrIO, op, err)
	}
	defer c.removeScratch(dir)

	pv, err := security.New(dir)
	if err != nil {
		return nil, errs.E(errs.ErrIO, op, err)
	}
	defer pv.Close()

	onlyManifest := func(name string) bool { return name == ManifestEntry }
	if err := c.extract(ctx, containerPath, pv, onlyManifest, nil); err != nil {
		return nil, classify(op, err)
	}

	dec, err := c.backupKey(password)
	if err != nil {
		return nil, errs.E(errs.ErrIO, op, err)
	}
	defer dec.Destroy()

	manifest, err := readManifest(pv, dec)
	if err != nil {
		return nil, classify(op, err)
	}
	return manifest, nil
}

// extract copies container entries accepted by want (all when nil) into
// the confined scratch root. Progress counts container bytes.
func (c *Codec) extract(ctx context.Context, containerPath string, pv *security.PathValidator, want func(string) bool, progress ProgressFunc) error {
	f, err := os.Open(containerPath)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	total := info.Size()
	counter := &countingReader{r: bufio.NewReaderSize(f, copyBufferSize)}

	progress.report(PhaseReading, 0, total, "")
	cr, err := NewReader(counter)
	if err != nil {
		return err
	}

	buf := make([]byte, copyBufferSize)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		hdr, err := cr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		if hdr.Size > total {
			return fmt.Errorf("%w: entry %q larger than container", ErrInvalidContainer, hdr.Name)
		}
		if want != nil && !want(hdr.Name) {
			continue
		}

		out, err := pv.CreateInRoot(hdr.Name)
		if err != nil {
			return fmt.Errorf("%w: entry %q: %w", ErrInvalidContainer, hdr.Name, err)
		}
		_, err = io.CopyBuffer(out, cr, buf)
		if cerr := out.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return err
		}
		progress.report(PhaseReading, counter.n, total, hdr.Name)
	}
	progress.report(PhaseReading, total, total, "")
	return nil
}

func readManifest(pv *security.PathValidator, dec *keys.AEAD) (*Manifest, error) {
	ciphertext, err := pv.ReadFileInRoot(ManifestEntry)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: no manifest", ErrInvalidContainer)
	}
	if err != nil {
		return nil, err
	}

	plaintext, err := dec.Decrypt(ciphertext)
	if err != nil {
		return nil, ErrWrongPassword
	}
	var m Manifest
	if err := json.Unmarshal(plaintext, &m); err != nil {
		return nil, ErrWrongPassword
	}
	if m.Version > ManifestVersion {
		return nil, fmt.Errorf("%w: manifest version %d", ErrUnsupportedVersion, m.Version)
	}
	return &m, nil
}

// classify maps codec failures onto the error taxonomy.
func classify(op string, err error) error {
	switch {
	case errors.Is(err, ErrWrongPassword):
		return errs.E(errs.ErrAuthFailed, op, err)
	case errors.Is(err, ErrInvalidContainer), errors.Is(err, ErrUnsupportedVersion):
		return errs.E(errs.ErrInvalidInput, op, err)
	case errors.Is(err, os.ErrNotExist):
		return errs.E(errs.ErrNotFound, op, err)
	default:
		return errs.E(errs.ErrIO, op, err)
	}
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

func displayName(obj storage.Object) string {
	if obj.Metadata.OriginalFilename != "" {
		return obj.Metadata.OriginalFilename
	}
	return obj.ID
}
