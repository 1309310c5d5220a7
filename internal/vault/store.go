package vault

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/illarion/photovault/internal/eraser"
	"github.com/illarion/photovault/internal/errs"
	"github.com/illarion/photovault/internal/fsutil"
	"github.com/illarion/photovault/internal/keys"
	"github.com/illarion/photovault/internal/metrics"
	"github.com/illarion/photovault/internal/storage"
	"github.com/illarion/photovault/internal/thumbnail"
)

var (
	ErrSaveFailed        = errors.New("save failed")
	ErrRetrievalFailed   = errors.New("retrieval failed")
	ErrMetadataCorrupted = errors.New("metadata corrupted")
	ErrNotInitialized    = errors.New("store not initialized")
)

// Stats aggregates the index.
type Stats struct {
	Count     int
	TotalSize int64
	Recovered int
	Modified  time.Time // last index write; zero when unknown
}

// Store is the encrypted object store. All public methods are mutually
// exclusive.
type Store struct {
	mu sync.Mutex

	root   string
	keys   keys.Provider
	eraser *eraser.Eraser
	cache  *thumbnail.Cache
	log    zerolog.Logger
	now    func() time.Time

	db      *storage.Storage
	index   map[string]storage.Object
	vaultID string
}

// Option configures a Store.
type Option func(*Store)

// WithEraser sets the secure eraser.
func WithEraser(e *eraser.Eraser) Option {
	return func(s *Store) { s.eraser = e }
}

// WithCache sets the thumbnail cache.
func WithCache(c *thumbnail.Cache) Option {
	return func(s *Store) { s.cache = c }
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Store) { s.log = l }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New creates a Store rooted at root. Initialize must be called before use.
func New(root string, provider keys.Provider, opts ...Option) *Store {
	s := &Store{
		root: root,
		keys: provider,
		log:  zerolog.Nop(),
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.eraser == nil {
		s.eraser = eraser.New(eraser.WithLogger(s.log))
	}
	if s.cache == nil {
		s.cache = thumbnail.NewCache(thumbnail.WithLogger(s.log))
	}
	return s
}

// Initialize prepares the on-disk layout and loads the index. It is
// idempotent.
func (s *Store) Initialize(ctx context.Context) error {
	const op = "vault.Initialize"

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return errs.E(errs.ErrCancelled, op, err)
	}

	for _, dir := range []string{"", objectsDir, thumbnailsDir, indexDir, tmpDir} {
		path := filepath.Join(s.root, dir)
		repaired, err := fsutil.EnsureDir(path)
		if err != nil {
			return errs.E(errs.ErrIO, op, err)
		}
		if repaired {
			s.log.Warn().Str("dir", path).Msg("repaired directory permissions")
		}
	}
	s.clearScratch()

	scan, err := scanCiphertexts(filepath.Join(s.root, objectsDir))
	if err != nil {
		return errs.E(errs.ErrIO, op, err)
	}
	for _, tmp := range scan.temps {
		s.log.Debug().Str("file", filepath.Base(tmp)).Msg("removing interrupted write")
		os.Remove(tmp)
	}

	db, objs, recovering, err := s.loadIndex()
	if err != nil {
		return err
	}

	if recovering && scan.total > 0 && len(scan.files) == 0 {
		db.Close()
		return errs.E(errs.ErrIO, op, fmt.Errorf("%w: %d ciphertext files, none recoverable", ErrMetadataCorrupted, scan.total))
	}

	var adopted []storage.Object
	for id, info := range scan.files {
		if _, ok := objs[id]; ok {
			continue
		}
		_, statErr := os.Stat(s.thumbnailPath(id))
		obj := recoveredObject(id, info, statErr == nil)
		objs[id] = obj
		adopted = append(adopted, obj)
	}
	if len(adopted) > 0 {
		if err := db.PutObjects(adopted); err != nil {
			db.Close()
			return errs.E(errs.ErrIO, op, err)
		}
		metrics.ObjectsRecovered.Add(float64(len(adopted)))
		s.log.Warn().Int("count", len(adopted)).Bool("index_rebuilt", recovering).
			Msg("recovered objects from ciphertext filenames")
	}

	vaultID, err := s.resolveVaultID(db)
	if err != nil {
		db.Close()
		return errs.E(errs.ErrIO, op, err)
	}

	s.db = db
	s.index = objs
	s.vaultID = vaultID
	s.reconcileThumbnails()

	s.log.Debug().Int("objects", len(objs)).Msg("vault initialized")
	return nil
}

// loadIndex opens the index. recovering reports that the index was absent
// or unreadable and entries must come from the filename scan.
func (s *Store) loadIndex() (*storage.Storage, map[string]storage.Object, bool, error) {
	const op = "vault.Initialize"

	path := s.IndexPath()
	_, statErr := os.Stat(path)
	existed := statErr == nil

	db, objs, err := openIndex(path)
	if err == nil {
		return db, objs, !existed, nil
	}
	if !errors.Is(err, storage.ErrCorrupt) {
		return nil, nil, false, errs.E(errs.ErrIO, op, err)
	}

	aside, qerr := quarantineIndex(path, s.now())
	if qerr != nil {
		return nil, nil, false, errs.E(errs.ErrIO, op, fmt.Errorf("%w: %w", ErrMetadataCorrupted, qerr))
	}
	s.log.Error().Err(err).Str("copy", filepath.Base(aside)).Msg("index unreadable, rebuilding from ciphertext files")

	db, objs, err = openIndex(path)
	if err != nil {
		return nil, nil, false, errs.E(errs.ErrIO, op, fmt.Errorf("%w: %w", ErrMetadataCorrupted, err))
	}
	return db, objs, true, nil
}

func openIndex(path string) (*storage.Storage, map[string]storage.Object, error) {
	db, err := storage.Open(path)
	if err != nil {
		return nil, nil, err
	}
	if err := db.Initialize(); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("%w: %w", storage.ErrCorrupt, err)
	}
	objs, err := db.Objects()
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	return db, objs, nil
}

// resolveVaultID keeps vault.id and the index config in agreement. The file
// wins since it survives index loss.
func (s *Store) resolveVaultID(db *storage.Storage) (string, error) {
	path := filepath.Join(s.root, vaultIDFile)
	id, err := readVaultID(path)
	if err != nil {
		return "", err
	}
	if id == "" {
		id, err = db.GetOrCreateVaultID()
		if err != nil {
			return "", err
		}
		return id, fsutil.WriteFileAtomic(path, []byte(id+"\n"))
	}
	if current, err := db.GetVaultID(); err != nil || current != id {
		if err := db.SetVaultID(id); err != nil {
			return "", err
		}
	}
	return id, nil
}

// clearScratch removes leftovers of interrupted backups and restores.
func (s *Store) clearScratch() {
	dir := s.TempDir()
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(dir, e.Name())); err != nil {
			s.log.Warn().Err(err).Str("entry", e.Name()).Msg("failed to clear scratch entry")
		}
	}
}

// reconcileThumbnails erases thumbnail files with no index entry, left by a
// delete interrupted between erasing the object and its thumbnail.
func (s *Store) reconcileThumbnails() {
	scan, err := scanCiphertexts(filepath.Join(s.root, thumbnailsDir))
	if err != nil {
		s.log.Warn().Err(err).Msg("thumbnail scan failed")
		return
	}
	for _, tmp := range scan.temps {
		os.Remove(tmp)
	}
	for id := range scan.files {
		if _, ok := s.index[id]; ok {
			continue
		}
		if err := s.eraser.Erase(s.thumbnailPath(id)); err != nil {
			s.log.Warn().Err(err).Str("id", id).Msg("failed to erase orphaned thumbnail")
			continue
		}
		s.log.Info().Str("id", id).Msg("erased orphaned thumbnail")
	}
}

func (s *Store) ready(op string) error {
	if s.db == nil {
		return errs.E(errs.ErrInvalidInput, op, ErrNotInitialized)
	}
	return nil
}

// VaultID returns the stable identifier of this vault.
func (s *Store) VaultID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.vaultID
}

// Root returns the vault root directory.
func (s *Store) Root() string {
	return s.root
}

// Save encrypts plaintext and stores it under a fresh identifier.
// Thumbnail failure is recorded on the returned object and does not fail
// the save.
func (s *Store) Save(ctx context.Context, plaintext []byte, meta storage.PhotoMetadata) (*storage.Object, error) {
	const op = "vault.Save"

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ready(op); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, errs.E(errs.ErrCancelled, op, err)
	}
	if len(plaintext) == 0 {
		return nil, errs.Errorf(errs.ErrInvalidInput, op, "empty payload")
	}

	id := s.newID()
	meta = meta.Clone()
	if meta.FileSize == 0 {
		meta.FileSize = int64(len(plaintext))
	}
	if meta.Width == 0 && meta.Height == 0 {
		if w, h, err := thumbnail.Dimensions(plaintext); err == nil {
			meta.Width, meta.Height = w, h
		}
	}

	saveFailed := func(created []string, reason error) error {
		for _, p := range created {
			if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
				s.log.Warn().Err(err).Str("id", id).Msg("failed to remove partial file")
			}
		}
		return errs.E(errs.ErrIO, op, fmt.Errorf("%w: %w", ErrSaveFailed, reason))
	}

	ciphertext, err := s.keys.Encrypt(plaintext)
	if err != nil {
		return nil, saveFailed(nil, fmt.Errorf("encrypt: %w", err))
	}
	objPath := s.objectPath(id)
	if err := fsutil.WriteFileAtomic(objPath, ciphertext); err != nil {
		return nil, saveFailed([]string{objPath}, fmt.Errorf("write ciphertext: %w", err))
	}
	created := []string{objPath}

	obj := storage.Object{
		ID:        id,
		Metadata:  meta,
		CreatedAt: s.now().UTC(),
	}
	if err := s.storeThumbnail(id, plaintext); err != nil {
		obj.ThumbnailGenerationFailed = true
		metrics.ThumbnailFailures.Inc()
		s.log.Warn().Err(err).Str("id", id).Msg("thumbnail generation failed")
	} else {
		obj.HasThumbnail = true
		created = append(created, s.thumbnailPath(id))
	}

	if err := s.db.PutObject(obj); err != nil {
		s.cache.RemoveEntry(id)
		return nil, saveFailed(created, fmt.Errorf("persist index: %w", err))
	}
	s.index[id] = obj
	metrics.ObjectsSaved.Inc()

	s.log.Debug().Str("id", id).Int64("size", meta.FileSize).Msg("object saved")
	out := obj.Clone()
	return &out, nil
}

func (s *Store) newID() string {
	for {
		id := uuid.NewString()
		if _, taken := s.index[id]; taken {
			continue
		}
		if _, err := os.Lstat(s.objectPath(id)); err == nil {
			continue
		}
		return id
	}
}

// storeThumbnail generates, caches, encrypts and writes the thumbnail.
func (s *Store) storeThumbnail(id string, plaintext []byte) error {
	data, err := s.cache.GetOrGenerate(id, plaintext, 0)
	if err != nil {
		return err
	}
	ciphertext, err := s.keys.Encrypt(data)
	if err != nil {
		s.cache.RemoveEntry(id)
		return fmt.Errorf("encrypt thumbnail: %w", err)
	}
	if err := fsutil.WriteFileAtomic(s.thumbnailPath(id), ciphertext); err != nil {
		s.cache.RemoveEntry(id)
		return fmt.Errorf("write thumbnail: %w", err)
	}
	return nil
}

// Retrieve decrypts and returns the photo payload.
func (s *Store) Retrieve(ctx context.Context, id string) ([]byte, error) {
	const op = "vault.Retrieve"

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ready(op); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, errs.E(errs.ErrCancelled, op, err)
	}
	return s.retrieve(op, id)
}

func (s *Store) retrieve(op, id string) ([]byte, error) {
	if _, ok := s.index[id]; !ok {
		return nil, errs.Errorf(errs.ErrNotFound, op, "object %s", id)
	}

	ciphertext, err := os.ReadFile(s.objectPath(id))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, errs.Errorf(errs.ErrNotFound, op, "object %s has no ciphertext", id)
	}
	if err != nil {
		return nil, errs.E(errs.ErrIO, op, fmt.Errorf("%w: %w", ErrRetrievalFailed, err))
	}

	plaintext, err := s.keys.Decrypt(ciphertext)
	if err != nil {
		return nil, errs.E(errs.ErrAuthFailed, op, fmt.Errorf("%w: %w", ErrRetrievalFailed, err))
	}
	return plaintext, nil
}

// Delete securely erases the object and its thumbnail, then removes it
// from the index. An erase failure aborts the delete with the entry kept.
func (s *Store) Delete(ctx context.Context, id string) error {
	const op = "vault.Delete"

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ready(op); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return errs.E(errs.ErrCancelled, op, err)
	}
	if _, ok := s.index[id]; !ok {
		return errs.Errorf(errs.ErrNotFound, op, "object %s", id)
	}

	var paths []string
	for _, p := range []string{s.objectPath(id), s.thumbnailPath(id)} {
		if _, err := os.Lstat(p); err == nil {
			paths = append(paths, p)
		}
	}
	for p, err := range s.eraser.EraseMany(paths) {
		if err != nil && !errors.Is(err, errs.ErrNotFound) {
			return errs.E(errs.ErrIO, op, fmt.Errorf("erase %s: %w", filepath.Base(p), err))
		}
	}

	s.cache.RemoveEntry(id)
	if err := s.db.DeleteObject(id); err != nil {
		return errs.E(errs.ErrIO, op, err)
	}
	delete(s.index, id)
	metrics.ObjectsDeleted.Inc()

	s.log.Debug().Str("id", id).Msg("object deleted")
	return nil
}

// UpdateMetadata replaces the metadata of id. The ciphertext is untouched.
func (s *Store) UpdateMetadata(ctx context.Context, id string, meta storage.PhotoMetadata) error {
	const op = "vault.UpdateMetadata"

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ready(op); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return errs.E(errs.ErrCancelled, op, err)
	}
	obj, ok := s.index[id]
	if !ok {
		return errs.Errorf(errs.ErrNotFound, op, "object %s", id)
	}

	obj.Metadata = meta.Clone()
	if err := s.db.PutObject(obj); err != nil {
		return errs.E(errs.ErrIO, op, err)
	}
	s.index[id] = obj
	return nil
}

// Get returns a copy of one index entry.
func (s *Store) Get(id string) (storage.Object, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	obj, ok := s.index[id]
	if !ok {
		return storage.Object{}, false
	}
	return obj.Clone(), true
}

// List returns a snapshot of all entries, oldest first.
func (s *Store) List() []storage.Object {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot(func(storage.Object) bool { return true })
}

// PhotosNeedingThumbnails returns entries without a usable thumbnail.
func (s *Store) PhotosNeedingThumbnails() []storage.Object {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot(storage.Object.NeedsThumbnail)
}

func (s *Store) snapshot(keep func(storage.Object) bool) []storage.Object {
	out := make([]storage.Object, 0, len(s.index))
	for _, obj := range s.index {
		if keep(obj) {
			out = append(out, obj.Clone())
		}
	}
	slices.SortFunc(out, func(a, b storage.Object) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}

// RegenerateThumbnail rebuilds the thumbnail of id from its original.
// On failure the object is flagged and the error returned; the rest of the
// object is untouched.
func (s *Store) RegenerateThumbnail(ctx context.Context, id string) error {
	const op = "vault.RegenerateThumbnail"

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ready(op); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return errs.E(errs.ErrCancelled, op, err)
	}
	obj, ok := s.index[id]
	if !ok {
		return errs.Errorf(errs.ErrNotFound, op, "object %s", id)
	}

	fail := func(err error) error {
		obj.ThumbnailGenerationFailed = true
		if perr := s.db.PutObject(obj); perr != nil {
			s.log.Error().Err(perr).Str("id", id).Msg("failed to persist thumbnail failure flag")
		} else {
			s.index[id] = obj
		}
		metrics.ThumbnailFailures.Inc()
		return err
	}

	plaintext, err := s.retrieve(op, id)
	if err != nil {
		return fail(err)
	}

	thumbPath := s.thumbnailPath(id)
	if _, err := os.Lstat(thumbPath); err == nil {
		if err := s.eraser.Erase(thumbPath); err != nil {
			return fail(errs.E(errs.ErrIO, op, err))
		}
		obj.HasThumbnail = false
	}
	s.cache.RemoveEntry(id)

	if err := s.storeThumbnail(id, plaintext); err != nil {
		kind := errs.ErrIO
		if errors.Is(err, thumbnail.ErrInvalidImageData) {
			kind = errs.ErrInvalidInput
		}
		return fail(errs.E(kind, op, err))
	}

	obj.HasThumbnail = true
	obj.ThumbnailGenerationFailed = false
	if err := s.db.PutObject(obj); err != nil {
		return errs.E(errs.ErrIO, op, err)
	}
	s.index[id] = obj
	return nil
}

// Thumbnail returns the thumbnail of id: from the cache, else the stored
// ciphertext, else generated from the original.
func (s *Store) Thumbnail(ctx context.Context, id string) ([]byte, error) {
	const op = "vault.Thumbnail"

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ready(op); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, errs.E(errs.ErrCancelled, op, err)
	}
	obj, ok := s.index[id]
	if !ok {
		return nil, errs.Errorf(errs.ErrNotFound, op, "object %s", id)
	}

	if data, ok := s.cache.Get(id); ok {
		return data, nil
	}

	if obj.HasThumbnail {
		data, err := s.loadThumbnail(id)
		if err == nil {
			s.cache.Put(id, data)
			return data, nil
		}
		s.log.Warn().Err(err).Str("id", id).Msg("stored thumbnail unreadable, regenerating in memory")
	}

	plaintext, err := s.retrieve(op, id)
	if err != nil {
		return nil, err
	}
	data, err := s.cache.GetOrGenerate(id, plaintext, 0)
	if err != nil {
		return nil, errs.E(errs.ErrInvalidInput, op, err)
	}
	return data, nil
}

func (s *Store) loadThumbnail(id string) ([]byte, error) {
	ciphertext, err := os.ReadFile(s.thumbnailPath(id))
	if err != nil {
		return nil, err
	}
	return s.keys.Decrypt(ciphertext)
}

// StorageStats aggregates the index.
func (s *Store) StorageStats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	var st Stats
	for _, obj := range s.index {
		st.Count++
		st.TotalSize += obj.Metadata.FileSize
		if obj.Recovered {
			st.Recovered++
		}
	}
	if s.db != nil {
		st.Modified, _ = s.db.GetModified()
	}
	return st
}

// CacheStats reports thumbnail cache usage.
func (s *Store) CacheStats() thumbnail.Stats {
	return s.cache.Stats()
}

// Compact rewrites the index file to reclaim space.
func (s *Store) Compact() error {
	const op = "vault.Compact"

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ready(op); err != nil {
		return err
	}
	if err := s.db.Compact(); err != nil {
		return errs.E(errs.ErrIO, op, err)
	}
	return nil
}

// Close releases the index and drops cached thumbnails.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cache.Clear()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	s.index = nil
	return err
}
