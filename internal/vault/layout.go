package vault

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/illarion/photovault/internal/fsutil"
	"github.com/illarion/photovault/internal/storage"
)

const (
	objectsDir    = "objects"
	thumbnailsDir = "thumbnails"
	indexDir      = "index"
	tmpDir        = "tmp"

	indexFile   = "index.db"
	vaultIDFile = "vault.id"
	encExt      = ".enc"
)

func (s *Store) objectPath(id string) string {
	return filepath.Join(s.root, objectsDir, id+encExt)
}

func (s *Store) thumbnailPath(id string) string {
	return filepath.Join(s.root, thumbnailsDir, id+encExt)
}

// IndexPath returns the index database file.
func (s *Store) IndexPath() string {
	return filepath.Join(s.root, indexDir, indexFile)
}

// TempDir returns the private scratch directory.
func (s *Store) TempDir() string {
	return filepath.Join(s.root, tmpDir)
}

// isTempName matches leftovers of fsutil.WriteFileAtomic.
func isTempName(name string) bool {
	return strings.HasPrefix(name, ".") && strings.Contains(name, ".tmp-")
}

// ciphertextScan is the result of listing an object directory.
type ciphertextScan struct {
	files map[string]fs.FileInfo // valid id -> file info
	total int                    // every *.enc file, valid or not
	temps []string               // interrupted atomic writes
}

func scanCiphertexts(dir string) (*ciphertextScan, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	scan := &ciphertextScan{files: make(map[string]fs.FileInfo)}
	for _, e := range entries {
		name := e.Name()
		if !e.Type().IsRegular() {
			continue
		}
		if isTempName(name) {
			scan.temps = append(scan.temps, filepath.Join(dir, name))
			continue
		}
		if !strings.HasSuffix(name, encExt) {
			continue
		}
		scan.total++

		id := strings.TrimSuffix(name, encExt)
		parsed, err := uuid.Parse(id)
		if err != nil || parsed.String() != id {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		scan.files[id] = info
	}
	return scan, nil
}

// recoveredObject builds an index entry from filesystem facts only.
func recoveredObject(id string, info fs.FileInfo, hasThumbnail bool) storage.Object {
	return storage.Object{
		ID:           id,
		Metadata:     storage.PhotoMetadata{FileSize: info.Size()},
		HasThumbnail: hasThumbnail,
		Recovered:    true,
		CreatedAt:    info.ModTime().UTC(),
	}
}

// quarantineIndex copies an unreadable index aside and removes it.
func quarantineIndex(path string, now time.Time) (string, error) {
	aside := fmt.Sprintf("%s.corrupt-%d", path, now.Unix())
	if err := fsutil.CopyFile(path, aside); err != nil {
		return "", fmt.Errorf("copy aside: %w", err)
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("remove: %w", err)
	}
	return aside, nil
}

// readVaultID returns the persisted vault identifier, or "" when absent.
func readVaultID(path string) (string, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
