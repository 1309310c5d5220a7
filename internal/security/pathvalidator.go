package security

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
)

var (
	ErrPathEscapes  = errors.New("path escapes root")
	ErrAbsolutePath = errors.New("absolute paths are not allowed")
	ErrEmptyPath    = errors.New("empty path not allowed")
	ErrPathTooLong  = errors.New("path too long")
)

// MaxEntryNameLen bounds entry names accepted from untrusted input.
const MaxEntryNameLen = 1024

// PathValidator provides path validation and file operations confined to
// a root directory using the os.Root API. It guards extraction of
// untrusted archive entries into a scratch directory.
type PathValidator struct {
	root     *os.Root
	rootPath string
}

// New creates a PathValidator confined to dir.
func New(dir string) (*PathValidator, error) {
	absPath, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}

	root, err := os.OpenRoot(absPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open root: %w", err)
	}

	return &PathValidator{
		root:     root,
		rootPath: absPath,
	}, nil
}

// Close releases resources held by the PathValidator.
func (pv *PathValidator) Close() error {
	if pv.root != nil {
		return pv.root.Close()
	}
	return nil
}

// ValidateEntryName validates a slash-separated name taken from untrusted
// input and returns its cleaned form. It rejects:
// - empty and overlong names
// - absolute names
// - backslashes, which would be separators on some platforms
// - names that escape the root (using ..) or are not local
func (pv *PathValidator) ValidateEntryName(name string) (string, error) {
	if name == "" {
		return "", ErrEmptyPath
	}
	if len(name) > MaxEntryNameLen {
		return "", fmt.Errorf("%w: %d bytes", ErrPathTooLong, len(name))
	}
	if strings.HasPrefix(name, "/") {
		return "", fmt.Errorf("%w: %s", ErrAbsolutePath, name)
	}
	if strings.ContainsRune(name, '\\') || strings.ContainsRune(name, 0) {
		return "", fmt.Errorf("%w: %s", ErrPathEscapes, name)
	}

	clean := path.Clean(name)
	if clean == "." {
		return "", ErrEmptyPath
	}
	platform := filepath.FromSlash(clean)
	if !filepath.IsLocal(platform) {
		if filepath.IsAbs(platform) {
			return "", fmt.Errorf("%w: %s", ErrAbsolutePath, name)
		}
		return "", fmt.Errorf("%w: %s", ErrPathEscapes, name)
	}

	return clean, nil
}

// CreateInRoot creates name (and its parent directories) for writing with
// owner-only permissions. An existing file is an error.
func (pv *PathValidator) CreateInRoot(name string) (*os.File, error) {
	clean, err := pv.ValidateEntryName(name)
	if err != nil {
		return nil, fmt.Errorf("invalid path: %w", err)
	}
	platform := filepath.FromSlash(clean)

	if dir := filepath.Dir(platform); dir != "." {
		if err := pv.root.MkdirAll(dir, 0700); err != nil {
			return nil, err
		}
	}
	return pv.root.OpenFile(platform, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
}

// ReadFileInRoot reads name.
func (pv *PathValidator) ReadFileInRoot(name string) ([]byte, error) {
	clean, err := pv.ValidateEntryName(name)
	if err != nil {
		return nil, fmt.Errorf("invalid path: %w", err)
	}
	return pv.root.ReadFile(filepath.FromSlash(clean))
}
