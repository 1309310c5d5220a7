// Package fsutil holds small filesystem helpers shared by the vault packages.
package fsutil

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

const (
	DirPerm  = 0o700 // Directory: owner rwx only
	FilePerm = 0o600 // File: owner rw only
)

// EnsureDir creates dir with DirPerm if missing. An existing directory whose
// permission bits differ from DirPerm is repaired with chmod.
// Returns true when the permissions had to be repaired.
func EnsureDir(dir string) (bool, error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		if err := os.MkdirAll(dir, DirPerm); err != nil {
			return false, fmt.Errorf("mkdir %s: %w", dir, err)
		}
		// MkdirAll is subject to umask
		return false, os.Chmod(dir, DirPerm)
	}
	if err != nil {
		return false, fmt.Errorf("stat %s: %w", dir, err)
	}
	if !info.IsDir() {
		return false, fmt.Errorf("%s exists and is not a directory", dir)
	}
	if info.Mode().Perm() == DirPerm {
		return false, nil
	}
	if err := os.Chmod(dir, DirPerm); err != nil {
		return false, fmt.Errorf("chmod %s: %w", dir, err)
	}
	return true, nil
}

// WriteFileAtomic writes data to path with FilePerm.
// Pattern: temp file -> write -> fsync -> rename. The temp file is removed on error.
func WriteFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if err := tmp.Chmod(FilePerm); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("chmod temp file: %w", err)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write: %w", err)
	}

	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("fsync: %w", err)
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}

// CopyFile copies src to dst with FilePerm, fsyncing dst.
func CopyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, FilePerm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Sync(); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
