package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"
)

// Bucket names
var (
	ConfigBucket  = []byte("config")  // format version, timestamps, vault ID
	ObjectsBucket = []byte("objects") // object ID -> JSON Object
)

// Config keys
var (
	ConfigVersion  = []byte("version")
	ConfigCreated  = []byte("created")
	ConfigModified = []byte("modified")
	ConfigVaultID  = []byte("vault_id")
)

// FormatVersion is the index format written by this package.
const FormatVersion = "1"

const openTimeout = 2 * time.Second

// ErrCorrupt is returned when the index file or one of its records cannot be parsed.
var ErrCorrupt = errors.New("index corrupt")

// Storage provides the BBolt-backed object index
type Storage struct {
	db *bolt.DB
}

// recoverCorrupt turns a bbolt panic on damaged pages into ErrCorrupt.
func recoverCorrupt(err *error) {
	if r := recover(); r != nil {
		*err = fmt.Errorf("%w: %v", ErrCorrupt, r)
	}
}

// Open opens or creates an index database. A file that bbolt rejects, or
// whose pages make bbolt panic while loading, is reported as ErrCorrupt.
func Open(path string) (_ *Storage, err error) {
	defer recoverCorrupt(&err)

	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: openTimeout})
	if err != nil {
		if errors.Is(err, bolt.ErrTimeout) {
			return nil, fmt.Errorf("index is locked by another process: %w", err)
		}
		if errors.Is(err, os.ErrPermission) {
			return nil, fmt.Errorf("failed to open index: %w", err)
		}
		return nil, fmt.Errorf("failed to open index: %w: %w", ErrCorrupt, err)
	}

	return &Storage{db: db}, nil
}

// Close closes the database
func (s *Storage) Close() error {
	return s.db.Close()
}

// Initialize creates the bucket structure and, on first run, the config
// entries. Calling it on an initialized index is a no-op.
func (s *Storage) Initialize() (err error) {
	defer recoverCorrupt(&err)

	return s.db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{ConfigBucket, ObjectsBucket} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}

		config := tx.Bucket(ConfigBucket)
		if config.Get(ConfigVersion) != nil {
			return nil
		}
		if err := config.Put(ConfigVersion, []byte(FormatVersion)); err != nil {
			return err
		}

		created, _ := time.Now().MarshalBinary()
		if err := config.Put(ConfigCreated, created); err != nil {
			return err
		}
		return config.Put(ConfigModified, created)
	})
}

// GetModified retrieves the last modified timestamp
func (s *Storage) GetModified() (time.Time, error) {
	var modified time.Time
	err := s.db.View(func(tx *bolt.Tx) error {
		config := tx.Bucket(ConfigBucket)
		if config == nil {
			return fmt.Errorf("config bucket not found")
		}
		data := config.Get(ConfigModified)
		if data == nil {
			return fmt.Errorf("modified time not found")
		}
		return modified.UnmarshalBinary(data)
	})
	return modified, err
}

// GetVaultID retrieves the vault ID from config bucket
func (s *Storage) GetVaultID() (string, error) {
	var vaultID string
	err := s.db.View(func(tx *bolt.Tx) error {
		config := tx.Bucket(ConfigBucket)
		if config == nil {
			return fmt.Errorf("config bucket not found")
		}
		data := config.Get(ConfigVaultID)
		if data == nil {
			return fmt.Errorf("vault_id not found")
		}
		vaultID = string(data)
		return nil
	})
	return vaultID, err
}

// GetOrCreateVaultID retrieves existing vault ID or generates a new one
func (s *Storage) GetOrCreateVaultID() (string, error) {
	vaultID, err := s.GetVaultID()
	if err == nil {
		return vaultID, nil
	}

	vaultID = uuid.NewString()
	err = s.db.Update(func(tx *bolt.Tx) error {
		config, err := tx.CreateBucketIfNotExists(ConfigBucket)
		if err != nil {
			return err
		}
		return config.Put(ConfigVaultID, []byte(vaultID))
	})
	if err != nil {
		return "", err
	}

	return vaultID, nil
}

// SetVaultID stores an explicit vault ID, used when an index is rebuilt.
func (s *Storage) SetVaultID(vaultID string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		config, err := tx.CreateBucketIfNotExists(ConfigBucket)
		if err != nil {
			return err
		}
		return config.Put(ConfigVaultID, []byte(vaultID))
	})
}

// PutObject inserts or replaces an object entry.
func (s *Storage) PutObject(obj Object) error {
	data, err := json.Marshal(obj)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		objects, err := tx.CreateBucketIfNotExists(ObjectsBucket)
		if err != nil {
			return err
		}
		if err := objects.Put([]byte(obj.ID), data); err != nil {
			return err
		}
		return touch(tx)
	})
}

// PutObjects writes several entries in one transaction.
func (s *Storage) PutObjects(objs []Object) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		objects, err := tx.CreateBucketIfNotExists(ObjectsBucket)
		if err != nil {
			return err
		}
		for _, obj := range objs {
			data, err := json.Marshal(obj)
			if err != nil {
				return err
			}
			if err := objects.Put([]byte(obj.ID), data); err != nil {
				return err
			}
		}
		return touch(tx)
	})
}

// DeleteObject removes an object entry. Deleting a missing entry is not an error.
func (s *Storage) DeleteObject(id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		objects := tx.Bucket(ObjectsBucket)
		if objects == nil {
			return nil
		}
		if err := objects.Delete([]byte(id)); err != nil {
			return err
		}
		return touch(tx)
	})
}

// Objects returns every entry in the index. A record that fails to parse,
// or a damaged page met during the walk, makes the whole index ErrCorrupt.
func (s *Storage) Objects() (_ map[string]Object, err error) {
	defer recoverCorrupt(&err)

	objs := make(map[string]Object)
	err = s.db.View(func(tx *bolt.Tx) error {
		objects := tx.Bucket(ObjectsBucket)
		if objects == nil {
			return nil
		}
		return objects.ForEach(func(k, v []byte) error {
			var obj Object
			if err := json.Unmarshal(v, &obj); err != nil {
				return fmt.Errorf("%w: record %q: %w", ErrCorrupt, k, err)
			}
			if obj.ID != string(k) {
				return fmt.Errorf("%w: record %q has id %q", ErrCorrupt, k, obj.ID)
			}
			objs[obj.ID] = obj
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return objs, nil
}

func touch(tx *bolt.Tx) error {
	config, err := tx.CreateBucketIfNotExists(ConfigBucket)
	if err != nil {
		return err
	}
	modified, _ := time.Now().MarshalBinary()
	return config.Put(ConfigModified, modified)
}

// Compact creates a compacted copy of the database, removing unused space.
// This is useful after deleting many objects.
func (s *Storage) Compact() error {
	srcPath := s.db.Path()
	tmpPath := srcPath + ".compact"

	dst, err := bolt.Open(tmpPath, 0600, &bolt.Options{Timeout: openTimeout})
	if err != nil {
		return fmt.Errorf("failed to create compact database: %w", err)
	}

	err = s.db.View(func(srcTx *bolt.Tx) error {
		return dst.Update(func(dstTx *bolt.Tx) error {
			return srcTx.ForEach(func(name []byte, srcBucket *bolt.Bucket) error {
				dstBucket, err := dstTx.CreateBucketIfNotExists(name)
				if err != nil {
					return err
				}
				return srcBucket.ForEach(func(k, v []byte) error {
					return dstBucket.Put(k, v)
				})
			})
		})
	})

	if err != nil {
		dst.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to copy data: %w", err)
	}

	if err := dst.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close compact database: %w", err)
	}

	if err := s.db.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close source database: %w", err)
	}

	backupPath := srcPath + ".backup"
	if err := os.Rename(srcPath, backupPath); err != nil {
		return s.reopen(srcPath, fmt.Errorf("failed to backup original: %w", err))
	}
	if err := os.Rename(tmpPath, srcPath); err != nil {
		os.Rename(backupPath, srcPath) // rollback
		return s.reopen(srcPath, fmt.Errorf("failed to replace database: %w", err))
	}
	os.Remove(backupPath)

	return s.reopen(srcPath, nil)
}

// reopen reopens the database after Compact closed it, returning cause
// unless reopening itself fails.
func (s *Storage) reopen(path string, cause error) error {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: openTimeout})
	if err != nil {
		return fmt.Errorf("failed to reopen database: %w", err)
	}
	s.db = db
	return cause
}
