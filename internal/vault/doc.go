// Package vault implements the encrypted object store.
//
// On-disk layout under the vault root:
//
//	objects/<id>.enc      photo ciphertext
//	thumbnails/<id>.enc   thumbnail ciphertext
//	index/index.db        bbolt index (see package storage)
//	tmp/                  private scratch for backup and restore
//	vault.id              vault identifier, kept outside the index
//
// Directories are 0700 and files 0600. The Store is the sole owner of this
// layout. It calls the eraser and thumbnail cache synchronously while
// holding its own mutex, so every public operation observes and leaves a
// consistent index.
//
// The index is the primary source of truth. When it is missing or cannot be
// parsed, Initialize rebuilds entries from ciphertext filenames and flags
// them Recovered; their metadata holds only the ciphertext size and file
// modification time.
package vault
