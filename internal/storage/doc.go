// Package storage provides the BBolt index for photovault.
//
// Database structure uses two buckets:
//   - config: format version, created/modified timestamps, vault ID
//   - objects: object ID -> JSON-encoded Object
//
// The index holds no ciphertext. Photo and thumbnail payloads live in
// separate files owned by the vault package, which can rebuild this index
// from their filenames when it is lost.
//
// BBolt provides ACID transactions, file locking, and corruption detection.
package storage
