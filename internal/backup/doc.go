// Package backup reads and writes portable encrypted backup containers.
//
// A container is a flat sequence of named entries (see Writer):
//
//	manifest.enc           JSON Manifest
//	photos/<id>.enc        photo payload
//	thumbnails/<id>.enc    thumbnail, when the vault had one
//
// Every entry is encrypted with AES-256-GCM under a key derived from the
// backup password with PBKDF2-SHA256 and a fixed application salt, so the
// same password always opens the same backups. Restored photos are saved
// through the vault and end up under the live vault key.
//
// Extraction goes to a private scratch directory under the vault's tmp/
// area, confined by security.PathValidator, and is removed afterwards.
package backup
