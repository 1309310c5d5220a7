// Package keys provides the Key Provider consumed by the vault and backup
// packages: an opaque, authenticated Encrypt/Decrypt capability.
//
// Implementations:
//   - AEAD: a raw 32-byte key held in memory (tests, backup keys)
//   - NewKeyringProvider: master key generated once and kept in the OS keyring
//   - OpenKeyFile: master key wrapped under a password-derived key in a file
//   - Deferred: resolves any of the above on first use
//
// Callers never see key material; decrypt failures surface as
// errs.ErrAuthFailed, which cannot distinguish a wrong key from corruption.
package keys
