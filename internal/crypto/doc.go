// Package crypto provides cryptographic primitives for photovault.
//
// Encryption uses AES-256-GCM (default) or ChaCha20-Poly1305 with:
//   - 32-byte key
//   - 12-byte random nonce per encryption, prepended to the output
//   - Authenticated encryption prevents tampering
//
// Key derivation uses PBKDF2-HMAC-SHA256:
//   - wrapped key files: 32-byte random salt, 210,000 iterations
//   - backup containers: fixed application salt (BackupSalt), so the same
//     password always derives the same backup key
//
// Memory safety:
//   - Use ClearBytes() to zero sensitive data after use
//   - Call Encryptor.Destroy() when done with encryption operations
package crypto
