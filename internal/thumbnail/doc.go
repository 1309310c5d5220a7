// Package thumbnail generates JPEG thumbnails and caches them in memory
// under a byte budget.
//
// Decoding supports JPEG, PNG, GIF, WebP, BMP and TIFF. Cached entries are
// plaintext and never touch disk; the vault package persists encrypted
// copies separately.
package thumbnail
