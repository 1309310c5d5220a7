package backup

import (
	"time"

	"github.com/illarion/photovault/internal/storage"
)

// ManifestVersion is the manifest schema written by CreateBackup.
const ManifestVersion = 1

// Entry names inside a container.
const (
	ManifestEntry   = "manifest.enc"
	photosPrefix    = "photos/"
	thumbnailPrefix = "thumbnails/"
	entryExt        = ".enc"
)

// Manifest describes the photos in a container. It is stored as JSON
// encrypted under the backup key.
type Manifest struct {
	Version    int             `json:"version"`
	CreatedAt  time.Time       `json:"createdAt"`
	DeviceName string          `json:"deviceName"`
	PhotoCount int             `json:"photoCount"`
	TotalSize  int64           `json:"totalSize"`
	Photos     []ManifestPhoto `json:"photos"`
}

// ManifestPhoto is one exported photo.
type ManifestPhoto struct {
	ID             string                `json:"id"`
	Entry          string                `json:"entry"`
	ThumbnailEntry string                `json:"thumbnailEntry,omitempty"`
	Metadata       storage.PhotoMetadata `json:"metadata"`
	AddedAt        time.Time             `json:"addedAt"`
}

func photoEntry(id string) string     { return photosPrefix + id + entryExt }
func thumbnailEntry(id string) string { return thumbnailPrefix + id + entryExt }
