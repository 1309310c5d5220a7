package storage

import (
	"maps"
	"slices"
	"time"
)

// PhotoMetadata is the caller-supplied description of a photo.
type PhotoMetadata struct {
	OriginalFilename string            `json:"originalFilename,omitempty"`
	FileSize         int64             `json:"fileSize"`
	CaptureDate      *time.Time        `json:"captureDate,omitempty"`
	Width            int               `json:"width,omitempty"`
	Height           int               `json:"height,omitempty"`
	CameraMake       string            `json:"cameraMake,omitempty"`
	CameraModel      string            `json:"cameraModel,omitempty"`
	IsFavorite       bool              `json:"isFavorite,omitempty"`
	Tags             []string          `json:"tags,omitempty"`
	Albums           []string          `json:"albums,omitempty"`
	Extra            map[string]string `json:"extra,omitempty"`
}

// Clone returns a deep copy.
func (m PhotoMetadata) Clone() PhotoMetadata {
	out := m
	if m.CaptureDate != nil {
		d := *m.CaptureDate
		out.CaptureDate = &d
	}
	out.Tags = slices.Clone(m.Tags)
	out.Albums = slices.Clone(m.Albums)
	out.Extra = maps.Clone(m.Extra)
	return out
}

// Object is one index entry: an encrypted photo plus its metadata.
type Object struct {
	ID                        string        `json:"id"`
	Metadata                  PhotoMetadata `json:"metadata"`
	HasThumbnail              bool          `json:"hasThumbnail"`
	ThumbnailGenerationFailed bool          `json:"thumbnailGenerationFailed,omitempty"`
	// Recovered marks entries rebuilt from ciphertext filenames; their
	// metadata is filesystem-derived only.
	Recovered bool      `json:"recovered,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Clone returns a deep copy.
func (o Object) Clone() Object {
	out := o
	out.Metadata = o.Metadata.Clone()
	return out
}

// NeedsThumbnail reports whether the thumbnail is missing or failed.
func (o Object) NeedsThumbnail() bool {
	return !o.HasThumbnail || o.ThumbnailGenerationFailed
}
