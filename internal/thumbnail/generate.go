package thumbnail

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

const (
	// DefaultMaxDimension is the longest side of a generated thumbnail.
	DefaultMaxDimension = 300
	// DefaultQuality is the JPEG quality of generated thumbnails.
	DefaultQuality = 80

	// maxPixels rejects images whose decoded bitmap would not fit in memory.
	maxPixels = 200_000_000
)

var (
	ErrInvalidImageData = errors.New("invalid image data")
	ErrEncodingFailed   = errors.New("thumbnail encoding failed")
)

// Dimensions returns the pixel size of an encoded image without decoding it.
func Dimensions(data []byte) (width, height int, err error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %w", ErrInvalidImageData, err)
	}
	return cfg.Width, cfg.Height, nil
}

// Generate decodes an image and returns a JPEG whose longest side is at most
// maxDimension. Smaller images keep their size.
func Generate(data []byte, maxDimension, quality int) ([]byte, error) {
	if maxDimension <= 0 {
		return nil, fmt.Errorf("%w: max dimension %d", ErrInvalidImageData, maxDimension)
	}
	if quality < 1 || quality > 100 {
		quality = DefaultQuality
	}

	w, h, err := Dimensions(data)
	if err != nil {
		return nil, err
	}
	if w <= 0 || h <= 0 || int64(w)*int64(h) > maxPixels {
		return nil, fmt.Errorf("%w: unsupported size %dx%d", ErrInvalidImageData, w, h)
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidImageData, err)
	}

	tw, th := fit(w, h, maxDimension)
	dst := image.NewRGBA(image.Rect(0, 0, tw, th))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Src, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEncodingFailed, err)
	}
	return buf.Bytes(), nil
}

// fit scales w x h so the longest side is at most limit, keeping aspect ratio.
func fit(w, h, limit int) (int, int) {
	if w <= limit && h <= limit {
		return w, h
	}
	if w >= h {
		return limit, scaleSide(h, limit, w)
	}
	return scaleSide(w, limit, h), limit
}

func scaleSide(side, num, den int) int {
	s := int((int64(side)*int64(num) + int64(den)/2) / int64(den))
	if s < 1 {
		return 1
	}
	return s
}
