package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"math"

	// Image format decoders for the fallback path
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp" // WebP format support
)

// MaxImagePixels is the largest image (width * height) the fallback decoder
// accepts. A 20MP RGBA image already needs about 80MB.
const MaxImagePixels = 20_000_000

// ErrImageTooLarge is returned by the fallback decoder for images above
// MaxImagePixels.
var ErrImageTooLarge = errors.New("image exceeds pixel limit")

// Converter turns still images into JPEG. It uses libvips when initialized
// (the only path able to decode HEIC/HEIF) and falls back to the pure Go
// decoders otherwise.
type Converter struct{}

// NewConverter creates a Converter.
func NewConverter() *Converter {
	return &Converter{}
}

// ToJPEG encodes data as JPEG. quality is a ratio in (0,1], e.g. 0.8.
func (c *Converter) ToJPEG(ctx context.Context, data []byte, quality float64) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	q := jpegQuality(quality)

	if IsVipsAvailable() {
		return jpegWithVips(data, q)
	}
	return jpegWithImaging(data, q)
}

func jpegQuality(ratio float64) int {
	q := int(math.Round(ratio * 100))
	switch {
	case q < 1:
		return 1
	case q > 100:
		return 100
	default:
		return q
	}
}

// jpegWithImaging decodes with the registered Go decoders, honours EXIF
// orientation and re-encodes as JPEG.
func jpegWithImaging(data []byte, quality int) ([]byte, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("unsupported image format: %w", err)
	}
	if cfg.Width*cfg.Height > MaxImagePixels {
		return nil, fmt.Errorf("%w: %dx%d %s", ErrImageTooLarge, cfg.Width, cfg.Height, format)
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s image: %w", format, err)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return nil, fmt.Errorf("failed to encode JPEG: %w", err)
	}
	return buf.Bytes(), nil
}
