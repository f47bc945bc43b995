package imaging

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"math"
	"strings"

	"github.com/gen2brain/webp"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

const (
	PNG  = "image/png"
	JPEG = "image/jpeg"
	WebP = "image/webp"

	// DefaultQuality is used whenever the requested quality is outside [0,1].
	DefaultQuality = 0.92
)

var (
	ErrUnsupportedFormat = errors.New("unsupported format")
	ErrEmptyImage        = errors.New("image has no pixels")
	ErrTooLarge          = errors.New("image dimensions exceed the limit")
)

// Decode sniffs the format from the stream and returns the decoded image
// along with its media type.
func Decode(r io.Reader) (image.Image, string, error) {
	img, name, err := image.Decode(bufio.NewReader(r))
	if err != nil {
		return nil, "", err
	}
	if img.Bounds().Empty() {
		return nil, "", ErrEmptyImage
	}
	return img, "image/" + name, nil
}

// DecodeWithin reads the image header first and rejects anything wider or
// taller than maxDimension before the pixels are allocated. Zero disables the
// check.
func DecodeWithin(data []byte, maxDimension int) (image.Image, string, error) {
	if maxDimension > 0 {
		cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
		if err != nil {
			return nil, "", err
		}
		if err := CheckDimensions(cfg.Width, cfg.Height, maxDimension); err != nil {
			return nil, "", err
		}
	}
	return Decode(bytes.NewReader(data))
}

func CheckDimensions(width, height, maxDimension int) error {
	if maxDimension > 0 && (width > maxDimension || height > maxDimension) {
		return fmt.Errorf("%w: %dx%d, maximum is %d pixels per side", ErrTooLarge, width, height, maxDimension)
	}
	return nil
}

// NormaliseFormat maps aliases onto the canonical media types, returning ""
// when the format cannot be encoded.
func NormaliseFormat(format string) string {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case PNG, "png":
		return PNG
	case JPEG, "image/jpg", "jpeg", "jpg":
		return JPEG
	case WebP, "webp":
		return WebP
	default:
		return ""
	}
}

// Extension is the media subtype, e.g. "jpeg" for image/jpeg.
func Extension(format string) string {
	f := NormaliseFormat(format)
	if f == "" {
		return ""
	}
	return f[strings.Index(f, "/")+1:]
}

// Encode writes img in the given format. Quality in [0,1] applies to the lossy
// JPEG and WebP encoders; PNG is always lossless.
func Encode(w io.Writer, img image.Image, format string, quality float64) error {
	switch NormaliseFormat(format) {
	case PNG:
		return png.Encode(w, img)
	case JPEG:
		return jpeg.Encode(w, img, &jpeg.Options{Quality: QualityPercent(quality)})
	case WebP:
		return webp.Encode(w, img, webp.Options{Quality: QualityPercent(quality), Method: 4, Exact: true})
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

// QualityPercent converts a [0,1] quality into the 1-100 scale the JPEG and
// WebP encoders take.
func QualityPercent(quality float64) int {
	if math.IsNaN(quality) || quality < 0 || quality > 1 {
		quality = DefaultQuality
	}
	return max(1, int(math.Round(quality*100)))
}
