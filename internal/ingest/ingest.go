// Package ingest converts the ways an image can arrive (uploads, data URLs
// and raw camera frames) into something the pipeline can load.
package ingest

import (
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"io"
	"math"
	"strings"
)

// DefaultMaxUploadSize caps a single upload at 32MB.
const DefaultMaxUploadSize = 32 * 1024 * 1024

var (
	ErrTooLarge      = errors.New("upload too large")
	ErrInvalidData   = errors.New("invalid data URL")
	ErrInvalidFrame  = errors.New("invalid camera frame")
	ErrNotAnImage    = errors.New("media type is not an image")
	ErrNotBase64Data = errors.New("data URL must be base64 encoded")
)

// ReadUpload reads at most limit bytes, failing rather than truncating.
func ReadUpload(r io.Reader, limit int64) ([]byte, error) {
	if limit <= 0 {
		limit = DefaultMaxUploadSize
	}
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%w: exceeds %d bytes", ErrTooLarge, limit)
	}
	return data, nil
}

// ParseDataURL decodes data:image/png;base64,... into its media type and
// payload.
func ParseDataURL(url string) (string, []byte, error) {
	content, ok := strings.CutPrefix(strings.TrimSpace(url), "data:")
	if !ok {
		return "", nil, fmt.Errorf("%w: missing data: prefix", ErrInvalidData)
	}

	metadata, payload, ok := strings.Cut(content, ",")
	if !ok {
		return "", nil, fmt.Errorf("%w: missing comma separator", ErrInvalidData)
	}

	parts := strings.Split(metadata, ";")
	mediaType := strings.ToLower(strings.TrimSpace(parts[0]))
	if !strings.HasPrefix(mediaType, "image/") {
		return "", nil, fmt.Errorf("%w: %q", ErrNotAnImage, mediaType)
	}

	isBase64 := false
	for _, part := range parts[1:] {
		if strings.TrimSpace(part) == "base64" {
			isBase64 = true
			break
		}
	}
	if !isBase64 {
		return "", nil, ErrNotBase64Data
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %w", ErrInvalidData, err)
	}
	return mediaType, data, nil
}

// EncodeDataURL is the inverse of ParseDataURL.
func EncodeDataURL(mediaType string, data []byte) string {
	return "data:" + mediaType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// FromRaw wraps a camera frame of tightly packed 8-bit RGBA pixels. The
// buffer is copied.
func FromRaw(pix []byte, width, height int) (image.Image, error) {
	if width <= 0 || height <= 0 || width > math.MaxInt/4/height {
		return nil, fmt.Errorf("%w: dimensions %dx%d", ErrInvalidFrame, width, height)
	}
	if expected := 4 * width * height; len(pix) != expected {
		return nil, fmt.Errorf("%w: expected %d bytes for %dx%d RGBA, got %d",
			ErrInvalidFrame, expected, width, height, len(pix))
	}

	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	copy(img.Pix, pix)
	return img, nil
}
