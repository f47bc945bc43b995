package pipeline

import (
	"errors"

	"github.com/rm-hull/deep-fry-editor/internal/imaging"
)

var (
	ErrDecodeFailure     = errors.New("failed to decode image")
	ErrNoSourceLoaded    = errors.New("no image loaded")
	ErrInvalidParameter  = errors.New("invalid parameter")
	ErrUnsupportedFormat = imaging.ErrUnsupportedFormat
	ErrStaleLoad         = errors.New("image load superseded by a newer one")
)
