package pipeline

import (
	"image"
)

type State int

const (
	Empty State = iota
	Loaded
)

func (s State) String() string {
	if s == Loaded {
		return "loaded"
	}
	return "empty"
}

// RenderParameters are the user adjustable inputs to Render.
type RenderParameters struct {
	TargetWidth     int     `json:"targetWidth"`
	TargetHeight    int     `json:"targetHeight"`
	EffectIntensity float64 `json:"effectIntensity"`
}

// SourceImage is an immutable decoded raster. Callers must not modify the
// pixels returned by Image.
type SourceImage struct {
	img    *image.NRGBA
	format string
}

func (s *SourceImage) Width() int          { return s.img.Rect.Dx() }
func (s *SourceImage) Height() int         { return s.img.Rect.Dy() }
func (s *SourceImage) Format() string      { return s.format }
func (s *SourceImage) Image() *image.NRGBA { return s.img }

// NaturalParameters is the parameter set a freshly loaded source starts with.
func (s *SourceImage) NaturalParameters() RenderParameters {
	return RenderParameters{TargetWidth: s.Width(), TargetHeight: s.Height()}
}

type RenderedImage struct {
	Image      *image.NRGBA
	Parameters RenderParameters
	// Sequence is the load ticket of the source this was rendered from.
	Sequence LoadTicket
}

// LoadTicket orders asynchronous loads; a load only applies when its ticket
// is newer than the one currently applied.
type LoadTicket uint64

type Export struct {
	Data      []byte
	MediaType string
	Filename  string
}
