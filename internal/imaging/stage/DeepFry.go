package stage

import (
	"math"

	"github.com/rm-hull/deep-fry-editor/internal/imaging"
)

type DeepFryStage struct {
	Intensity float64
}

// Factors returns the red, green and blue multipliers for an intensity
func Factors(intensity float64) (r, g, b float64) {
	return 1 + intensity/40, 1 + intensity/80, 1 + intensity/20
}

// Process exaggerates each colour channel by its own factor, blue the most and
// green the least. Results are rounded half-to-even and clamped to [0,255];
// alpha is left untouched. Intensities of zero or below are a no-op
func (s *DeepFryStage) Process(p *imaging.Image) error {
	if !(s.Intensity > 0) {
		return nil
	}

	out := imaging.ToNRGBA(p.Img)
	fr, fg, fb := Factors(s.Intensity)
	for i := 0; i+3 < len(out.Pix); i += 4 {
		out.Pix[i] = scaleChannel(out.Pix[i], fr)
		out.Pix[i+1] = scaleChannel(out.Pix[i+1], fg)
		out.Pix[i+2] = scaleChannel(out.Pix[i+2], fb)
	}

	p.Img = out
	p.Bounds = out.Bounds()
	return nil
}

func scaleChannel(v uint8, factor float64) uint8 {
	x := math.RoundToEven(float64(v) * factor)
	if x >= 255 {
		return 255
	}
	if x <= 0 {
		return 0
	}
	return uint8(x)
}
