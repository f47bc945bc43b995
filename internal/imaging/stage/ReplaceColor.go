package stage

import (
	"image/color"
	"math"

	"github.com/rm-hull/deep-fry-editor/internal/imaging"
)

type ReplaceColorStage struct {
	Tolerance float64
	Replace   color.Color
}

// Process keys out pixels near the Replace colour. A pixel that matches exactly
// becomes fully transparent; the alpha ramps back up linearly with the
// Euclidean RGB distance until Tolerance, beyond which pixels are unchanged
func (s *ReplaceColorStage) Process(p *imaging.Image) error {
	out := imaging.ToNRGBA(p.Img)
	if s.Tolerance <= 0 {
		p.Img = out
		p.Bounds = out.Bounds()
		return nil
	}

	key := color.NRGBAModel.Convert(s.Replace).(color.NRGBA)
	kR, kG, kB := float64(key.R), float64(key.G), float64(key.B)
	for i := 0; i+3 < len(out.Pix); i += 4 {
		dR := kR - float64(out.Pix[i])
		dG := kG - float64(out.Pix[i+1])
		dB := kB - float64(out.Pix[i+2])
		dist := math.Sqrt(dR*dR + dG*dG + dB*dB)
		if dist < s.Tolerance {
			out.Pix[i+3] = uint8(dist / s.Tolerance * float64(out.Pix[i+3]))
		}
	}

	p.Img = out
	p.Bounds = out.Bounds()
	return nil
}
