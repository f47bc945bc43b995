package stage

import (
	"github.com/anthonynsimon/bild/blur"
	"github.com/rm-hull/deep-fry-editor/internal/imaging"
)

type GaussianBlurStage struct {
	Sigma float64
}

// Process blurs the image; a non-positive Sigma leaves it untouched
func (s *GaussianBlurStage) Process(p *imaging.Image) error {
	if s.Sigma <= 0 {
		return nil
	}
	blurred := imaging.ToNRGBA(blur.Gaussian(p.Img, s.Sigma))
	p.Img = blurred
	p.Bounds = blurred.Bounds()
	return nil
}
