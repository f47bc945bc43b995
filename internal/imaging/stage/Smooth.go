package stage

import (
	"image"

	"github.com/rm-hull/deep-fry-editor/internal/imaging"
	"golang.org/x/image/draw"
)

type SmoothStage struct{}

// Process applies a Catmull-Rom resampling over the image's own bounds to
// soften hard edges left behind by colour replacement and blurring
func (s *SmoothStage) Process(p *imaging.Image) error {
	smoothed := image.NewNRGBA(p.Bounds)
	draw.CatmullRom.Scale(smoothed, p.Bounds, p.Img, p.Bounds, draw.Over, nil)
	p.Img = smoothed
	return nil
}
