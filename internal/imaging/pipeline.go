package imaging

import (
	"image"
	"image/draw"
	"io"
)

type Image struct {
	Img    image.Image
	Bounds image.Rectangle
	Format string
}

type PipelineStage interface {
	Process(img *Image) error
}

func NewImage(img image.Image) *Image {
	return &Image{
		Img:    img,
		Bounds: img.Bounds(),
	}
}

func NewImageFromReader(r io.Reader) (*Image, error) {
	img, format, err := Decode(r)
	if err != nil {
		return nil, err
	}
	return &Image{
		Img:    img,
		Bounds: img.Bounds(),
		Format: format,
	}, nil
}

func (p *Image) Write(w io.Writer, format string, quality float64) error {
	return Encode(w, p.Img, format, quality)
}

func (p *Image) Pipeline(stages ...PipelineStage) error {
	for _, stage := range stages {
		if err := stage.Process(p); err != nil {
			return err
		}
	}
	return nil
}

// NRGBA returns the image as straight-alpha RGBA anchored at the origin,
// copying only when the underlying image is not already in that form.
func (p *Image) NRGBA() *image.NRGBA {
	if n, ok := p.Img.(*image.NRGBA); ok && n.Rect.Min == (image.Point{}) {
		return n
	}
	return ToNRGBA(p.Img)
}

// ToNRGBA always returns a fresh copy.
func ToNRGBA(img image.Image) *image.NRGBA {
	b := img.Bounds()
	out := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Src)
	return out
}
