package imaging

import (
	"bytes"
	"errors"
	"image"

	"github.com/kettek/apng"
	"golang.org/x/image/draw"
)

// Animate builds a looping APNG from the frames. Every frame is scaled to fit
// the first frame's bounds, centred, preserving its aspect ratio.
func Animate(frames []image.Image, frameDelay float64) ([]byte, error) {
	if len(frames) == 0 {
		return nil, errors.New("no frames to animate")
	}

	canvas := frames[0].Bounds().Sub(frames[0].Bounds().Min)
	a := apng.APNG{
		Frames:    make([]apng.Frame, len(frames)),
		LoopCount: 0,
	}

	for i, img := range frames {
		a.Frames[i] = apng.Frame{
			Image:            Letterbox(img, canvas),
			DelayNumerator:   uint16(frameDelay * 1000),
			DelayDenominator: 1000,
		}
	}

	var buf bytes.Buffer
	if err := apng.Encode(&buf, a); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// Letterbox scales img into a transparent canvas of the given size.
func Letterbox(img image.Image, canvas image.Rectangle) *image.NRGBA {
	out := image.NewNRGBA(canvas)
	src := img.Bounds()
	if src.Empty() || canvas.Empty() {
		return out
	}

	w, h := canvas.Dx(), canvas.Dy()
	if src.Dx()*h > src.Dy()*w {
		h = max(1, src.Dy()*w/src.Dx())
	} else {
		w = max(1, src.Dx()*h/src.Dy())
	}

	offset := image.Pt((canvas.Dx()-w)/2, (canvas.Dy()-h)/2)
	dst := image.Rectangle{Min: offset, Max: offset.Add(image.Pt(w, h))}
	draw.CatmullRom.Scale(out, dst, img, src, draw.Src, nil)
	return out
}
