package stage

import (
	"image"
	"image/color"
	"testing"

	"github.com/rm-hull/deep-fry-editor/internal/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fill(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func TestDeepFryStage(t *testing.T) {
	src := fill(2, 1, color.NRGBA{100, 100, 50, 255})
	src.SetNRGBA(1, 0, color.NRGBA{0, 200, 90, 10})
	img := imaging.NewImage(src)

	require.NoError(t, img.Pipeline(&DeepFryStage{Intensity: 40}))

	out := img.NRGBA()
	assert.Equal(t, color.NRGBA{200, 150, 150, 255}, out.NRGBAAt(0, 0))
	assert.Equal(t, color.NRGBA{0, 255, 255, 10}, out.NRGBAAt(1, 0))
	assert.Equal(t, color.NRGBA{100, 100, 50, 255}, src.NRGBAAt(0, 0), "source is not modified")
}

func TestDeepFryStage_RoundsHalfToEven(t *testing.T) {
	// 1 * (1 + 20/40) = 1.5 -> 2, 3 * 1.5 = 4.5 -> 4
	src := fill(2, 1, color.NRGBA{1, 0, 0, 255})
	src.SetNRGBA(1, 0, color.NRGBA{3, 0, 0, 255})
	img := imaging.NewImage(src)

	require.NoError(t, img.Pipeline(&DeepFryStage{Intensity: 20}))
	assert.Equal(t, uint8(2), img.NRGBA().NRGBAAt(0, 0).R)
	assert.Equal(t, uint8(4), img.NRGBA().NRGBAAt(1, 0).R)
}

func TestDeepFryStage_NoOp(t *testing.T) {
	src := fill(3, 3, color.NRGBA{1, 2, 3, 4})
	for _, intensity := range []float64{0, -10} {
		img := imaging.NewImage(src)
		require.NoError(t, img.Pipeline(&DeepFryStage{Intensity: intensity}))
		assert.Same(t, src, img.Img)
	}
}

func TestFactors(t *testing.T) {
	r, g, b := Factors(40)
	assert.Equal(t, 2.0, r)
	assert.Equal(t, 1.5, g)
	assert.Equal(t, 3.0, b)
}

func TestResampleStage(t *testing.T) {
	src := fill(10, 4, color.NRGBA{10, 20, 30, 255})

	for _, filter := range Filters() {
		t.Run(filter, func(t *testing.T) {
			img := imaging.NewImage(src)
			require.NoError(t, img.Pipeline(&ResampleStage{Width: 5, Height: 9, Filter: filter}))
			assert.Equal(t, image.Rect(0, 0, 5, 9), img.Bounds)
			assert.Equal(t, image.Rect(0, 0, 5, 9), img.Img.Bounds())
		})
	}
}

func TestResampleStage_NearestIdentity(t *testing.T) {
	src := fill(4, 4, color.NRGBA{1, 2, 3, 255})
	src.SetNRGBA(2, 1, color.NRGBA{200, 100, 50, 255})

	img := imaging.NewImage(src)
	require.NoError(t, img.Pipeline(&ResampleStage{Width: 4, Height: 4, Filter: FilterNearest}))
	assert.Equal(t, src.Pix, img.NRGBA().Pix)
}

func TestResampleStage_Invalid(t *testing.T) {
	img := imaging.NewImage(fill(2, 2, color.NRGBA{}))
	assert.Error(t, img.Pipeline(&ResampleStage{Width: 0, Height: 2}))
	assert.Error(t, img.Pipeline(&ResampleStage{Width: 2, Height: 2, Filter: "box"}))
}

func TestValidFilter(t *testing.T) {
	assert.True(t, ValidFilter(FilterLanczos))
	assert.True(t, ValidFilter(FilterNearest))
	assert.False(t, ValidFilter("mitchell"))
	assert.Len(t, Filters(), 5)
}

func TestReplaceColorStage(t *testing.T) {
	src := fill(3, 1, color.NRGBA{255, 255, 255, 255})
	src.SetNRGBA(1, 0, color.NRGBA{255, 255, 230, 255})
	src.SetNRGBA(2, 0, color.NRGBA{0, 0, 0, 255})
	img := imaging.NewImage(src)

	require.NoError(t, img.Pipeline(&ReplaceColorStage{Tolerance: 50, Replace: color.White}))

	out := img.NRGBA()
	assert.Equal(t, uint8(0), out.NRGBAAt(0, 0).A, "exact match is transparent")
	assert.Equal(t, uint8(127), out.NRGBAAt(1, 0).A, "half way is half transparent")
	assert.Equal(t, uint8(255), out.NRGBAAt(2, 0).A, "far away is untouched")
	assert.Equal(t, uint8(230), out.NRGBAAt(1, 0).B)
}

func TestGaussianBlurStage(t *testing.T) {
	src := fill(5, 5, color.NRGBA{0, 0, 0, 255})
	src.SetNRGBA(2, 2, color.NRGBA{255, 255, 255, 255})

	img := imaging.NewImage(src)
	require.NoError(t, img.Pipeline(&GaussianBlurStage{Sigma: 0}))
	assert.Same(t, src, img.Img)

	require.NoError(t, img.Pipeline(&GaussianBlurStage{Sigma: 1}))
	out := img.NRGBA()
	assert.Less(t, out.NRGBAAt(2, 2).R, uint8(255))
	assert.Greater(t, out.NRGBAAt(2, 1).R, uint8(0))
}

func TestSmoothStage(t *testing.T) {
	img := imaging.NewImage(fill(6, 6, color.NRGBA{9, 9, 9, 255}))
	require.NoError(t, img.Pipeline(&SmoothStage{}))
	assert.Equal(t, image.Rect(0, 0, 6, 6), img.Img.Bounds())
	assert.Equal(t, color.NRGBA{9, 9, 9, 255}, img.NRGBA().NRGBAAt(3, 3))
}
