package removebg

import (
	"bytes"
	"context"
	"fmt"
	"image/color"

	"github.com/rm-hull/deep-fry-editor/internal/imaging"
	"github.com/rm-hull/deep-fry-editor/internal/imaging/stage"
)

// LocalRemover keys out a plain backdrop without calling any service: colours
// near Backdrop fade to transparent, then the alpha edge is softened.
type LocalRemover struct {
	Backdrop  color.Color
	Tolerance float64
	Sigma     float64
}

func NewLocalRemover(tolerance, sigma float64) Remover {
	return &LocalRemover{Backdrop: color.White, Tolerance: tolerance, Sigma: sigma}
}

func (l *LocalRemover) Remove(ctx context.Context, data []byte) ([]byte, error) {
	img, err := imaging.NewImageFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	backdrop := l.Backdrop
	if backdrop == nil {
		backdrop = color.White
	}

	err = img.Pipeline(
		&stage.ReplaceColorStage{Tolerance: l.Tolerance, Replace: backdrop},
		&stage.GaussianBlurStage{Sigma: l.Sigma},
		&stage.SmoothStage{},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to process image pipeline: %w", err)
	}

	var buf bytes.Buffer
	if err := img.Write(&buf, imaging.PNG, 1); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), nil
}
