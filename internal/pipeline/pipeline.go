package pipeline

import (
	"bytes"
	"fmt"
	"image"
	"math"
	"strconv"
	"strings"
	"sync"

	"github.com/rm-hull/deep-fry-editor/internal/imaging"
	"github.com/rm-hull/deep-fry-editor/internal/imaging/stage"
	"github.com/sirupsen/logrus"
)

const (
	ParamWidth     = "width"
	ParamHeight    = "height"
	ParamIntensity = "intensity"
)

type Option func(*Pipeline)

// WithFilter selects the resampling filter, see stage.Filters.
func WithFilter(name string) Option {
	return func(p *Pipeline) {
		p.filter = name
	}
}

// WithMaxDimension rejects sources and target sizes above n pixels on either
// axis. Zero disables the check.
func WithMaxDimension(n int) Option {
	return func(p *Pipeline) {
		p.maxDimension = n
	}
}

// WithRenderObserver registers a callback invoked after every re-render. It
// runs with the pipeline locked and must not call back into it.
func WithRenderObserver(fn func(*RenderedImage)) Option {
	return func(p *Pipeline) {
		p.observers = append(p.observers, fn)
	}
}

func WithLogger(logger logrus.FieldLogger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// Pipeline keeps the current rendered image in step with the original source
// and the render parameters. Every operation runs to completion under a lock,
// so current never reflects stale parameters.
type Pipeline struct {
	mu           sync.Mutex
	original     *SourceImage
	current      *RenderedImage
	params       RenderParameters
	issued       LoadTicket
	applied      LoadTicket
	filter       string
	maxDimension int
	observers    []func(*RenderedImage)
	logger       logrus.FieldLogger
}

func New(opts ...Option) (*Pipeline, error) {
	p := &Pipeline{
		filter: stage.DefaultFilter,
		logger: logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if !stage.ValidFilter(p.filter) {
		return nil, fmt.Errorf("%w: unknown resample filter %q (expected one of %s)",
			ErrInvalidParameter, p.filter, strings.Join(stage.Filters(), ", "))
	}
	if p.maxDimension < 0 {
		return nil, fmt.Errorf("%w: max dimension must not be negative", ErrInvalidParameter)
	}
	return p, nil
}

// Render is the pure render function: resample the source to the target
// size, then apply the deep-fry effect when the intensity is positive.
func Render(src *SourceImage, params RenderParameters, filter string) (*image.NRGBA, error) {
	img := imaging.NewImage(src.img)
	err := img.Pipeline(
		&stage.ResampleStage{Width: params.TargetWidth, Height: params.TargetHeight, Filter: filter},
		&stage.DeepFryStage{Intensity: params.EffectIntensity},
	)
	if err != nil {
		return nil, err
	}
	return img.NRGBA(), nil
}

// Begin issues a ticket for a load that will complete later.
func (p *Pipeline) Begin() LoadTicket {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.issued++
	return p.issued
}

// LoadSource decodes raw image bytes and makes them the new source.
func (p *Pipeline) LoadSource(raw []byte) error {
	src, err := p.decodeSource(raw)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.issued++
	return p.apply(p.issued, src)
}

func (p *Pipeline) LoadSourceWithTicket(ticket LoadTicket, raw []byte) error {
	src, err := p.decodeSource(raw)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.apply(ticket, src)
}

// LoadImage makes an already decoded image the new source.
func (p *Pipeline) LoadImage(img image.Image) error {
	src, err := p.newSource(img, "")
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.issued++
	return p.apply(p.issued, src)
}

func (p *Pipeline) LoadImageWithTicket(ticket LoadTicket, img image.Image) error {
	src, err := p.newSource(img, "")
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.apply(ticket, src)
}

// decodeSource applies the max dimension to the image header, so oversized
// sources are refused before their pixels are allocated.
func (p *Pipeline) decodeSource(raw []byte) (*SourceImage, error) {
	img, format, err := imaging.DecodeWithin(raw, p.maxDimension)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecodeFailure, err)
	}
	return p.newSource(img, format)
}

func (p *Pipeline) newSource(img image.Image, format string) (*SourceImage, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, fmt.Errorf("%w: %w", ErrDecodeFailure, imaging.ErrEmptyImage)
	}
	if err := imaging.CheckDimensions(img.Bounds().Dx(), img.Bounds().Dy(), p.maxDimension); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecodeFailure, err)
	}
	return &SourceImage{img: imaging.ToNRGBA(img), format: format}, nil
}

func (p *Pipeline) apply(ticket LoadTicket, src *SourceImage) error {
	if ticket == 0 || ticket > p.issued {
		return fmt.Errorf("%w: ticket %d was never issued", ErrInvalidParameter, ticket)
	}
	if ticket <= p.applied {
		return fmt.Errorf("%w: ticket %d, current %d", ErrStaleLoad, ticket, p.applied)
	}

	prevOriginal, prevParams, prevApplied := p.original, p.params, p.applied
	p.original = src
	p.params = src.NaturalParameters()
	p.applied = ticket
	if err := p.rerender(); err != nil {
		p.original, p.params, p.applied = prevOriginal, prevParams, prevApplied
		return err
	}

	p.logger.WithFields(logrus.Fields{
		"ticket": ticket,
		"width":  src.Width(),
		"height": src.Height(),
		"format": src.Format(),
	}).Debug("Loaded source image")
	return nil
}

// SetParameter updates one render parameter from its textual form and
// re-renders. Width and height fall back to the source's natural size when
// the value is blank, non-numeric or not positive; a non-numeric intensity
// is treated as zero.
func (p *Pipeline) SetParameter(name, value string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.original == nil {
		return ErrNoSourceLoaded
	}

	params := p.params
	switch strings.ToLower(strings.TrimSpace(name)) {
	case ParamWidth, "targetwidth":
		params.TargetWidth = parseDimension(value, p.original.Width())
	case ParamHeight, "targetheight":
		params.TargetHeight = parseDimension(value, p.original.Height())
	case ParamIntensity, "effectintensity":
		params.EffectIntensity = parseIntensity(value)
	default:
		return fmt.Errorf("%w: unknown parameter %q", ErrInvalidParameter, name)
	}

	return p.update(params)
}

// SetParameters replaces all render parameters at once with a single
// re-render. Non-positive dimensions fall back to the natural size.
func (p *Pipeline) SetParameters(params RenderParameters) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.original == nil {
		return ErrNoSourceLoaded
	}
	if params.TargetWidth <= 0 {
		params.TargetWidth = p.original.Width()
	}
	if params.TargetHeight <= 0 {
		params.TargetHeight = p.original.Height()
	}
	if math.IsNaN(params.EffectIntensity) || math.IsInf(params.EffectIntensity, 0) {
		params.EffectIntensity = 0
	}
	return p.update(params)
}

func (p *Pipeline) update(params RenderParameters) error {
	if p.maxDimension > 0 && (params.TargetWidth > p.maxDimension || params.TargetHeight > p.maxDimension) {
		return fmt.Errorf("%w: %dx%d exceeds the maximum of %d pixels per side",
			ErrInvalidParameter, params.TargetWidth, params.TargetHeight, p.maxDimension)
	}

	prev := p.params
	p.params = params
	if err := p.rerender(); err != nil {
		p.params = prev
		return err
	}
	return nil
}

func parseDimension(value string, natural int) int {
	n, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil || math.IsNaN(n) || n < 1 {
		return natural
	}
	return int(math.Min(n, math.MaxInt32))
}

func parseIntensity(value string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// Render recomputes current from the latest source and parameters.
func (p *Pipeline) Render() (*RenderedImage, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.original == nil {
		return nil, ErrNoSourceLoaded
	}
	if err := p.rerender(); err != nil {
		return nil, err
	}
	return p.current, nil
}

func (p *Pipeline) rerender() error {
	img, err := Render(p.original, p.params, p.filter)
	if err != nil {
		return fmt.Errorf("failed to render image: %w", err)
	}
	p.current = &RenderedImage{
		Image:      img,
		Parameters: p.params,
		Sequence:   p.applied,
	}
	for _, fn := range p.observers {
		fn(p.current)
	}
	return nil
}

// ExportCurrent re-renders and encodes the result. Format is one of
// image/png, image/jpeg or image/webp; quality in [0,1] applies to JPEG and
// WebP, PNG is lossless.
func (p *Pipeline) ExportCurrent(format string, quality float64) (*Export, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.original == nil {
		return nil, ErrNoSourceLoaded
	}

	mediaType := imaging.NormaliseFormat(format)
	if mediaType == "" {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}

	if err := p.rerender(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, p.current.Image, mediaType, quality); err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", mediaType, err)
	}

	return &Export{
		Data:      buf.Bytes(),
		MediaType: mediaType,
		Filename:  "image." + imaging.Extension(mediaType),
	}, nil
}

func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.original == nil {
		return Empty
	}
	return Loaded
}

// Current returns the latest render, or nil before any source was loaded.
func (p *Pipeline) Current() *RenderedImage {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

func (p *Pipeline) Original() *SourceImage {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.original
}

func (p *Pipeline) Parameters() RenderParameters {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.params
}

func (p *Pipeline) Filter() string {
	return p.filter
}
