package cmd

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/rm-hull/deep-fry-editor/internal/batch"
	"github.com/rm-hull/deep-fry-editor/internal/config"
	"github.com/rm-hull/deep-fry-editor/internal/imaging"
	"github.com/rm-hull/deep-fry-editor/internal/pipeline"
	"github.com/rm-hull/deep-fry-editor/internal/removebg"
	log "github.com/sirupsen/logrus"
)

type RenderOptions struct {
	Inputs           []string
	Output           string
	Width            string
	Height           string
	Intensity        string
	Format           string
	Quality          float64
	Filter           string
	RemoveBackground bool
	Workers          int
}

// Render deep-fries each input and writes the results. With a single input
// Output names the file; otherwise it is the directory results go into.
func Render(cfg *config.Config, opts RenderOptions) error {
	if len(opts.Inputs) == 0 {
		return errors.New("at least one --input is required")
	}
	if opts.Output == "" {
		return errors.New("--output is required")
	}

	format := opts.Format
	if format == "" && len(opts.Inputs) == 1 {
		format = imaging.NormaliseFormat(strings.TrimPrefix(filepath.Ext(opts.Output), "."))
	}
	if format == "" {
		format = imaging.PNG
	}
	mediaType := imaging.NormaliseFormat(format)
	if mediaType == "" {
		return fmt.Errorf("%w: %q", imaging.ErrUnsupportedFormat, format)
	}

	filter := opts.Filter
	if filter == "" {
		filter = cfg.Pipeline.Filter
	}

	jobs := make([]batch.Job, 0, len(opts.Inputs))
	if len(opts.Inputs) == 1 {
		jobs = append(jobs, batch.Job{Input: opts.Inputs[0], Output: opts.Output})
	} else {
		for _, input := range opts.Inputs {
			jobs = append(jobs, batch.Job{
				Input:  input,
				Output: batch.OutputName(opts.Output, input, imaging.Extension(mediaType)),
			})
		}
	}

	var remover removebg.Remover
	if opts.RemoveBackground {
		remover = removebg.New(removebg.Config{
			ApiKey:    cfg.RemoveBg.ApiKey,
			BaseUrl:   cfg.RemoveBg.BaseUrl,
			Timeout:   cfg.RemoveBg.Timeout,
			Tolerance: cfg.RemoveBg.Tolerance,
			Sigma:     cfg.RemoveBg.Sigma,
		})
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}
	workers = min(workers, len(jobs))

	processor, err := batch.NewProcessor(ctx, jobs, workers, batch.Options{
		Width:     opts.Width,
		Height:    opts.Height,
		Intensity: opts.Intensity,
		Format:    mediaType,
		Quality:   opts.Quality,
		PipelineOptions: []pipeline.Option{
			pipeline.WithFilter(filter),
			pipeline.WithMaxDimension(cfg.Pipeline.MaxDimension),
		},
		Remover: remover,
	})
	if err != nil {
		return err
	}

	errs := processor.Run()
	for _, err := range errs {
		log.WithError(err).Error("Render failed")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%d of %d renders failed: %w", len(errs), len(jobs), errors.Join(errs...))
	}
	return nil
}
