// Package batch runs the render pipeline over many files with a fixed pool of
// workers.
package batch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rm-hull/deep-fry-editor/internal/pipeline"
	"github.com/rm-hull/deep-fry-editor/internal/removebg"
	log "github.com/sirupsen/logrus"
)

type Job struct {
	Input  string
	Output string
}

// Options apply to every job. Width, Height and Intensity hold the textual
// parameter values; blank ones are left at the pipeline's defaults.
type Options struct {
	Width     string
	Height    string
	Intensity string
	Format    string
	Quality   float64

	PipelineOptions []pipeline.Option

	// Remover, when set, strips the background before rendering.
	Remover removebg.Remover
}

type Processor struct {
	ctx       context.Context
	startTime time.Time
	endTime   time.Time
	poolSize  int
	items     []Job
	jobs      chan Job
	results   chan error
	opts      Options
}

func NewProcessor(ctx context.Context, items []Job, poolSize int, opts Options) (*Processor, error) {
	if poolSize < 1 {
		return nil, errors.New("pool size must be at least 1")
	}
	if len(items) == 0 {
		return nil, errors.New("no files to render")
	}

	return &Processor{
		ctx:       ctx,
		startTime: time.Now(),
		poolSize:  poolSize,
		items:     items,
		jobs:      make(chan Job),
		results:   make(chan error),
		opts:      opts,
	}, nil
}

// Run starts the workers, feeds them every job and waits for the results.
func (p *Processor) Run() []error {
	p.StartWorkers()
	p.DispatchJobs()
	return p.Wait()
}

func (p *Processor) DispatchJobs() {
	go func() {
		for _, job := range p.items {
			p.jobs <- job
		}
		close(p.jobs)
	}()
}

func (p *Processor) StartWorkers() {
	log.WithField("pool_size", p.poolSize).Info("Starting render workers")

	for i := range p.poolSize {
		go p.worker(i)
	}
}

func (p *Processor) worker(i int) {
	log.WithField("worker", i).Debug("Worker started")
	for job := range p.jobs {
		if err := p.processFile(job); err != nil {
			p.results <- fmt.Errorf("%s: %w", job.Input, err)
			continue
		}
		p.results <- nil
	}
	log.WithField("worker", i).Debug("Worker finished")
}

func (p *Processor) processFile(job Job) error {
	if err := p.ctx.Err(); err != nil {
		return err
	}

	data, err := os.ReadFile(job.Input)
	if err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}

	if p.opts.Remover != nil {
		data, err = p.opts.Remover.Remove(p.ctx, data)
		if err != nil {
			return fmt.Errorf("failed to remove background: %w", err)
		}
	}

	pl, err := pipeline.New(p.opts.PipelineOptions...)
	if err != nil {
		return err
	}
	if err := pl.LoadSource(data); err != nil {
		return err
	}

	for _, param := range []struct{ name, value string }{
		{pipeline.ParamWidth, p.opts.Width},
		{pipeline.ParamHeight, p.opts.Height},
		{pipeline.ParamIntensity, p.opts.Intensity},
	} {
		if param.value == "" {
			continue
		}
		if err := pl.SetParameter(param.name, param.value); err != nil {
			return err
		}
	}

	export, err := pl.ExportCurrent(p.opts.Format, p.opts.Quality)
	if err != nil {
		return err
	}

	if err := WriteFile(job.Output, export.Data); err != nil {
		return err
	}

	log.WithFields(log.Fields{
		"input":  job.Input,
		"output": job.Output,
		"bytes":  len(export.Data),
		"params": pl.Parameters(),
	}).Info("Rendered image")
	return nil
}

func (p *Processor) Wait() []error {
	errs := make([]error, 0, len(p.items))
	for range p.items {
		if err := <-p.results; err != nil {
			errs = append(errs, err)
		}
	}
	p.endTime = time.Now()
	log.WithFields(log.Fields{
		"files":   len(p.items),
		"errors":  len(errs),
		"elapsed": p.endTime.Sub(p.startTime),
	}).Info("All files rendered")
	return errs
}

// WriteFile replaces filename with data atomically, going through a
// temporary file in the same directory.
func WriteFile(filename string, data []byte) error {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create path: %w", err)
	}

	tmpFile, err := os.CreateTemp(dir, "render-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	cleanupTemp := true
	defer func() {
		_ = tmpFile.Close()
		if cleanupTemp {
			_ = os.Remove(tmpFile.Name())
		}
	}()

	if _, err := tmpFile.Write(data); err != nil {
		return fmt.Errorf("failed to write temporary file: %w", err)
	}

	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temporary file before rename: %w", err)
	}

	if err := os.Rename(tmpFile.Name(), filename); err != nil {
		return fmt.Errorf("failed to rename temporary file: %w", err)
	}

	cleanupTemp = false
	return nil
}

// OutputName derives the output path for input inside dir, swapping the
// extension for the one matching the export format.
func OutputName(dir, input, ext string) string {
	base := filepath.Base(input)
	stem := base[:len(base)-len(filepath.Ext(base))]
	return filepath.Join(dir, stem+"."+ext)
}
