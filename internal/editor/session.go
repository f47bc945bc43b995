package editor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rm-hull/deep-fry-editor/internal/gallery"
	"github.com/rm-hull/deep-fry-editor/internal/imaging"
	"github.com/rm-hull/deep-fry-editor/internal/pipeline"
	"github.com/rm-hull/deep-fry-editor/internal/removebg"
	log "github.com/sirupsen/logrus"
)

var ErrRemovalFailed = errors.New("background removal failed")

const (
	SourceUpload           = "upload"
	SourceCamera           = "camera"
	SourceRemoveBackground = "remove-background"
)

// Session is one user's workspace: a pipeline and the gallery feeding it.
type Session struct {
	ID        uuid.UUID
	CreatedAt time.Time
	Pipeline  *pipeline.Pipeline
	Gallery   *gallery.Gallery
	lastUsed  atomic.Int64

	// mu keeps the pipeline source and the active gallery entry in step.
	mu sync.Mutex
}

func (s *Session) touch(now time.Time) {
	s.lastUsed.Store(now.UnixNano())
}

func (s *Session) LastUsed() time.Time {
	return time.Unix(0, s.lastUsed.Load())
}

// Ingest loads the image into the pipeline and, once it decodes, records it
// in the gallery as the active entry.
func (s *Session) Ingest(source string, data []byte) (*gallery.Entry, error) {
	ticket := s.Pipeline.Begin()
	return s.ingestWithTicket(ticket, source, data)
}

func (s *Session) ingestWithTicket(ticket pipeline.LoadTicket, source string, data []byte) (*gallery.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.Pipeline.LoadSourceWithTicket(ticket, data); err != nil {
		return nil, err
	}
	entry, err := s.Gallery.Add(source, data)
	if err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{
		"session": s.ID,
		"entry":   entry.ID,
		"source":  source,
		"width":   entry.Width,
		"height":  entry.Height,
	}).Info("Image ingested")
	return entry, nil
}

// IngestImage stores an already decoded image (e.g. a camera snapshot) as a
// PNG gallery entry and loads it.
func (s *Session) IngestImage(source string, img image.Image) (*gallery.Entry, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG, 1); err != nil {
		return nil, fmt.Errorf("failed to encode %s image: %w", source, err)
	}
	return s.Ingest(source, buf.Bytes())
}

// Select reloads a gallery entry into the pipeline.
func (s *Session) Select(id uuid.UUID) (*gallery.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, err := s.Gallery.Get(id)
	if err != nil {
		return nil, err
	}
	if err := s.Pipeline.LoadSource(entry.Data); err != nil {
		return nil, err
	}
	return s.Gallery.Select(id)
}

// RemoveBackground sends the current render to the remover and loads the
// result. The load ticket is taken before the call, so if another image is
// loaded while the remover runs the result is discarded with
// pipeline.ErrStaleLoad.
func (s *Session) RemoveBackground(ctx context.Context, remover removebg.Remover) (*gallery.Entry, error) {
	ticket := s.Pipeline.Begin()

	export, err := s.Pipeline.ExportCurrent(imaging.PNG, 1)
	if err != nil {
		return nil, err
	}

	cutout, err := remover.Remove(ctx, export.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRemovalFailed, err)
	}

	return s.ingestWithTicket(ticket, SourceRemoveBackground, cutout)
}
