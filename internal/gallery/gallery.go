package gallery

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rm-hull/deep-fry-editor/internal/imaging"
)

var ErrNotFound = errors.New("gallery entry not found")

// Entry is one ingested image. Data holds the encoded bytes exactly as they
// were received so that selecting the entry reloads the original pixels.
type Entry struct {
	ID        uuid.UUID `json:"id"`
	Source    string    `json:"source"`
	MediaType string    `json:"mediaType"`
	Width     int       `json:"width"`
	Height    int       `json:"height"`
	AddedAt   time.Time `json:"addedAt"`
	Data      []byte    `json:"-"`
}

// Gallery is an ordered, concurrency safe list of entries with at most one
// active entry.
type Gallery struct {
	mu      sync.RWMutex
	entries []*Entry
	active  uuid.UUID
	limit   int
	now     func() time.Time
}

// New creates a gallery holding up to limit entries, dropping the oldest when
// full. A limit of zero means unbounded.
func New(limit int) *Gallery {
	return &Gallery{limit: limit, now: time.Now}
}

// Add decodes the image header to record its dimensions, appends it and makes
// it the active entry.
func (g *Gallery) Add(source string, data []byte) (*Entry, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to read image header: %w", err)
	}

	entry := &Entry{
		ID:        uuid.New(),
		Source:    source,
		MediaType: "image/" + format,
		Width:     cfg.Width,
		Height:    cfg.Height,
		Data:      data,
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	entry.AddedAt = g.now()
	g.entries = append(g.entries, entry)
	if g.limit > 0 && len(g.entries) > g.limit {
		// copy so the evicted entries, and their image data, can be collected
		g.entries = append([]*Entry(nil), g.entries[len(g.entries)-g.limit:]...)
	}
	g.active = entry.ID
	return entry, nil
}

func (g *Gallery) List() []*Entry {
	g.mu.RLock()
	defer g.mu.RUnlock()
	entries := make([]*Entry, len(g.entries))
	copy(entries, g.entries)
	return entries
}

func (g *Gallery) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.entries)
}

func (g *Gallery) Get(id uuid.UUID) (*Entry, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if i := g.indexOf(id); i >= 0 {
		return g.entries[i], nil
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
}

// Select marks the entry as active and returns it.
func (g *Gallery) Select(id uuid.UUID) (*Entry, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	i := g.indexOf(id)
	if i < 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	g.active = id
	return g.entries[i], nil
}

// Active returns the active entry ID, or uuid.Nil when there is none.
func (g *Gallery) Active() uuid.UUID {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.indexOf(g.active) < 0 {
		return uuid.Nil
	}
	return g.active
}

func (g *Gallery) Remove(id uuid.UUID) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	i := g.indexOf(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	g.entries = slices.Delete(g.entries, i, i+1)
	if g.active == id {
		g.active = uuid.Nil
	}
	return nil
}

// Animate renders every entry, oldest first, as a looping APNG flip-book.
func (g *Gallery) Animate(frameDelay float64) ([]byte, error) {
	entries := g.List()
	frames := make([]image.Image, 0, len(entries))
	for _, entry := range entries {
		img, _, err := imaging.Decode(bytes.NewReader(entry.Data))
		if err != nil {
			return nil, fmt.Errorf("failed to decode gallery entry %s: %w", entry.ID, err)
		}
		frames = append(frames, img)
	}
	return imaging.Animate(frames, frameDelay)
}

func (g *Gallery) indexOf(id uuid.UUID) int {
	for i, entry := range g.entries {
		if entry.ID == id {
			return i
		}
	}
	return -1
}
