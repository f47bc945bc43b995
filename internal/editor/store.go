package editor

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rm-hull/deep-fry-editor/internal/gallery"
	"github.com/rm-hull/deep-fry-editor/internal/pipeline"
	log "github.com/sirupsen/logrus"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrTooManySessions = errors.New("too many sessions")
)

type Options struct {
	// TTL is how long a session may sit idle before Sweep evicts it.
	TTL             time.Duration
	MaxSessions     int
	GalleryLimit    int
	PipelineOptions []pipeline.Option
}

// Store keeps the live sessions in memory; nothing is persisted.
type Store struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*Session
	opts     Options
	now      func() time.Time
}

func NewStore(opts Options) *Store {
	return &Store{
		sessions: make(map[uuid.UUID]*Session),
		opts:     opts,
		now:      time.Now,
	}
}

func (st *Store) Create() (*Session, error) {
	p, err := pipeline.New(st.opts.PipelineOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to create pipeline: %w", err)
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	if st.opts.MaxSessions > 0 && len(st.sessions) >= st.opts.MaxSessions {
		return nil, fmt.Errorf("%w: limit is %d", ErrTooManySessions, st.opts.MaxSessions)
	}

	now := st.now()
	session := &Session{
		ID:        uuid.New(),
		CreatedAt: now,
		Pipeline:  p,
		Gallery:   gallery.New(st.opts.GalleryLimit),
	}
	session.touch(now)
	st.sessions[session.ID] = session

	log.WithField("session", session.ID).Info("Session created")
	return session, nil
}

// Get returns the session and marks it as used.
func (st *Store) Get(id uuid.UUID) (*Session, error) {
	st.mu.RLock()
	session, ok := st.sessions[id]
	st.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	session.touch(st.now())
	return session, nil
}

func (st *Store) Delete(id uuid.UUID) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	if _, ok := st.sessions[id]; !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	delete(st.sessions, id)
	log.WithField("session", id).Info("Session deleted")
	return nil
}

func (st *Store) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}

// Sweep evicts every session idle for longer than the TTL and returns how
// many were removed. A zero TTL disables eviction.
func (st *Store) Sweep() int {
	if st.opts.TTL <= 0 {
		return 0
	}

	cutoff := st.now().Add(-st.opts.TTL)

	st.mu.Lock()
	defer st.mu.Unlock()

	evicted := 0
	for id, session := range st.sessions {
		if session.LastUsed().Before(cutoff) {
			delete(st.sessions, id)
			evicted++
		}
	}
	return evicted
}
