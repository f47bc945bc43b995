package editor

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rm-hull/deep-fry-editor/internal/gallery"
	"github.com/rm-hull/deep-fry-editor/internal/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngOf(t *testing.T, w, h int, c color.NRGBA) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

type removerFunc func(ctx context.Context, data []byte) ([]byte, error)

func (f removerFunc) Remove(ctx context.Context, data []byte) ([]byte, error) {
	return f(ctx, data)
}

func TestStore_Lifecycle(t *testing.T) {
	store := NewStore(Options{MaxSessions: 2})

	a, err := store.Create()
	require.NoError(t, err)
	b, err := store.Create()
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, b.ID)

	_, err = store.Create()
	assert.ErrorIs(t, err, ErrTooManySessions)

	got, err := store.Get(a.ID)
	require.NoError(t, err)
	assert.Same(t, a, got)

	require.NoError(t, store.Delete(a.ID))
	_, err = store.Get(a.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.ErrorIs(t, store.Delete(a.ID), ErrSessionNotFound)
	assert.Equal(t, 1, store.Len())
}

func TestStore_CreateWithBadPipelineOptions(t *testing.T) {
	store := NewStore(Options{PipelineOptions: []pipeline.Option{pipeline.WithFilter("bogus")}})
	_, err := store.Create()
	assert.ErrorIs(t, err, pipeline.ErrInvalidParameter)
}

func TestStore_Sweep(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store := NewStore(Options{TTL: time.Minute})
	store.now = func() time.Time { return now }

	idle, _ := store.Create()
	busy, _ := store.Create()

	now = now.Add(45 * time.Second)
	_, err := store.Get(busy.ID)
	require.NoError(t, err)

	now = now.Add(30 * time.Second)
	assert.Equal(t, 1, store.Sweep())

	_, err = store.Get(idle.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = store.Get(busy.ID)
	assert.NoError(t, err)
}

func TestStore_SweepDisabled(t *testing.T) {
	store := NewStore(Options{})
	store.now = func() time.Time { return time.Unix(0, 0) }
	_, _ = store.Create()
	store.now = time.Now
	assert.Zero(t, store.Sweep())
	assert.Equal(t, 1, store.Len())
}

func TestJanitor(t *testing.T) {
	store := NewStore(Options{TTL: time.Millisecond})
	_, err := store.Create()
	require.NoError(t, err)

	scheduler, err := NewJanitor(store, 10*time.Millisecond)
	require.NoError(t, err)
	defer func() { _ = scheduler.Shutdown() }()

	assert.Eventually(t, func() bool { return store.Len() == 0 }, 2*time.Second, 10*time.Millisecond)

	_, err = NewJanitor(store, 0)
	assert.Error(t, err)
}

func TestSession_IngestAndSelect(t *testing.T) {
	store := NewStore(Options{})
	session, err := store.Create()
	require.NoError(t, err)

	first, err := session.Ingest(SourceUpload, pngOf(t, 10, 5, color.NRGBA{1, 2, 3, 255}))
	require.NoError(t, err)
	second, err := session.Ingest(SourceUpload, pngOf(t, 4, 4, color.NRGBA{4, 5, 6, 255}))
	require.NoError(t, err)
	assert.Equal(t, 4, session.Pipeline.Original().Width())

	_, err = session.Ingest(SourceUpload, []byte("garbage"))
	assert.ErrorIs(t, err, pipeline.ErrDecodeFailure)
	assert.Equal(t, 2, session.Gallery.Len(), "undecodable uploads are not added")

	selected, err := session.Select(first.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, selected.ID)
	assert.Equal(t, first.ID, session.Gallery.Active())
	assert.Equal(t, pipeline.RenderParameters{TargetWidth: 10, TargetHeight: 5}, session.Pipeline.Parameters())

	_, err = session.Select(uuid.New())
	assert.ErrorIs(t, err, gallery.ErrNotFound)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestSession_ConcurrentIngestKeepsGalleryInStep(t *testing.T) {
	session, err := NewStore(Options{}).Create()
	require.NoError(t, err)

	uploads := make([][]byte, 24)
	for i := range uploads {
		uploads[i] = pngOf(t, i+1, 2, color.NRGBA{uint8(i), 0, 0, 255})
	}

	for round := 0; round < 10; round++ {
		var wg sync.WaitGroup
		for _, data := range uploads {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := session.Ingest(SourceUpload, data)
				if err != nil {
					assert.ErrorIs(t, err, pipeline.ErrStaleLoad)
				}
			}()
		}
		wg.Wait()

		active, err := session.Gallery.Get(session.Gallery.Active())
		require.NoError(t, err)
		assert.Equal(t, session.Pipeline.Original().Width(), active.Width, "round %d", round)
	}
}

func TestSession_IngestImage(t *testing.T) {
	session, err := NewStore(Options{}).Create()
	require.NoError(t, err)

	entry, err := session.IngestImage(SourceCamera, image.NewNRGBA(image.Rect(0, 0, 7, 3)))
	require.NoError(t, err)
	assert.Equal(t, "image/png", entry.MediaType)
	assert.Equal(t, SourceCamera, entry.Source)
	assert.Equal(t, pipeline.Loaded, session.Pipeline.State())
}

func TestSession_RemoveBackground(t *testing.T) {
	cutout := pngOf(t, 6, 6, color.NRGBA{9, 9, 9, 0})

	t.Run("requires a loaded image", func(t *testing.T) {
		session, _ := NewStore(Options{}).Create()
		_, err := session.RemoveBackground(context.Background(), removerFunc(func(context.Context, []byte) ([]byte, error) {
			t.Fatal("remover should not be called")
			return nil, nil
		}))
		assert.ErrorIs(t, err, pipeline.ErrNoSourceLoaded)
	})

	t.Run("loads the result", func(t *testing.T) {
		session, _ := NewStore(Options{}).Create()
		_, err := session.Ingest(SourceUpload, pngOf(t, 12, 12, color.NRGBA{255, 255, 255, 255}))
		require.NoError(t, err)
		require.NoError(t, session.Pipeline.SetParameter(pipeline.ParamWidth, "6"))

		var sent []byte
		entry, err := session.RemoveBackground(context.Background(), removerFunc(func(_ context.Context, data []byte) ([]byte, error) {
			sent = data
			return cutout, nil
		}))
		require.NoError(t, err)

		cfg, err := png.DecodeConfig(bytes.NewReader(sent))
		require.NoError(t, err)
		assert.Equal(t, 6, cfg.Width, "the current render is what gets sent")

		assert.Equal(t, SourceRemoveBackground, entry.Source)
		assert.Equal(t, entry.ID, session.Gallery.Active())
		assert.Equal(t, 6, session.Pipeline.Original().Width())
	})

	t.Run("remover failure", func(t *testing.T) {
		session, _ := NewStore(Options{}).Create()
		_, _ = session.Ingest(SourceUpload, pngOf(t, 2, 2, color.NRGBA{}))
		_, err := session.RemoveBackground(context.Background(), removerFunc(func(context.Context, []byte) ([]byte, error) {
			return nil, errors.New("boom")
		}))
		assert.ErrorContains(t, err, "boom")
		assert.Equal(t, 1, session.Gallery.Len())
	})

	t.Run("newer upload wins", func(t *testing.T) {
		session, _ := NewStore(Options{}).Create()
		_, _ = session.Ingest(SourceUpload, pngOf(t, 2, 2, color.NRGBA{}))

		_, err := session.RemoveBackground(context.Background(), removerFunc(func(context.Context, []byte) ([]byte, error) {
			_, err := session.Ingest(SourceUpload, pngOf(t, 3, 9, color.NRGBA{}))
			require.NoError(t, err)
			return cutout, nil
		}))
		assert.ErrorIs(t, err, pipeline.ErrStaleLoad)
		assert.Equal(t, 3, session.Pipeline.Original().Width())
		assert.Equal(t, 2, session.Gallery.Len())
	})
}
