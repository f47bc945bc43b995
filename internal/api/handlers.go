package api

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rm-hull/deep-fry-editor/internal/editor"
	"github.com/rm-hull/deep-fry-editor/internal/gallery"
	"github.com/rm-hull/deep-fry-editor/internal/imaging"
	"github.com/rm-hull/deep-fry-editor/internal/ingest"
	"github.com/rm-hull/deep-fry-editor/internal/pipeline"
	"github.com/rm-hull/deep-fry-editor/internal/removebg"
)

const (
	sessionKey = "session"

	defaultFrameDelay = 1.0
	maxFrameDelay     = 60.0
)

type Server struct {
	store         *editor.Store
	remover       removebg.Remover
	maxUploadSize int64
}

func NewServer(store *editor.Store, remover removebg.Remover, maxUploadSize int64) *Server {
	if maxUploadSize <= 0 {
		maxUploadSize = ingest.DefaultMaxUploadSize
	}
	return &Server{store: store, remover: remover, maxUploadSize: maxUploadSize}
}

// Register mounts the editor endpoints under /v1.
func (s *Server) Register(r gin.IRouter) {
	v1 := r.Group("/v1")
	v1.POST("/sessions", s.createSession)

	sessions := v1.Group("/sessions/:id", s.loadSession)
	sessions.GET("", s.getSession)
	sessions.DELETE("", s.deleteSession)
	sessions.POST("/images", s.uploadImages)
	sessions.POST("/snapshot", s.snapshot)
	sessions.PUT("/params", s.setParameters)
	sessions.PUT("/params/:name", s.setParameter)
	sessions.GET("/current", s.current)
	sessions.GET("/export", s.export)
	sessions.POST("/remove-background", s.removeBackground)
	sessions.GET("/gallery", s.listGallery)
	sessions.GET("/gallery/animation", s.animateGallery)
	sessions.POST("/gallery/:entry/select", s.selectEntry)
	sessions.DELETE("/gallery/:entry", s.removeEntry)
}

type sourceInfo struct {
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Format string `json:"format,omitempty"`
}

type sessionResponse struct {
	ID          uuid.UUID                  `json:"id"`
	State       string                     `json:"state"`
	Parameters  *pipeline.RenderParameters `json:"parameters,omitempty"`
	Source      *sourceInfo                `json:"source,omitempty"`
	Sequence    uint64                     `json:"sequence"`
	GallerySize int                        `json:"gallerySize"`
	ActiveEntry *uuid.UUID                 `json:"activeEntry,omitempty"`
	CreatedAt   time.Time                  `json:"createdAt"`
	LastUsed    time.Time                  `json:"lastUsed"`
}

func describe(session *editor.Session) sessionResponse {
	resp := sessionResponse{
		ID:          session.ID,
		State:       session.Pipeline.State().String(),
		GallerySize: session.Gallery.Len(),
		CreatedAt:   session.CreatedAt,
		LastUsed:    session.LastUsed(),
	}
	if src := session.Pipeline.Original(); src != nil {
		params := session.Pipeline.Parameters()
		resp.Parameters = &params
		resp.Source = &sourceInfo{Width: src.Width(), Height: src.Height(), Format: src.Format()}
	}
	if current := session.Pipeline.Current(); current != nil {
		resp.Sequence = uint64(current.Sequence)
	}
	if active := session.Gallery.Active(); active != uuid.Nil {
		resp.ActiveEntry = &active
	}
	return resp
}

func (s *Server) loadSession(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		abortWithError(c, fmt.Errorf("%w: %q", editor.ErrSessionNotFound, c.Param("id")))
		return
	}
	session, err := s.store.Get(id)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.Set(sessionKey, session)
	c.Next()
}

func sessionFrom(c *gin.Context) *editor.Session {
	return c.MustGet(sessionKey).(*editor.Session)
}

func (s *Server) createSession(c *gin.Context) {
	session, err := s.store.Create()
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.Header("Location", "/v1/sessions/"+session.ID.String())
	c.JSON(http.StatusCreated, describe(session))
}

func (s *Server) getSession(c *gin.Context) {
	c.JSON(http.StatusOK, describe(sessionFrom(c)))
}

func (s *Server) deleteSession(c *gin.Context) {
	if err := s.store.Delete(sessionFrom(c).ID); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type dataURLRequest struct {
	DataURL string `json:"data_url" binding:"required"`
}

type ingestResponse struct {
	Entries []*gallery.Entry `json:"entries"`
	Session sessionResponse  `json:"session"`
}

// uploadImages accepts one or more multipart image_file parts, a JSON
// data_url, or the raw image bytes as the body. Multiple files are loaded in
// order, leaving the last one active.
func (s *Server) uploadImages(c *gin.Context) {
	session := sessionFrom(c)
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.maxUploadSize*4)

	var entries []*gallery.Entry
	contentType := c.ContentType()
	switch {
	case strings.HasPrefix(contentType, "multipart/"):
		form, err := c.MultipartForm()
		if err != nil {
			abortWithError(c, fmt.Errorf("%w: %w", ingest.ErrInvalidData, err))
			return
		}
		files := form.File["image_file"]
		if len(files) == 0 {
			abortWithError(c, fmt.Errorf("%w: no image_file parts", ingest.ErrInvalidData))
			return
		}
		for _, fh := range files {
			f, err := fh.Open()
			if err != nil {
				abortWithError(c, err)
				return
			}
			data, err := ingest.ReadUpload(f, s.maxUploadSize)
			_ = f.Close()
			if err != nil {
				abortWithError(c, err)
				return
			}
			entry, err := session.Ingest(editor.SourceUpload, data)
			if err != nil {
				abortWithError(c, fmt.Errorf("%s: %w", fh.Filename, err))
				return
			}
			entries = append(entries, entry)
		}

	case contentType == gin.MIMEJSON:
		var req dataURLRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			abortWithError(c, fmt.Errorf("%w: %w", ingest.ErrInvalidData, err))
			return
		}
		_, data, err := ingest.ParseDataURL(req.DataURL)
		if err != nil {
			abortWithError(c, err)
			return
		}
		entry, err := session.Ingest(editor.SourceUpload, data)
		if err != nil {
			abortWithError(c, err)
			return
		}
		entries = append(entries, entry)

	default:
		data, err := ingest.ReadUpload(c.Request.Body, s.maxUploadSize)
		if err != nil {
			abortWithError(c, err)
			return
		}
		entry, err := session.Ingest(editor.SourceUpload, data)
		if err != nil {
			abortWithError(c, err)
			return
		}
		entries = append(entries, entry)
	}

	c.JSON(http.StatusCreated, ingestResponse{Entries: entries, Session: describe(session)})
}

func (s *Server) snapshot(c *gin.Context) {
	session := sessionFrom(c)

	width, errW := strconv.Atoi(c.Query("width"))
	height, errH := strconv.Atoi(c.Query("height"))
	if errW != nil || errH != nil {
		abortWithError(c, fmt.Errorf("%w: width and height query parameters are required", ingest.ErrInvalidFrame))
		return
	}

	pix, err := ingest.ReadUpload(c.Request.Body, s.maxUploadSize)
	if err != nil {
		abortWithError(c, err)
		return
	}
	img, err := ingest.FromRaw(pix, width, height)
	if err != nil {
		abortWithError(c, err)
		return
	}
	entry, err := session.IngestImage(editor.SourceCamera, img)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, ingestResponse{Entries: []*gallery.Entry{entry}, Session: describe(session)})
}

func (s *Server) setParameter(c *gin.Context) {
	session := sessionFrom(c)
	value, ok := c.GetQuery("value")
	if !ok {
		value = c.PostForm("value")
	}
	if err := session.Pipeline.SetParameter(c.Param("name"), value); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, describe(session))
}

func (s *Server) setParameters(c *gin.Context) {
	session := sessionFrom(c)
	var params pipeline.RenderParameters
	if err := c.ShouldBindJSON(&params); err != nil {
		abortWithError(c, fmt.Errorf("%w: %w", pipeline.ErrInvalidParameter, err))
		return
	}
	if err := session.Pipeline.SetParameters(params); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, describe(session))
}

func (s *Server) current(c *gin.Context) {
	current := sessionFrom(c).Pipeline.Current()
	if current == nil {
		abortWithError(c, pipeline.ErrNoSourceLoaded)
		return
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, current.Image, imaging.PNG, 1); err != nil {
		abortWithError(c, err)
		return
	}
	c.Header("X-Render-Sequence", strconv.FormatUint(uint64(current.Sequence), 10))
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, imaging.PNG, buf.Bytes())
}

func (s *Server) export(c *gin.Context) {
	format := c.DefaultQuery("format", imaging.PNG)
	quality := imaging.DefaultQuality
	if q, ok := c.GetQuery("quality"); ok {
		if parsed, err := strconv.ParseFloat(q, 64); err == nil {
			quality = parsed
		}
	}

	export, err := sessionFrom(c).Pipeline.ExportCurrent(format, quality)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, export.Filename))
	c.Data(http.StatusOK, export.MediaType, export.Data)
}

func (s *Server) removeBackground(c *gin.Context) {
	session := sessionFrom(c)
	entry, err := session.RemoveBackground(c.Request.Context(), s.remover)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, ingestResponse{Entries: []*gallery.Entry{entry}, Session: describe(session)})
}

type galleryResponse struct {
	Entries     []*gallery.Entry `json:"entries"`
	ActiveEntry *uuid.UUID       `json:"activeEntry,omitempty"`
}

func (s *Server) listGallery(c *gin.Context) {
	g := sessionFrom(c).Gallery
	resp := galleryResponse{Entries: g.List()}
	if active := g.Active(); active != uuid.Nil {
		resp.ActiveEntry = &active
	}
	c.JSON(http.StatusOK, resp)
}

func entryID(c *gin.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("entry"))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %q", gallery.ErrNotFound, c.Param("entry"))
	}
	return id, nil
}

func (s *Server) selectEntry(c *gin.Context) {
	session := sessionFrom(c)
	id, err := entryID(c)
	if err != nil {
		abortWithError(c, err)
		return
	}
	if _, err := session.Select(id); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, describe(session))
}

func (s *Server) removeEntry(c *gin.Context) {
	id, err := entryID(c)
	if err != nil {
		abortWithError(c, err)
		return
	}
	if err := sessionFrom(c).Gallery.Remove(id); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) animateGallery(c *gin.Context) {
	delay := defaultFrameDelay
	if d, ok := c.GetQuery("delay"); ok {
		parsed, err := strconv.ParseFloat(d, 64)
		if err != nil || !(parsed > 0) || parsed > maxFrameDelay {
			abortWithError(c, fmt.Errorf("%w: delay must be in (0, %g] seconds", pipeline.ErrInvalidParameter, maxFrameDelay))
			return
		}
		delay = parsed
	}

	g := sessionFrom(c).Gallery
	if g.Len() == 0 {
		abortWithError(c, fmt.Errorf("%w: gallery is empty", gallery.ErrNotFound))
		return
	}

	data, err := g.Animate(delay)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="gallery.png"`)
	c.Data(http.StatusOK, "image/apng", data)
}
