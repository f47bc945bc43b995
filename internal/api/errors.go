package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rm-hull/deep-fry-editor/internal/editor"
	"github.com/rm-hull/deep-fry-editor/internal/gallery"
	"github.com/rm-hull/deep-fry-editor/internal/ingest"
	"github.com/rm-hull/deep-fry-editor/internal/pipeline"
	log "github.com/sirupsen/logrus"
)

type errorResponse struct {
	Error string `json:"error"`
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, editor.ErrSessionNotFound), errors.Is(err, gallery.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, pipeline.ErrNoSourceLoaded), errors.Is(err, pipeline.ErrStaleLoad):
		return http.StatusConflict
	case errors.Is(err, pipeline.ErrDecodeFailure):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ingest.ErrTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, pipeline.ErrInvalidParameter),
		errors.Is(err, pipeline.ErrUnsupportedFormat),
		errors.Is(err, ingest.ErrInvalidData),
		errors.Is(err, ingest.ErrInvalidFrame),
		errors.Is(err, ingest.ErrNotAnImage),
		errors.Is(err, ingest.ErrNotBase64Data):
		return http.StatusBadRequest
	case errors.Is(err, editor.ErrTooManySessions):
		return http.StatusServiceUnavailable
	case errors.Is(err, editor.ErrRemovalFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func abortWithError(c *gin.Context, err error) {
	status := statusFor(err)
	entry := log.WithFields(log.Fields{
		"status":     status,
		"path":       c.FullPath(),
		"request_id": c.GetString(requestIDKey),
	}).WithError(err)
	if status >= http.StatusInternalServerError {
		entry.Error("Request failed")
	} else {
		entry.Debug("Request rejected")
	}
	c.AbortWithStatusJSON(status, errorResponse{Error: err.Error()})
}
