package handlers

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/charlesng35/authhub/internal/models"
	"github.com/charlesng35/authhub/internal/services"
	appErrors "github.com/charlesng35/authhub/pkg/errors"
	"github.com/charlesng35/authhub/pkg/logger"
	"github.com/charlesng35/authhub/pkg/response"
)

// DefaultMaxUploadBytes bounds a single upload when no limit is configured.
const DefaultMaxUploadBytes int64 = 25 << 20

const (
	mediaFormField   = "file"
	multipartSlack   = 1 << 20
	sniffHeaderBytes = 3072
)

var errMediaTooLarge = appErrors.New("MEDIA_TOO_LARGE", "File is too large", http.StatusRequestEntityTooLarge)

// MediaHandler accepts uploads and serves stored media.
type MediaHandler struct {
	media    *services.MediaService
	maxBytes int64
}

// NewMediaHandler constructs a MediaHandler. A non-positive maxBytes falls back to DefaultMaxUploadBytes.
func NewMediaHandler(media *services.MediaService, maxBytes int64) (*MediaHandler, error) {
	if media == nil {
		return nil, errors.New("media handler: media service is required")
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxUploadBytes
	}
	return &MediaHandler{media: media, maxBytes: maxBytes}, nil
}

type mediaResponse struct {
	*models.Media
	URL string `json:"url"`
}

// POST /api/v1/media
func (h *MediaHandler) Upload(c *gin.Context) {
	identity, ok := requireIdentity(c)
	if !ok {
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBytes+multipartSlack)
	header, err := c.FormFile(mediaFormField)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.Error(c, errMediaTooLarge)
			return
		}
		response.Error(c, appErrors.NewBadRequest(fmt.Sprintf("multipart field %q is required", mediaFormField)))
		return
	}
	if header.Size > h.maxBytes {
		response.Error(c, errMediaTooLarge)
		return
	}

	file, err := header.Open()
	if err != nil {
		response.Error(c, appErrors.NewBadRequest("unable to read uploaded file"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, h.maxBytes+1))
	if err != nil {
		response.Error(c, appErrors.NewBadRequest("unable to read uploaded file"))
		return
	}
	if int64(len(data)) > h.maxBytes {
		response.Error(c, errMediaTooLarge)
		return
	}

	media, err := h.media.Create(requestContext(c), identity.UserID, data)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, "Media uploaded", gin.H{"media": h.present(media)})
}

// GET /api/v1/media/:id
func (h *MediaHandler) Get(c *gin.Context) {
	id, ok := mediaID(c)
	if !ok {
		return
	}

	media, err := h.media.GetByID(requestContext(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, "Media details", gin.H{"media": h.present(media)})
}

// GET /api/v1/media/:id/content
func (h *MediaHandler) Content(c *gin.Context) {
	id, ok := mediaID(c)
	if !ok {
		return
	}

	rc, media, err := h.media.Stream(requestContext(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer rc.Close()

	reader := bufio.NewReaderSize(rc, sniffHeaderBytes)
	head, _ := reader.Peek(sniffHeaderBytes)
	contentType := mimetype.Detect(head).String()

	c.Header("Cache-Control", "private, max-age=3600")
	c.DataFromReader(http.StatusOK, media.Size, contentType, reader, map[string]string{
		"Content-Disposition": fmt.Sprintf("inline; filename=%q", media.Name),
	})

	if err := c.Errors.Last(); err != nil {
		logger.WithModule("media").Warn("stream media", zap.String("media_id", id), zap.Error(err))
	}
}

// DELETE /api/v1/media/:id
func (h *MediaHandler) Delete(c *gin.Context) {
	identity, ok := requireIdentity(c)
	if !ok {
		return
	}
	id, ok := mediaID(c)
	if !ok {
		return
	}

	if err := h.media.Delete(requestContext(c), identity.UserID, id); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, "Media deleted", nil)
}

func (h *MediaHandler) present(media *models.Media) mediaResponse {
	return mediaResponse{Media: media, URL: h.media.URL(media)}
}

func mediaID(c *gin.Context) (string, bool) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		response.Error(c, services.ErrMediaNotFound)
		return "", false
	}
	return id, true
}
