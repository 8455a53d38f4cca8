package webapi

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"smartagri-server-go/internal/domain/eventbus"
)

const maxUploadBytes = 10 * 1024 * 1024

var allowedUploadTypes = map[string]bool{
	"image/jpeg": true,
	"image/jpg":  true,
	"image/png":  true,
}

// Uploader stores an image and returns its public URL.
type Uploader interface {
	UploadImage(ctx context.Context, data io.Reader, filename, contentType string) (string, error)
}

// UploadResponse describes a stored image.
type UploadResponse struct {
	URL              string `json:"url"`
	Filename         string `json:"filename"`
	OriginalFilename string `json:"original_filename"`
	ContentType      string `json:"content_type"`
}

// UploadService accepts diagnosis images and stores them in object storage.
type UploadService struct {
	store  Uploader
	bus    *eventbus.Bus
	logger *slog.Logger
}

// NewUploadService creates the handler set. bus may be nil.
func NewUploadService(store Uploader, bus *eventbus.Bus, logger *slog.Logger) *UploadService {
	if logger == nil {
		logger = slog.Default()
	}
	return &UploadService{store: store, bus: bus, logger: logger}
}

// Register adds the upload route to the API group.
func (s *UploadService) Register(apiGroup *gin.RouterGroup) {
	apiGroup.POST("/upload", s.handleUpload)
}

func (s *UploadService) handleUpload(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		respondError(c, http.StatusBadRequest, "missing file field", nil)
		return
	}

	contentType := fileHeader.Header.Get("Content-Type")
	if !allowedUploadTypes[contentType] {
		respondError(c, http.StatusBadRequest,
			"unsupported file type: "+contentType+" (allowed: image/jpeg, image/jpg, image/png)", nil)
		return
	}
	if fileHeader.Size == 0 {
		respondError(c, http.StatusBadRequest, "empty file", nil)
		return
	}
	if fileHeader.Size > maxUploadBytes {
		respondError(c, http.StatusBadRequest, "file too large, maximum is 10 MiB", nil)
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		respondError(c, http.StatusInternalServerError, "read uploaded file", nil)
		return
	}
	defer file.Close()

	uniqueName := uuid.NewString() + "_" + fileHeader.Filename
	url, err := s.store.UploadImage(c.Request.Context(), file, uniqueName, contentType)
	if err != nil {
		s.logger.Error("image upload failed", "filename", uniqueName, "error", err)
		respondError(c, http.StatusServiceUnavailable, "failed to store image", nil)
		return
	}

	if s.bus != nil {
		s.bus.Publish(eventbus.TopicImageUploaded, uniqueName, url)
	}
	s.logger.Info("image uploaded", "filename", uniqueName, "bytes", fileHeader.Size)

	respondSuccess(c, http.StatusOK, UploadResponse{
		URL:              url,
		Filename:         uniqueName,
		OriginalFilename: fileHeader.Filename,
		ContentType:      contentType,
	}, "")
}
