package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/authhub/internal/models"
	"github.com/charlesng35/authhub/internal/storage"
	apperrors "github.com/charlesng35/authhub/pkg/errors"
	"github.com/charlesng35/authhub/pkg/logger"
)

// ErrMediaNotFound indicates the media record does not exist.
var ErrMediaNotFound = apperrors.New("MEDIA_NOT_FOUND", "Media not found", http.StatusNotFound)

// MediaService persists uploaded media and its bucket objects.
type MediaService struct {
	db       *gorm.DB
	uploader *storage.Uploader
	log      *zap.Logger
}

// NewMediaService constructs a MediaService instance.
func NewMediaService(db *gorm.DB, uploader *storage.Uploader) (*MediaService, error) {
	if db == nil {
		return nil, errors.New("media service: db is required")
	}
	if uploader == nil {
		return nil, errors.New("media service: uploader is required")
	}
	return &MediaService{db: db, uploader: uploader, log: logger.WithModule("media")}, nil
}

// Create uploads data for userID and records it.
func (s *MediaService) Create(ctx context.Context, userID string, data []byte) (*models.Media, error) {
	ctx = ensureContext(ctx)
	if strings.TrimSpace(userID) == "" {
		return nil, apperrors.ErrUnauthorized
	}

	file, err := s.uploader.Upload(ctx, data)
	if err != nil {
		return nil, err
	}

	media := &models.Media{
		Path:   file.Path,
		Name:   file.Name,
		Type:   file.Type,
		Size:   file.Size,
		UserID: userID,
	}
	if err := s.db.WithContext(ctx).Create(media).Error; err != nil {
		if delErr := s.uploader.Bucket().Delete(ctx, file.Name); delErr != nil {
			s.log.Warn("remove orphaned object", zap.String("name", file.Name), zap.Error(delErr))
		}
		return nil, fmt.Errorf("media service: create: %w", err)
	}
	return media, nil
}

// GetByID loads a media record.
func (s *MediaService) GetByID(ctx context.Context, id string) (*models.Media, error) {
	var media models.Media
	err := s.db.WithContext(ensureContext(ctx)).Where("id = ?", strings.TrimSpace(id)).Take(&media).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrMediaNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("media service: lookup: %w", err)
	}
	return &media, nil
}

// URL returns the public address of media.
func (s *MediaService) URL(media *models.Media) string {
	if media == nil {
		return ""
	}
	return s.uploader.Bucket().PublicURL(media.Name)
}

// Delete removes the object and the record. Only the owner may delete.
func (s *MediaService) Delete(ctx context.Context, userID, id string) error {
	ctx = ensureContext(ctx)

	media, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if media.UserID != userID {
		return apperrors.ErrForbidden
	}

	if err := s.uploader.Bucket().Delete(ctx, media.Name); err != nil {
		return fmt.Errorf("media service: delete object: %w", err)
	}
	if err := s.db.WithContext(ctx).Delete(&models.Media{}, "id = ?", media.ID).Error; err != nil {
		return fmt.Errorf("media service: delete: %w", err)
	}
	return nil
}

// Stream opens the object behind a media record. The caller closes the reader.
func (s *MediaService) Stream(ctx context.Context, id string) (io.ReadCloser, *models.Media, error) {
	ctx = ensureContext(ctx)

	media, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	rc, err := s.uploader.Bucket().Open(ctx, media.Name)
	if errors.Is(err, storage.ErrObjectNotFound) {
		return nil, nil, ErrMediaNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("media service: open: %w", err)
	}
	return rc, media, nil
}
