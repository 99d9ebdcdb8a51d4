package storage

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"github.com/charlesng35/authhub/internal/models"
	apperrors "github.com/charlesng35/authhub/pkg/errors"
)

// ErrUnsupportedMedia is returned when content is not a recognised image or video.
var ErrUnsupportedMedia = apperrors.NewBadRequest("Only image and video files are allowed")

// Detected describes the sniffed type of an upload.
type Detected struct {
	MIME      string
	Extension string
	Type      models.MediaType
}

// Detect sniffs data and accepts only images and videos.
func Detect(data []byte) (Detected, error) {
	if len(data) == 0 {
		return Detected{}, apperrors.NewBadRequest("file is empty")
	}

	mt := mimetype.Detect(data)
	if mt == nil || mt.Is("application/octet-stream") || mt.Extension() == "" {
		return Detected{}, ErrUnsupportedMedia
	}

	major, _, _ := strings.Cut(mt.String(), "/")
	kind := models.MediaType(major)
	if !kind.Valid() {
		return Detected{}, ErrUnsupportedMedia
	}

	contentType, _, _ := strings.Cut(mt.String(), ";")
	return Detected{MIME: contentType, Extension: mt.Extension(), Type: kind}, nil
}

// UploadedFile describes an object written by Uploader.
type UploadedFile struct {
	Path        string
	Name        string
	Size        int64
	Type        models.MediaType
	ContentType string
}

// Uploader names and stores media objects in a bucket.
type Uploader struct {
	bucket Bucket
	now    func() time.Time

	mu   sync.Mutex
	last int64
}

// UploaderOption customises an Uploader.
type UploaderOption func(*Uploader)

// WithUploadClock overrides the clock used to name objects.
func WithUploadClock(clock func() time.Time) UploaderOption {
	return func(u *Uploader) {
		if clock != nil {
			u.now = clock
		}
	}
}

// NewUploader wraps bucket.
func NewUploader(bucket Bucket, opts ...UploaderOption) *Uploader {
	u := &Uploader{bucket: bucket, now: time.Now}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// Bucket returns the destination bucket.
func (u *Uploader) Bucket() Bucket { return u.bucket }

// Upload stores data as file-<unix millis>.<ext> and returns its bucket path.
func (u *Uploader) Upload(ctx context.Context, data []byte) (*UploadedFile, error) {
	detected, err := Detect(data)
	if err != nil {
		return nil, err
	}

	name := fmt.Sprintf("file-%d%s", u.stamp(), detected.Extension)
	if err := u.bucket.Put(ctx, name, detected.MIME, data); err != nil {
		return nil, err
	}

	return &UploadedFile{
		Path:        u.bucket.Name() + "/" + name,
		Name:        name,
		Size:        int64(len(data)),
		Type:        detected.Type,
		ContentType: detected.MIME,
	}, nil
}

// stamp is the current unix millisecond, bumped so names stay unique within the process.
func (u *Uploader) stamp() int64 {
	u.mu.Lock()
	defer u.mu.Unlock()

	ms := u.now().UnixMilli()
	if ms <= u.last {
		ms = u.last + 1
	}
	u.last = ms
	return ms
}
