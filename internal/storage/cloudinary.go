package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
)

// CloudinaryBucket uploads media into a Cloudinary folder named after the bucket.
type CloudinaryBucket struct {
	cld    *cloudinary.Cloudinary
	folder string
	client *http.Client
}

// NewCloudinaryBucket connects with a cloudinary:// URL.
func NewCloudinaryBucket(folder string, cfg CloudinaryConfig) (*CloudinaryBucket, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, errors.New("storage: cloudinary url is required")
	}
	cld, err := cloudinary.NewFromURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("storage: cloudinary client: %w", err)
	}
	cld.Config.URL.Secure = true
	return &CloudinaryBucket{cld: cld, folder: folder, client: http.DefaultClient}, nil
}

// publicID drops the extension; Cloudinary stores the format separately.
func (b *CloudinaryBucket) publicID(name string) string {
	return b.folder + "/" + strings.TrimSuffix(name, path.Ext(name))
}

func (b *CloudinaryBucket) Put(ctx context.Context, name, _ string, data []byte) error {
	result, err := b.cld.Upload.Upload(ctx, bytes.NewReader(data), uploader.UploadParams{
		PublicID:     b.publicID(name),
		ResourceType: "auto",
		Overwrite:    api.Bool(true),
	})
	if err != nil {
		return fmt.Errorf("storage: cloudinary upload %s: %w", name, err)
	}
	if result.Error.Message != "" {
		return fmt.Errorf("storage: cloudinary upload %s: %s", name, result.Error.Message)
	}
	return nil
}

func (b *CloudinaryBucket) Delete(ctx context.Context, name string) error {
	_, err := b.cld.Upload.Destroy(ctx, uploader.DestroyParams{
		PublicID:     b.publicID(name),
		ResourceType: resourceType(name),
	})
	if err != nil {
		return fmt.Errorf("storage: cloudinary destroy %s: %w", name, err)
	}
	return nil
}

func (b *CloudinaryBucket) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	url := b.PublicURL(name)
	if url == "" {
		return nil, ErrObjectNotFound
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("storage: cloudinary fetch %s: %w", name, err)
	}
	if resp.StatusCode == http.StatusNotFound {
		resp.Body.Close()
		return nil, ErrObjectNotFound
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("storage: cloudinary fetch %s: status %d", name, resp.StatusCode)
	}
	return resp.Body, nil
}

func (b *CloudinaryBucket) PublicURL(name string) string {
	id := b.folder + "/" + name
	asset, err := b.cld.Image(id)
	if resourceType(name) == "video" {
		asset, err = b.cld.Video(id)
	}
	if err != nil {
		return ""
	}
	url, err := asset.String()
	if err != nil {
		return ""
	}
	return url
}

func (b *CloudinaryBucket) Name() string { return b.folder }

var videoExtensions = map[string]bool{
	".mp4": true, ".m4v": true, ".mov": true, ".webm": true, ".mkv": true,
	".avi": true, ".flv": true, ".3gp": true, ".mpeg": true, ".ogv": true,
}

func resourceType(name string) string {
	if videoExtensions[strings.ToLower(path.Ext(name))] {
		return "video"
	}
	return "image"
}
