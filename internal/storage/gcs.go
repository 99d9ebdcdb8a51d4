package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// GCSBucket writes publicly readable objects to Google Cloud Storage.
type GCSBucket struct {
	client  *gcs.Client
	bucket  string
	baseURL string
}

// NewGCSBucket creates a client using the credentials file or application default credentials.
func NewGCSBucket(ctx context.Context, bucket, baseURL string, cfg GCSConfig) (*GCSBucket, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	client, err := gcs.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("storage: gcs client: %w", err)
	}
	if baseURL == "" {
		baseURL = "https://storage.googleapis.com/" + bucket
	}
	return &GCSBucket{client: client, bucket: bucket, baseURL: baseURL}, nil
}

func (b *GCSBucket) Put(ctx context.Context, name, contentType string, data []byte) error {
	w := b.client.Bucket(b.bucket).Object(name).NewWriter(ctx)
	w.ACL = []gcs.ACLRule{{Entity: gcs.AllUsers, Role: gcs.RoleReader}}
	w.ContentType = contentType

	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return fmt.Errorf("storage: gcs write %s: %w", name, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("storage: gcs close %s: %w", name, err)
	}
	return nil
}

func (b *GCSBucket) Delete(ctx context.Context, name string) error {
	err := b.client.Bucket(b.bucket).Object(name).Delete(ctx)
	if errors.Is(err, gcs.ErrObjectNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("storage: gcs delete %s: %w", name, err)
	}
	return nil
}

func (b *GCSBucket) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	r, err := b.client.Bucket(b.bucket).Object(name).NewReader(ctx)
	if errors.Is(err, gcs.ErrObjectNotExist) {
		return nil, ErrObjectNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("storage: gcs open %s: %w", name, err)
	}
	return r, nil
}

func (b *GCSBucket) PublicURL(name string) string { return joinURL(b.baseURL, name) }

func (b *GCSBucket) Name() string { return b.bucket }

// Close releases the underlying client.
func (b *GCSBucket) Close() error { return b.client.Close() }
