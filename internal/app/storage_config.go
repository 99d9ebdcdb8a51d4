package app

import (
	"strings"

	"github.com/charlesng35/authhub/internal/storage"
)

const defaultMaxUploadBytes = 25 << 20

// BucketConfig converts StorageConfig into the storage package representation.
func (c StorageConfig) BucketConfig() storage.Config {
	return storage.Config{
		Driver:        strings.ToLower(strings.TrimSpace(c.Driver)),
		Bucket:        strings.TrimSpace(c.Bucket),
		PublicBaseURL: strings.TrimRight(strings.TrimSpace(c.PublicBaseURL), "/"),
		GCS: storage.GCSConfig{
			ProjectID:       c.GCS.ProjectID,
			CredentialsFile: c.GCS.CredentialsFile,
		},
		S3: storage.S3Config{
			Endpoint:       c.S3.Endpoint,
			Region:         c.S3.Region,
			AccessKey:      c.S3.AccessKey,
			SecretKey:      c.S3.SecretKey,
			ForcePathStyle: c.S3.ForcePathStyle,
		},
		Cloudinary: storage.CloudinaryConfig{URL: c.Cloudinary.URL},
	}
}

// UploadLimit returns the maximum accepted upload size in bytes.
func (c StorageConfig) UploadLimit() int64 {
	if c.MaxUploadBytes <= 0 {
		return defaultMaxUploadBytes
	}
	return c.MaxUploadBytes
}
