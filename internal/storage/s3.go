package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
)

const defaultS3Region = "us-east-1"

// S3Bucket writes public-read objects to S3 or an S3 compatible endpoint.
type S3Bucket struct {
	api     *s3.Client
	bucket  string
	baseURL string
}

// NewS3Bucket builds the client from static credentials when given, the default chain otherwise.
func NewS3Bucket(ctx context.Context, bucket, baseURL string, cfg S3Config) (*S3Bucket, error) {
	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = defaultS3Region
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(region),
		awsconfig.WithHTTPClient(&http.Client{Timeout: 30 * time.Second}),
	}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("storage: s3 config: %w", err)
	}

	endpoint := strings.TrimRight(strings.TrimSpace(cfg.Endpoint), "/")
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.ForcePathStyle
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})

	if baseURL == "" {
		baseURL = s3PublicBase(endpoint, region, bucket, cfg.ForcePathStyle)
	}
	return &S3Bucket{api: client, bucket: bucket, baseURL: baseURL}, nil
}

func s3PublicBase(endpoint, region, bucket string, pathStyle bool) string {
	switch {
	case endpoint != "":
		return endpoint + "/" + bucket
	case pathStyle:
		return fmt.Sprintf("https://s3.%s.amazonaws.com/%s", region, bucket)
	default:
		return fmt.Sprintf("https://%s.s3.%s.amazonaws.com", bucket, region)
	}
}

func (b *S3Bucket) Put(ctx context.Context, name, contentType string, data []byte) error {
	size := int64(len(data))
	_, err := b.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(b.bucket),
		Key:           aws.String(name),
		Body:          bytes.NewReader(data),
		ContentLength: &size,
		ContentType:   aws.String(contentType),
		ACL:           s3types.ObjectCannedACLPublicRead,
	})
	if err != nil {
		return fmt.Errorf("storage: s3 put %s: %w", name, err)
	}
	return nil
}

func (b *S3Bucket) Delete(ctx context.Context, name string) error {
	_, err := b.api.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(name),
	})
	if err != nil {
		return fmt.Errorf("storage: s3 delete %s: %w", name, err)
	}
	return nil
}

func (b *S3Bucket) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	out, err := b.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(name),
	})
	if err != nil {
		var missing *s3types.NoSuchKey
		if errors.As(err, &missing) {
			return nil, ErrObjectNotFound
		}
		return nil, fmt.Errorf("storage: s3 get %s: %w", name, err)
	}
	return out.Body, nil
}

func (b *S3Bucket) PublicURL(name string) string { return joinURL(b.baseURL, name) }

func (b *S3Bucket) Name() string { return b.bucket }
