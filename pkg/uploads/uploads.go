// Package uploads issues presigned S3 upload URLs for meal images and
// removes images that are no longer referenced.
package uploads

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.opentelemetry.io/otel/attribute"

	"github.com/deepworx/mealplan/pkg/tracing"
)

// Config holds configuration for the image store.
type Config struct {
	// Bucket is the S3 bucket holding meal images. Required.
	Bucket string `koanf:"bucket"`

	// Region is the AWS region of the bucket.
	Region string `koanf:"region"`

	// URLExpiration is how long a presigned upload URL stays valid.
	// Defaults to 5 minutes if zero.
	URLExpiration time.Duration `koanf:"url_expiration"`

	// Endpoint overrides the S3 endpoint (e.g., a local MinIO).
	Endpoint string `koanf:"endpoint"`

	// UsePathStyle addresses the bucket in the path instead of the host.
	UsePathStyle bool `koanf:"use_path_style"`
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		Region:        "us-east-1",
		URLExpiration: 5 * time.Minute,
	}
}

// Validate checks that required fields are set.
func (c Config) Validate() error {
	if c.Bucket == "" {
		return ErrBucketRequired
	}
	return nil
}

// Store presigns uploads to and deletes objects from one bucket.
type Store struct {
	client  *s3.Client
	presign *s3.PresignClient
	bucket  string
	expires time.Duration
}

// New creates a Store using the default AWS credential chain.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("create upload store: %w", err)
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	return NewWithClient(client, cfg)
}

// NewWithClient creates a Store around an existing S3 client.
func NewWithClient(client *s3.Client, cfg Config) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("create upload store: %w", err)
	}

	expires := cfg.URLExpiration
	if expires == 0 {
		expires = 5 * time.Minute
	}

	return &Store{
		client:  client,
		presign: s3.NewPresignClient(client),
		bucket:  cfg.Bucket,
		expires: expires,
	}, nil
}

// PresignPut returns a URL the client can PUT the object body to.
func (s *Store) PresignPut(ctx context.Context, key string) (string, error) {
	if key == "" {
		return "", fmt.Errorf("presign upload: %w", ErrKeyRequired)
	}

	return tracing.WithSpanResult(ctx, "uploads.presign_put", func(ctx context.Context) (string, error) {
		req, err := s.presign.PresignPutObject(ctx, &s3.PutObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(key),
		}, s3.WithPresignExpires(s.expires))
		if err != nil {
			return "", fmt.Errorf("presign upload %s: %w", key, err)
		}
		return req.URL, nil
	}, tracing.Attrs(attribute.String("s3.key", key)))
}

// AttachmentURL returns the public URL an uploaded object is served from.
func (s *Store) AttachmentURL(key string) string {
	return fmt.Sprintf("https://%s.s3.amazonaws.com/%s", s.bucket, key)
}

// Delete removes the object stored under key.
func (s *Store) Delete(ctx context.Context, key string) error {
	if key == "" {
		return fmt.Errorf("delete upload: %w", ErrKeyRequired)
	}

	return tracing.WithSpan(ctx, "uploads.delete", func(ctx context.Context) error {
		_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(key),
		})
		if err != nil {
			return fmt.Errorf("delete upload %s: %w", key, err)
		}

		slog.DebugContext(ctx, "upload deleted",
			slog.String("bucket", s.bucket),
			slog.String("key", key),
		)
		return nil
	}, tracing.Attrs(attribute.String("s3.key", key)))
}

// KeyFromURL returns the object key of an attachment URL: everything after
// the last slash.
func KeyFromURL(url string) string {
	return url[strings.LastIndex(url, "/")+1:]
}
