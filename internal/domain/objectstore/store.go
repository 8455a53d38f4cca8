// Package objectstore uploads diagnosis images to S3-compatible storage
// (MinIO in the default deployment) and hands back publicly fetchable URLs.
package objectstore

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	platformcfg "smartagri-server-go/internal/platform/config"
	"smartagri-server-go/internal/platform/errors"
)

// Store wraps an S3 client bound to one bucket.
type Store struct {
	client   *s3.Client
	bucket   string
	endpoint string
	secure   bool
	logger   *slog.Logger
}

// New builds a Store from configuration and verifies the bucket exists,
// creating it when absent.
func New(ctx context.Context, cfg platformcfg.ObjectStoreConfig, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		),
	)
	if err != nil {
		return nil, errors.Wrap(errors.KindStorage, "objectstore.New", "load aws config", err)
	}

	scheme := "http"
	if cfg.Secure {
		scheme = "https"
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(fmt.Sprintf("%s://%s", scheme, cfg.Endpoint))
		o.UsePathStyle = true // MinIO serves buckets by path, not subdomain
	})

	s := &Store{
		client:   client,
		bucket:   cfg.Bucket,
		endpoint: cfg.Endpoint,
		secure:   cfg.Secure,
		logger:   logger,
	}
	if err := s.ensureBucket(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureBucket(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	if err == nil {
		return nil
	}
	if _, err := s.client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(s.bucket)}); err != nil {
		if strings.Contains(err.Error(), "BucketAlreadyOwnedByYou") {
			return nil
		}
		return errors.Wrap(errors.KindStorage, "objectstore.ensureBucket",
			fmt.Sprintf("create bucket %s", s.bucket), err)
	}
	s.logger.Info("created object storage bucket", "bucket", s.bucket)
	return nil
}

// UploadImage stores the image under filename and returns its public URL.
func (s *Store) UploadImage(ctx context.Context, data io.Reader, filename, contentType string) (string, error) {
	if contentType == "" {
		contentType = "image/jpeg"
	}
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(filename),
		Body:        data,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", errors.Wrap(errors.KindStorage, "objectstore.UploadImage",
			fmt.Sprintf("upload %s", filename), err)
	}
	return s.PublicURL(filename), nil
}

// PublicURL builds the direct-access URL for an object.
func (s *Store) PublicURL(filename string) string {
	scheme := "http"
	if s.secure {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s/%s/%s", scheme, s.endpoint, s.bucket, filename)
}

// Bucket returns the configured bucket name.
func (s *Store) Bucket() string {
	return s.bucket
}
