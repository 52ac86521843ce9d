package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"
	"github.com/sjperalta/clients-api/internal/config"
	"github.com/sjperalta/clients-api/internal/metrics"
	"github.com/sjperalta/clients-api/pkg/logger"
)

// ErrUpload is returned when an object cannot be written to the bucket
var ErrUpload = errors.New("Error al subir archivo a S3")

var _ ObjectStorage = (*S3Storage)(nil)

// s3API is the subset of *s3.Client used here
type s3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	HeadBucket(ctx context.Context, in *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	CreateBucket(ctx context.Context, in *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
}

type s3Presigner interface {
	PresignGetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// S3Storage stores files in an S3-compatible bucket using path-style addressing,
// so every URL it returns has the form {endpoint}/{bucket}/{key}.
type S3Storage struct {
	client     s3API
	presigner  s3Presigner
	endpoint   string
	bucket     string
	signedURLs bool
	signedTTL  time.Duration
	metrics    *metrics.Metrics
}

// S3Option is a functional option for configuring S3Storage
type S3Option func(*S3Storage)

// WithMetrics records failed deletes
func WithMetrics(m *metrics.Metrics) S3Option {
	return func(s *S3Storage) {
		s.metrics = m
	}
}

// NewS3Storage creates a new S3Storage from configuration
func NewS3Storage(ctx context.Context, cfg config.S3Config, opts ...S3Option) (*S3Storage, error) {
	if !cfg.Complete() {
		return nil, config.ErrMissingS3Config
	}
	if _, err := url.Parse(cfg.Endpoint); err != nil {
		return nil, fmt.Errorf("invalid storage endpoint: %w", err)
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = true
		o.BaseEndpoint = aws.String(cfg.Endpoint)
	})

	s := &S3Storage{
		client:     client,
		presigner:  s3.NewPresignClient(client),
		endpoint:   strings.TrimRight(cfg.Endpoint, "/"),
		bucket:     cfg.Bucket,
		signedURLs: cfg.SignedURLs,
		signedTTL:  cfg.SignedURLTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.signedTTL <= 0 {
		s.signedTTL = 7 * 24 * time.Hour
	}
	return s, nil
}

// EnsureBucket creates the bucket if it doesn't exist
func (s *S3Storage) EnsureBucket(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	if err == nil {
		return nil
	}

	var notFound *types.NotFound
	var noSuchBucket *types.NoSuchBucket
	if !errors.As(err, &notFound) && !errors.As(err, &noSuchBucket) {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}

	logger.Info("Creating storage bucket", "bucket", s.bucket)
	_, err = s.client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(s.bucket)})
	if err != nil {
		var alreadyOwned *types.BucketAlreadyOwnedByYou
		if errors.As(err, &alreadyOwned) {
			return nil
		}
		return fmt.Errorf("failed to create bucket: %w", err)
	}
	return nil
}

// Upload writes the file under folder/{uuid}{ext} and returns its URL
func (s *S3Storage) Upload(ctx context.Context, file *File, folder string) (string, error) {
	key := fmt.Sprintf("%s/%s%s", folder, uuid.NewString(), file.Ext())

	input := &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(file.Data),
		ContentType: aws.String(file.ContentType),
	}
	if !s.signedURLs {
		input.ACL = types.ObjectCannedACLPublicRead
	}

	if _, err := s.client.PutObject(ctx, input); err != nil {
		logger.Error("Error uploading to S3", "key", key, "error", err)
		return "", fmt.Errorf("%w: %v", ErrUpload, err)
	}

	if !s.signedURLs {
		return s.publicURL(key), nil
	}

	req, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(s.signedTTL))
	if err != nil {
		// The object is already stored; don't leave it orphaned
		s.Delete(context.WithoutCancel(ctx), s.publicURL(key))
		return "", fmt.Errorf("failed to sign download URL: %w", err)
	}
	return req.URL, nil
}

// Delete removes the object referenced by fileURL. Never fails.
func (s *S3Storage) Delete(ctx context.Context, fileURL string) {
	key := s.keyFromURL(fileURL)
	if key == "" {
		return
	}

	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		logger.Error("Error deleting file from S3", "key", key, "error", err)
		s.metrics.IncStorageDeleteFailure()
	}
}

// keyFromURL returns the object key in a URL produced by Upload (public or
// signed), or "" when the URL does not point into this bucket.
func (s *S3Storage) keyFromURL(fileURL string) string {
	_, key, found := strings.Cut(fileURL, s.bucket+"/")
	if !found {
		return ""
	}
	if i := strings.IndexAny(key, "?#"); i >= 0 {
		key = key[:i]
	}
	if unescaped, err := url.PathUnescape(key); err == nil {
		key = unescaped
	}
	return key
}

func (s *S3Storage) publicURL(key string) string {
	return fmt.Sprintf("%s/%s/%s", s.endpoint, s.bucket, key)
}

// Bucket returns the bucket name
func (s *S3Storage) Bucket() string {
	return s.bucket
}
