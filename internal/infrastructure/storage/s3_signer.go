// Package storage provides signed access to the object store holding digital downloads.
package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"

	"github.com/beizaplus/commerce-sync/internal/domain/commerce"
	infraconfig "github.com/beizaplus/commerce-sync/internal/infrastructure/config"
)

// DefaultURLTTL is used when a caller passes a non-positive ttl
const DefaultURLTTL = time.Hour

// Ensure S3Signer implements DownloadURLSigner
var _ commerce.DownloadURLSigner = (*S3Signer)(nil)

// S3Signer presigns GET requests against S3 or any S3-compatible store
// (MinIO, RustFS, R2). The bucket comes from the asset's storage path, so one
// signer serves every bucket the credentials can read.
type S3Signer struct {
	presignClient *s3.PresignClient
	defaultTTL    time.Duration
	logger        *zap.Logger
}

// S3SignerOption is a functional option for configuring S3Signer
type S3SignerOption func(*S3Signer)

// WithLogger sets a custom logger for S3Signer
func WithLogger(logger *zap.Logger) S3SignerOption {
	return func(s *S3Signer) {
		s.logger = logger
	}
}

// WithDefaultTTL sets the ttl used when callers pass zero
func WithDefaultTTL(d time.Duration) S3SignerOption {
	return func(s *S3Signer) {
		s.defaultTTL = d
	}
}

// NewS3Signer creates a signer from configuration.
// Static credentials are used when both keys are set, otherwise the default
// AWS credential chain (env, shared config, instance role) applies.
func NewS3Signer(ctx context.Context, cfg *infraconfig.StorageConfig, opts ...S3SignerOption) (*S3Signer, error) {
	if cfg == nil {
		return nil, errors.New("storage configuration is required")
	}
	if (cfg.AccessKeyID == "") != (cfg.SecretAccessKey == "") {
		return nil, errors.New("storage access key id and secret access key must be set together")
	}

	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if cfg.AccessKeyID != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS config: %w", err)
	}

	var endpoint string
	if cfg.Endpoint != "" {
		endpoint = cfg.Endpoint
		if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
			endpoint = "https://" + endpoint
		}
		if _, err := url.Parse(endpoint); err != nil {
			return nil, fmt.Errorf("invalid storage endpoint: %w", err)
		}
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})

	signer := &S3Signer{
		presignClient: s3.NewPresignClient(client),
		defaultTTL:    DefaultURLTTL,
		logger:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(signer)
	}
	if signer.defaultTTL <= 0 {
		signer.defaultTTL = DefaultURLTTL
	}
	return signer, nil
}

// SignedURL returns a presigned GET URL for bucket/key and the instant it stops working
func (s *S3Signer) SignedURL(ctx context.Context, bucket, key string, ttl time.Duration) (string, time.Time, error) {
	if bucket == "" {
		return "", time.Time{}, errors.New("storage bucket is required")
	}
	if key == "" {
		return "", time.Time{}, errors.New("storage key is required")
	}
	if ttl <= 0 {
		ttl = s.defaultTTL
	}

	req, err := s.presignClient.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to generate download URL: %w", err)
	}

	s.logger.Debug("Signed download URL",
		zap.String("bucket", bucket),
		zap.String("key", key),
		zap.Duration("ttl", ttl),
	)
	return req.URL, time.Now().Add(ttl), nil
}
