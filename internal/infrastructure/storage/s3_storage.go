// Package storage mirrors remote media into S3-compatible object storage.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.uber.org/zap"

	"github.com/erp/migrator/internal/domain/migration"
	infraconfig "github.com/erp/migrator/internal/infrastructure/config"
)

// maxMediaSize caps a single sideloaded file
const maxMediaSize = 50 << 20

// Ensure S3MediaStore implements MediaStore
var _ migration.MediaStore = (*S3MediaStore)(nil)

// S3MediaStore copies remote files into a bucket and returns their public URL.
// It is compatible with any S3-compatible storage (AWS S3, RustFS, MinIO, etc.)
type S3MediaStore struct {
	client        *s3.Client
	httpClient    *http.Client
	bucket        string
	endpoint      string
	pathStyle     bool
	publicBaseURL string
	logger        *zap.Logger
}

// S3MediaStoreOption is a functional option for configuring S3MediaStore
type S3MediaStoreOption func(*S3MediaStore)

// WithLogger sets a custom logger for S3MediaStore
func WithLogger(logger *zap.Logger) S3MediaStoreOption {
	return func(s *S3MediaStore) {
		s.logger = logger
	}
}

// WithHTTPClient sets the client used to download source files
func WithHTTPClient(client *http.Client) S3MediaStoreOption {
	return func(s *S3MediaStore) {
		s.httpClient = client
	}
}

// NewS3MediaStore creates a new S3MediaStore from configuration.
func NewS3MediaStore(cfg *infraconfig.StorageConfig, opts ...S3MediaStoreOption) (*S3MediaStore, error) {
	if cfg == nil {
		return nil, errors.New("storage configuration is required")
	}
	if cfg.Bucket == "" {
		return nil, errors.New("storage bucket is required")
	}
	if cfg.AccessKey == "" {
		return nil, errors.New("storage access key is required")
	}
	if cfg.SecretKey == "" {
		return nil, errors.New("storage secret key is required")
	}

	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = "http://localhost:9000"
	}
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		if cfg.UseSSL {
			endpoint = "https://" + endpoint
		} else {
			endpoint = "http://" + endpoint
		}
	}
	if _, err := url.Parse(endpoint); err != nil {
		return nil, fmt.Errorf("invalid storage endpoint: %w", err)
	}

	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	awsCfg, err := config.LoadDefaultConfig(context.Background(),
		config.WithRegion(region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey,
			cfg.SecretKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
		o.BaseEndpoint = aws.String(endpoint)
	})

	store := &S3MediaStore{
		client:        client,
		httpClient:    &http.Client{Timeout: 60 * time.Second},
		bucket:        cfg.Bucket,
		endpoint:      strings.TrimSuffix(endpoint, "/"),
		pathStyle:     cfg.UsePathStyle,
		publicBaseURL: strings.TrimSuffix(cfg.PublicBaseURL, "/"),
		logger:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(store)
	}
	return store, nil
}

// Sideload copies sourceURL to key unless the object already exists, and
// returns the URL the local store should reference.
func (s *S3MediaStore) Sideload(ctx context.Context, sourceURL, key string) (string, error) {
	if key == "" {
		return "", errors.New("storage key is required")
	}

	exists, err := s.objectExists(ctx, key)
	if err != nil {
		return "", err
	}
	if exists {
		return s.PublicURL(key), nil
	}

	data, contentType, err := s.download(ctx, sourceURL)
	if err != nil {
		return "", err
	}
	if err := s.upload(ctx, key, data, contentType); err != nil {
		return "", err
	}

	s.logger.Debug("Sideloaded media",
		zap.String("source", sourceURL),
		zap.String("key", key),
		zap.Int("bytes", len(data)),
	)
	return s.PublicURL(key), nil
}

func (s *S3MediaStore) download(ctx context.Context, sourceURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("invalid media url %q: %w", sourceURL, err)
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("%w: download %s: %v", migration.ErrRemoteUnavailable, sourceURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("%w: download %s: status %d", migration.ErrRemoteRequestFailed, sourceURL, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxMediaSize+1))
	if err != nil {
		return nil, "", fmt.Errorf("read %s: %w", sourceURL, err)
	}
	if len(data) > maxMediaSize {
		return nil, "", fmt.Errorf("%w: %s exceeds %d bytes", migration.ErrRemoteRequestFailed, sourceURL, maxMediaSize)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	return data, contentType, nil
}

// objectExists checks if an object exists in storage.
func (s *S3MediaStore) objectExists(ctx context.Context, key string) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var notFound *types.NotFound
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &notFound) || errors.As(err, &noSuchKey) {
			return false, nil
		}
		// Some S3-compatible services report a missing key differently
		if strings.Contains(err.Error(), "NotFound") || strings.Contains(err.Error(), "NoSuchKey") {
			return false, nil
		}
		return false, fmt.Errorf("failed to check object existence: %w", err)
	}
	return true, nil
}

// upload puts data under key
func (s *S3MediaStore) upload(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("failed to upload object: %w", err)
	}
	return nil
}

// PublicURL returns the URL an object is served from
func (s *S3MediaStore) PublicURL(key string) string {
	if s.publicBaseURL != "" {
		return s.publicBaseURL + "/" + key
	}
	if s.pathStyle {
		return s.endpoint + "/" + path.Join(s.bucket, key)
	}
	u, err := url.Parse(s.endpoint)
	if err != nil {
		return s.endpoint + "/" + path.Join(s.bucket, key)
	}
	return u.Scheme + "://" + s.bucket + "." + u.Host + "/" + key
}
