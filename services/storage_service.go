package services

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-xray-sdk-go/instrumentation/awsv2"
)

// BundleStorage stores opaque serialized model bundles by key. The bundle
// text is base64 produced by the interpreter; it is stored and returned
// verbatim, never inspected.
type BundleStorage interface {
	SaveBundle(ctx context.Context, key string, bundle string) error
	GetBundle(ctx context.Context, key string) (string, error)
	DeleteBundle(ctx context.Context, key string) error
}

// LocalBundleStorage implements BundleStorage using the local filesystem
type LocalBundleStorage struct {
	basePath string
}

func NewLocalBundleStorage(basePath string) (*LocalBundleStorage, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, err
	}
	return &LocalBundleStorage{basePath: basePath}, nil
}

func (s *LocalBundleStorage) SaveBundle(ctx context.Context, key string, bundle string) error {
	fullPath := filepath.Join(s.basePath, key)

	dir := filepath.Dir(fullPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	return os.WriteFile(fullPath, []byte(bundle), 0644)
}

func (s *LocalBundleStorage) GetBundle(ctx context.Context, key string) (string, error) {
	fullPath := filepath.Join(s.basePath, key)
	data, err := os.ReadFile(fullPath)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (s *LocalBundleStorage) DeleteBundle(ctx context.Context, key string) error {
	fullPath := filepath.Join(s.basePath, key)
	return os.Remove(fullPath)
}

// S3BundleStorage implements BundleStorage using AWS S3
type S3BundleStorage struct {
	client *s3.Client
	bucket string
}

func NewS3BundleStorage(bucket string) (*S3BundleStorage, error) {
	cfg, err := config.LoadDefaultConfig(context.Background())
	if err != nil {
		return nil, err
	}

	// Instrument AWS SDK v2 with X-Ray for automatic S3 operation tracing
	awsv2.AWSV2Instrumentor(&cfg.APIOptions)

	client := s3.NewFromConfig(cfg)
	return &S3BundleStorage{client: client, bucket: bucket}, nil
}

func (s *S3BundleStorage) SaveBundle(ctx context.Context, key string, bundle string) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        strings.NewReader(bundle),
		ContentType: aws.String("application/octet-stream"),
	})
	return err
}

func (s *S3BundleStorage) GetBundle(ctx context.Context, key string) (string, error) {
	output, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return "", err
	}
	defer output.Body.Close()

	data, err := io.ReadAll(output.Body)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (s *S3BundleStorage) DeleteBundle(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	return err
}

// NewBundleStorage creates the appropriate storage backend based on environment
func NewBundleStorage(storageType, pathOrBucket string) (BundleStorage, error) {
	switch storageType {
	case "s3":
		return NewS3BundleStorage(pathOrBucket)
	case "local":
		return NewLocalBundleStorage(pathOrBucket)
	default:
		return nil, fmt.Errorf("unknown storage type: %s", storageType)
	}
}

// BundleKey generates the storage key for a model's serialized bundle
func BundleKey(modelID string) string {
	return fmt.Sprintf("models/bundles/%s.b64", modelID)
}
