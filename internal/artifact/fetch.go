package artifact

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ObjectReference identifies one published build archive in object storage
// together with its owner, as resolved by the build registry.
type ObjectReference struct {
	StorageKey     string `json:"storage_key"`
	OwnerProjectID string `json:"owner_project_id"`
	OwnerUserID    string `json:"owner_user_id"`
}

// Fetcher downloads archive bytes for a resolved object reference into a
// local destination file.
type Fetcher interface {
	Fetch(ctx context.Context, ref ObjectReference, destPath string) error
}

// S3Config holds object storage client configuration.
type S3Config struct {
	Bucket         string
	Region         string
	Endpoint       string
	ForcePathStyle bool
	// MaxSize caps the downloaded archive; the stream is cut off past it so
	// an oversized object never fully lands on disk.
	MaxSize int64
}

// S3Fetcher downloads build archives from S3-compatible object storage.
type S3Fetcher struct {
	client *s3.Client
	cfg    S3Config
}

// NewS3Fetcher creates a fetcher using the ambient AWS credential chain.
func NewS3Fetcher(ctx context.Context, cfg S3Config) (*S3Fetcher, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name cannot be empty")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		if cfg.ForcePathStyle {
			o.UsePathStyle = true
		}
	})

	return &S3Fetcher{client: client, cfg: cfg}, nil
}

// Fetch streams the object to destPath. Objects larger than the configured
// cap abort mid-stream with ErrTooLarge semantics left to the caller (the
// partial file is removed here).
func (f *S3Fetcher) Fetch(ctx context.Context, ref ObjectReference, destPath string) error {
	out, err := f.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(f.cfg.Bucket),
		Key:    aws.String(ref.StorageKey),
	})
	if err != nil {
		return fmt.Errorf("get object %s: %w", ref.StorageKey, err)
	}
	defer out.Body.Close()

	if f.cfg.MaxSize > 0 && out.ContentLength != nil && *out.ContentLength > f.cfg.MaxSize {
		return fmt.Errorf("object is %d bytes, limit %d", *out.ContentLength, f.cfg.MaxSize)
	}

	dst, err := os.OpenFile(destPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("create destination: %w", err)
	}
	defer dst.Close()

	reader := io.Reader(out.Body)
	if f.cfg.MaxSize > 0 {
		reader = io.LimitReader(out.Body, f.cfg.MaxSize+1)
	}
	written, err := io.Copy(dst, reader)
	if err != nil {
		os.Remove(destPath)
		return fmt.Errorf("download %s: %w", ref.StorageKey, err)
	}
	if f.cfg.MaxSize > 0 && written > f.cfg.MaxSize {
		os.Remove(destPath)
		return fmt.Errorf("object exceeds %d byte limit", f.cfg.MaxSize)
	}
	return nil
}
