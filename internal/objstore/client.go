// Package objstore moves pipeline inputs and GLB outputs between local work
// directories and S3 compatible object storage.
package objstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"

	"github.com/flywave/go-cadmesh/internal/config"
)

const scheme = "s3://"

type Client struct {
	s3Client *s3.Client
	bucket   string
	logger   *zap.Logger
}

func NewClient(cfg config.S3Config, logger *zap.Logger) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	endpoint := endpointURL(cfg.Endpoint, cfg.UseSSL)
	s3Client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint != "" {
			// Path-style addressing for MinIO compatibility
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})

	return &Client{s3Client: s3Client, bucket: cfg.Bucket, logger: logger}, nil
}

func endpointURL(endpoint string, useSSL bool) string {
	if endpoint == "" {
		return ""
	}
	if strings.HasPrefix(endpoint, "http://") || strings.HasPrefix(endpoint, "https://") {
		return endpoint
	}
	if useSSL {
		return "https://" + endpoint
	}
	return "http://" + endpoint
}

// IsURI reports whether s names an object rather than a local path.
func IsURI(s string) bool {
	return strings.HasPrefix(s, scheme)
}

// ParseURI splits s3://bucket/key. A URI without bucket ("s3:///key" or
// "s3://key" when defaultBucket is set) resolves to defaultBucket.
func ParseURI(uri, defaultBucket string) (bucket, key string, err error) {
	if !IsURI(uri) {
		return "", "", fmt.Errorf("not an s3 uri: %q", uri)
	}
	rest := strings.TrimPrefix(uri, scheme)
	if i := strings.IndexByte(rest, '/'); i >= 0 {
		bucket, key = rest[:i], rest[i+1:]
	} else {
		bucket, key = "", rest
	}
	if bucket == "" {
		bucket = defaultBucket
	}
	if bucket == "" || key == "" {
		return "", "", fmt.Errorf("s3 uri %q needs a bucket and a key", uri)
	}
	return bucket, key, nil
}

// Download fetches uri into dir, keeping the object's base name so the
// pipeline can dispatch on its extension.
func (c *Client) Download(ctx context.Context, uri, dir string) (string, error) {
	bucket, key, err := ParseURI(uri, c.bucket)
	if err != nil {
		return "", err
	}
	result, err := c.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return "", fmt.Errorf("failed to get %s: %w", uri, err)
	}
	defer result.Body.Close()

	local := filepath.Join(dir, path.Base(key))
	f, err := os.Create(local)
	if err != nil {
		return "", err
	}
	n, err := io.Copy(f, result.Body)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(local)
		return "", fmt.Errorf("failed to download %s: %w", uri, err)
	}
	c.logger.Debug("object downloaded", zap.String("uri", uri), zap.Int64("bytes", n))
	return local, nil
}

// Upload stores the local file at uri.
func (c *Client) Upload(ctx context.Context, local, uri, contentType string) error {
	bucket, key, err := ParseURI(uri, c.bucket)
	if err != nil {
		return err
	}
	f, err := os.Open(local)
	if err != nil {
		return err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return err
	}
	if info.Size() == 0 {
		return errors.New("refusing to upload an empty file")
	}

	input := &s3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(key),
		Body:          f,
		ContentLength: aws.Int64(info.Size()),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}
	if _, err := c.s3Client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("failed to put %s: %w", uri, err)
	}
	c.logger.Debug("object uploaded", zap.String("uri", uri), zap.Int64("bytes", info.Size()))
	return nil
}
