package fetch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// DownloaderConfig configures the S3 download manager.
type DownloaderConfig struct {
	// Concurrency is the number of parts fetched in parallel.
	// Default: NumCPU clamped to [4, 16].
	Concurrency int
	// PartSize is the size of each ranged GET. Default: 16MB.
	PartSize int64
}

// DefaultDownloaderConfig returns defaults sized to the current machine.
func DefaultDownloaderConfig() DownloaderConfig {
	return DownloaderConfig{
		Concurrency: min(max(runtime.NumCPU(), 4), 16),
		PartSize:    16 * 1024 * 1024,
	}
}

// Client downloads objects with the S3 download manager.
type Client struct {
	s3      *s3.Client
	manager *manager.Downloader
	config  DownloaderConfig
}

// NewClient builds a client from the default AWS configuration chain.
func NewClient(ctx context.Context, cfg DownloaderConfig) (*Client, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	return NewClientWithConfig(awsCfg, cfg), nil
}

// NewClientWithConfig builds a client from an explicit AWS config. optFns
// adjust the S3 client, for example to point it at another endpoint.
func NewClientWithConfig(awsCfg aws.Config, cfg DownloaderConfig, optFns ...func(*s3.Options)) *Client {
	def := DefaultDownloaderConfig()
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = def.Concurrency
	}
	if cfg.PartSize <= 0 {
		cfg.PartSize = def.PartSize
	}

	s3Client := s3.NewFromConfig(awsCfg, optFns...)
	mgr := manager.NewDownloader(s3Client, func(d *manager.Downloader) {
		d.Concurrency = cfg.Concurrency
		d.PartSize = cfg.PartSize
	})
	return &Client{s3: s3Client, manager: mgr, config: cfg}
}

// Config returns the download configuration in effect.
func (c *Client) Config() DownloaderConfig { return c.config }

// DownloadResult describes a completed download.
type DownloadResult struct {
	Bytes    int64
	Duration time.Duration
}

// Download writes s3://bucket/key to destPath. The object lands in a temp
// file beside destPath first, so a failed download never leaves a partial
// file under the final name.
func (c *Client) Download(ctx context.Context, bucket, key, destPath string) (*DownloadResult, error) {
	start := time.Now()
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(destPath), ".download-*.tmp")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	n, err := c.manager.Download(ctx, tmp, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp.Name())
		return nil, fmt.Errorf("download s3://%s/%s: %w", bucket, key, err)
	}
	if err := os.Rename(tmp.Name(), destPath); err != nil {
		os.Remove(tmp.Name())
		return nil, fmt.Errorf("move download into place: %w", err)
	}

	return &DownloadResult{Bytes: n, Duration: time.Since(start)}, nil
}
