package fetch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/eunmann/affxfusion/pkg/format"
	"github.com/eunmann/affxfusion/pkg/humanfmt"
	"github.com/eunmann/affxfusion/pkg/logging"
)

// Config configures a Resolver.
type Config struct {
	// CacheDir receives downloaded objects. Objects already present are
	// reused. Default: <os.UserCacheDir>/affx.
	CacheDir string
	// TempDir receives decompressed copies. Default: os.TempDir.
	TempDir string
	// Concurrency bounds parallel resolves in ResolveAll. Default: 4.
	Concurrency int
	// Download configures the S3 client created on first use.
	Download DownloaderConfig
}

// Resolved is a local, uncompressed file ready for decoding.
type Resolved struct {
	// Source is the location as given.
	Source string
	// Path is what the decoders should open.
	Path   string
	staged *format.StagedFile
}

// Close removes any decompressed copy. Cached downloads stay.
func (r *Resolved) Close() error {
	if r == nil {
		return nil
	}
	return r.staged.Close()
}

// Resolver turns paths and s3:// URIs into local files.
type Resolver struct {
	cfg Config

	mu        sync.Mutex
	client    *Client
	newClient func(context.Context) (*Client, error)
}

// NewResolver returns a resolver. The S3 client is created lazily, so a
// resolver used only with local paths never loads AWS configuration.
func NewResolver(cfg Config) *Resolver {
	if cfg.CacheDir == "" {
		if dir, err := os.UserCacheDir(); err == nil {
			cfg.CacheDir = filepath.Join(dir, "affx")
		} else {
			cfg.CacheDir = filepath.Join(os.TempDir(), "affx-cache")
		}
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	r := &Resolver{cfg: cfg}
	r.newClient = func(ctx context.Context) (*Client, error) {
		return NewClient(ctx, cfg.Download)
	}
	return r
}

// WithClient makes the resolver use c for every S3 download.
func (r *Resolver) WithClient(c *Client) *Resolver {
	r.mu.Lock()
	r.client = c
	r.mu.Unlock()
	return r
}

func (r *Resolver) s3Client(ctx context.Context) (*Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.client != nil {
		return r.client, nil
	}
	c, err := r.newClient(ctx)
	if err != nil {
		return nil, err
	}
	r.client = c
	return c, nil
}

// Resolve returns a local path for loc.
func (r *Resolver) Resolve(ctx context.Context, loc string) (*Resolved, error) {
	path := loc
	if IsS3URI(loc) {
		p, err := r.download(ctx, loc)
		if err != nil {
			return nil, err
		}
		path = p
	} else if !format.Exists(path) {
		return nil, fmt.Errorf("%s: %w", path, format.ErrNotFound)
	}

	staged, err := format.Stage(path, r.cfg.TempDir)
	if err != nil {
		return nil, err
	}
	if staged.Written > 0 {
		log := logging.WithPhase("fetch")
		log.Debug().
			Str("source", loc).
			Str("staged", staged.Path).
			Str("size", humanfmt.Bytes(staged.Written)).
			Msg("expanded compressed input")
	}
	return &Resolved{Source: loc, Path: staged.Path, staged: staged}, nil
}

func (r *Resolver) download(ctx context.Context, uri string) (string, error) {
	bucket, key, err := ParseS3URI(uri)
	if err != nil {
		return "", err
	}
	dest := filepath.Join(r.cfg.CacheDir, cacheName(bucket, key))
	if format.Exists(dest) {
		return dest, nil
	}

	client, err := r.s3Client(ctx)
	if err != nil {
		return "", err
	}
	res, err := client.Download(ctx, bucket, key, dest)
	if err != nil {
		return "", err
	}

	log := logging.WithPhase("fetch")
	log.Info().
		Str("uri", uri).
		Str("path", dest).
		Str("size", humanfmt.Bytes(res.Bytes)).
		Dur("elapsed", res.Duration).
		Msg("downloaded")
	return dest, nil
}

// ResolveAll resolves every location concurrently. On error, everything
// already resolved is closed.
func (r *Resolver) ResolveAll(ctx context.Context, locs []string) ([]*Resolved, error) {
	out := make([]*Resolved, len(locs))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Concurrency)
	for i, loc := range locs {
		g.Go(func() error {
			res, err := r.Resolve(ctx, loc)
			if err != nil {
				return fmt.Errorf("resolve %s: %w", loc, err)
			}
			out[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		for _, res := range out {
			res.Close()
		}
		return nil, err
	}
	return out, nil
}
