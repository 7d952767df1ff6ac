// Package fetch resolves array file locations to local paths. Plain paths
// pass through, s3:// URIs are downloaded into a cache directory, and
// compressed inputs are expanded so the decoders can map them.
package fetch

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// IsS3URI reports whether uri uses the s3:// scheme.
func IsS3URI(uri string) bool {
	return strings.HasPrefix(uri, "s3://")
}

// ParseS3URI parses an S3 URI (s3://bucket/key) into bucket and key.
func ParseS3URI(uri string) (bucket, key string, err error) {
	if !IsS3URI(uri) {
		return "", "", errors.New("invalid S3 URI: must start with s3://")
	}

	path := strings.TrimPrefix(uri, "s3://")
	parts := strings.SplitN(path, "/", 2)
	if parts[0] == "" {
		return "", "", errors.New("invalid S3 URI: missing bucket name")
	}
	bucket = parts[0]
	if len(parts) == 2 {
		key = parts[1]
	}
	if key == "" || strings.HasSuffix(key, "/") {
		return "", "", fmt.Errorf("invalid S3 URI %q: missing object key", uri)
	}
	return bucket, key, nil
}

// ParseBucketIdentifier accepts a plain bucket name or a bucket ARN
// ("arn:aws:s3:::bucket") and returns the bucket name.
func ParseBucketIdentifier(bucketOrARN string) (string, error) {
	if bucketOrARN == "" {
		return "", errors.New("empty bucket identifier")
	}
	if !strings.HasPrefix(bucketOrARN, "arn:") {
		if strings.Contains(bucketOrARN, "://") {
			return "", fmt.Errorf("invalid bucket identifier %q: looks like a URI", bucketOrARN)
		}
		return bucketOrARN, nil
	}

	parts := strings.Split(bucketOrARN, ":")
	if len(parts) < 6 {
		return "", fmt.Errorf("invalid ARN %q: expected at least 6 colon-separated parts", bucketOrARN)
	}
	if parts[2] != "s3" {
		return "", fmt.Errorf("invalid S3 ARN %q: service must be 's3', got %q", bucketOrARN, parts[2])
	}
	resource := strings.Join(parts[5:], ":")
	if idx := strings.Index(resource, "/"); idx >= 0 {
		resource = resource[:idx]
	}
	if resource == "" {
		return "", fmt.Errorf("invalid S3 ARN %q: missing bucket name", bucketOrARN)
	}
	return resource, nil
}

// cacheName maps an object to a file name inside the cache directory. The
// bucket is kept as a subdirectory; the key's directories are flattened.
func cacheName(bucket, key string) string {
	flat := strings.ReplaceAll(key, "/", "__")
	return filepath.Join(bucket, filepath.Base(flat))
}
