// Package storage implements the product-images bucket: upload, remove and
// public-URL retrieval. Objects live on the local filesystem and are served
// under the platform's public object path, so URLs stored in product rows
// keep the /product-images/ marker the rest of the system parses.
package storage

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

const publicPrefix = "/storage/v1/object/public/"

type Bucket struct {
	name    string
	root    string
	baseURL string
	logger  *zap.Logger
}

// NewBucket prepares the bucket directory under root. baseURL is the public
// origin the served URLs are built from.
func NewBucket(name, root, baseURL string, logger *zap.Logger) (*Bucket, error) {
	dir := filepath.Join(root, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create bucket dir: %w", err)
	}
	return &Bucket{
		name:    name,
		root:    dir,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger,
	}, nil
}

func (b *Bucket) Name() string {
	return b.name
}

// Upload writes the object and returns its public URL.
func (b *Bucket) Upload(ctx context.Context, objectPath string, data []byte) (string, error) {
	clean, err := b.cleanPath(objectPath)
	if err != nil {
		return "", err
	}

	full := filepath.Join(b.root, filepath.FromSlash(clean))
	if err = os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("create object dir: %w", err)
	}
	if err = os.WriteFile(full, data, 0o644); err != nil {
		return "", fmt.Errorf("write object: %w", err)
	}

	return b.PublicURL(clean), nil
}

// Remove deletes the objects. Missing objects are not an error; the first
// real failure is returned after attempting every path.
func (b *Bucket) Remove(ctx context.Context, objectPaths []string) error {
	var firstErr error
	for _, p := range objectPaths {
		clean, err := b.cleanPath(p)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		err = os.Remove(filepath.Join(b.root, filepath.FromSlash(clean)))
		if err != nil && !os.IsNotExist(err) {
			b.logger.Warn("刪除 storage 檔案失敗", zap.String("path", clean), zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// PublicURL builds the public URL for an object path.
func (b *Bucket) PublicURL(objectPath string) string {
	return b.baseURL + publicPrefix + b.name + "/" + strings.TrimLeft(objectPath, "/")
}

// ExtractPath recovers the object path from a public URL. It returns an
// empty string when the URL does not point into this bucket.
func (b *Bucket) ExtractPath(rawURL string) string {
	marker := "/" + b.name + "/"

	if u, err := url.Parse(rawURL); err == nil {
		if idx := strings.Index(u.Path, marker); idx != -1 {
			if p, err := url.PathUnescape(u.Path[idx+len(marker):]); err == nil {
				return p
			}
		}
	}

	// fallback for bare paths that never parse as URLs
	if idx := strings.Index(rawURL, marker); idx != -1 {
		if p, err := url.PathUnescape(rawURL[idx+len(marker):]); err == nil {
			return p
		}
	}
	return ""
}

// Handler serves the bucket's objects under the public object path.
func (b *Bucket) Handler() http.Handler {
	prefix := publicPrefix + b.name + "/"
	return http.StripPrefix(prefix, http.FileServer(http.Dir(b.root)))
}

// PublicPath is the route pattern the Handler should be mounted on.
func (b *Bucket) PublicPath() string {
	return publicPrefix + b.name + "/*"
}

func (b *Bucket) cleanPath(objectPath string) (string, error) {
	clean := path.Clean("/" + strings.TrimLeft(objectPath, "/"))
	if clean == "/" || strings.Contains(clean, "..") {
		return "", fmt.Errorf("invalid object path %q", objectPath)
	}
	return strings.TrimPrefix(clean, "/"), nil
}
