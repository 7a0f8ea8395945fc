// Package imagecache provides a content-addressed file cache for product
// images shared across concurrent scrape workers.
package imagecache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// Cache stores downloaded images as one file per URL under a cache
// directory, keyed by the hex-encoded SHA-256 of the image URL. Entries are
// never evicted; they live until externally deleted. That is a deliberate
// simplification: product images are small, immutable once published, and
// the cache directory is user-visible.
type Cache struct {
	dir    string
	client *http.Client
}

// New creates a cache backed by the given directory, creating it if needed
func New(dir string, timeout time.Duration) (*Cache, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Cache{
		dir:    dir,
		client: &http.Client{Timeout: timeout},
	}, nil
}

// Path returns the cache file path for an image URL
func (c *Cache) Path(imageURL string) string {
	sum := sha256.Sum256([]byte(imageURL))
	return filepath.Join(c.dir, hex.EncodeToString(sum[:])+".jpg")
}

// Fetch returns the image bytes for a URL, downloading and persisting them
// on first use. Subsequent calls are served from the cache file with no
// network request. Any failure returns a nil slice and an error the caller
// should treat as "no image", never as batch-fatal.
//
// Concurrent workers may race to download the same URL the first time; the
// write is atomic (temp file renamed into place) so a reader never observes
// a partial file, and last writer wins.
func (c *Cache) Fetch(ctx context.Context, imageURL string) ([]byte, error) {
	if imageURL == "" {
		return nil, fmt.Errorf("empty image URL")
	}

	path := c.Path(imageURL)
	if data, err := os.ReadFile(path); err == nil {
		return data, nil
	}

	data, err := c.download(ctx, imageURL)
	if err != nil {
		return nil, err
	}

	if err := c.writeAtomic(path, data); err != nil {
		// Cache write failures degrade to a per-call download
		log.Printf("[ImageCache] Failed to persist %s: %v", path, err)
	}

	return data, nil
}

// download performs the single GET for an image. Image downloads are not
// retried; the next refresh cycle will try again.
func (c *Cache) download(ctx context.Context, imageURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read image body: %w", err)
	}
	return data, nil
}

// writeAtomic writes data to path via a temp file and rename
func (c *Cache) writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(c.dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
