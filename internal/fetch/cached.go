package fetch

import (
	"context"
	"io"
	"net/url"
	"os"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Cached wraps a Client with an ETag-aware local download cache. A
// long-running server re-fetches the same supplier URLs over and over;
// supplier lists update weekly at most, so a matching ETag reuses the copy
// already on disk instead of transferring the file again.
type Cached struct {
	client *Client
	dir    string

	mu      sync.Mutex
	entries map[string]cacheEntry
}

type cacheEntry struct {
	etag string
	path string
}

// NewCached creates a Cached downloader storing files under dir.
func NewCached(client *Client, dir string) *Cached {
	return &Cached{
		client:  client,
		dir:     dir,
		entries: make(map[string]cacheEntry),
	}
}

// Download fetches the URL into the cache directory and returns the local
// path. HTTP sources use conditional requests; when the ETag matches the
// previous download the cached file is returned untouched. FTP has no change
// detection and is always transferred in full.
func (c *Cached) Download(ctx context.Context, rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", eris.Wrapf(err, "fetch: parse url %q", rawURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		dest, err := c.newDest(rawURL)
		if err != nil {
			return "", err
		}
		if _, err := c.client.FetchToFile(ctx, rawURL, dest); err != nil {
			return "", err
		}
		return dest, nil
	}

	c.mu.Lock()
	prev, ok := c.entries[rawURL]
	c.mu.Unlock()

	etag := ""
	if ok {
		if _, statErr := os.Stat(prev.path); statErr == nil {
			etag = prev.etag
		}
	}

	body, newTag, changed, err := c.client.http.FetchIfChanged(ctx, rawURL, etag)
	if err != nil {
		return "", err
	}
	if !changed {
		zap.L().Info("fetch: pricelist unchanged, reusing cached copy",
			zap.String("url", rawURL),
			zap.String("path", prev.path),
		)
		return prev.path, nil
	}
	defer body.Close() //nolint:errcheck

	dest, err := c.newDest(rawURL)
	if err != nil {
		return "", err
	}
	file, err := os.Create(dest)
	if err != nil {
		return "", eris.Wrap(err, "fetch: create cache file")
	}
	defer file.Close() //nolint:errcheck

	if _, err := io.Copy(file, body); err != nil {
		return "", eris.Wrap(err, "fetch: write cache file")
	}

	if newTag != "" {
		c.mu.Lock()
		c.entries[rawURL] = cacheEntry{etag: newTag, path: dest}
		c.mu.Unlock()
	}
	return dest, nil
}

func (c *Cached) newDest(rawURL string) (string, error) {
	f, err := os.CreateTemp(c.dir, "*-"+Filename(rawURL))
	if err != nil {
		return "", eris.Wrap(err, "fetch: create cache file")
	}
	defer f.Close() //nolint:errcheck
	return f.Name(), nil
}
