// Package fetch downloads supplier pricelists from remote sources. Suppliers
// publish over plain HTTP, HTTPS, or legacy FTP drops; the dispatcher picks a
// transport from the URL scheme.
package fetch

import (
	"context"
	"io"
	"net/url"
	"path"
	"time"

	"github.com/rotisserie/eris"

	"github.com/soundline/pricesync/internal/config"
)

// Downloader retrieves a remote pricelist.
type Downloader interface {
	// Fetch returns the remote file's contents. The caller must close the
	// returned ReadCloser.
	Fetch(ctx context.Context, rawURL string) (io.ReadCloser, error)

	// FetchToFile writes the remote file to a local path. Returns bytes
	// written.
	FetchToFile(ctx context.Context, rawURL string, dest string) (int64, error)
}

// Client dispatches downloads to the right transport by URL scheme.
type Client struct {
	http *HTTPDownloader
	ftp  *FTPDownloader
}

// New creates a Client from configuration.
func New(cfg config.FetchConfig) *Client {
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	return &Client{
		http: NewHTTPDownloader(HTTPOptions{
			UserAgent: cfg.UserAgent,
			Timeout:   timeout,
		}),
		ftp: NewFTPDownloader(FTPOptions{Timeout: timeout}),
	}
}

// Fetch downloads the URL over whichever transport its scheme names.
func (c *Client) Fetch(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	d, err := c.downloaderFor(rawURL)
	if err != nil {
		return nil, err
	}
	return d.Fetch(ctx, rawURL)
}

// FetchToFile downloads the URL to a local path.
func (c *Client) FetchToFile(ctx context.Context, rawURL string, dest string) (int64, error) {
	d, err := c.downloaderFor(rawURL)
	if err != nil {
		return 0, err
	}
	return d.FetchToFile(ctx, rawURL, dest)
}

func (c *Client) downloaderFor(rawURL string) (Downloader, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, eris.Wrapf(err, "fetch: parse url %q", rawURL)
	}
	switch u.Scheme {
	case "http", "https":
		return c.http, nil
	case "ftp":
		return c.ftp, nil
	default:
		return nil, eris.Errorf("fetch: unsupported scheme %q in %s", u.Scheme, rawURL)
	}
}

// Filename guesses a local filename for a pricelist URL, falling back to a
// stable default when the URL path carries none.
func Filename(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "pricelist"
	}
	name := path.Base(u.Path)
	if name == "" || name == "." || name == "/" {
		return "pricelist"
	}
	return name
}
