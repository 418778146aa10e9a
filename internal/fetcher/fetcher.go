package fetcher

import (
	"context"
	"io"
	"net/url"
	"strings"

	"github.com/rotisserie/eris"
)

// Fetcher retrieves a NASR bundle from a remote location.
type Fetcher interface {
	// Download opens the remote file. The caller closes the reader.
	Download(ctx context.Context, url string) (io.ReadCloser, error)
	// DownloadToFile saves the remote file at path and returns its size.
	DownloadToFile(ctx context.Context, url string, path string) (int64, error)
}

// ForURL returns an HTTP or FTP fetcher depending on the URL scheme.
func ForURL(rawURL string, httpOpts HTTPOptions, ftpOpts FTPOptions) (Fetcher, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, eris.Wrapf(err, "fetcher: bad url %q", rawURL)
	}
	switch strings.ToLower(u.Scheme) {
	case "https", "http":
		return NewHTTPFetcher(httpOpts), nil
	case "ftp":
		return NewFTPFetcher(ftpOpts), nil
	}
	return nil, eris.Errorf("fetcher: unsupported scheme %q", u.Scheme)
}
