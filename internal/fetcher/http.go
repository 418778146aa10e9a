package fetcher

import (
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/aerocodes/internal/resilience"
)

// HTTPOptions configures bundle downloads from the FAA site or a mirror.
type HTTPOptions struct {
	UserAgent string
	Timeout   time.Duration
	// MaxRetries counts the first request. Zero means 3.
	MaxRetries int
	// InitialBackoff is the first retry delay. Zero means 500ms.
	InitialBackoff time.Duration
	// RequestsPerSecond caps outgoing requests. Zero means 2/s.
	RequestsPerSecond float64
}

func (o HTTPOptions) withDefaults() HTTPOptions {
	if o.UserAgent == "" {
		o.UserAgent = "aerocodes/1.0"
	}
	if o.Timeout == 0 {
		o.Timeout = 5 * time.Minute
	}
	if o.MaxRetries == 0 {
		o.MaxRetries = 3
	}
	if o.RequestsPerSecond == 0 {
		o.RequestsPerSecond = 2
	}
	return o
}

// HTTPFetcher is a rate-limited Fetcher that retries 408, 429 and 5xx replies.
type HTTPFetcher struct {
	opts    HTTPOptions
	client  *http.Client
	limiter *rate.Limiter
}

// NewHTTPFetcher returns an HTTPFetcher with zero options filled in.
func NewHTTPFetcher(opts HTTPOptions) *HTTPFetcher {
	opts = opts.withDefaults()
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConnsPerHost: 2,
		IdleConnTimeout:     90 * time.Second,
	}
	return &HTTPFetcher{
		opts:    opts,
		client:  &http.Client{Timeout: opts.Timeout, Transport: transport},
		limiter: rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1),
	}
}

// get issues one GET. Retryable statuses come back as TransientError.
func (f *HTTPFetcher) get(ctx context.Context, rawURL string) (*http.Response, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "http: rate limit")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "http: build request")
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resilience.IsTransientHTTPStatus(resp.StatusCode) {
		_ = resp.Body.Close()
		return nil, resilience.NewTransientError(
			eris.Errorf("http: %s answered %d", rawURL, resp.StatusCode), resp.StatusCode)
	}
	return resp, nil
}

// Download returns the body of a 200 reply. The caller closes it.
func (f *HTTPFetcher) Download(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	policy := resilience.Policy{MaxAttempts: f.opts.MaxRetries, InitialBackoff: f.opts.InitialBackoff}
	resp, err := resilience.Do(ctx, policy, "http get "+rawURL, func(ctx context.Context) (*http.Response, error) {
		return f.get(ctx, rawURL)
	})
	if err != nil {
		return nil, eris.Wrap(err, "download: all retries exhausted")
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, eris.Errorf("download: unexpected status %d from %s", resp.StatusCode, rawURL)
	}
	return resp.Body, nil
}

// DownloadToFile saves the body at path and returns its size.
func (f *HTTPFetcher) DownloadToFile(ctx context.Context, rawURL string, path string) (int64, error) {
	body, err := f.Download(ctx, rawURL)
	if err != nil {
		return 0, err
	}
	defer body.Close() //nolint:errcheck

	return writeFile(path, body)
}

// writeFile copies r into a temp file next to path and renames it into
// place. A failed copy leaves path untouched.
func writeFile(path string, r io.Reader) (int64, error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".part-*")
	if err != nil {
		return 0, eris.Wrap(err, "download: create temp file")
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck

	n, err := io.Copy(tmp, r)
	if err != nil {
		_ = tmp.Close()
		return n, eris.Wrapf(err, "download: write %s", path)
	}
	if err := tmp.Close(); err != nil {
		return n, eris.Wrapf(err, "download: close %s", path)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return n, eris.Wrapf(err, "download: rename into %s", path)
	}
	return n, nil
}
