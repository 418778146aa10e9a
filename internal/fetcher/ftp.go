package fetcher

import (
	"context"
	"errors"
	"io"
	"net"
	"net/url"
	"time"

	"github.com/jlaffaye/ftp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/aerocodes/internal/resilience"
)

// FTPOptions configures downloads from FTP mirrors of the NASR bundle.
type FTPOptions struct {
	Timeout time.Duration
	// MaxRetries counts the first connection attempt. Zero means 3.
	MaxRetries     int
	InitialBackoff time.Duration
}

// FTPFetcher is a Fetcher for ftp:// URLs. Each download uses its own
// control connection.
type FTPFetcher struct {
	opts FTPOptions
}

// NewFTPFetcher returns an FTPFetcher with a 30s dial timeout by default.
func NewFTPFetcher(opts FTPOptions) *FTPFetcher {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	return &FTPFetcher{opts: opts}
}

// ftpTarget is an ftp:// URL split into what a session needs.
type ftpTarget struct {
	host     string // always host:port
	path     string
	user     string
	password string
}

// parseFTPURL splits rawURL, adding port 21 and anonymous credentials when
// the URL has none.
func parseFTPURL(rawURL string) (ftpTarget, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ftpTarget{}, eris.Wrap(err, "ftp: parse url")
	}
	if u.Scheme != "ftp" {
		return ftpTarget{}, eris.Errorf("ftp: scheme %q is not ftp", u.Scheme)
	}
	if u.Path == "" {
		return ftpTarget{}, eris.Errorf("ftp: %s names no file", rawURL)
	}

	t := ftpTarget{host: u.Host, path: u.Path, user: "anonymous", password: "anonymous@"}
	if u.Port() == "" {
		t.host = net.JoinHostPort(u.Hostname(), "21")
	}
	if u.User != nil {
		t.user = u.User.Username()
		if pw, ok := u.User.Password(); ok {
			t.password = pw
		}
	}
	return t, nil
}

// ftpBody streams a RETR reply and ends the session on Close.
type ftpBody struct {
	*ftp.Response
	conn *ftp.ServerConn
}

func (b *ftpBody) Close() error {
	return errors.Join(b.Response.Close(), b.conn.Quit())
}

// Download opens the remote file. Closing the reader ends the FTP session.
func (f *FTPFetcher) Download(ctx context.Context, ftpURL string) (io.ReadCloser, error) {
	t, err := parseFTPURL(ftpURL)
	if err != nil {
		return nil, err
	}

	zap.L().Debug("ftp: retrieving", zap.String("host", t.host), zap.String("path", t.path))

	policy := resilience.Policy{MaxAttempts: f.opts.MaxRetries, InitialBackoff: f.opts.InitialBackoff}
	return resilience.Do(ctx, policy, "ftp retr "+t.host+t.path, func(ctx context.Context) (io.ReadCloser, error) {
		return f.open(ctx, t)
	})
}

func (f *FTPFetcher) open(ctx context.Context, t ftpTarget) (io.ReadCloser, error) {
	conn, err := ftp.Dial(t.host, ftp.DialWithTimeout(f.opts.Timeout), ftp.DialWithContext(ctx))
	if err != nil {
		return nil, eris.Wrapf(err, "ftp dial %s", t.host)
	}
	if err := conn.Login(t.user, t.password); err != nil {
		_ = conn.Quit()
		return nil, eris.Wrapf(err, "ftp login as %s", t.user)
	}
	resp, err := conn.Retr(t.path)
	if err != nil {
		_ = conn.Quit()
		return nil, eris.Wrapf(err, "ftp retr %s", t.path)
	}
	return &ftpBody{Response: resp, conn: conn}, nil
}

// DownloadToFile saves the remote file at path and returns its size.
func (f *FTPFetcher) DownloadToFile(ctx context.Context, ftpURL string, path string) (int64, error) {
	body, err := f.Download(ctx, ftpURL)
	if err != nil {
		return 0, err
	}
	defer body.Close() //nolint:errcheck

	return writeFile(path, body)
}
