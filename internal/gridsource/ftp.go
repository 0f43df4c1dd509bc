package gridsource

import (
	"context"
	"io"
	"net"
	"net/url"
	"time"

	"github.com/jlaffaye/ftp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// FTPOptions configures the FTP fallback fetcher.
type FTPOptions struct {
	Timeout time.Duration
}

// FTPFetcher retrieves artifacts from ftp:// mirrors of the GFS tree.
type FTPFetcher struct {
	opts FTPOptions
}

// NewFTPFetcher creates an FTPFetcher with defaults filled in.
func NewFTPFetcher(opts FTPOptions) *FTPFetcher {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	return &FTPFetcher{opts: opts}
}

func parseFTPURL(rawURL string) (host, path string, err error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", "", eris.Wrap(err, "gridsource: parse ftp url")
	}
	if u.Scheme != "ftp" {
		return "", "", eris.Errorf("gridsource: expected ftp scheme, got %q", u.Scheme)
	}

	host = u.Host
	if _, _, splitErr := net.SplitHostPort(host); splitErr != nil {
		host = net.JoinHostPort(host, "21")
	}

	if u.Path == "" {
		return "", "", eris.New("gridsource: empty path in ftp url")
	}
	return host, u.Path, nil
}

// ftpConnReader ties the data connection's lifetime to the reader so one
// Close releases both.
type ftpConnReader struct {
	resp *ftp.Response
	conn *ftp.ServerConn
}

func (r *ftpConnReader) Read(p []byte) (int, error) { return r.resp.Read(p) }

func (r *ftpConnReader) Close() error {
	respErr := r.resp.Close()
	quitErr := r.conn.Quit()
	if respErr != nil {
		return eris.Wrap(respErr, "gridsource: close ftp response")
	}
	if quitErr != nil {
		return eris.Wrap(quitErr, "gridsource: quit ftp connection")
	}
	return nil
}

// Probe checks for the file's existence via a size request.
func (f *FTPFetcher) Probe(ctx context.Context, rawURL string) (bool, error) {
	host, path, err := parseFTPURL(rawURL)
	if err != nil {
		return false, err
	}

	conn, err := ftp.Dial(host, ftp.DialWithTimeout(f.opts.Timeout), ftp.DialWithContext(ctx))
	if err != nil {
		return false, eris.Wrapf(err, "gridsource: ftp dial %s", host)
	}
	defer func() { _ = conn.Quit() }()

	if err := conn.Login("anonymous", "anonymous"); err != nil {
		return false, eris.Wrap(err, "gridsource: ftp login")
	}

	if _, err := conn.FileSize(path); err != nil {
		// Missing file is an expected probe outcome.
		return false, nil
	}
	return true, nil
}

// Download retrieves the file and returns a reader that owns the
// connection. The caller must close it.
func (f *FTPFetcher) Download(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	host, path, err := parseFTPURL(rawURL)
	if err != nil {
		return nil, err
	}

	zap.L().Debug("gridsource: ftp retrieve", zap.String("host", host), zap.String("path", path))

	conn, err := ftp.Dial(host, ftp.DialWithTimeout(f.opts.Timeout), ftp.DialWithContext(ctx))
	if err != nil {
		return nil, eris.Wrapf(err, "gridsource: ftp dial %s", host)
	}

	if err := conn.Login("anonymous", "anonymous"); err != nil {
		_ = conn.Quit()
		return nil, eris.Wrap(err, "gridsource: ftp login")
	}

	resp, err := conn.Retr(path)
	if err != nil {
		_ = conn.Quit()
		return nil, eris.Wrapf(err, "gridsource: ftp retrieve %s", path)
	}

	return &ftpConnReader{resp: resp, conn: conn}, nil
}
