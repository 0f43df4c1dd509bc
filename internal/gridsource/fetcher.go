package gridsource

import (
	"context"
	"io"
	"math"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// FetcherOptions configures the artifact fetcher.
type FetcherOptions struct {
	UserAgent  string
	Timeout    time.Duration
	MaxRetries int
	// RatePerSec limits request starts against the upstream host. NOMADS
	// throttles aggressive clients, so the default is deliberately low.
	RatePerSec float64
	Burst      int
}

// Fetcher downloads GRIB artifacts over HTTP, with an FTP fallback for
// ftp:// mirrors. Downloads are rate limited, retried on transient
// failures, and written atomically (temp file + rename).
type Fetcher struct {
	client     *http.Client
	ftp        *FTPFetcher
	limiter    *rate.Limiter
	userAgent  string
	maxRetries int
}

// NewFetcher builds a Fetcher with defaults filled in.
func NewFetcher(opts FetcherOptions) *Fetcher {
	if opts.Timeout == 0 {
		opts.Timeout = 5 * time.Minute
	}
	if opts.MaxRetries == 0 {
		opts.MaxRetries = 3
	}
	if opts.RatePerSec == 0 {
		opts.RatePerSec = 0.5
	}
	if opts.Burst == 0 {
		opts.Burst = 1
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "marinecast/1.0"
	}
	return &Fetcher{
		client:     &http.Client{Timeout: opts.Timeout},
		ftp:        NewFTPFetcher(FTPOptions{}),
		limiter:    rate.NewLimiter(rate.Limit(opts.RatePerSec), opts.Burst),
		userAgent:  opts.UserAgent,
		maxRetries: opts.MaxRetries,
	}
}

// Probe checks whether an artifact exists upstream. A 404 or 403 means
// "not published yet", which is an expected answer, not an error.
func (f *Fetcher) Probe(ctx context.Context, rawURL string) (bool, error) {
	if isFTP(rawURL) {
		return f.ftp.Probe(ctx, rawURL)
	}

	if err := f.limiter.Wait(ctx); err != nil {
		return false, eris.Wrap(err, "gridsource: rate limit wait")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		return false, eris.Wrap(err, "gridsource: build probe request")
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return false, eris.Wrapf(err, "gridsource: probe %s", rawURL)
	}
	defer resp.Body.Close() //nolint:errcheck

	switch {
	case resp.StatusCode == http.StatusOK:
		return true, nil
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusForbidden:
		return false, nil
	default:
		return false, eris.Errorf("gridsource: probe %s returned status %d", rawURL, resp.StatusCode)
	}
}

// Download retrieves an artifact to dest. The destination appears only
// after the full body has been written.
func (f *Fetcher) Download(ctx context.Context, rawURL, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return eris.Wrap(err, "gridsource: create download dir")
	}

	var body io.ReadCloser
	var err error
	if isFTP(rawURL) {
		body, err = f.ftp.Download(ctx, rawURL)
	} else {
		body, err = f.downloadHTTP(ctx, rawURL)
	}
	if err != nil {
		return err
	}
	defer body.Close() //nolint:errcheck

	tmp := dest + ".partial"
	out, err := os.Create(tmp)
	if err != nil {
		return eris.Wrapf(err, "gridsource: create %s", tmp)
	}

	n, err := io.Copy(out, body)
	closeErr := out.Close()
	if err != nil {
		_ = os.Remove(tmp)
		return eris.Wrapf(err, "gridsource: write %s", dest)
	}
	if closeErr != nil {
		_ = os.Remove(tmp)
		return eris.Wrapf(closeErr, "gridsource: close %s", tmp)
	}
	if err := os.Rename(tmp, dest); err != nil {
		_ = os.Remove(tmp)
		return eris.Wrapf(err, "gridsource: finalize %s", dest)
	}

	zap.L().Info("downloaded grid artifact",
		zap.String("url", rawURL),
		zap.String("dest", dest),
		zap.Int64("bytes", n),
	)
	return nil
}

func (f *Fetcher) downloadHTTP(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	var lastErr error
	for attempt := 0; attempt <= f.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * time.Second
			select {
			case <-ctx.Done():
				return nil, eris.Wrap(ctx.Err(), "gridsource: download canceled")
			case <-time.After(backoff):
			}
		}

		if err := f.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "gridsource: rate limit wait")
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, eris.Wrap(err, "gridsource: build download request")
		}
		req.Header.Set("User-Agent", f.userAgent)

		resp, err := f.client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		if resp.StatusCode == http.StatusOK {
			return resp.Body, nil
		}
		_ = resp.Body.Close()
		lastErr = eris.Errorf("status %d", resp.StatusCode)

		// Client errors other than 429 will not improve with retries.
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			break
		}
	}
	return nil, eris.Wrapf(lastErr, "gridsource: download %s", rawURL)
}

func isFTP(rawURL string) bool {
	u, err := url.Parse(rawURL)
	return err == nil && u.Scheme == "ftp"
}
