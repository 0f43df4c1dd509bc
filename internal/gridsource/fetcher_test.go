package gridsource

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testFetcher() *Fetcher {
	return NewFetcher(FetcherOptions{RatePerSec: 1000, Burst: 100})
}

func TestProbe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodHead, r.Method)
		switch r.URL.Path {
		case "/exists":
			w.WriteHeader(http.StatusOK)
		case "/missing":
			w.WriteHeader(http.StatusNotFound)
		case "/forbidden":
			w.WriteHeader(http.StatusForbidden)
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	f := testFetcher()
	ctx := context.Background()

	ok, err := f.Probe(ctx, srv.URL+"/exists")
	require.NoError(t, err)
	assert.True(t, ok)

	// Not published yet is an answer, not an error.
	ok, err = f.Probe(ctx, srv.URL+"/missing")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = f.Probe(ctx, srv.URL+"/forbidden")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = f.Probe(ctx, srv.URL+"/broken")
	assert.Error(t, err)
}

func TestDownload(t *testing.T) {
	body := []byte("grib2 payload bytes")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	dir := t.TempDir()
	dest := filepath.Join(dir, "sub", "gfs.t12z.pgrb2.0p25.f000")

	f := testFetcher()
	require.NoError(t, f.Download(context.Background(), srv.URL+"/file", dest))

	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, body, got)

	// No partial file left behind.
	_, err = os.Stat(dest + ".partial")
	assert.True(t, os.IsNotExist(err))
}

func TestDownloadRetriesTransientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	f := testFetcher()
	dest := filepath.Join(t.TempDir(), "artifact")
	require.NoError(t, f.Download(context.Background(), srv.URL, dest))
	assert.Equal(t, int32(3), calls.Load())
}

func TestDownloadGivesUpOnClientError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	f := testFetcher()
	dest := filepath.Join(t.TempDir(), "artifact")
	err := f.Download(context.Background(), srv.URL, dest)
	require.Error(t, err)

	// 404 does not improve with retries.
	assert.Equal(t, int32(1), calls.Load())
	_, statErr := os.Stat(dest)
	assert.True(t, os.IsNotExist(statErr))
}

func TestParseFTPURL(t *testing.T) {
	host, path, err := parseFTPURL("ftp://ftp.example.test/pub/data/file.grib2")
	require.NoError(t, err)
	assert.Equal(t, "ftp.example.test:21", host)
	assert.Equal(t, "/pub/data/file.grib2", path)

	host, _, err = parseFTPURL("ftp://ftp.example.test:2121/file")
	require.NoError(t, err)
	assert.Equal(t, "ftp.example.test:2121", host)

	_, _, err = parseFTPURL("https://example.test/file")
	assert.Error(t, err)

	_, _, err = parseFTPURL("ftp://example.test")
	assert.Error(t, err)
}

func TestIsFTP(t *testing.T) {
	assert.True(t, isFTP("ftp://host/file"))
	assert.False(t, isFTP("https://host/file"))
	assert.False(t, isFTP("not a url at all%%"))
}
