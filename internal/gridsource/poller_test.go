package gridsource

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seaward-systems/marinecast/internal/grid"
	"github.com/seaward-systems/marinecast/internal/observability"
)

// productDecoder fabricates a field for whichever artifact it is handed,
// stamping the artifact's cycle hour as the valid time.
type productDecoder struct {
	decodes atomic.Int32
}

func (d *productDecoder) Decode(_ context.Context, a Artifact) (*grid.Field, error) {
	d.decodes.Add(1)
	date, err := time.Parse("20060102", a.Date)
	if err != nil {
		return nil, err
	}
	var hour int
	if _, err := fmt.Sscanf(a.Cycle, "t%02dz", &hour); err != nil {
		return nil, err
	}
	vt := date.Add(time.Duration(hour) * time.Hour)

	measure := grid.MeasureWindSpeedKnots
	if a.Product == grid.ProductWave {
		measure = grid.MeasureWaveHeightM
	}
	return grid.NewField(a.Product, vt, a.Cycle, a.Resolution, a.ForecastHour,
		[]float64{40, 40.25}, []float64{287.5, 287.75},
		map[string][]float64{measure: {1, 2, 3, 4}})
}

// gfsServer serves a fake upstream tree: any path containing one of the
// published cycle tags answers, everything else is 404.
func gfsServer(t *testing.T, published ...string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var downloads atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for _, tag := range published {
			if strings.Contains(r.URL.Path, tag) {
				if r.Method == http.MethodGet {
					downloads.Add(1)
					_, _ = w.Write([]byte("grib2"))
				}
				return
			}
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(srv.Close)
	return srv, &downloads
}

func testPoller(t *testing.T, baseURL string, clock clockwork.Clock, decoder Decoder) (*Poller, *Source) {
	t.Helper()
	source := NewSource()
	p := NewPoller(source, testFetcher(), decoder, nil, clock, PollerOptions{
		BaseURL:     baseURL,
		Dir:         t.TempDir(),
		MaxLookback: 4,
	})
	return p, source
}

func TestPollOnceInstallsNewestCycle(t *testing.T) {
	// 17:30 UTC: the newest expected cycle is 20240322 t12z.
	clock := clockwork.NewFakeClockAt(time.Date(2024, 3, 22, 17, 30, 0, 0, time.UTC))
	srv, downloads := gfsServer(t, "t12z")
	decoder := &productDecoder{}
	p, source := testPoller(t, srv.URL, clock, decoder)

	p.PollOnce(context.Background())

	wind, err := source.Fetch(context.Background(), grid.ProductWind)
	require.NoError(t, err)
	assert.Equal(t, "t12z", wind.Info.Cycle)
	assert.Equal(t, time.Date(2024, 3, 22, 12, 0, 0, 0, time.UTC), wind.Field.ValidTime())

	wave, err := source.Fetch(context.Background(), grid.ProductWave)
	require.NoError(t, err)
	assert.Equal(t, "0p16", wave.Info.Resolution)

	// One download per product.
	assert.Equal(t, int32(2), downloads.Load())
}

func TestPollOnceFallsBackToOlderCycle(t *testing.T) {
	// t12z not published yet; the poller walks back to t06z.
	clock := clockwork.NewFakeClockAt(time.Date(2024, 3, 22, 17, 30, 0, 0, time.UTC))
	srv, _ := gfsServer(t, "t06z")
	p, source := testPoller(t, srv.URL, clock, &productDecoder{})

	p.PollOnce(context.Background())

	wind, err := source.Fetch(context.Background(), grid.ProductWind)
	require.NoError(t, err)
	assert.Equal(t, "t06z", wind.Info.Cycle)
}

func TestPollOnceSkipsInstalledCycle(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2024, 3, 22, 17, 30, 0, 0, time.UTC))
	srv, downloads := gfsServer(t, "t12z")
	decoder := &productDecoder{}
	p, _ := testPoller(t, srv.URL, clock, decoder)

	p.PollOnce(context.Background())
	first := downloads.Load()

	// Same upstream state: the second pass probes but downloads nothing.
	p.PollOnce(context.Background())
	assert.Equal(t, first, downloads.Load())
	assert.Equal(t, int32(2), decoder.decodes.Load())
}

func TestPollOncePicksUpNewCycle(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2024, 3, 22, 17, 30, 0, 0, time.UTC))
	srv, _ := gfsServer(t, "t06z", "t12z")
	p, source := testPoller(t, srv.URL, clock, &productDecoder{})

	p.PollOnce(context.Background())
	wind, err := source.Fetch(context.Background(), grid.ProductWind)
	require.NoError(t, err)
	assert.Equal(t, "t12z", wind.Info.Cycle)

	// Six hours later the t18z cycle appears and supersedes t12z.
	clock.Advance(6 * time.Hour)
	srv2, _ := gfsServer(t, "t18z")
	p.opts.BaseURL = srv2.URL

	p.PollOnce(context.Background())
	wind, err = source.Fetch(context.Background(), grid.ProductWind)
	require.NoError(t, err)
	assert.Equal(t, "t18z", wind.Info.Cycle)
}

func TestPollOnceNothingPublished(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2024, 3, 22, 17, 30, 0, 0, time.UTC))
	srv, _ := gfsServer(t) // nothing upstream
	p, source := testPoller(t, srv.URL, clock, &productDecoder{})

	p.PollOnce(context.Background())

	_, err := source.Fetch(context.Background(), grid.ProductWind)
	assert.Error(t, err)
}

func TestPollOnceRecordsMetrics(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2024, 3, 22, 17, 30, 0, 0, time.UTC))
	srv, _ := gfsServer(t, "t12z")

	metrics := observability.NewCollector("test")
	source := NewSource()
	p := NewPoller(source, testFetcher(), &productDecoder{}, nil, clock, PollerOptions{
		BaseURL:     srv.URL,
		Dir:         t.TempDir(),
		MaxLookback: 4,
		Metrics:     metrics,
	})

	p.PollOnce(context.Background())

	// ---
	// One successful download counted per product.
	// ---
	assert.InDelta(t, 1.0,
		testutil.ToFloat64(metrics.DownloadsTotal.WithLabelValues("wind", "ok")), 1e-9)
	assert.InDelta(t, 1.0,
		testutil.ToFloat64(metrics.DownloadsTotal.WithLabelValues("wave", "ok")), 1e-9)

	// ---
	// Grid age is published against the installed valid time: the t12z
	// cycle at 17:30 is 5.5 hours old.
	// ---
	assert.InDelta(t, 5.5*3600,
		testutil.ToFloat64(metrics.GridAgeSeconds.WithLabelValues("wind")), 1.0)

	// A later pass with no new cycle still refreshes the gauge.
	clock.Advance(time.Hour)
	p.PollOnce(context.Background())
	assert.InDelta(t, 6.5*3600,
		testutil.ToFloat64(metrics.GridAgeSeconds.WithLabelValues("wind")), 1.0)
	assert.InDelta(t, 1.0,
		testutil.ToFloat64(metrics.DownloadsTotal.WithLabelValues("wind", "ok")), 1e-9)
}

func TestPollOnceRecordsFailedDownload(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2024, 3, 22, 17, 30, 0, 0, time.UTC))

	// Probe answers but every GET fails, so the download errors out.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			w.WriteHeader(http.StatusNotFound)
			return
		}
	}))
	t.Cleanup(srv.Close)

	metrics := observability.NewCollector("test")
	source := NewSource()
	p := NewPoller(source, testFetcher(), &productDecoder{}, nil, clock, PollerOptions{
		BaseURL:     srv.URL,
		Dir:         t.TempDir(),
		MaxLookback: 4,
		Metrics:     metrics,
	})

	p.PollOnce(context.Background())

	assert.InDelta(t, 1.0,
		testutil.ToFloat64(metrics.DownloadsTotal.WithLabelValues("wind", "error")), 1e-9)
}

func TestPollOnceRecordsCatalog(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2024, 3, 22, 17, 30, 0, 0, time.UTC))
	srv, _ := gfsServer(t, "t12z")

	catalog := testCatalog(t)
	source := NewSource()
	p := NewPoller(source, testFetcher(), &productDecoder{}, catalog, clock, PollerOptions{
		BaseURL:     srv.URL,
		Dir:         t.TempDir(),
		MaxLookback: 4,
	})

	p.PollOnce(context.Background())

	latest, err := catalog.Latest(context.Background(), grid.ProductWind)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, "t12z", latest.Cycle)
	assert.Equal(t, "20240322", latest.Date)
	assert.Equal(t, clock.Now().UTC(), latest.DownloadTime.UTC())
}
