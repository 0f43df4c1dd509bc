package forecast

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleForecast = `ANZ335-221315-
New York Harbor-
347 AM EDT Fri Mar 22 2024

.TODAY...NW winds 15 to 20 kt with gusts up to 30 kt.
Seas 3 to 5 ft.
`

func TestZoneURL(t *testing.T) {
	c := NewClient(ClientOptions{BaseURL: "https://example.test/coastal"})

	url, err := c.ZoneURL("ANZ335")
	require.NoError(t, err)
	assert.Equal(t, "https://example.test/coastal/an/anz335.txt", url)

	url, err = c.ZoneURL("pzz530")
	require.NoError(t, err)
	assert.Equal(t, "https://example.test/coastal/pz/pzz530.txt", url)

	_, err = c.ZoneURL("nonsense")
	assert.Error(t, err)

	_, err = c.ZoneURL("ANZ33")
	assert.Error(t, err)

	_, err = c.ZoneURL("")
	assert.Error(t, err)
}

func TestFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/an/anz335.txt", r.URL.Path)
		_, _ = w.Write([]byte(sampleForecast))
	}))
	defer srv.Close()

	c := NewClient(ClientOptions{BaseURL: srv.URL})

	text, err := c.Fetch(context.Background(), "ANZ335")
	require.NoError(t, err)

	// Pass-through, byte for byte.
	assert.Equal(t, sampleForecast, text)
}

func TestFetchZoneNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(ClientOptions{BaseURL: srv.URL})

	_, err := c.Fetch(context.Background(), "ANZ999")
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrZoneNotFound))
}

func TestFetchUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(ClientOptions{BaseURL: srv.URL})

	_, err := c.Fetch(context.Background(), "ANZ335")
	require.Error(t, err)
	assert.False(t, eris.Is(err, ErrZoneNotFound))
}
