// Package forecast retrieves the human-written NWS coastal marine
// forecast text for a zone and passes it through unmodified.
package forecast

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// DefaultBaseURL is the NWS file server root for coastal zone products.
const DefaultBaseURL = "https://tgftp.nws.noaa.gov/data/forecasts/marine/coastal"

// ErrZoneNotFound means the upstream has no product for the zone.
var ErrZoneNotFound = eris.New("forecast: zone not found")

// zonePattern matches NWS marine zone identifiers such as ANZ335 or PZZ530.
var zonePattern = regexp.MustCompile(`^[A-Za-z]{2}[Zz]\d{3}$`)

// Client fetches forecast text from the NWS file server.
type Client struct {
	baseURL   string
	http      *http.Client
	userAgent string
}

// ClientOptions configures the forecast client.
type ClientOptions struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
}

// NewClient builds a Client with defaults filled in.
func NewClient(opts ClientOptions) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Timeout == 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "marinecast/1.0"
	}
	return &Client{
		baseURL:   strings.TrimRight(opts.BaseURL, "/"),
		http:      &http.Client{Timeout: opts.Timeout},
		userAgent: opts.UserAgent,
	}
}

// ZoneURL maps a zone identifier to its product URL. Zones are grouped by
// the two-letter area prefix, lowercased, e.g. ANZ335 lives under an/.
func (c *Client) ZoneURL(zone string) (string, error) {
	if !zonePattern.MatchString(zone) {
		return "", eris.Errorf("forecast: invalid zone identifier %q", zone)
	}
	z := strings.ToLower(zone)
	return fmt.Sprintf("%s/%s/%s.txt", c.baseURL, z[:2], z), nil
}

// Fetch returns the zone's forecast text verbatim.
func (c *Client) Fetch(ctx context.Context, zone string) (string, error) {
	url, err := c.ZoneURL(zone)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", eris.Wrap(err, "forecast: build request")
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", eris.Wrapf(err, "forecast: fetch %s", url)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode == http.StatusNotFound {
		return "", eris.Wrapf(ErrZoneNotFound, "zone %s", zone)
	}
	if resp.StatusCode != http.StatusOK {
		return "", eris.Errorf("forecast: fetch %s returned status %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", eris.Wrap(err, "forecast: read body")
	}

	zap.L().Debug("fetched marine forecast",
		zap.String("zone", zone), zap.Int("bytes", len(body)))
	return string(body), nil
}
