// Package gridsource is the concrete GridSource: it discovers and downloads
// GFS GRIB2 artifacts from NOMADS, catalogs them, decodes them through an
// external wgrib2 binary, and exposes the newest decoded grid per product
// as an atomically swapped snapshot.
package gridsource

import (
	"fmt"
	"time"

	"github.com/seaward-systems/marinecast/internal/grid"
)

// DefaultBaseURL is the NOMADS production directory for GFS output.
const DefaultBaseURL = "https://nomads.ncep.noaa.gov/pub/data/nccf/com/gfs/prod"

// availabilityLag is how long after its nominal time a GFS cycle typically
// becomes available for download. Candidate enumeration starts at the most
// recent cycle older than this lag.
const availabilityLag = 4 * time.Hour

// Cycle identifies one model run: its UTC date and synoptic hour.
type Cycle struct {
	Date time.Time // UTC midnight of the run date
	Hour int       // 0, 6, 12, or 18
}

// Tag returns the cycle token used in GFS filenames, e.g. "t12z".
func (c Cycle) Tag() string { return fmt.Sprintf("t%02dz", c.Hour) }

// DateDir returns the date directory component, e.g. "20240322".
func (c Cycle) DateDir() string { return c.Date.Format("20060102") }

// Time returns the cycle's nominal instant.
func (c Cycle) Time() time.Time { return c.Date.Add(time.Duration(c.Hour) * time.Hour) }

// After reports whether c is a newer run than other.
func (c Cycle) After(other Cycle) bool { return c.Time().After(other.Time()) }

// CycleCandidates enumerates the n most recent cycles expected to be
// published by now, newest first. Availability is confirmed by probing the
// artifact URL, not assumed.
func CycleCandidates(now time.Time, n int) []Cycle {
	t := now.UTC().Add(-availabilityLag)
	hour := (t.Hour() / 6) * 6

	out := make([]Cycle, 0, n)
	c := Cycle{Date: t.Truncate(24 * time.Hour), Hour: hour}
	for i := 0; i < n; i++ {
		out = append(out, c)
		if c.Hour == 0 {
			c = Cycle{Date: c.Date.AddDate(0, 0, -1), Hour: 18}
		} else {
			c = Cycle{Date: c.Date, Hour: c.Hour - 6}
		}
	}
	return out
}

// productSpec binds a product to its NOMADS layout and the wgrib2 match
// expression selecting the variables the engine consumes.
type productSpec struct {
	product    grid.Product
	resolution string
	match      string
	subdir     string
	filename   func(c Cycle, fh int) string
}

var specs = map[grid.Product]productSpec{
	grid.ProductWind: {
		product:    grid.ProductWind,
		resolution: "0p25",
		match:      ":((UGRD|VGRD):10 m above ground|GUST:surface):",
		subdir:     "atmos",
		filename: func(c Cycle, fh int) string {
			return fmt.Sprintf("gfs.%s.pgrb2.0p25.f%03d", c.Tag(), fh)
		},
	},
	grid.ProductWave: {
		product:    grid.ProductWave,
		resolution: "0p16",
		match:      ":(HTSGW|PERPW|DIRPW):surface:",
		subdir:     "wave/gridded",
		filename: func(c Cycle, fh int) string {
			return fmt.Sprintf("gfswave.%s.global.0p16.f%03d.grib2", c.Tag(), fh)
		},
	},
}

// ArtifactURL builds the download URL of one product's file for a cycle
// and forecast hour.
func ArtifactURL(baseURL string, product grid.Product, c Cycle, fh int) string {
	spec := specs[product]
	return fmt.Sprintf("%s/gfs.%s/%02d/%s/%s",
		baseURL, c.DateDir(), c.Hour, spec.subdir, spec.filename(c, fh))
}
