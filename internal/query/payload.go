package query

import (
	"encoding/base64"
	"time"

	"github.com/seaward-systems/marinecast/internal/grid"
	"github.com/seaward-systems/marinecast/internal/hazard"
)

// Response is the wire payload for the data endpoints.
type Response struct {
	ValidTime       time.Time          `json:"valid_time"`
	DataPoints      []grid.DataPoint   `json:"data_points"`
	NearestPoint    *grid.DataPoint    `json:"nearest_point,omitempty"`
	ImageBase64     string             `json:"image_base64"`
	GribFile        ArtifactInfo       `json:"grib_file"`
	StormIndicators []hazard.Indicator `json:"storm_indicators,omitempty"`
}

// Payload assembles the response from a query result. Data points keep
// their extraction order; the image is base64-encoded PNG.
func (r *Result) Payload() Response {
	points := r.Points
	if points == nil {
		points = []grid.DataPoint{}
	}
	return Response{
		ValidTime:       r.ValidTime,
		DataPoints:      points,
		NearestPoint:    r.Nearest,
		ImageBase64:     base64.StdEncoding.EncodeToString(r.ImagePNG),
		GribFile:        r.Artifact,
		StormIndicators: r.Indicators,
	}
}
