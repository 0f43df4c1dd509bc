// Package render draws extracted data points as a PNG raster. It is the
// in-process Renderer implementation; the color ramp is fixed per product
// so successive frames of the same product are visually comparable.
package render

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"sort"

	"github.com/rotisserie/eris"

	"github.com/seaward-systems/marinecast/internal/grid"
	"github.com/seaward-systems/marinecast/internal/region"
)

// Raster renders the extraction's natural grid shape, one square of
// CellPixels per data point. Cells absent from the extraction (outside a
// region polygon) stay transparent.
type Raster struct {
	CellPixels int
}

// NewRaster builds a Raster renderer. cellPixels defaults to 8.
func NewRaster(cellPixels int) *Raster {
	if cellPixels <= 0 {
		cellPixels = 8
	}
	return &Raster{CellPixels: cellPixels}
}

// scales fix the color ramp span per product's primary measurement.
var scales = map[grid.Product]struct {
	measure string
	min     float64
	max     float64
}{
	grid.ProductWind: {grid.MeasureWindSpeedKnots, 0, 70},
	grid.ProductWave: {grid.MeasureWaveHeightM, 0, 10},
}

// Render reconstructs the raster from the deterministic scan order of the
// point sequence and encodes it as PNG.
func (r *Raster) Render(_ context.Context, product grid.Product, points []grid.DataPoint, _ region.BoundingBox) ([]byte, error) {
	scale, ok := scales[product]
	if !ok {
		return nil, eris.Errorf("render: unknown product %q", product)
	}
	if len(points) == 0 {
		return nil, eris.New("render: no data points")
	}

	lats, lons := axes(points)
	latIdx := indexOf(lats)
	lonIdx := indexOf(lons)

	w := len(lons) * r.CellPixels
	h := len(lats) * r.CellPixels
	img := image.NewNRGBA(image.Rect(0, 0, w, h))

	for _, p := range points {
		v, ok := p.Values[scale.measure]
		if !ok {
			continue
		}
		col := rampColor((v - scale.min) / (scale.max - scale.min))
		// Row 0 is the northernmost latitude.
		row := len(lats) - 1 - latIdx[p.Latitude]
		colIdx := lonIdx[p.Longitude]
		fillCell(img, colIdx*r.CellPixels, row*r.CellPixels, r.CellPixels, col)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, eris.Wrap(err, "render: encode png")
	}
	return buf.Bytes(), nil
}

func axes(points []grid.DataPoint) (lats, lons []float64) {
	latSet := map[float64]struct{}{}
	lonSet := map[float64]struct{}{}
	for _, p := range points {
		latSet[p.Latitude] = struct{}{}
		lonSet[p.Longitude] = struct{}{}
	}
	for v := range latSet {
		lats = append(lats, v)
	}
	for v := range lonSet {
		lons = append(lons, v)
	}
	sort.Float64s(lats)
	sort.Float64s(lons)
	return lats, lons
}

func indexOf(axis []float64) map[float64]int {
	idx := make(map[float64]int, len(axis))
	for i, v := range axis {
		idx[v] = i
	}
	return idx
}

func fillCell(img *image.NRGBA, x, y, size int, col color.NRGBA) {
	for dy := 0; dy < size; dy++ {
		for dx := 0; dx < size; dx++ {
			img.SetNRGBA(x+dx, y+dy, col)
		}
	}
}

// rampColor maps a normalized 0..1 value through a blue-green-yellow-red
// ramp. Out-of-range values clamp.
func rampColor(t float64) color.NRGBA {
	if t < 0 {
		t = 0
	}
	if t > 1 {
		t = 1
	}
	stops := []color.NRGBA{
		{R: 0x1f, G: 0x4e, B: 0xd8, A: 0xff},
		{R: 0x22, G: 0xb0, B: 0x6e, A: 0xff},
		{R: 0xf5, G: 0xd0, B: 0x2e, A: 0xff},
		{R: 0xd8, G: 0x26, B: 0x1f, A: 0xff},
	}
	seg := t * float64(len(stops)-1)
	i := int(seg)
	if i >= len(stops)-1 {
		return stops[len(stops)-1]
	}
	f := seg - float64(i)
	a, b := stops[i], stops[i+1]
	return color.NRGBA{
		R: lerp(a.R, b.R, f),
		G: lerp(a.G, b.G, f),
		B: lerp(a.B, b.B, f),
		A: 0xff,
	}
}

func lerp(a, b uint8, f float64) uint8 {
	return uint8(float64(a) + (float64(b)-float64(a))*f)
}
