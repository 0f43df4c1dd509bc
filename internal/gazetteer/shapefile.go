package gazetteer

import (
	"strings"

	shp "github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/seaward-systems/marinecast/internal/region"
)

// Source describes one shapefile to index: its path, the attribute column
// carrying the feature name, and the kind recorded on each entry.
type Source struct {
	Path      string
	NameField string
	Kind      string
}

// NaturalEarthSources returns the standard source set the service ships
// with: marine regions, countries, and lakes, matching the attribute
// schema of the Natural Earth 10m datasets.
func NaturalEarthSources(marinePath, countriesPath, lakesPath string) []Source {
	return []Source{
		{Path: marinePath, NameField: "name", Kind: "marine"},
		{Path: countriesPath, NameField: "NAME", Kind: "country"},
		{Path: lakesPath, NameField: "name", Kind: "lake"},
	}
}

// Build constructs the index from vector sources. It is called once at
// process start; the returned Index is immutable.
func Build(sources []Source, opts ...Option) (*Index, error) {
	ix := newIndex(opts...)
	log := zap.L().With(zap.String("component", "gazetteer"))

	for _, src := range sources {
		n, err := ix.loadSource(src)
		if err != nil {
			return nil, err
		}
		log.Info("indexed vector source",
			zap.String("path", src.Path),
			zap.String("kind", src.Kind),
			zap.Int("entries", n),
		)
	}

	if ix.Len() == 0 {
		return nil, eris.New("gazetteer: no entries indexed from any source")
	}
	return ix, nil
}

func (ix *Index) loadSource(src Source) (int, error) {
	reader, err := shp.Open(src.Path)
	if err != nil {
		return 0, eris.Wrapf(err, "gazetteer: open shapefile %s", src.Path)
	}
	defer func() { _ = reader.Close() }()

	nameIdx := fieldIndex(reader, src.NameField)
	if nameIdx < 0 {
		return 0, eris.Errorf("gazetteer: field %q not found in %s", src.NameField, src.Path)
	}

	before := ix.Len()
	var skipped int
	for reader.Next() {
		_, shape := reader.Shape()

		name := strings.TrimSpace(strings.TrimRight(reader.Attribute(nameIdx), "\x00"))
		if name == "" {
			skipped++
			continue
		}

		poly, ok := shape.(*shp.Polygon)
		if !ok {
			skipped++
			continue
		}
		mp := polygonToMultiPolygon(poly)
		if mp == nil {
			skipped++
			continue
		}

		ix.register(Entry{
			Name:    name,
			Kind:    src.Kind,
			Box:     boundsToBox(mp.Bounds()),
			Polygon: mp,
		})
	}
	if skipped > 0 {
		zap.L().Debug("gazetteer: skipped shapefile records",
			zap.String("path", src.Path),
			zap.Int("skipped", skipped),
		)
	}
	return ix.Len() - before, nil
}

// fieldIndex returns the index of a named field in the shapefile, or -1 if
// not found.
func fieldIndex(reader *shp.Reader, name string) int {
	for i, f := range reader.Fields() {
		if strings.EqualFold(strings.TrimRight(f.String(), "\x00"), name) {
			return i
		}
	}
	return -1
}

// polygonToMultiPolygon converts a shapefile Polygon to a go-geom
// MultiPolygon with one single-ring polygon per part. Membership tests run
// even-odd over all rings, so holes need no orientation analysis here.
func polygonToMultiPolygon(p *shp.Polygon) *geom.MultiPolygon {
	if p == nil || p.NumParts == 0 || len(p.Points) == 0 {
		return nil
	}

	mp := geom.NewMultiPolygon(geom.XY)
	for i := int32(0); i < p.NumParts; i++ {
		start := p.Parts[i]
		end := int32(len(p.Points))
		if i+1 < p.NumParts {
			end = p.Parts[i+1]
		}
		if end-start < 3 {
			continue
		}

		ring := make([]geom.Coord, 0, end-start)
		for j := start; j < end; j++ {
			ring = append(ring, geom.Coord{p.Points[j].X, p.Points[j].Y})
		}
		// Close the ring if the source left it open.
		if !ring[0].Equal(geom.XY, ring[len(ring)-1]) {
			ring = append(ring, ring[0])
		}

		poly := geom.NewPolygon(geom.XY)
		if _, err := poly.SetCoords([][]geom.Coord{ring}); err != nil {
			continue
		}
		if err := mp.Push(poly); err != nil {
			continue
		}
	}

	if mp.NumPolygons() == 0 {
		return nil
	}
	return mp
}

func boundsToBox(b *geom.Bounds) region.BoundingBox {
	return region.BoundingBox{
		MinLat: b.Min(1),
		MaxLat: b.Max(1),
		MinLon: b.Min(0),
		MaxLon: b.Max(0),
	}
}
