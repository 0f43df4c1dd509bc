package gazetteer

import (
	geojson "github.com/paulmach/go.geojson"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
)

// Feature exports a gazetteer entry as a GeoJSON feature, matched with the
// same rules as Lookup. Properties carry the display name, kind, and
// bounding box.
func (ix *Index) Feature(name string) (*geojson.Feature, error) {
	entry, ok := ix.Entry(name)
	if !ok {
		return nil, eris.Errorf("gazetteer: no entry matches %q", name)
	}

	f := geojson.NewMultiPolygonFeature(multiPolygonCoords(entry.Polygon)...)
	f.SetProperty("name", entry.Name)
	f.SetProperty("kind", entry.Kind)
	f.BoundingBox = []float64{entry.Box.MinLon, entry.Box.MinLat, entry.Box.MaxLon, entry.Box.MaxLat}
	return f, nil
}

func multiPolygonCoords(mp *geom.MultiPolygon) [][][][]float64 {
	if mp == nil {
		return nil
	}
	polys := make([][][][]float64, 0, mp.NumPolygons())
	for i := 0; i < mp.NumPolygons(); i++ {
		p := mp.Polygon(i)
		rings := make([][][]float64, 0, p.NumLinearRings())
		for j := 0; j < p.NumLinearRings(); j++ {
			ring := p.LinearRing(j)
			coords := make([][]float64, 0, ring.NumCoords())
			for k := 0; k < ring.NumCoords(); k++ {
				c := ring.Coord(k)
				coords = append(coords, []float64{c.X(), c.Y()})
			}
			rings = append(rings, coords)
		}
		polys = append(polys, rings)
	}
	return polys
}
