package grid

import (
	"encoding/json"

	"github.com/rotisserie/eris"
)

// DataPoint is one extracted grid cell: its center coordinate and the
// named measurement values at that cell. Longitude is always reported in
// −180..180 regardless of the source grid's convention.
type DataPoint struct {
	Latitude  float64
	Longitude float64
	Values    map[string]float64
}

// MarshalJSON flattens measurements next to the coordinates, matching the
// wire schema: {"latitude":.., "longitude":.., "wind_speed_knots":..}.
func (p DataPoint) MarshalJSON() ([]byte, error) {
	flat := make(map[string]float64, len(p.Values)+2)
	for name, v := range p.Values {
		flat[name] = v
	}
	flat["latitude"] = p.Latitude
	flat["longitude"] = p.Longitude
	return json.Marshal(flat)
}

// UnmarshalJSON reverses MarshalJSON.
func (p *DataPoint) UnmarshalJSON(data []byte) error {
	var flat map[string]float64
	if err := json.Unmarshal(data, &flat); err != nil {
		return eris.Wrap(err, "grid: decode data point")
	}
	lat, ok := flat["latitude"]
	if !ok {
		return eris.New("grid: data point missing latitude")
	}
	lon, ok := flat["longitude"]
	if !ok {
		return eris.New("grid: data point missing longitude")
	}
	delete(flat, "latitude")
	delete(flat, "longitude")
	p.Latitude = lat
	p.Longitude = lon
	p.Values = flat
	return nil
}
