package output

import (
	"encoding/json"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/sells-group/aerocodes/internal/codes"
)

// FeatureCollection builds a GeoJSON collection with one Point per entry.
// Coordinates are in [lon, lat] order.
func FeatureCollection(entries []codes.Entry) *geojson.FeatureCollection {
	fc := &geojson.FeatureCollection{
		Features: make([]*geojson.Feature, 0, len(entries)),
	}
	for _, e := range entries {
		fc.Features = append(fc.Features, &geojson.Feature{
			ID:       e.Code,
			Geometry: geom.NewPointFlat(geom.XY, []float64{e.Coord.Lon(), e.Coord.Lat()}),
			Properties: map[string]any{
				"code": e.Code,
			},
		})
	}
	return fc
}

// WriteGeoJSON writes entries as a GeoJSON FeatureCollection to dir/name.
func (w *Writer) WriteGeoJSON(dir, name string, entries []codes.Entry) (string, error) {
	data, err := json.Marshal(FeatureCollection(entries))
	if err != nil {
		return "", eris.Wrap(err, "output: encode geojson")
	}
	return w.WriteFile(dir, name, data)
}
