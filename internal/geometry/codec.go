// Package geometry decodes the upstream polygon text encoding into go-geom
// polygons.
package geometry

import (
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
)

// DecodePolygon parses the upstream coordinate-pair encoding
// ((lon,lat),(lon,lat),...) into a polygon with a single exterior ring.
// The format defines no holes. Malformed input returns a nil polygon and an
// error; callers skip the shape and keep going.
func DecodePolygon(value string) (*geom.Polygon, error) {
	if !strings.HasPrefix(value, "((") || !strings.HasSuffix(value, "))") {
		return nil, eris.Errorf("geometry: unbalanced parentheses in %q", truncate(value))
	}

	inner := value[2 : len(value)-2]
	if inner == "" {
		return nil, eris.New("geometry: empty coordinate sequence")
	}

	pairs := strings.Split(inner, "),(")
	flat := make([]float64, 0, len(pairs)*2)
	for _, pair := range pairs {
		parts := strings.Split(pair, ",")
		if len(parts) != 2 {
			return nil, eris.Errorf("geometry: malformed coordinate pair %q", pair)
		}
		lon, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
		if err != nil {
			return nil, eris.Wrapf(err, "geometry: parse longitude %q", parts[0])
		}
		lat, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if err != nil {
			return nil, eris.Wrapf(err, "geometry: parse latitude %q", parts[1])
		}
		flat = append(flat, lon, lat)
	}

	ends := []int{len(flat)}
	return geom.NewPolygonFlat(geom.XY, flat, ends).SetSRID(4326), nil
}

// truncate keeps error messages readable for long shape values.
func truncate(s string) string {
	if len(s) > 40 {
		return s[:40] + "..."
	}
	return s
}
