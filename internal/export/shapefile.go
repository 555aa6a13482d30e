package export

import (
	"context"
	"strings"

	shp "github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/cranland/parcel-cli/internal/geometry"
)

// shapefileFields is the attribute table layout. DBF attribute values are
// flat strings apart from acreage.
var shapefileFields = []shp.Field{
	shp.StringField("BED", 64),
	shp.StringField("BLOCK", 64),
	shp.StringField("CONTRACT", 32),
	shp.StringField("FARM", 64),
	shp.FloatField("ACREAGE", 12, 3),
	shp.StringField("VARIETY", 32),
	shp.StringField("PLANTED", 10),
	shp.StringField("FRUIT", 64),
}

// ExportShapefile writes every decodable bed shape as a polygon record with
// its attribute row. Undecodable shapes are skipped and counted, matching
// the GeoJSON path.
func (e *Exporter) ExportShapefile(ctx context.Context, path string) (Stats, error) {
	beds, err := e.source.ListShapedBeds(ctx)
	if err != nil {
		return Stats{}, eris.Wrap(err, "export: list shaped beds")
	}

	w, err := shp.Create(path, shp.POLYGON)
	if err != nil {
		return Stats{}, eris.Wrapf(err, "export: create shapefile %s", path)
	}
	defer w.Close()

	if err := w.SetFields(shapefileFields); err != nil {
		return Stats{}, eris.Wrap(err, "export: set shapefile fields")
	}

	var stats Stats
	for _, bed := range beds {
		poly, err := geometry.DecodePolygon(bed.ShapeValue)
		if err != nil {
			stats.Skipped++
			zap.L().Warn("skipping undecodable shape",
				zap.Int64("shape_id", bed.ShapeID),
				zap.String("bed_history_id", bed.BedHistoryID),
				zap.Error(err),
			)
			continue
		}

		rings := poly.Coords()
		parts := make([][]shp.Point, len(rings))
		for i, ring := range rings {
			pts := make([]shp.Point, len(ring))
			for j, c := range ring {
				pts[j] = shp.Point{X: c[0], Y: c[1]}
			}
			parts[i] = pts
		}
		record := shp.Polygon(*shp.NewPolyLine(parts))
		row := int(w.Write(&record))

		acreage := 0.0
		if bed.Acreage != nil {
			acreage = *bed.Acreage
		}
		planted := ""
		if bed.PlantedOn != nil {
			planted = bed.PlantedOn.Format("2006-01-02")
		}
		attrs := []any{
			bed.BedName,
			deref(bed.BlockName),
			bed.ContractNumber,
			deref(bed.FarmName),
			acreage,
			bed.Variety,
			planted,
			strings.Join(bed.Flags.Labels(), ", "),
		}
		for col, v := range attrs {
			if err := w.WriteAttribute(row, col, v); err != nil {
				return stats, eris.Wrapf(err, "export: write attribute %d for bed %s", col, bed.BedHistoryID)
			}
		}
		stats.Features++
	}

	stats.Files = 1
	return stats, nil
}
