// Package export renders reconciled beds and farm points as GeoJSON feature
// collections and shapefiles.
package export

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"

	"github.com/cranland/parcel-cli/internal/geometry"
	"github.com/cranland/parcel-cli/internal/store"
)

// crs84 is the legacy CRS member some desktop GIS tools still expect on
// exported collections.
const crs84 = "urn:ogc:def:crs:OGC:1.3:CRS84"

// Feature is one GeoJSON feature.
type Feature struct {
	Type       string          `json:"type"`
	Geometry   json.RawMessage `json:"geometry"`
	Properties map[string]any  `json:"properties"`
}

// CRS is the named coordinate reference system envelope.
type CRS struct {
	Type       string `json:"type"`
	Properties struct {
		Name string `json:"name"`
	} `json:"properties"`
}

// FeatureCollection is the exported GeoJSON document.
type FeatureCollection struct {
	Type     string    `json:"type"`
	Name     string    `json:"name,omitempty"`
	CRS      *CRS      `json:"crs,omitempty"`
	Features []Feature `json:"features"`
}

func newCollection(name string, features []Feature) FeatureCollection {
	crs := &CRS{Type: "name"}
	crs.Properties.Name = crs84
	if features == nil {
		features = []Feature{}
	}
	return FeatureCollection{Type: "FeatureCollection", Name: name, CRS: crs, Features: features}
}

// BedSource is the store slice the exporter reads from.
type BedSource interface {
	ListShapedBeds(ctx context.Context) ([]store.ShapedBed, error)
	ListFarmPoints(ctx context.Context) ([]store.FarmPoint, error)
}

// Stats summarizes one export run. Skipped counts shapes whose stored
// encoding failed to decode.
type Stats struct {
	Features int `json:"features"`
	Skipped  int `json:"skipped"`
	Files    int `json:"files"`
}

// Exporter reads the store views and writes export documents.
type Exporter struct {
	source BedSource
}

// NewExporter creates an Exporter over the given source.
func NewExporter(source BedSource) *Exporter {
	return &Exporter{source: source}
}

// bedFeature decodes one shaped-bed row into a polygon feature. A decode
// failure returns nil and the row is counted as skipped by the caller.
func bedFeature(bed store.ShapedBed) (*Feature, error) {
	poly, err := geometry.DecodePolygon(bed.ShapeValue)
	if err != nil {
		return nil, err
	}

	raw, err := geojson.Marshal(poly)
	if err != nil {
		return nil, eris.Wrapf(err, "export: marshal geometry for bed %s", bed.BedHistoryID)
	}

	acreage := 0.0
	if bed.Acreage != nil {
		acreage = *bed.Acreage
	}
	props := map[string]any{
		"bed":         bed.BedName,
		"bed_history": bed.BedHistoryID,
		"block":       deref(bed.BlockName),
		"contract":    bed.ContractNumber,
		"crop_year":   bed.CropYear,
		"farm":        deref(bed.FarmName),
		"acreage":     acreage,
		"variety":     bed.Variety,
		"fruit_types": strings.Join(bed.Flags.Labels(), ", "),
		"organic":     bed.Flags.Organic,
		"export":      bed.Flags.Export,
		"shape_type":  bed.ShapeType,
	}
	// Null planting dates stay absent rather than serializing as "".
	if bed.PlantedOn != nil {
		props["planted"] = bed.PlantedOn.Format("2006-01-02")
	}

	return &Feature{Type: "Feature", Geometry: raw, Properties: props}, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// collectFeatures converts shaped-bed rows, skipping undecodable shapes.
func collectFeatures(beds []store.ShapedBed) (features []Feature, skipped int) {
	for _, bed := range beds {
		f, err := bedFeature(bed)
		if err != nil {
			skipped++
			zap.L().Warn("skipping undecodable shape",
				zap.Int64("shape_id", bed.ShapeID),
				zap.String("bed_history_id", bed.BedHistoryID),
				zap.Error(err),
			)
			continue
		}
		features = append(features, *f)
	}
	return features, skipped
}

// ExportAll writes every shaped bed as one feature collection.
func (e *Exporter) ExportAll(ctx context.Context, w io.Writer) (Stats, error) {
	beds, err := e.source.ListShapedBeds(ctx)
	if err != nil {
		return Stats{}, eris.Wrap(err, "export: list shaped beds")
	}

	features, skipped := collectFeatures(beds)
	stats := Stats{Features: len(features), Skipped: skipped, Files: 1}
	return stats, writeJSON(w, newCollection("beds", features))
}

// farmSlug names a farm's export collection. Nameless farms group under
// "unassigned".
func farmSlug(name string) string {
	slug := Slugify(name)
	if slug == "" {
		return "unassigned"
	}
	return slug
}

// ExportByFarm writes one feature collection per farm into dir, named by the
// farm's slug. Beds whose contract has no named farm land in unassigned.geojson.
func (e *Exporter) ExportByFarm(ctx context.Context, dir string) (Stats, error) {
	beds, err := e.source.ListShapedBeds(ctx)
	if err != nil {
		return Stats{}, eris.Wrap(err, "export: list shaped beds")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Stats{}, eris.Wrapf(err, "export: create %s", dir)
	}

	// Group while preserving the view's ordering within each farm.
	groups := make(map[string][]store.ShapedBed)
	var order []string
	for _, bed := range beds {
		name := deref(bed.FarmName)
		if _, seen := groups[name]; !seen {
			order = append(order, name)
		}
		groups[name] = append(groups[name], bed)
	}

	var stats Stats
	for _, name := range order {
		features, skipped := collectFeatures(groups[name])
		stats.Features += len(features)
		stats.Skipped += skipped
		if len(features) == 0 {
			continue
		}

		slug := farmSlug(name)
		path := filepath.Join(dir, slug+".geojson")
		if err := writeJSONFile(path, newCollection(slug, features)); err != nil {
			return stats, err
		}
		stats.Files++
	}
	return stats, nil
}

// ErrFarmNotFound is returned by ExportFarm when no shaped bed belongs to
// the requested farm slug.
var ErrFarmNotFound = eris.New("export: farm not found")

// ExportFarm writes the feature collection for the single farm whose slug
// matches. The slug "unassigned" selects beds whose contract has no named
// farm.
func (e *Exporter) ExportFarm(ctx context.Context, w io.Writer, slug string) (Stats, error) {
	beds, err := e.source.ListShapedBeds(ctx)
	if err != nil {
		return Stats{}, eris.Wrap(err, "export: list shaped beds")
	}

	var matched []store.ShapedBed
	for _, bed := range beds {
		if farmSlug(deref(bed.FarmName)) == slug {
			matched = append(matched, bed)
		}
	}
	if len(matched) == 0 {
		return Stats{}, eris.Wrapf(ErrFarmNotFound, "slug %s", slug)
	}

	features, skipped := collectFeatures(matched)
	stats := Stats{Features: len(features), Skipped: skipped, Files: 1}
	return stats, writeJSON(w, newCollection(slug, features))
}

// ExportPoints writes one point feature per geocoded farm address.
func (e *Exporter) ExportPoints(ctx context.Context, w io.Writer) (Stats, error) {
	points, err := e.source.ListFarmPoints(ctx)
	if err != nil {
		return Stats{}, eris.Wrap(err, "export: list farm points")
	}

	features := make([]Feature, 0, len(points))
	for _, p := range points {
		pt := geom.NewPointFlat(geom.XY, []float64{p.Longitude, p.Latitude}).SetSRID(4326)
		raw, err := geojson.Marshal(pt)
		if err != nil {
			return Stats{}, eris.Wrapf(err, "export: marshal point for address %d", p.AddressID)
		}
		features = append(features, Feature{
			Type:     "Feature",
			Geometry: raw,
			Properties: map[string]any{
				"farm":      deref(p.FarmName),
				"city":      p.City,
				"state":     p.State,
				"acreage":   p.TotalAcreage,
				"contracts": deref(p.ContractNumbers),
			},
		})
	}

	stats := Stats{Features: len(features), Files: 1}
	return stats, writeJSON(w, newCollection("farm-points", features))
}

func writeJSON(w io.Writer, fc FeatureCollection) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(fc); err != nil {
		return eris.Wrap(err, "export: encode collection")
	}
	return nil
}

func writeJSONFile(path string, fc FeatureCollection) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "export: create %s", path)
	}
	defer f.Close() //nolint:errcheck

	if err := writeJSON(f, fc); err != nil {
		return err
	}
	return eris.Wrapf(f.Close(), "export: close %s", path)
}
