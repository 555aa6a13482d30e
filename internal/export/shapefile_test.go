package export

import (
	"context"
	"path/filepath"
	"testing"

	shp "github.com/jonas-p/go-shp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cranland/parcel-cli/internal/store"
)

func TestExportShapefile(t *testing.T) {
	source := &fakeSource{beds: []store.ShapedBed{
		shapedBed(str("Hartley Cranberry Co"), "North 3", validRing),
		shapedBed(str("Hartley Cranberry Co"), "North 4", "((garbage))"),
	}}

	path := filepath.Join(t.TempDir(), "beds.shp")
	stats, err := NewExporter(source).ExportShapefile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Features)
	assert.Equal(t, 1, stats.Skipped)

	r, err := shp.Open(path)
	require.NoError(t, err)
	defer r.Close() //nolint:errcheck

	require.True(t, r.Next())
	_, shape := r.Shape()
	poly, ok := shape.(*shp.Polygon)
	require.True(t, ok)
	assert.Equal(t, int32(4), poly.NumPoints)
	assert.False(t, r.Next())
}
