package geometry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodePolygon_Valid(t *testing.T) {
	value := "((-70.6931,41.7684),(-70.6925,41.7688),(-70.6920,41.7681),(-70.6931,41.7684))"

	poly, err := DecodePolygon(value)
	require.NoError(t, err)
	require.NotNil(t, poly)

	assert.Equal(t, 1, poly.NumLinearRings())
	ring := poly.LinearRing(0)
	require.Equal(t, 4, ring.NumCoords())

	first := ring.Coord(0)
	assert.InDelta(t, -70.6931, first.X(), 1e-9)
	assert.InDelta(t, 41.7684, first.Y(), 1e-9)

	// Order is preserved.
	second := ring.Coord(1)
	assert.InDelta(t, -70.6925, second.X(), 1e-9)
	assert.InDelta(t, 41.7688, second.Y(), 1e-9)

	assert.Equal(t, 4326, poly.SRID())
}

func TestDecodePolygon_SinglePair(t *testing.T) {
	poly, err := DecodePolygon("((-70.5,41.5))")
	require.NoError(t, err)
	assert.Equal(t, 1, poly.LinearRing(0).NumCoords())
}

func TestDecodePolygon_Malformed(t *testing.T) {
	cases := []struct {
		name  string
		value string
	}{
		{"empty", ""},
		{"missing closing", "((-70.1,41.2),(-70.2,41.3)"},
		{"missing opening", "(-70.1,41.2),(-70.2,41.3))"},
		{"non-numeric lon", "((abc,41.2),(-70.2,41.3))"},
		{"non-numeric lat", "((-70.1,xyz),(-70.2,41.3))"},
		{"missing half", "((-70.1),(-70.2,41.3))"},
		{"empty sequence", "(())"},
		{"bare text", "not a polygon"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			poly, err := DecodePolygon(tc.value)
			require.Error(t, err)
			assert.Nil(t, poly)
		})
	}
}

func TestDecodePolygon_WhitespaceTolerant(t *testing.T) {
	poly, err := DecodePolygon("(( -70.1 , 41.2 ),( -70.2 , 41.3 ),( -70.1 , 41.2 ))")
	require.NoError(t, err)
	require.Equal(t, 3, poly.LinearRing(0).NumCoords())
	assert.InDelta(t, -70.2, poly.LinearRing(0).Coord(1).X(), 1e-9)
}
