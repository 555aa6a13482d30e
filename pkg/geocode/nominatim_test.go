package geocode

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNominatimGeocode_Match(t *testing.T) {
	var gotQuery, gotCountry string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		gotCountry = r.URL.Query().Get("countrycodes")
		assert.Equal(t, "1", r.URL.Query().Get("limit"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `[
			{"lat": "41.8762", "lon": "-70.6309", "display_name": "Federal Furnace Rd, Plymouth, Plymouth County, Massachusetts, United States"},
			{"lat": "0", "lon": "0", "display_name": "should never be used"}
		]`)
	}))
	defer srv.Close()

	p := NewNominatimProvider(srv.URL, "parcel-cli-test", "us", srv.Client())
	result, err := p.Geocode(context.Background(), Query{
		Street: "14 Federal Furnace Rd", City: "Plymouth", State: "MA", PostalCode: "02360",
	})
	require.NoError(t, err)

	assert.Equal(t, "14 Federal Furnace Rd, Plymouth, MA, 02360", gotQuery)
	assert.Equal(t, "us", gotCountry)
	assert.True(t, result.Matched)
	assert.False(t, result.Approximate)
	assert.Equal(t, "nominatim", result.Source)
	assert.InDelta(t, 41.8762, result.Latitude, 0.0001)
	assert.InDelta(t, -70.6309, result.Longitude, 0.0001)
}

func TestNominatimGeocode_NoCandidates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `[]`)
	}))
	defer srv.Close()

	p := NewNominatimProvider(srv.URL, "parcel-cli-test", "us", srv.Client())
	result, err := p.Geocode(context.Background(), Query{Street: "1 Nowhere Ln", City: "Faketown", State: "XX"})
	require.NoError(t, err)
	assert.False(t, result.Matched)
	assert.Equal(t, "nominatim", result.Source)
}

func TestNominatimGeocode_BadCoordinateStrings(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `[{"lat": "not-a-number", "lon": "-70.6", "display_name": "x"}]`)
	}))
	defer srv.Close()

	p := NewNominatimProvider(srv.URL, "parcel-cli-test", "us", srv.Client())
	_, err := p.Geocode(context.Background(), Query{Street: "14 Federal Furnace Rd", City: "Plymouth", State: "MA"})
	require.Error(t, err)
}

func TestNominatimGeocode_RateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	p := NewNominatimProvider(srv.URL, "parcel-cli-test", "us", srv.Client())
	_, err := p.Geocode(context.Background(), Query{Street: "14 Federal Furnace Rd", City: "Plymouth", State: "MA"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 429")
}
