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

func TestCensusGeocode_Match(t *testing.T) {
	var gotAddress string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAddress = r.URL.Query().Get("address")
		assert.Equal(t, "parcel-cli-test", r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"result": {
				"addressMatches": [{
					"coordinates": {"x": -70.7194, "y": 41.9001},
					"matchedAddress": "450 CRANBERRY HWY, WAREHAM, MA, 02571"
				}]
			}
		}`)
	}))
	defer srv.Close()

	p := NewCensusProvider(srv.URL, "parcel-cli-test", srv.Client())
	result, err := p.Geocode(context.Background(), Query{
		Street: "450 Cranberry Hwy", City: "Wareham", State: "MA", PostalCode: "02571",
	})
	require.NoError(t, err)
	assert.True(t, result.Matched)
	assert.False(t, result.Approximate)
	assert.Equal(t, "census", result.Source)
	assert.InDelta(t, 41.9001, result.Latitude, 0.0001)
	assert.InDelta(t, -70.7194, result.Longitude, 0.0001)
	assert.Equal(t, "450 Cranberry Hwy, Wareham, MA, 02571", gotAddress)
}

func TestCensusGeocode_NoMatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"result": {"addressMatches": []}}`)
	}))
	defer srv.Close()

	p := NewCensusProvider(srv.URL, "parcel-cli-test", srv.Client())
	result, err := p.Geocode(context.Background(), Query{Street: "1 Nowhere Ln", City: "Faketown", State: "XX"})
	require.NoError(t, err)
	assert.False(t, result.Matched)
	assert.Equal(t, "census", result.Source)
}

func TestCensusGeocode_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	p := NewCensusProvider(srv.URL, "parcel-cli-test", srv.Client())
	_, err := p.Geocode(context.Background(), Query{Street: "450 Cranberry Hwy", City: "Wareham", State: "MA"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 502")
}

func TestCensusCityProvider_QueryAndLabels(t *testing.T) {
	var gotAddress string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAddress = r.URL.Query().Get("address")
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"result": {
				"addressMatches": [{
					"coordinates": {"x": -70.72, "y": 41.76},
					"matchedAddress": "WAREHAM, MA"
				}]
			}
		}`)
	}))
	defer srv.Close()

	p := NewCensusCityProvider(srv.URL, "parcel-cli-test", srv.Client())
	result, err := p.Geocode(context.Background(), Query{
		Street: "450 Cranberry Hwy", City: "Wareham", State: "MA", PostalCode: "02571",
	})
	require.NoError(t, err)

	// City-level query drops the street and postal code entirely.
	assert.Equal(t, "Wareham, MA", gotAddress)
	assert.True(t, result.Matched)
	assert.True(t, result.Approximate)
	assert.Equal(t, "census-city", result.Source)
}

func TestCensusGeocode_EmptyQuery(t *testing.T) {
	p := NewCensusProvider("http://unused.invalid", "parcel-cli-test", http.DefaultClient)
	result, err := p.Geocode(context.Background(), Query{})
	require.NoError(t, err)
	assert.False(t, result.Matched)
}
