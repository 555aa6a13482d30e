package geocode

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"

	"github.com/rotisserie/eris"
)

const (
	censusDefaultURL = "https://geocoding.geo.census.gov/geocoder/locations/onelineaddress"
	censusBenchmark  = "Public_AR_Current"
)

// censusResponse is the JSON response from the Census one-line API.
type censusResponse struct {
	Result struct {
		AddressMatches []censusMatch `json:"addressMatches"`
	} `json:"result"`
}

type censusMatch struct {
	Coordinates struct {
		X float64 `json:"x"` // longitude
		Y float64 `json:"y"` // latitude
	} `json:"coordinates"`
	MatchedAddress string `json:"matchedAddress"`
}

// CensusProvider geocodes free-text one-line addresses against the Census
// Geocoder. With CityOnly set it queries "city, state" alone and flags
// matches as approximate under the "census-city" source label.
type CensusProvider struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	cityOnly   bool
}

// NewCensusProvider creates a street-level Census provider.
func NewCensusProvider(baseURL, userAgent string, httpClient *http.Client) *CensusProvider {
	if baseURL == "" {
		baseURL = censusDefaultURL
	}
	return &CensusProvider{baseURL: baseURL, userAgent: userAgent, httpClient: httpClient}
}

// NewCensusCityProvider creates the degraded city-level fallback provider.
func NewCensusCityProvider(baseURL, userAgent string, httpClient *http.Client) *CensusProvider {
	p := NewCensusProvider(baseURL, userAgent, httpClient)
	p.cityOnly = true
	return p
}

// Name implements Provider.
func (p *CensusProvider) Name() string {
	if p.cityOnly {
		return "census-city"
	}
	return "census"
}

// Geocode implements Provider. The first candidate wins; Census orders by
// its own match confidence.
func (p *CensusProvider) Geocode(ctx context.Context, q Query) (*Result, error) {
	var oneLine string
	if p.cityOnly {
		oneLine = formatOneLine(q.City, q.State)
	} else {
		oneLine = formatOneLine(q.Street, q.City, q.State, q.PostalCode)
	}
	if oneLine == "" {
		return &Result{Matched: false, Source: p.Name()}, nil
	}

	params := url.Values{
		"address":   {oneLine},
		"benchmark": {censusBenchmark},
		"format":    {"json"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: census build request")
	}
	req.Header.Set("User-Agent", p.userAgent)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: census request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("geocode: census returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: census read body")
	}

	var censusResp censusResponse
	if err := json.Unmarshal(body, &censusResp); err != nil {
		return nil, eris.Wrap(err, "geocode: census parse response")
	}

	if len(censusResp.Result.AddressMatches) == 0 {
		return &Result{Matched: false, Source: p.Name()}, nil
	}

	match := censusResp.Result.AddressMatches[0]
	return &Result{
		Latitude:    match.Coordinates.Y,
		Longitude:   match.Coordinates.X,
		Source:      p.Name(),
		Matched:     true,
		Approximate: p.cityOnly,
	}, nil
}
