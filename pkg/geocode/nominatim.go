package geocode

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/rotisserie/eris"
)

const nominatimDefaultURL = "https://nominatim.openstreetmap.org/search"

// nominatimPlace is one candidate from the Nominatim search API. Lat and lon
// arrive as strings.
type nominatimPlace struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

// NominatimProvider geocodes free-text queries against Nominatim, restricted
// to one country. Its usage policy caps request rates; the resolver's shared
// pacer enforces the delay.
type NominatimProvider struct {
	baseURL     string
	userAgent   string
	countryCode string
	httpClient  *http.Client
}

// NewNominatimProvider creates a Nominatim provider restricted to the given
// ISO country code.
func NewNominatimProvider(baseURL, userAgent, countryCode string, httpClient *http.Client) *NominatimProvider {
	if baseURL == "" {
		baseURL = nominatimDefaultURL
	}
	return &NominatimProvider{
		baseURL:     baseURL,
		userAgent:   userAgent,
		countryCode: countryCode,
		httpClient:  httpClient,
	}
}

// Name implements Provider.
func (p *NominatimProvider) Name() string { return "nominatim" }

// Geocode implements Provider. The first candidate wins; Nominatim orders by
// importance.
func (p *NominatimProvider) Geocode(ctx context.Context, q Query) (*Result, error) {
	oneLine := formatOneLine(q.Street, q.City, q.State, q.PostalCode)
	if oneLine == "" {
		return &Result{Matched: false, Source: p.Name()}, nil
	}

	params := url.Values{
		"q":            {oneLine},
		"format":       {"jsonv2"},
		"limit":        {"1"},
		"countrycodes": {p.countryCode},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: nominatim build request")
	}
	req.Header.Set("User-Agent", p.userAgent)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: nominatim request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("geocode: nominatim returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: nominatim read body")
	}

	var places []nominatimPlace
	if err := json.Unmarshal(body, &places); err != nil {
		return nil, eris.Wrap(err, "geocode: nominatim parse response")
	}

	if len(places) == 0 {
		return &Result{Matched: false, Source: p.Name()}, nil
	}

	place := places[0]
	lat, err := strconv.ParseFloat(place.Lat, 64)
	if err != nil {
		return nil, eris.Wrapf(err, "geocode: nominatim parse lat %q", place.Lat)
	}
	lon, err := strconv.ParseFloat(place.Lon, 64)
	if err != nil {
		return nil, eris.Wrapf(err, "geocode: nominatim parse lon %q", place.Lon)
	}

	return &Result{
		Latitude:  lat,
		Longitude: lon,
		Source:    p.Name(),
		Matched:   true,
	}, nil
}
