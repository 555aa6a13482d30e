// Package parcelapi is the client for the upstream grower contract API.
package parcelapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"

	"github.com/cranland/parcel-cli/internal/model"
)

// Client fetches parcel records per contract.
type Client interface {
	// FetchContract returns one record per bed for the given contract number
	// and crop year.
	FetchContract(ctx context.Context, contractNumber string, cropYear int) ([]model.ParcelRecord, error)
}

// APIError is returned when the upstream API responds with a non-2xx status.
type APIError struct {
	StatusCode int
	Body       string
}

// Error implements error.
func (e *APIError) Error() string {
	return fmt.Sprintf("parcelapi: upstream returned status %d: %s", e.StatusCode, e.Body)
}

// Option configures the client.
type Option func(*client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *client) { c.httpClient = hc }
}

// WithUserAgent overrides the identifying User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *client) { c.userAgent = ua }
}

// WithTimeout bounds each contract fetch.
func WithTimeout(d time.Duration) Option {
	return func(c *client) {
		c.httpClient.Timeout = d
	}
}

type client struct {
	baseURL    string
	token      string
	userAgent  string
	httpClient *http.Client
}

// NewClient creates a contract API client with the given base URL and bearer
// token.
func NewClient(baseURL, token string, opts ...Option) Client {
	c := &client{
		baseURL:    baseURL,
		token:      token,
		userAgent:  "parcel-cli/1.0",
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchContract implements Client.
func (c *client) FetchContract(ctx context.Context, contractNumber string, cropYear int) ([]model.ParcelRecord, error) {
	params := url.Values{
		"contractNumber": {contractNumber},
		"cropYear":       {strconv.Itoa(cropYear)},
	}

	reqURL := c.baseURL + "/contracts/beds?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "parcelapi: build request")
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrapf(err, "parcelapi: fetch contract %s", contractNumber)
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "parcelapi: read body")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: snippet(body)}
	}

	var records []model.ParcelRecord
	if err := json.Unmarshal(body, &records); err != nil {
		return nil, eris.Wrapf(err, "parcelapi: parse contract %s response", contractNumber)
	}

	return records, nil
}

// snippet bounds error bodies so log lines stay readable.
func snippet(body []byte) string {
	const max = 200
	if len(body) > max {
		return string(body[:max]) + "..."
	}
	return string(body)
}
