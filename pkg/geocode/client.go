// Package geocode resolves farm addresses to coordinates via a cascading
// provider chain: Census one-line (street level), Nominatim (street level,
// country-restricted), then Census city/state (approximate).
package geocode

import (
	"context"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// Query is an address to geocode.
type Query struct {
	Street     string
	City       string
	State      string
	PostalCode string
}

// Result holds the geocoding output for an address.
type Result struct {
	Latitude    float64
	Longitude   float64
	Source      string // "census", "nominatim", or "census-city"
	Matched     bool
	Approximate bool   // true for city-centroid matches only
	Reason      string // populated on unmatched results (e.g. "no physical address")
}

// Provider represents a single geocoding backend strategy. Each entry in the
// resolver chain is a Provider; adding a fallback is a one-line change.
type Provider interface {
	Name() string
	Geocode(ctx context.Context, q Query) (*Result, error)
}

// newPacer returns a limiter that admits the first call immediately and then
// enforces the fixed inter-request delay between provider calls. The delay
// is shared across providers and across addresses; the Nominatim usage
// policy requires it.
func newPacer(delay time.Duration) *rate.Limiter {
	if delay <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(delay), 1)
}

// formatOneLine joins the non-empty address parts with comma-space for
// free-text provider queries.
func formatOneLine(parts ...string) string {
	var nonEmpty []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	return strings.Join(nonEmpty, ", ")
}
