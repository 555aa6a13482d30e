package geocode

import (
	"context"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/cranland/parcel-cli/internal/address"
	"github.com/cranland/parcel-cli/internal/model"
)

// Resolver runs the ordered provider chain for one address at a time. Calls
// are serialized by a shared pacer; each provider call gets an independent
// timeout, and a transport error or timeout on one step only advances the
// chain.
type Resolver struct {
	providers []Provider
	pacer     *rate.Limiter
	timeout   time.Duration
}

// ResolverConfig carries the chain settings.
type ResolverConfig struct {
	CensusURL    string
	NominatimURL string
	UserAgent    string
	CountryCode  string
	Timeout      time.Duration // per provider call
	Delay        time.Duration // fixed inter-request delay
}

// NewResolver builds the standard three-step chain: Census street-level,
// Nominatim country-restricted, Census city-level approximate.
func NewResolver(cfg ResolverConfig) *Resolver {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	hc := &http.Client{Timeout: cfg.Timeout}
	return &Resolver{
		providers: []Provider{
			NewCensusProvider(cfg.CensusURL, cfg.UserAgent, hc),
			NewNominatimProvider(cfg.NominatimURL, cfg.UserAgent, cfg.CountryCode, hc),
			NewCensusCityProvider(cfg.CensusURL, cfg.UserAgent, hc),
		},
		pacer:   newPacer(cfg.Delay),
		timeout: cfg.Timeout,
	}
}

// NewResolverWithProviders builds a resolver over an explicit chain. Tests
// and future providers plug in here.
func NewResolverWithProviders(providers []Provider, delay, timeout time.Duration) *Resolver {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Resolver{providers: providers, pacer: newPacer(delay), timeout: timeout}
}

// Resolve cleans the raw address and walks the chain until a provider
// matches. An undeliverable address short-circuits with reason "no physical
// address" and no provider calls. All-steps-missed returns an unmatched
// result, not an error.
func (r *Resolver) Resolve(ctx context.Context, raw model.RecordAddress) (*Result, error) {
	cleaned, err := address.Clean(raw)
	if err != nil {
		if eris.Is(err, address.ErrUndeliverable) {
			return &Result{Matched: false, Reason: "no physical address"}, nil
		}
		return nil, eris.Wrap(err, "geocode: normalize address")
	}

	q := Query{
		Street:     cleaned.Street,
		City:       cleaned.City,
		State:      cleaned.State,
		PostalCode: cleaned.PostalCode,
	}

	for _, p := range r.providers {
		if err := r.pacer.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "geocode: wait for pacer")
		}

		callCtx, cancel := context.WithTimeout(ctx, r.timeout)
		result, err := p.Geocode(callCtx, q)
		cancel()
		if err != nil {
			// Scoped to this step only; fall through to the next provider.
			zap.L().Warn("geocode: provider call failed, continuing chain",
				zap.String("provider", p.Name()),
				zap.Error(err),
			)
			continue
		}
		if result != nil && result.Matched {
			return result, nil
		}
	}

	return &Result{Matched: false, Reason: "no provider match"}, nil
}
