package geocode

import (
	"context"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cranland/parcel-cli/internal/model"
)

// fakeProvider records calls and returns a canned outcome.
type fakeProvider struct {
	name   string
	result *Result
	err    error
	calls  int
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Geocode(_ context.Context, _ Query) (*Result, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func matched(source string, approximate bool) *Result {
	return &Result{Latitude: 41.9, Longitude: -70.7, Source: source, Matched: true, Approximate: approximate}
}

func unmatched(source string) *Result {
	return &Result{Matched: false, Source: source}
}

func plymouthAddr() model.RecordAddress {
	return model.RecordAddress{
		Street: "14 Federal Furnace Rd", City: "Plymouth", State: "MA", PostalCode: "02360", Country: "US",
	}
}

func TestResolve_PrimaryMatchShortCircuits(t *testing.T) {
	primary := &fakeProvider{name: "census", result: matched("census", false)}
	secondary := &fakeProvider{name: "nominatim", result: matched("nominatim", false)}
	fallback := &fakeProvider{name: "census-city", result: matched("census-city", true)}

	r := NewResolverWithProviders([]Provider{primary, secondary, fallback}, 0, time.Second)
	result, err := r.Resolve(context.Background(), plymouthAddr())
	require.NoError(t, err)

	assert.True(t, result.Matched)
	assert.Equal(t, "census", result.Source)
	assert.False(t, result.Approximate)
	assert.Equal(t, 1, primary.calls)
	assert.Zero(t, secondary.calls, "secondary must not be called after a primary match")
	assert.Zero(t, fallback.calls)
}

func TestResolve_FallsThroughToSecondary(t *testing.T) {
	primary := &fakeProvider{name: "census", result: unmatched("census")}
	secondary := &fakeProvider{name: "nominatim", result: matched("nominatim", false)}
	fallback := &fakeProvider{name: "census-city", result: matched("census-city", true)}

	r := NewResolverWithProviders([]Provider{primary, secondary, fallback}, 0, time.Second)
	result, err := r.Resolve(context.Background(), plymouthAddr())
	require.NoError(t, err)

	assert.Equal(t, "nominatim", result.Source)
	assert.False(t, result.Approximate)
	assert.Zero(t, fallback.calls)
}

func TestResolve_CityLevelIsApproximate(t *testing.T) {
	primary := &fakeProvider{name: "census", result: unmatched("census")}
	secondary := &fakeProvider{name: "nominatim", result: unmatched("nominatim")}
	fallback := &fakeProvider{name: "census-city", result: matched("census-city", true)}

	r := NewResolverWithProviders([]Provider{primary, secondary, fallback}, 0, time.Second)
	result, err := r.Resolve(context.Background(), plymouthAddr())
	require.NoError(t, err)

	assert.True(t, result.Matched)
	assert.True(t, result.Approximate)
	assert.Equal(t, "census-city", result.Source)
}

func TestResolve_ProviderErrorAdvancesChain(t *testing.T) {
	primary := &fakeProvider{name: "census", err: eris.New("connection reset")}
	secondary := &fakeProvider{name: "nominatim", result: matched("nominatim", false)}

	r := NewResolverWithProviders([]Provider{primary, secondary}, 0, time.Second)
	result, err := r.Resolve(context.Background(), plymouthAddr())
	require.NoError(t, err)

	assert.True(t, result.Matched)
	assert.Equal(t, "nominatim", result.Source)
}

func TestResolve_AllMiss(t *testing.T) {
	providers := []Provider{
		&fakeProvider{name: "census", result: unmatched("census")},
		&fakeProvider{name: "nominatim", result: unmatched("nominatim")},
		&fakeProvider{name: "census-city", result: unmatched("census-city")},
	}

	r := NewResolverWithProviders(providers, 0, time.Second)
	result, err := r.Resolve(context.Background(), plymouthAddr())
	require.NoError(t, err)

	assert.False(t, result.Matched)
	assert.Equal(t, "no provider match", result.Reason)
}

func TestResolve_UndeliverableSkipsProviders(t *testing.T) {
	primary := &fakeProvider{name: "census", result: matched("census", false)}

	r := NewResolverWithProviders([]Provider{primary}, 0, time.Second)
	result, err := r.Resolve(context.Background(), model.RecordAddress{
		Street: "PO Box 12", City: "Carver", State: "MA", PostalCode: "02330",
	})
	require.NoError(t, err)

	assert.False(t, result.Matched)
	assert.Equal(t, "no physical address", result.Reason)
	assert.Zero(t, primary.calls)
}

func TestResolve_PacerSpacesCalls(t *testing.T) {
	delay := 50 * time.Millisecond
	providers := []Provider{
		&fakeProvider{name: "census", result: unmatched("census")},
		&fakeProvider{name: "nominatim", result: unmatched("nominatim")},
		&fakeProvider{name: "census-city", result: unmatched("census-city")},
	}

	r := NewResolverWithProviders(providers, delay, time.Second)
	start := time.Now()
	_, err := r.Resolve(context.Background(), plymouthAddr())
	require.NoError(t, err)

	// First call is immediate; the two fallback steps each wait the delay.
	assert.GreaterOrEqual(t, time.Since(start), 2*delay)
}
