package geocoding

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cranland/parcel-cli/internal/model"
	"github.com/cranland/parcel-cli/pkg/geocode"
)

type fakeStore struct {
	pending  []model.FarmAddress
	listErr  error
	writeErr error
	writes   map[int64]geocode.Result
}

func (f *fakeStore) ListUngeocodedAddresses(_ context.Context, _ int) ([]model.FarmAddress, error) {
	return f.pending, f.listErr
}

func (f *fakeStore) SetAddressCoordinates(_ context.Context, addressID int64, lat, lon float64, source string, approximate bool) error {
	if f.writeErr != nil {
		return f.writeErr
	}
	if f.writes == nil {
		f.writes = make(map[int64]geocode.Result)
	}
	f.writes[addressID] = geocode.Result{Latitude: lat, Longitude: lon, Source: source, Approximate: approximate}
	return nil
}

// scriptedResolver returns canned results keyed by street.
type scriptedResolver struct {
	results map[string]*geocode.Result
	errs    map[string]error
}

func (s *scriptedResolver) Resolve(_ context.Context, raw model.RecordAddress) (*geocode.Result, error) {
	if err, ok := s.errs[raw.Street]; ok {
		return nil, err
	}
	if r, ok := s.results[raw.Street]; ok {
		return r, nil
	}
	return &geocode.Result{Matched: false, Reason: "no provider match"}, nil
}

func pendingAddr(id int64, street string) model.FarmAddress {
	return model.FarmAddress{ID: id, Street: street, City: "Carver", State: "MA", PostalCode: "02330", Country: "US"}
}

func TestBackfill_MixedOutcomes(t *testing.T) {
	store := &fakeStore{pending: []model.FarmAddress{
		pendingAddr(1, "14 Federal Furnace Rd"),
		pendingAddr(2, "PO Box 12"),
		pendingAddr(3, "1 Nowhere Ln"),
		pendingAddr(4, "99 Bog Access Rd"),
	}}
	resolver := &scriptedResolver{results: map[string]*geocode.Result{
		"14 Federal Furnace Rd": {Latitude: 41.88, Longitude: -70.75, Source: "census", Matched: true},
		"PO Box 12":             {Matched: false, Reason: "no physical address"},
		"99 Bog Access Rd":      {Latitude: 41.9, Longitude: -70.7, Source: "census-city", Matched: true, Approximate: true},
	}}

	stats, err := Backfill(context.Background(), store, resolver, 0)
	require.NoError(t, err)

	assert.Equal(t, 4, stats.Scanned)
	assert.Equal(t, 2, stats.Resolved)
	assert.Equal(t, 1, stats.Approximate)
	assert.Equal(t, 1, stats.Undeliverable)
	assert.Equal(t, 1, stats.Unmatched)
	assert.Zero(t, stats.Failed)
	assert.Equal(t, map[string]int{"census": 1, "census-city": 1}, stats.BySource)

	require.Len(t, store.writes, 2)
	assert.InDelta(t, 41.88, store.writes[1].Latitude, 0.001)
	assert.Equal(t, "census-city", store.writes[4].Source)
	assert.True(t, store.writes[4].Approximate)
}

func TestBackfill_ResolverErrorSkipsAddress(t *testing.T) {
	store := &fakeStore{pending: []model.FarmAddress{
		pendingAddr(1, "14 Federal Furnace Rd"),
		pendingAddr(2, "99 Bog Access Rd"),
	}}
	resolver := &scriptedResolver{
		errs: map[string]error{"14 Federal Furnace Rd": eris.New("dns failure")},
		results: map[string]*geocode.Result{
			"99 Bog Access Rd": {Latitude: 41.9, Longitude: -70.7, Source: "nominatim", Matched: true},
		},
	}

	stats, err := Backfill(context.Background(), store, resolver, 0)
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, 1, stats.Resolved)
	require.Len(t, store.writes, 1)
}

func TestBackfill_WriteErrorAborts(t *testing.T) {
	store := &fakeStore{
		pending:  []model.FarmAddress{pendingAddr(1, "14 Federal Furnace Rd"), pendingAddr(2, "99 Bog Access Rd")},
		writeErr: eris.New("connection closed"),
	}
	resolver := &scriptedResolver{results: map[string]*geocode.Result{
		"14 Federal Furnace Rd": {Latitude: 41.88, Longitude: -70.75, Source: "census", Matched: true},
	}}

	stats, err := Backfill(context.Background(), store, resolver, 0)
	require.Error(t, err)
	assert.Equal(t, 1, stats.Scanned)
}

func TestBackfill_ListErrorAborts(t *testing.T) {
	store := &fakeStore{listErr: eris.New("relation does not exist")}

	_, err := Backfill(context.Background(), store, &scriptedResolver{}, 0)
	require.Error(t, err)
}

func TestBackfill_NothingPending(t *testing.T) {
	stats, err := Backfill(context.Background(), &fakeStore{}, &scriptedResolver{}, 25)
	require.NoError(t, err)
	assert.Zero(t, stats.Scanned)
}
