// Package geocoding drives coordinate backfill for stored farm addresses.
package geocoding

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/cranland/parcel-cli/internal/model"
	"github.com/cranland/parcel-cli/pkg/geocode"
)

// AddressStore is the store slice the backfill needs.
type AddressStore interface {
	ListUngeocodedAddresses(ctx context.Context, limit int) ([]model.FarmAddress, error)
	SetAddressCoordinates(ctx context.Context, addressID int64, lat, lon float64, source string, approximate bool) error
}

// Resolver resolves one address to coordinates.
type Resolver interface {
	Resolve(ctx context.Context, raw model.RecordAddress) (*geocode.Result, error)
}

// BackfillStats summarizes one backfill run.
type BackfillStats struct {
	Scanned       int            `json:"scanned"`
	Resolved      int            `json:"resolved"`
	Approximate   int            `json:"approximate"`
	Undeliverable int            `json:"undeliverable"`
	Unmatched     int            `json:"unmatched"`
	Failed        int            `json:"failed"`
	BySource      map[string]int `json:"by_source"`
}

// Backfill geocodes stored addresses that still lack coordinates, strictly
// one at a time. Resolver failures skip the address and continue; a write
// failure aborts the run since the store itself is unhealthy. Addresses that
// no provider matches stay NULL and are retried on the next run.
func Backfill(ctx context.Context, store AddressStore, resolver Resolver, limit int) (BackfillStats, error) {
	stats := BackfillStats{BySource: make(map[string]int)}

	addrs, err := store.ListUngeocodedAddresses(ctx, limit)
	if err != nil {
		return stats, eris.Wrap(err, "geocoding: list pending addresses")
	}

	for _, addr := range addrs {
		stats.Scanned++

		raw := model.RecordAddress{
			Street:     addr.Street,
			City:       addr.City,
			State:      addr.State,
			PostalCode: addr.PostalCode,
			Country:    addr.Country,
		}
		if addr.Street2 != nil {
			raw.Street2 = *addr.Street2
		}

		result, err := resolver.Resolve(ctx, raw)
		if err != nil {
			if ctx.Err() != nil {
				return stats, eris.Wrap(err, "geocoding: resolve")
			}
			stats.Failed++
			zap.L().Warn("address resolution failed",
				zap.Int64("address_id", addr.ID),
				zap.Error(err),
			)
			continue
		}

		if !result.Matched {
			if result.Reason == "no physical address" {
				stats.Undeliverable++
			} else {
				stats.Unmatched++
			}
			zap.L().Debug("address not resolved",
				zap.Int64("address_id", addr.ID),
				zap.String("reason", result.Reason),
			)
			continue
		}

		if err := store.SetAddressCoordinates(ctx, addr.ID,
			result.Latitude, result.Longitude, result.Source, result.Approximate,
		); err != nil {
			return stats, eris.Wrapf(err, "geocoding: store coordinates for address %d", addr.ID)
		}

		stats.Resolved++
		stats.BySource[result.Source]++
		if result.Approximate {
			stats.Approximate++
		}
	}

	zap.L().Info("geocode backfill complete",
		zap.Int("scanned", stats.Scanned),
		zap.Int("resolved", stats.Resolved),
		zap.Int("approximate", stats.Approximate),
		zap.Int("undeliverable", stats.Undeliverable),
		zap.Int("unmatched", stats.Unmatched),
		zap.Int("failed", stats.Failed),
	)
	return stats, nil
}
