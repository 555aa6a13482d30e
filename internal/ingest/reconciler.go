// Package ingest reconciles upstream parcel records into the relational
// store, one atomic transaction per contract batch.
package ingest

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/cranland/parcel-cli/internal/db"
	"github.com/cranland/parcel-cli/internal/model"
)

// Counts reports per-table activity for one ingestion batch. On failure the
// counts reflect work done before the rollback and are informational only.
type Counts struct {
	FarmsCreated      int `json:"farms_created"`
	ContractsUpserted int `json:"contracts_upserted"`
	AddressesUpserted int `json:"addresses_upserted"`
	AddressCacheHits  int `json:"address_cache_hits"`
	BlocksUpserted    int `json:"blocks_upserted"`
	BlockCacheHits    int `json:"block_cache_hits"`
	BedsUpserted      int `json:"beds_upserted"`
	ShapesDeleted     int `json:"shapes_deleted"`
	ShapesInserted    int `json:"shapes_inserted"`
}

// Reconciler ingests contract batches.
type Reconciler struct {
	pool db.Pool
}

// NewReconciler creates a Reconciler over the given pool.
func NewReconciler(pool db.Pool) *Reconciler {
	return &Reconciler{pool: pool}
}

// batchCache holds the intra-batch natural-key lookups. Scoped to a single
// IngestBatch call and discarded after; never shared across batches.
type batchCache struct {
	addresses map[string]int64 // street|city|state|postal -> farm_addresses.id
	blocks    map[string]int64 // block name -> bed_blocks.id
}

// addressKey builds the intra-batch natural key for an address.
func addressKey(a model.RecordAddress) string {
	return strings.ToLower(strings.Join([]string{
		strings.TrimSpace(a.Street),
		strings.TrimSpace(a.City),
		strings.TrimSpace(a.State),
		strings.TrimSpace(a.PostalCode),
	}, "|"))
}

// IngestBatch maps one contract's parcel records into farm, contract, block,
// bed, and shape rows inside a single transaction. All records must share
// the first record's grower contract id and contract number. Any failure
// rolls the whole batch back; partial ingestion of a contract is never
// observable.
//
// A fresh farms row is created on every call; names are filled in later by
// ReconcileFarmNames. Surrogate farm ids are therefore not stable across
// re-runs even though every other table is idempotent.
func (r *Reconciler) IngestBatch(ctx context.Context, records []model.ParcelRecord, cropYear int) (Counts, error) {
	var counts Counts

	if len(records) == 0 {
		return counts, eris.New("ingest: empty batch")
	}

	growerContractID := records[0].GrowerContractID
	contractNumber := records[0].ContractNumber
	if growerContractID == "" || contractNumber == "" {
		return counts, eris.New("ingest: first record missing contract identifiers")
	}
	for i, rec := range records {
		if rec.GrowerContractID != growerContractID || rec.ContractNumber != contractNumber {
			return counts, eris.Errorf("ingest: record %d belongs to contract %s/%s, batch is %s/%s",
				i, rec.GrowerContractID, rec.ContractNumber, growerContractID, contractNumber)
		}
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return counts, eris.Wrap(err, "ingest: begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var farmID int64
	if err := tx.QueryRow(ctx,
		`INSERT INTO farms DEFAULT VALUES RETURNING id`,
	).Scan(&farmID); err != nil {
		return counts, eris.Wrap(err, "ingest: insert farm")
	}
	counts.FarmsCreated++

	var contractID int64
	if err := tx.QueryRow(ctx, `
		INSERT INTO contracts (farm_id, grower_contract_id, contract_number, crop_year)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (grower_contract_id, crop_year) DO UPDATE SET
			contract_number = EXCLUDED.contract_number,
			farm_id = EXCLUDED.farm_id,
			updated_at = now()
		RETURNING id`,
		farmID, growerContractID, contractNumber, cropYear,
	).Scan(&contractID); err != nil {
		return counts, eris.Wrap(err, "ingest: upsert contract")
	}
	counts.ContractsUpserted++

	cache := batchCache{
		addresses: make(map[string]int64),
		blocks:    make(map[string]int64),
	}

	// Records are processed strictly in input order: later records reuse
	// address and block ids cached from earlier ones.
	for i, rec := range records {
		if err := r.ingestRecord(ctx, tx, rec, farmID, contractID, &cache, &counts); err != nil {
			return counts, eris.Wrapf(err, "ingest: record %d (bed %s)", i, rec.BedHistoryID)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return counts, eris.Wrap(err, "ingest: commit")
	}

	zap.L().Info("contract batch ingested",
		zap.String("contract_number", contractNumber),
		zap.Int("crop_year", cropYear),
		zap.Int("records", len(records)),
		zap.Int("beds", counts.BedsUpserted),
		zap.Int("shapes", counts.ShapesInserted),
	)
	return counts, nil
}

// ingestRecord upserts one parcel record's address, block, bed, and shapes
// within the batch transaction.
func (r *Reconciler) ingestRecord(ctx context.Context, tx pgx.Tx, rec model.ParcelRecord, farmID, contractID int64, cache *batchCache, counts *Counts) error {
	if rec.BedHistoryID == "" {
		return eris.New("missing bed history id")
	}

	var plantedOn *time.Time
	if rec.PlantedOn != "" {
		t, err := time.Parse("2006-01-02", rec.PlantedOn)
		if err != nil {
			return eris.Wrapf(err, "parse planted date %q", rec.PlantedOn)
		}
		plantedOn = &t
	}

	addressID, err := r.upsertAddress(ctx, tx, rec.Address, farmID, cache, counts)
	if err != nil {
		return err
	}

	blockID, err := r.upsertBlock(ctx, tx, rec.BogName, contractID, cache, counts)
	if err != nil {
		return err
	}

	flags := rec.Flags()
	var bedID int64
	if err := tx.QueryRow(ctx, `
		INSERT INTO beds (contract_id, bed_block_id, address_id, bed_history_id, name,
		                  acreage, variety, planted_on, export, global_gap, organic, processed, white)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (bed_history_id) DO UPDATE SET
			contract_id = EXCLUDED.contract_id,
			bed_block_id = EXCLUDED.bed_block_id,
			address_id = EXCLUDED.address_id,
			name = EXCLUDED.name,
			acreage = EXCLUDED.acreage,
			variety = EXCLUDED.variety,
			planted_on = EXCLUDED.planted_on,
			export = EXCLUDED.export,
			global_gap = EXCLUDED.global_gap,
			organic = EXCLUDED.organic,
			processed = EXCLUDED.processed,
			white = EXCLUDED.white,
			updated_at = now()
		RETURNING id`,
		contractID, blockID, addressID, rec.BedHistoryID, rec.BedName,
		rec.Acreage, rec.Variety, plantedOn,
		flags.Export, flags.GlobalGap, flags.Organic, flags.Processed, flags.White,
	).Scan(&bedID); err != nil {
		return eris.Wrap(err, "upsert bed")
	}
	counts.BedsUpserted++

	// Shapes are replaced wholesale: an empty shape list still clears any
	// previously stored shapes for the bed.
	tag, err := tx.Exec(ctx, `DELETE FROM shapes WHERE bed_id = $1`, bedID)
	if err != nil {
		return eris.Wrap(err, "delete shapes")
	}
	counts.ShapesDeleted += int(tag.RowsAffected())

	if len(rec.Shapes) > 0 {
		rows := make([][]any, len(rec.Shapes))
		for i, s := range rec.Shapes {
			rows[i] = []any{bedID, s.Type, s.Value}
		}
		n, err := db.CopyFromTx(ctx, tx, "shapes", []string{"bed_id", "shape_type", "value"}, rows)
		if err != nil {
			return eris.Wrap(err, "insert shapes")
		}
		counts.ShapesInserted += int(n)
	}

	return nil
}

// upsertAddress creates or reuses the farm address for a record. The lookup
// runs on the physical natural key (street, city, state, postal) so re-runs
// reuse the row created by an earlier ingestion even though each run owns a
// fresh farm; within one batch the id comes from the cache.
func (r *Reconciler) upsertAddress(ctx context.Context, tx pgx.Tx, addr model.RecordAddress, farmID int64, cache *batchCache, counts *Counts) (*int64, error) {
	if strings.TrimSpace(addr.Street) == "" && strings.TrimSpace(addr.City) == "" {
		return nil, nil
	}

	key := addressKey(addr)
	if id, ok := cache.addresses[key]; ok {
		counts.AddressCacheHits++
		return &id, nil
	}

	street2 := nilIfEmpty(addr.Street2)
	country := addr.Country
	if country == "" {
		country = "US"
	}

	var id int64
	err := tx.QueryRow(ctx, `
		SELECT id FROM farm_addresses
		WHERE street = $1 AND city = $2 AND state = $3 AND postal_code = $4`,
		addr.Street, addr.City, addr.State, addr.PostalCode,
	).Scan(&id)
	switch {
	case err == nil:
		if _, err := tx.Exec(ctx, `
			UPDATE farm_addresses SET street2 = $1, country = $2, updated_at = now()
			WHERE id = $3`,
			street2, country, id,
		); err != nil {
			return nil, eris.Wrap(err, "update address")
		}
	case eris.Is(err, pgx.ErrNoRows):
		if err := tx.QueryRow(ctx, `
			INSERT INTO farm_addresses (farm_id, street, street2, city, state, postal_code, country)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id`,
			farmID, addr.Street, street2, addr.City, addr.State, addr.PostalCode, country,
		).Scan(&id); err != nil {
			return nil, eris.Wrap(err, "insert address")
		}
	default:
		return nil, eris.Wrap(err, "lookup address")
	}

	counts.AddressesUpserted++
	cache.addresses[key] = id
	return &id, nil
}

// upsertBlock creates or reuses the bed block for a record.
func (r *Reconciler) upsertBlock(ctx context.Context, tx pgx.Tx, name string, contractID int64, cache *batchCache, counts *Counts) (*int64, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, nil
	}

	key := strings.ToLower(name)
	if id, ok := cache.blocks[key]; ok {
		counts.BlockCacheHits++
		return &id, nil
	}

	var id int64
	if err := tx.QueryRow(ctx, `
		INSERT INTO bed_blocks (contract_id, name)
		VALUES ($1, $2)
		ON CONFLICT (contract_id, name) DO UPDATE SET name = EXCLUDED.name
		RETURNING id`,
		contractID, name,
	).Scan(&id); err != nil {
		return nil, eris.Wrap(err, "upsert block")
	}

	counts.BlocksUpserted++
	cache.blocks[key] = id
	return &id, nil
}

// nilIfEmpty returns nil for empty strings, allowing NULL storage.
func nilIfEmpty(s string) any {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return strings.TrimSpace(s)
}

// Summary renders the counts for the end-of-run report line.
func (c Counts) Summary() string {
	return fmt.Sprintf("farms=%d contracts=%d addresses=%d blocks=%d beds=%d shapes=%d",
		c.FarmsCreated, c.ContractsUpserted, c.AddressesUpserted, c.BlocksUpserted, c.BedsUpserted, c.ShapesInserted)
}
