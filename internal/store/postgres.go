// Package store is the Postgres persistence layer for reconciled parcel
// entities: schema migration, export reads, and geocode writebacks.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/cranland/parcel-cli/internal/db"
	"github.com/cranland/parcel-cli/internal/model"
)

// Store wraps a connection pool with the parcel schema operations that run
// outside contract ingestion transactions.
type Store struct {
	pool db.Pool
}

// New creates a Store over the given pool.
func New(pool db.Pool) *Store {
	return &Store{pool: pool}
}

// Pool exposes the underlying pool for subsystems that manage their own
// transactions (contract ingestion).
func (s *Store) Pool() db.Pool {
	return s.pool
}

const migration = `
CREATE TABLE IF NOT EXISTS farms (
	id            BIGSERIAL PRIMARY KEY,
	name          TEXT,
	contact_name  TEXT,
	contact_email TEXT,
	contact_phone TEXT,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS farm_addresses (
	id                  BIGSERIAL PRIMARY KEY,
	farm_id             BIGINT NOT NULL REFERENCES farms(id) ON DELETE CASCADE,
	street              TEXT NOT NULL,
	street2             TEXT,
	city                TEXT NOT NULL,
	state               TEXT NOT NULL,
	postal_code         TEXT NOT NULL,
	country             TEXT NOT NULL DEFAULT 'US',
	latitude            DOUBLE PRECISION,
	longitude           DOUBLE PRECISION,
	geocode_source      TEXT,
	geocode_approximate BOOLEAN,
	created_at          TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at          TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (farm_id, street, city, state, postal_code)
);

CREATE TABLE IF NOT EXISTS contracts (
	id                 BIGSERIAL PRIMARY KEY,
	farm_id            BIGINT REFERENCES farms(id) ON DELETE CASCADE,
	grower_contract_id TEXT NOT NULL,
	contract_number    TEXT NOT NULL,
	crop_year          INT NOT NULL,
	created_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (grower_contract_id, crop_year)
);

CREATE TABLE IF NOT EXISTS bed_blocks (
	id          BIGSERIAL PRIMARY KEY,
	contract_id BIGINT NOT NULL REFERENCES contracts(id) ON DELETE CASCADE,
	name        TEXT NOT NULL,
	UNIQUE (contract_id, name)
);

CREATE TABLE IF NOT EXISTS beds (
	id             BIGSERIAL PRIMARY KEY,
	contract_id    BIGINT NOT NULL REFERENCES contracts(id) ON DELETE CASCADE,
	bed_block_id   BIGINT REFERENCES bed_blocks(id) ON DELETE SET NULL,
	address_id     BIGINT REFERENCES farm_addresses(id) ON DELETE SET NULL,
	bed_history_id TEXT NOT NULL UNIQUE,
	name           TEXT NOT NULL,
	acreage        DOUBLE PRECISION NOT NULL DEFAULT 0,
	variety        TEXT NOT NULL DEFAULT '',
	planted_on     DATE,
	export         BOOLEAN NOT NULL DEFAULT false,
	global_gap     BOOLEAN NOT NULL DEFAULT false,
	organic        BOOLEAN NOT NULL DEFAULT false,
	processed      BOOLEAN NOT NULL DEFAULT false,
	white          BOOLEAN NOT NULL DEFAULT false,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS shapes (
	id         BIGSERIAL PRIMARY KEY,
	bed_id     BIGINT NOT NULL REFERENCES beds(id) ON DELETE CASCADE,
	shape_type TEXT NOT NULL,
	value      TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_shapes_bed_id ON shapes(bed_id);
CREATE INDEX IF NOT EXISTS idx_beds_contract_id ON beds(contract_id);
CREATE INDEX IF NOT EXISTS idx_contracts_number ON contracts(contract_number);

CREATE OR REPLACE VIEW shaped_beds_v AS
SELECT
	f.id   AS farm_id,
	f.name AS farm_name,
	c.contract_number,
	c.crop_year,
	b.id   AS bed_id,
	b.bed_history_id,
	b.name AS bed_name,
	bb.name AS block_name,
	b.acreage,
	b.variety,
	b.planted_on,
	b.export,
	b.global_gap,
	b.organic,
	b.processed,
	b.white,
	s.id   AS shape_id,
	s.shape_type,
	s.value AS shape_value
FROM shapes s
JOIN beds b       ON b.id = s.bed_id
JOIN contracts c  ON c.id = b.contract_id
LEFT JOIN bed_blocks bb ON bb.id = b.bed_block_id
LEFT JOIN farms f ON f.id = c.farm_id;

CREATE OR REPLACE VIEW farm_points_v AS
SELECT
	f.id   AS farm_id,
	f.name AS farm_name,
	fa.id  AS address_id,
	fa.city,
	fa.state,
	fa.latitude,
	fa.longitude,
	COALESCE(SUM(b.acreage), 0) AS total_acreage,
	STRING_AGG(DISTINCT c.contract_number, ', ' ORDER BY c.contract_number) AS contract_numbers
FROM farm_addresses fa
JOIN farms f ON f.id = fa.farm_id
LEFT JOIN contracts c ON c.farm_id = f.id
LEFT JOIN beds b ON b.contract_id = c.id
WHERE fa.latitude IS NOT NULL AND fa.longitude IS NOT NULL
GROUP BY f.id, f.name, fa.id, fa.city, fa.state, fa.latitude, fa.longitude;
`

// Migrate creates the parcel schema and read views. Idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, migration); err != nil {
		return eris.Wrap(err, "store: migrate")
	}
	return nil
}

// ListUngeocodedAddresses returns farm addresses that still lack
// coordinates, oldest first. A non-positive limit returns all of them.
func (s *Store) ListUngeocodedAddresses(ctx context.Context, limit int) ([]model.FarmAddress, error) {
	sql := `
		SELECT id, farm_id, street, street2, city, state, postal_code, country
		FROM farm_addresses
		WHERE latitude IS NULL OR longitude IS NULL
		ORDER BY id`
	var args []any
	if limit > 0 {
		sql += " LIMIT $1"
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, eris.Wrap(err, "store: list ungeocoded addresses")
	}
	defer rows.Close()

	var addrs []model.FarmAddress
	for rows.Next() {
		var a model.FarmAddress
		if err := rows.Scan(
			&a.ID, &a.FarmID, &a.Street, &a.Street2, &a.City, &a.State, &a.PostalCode, &a.Country,
		); err != nil {
			return nil, eris.Wrap(err, "store: scan ungeocoded address")
		}
		addrs = append(addrs, a)
	}
	return addrs, rows.Err()
}

// SetAddressCoordinates persists a geocoding result for one address.
func (s *Store) SetAddressCoordinates(ctx context.Context, addressID int64, lat, lon float64, source string, approximate bool) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE farm_addresses
		SET latitude = $1, longitude = $2, geocode_source = $3, geocode_approximate = $4, updated_at = now()
		WHERE id = $5`,
		lat, lon, source, approximate, addressID,
	)
	return eris.Wrapf(err, "store: set coordinates for address %d", addressID)
}

// UpdateFarmByContractNumber fills in farm name and contact fields through
// the contracts join. This is the separate name-reconciliation pass; it
// returns the number of farms updated.
func (s *Store) UpdateFarmByContractNumber(ctx context.Context, contractNumber string, farm model.Farm) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE farms f
		SET name = $1, contact_name = $2, contact_email = $3, contact_phone = $4, updated_at = now()
		FROM contracts c
		WHERE c.farm_id = f.id AND c.contract_number = $5`,
		farm.Name, farm.ContactName, farm.ContactEmail, farm.ContactPhone, contractNumber,
	)
	if err != nil {
		return 0, eris.Wrapf(err, "store: update farm for contract %s", contractNumber)
	}
	return tag.RowsAffected(), nil
}

// ShapedBed is one row of the export read view: a bed joined to its farm,
// contract, block, and one shape.
type ShapedBed struct {
	FarmID         *int64
	FarmName       *string
	ContractNumber string
	CropYear       int
	BedID          int64
	BedHistoryID   string
	BedName        string
	BlockName      *string
	Acreage        *float64
	Variety        string
	PlantedOn      *time.Time
	Flags          model.FruitFlags
	ShapeID        int64
	ShapeType      string
	ShapeValue     string
}

// ListShapedBeds returns every bed shape joined to its hierarchy, ordered by
// farm name, contract number, then bed name.
func (s *Store) ListShapedBeds(ctx context.Context) ([]ShapedBed, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT farm_id, farm_name, contract_number, crop_year,
		       bed_id, bed_history_id, bed_name, block_name,
		       acreage, variety, planted_on,
		       export, global_gap, organic, processed, white,
		       shape_id, shape_type, shape_value
		FROM shaped_beds_v
		ORDER BY farm_name NULLS LAST, contract_number, bed_name`)
	if err != nil {
		return nil, eris.Wrap(err, "store: list shaped beds")
	}
	defer rows.Close()

	var beds []ShapedBed
	for rows.Next() {
		var b ShapedBed
		if err := rows.Scan(
			&b.FarmID, &b.FarmName, &b.ContractNumber, &b.CropYear,
			&b.BedID, &b.BedHistoryID, &b.BedName, &b.BlockName,
			&b.Acreage, &b.Variety, &b.PlantedOn,
			&b.Flags.Export, &b.Flags.GlobalGap, &b.Flags.Organic, &b.Flags.Processed, &b.Flags.White,
			&b.ShapeID, &b.ShapeType, &b.ShapeValue,
		); err != nil {
			return nil, eris.Wrap(err, "store: scan shaped bed")
		}
		beds = append(beds, b)
	}
	return beds, rows.Err()
}

// FarmPoint is one geocoded farm address with its acreage and contract
// aggregates.
type FarmPoint struct {
	FarmID          int64
	FarmName        *string
	AddressID       int64
	City            string
	State           string
	Latitude        float64
	Longitude       float64
	TotalAcreage    float64
	ContractNumbers *string
}

// ListFarmPoints returns one row per farm address with both coordinates
// populated.
func (s *Store) ListFarmPoints(ctx context.Context) ([]FarmPoint, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT farm_id, farm_name, address_id, city, state,
		       latitude, longitude, total_acreage, contract_numbers
		FROM farm_points_v
		ORDER BY farm_name NULLS LAST, address_id`)
	if err != nil {
		return nil, eris.Wrap(err, "store: list farm points")
	}
	defer rows.Close()

	var points []FarmPoint
	for rows.Next() {
		var p FarmPoint
		if err := rows.Scan(
			&p.FarmID, &p.FarmName, &p.AddressID, &p.City, &p.State,
			&p.Latitude, &p.Longitude, &p.TotalAcreage, &p.ContractNumbers,
		); err != nil {
			return nil, eris.Wrap(err, "store: scan farm point")
		}
		points = append(points, p)
	}
	return points, rows.Err()
}
