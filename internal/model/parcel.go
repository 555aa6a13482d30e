// Package model defines the relational entities and the upstream API
// payload types for grower contract ingestion.
package model

import "time"

// Farm represents a grower organization. Name and contact fields stay null
// until the farm-name reconciliation pass fills them in.
type Farm struct {
	ID           int64      `json:"id"`
	Name         *string    `json:"name,omitempty"`
	ContactName  *string    `json:"contact_name,omitempty"`
	ContactEmail *string    `json:"contact_email,omitempty"`
	ContactPhone *string    `json:"contact_phone,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// FarmAddress is a physical address belonging to a farm. Latitude and
// longitude are null until geocoded.
type FarmAddress struct {
	ID                int64    `json:"id"`
	FarmID            int64    `json:"farm_id"`
	Street            string   `json:"street"`
	Street2           *string  `json:"street2,omitempty"`
	City              string   `json:"city"`
	State             string   `json:"state"`
	PostalCode        string   `json:"postal_code"`
	Country           string   `json:"country"`
	Latitude          *float64 `json:"latitude,omitempty"`
	Longitude         *float64 `json:"longitude,omitempty"`
	GeocodeSource     *string  `json:"geocode_source,omitempty"`
	GeocodeApproximate *bool   `json:"geocode_approximate,omitempty"`
}

// Contract ties a farm to a set of beds for one crop year. The same grower
// contract recurs across crop years as distinct rows.
type Contract struct {
	ID               int64  `json:"id"`
	FarmID           *int64 `json:"farm_id,omitempty"`
	GrowerContractID string `json:"grower_contract_id"`
	ContractNumber   string `json:"contract_number"`
	CropYear         int    `json:"crop_year"`
}

// BedBlock is a named grouping of beds within a contract. The upstream API
// calls these "bogs".
type BedBlock struct {
	ID         int64  `json:"id"`
	ContractID int64  `json:"contract_id"`
	Name       string `json:"name"`
}

// Bed is an individually delineated cultivated plot.
type Bed struct {
	ID           int64      `json:"id"`
	ContractID   int64      `json:"contract_id"`
	BedBlockID   *int64     `json:"bed_block_id,omitempty"`
	AddressID    *int64     `json:"address_id,omitempty"`
	BedHistoryID string     `json:"bed_history_id"`
	Name         string     `json:"name"`
	Acreage      float64    `json:"acreage"`
	Variety      string     `json:"variety"`
	PlantedOn    *time.Time `json:"planted_on,omitempty"`
	FruitFlags
}

// FruitFlags are the five independent fruit-type classifications. They are
// not mutually exclusive.
type FruitFlags struct {
	Export    bool `json:"export"`
	GlobalGap bool `json:"global_gap"`
	Organic   bool `json:"organic"`
	Processed bool `json:"processed"`
	White     bool `json:"white"`
}

// Labels returns the human-readable names of the active fruit-type flags,
// in fixed order.
func (f FruitFlags) Labels() []string {
	var labels []string
	if f.Export {
		labels = append(labels, "Export")
	}
	if f.GlobalGap {
		labels = append(labels, "Global GAP")
	}
	if f.Organic {
		labels = append(labels, "Organic")
	}
	if f.Processed {
		labels = append(labels, "Processed")
	}
	if f.White {
		labels = append(labels, "White")
	}
	return labels
}

// Shape holds a bed's geometric footprint in the upstream coordinate-pair
// text encoding. A bed may carry zero or more shapes.
type Shape struct {
	ID        int64  `json:"id"`
	BedID     int64  `json:"bed_id"`
	ShapeType string `json:"shape_type"`
	Value     string `json:"value"`
}
