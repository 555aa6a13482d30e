package model

// RecordAddress is the address object attached to each upstream bed record.
type RecordAddress struct {
	Street     string `json:"street"`
	Street2    string `json:"street2,omitempty"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
}

// RecordShape is one encoded geometry entry on an upstream bed record.
type RecordShape struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// ParcelRecord is one bed record from a contract fetch. The upstream API
// returns one record per bed per contract.
type ParcelRecord struct {
	GrowerContractID string        `json:"growerContractId"`
	ContractNumber   string        `json:"contractNumber"`
	BedHistoryID     string        `json:"bedHistoryId"`
	BedName          string        `json:"bedName"`
	BogName          string        `json:"bogName"`
	Address          RecordAddress `json:"address"`
	Acreage          float64       `json:"acreage"`
	Variety          string        `json:"variety"`
	PlantedOn        string        `json:"plantedOn,omitempty"` // ISO calendar date
	ExportFruit      bool          `json:"exportFruit"`
	GlobalGapFruit   bool          `json:"globalGapFruit"`
	OrganicFruit     bool          `json:"organicFruit"`
	ProcessedFruit   bool          `json:"processedFruit"`
	WhiteFruit       bool          `json:"whiteFruit"`
	Shapes           []RecordShape `json:"shapes,omitempty"`
}

// Flags collects the record's fruit-type booleans.
func (r ParcelRecord) Flags() FruitFlags {
	return FruitFlags{
		Export:    r.ExportFruit,
		GlobalGap: r.GlobalGapFruit,
		Organic:   r.OrganicFruit,
		Processed: r.ProcessedFruit,
		White:     r.WhiteFruit,
	}
}
