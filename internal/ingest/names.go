package ingest

import (
	"context"
	"encoding/csv"
	"io"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/cranland/parcel-cli/internal/model"
)

// FarmUpdater is the store slice needed by the name-reconciliation pass.
type FarmUpdater interface {
	UpdateFarmByContractNumber(ctx context.Context, contractNumber string, farm model.Farm) (int64, error)
}

// ReconcileFarmNames fills in farm names and contact details keyed by
// contract number. Ingestion creates farms nameless; this pass runs after it
// using the grower roster. Returns the total number of farm rows updated.
func ReconcileFarmNames(ctx context.Context, updater FarmUpdater, roster map[string]model.Farm) (int64, error) {
	numbers := make([]string, 0, len(roster))
	for n := range roster {
		numbers = append(numbers, n)
	}
	sort.Strings(numbers)

	var total int64
	for _, number := range numbers {
		updated, err := updater.UpdateFarmByContractNumber(ctx, number, roster[number])
		if err != nil {
			return total, eris.Wrapf(err, "ingest: reconcile farm name for contract %s", number)
		}
		if updated == 0 {
			zap.L().Warn("roster contract not found in store", zap.String("contract_number", number))
		}
		total += updated
	}
	return total, nil
}

// ParseRoster reads the grower roster CSV. Expected header:
// contract_number,name,contact_name,contact_email,contact_phone. Trailing
// columns beyond contract_number and name are optional.
func ParseRoster(r io.Reader) (map[string]model.Farm, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, eris.Wrap(err, "ingest: read roster")
	}
	if len(rows) < 2 {
		return nil, eris.New("ingest: roster has no data rows")
	}

	col := make(map[string]int, len(rows[0]))
	for i, name := range rows[0] {
		col[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range []string{"contract_number", "name"} {
		if _, ok := col[required]; !ok {
			return nil, eris.Errorf("ingest: roster missing %q column", required)
		}
	}

	field := func(row []string, name string) *string {
		i, ok := col[name]
		if !ok || i >= len(row) {
			return nil
		}
		v := strings.TrimSpace(row[i])
		if v == "" {
			return nil
		}
		return &v
	}

	roster := make(map[string]model.Farm, len(rows)-1)
	for _, row := range rows[1:] {
		number := field(row, "contract_number")
		if number == nil {
			continue
		}
		roster[*number] = model.Farm{
			Name:         field(row, "name"),
			ContactName:  field(row, "contact_name"),
			ContactEmail: field(row, "contact_email"),
			ContactPhone: field(row, "contact_phone"),
		}
	}
	return roster, nil
}
