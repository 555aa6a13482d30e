package address

import (
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cranland/parcel-cli/internal/model"
)

func TestClean_POBoxNoSecondary(t *testing.T) {
	_, err := Clean(model.RecordAddress{
		Street: "PO Box 12",
		City:   "Carver", State: "MA", PostalCode: "02330",
	})
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrUndeliverable))
}

func TestClean_POBoxVariants(t *testing.T) {
	for _, street := range []string{
		"P.O. Box 4410",
		"po box 88",
		"POB 12",
		"Post Office Box 7",
		"P O Box #219",
	} {
		_, err := Clean(model.RecordAddress{Street: street})
		assert.True(t, eris.Is(err, ErrUndeliverable), "street %q should be undeliverable", street)
	}
}

func TestClean_POBoxWithSecondaryPromotes(t *testing.T) {
	out, err := Clean(model.RecordAddress{
		Street:  "PO Box 12",
		Street2: "450 Cranberry Hwy",
		City:    "Wareham", State: "MA", PostalCode: "02571", Country: "US",
	})
	require.NoError(t, err)
	assert.Equal(t, "450 Cranberry Hwy", out.Street)
	assert.Empty(t, out.Street2)
	assert.Equal(t, "Wareham", out.City)
	assert.Equal(t, "MA", out.State)
	assert.Equal(t, "02571", out.PostalCode)
	assert.Equal(t, "US", out.Country)
}

func TestClean_CareOfPrefixStripped(t *testing.T) {
	out, err := Clean(model.RecordAddress{
		Street: "C/O Jane Doe, 123 Main St",
		City:   "Plymouth", State: "MA",
	})
	require.NoError(t, err)
	assert.Equal(t, "123 Main St", out.Street)
}

func TestClean_AttnPrefixStripped(t *testing.T) {
	out, err := Clean(model.RecordAddress{
		Street: "Attn: Harvest Office, 9 Bog Rd",
	})
	require.NoError(t, err)
	assert.Equal(t, "9 Bog Rd", out.Street)
}

func TestClean_CareOfOnlyNoSecondary(t *testing.T) {
	_, err := Clean(model.RecordAddress{Street: "c/o John Smith"})
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrUndeliverable))
}

func TestClean_AttnOnlyWithSecondaryPromotes(t *testing.T) {
	out, err := Clean(model.RecordAddress{
		Street:  "Attn: Receiving",
		Street2: "77 Makepeace Rd",
	})
	require.NoError(t, err)
	assert.Equal(t, "77 Makepeace Rd", out.Street)
	assert.Empty(t, out.Street2)
}

func TestClean_SecondaryPrefixStripped(t *testing.T) {
	out, err := Clean(model.RecordAddress{
		Street:  "14 Federal Furnace Rd",
		Street2: "c/o Bog Manager, Unit B",
	})
	require.NoError(t, err)
	assert.Equal(t, "14 Federal Furnace Rd", out.Street)
	assert.Equal(t, "Unit B", out.Street2)
}

func TestClean_PlainAddressPassesThrough(t *testing.T) {
	in := model.RecordAddress{
		Street: "1 Ocean Ave", Street2: "Suite 2",
		City: "Middleboro", State: "MA", PostalCode: "02346", Country: "US",
	}
	out, err := Clean(in)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}
