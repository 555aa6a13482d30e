// Package address cleans raw grower addresses into a geocodable form.
package address

import (
	"regexp"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/cranland/parcel-cli/internal/model"
)

// ErrUndeliverable marks an address with no discoverable physical location.
// Callers must not attempt geocoding when Clean returns it.
var ErrUndeliverable = eris.New("address: no physical address")

var (
	// poBoxPattern matches post-office-box street lines in their common
	// spellings (PO Box 12, P.O. Box 12, POB 12, Post Office Box 12).
	poBoxPattern = regexp.MustCompile(`(?i)^\s*(p\.?\s*o\.?\s*b(ox)?|post\s+office\s+box)\s*#?\s*\d+`)

	// careOfOnlyPattern matches a street line that is nothing but a care-of
	// or Attn: recipient, with no address fragment after it.
	careOfOnlyPattern = regexp.MustCompile(`(?i)^\s*(c/o|attn[:.]?)\s+[^,]*$`)

	// prefixPattern matches a leading "c/o <name>," or "Attn: <name>,"
	// fragment ahead of a real street address.
	prefixPattern = regexp.MustCompile(`(?i)^\s*(c/o|attn[:.]?)\s+[^,]+,\s*`)
)

// Clean normalizes a raw address record. PO-Box and recipient-only street
// lines are replaced by the secondary line when one exists; leading
// care-of/Attn fragments are stripped from both lines. City, state, postal
// code, and country pass through unchanged. Returns ErrUndeliverable when no
// physical street line can be recovered.
func Clean(raw model.RecordAddress) (model.RecordAddress, error) {
	out := raw
	out.Street = strings.TrimSpace(raw.Street)
	out.Street2 = strings.TrimSpace(raw.Street2)

	if poBoxPattern.MatchString(out.Street) || careOfOnlyPattern.MatchString(out.Street) {
		if out.Street2 == "" {
			return model.RecordAddress{}, ErrUndeliverable
		}
		out.Street = out.Street2
		out.Street2 = ""
	}

	out.Street = strings.TrimSpace(prefixPattern.ReplaceAllString(out.Street, ""))
	out.Street2 = strings.TrimSpace(prefixPattern.ReplaceAllString(out.Street2, ""))

	if out.Street == "" {
		return model.RecordAddress{}, ErrUndeliverable
	}

	return out, nil
}
