// Package normalize converts raw supplier candidates into the canonical
// part schema: one currency, parsed units, sanitized parameter values.
// Normalization fails only on structurally invalid input; locale or unit
// ambiguity degrades to best-effort text.
package normalize

import (
	"math"

	"github.com/partsync/partsync/pkg/config"
	"github.com/partsync/partsync/pkg/errors"
	"github.com/partsync/partsync/pkg/parts"
)

// Normalizer maps supplier-specific raw fields into the canonical schema.
type Normalizer struct {
	cfg   *config.Config
	rates RateSource
}

// New creates a Normalizer for the given run configuration.
func New(cfg *config.Config, rates RateSource) *Normalizer {
	if rates == nil {
		rates = NoRates
	}
	return &Normalizer{cfg: cfg, rates: rates}
}

// Normalize converts one raw candidate. It returns a NormalizationError
// only when identity fields are missing; everything else is best effort.
func (n *Normalizer) Normalize(raw parts.RawCandidate) (*parts.NormalizedCandidate, error) {
	if raw.MPN == "" {
		return nil, &errors.NormalizationError{
			Supplier: raw.SupplierID, SKU: raw.SKU,
			Field: "mpn", Message: "is required",
		}
	}
	if raw.SKU == "" {
		return nil, &errors.NormalizationError{
			Supplier: raw.SupplierID, SKU: raw.MPN,
			Field: "sku", Message: "is required",
		}
	}

	out := &parts.NormalizedCandidate{
		SupplierID:   raw.SupplierID,
		SupplierName: raw.SupplierName,
		SKU:          raw.SKU,
		Manufacturer: raw.Manufacturer,
		MPN:          raw.MPN,
		Description:  raw.Description,
		DatasheetURL: raw.DatasheetURL,
		ImageURL:     raw.ImageURL,
		SupplierLink: raw.SupplierLink,
		Packaging:    raw.Packaging,
		CategoryPath: raw.CategoryPath,
		Stock:        raw.Stock,
	}

	n.normalizePricing(raw, out)
	out.Parameters = n.normalizeAttributes(raw.Attributes)
	return out, nil
}

// normalizePricing converts price breaks into the configured currency. A
// missing rate keeps the supplier currency and flags the candidate
// unconverted instead of failing.
func (n *Normalizer) normalizePricing(raw parts.RawCandidate, out *parts.NormalizedCandidate) {
	from := raw.Currency
	if from == "" || !ValidCurrency(from) {
		// Suppliers occasionally omit the currency entirely. Treat the
		// prices as already being in the target currency but say so.
		out.Currency = n.cfg.Currency
		out.Unconverted = true
		out.PriceBreaks = copyBreaks(raw.PriceBreaks)
		return
	}

	if from == n.cfg.Currency {
		out.Currency = from
		out.PriceBreaks = copyBreaks(raw.PriceBreaks)
		return
	}

	rate, err := n.rates.Rate(from, n.cfg.Currency)
	if err != nil {
		out.Currency = from
		out.Unconverted = true
		out.PriceBreaks = copyBreaks(raw.PriceBreaks)
		return
	}

	converted := make(map[int]float64, len(raw.PriceBreaks))
	for qty, price := range raw.PriceBreaks {
		converted[qty] = roundPrice(price * rate)
	}
	out.Currency = n.cfg.Currency
	out.PriceBreaks = converted
}

// normalizeAttributes parses each attribute into a typed parameter value.
// Unparseable attributes are retained as opaque text, never dropped.
func (n *Normalizer) normalizeAttributes(attrs map[string]string) map[string]parts.ParameterValue {
	if len(attrs) == 0 {
		return nil
	}
	out := make(map[string]parts.ParameterValue, len(attrs))
	for name, value := range attrs {
		sanitized := SanitizeValue(value)
		if sanitized == "" {
			continue
		}
		if magnitude, unit, ok := ParseQuantity(sanitized); ok {
			out[name] = parts.NumericValue(sanitized, magnitude, unit)
			continue
		}
		out[name] = parts.TextValue(sanitized)
	}
	return out
}

// roundPrice keeps converted prices at a sane precision (5 decimal
// places covers sub-cent price breaks).
func roundPrice(p float64) float64 {
	return math.Round(p*1e5) / 1e5
}

func copyBreaks(in map[int]float64) map[int]float64 {
	if in == nil {
		return nil
	}
	out := make(map[int]float64, len(in))
	for q, p := range in {
		out[q] = p
	}
	return out
}
