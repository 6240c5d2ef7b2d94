package normalize

import (
	"golang.org/x/text/currency"

	"github.com/partsync/partsync/pkg/errors"
)

// RateSource supplies conversion rates between currencies. A source that
// cannot serve a pair returns ErrNotFound; the normalizer then keeps the
// original currency and flags the candidate unconverted.
type RateSource interface {
	// Rate returns the multiplier converting one unit of from into to.
	Rate(from, to string) (float64, error)
}

// StaticRates is a fixed rate table, keyed by "FROM/TO" pairs. Suitable
// for tests and for rates loaded from configuration.
type StaticRates map[string]float64

// Rate implements RateSource.
func (r StaticRates) Rate(from, to string) (float64, error) {
	if from == to {
		return 1, nil
	}
	if rate, ok := r[from+"/"+to]; ok {
		return rate, nil
	}
	// Derive the inverse pair when only one direction is configured.
	if rate, ok := r[to+"/"+from]; ok && rate != 0 {
		return 1 / rate, nil
	}
	return 0, errors.ErrNotFound
}

// NoRates is a RateSource with no rates at all; every cross-currency
// candidate stays unconverted.
var NoRates RateSource = StaticRates{}

// ValidCurrency reports whether code is a well-formed ISO 4217 unit.
func ValidCurrency(code string) bool {
	_, err := currency.ParseISO(code)
	return err == nil
}
