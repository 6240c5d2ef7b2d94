package parts

import (
	"fmt"
	"strconv"
)

// ParameterKind discriminates the typed value held by a ParameterValue.
type ParameterKind int

const (
	// KindText is an opaque text value, used when parsing failed or the
	// value is genuinely textual (e.g. "SMD").
	KindText ParameterKind = iota
	// KindNumeric is a magnitude with an optional unit (e.g. 10000 ohm).
	KindNumeric
	// KindEnum is one value out of a known set (e.g. package names).
	KindEnum
)

// String returns the kind name.
func (k ParameterKind) String() string {
	switch k {
	case KindNumeric:
		return "numeric"
	case KindEnum:
		return "enum"
	default:
		return "text"
	}
}

// ParameterValue is a typed parameter value on a candidate or canonical
// part. Numeric values carry the magnitude in base units plus the unit
// symbol; the original supplier text is always preserved for audit.
type ParameterValue struct {
	Kind      ParameterKind
	Text      string  // original (sanitized) supplier text
	Magnitude float64 // base-unit magnitude, KindNumeric only
	Unit      string  // unit symbol, KindNumeric only
}

// TextValue wraps a plain text value.
func TextValue(s string) ParameterValue {
	return ParameterValue{Kind: KindText, Text: s}
}

// NumericValue wraps a magnitude with a unit, keeping the source text.
func NumericValue(text string, magnitude float64, unit string) ParameterValue {
	return ParameterValue{Kind: KindNumeric, Text: text, Magnitude: magnitude, Unit: unit}
}

// EnumValue wraps an enumerated value.
func EnumValue(s string) ParameterValue {
	return ParameterValue{Kind: KindEnum, Text: s}
}

// IsZero reports whether the value is empty.
func (v ParameterValue) IsZero() bool {
	return v.Text == "" && v.Magnitude == 0
}

// Equal compares two values. Numeric values compare by magnitude and unit
// so "10k" and "10000" in the same unit are the same value.
func (v ParameterValue) Equal(o ParameterValue) bool {
	if v.Kind == KindNumeric && o.Kind == KindNumeric {
		return v.Magnitude == o.Magnitude && v.Unit == o.Unit
	}
	return v.Text == o.Text
}

// String renders the value for catalog storage and reports.
func (v ParameterValue) String() string {
	if v.Kind == KindNumeric {
		mag := strconv.FormatFloat(v.Magnitude, 'g', -1, 64)
		if v.Unit == "" {
			return mag
		}
		return fmt.Sprintf("%s %s", mag, v.Unit)
	}
	return v.Text
}
