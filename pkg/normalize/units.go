package normalize

import (
	"regexp"
	"strconv"
	"strings"
)

// prefixes maps SI prefix symbols to multipliers. Both µ and u are
// accepted for micro; R is the resistor notation for "no prefix".
var prefixes = map[string]float64{
	"p": 1e-12,
	"n": 1e-9,
	"µ": 1e-6,
	"u": 1e-6,
	"m": 1e-3,
	"":  1,
	"R": 1,
	"k": 1e3,
	"K": 1e3,
	"M": 1e6,
	"G": 1e9,
}

// unitAliases folds unit spellings into one canonical symbol.
var unitAliases = map[string]string{
	"ohms": "ohm",
	"Ohm":  "ohm",
	"Ohms": "ohm",
	"OHM":  "ohm",
	"Ω":    "ohm",
	"ω":    "ohm",
}

var numericRe = regexp.MustCompile(`^([+-]?[0-9]*\.?[0-9]+)\s*([pnuµmRkKMG]?)\s*([%a-zA-ZΩω]*)$`)

// ParseQuantity parses a free-text numeric attribute like "10k", "4.7µF"
// or "0.25 W" into a base-unit magnitude and a canonical unit symbol. The
// bool result is false when the text is not a recognizable quantity; the
// caller keeps such values as opaque text rather than dropping them.
func ParseQuantity(text string) (magnitude float64, unit string, ok bool) {
	s := strings.TrimSpace(text)
	if s == "" {
		return 0, "", false
	}

	m := numericRe.FindStringSubmatch(s)
	if m == nil {
		// Resistor shorthand puts the prefix where the decimal point goes:
		// 4k7 means 4.7k.
		return parseInfixPrefix(s)
	}

	value, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, "", false
	}

	prefix, rest := m[2], m[3]
	mult, known := prefixes[prefix]
	if !known {
		return 0, "", false
	}

	// "1M" could mean mega-<unit> or just the number; without a unit a
	// bare m/M prefix is too ambiguous to trust. Digits alone stay plain.
	if rest == "" && (prefix == "m" || prefix == "M") {
		return 0, "", false
	}

	if canonical, aliased := unitAliases[rest]; aliased {
		rest = canonical
	}
	return value * mult, rest, true
}

var infixRe = regexp.MustCompile(`^([0-9]+)([pnuµmkKMG])([0-9]+)$`)

// parseInfixPrefix handles resistor notation like "4k7" and "1M2".
func parseInfixPrefix(s string) (float64, string, bool) {
	m := infixRe.FindStringSubmatch(s)
	if m == nil {
		return 0, "", false
	}
	value, err := strconv.ParseFloat(m[1]+"."+m[3], 64)
	if err != nil {
		return 0, "", false
	}
	return value * prefixes[m[2]], "ohm", true
}

// SanitizeValue applies the catalog's parameter value conventions: the
// lone dash placeholder becomes empty, tolerance signs are stripped, and
// ohm spellings are folded.
func SanitizeValue(value string) string {
	value = strings.TrimSpace(value)
	if value == "-" {
		return ""
	}
	value = strings.ReplaceAll(value, "±", "")
	value = strings.ReplaceAll(value, "Ohm", "ohm")
	value = strings.ReplaceAll(value, "ohms", "ohm")
	return value
}
