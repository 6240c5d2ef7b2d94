// Package parts defines the canonical data model shared by the whole
// import pipeline: raw supplier candidates, normalized candidates, merged
// canonical parts, and the per-identifier import outcome.
package parts

import (
	"strings"
)

// RawCandidate is one search result exactly as a supplier adapter returned
// it. It is immutable once fetched; the normalizer reads it and produces a
// NormalizedCandidate without touching the original.
type RawCandidate struct {
	SupplierID   string            // adapter id, e.g. "ti"
	SupplierName string            // display name, e.g. "Texas Instruments"
	SKU          string            // supplier part number
	Manufacturer string
	MPN          string // manufacturer part number
	Description  string
	DatasheetURL string
	ImageURL     string
	SupplierLink string
	Packaging    string
	CategoryPath []string // supplier's category hint, root first
	Stock        int
	Currency     string          // ISO 4217 code as stated by the supplier
	PriceBreaks  map[int]float64 // quantity -> unit price in Currency
	Attributes   map[string]string
}

// NormalizedCandidate is a RawCandidate after unit and currency
// normalization. Parameters holds typed values; attributes that could not
// be parsed survive as text values rather than being dropped.
type NormalizedCandidate struct {
	SupplierID   string
	SupplierName string
	SKU          string
	Manufacturer string
	MPN          string
	Description  string
	DatasheetURL string
	ImageURL     string
	SupplierLink string
	Packaging    string
	CategoryPath []string
	Stock        int
	Currency     string
	PriceBreaks  map[int]float64
	Unconverted  bool // currency left as-is because no rate was available
	Parameters   map[string]ParameterValue
}

// Key returns the identity key of the candidate.
func (c *NormalizedCandidate) Key() IdentityKey {
	return NewIdentityKey(c.Manufacturer, c.MPN)
}

// SupplierLinkData is one supplier's offer attached to a canonical part.
// Every queried supplier that returned the part keeps its own link; links
// are never merged away.
type SupplierLinkData struct {
	SupplierID   string
	SupplierName string
	SKU          string
	URL          string
	Packaging    string
	Currency     string
	PriceBreaks  map[int]float64
	Stock        int
}

// CanonicalPart is the single merged representation of one physical part.
// It is created by the merger and never mutated after the planner reads it.
type CanonicalPart struct {
	Manufacturer string
	MPN          string
	Description  string
	DatasheetURL string
	ImageURL     string
	CategoryPath []string
	Parameters   map[string]ParameterValue
	Links        []SupplierLinkData
}

// Key returns the identity key of the part.
func (p *CanonicalPart) Key() IdentityKey {
	return NewIdentityKey(p.Manufacturer, p.MPN)
}

// Link returns the link for a supplier id, if present.
func (p *CanonicalPart) Link(supplierID string) (SupplierLinkData, bool) {
	for _, l := range p.Links {
		if l.SupplierID == supplierID {
			return l, true
		}
	}
	return SupplierLinkData{}, false
}

// IdentityKey uniquely identifies a part within one import run:
// manufacturer plus manufacturer part number, folded to be case and
// whitespace insensitive.
type IdentityKey struct {
	Manufacturer string
	MPN          string
}

// NewIdentityKey folds manufacturer and MPN into a comparable key.
func NewIdentityKey(manufacturer, mpn string) IdentityKey {
	return IdentityKey{
		Manufacturer: foldKey(manufacturer),
		MPN:          foldKey(mpn),
	}
}

// String renders the key for logs and audit records.
func (k IdentityKey) String() string {
	if k.Manufacturer == "" {
		return k.MPN
	}
	return k.Manufacturer + ":" + k.MPN
}

// foldKey lowercases and strips all whitespace so that "TI  RC0603FR-0710KL"
// and "ti rc0603fr-0710kl" compare equal.
func foldKey(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		switch r {
		case ' ', '\t', '\n', '\r':
			continue
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
