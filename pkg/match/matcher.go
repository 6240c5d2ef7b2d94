// Package match locates the existing catalog record for a canonical
// part, or decides that none exists. Matching never guesses: a tie
// between distinct catalog parts is reported as ambiguous and left for a
// human to resolve.
package match

import (
	"context"
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/partsync/partsync/pkg/catalog"
	"github.com/partsync/partsync/pkg/errors"
	"github.com/partsync/partsync/pkg/parts"
)

// Method records which identity established a match.
type Method string

const (
	// MethodIdentity is a manufacturer + MPN match.
	MethodIdentity Method = "identity"
	// MethodSupplierLink is a supplier id + SKU match.
	MethodSupplierLink Method = "supplier-link"
)

// Result is the outcome of matching one canonical part.
type Result struct {
	// Part is the matched catalog record, nil when the part is new.
	Part *catalog.Part
	// Method says how the match was established.
	Method Method
	// NearMisses lists catalog MPNs close to the search key. Populated
	// only when nothing matched, as a hint for typo diagnosis.
	NearMisses []string
}

// Matcher finds catalog records for canonical parts.
type Matcher struct {
	searcher catalog.Searcher
}

// New creates a Matcher over a catalog searcher.
func New(searcher catalog.Searcher) *Matcher {
	return &Matcher{searcher: searcher}
}

// Match resolves a canonical part against the catalog.
//
// The primary key is manufacturer + MPN, compared case and whitespace
// insensitively. When that finds nothing, each supplier link is tried as
// a secondary key. More than one distinct catalog part across all probes
// is an AmbiguousMatchError.
func (m *Matcher) Match(ctx context.Context, part *parts.CanonicalPart) (*Result, error) {
	found := map[string]*catalog.Part{}
	method := map[string]Method{}

	primary, err := m.searcher.SearchParts(ctx, catalog.SearchCriteria{
		Manufacturer: part.Manufacturer,
		MPN:          part.MPN,
	})
	if err != nil {
		return nil, err
	}
	for _, p := range primary {
		found[p.ID] = p
		method[p.ID] = MethodIdentity
	}

	// Secondary probes run even after a primary hit: a supplier link
	// pointing at a different part is exactly the ambiguity we must
	// surface rather than mask.
	for _, link := range part.Links {
		if link.SKU == "" {
			continue
		}
		linked, err := m.searcher.SearchParts(ctx, catalog.SearchCriteria{
			SupplierID: link.SupplierID,
			SKU:        link.SKU,
		})
		if err != nil {
			return nil, err
		}
		for _, p := range linked {
			if _, ok := found[p.ID]; !ok {
				found[p.ID] = p
				method[p.ID] = MethodSupplierLink
			}
		}
	}

	switch len(found) {
	case 0:
		return &Result{NearMisses: m.nearMisses(ctx, part)}, nil
	case 1:
		for id, p := range found {
			return &Result{Part: p, Method: method[id]}, nil
		}
	}

	ids := make([]string, 0, len(found))
	for id, p := range found {
		ids = append(ids, id+" ("+p.MPN+")")
	}
	sort.Strings(ids)
	return nil, &errors.AmbiguousMatchError{Key: part.Key().String(), Candidates: ids}
}

// maxEditDistance bounds how far a manufacturer name may drift and still
// count as a near miss worth mentioning.
const maxEditDistance = 3

// nearMisses looks for catalog parts with the same MPN under a slightly
// different manufacturer spelling, the usual source of false "new part"
// decisions. Purely advisory; a near miss never becomes a match.
func (m *Matcher) nearMisses(ctx context.Context, part *parts.CanonicalPart) []string {
	if part.MPN == "" || part.Manufacturer == "" {
		return nil
	}
	loose, err := m.searcher.SearchParts(ctx, catalog.SearchCriteria{MPN: part.MPN})
	if err != nil {
		return nil
	}

	want := strings.ToLower(part.Manufacturer)
	var hints []string
	for _, p := range loose {
		if d := levenshtein.ComputeDistance(want, strings.ToLower(p.Manufacturer)); d > 0 && d <= maxEditDistance {
			hints = append(hints, p.Manufacturer+" "+p.MPN)
		}
	}
	sort.Strings(hints)
	return hints
}

// IsAmbiguous reports whether a match error is the ambiguity case.
func IsAmbiguous(err error) bool {
	return errors.IsAmbiguous(err)
}
