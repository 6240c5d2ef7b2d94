// Package merge combines normalized candidates from multiple suppliers
// that describe the same physical part into one canonical record. Every
// field follows an explicit policy and conflicts are recorded for audit,
// never silently dropped.
package merge

import (
	"sort"

	"github.com/samber/lo"

	"github.com/partsync/partsync/pkg/parts"
)

// Merger resolves cross-supplier conflicts by a priority order.
type Merger struct {
	// rank maps supplier id to its priority rank, lower wins. Suppliers
	// not in the map rank last, ordered by id for determinism.
	rank map[string]int
}

// New creates a Merger with the given priority order (strongest first).
// The default order is the order suppliers were queried.
func New(priority []string) *Merger {
	rank := make(map[string]int, len(priority))
	for i, id := range priority {
		rank[id] = i
	}
	return &Merger{rank: rank}
}

// rankOf returns the priority rank for a supplier.
func (m *Merger) rankOf(supplierID string) int {
	if r, ok := m.rank[supplierID]; ok {
		return r
	}
	return len(m.rank)
}

// Merge groups candidates by identity key and merges each group. The
// output is sorted by key and is a deterministic function of the supplier
// priority order, independent of input ordering.
func (m *Merger) Merge(candidates []*parts.NormalizedCandidate) ([]*parts.CanonicalPart, []parts.Conflict) {
	groups := lo.GroupBy(candidates, func(c *parts.NormalizedCandidate) parts.IdentityKey {
		return c.Key()
	})

	keys := lo.Keys(groups)
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })

	merged := make([]*parts.CanonicalPart, 0, len(keys))
	var conflicts []parts.Conflict
	for _, key := range keys {
		part, partConflicts := m.mergeGroup(key, groups[key])
		merged = append(merged, part)
		conflicts = append(conflicts, partConflicts...)
	}
	return merged, conflicts
}

// mergeGroup merges the candidates sharing one identity key.
func (m *Merger) mergeGroup(key parts.IdentityKey, group []*parts.NormalizedCandidate) (*parts.CanonicalPart, []parts.Conflict) {
	// Order by priority so "first non-empty" below means "highest
	// priority non-empty". Ties break by supplier id then SKU so the
	// result never depends on input order.
	sort.SliceStable(group, func(i, j int) bool {
		ri, rj := m.rankOf(group[i].SupplierID), m.rankOf(group[j].SupplierID)
		if ri != rj {
			return ri < rj
		}
		if group[i].SupplierID != group[j].SupplierID {
			return group[i].SupplierID < group[j].SupplierID
		}
		return group[i].SKU < group[j].SKU
	})

	part := &parts.CanonicalPart{
		Manufacturer: firstNonEmpty(group, func(c *parts.NormalizedCandidate) string { return c.Manufacturer }),
		MPN:          firstNonEmpty(group, func(c *parts.NormalizedCandidate) string { return c.MPN }),
		Description:  m.selectDescription(group),
		DatasheetURL: firstNonEmpty(group, func(c *parts.NormalizedCandidate) string { return c.DatasheetURL }),
		ImageURL:     firstNonEmpty(group, func(c *parts.NormalizedCandidate) string { return c.ImageURL }),
	}

	// Category hint: the highest-priority candidate with any hint wins.
	for _, c := range group {
		if len(c.CategoryPath) > 0 {
			part.CategoryPath = c.CategoryPath
			break
		}
	}

	conflicts := m.mergeParameters(key, group, part)
	m.attachLinks(group, part)
	return part, conflicts
}

// selectDescription picks the longest non-empty description; ties break
// by supplier priority (the group is already priority sorted).
func (m *Merger) selectDescription(group []*parts.NormalizedCandidate) string {
	best := ""
	for _, c := range group {
		if len(c.Description) > len(best) {
			best = c.Description
		}
	}
	return best
}

// mergeParameters unions the parameter sets. On conflicting values for
// one name, the highest-priority supplier wins and the loser is recorded.
func (m *Merger) mergeParameters(key parts.IdentityKey, group []*parts.NormalizedCandidate, part *parts.CanonicalPart) []parts.Conflict {
	var conflicts []parts.Conflict
	winner := map[string]string{} // parameter name -> supplier id that set it

	for _, c := range group {
		names := lo.Keys(c.Parameters)
		sort.Strings(names)
		for _, name := range names {
			value := c.Parameters[name]
			existing, ok := part.Parameters[name]
			if !ok {
				if part.Parameters == nil {
					part.Parameters = map[string]parts.ParameterValue{}
				}
				part.Parameters[name] = value
				winner[name] = c.SupplierID
				continue
			}
			if existing.Equal(value) {
				continue
			}
			// The group is priority sorted, so the existing value came
			// from a supplier at least as strong as this one.
			conflicts = append(conflicts, parts.Conflict{
				Key:              key,
				Field:            "parameter:" + name,
				ChosenSupplier:   winner[name],
				ChosenValue:      existing.String(),
				RejectedSupplier: c.SupplierID,
				RejectedValue:    value.String(),
			})
		}
	}
	return conflicts
}

// attachLinks keeps every supplier's offer. A supplier contributing more
// than one candidate to the group keeps only its strongest one.
func (m *Merger) attachLinks(group []*parts.NormalizedCandidate, part *parts.CanonicalPart) {
	seen := map[string]bool{}
	for _, c := range group {
		if seen[c.SupplierID] {
			continue
		}
		seen[c.SupplierID] = true
		part.Links = append(part.Links, parts.SupplierLinkData{
			SupplierID:   c.SupplierID,
			SupplierName: c.SupplierName,
			SKU:          c.SKU,
			URL:          c.SupplierLink,
			Packaging:    c.Packaging,
			Currency:     c.Currency,
			PriceBreaks:  c.PriceBreaks,
			Stock:        c.Stock,
		})
	}
}

func firstNonEmpty(group []*parts.NormalizedCandidate, get func(*parts.NormalizedCandidate) string) string {
	for _, c := range group {
		if v := get(c); v != "" {
			return v
		}
	}
	return ""
}
