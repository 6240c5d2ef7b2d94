package taxonomy

import (
	"sort"

	"github.com/partsync/partsync/pkg/parts"
)

// Classification is the result of assigning a canonical part to the
// taxonomy: the resolved category plus the part with canonical parameter
// names. Supplier data is never lost: parameters that resolve to nothing
// stay under their original names in Uncategorized.
type Classification struct {
	Category      *Category
	UsedFallback  bool
	Part          *parts.CanonicalPart
	Uncategorized map[string]parts.ParameterValue
}

// Classify assigns the part to a category via its supplier hints and
// rewrites parameter names through the alias table. The input part is not
// modified; classification returns a copy with the category path and the
// resolved parameter set.
func (t *Taxonomy) Classify(part *parts.CanonicalPart) *Classification {
	out := &Classification{Part: clonePart(part)}

	cat, ok := t.MatchHint(part.CategoryPath)
	if !ok {
		out.UsedFallback = true
		if fallback, defined := t.Category(t.defaultCat); defined {
			cat = fallback
		} else {
			cat = &Category{
				Name: lastOr(t.defaultCat, "Uncategorized"),
				Path: t.defaultCat,
			}
		}
	}
	out.Category = cat
	out.Part.CategoryPath = cat.Path

	resolved := map[string]parts.ParameterValue{}
	names := make([]string, 0, len(part.Parameters))
	for name := range part.Parameters {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		value := part.Parameters[name]
		param, ok := t.ResolveParameter(cat, name)
		if !ok {
			if out.Uncategorized == nil {
				out.Uncategorized = map[string]parts.ParameterValue{}
			}
			out.Uncategorized[name] = value
			continue
		}
		// Several supplier names may alias to one canonical parameter.
		// Names are visited in sorted order and the first writer wins, so
		// the chosen value is the same on every run.
		if _, exists := resolved[param.Name]; !exists {
			resolved[param.Name] = value
		}
	}
	// Unresolved parameters are kept verbatim so no supplier data is
	// silently lost downstream.
	for name, value := range out.Uncategorized {
		if _, exists := resolved[name]; !exists {
			resolved[name] = value
		}
	}
	out.Part.Parameters = resolved
	return out
}

func clonePart(p *parts.CanonicalPart) *parts.CanonicalPart {
	out := *p
	out.CategoryPath = append([]string{}, p.CategoryPath...)
	out.Links = append([]parts.SupplierLinkData{}, p.Links...)
	if p.Parameters != nil {
		out.Parameters = make(map[string]parts.ParameterValue, len(p.Parameters))
		for k, v := range p.Parameters {
			out.Parameters[k] = v
		}
	}
	return &out
}

func lastOr(path []string, fallback string) string {
	if len(path) == 0 {
		return fallback
	}
	return path[len(path)-1]
}
