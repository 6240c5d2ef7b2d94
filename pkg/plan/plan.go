// Package plan turns a classified canonical part plus its catalog match
// into an ordered list of catalog mutations. Planning is pure: it only
// reads the catalog, and planning the same inputs twice yields the same
// operations. A fully reconciled part plans to an empty operation list.
package plan

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/partsync/partsync/pkg/catalog"
	"github.com/partsync/partsync/pkg/errors"
	"github.com/partsync/partsync/pkg/parts"
	"github.com/partsync/partsync/pkg/taxonomy"
)

// Kind identifies one mutation type.
type Kind string

const (
	KindCreateCategory Kind = "create-category"
	KindCreatePart     Kind = "create-part"
	KindUpdatePart     Kind = "update-part"
	KindAttachLink     Kind = "attach-link"
	KindSetPriceBreak  Kind = "set-price-break"
	KindSetParameter   Kind = "set-parameter"
	KindSetStock       Kind = "set-stock"
)

// Operation is one catalog mutation. Only the fields relevant to its
// Kind are set. PartID is empty for operations targeting a part the plan
// itself creates; the executor fills it in after KindCreatePart runs.
type Operation struct {
	Kind        Kind
	Description string

	// KindCreateCategory
	CategoryPath []string
	CategoryDesc string
	Structural   bool

	// KindCreatePart
	Part *catalog.Part

	// Part-targeting operations
	PartID string

	// KindUpdatePart
	Fields catalog.PartFields

	// KindAttachLink
	Link catalog.SupplierLink

	// KindSetPriceBreak / KindSetStock
	SupplierID string
	Quantity   int
	Price      float64
	Currency   string

	// KindSetParameter
	ParamName  string
	ParamValue string
}

// Plan is the ordered mutation list for one identifier. Notes carry
// observations that are reported but never acted on, like a category
// description drifting from the taxonomy.
type Plan struct {
	Key   parts.IdentityKey
	Ops   []Operation
	Notes []string
}

// Empty reports whether the part is already fully reconciled.
func (p *Plan) Empty() bool {
	return len(p.Ops) == 0
}

// Creates reports whether the plan creates a new part.
func (p *Plan) Creates() bool {
	for _, op := range p.Ops {
		if op.Kind == KindCreatePart {
			return true
		}
	}
	return false
}

// Planner builds plans against one catalog state.
type Planner struct {
	searcher catalog.Searcher
	taxonomy *taxonomy.Taxonomy
	force    bool
}

// New creates a Planner. The taxonomy supplies descriptions and flags
// for categories the plan has to create; force allows overwriting
// non-empty catalog fields.
func New(searcher catalog.Searcher, tax *taxonomy.Taxonomy, force bool) *Planner {
	return &Planner{searcher: searcher, taxonomy: tax, force: force}
}

// Build plans the mutations that bring the catalog in line with the
// classified part. existing is the matched catalog record, nil for a new
// part.
func (p *Planner) Build(ctx context.Context, cls *taxonomy.Classification, existing *catalog.Part) (*Plan, error) {
	part := cls.Part
	out := &Plan{Key: part.Key()}

	if err := p.planCategories(ctx, part.CategoryPath, out); err != nil {
		return nil, err
	}

	if existing == nil {
		p.planCreate(part, out)
	} else {
		p.planUpdate(part, existing, out)
	}
	return out, nil
}

// planCategories emits creations for every missing ancestor of the
// part's category path, root first, so each creation's parent exists by
// the time it runs.
func (p *Planner) planCategories(ctx context.Context, path []string, out *Plan) error {
	for i := 1; i <= len(path); i++ {
		prefix := path[:i]
		have, err := p.searcher.FindCategory(ctx, prefix)
		if err == nil {
			p.noteDescriptionDrift(have, prefix, out)
			continue
		}
		if !errors.IsNotFound(err) {
			return err
		}

		desc := prefix[len(prefix)-1]
		structural := false
		if p.taxonomy != nil {
			if cat, ok := p.taxonomy.Category(prefix); ok {
				desc = cat.Description
				structural = cat.Structural
			}
		}
		out.Ops = append(out.Ops, Operation{
			Kind:         KindCreateCategory,
			Description:  "create category " + strings.Join(prefix, "/"),
			CategoryPath: append([]string{}, prefix...),
			CategoryDesc: desc,
			Structural:   structural,
		})
	}
	return nil
}

// noteDescriptionDrift reports an existing category whose description no
// longer matches the taxonomy. Existing categories are never modified;
// someone has to decide which side is right.
func (p *Planner) noteDescriptionDrift(have *catalog.Category, path []string, out *Plan) {
	if p.taxonomy == nil {
		return
	}
	want, ok := p.taxonomy.Category(path)
	if !ok || want.Description == "" || want.Description == have.Description {
		return
	}
	out.Notes = append(out.Notes, fmt.Sprintf(
		"category %s description %q differs from taxonomy %q",
		strings.Join(path, "/"), have.Description, want.Description))
}

// planCreate emits the full mutation set for a part the catalog has
// never seen.
func (p *Planner) planCreate(part *parts.CanonicalPart, out *Plan) {
	out.Ops = append(out.Ops, Operation{
		Kind:        KindCreatePart,
		Description: "create part " + part.Key().String(),
		Part: &catalog.Part{
			Manufacturer: part.Manufacturer,
			MPN:          part.MPN,
			Description:  part.Description,
			DatasheetURL: part.DatasheetURL,
			CategoryPath: append([]string{}, part.CategoryPath...),
		},
	})

	for _, name := range sortedParamNames(part.Parameters) {
		out.Ops = append(out.Ops, Operation{
			Kind:        KindSetParameter,
			Description: fmt.Sprintf("set parameter %s = %s", name, part.Parameters[name].String()),
			ParamName:   name,
			ParamValue:  part.Parameters[name].String(),
		})
	}
	for _, link := range part.Links {
		out.Ops = append(out.Ops, Operation{
			Kind:        KindAttachLink,
			Description: fmt.Sprintf("attach %s offer %s", link.SupplierID, link.SKU),
			Link:        toCatalogLink(link),
		})
	}
}

// planUpdate emits only the delta between the canonical part and the
// existing record. Non-empty catalog values are never overwritten unless
// the planner was built with force.
func (p *Planner) planUpdate(part *parts.CanonicalPart, existing *catalog.Part, out *Plan) {
	fields := catalog.PartFields{}
	touched := false
	if p.wants(existing.Description, part.Description) {
		fields.Description = &part.Description
		touched = true
	}
	if p.wants(existing.DatasheetURL, part.DatasheetURL) {
		fields.DatasheetURL = &part.DatasheetURL
		touched = true
	}
	if len(part.CategoryPath) > 0 && !equalPath(existing.CategoryPath, part.CategoryPath) {
		if len(existing.CategoryPath) == 0 || p.force {
			fields.CategoryPath = append([]string{}, part.CategoryPath...)
			touched = true
		}
	}
	if touched {
		out.Ops = append(out.Ops, Operation{
			Kind:        KindUpdatePart,
			Description: "update part " + part.Key().String(),
			PartID:      existing.ID,
			Fields:      fields,
		})
	}

	for _, name := range sortedParamNames(part.Parameters) {
		want := part.Parameters[name].String()
		have, ok := existing.Parameters[name]
		if ok && (have == want || (have != "" && !p.force)) {
			continue
		}
		out.Ops = append(out.Ops, Operation{
			Kind:        KindSetParameter,
			Description: fmt.Sprintf("set parameter %s = %s", name, want),
			PartID:      existing.ID,
			ParamName:   name,
			ParamValue:  want,
		})
	}

	for _, link := range part.Links {
		have, ok := existing.Link(link.SupplierID)
		if !ok {
			out.Ops = append(out.Ops, Operation{
				Kind:        KindAttachLink,
				Description: fmt.Sprintf("attach %s offer %s", link.SupplierID, link.SKU),
				PartID:      existing.ID,
				Link:        toCatalogLink(link),
			})
			continue
		}
		p.planPricing(existing.ID, link, have, out)
		if link.Stock != have.Stock {
			out.Ops = append(out.Ops, Operation{
				Kind:        KindSetStock,
				Description: fmt.Sprintf("set %s stock to %d", link.SupplierID, link.Stock),
				PartID:      existing.ID,
				SupplierID:  link.SupplierID,
				Quantity:    link.Stock,
			})
		}
	}
}

// planPricing reconciles price breaks per quantity. Quantities the
// supplier no longer offers are left alone; stale pruning is a catalog
// maintenance concern, not an import concern.
func (p *Planner) planPricing(partID string, link parts.SupplierLinkData, have *catalog.SupplierLink, out *Plan) {
	quantities := make([]int, 0, len(link.PriceBreaks))
	for q := range link.PriceBreaks {
		quantities = append(quantities, q)
	}
	sort.Ints(quantities)

	for _, q := range quantities {
		price := link.PriceBreaks[q]
		if existing, ok := have.PriceBreaks[q]; ok && existing == price && have.Currency == link.Currency {
			continue
		}
		out.Ops = append(out.Ops, Operation{
			Kind:        KindSetPriceBreak,
			Description: fmt.Sprintf("set %s price @%d to %g %s", link.SupplierID, q, price, link.Currency),
			PartID:      partID,
			SupplierID:  link.SupplierID,
			Quantity:    q,
			Price:       price,
			Currency:    link.Currency,
		})
	}
}

// wants decides whether a scalar field should be written: the values
// differ, the incoming one is non-empty, and the catalog one is either
// empty or force is on.
func (p *Planner) wants(have, want string) bool {
	if want == "" || have == want {
		return false
	}
	return have == "" || p.force
}

func toCatalogLink(l parts.SupplierLinkData) catalog.SupplierLink {
	breaks := make(map[int]float64, len(l.PriceBreaks))
	for q, price := range l.PriceBreaks {
		breaks[q] = price
	}
	return catalog.SupplierLink{
		SupplierID:  l.SupplierID,
		SKU:         l.SKU,
		URL:         l.URL,
		Packaging:   l.Packaging,
		Currency:    l.Currency,
		PriceBreaks: breaks,
		Stock:       l.Stock,
	}
}

func equalPath(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func sortedParamNames(m map[string]parts.ParameterValue) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
