// Package catalog defines the capability interfaces the import pipeline
// uses to read and mutate the target inventory catalog. The catalog is
// the system of record: the core only reads and proposes mutations, and
// all creation calls are idempotent by natural key so a partially applied
// plan can be completed by the next run.
package catalog

import (
	"context"
	"strings"
)

// Category is a node in the target catalog's category tree, identified by
// its path.
type Category struct {
	ID          int64
	Path        []string
	Description string
	Structural  bool
}

// PathString renders the category path.
func (c *Category) PathString() string {
	return strings.Join(c.Path, "/")
}

// SupplierLink is one supplier's offer attached to a catalog part.
type SupplierLink struct {
	SupplierID  string
	SKU         string
	URL         string
	Packaging   string
	Currency    string
	PriceBreaks map[int]float64
	Stock       int
}

// Part is an existing part record in the target catalog.
type Part struct {
	ID           string
	Manufacturer string
	MPN          string
	Description  string
	DatasheetURL string
	CategoryPath []string
	Parameters   map[string]string
	Links        []SupplierLink
}

// Link returns the link for a supplier id, if attached.
func (p *Part) Link(supplierID string) (*SupplierLink, bool) {
	for i := range p.Links {
		if p.Links[i].SupplierID == supplierID {
			return &p.Links[i], true
		}
	}
	return nil, false
}

// SearchCriteria selects parts either by manufacturer identity or by an
// attached supplier link. Empty fields are not matched on.
type SearchCriteria struct {
	Manufacturer string
	MPN          string
	SupplierID   string
	SKU          string
}

// PartFields carries the updatable scalar fields of a part. Nil pointers
// leave the catalog value untouched.
type PartFields struct {
	Description  *string
	DatasheetURL *string
	CategoryPath []string
}

// Searcher is the read side of the catalog capability.
type Searcher interface {
	// FindCategory returns the category at path or errors.ErrNotFound.
	FindCategory(ctx context.Context, path []string) (*Category, error)
	// SearchParts returns parts matching the criteria.
	SearchParts(ctx context.Context, criteria SearchCriteria) ([]*Part, error)
}

// Mutator is the write side of the catalog capability. Creation calls are
// idempotent: re-creating an existing category or part is a lookup, not
// an error.
type Mutator interface {
	CreateCategory(ctx context.Context, path []string, description string, structural bool) (*Category, error)
	CreatePart(ctx context.Context, part *Part) (*Part, error)
	UpdatePart(ctx context.Context, id string, fields PartFields) (*Part, error)
	AttachSupplierLink(ctx context.Context, partID string, link SupplierLink) error
	SetPriceBreak(ctx context.Context, partID, supplierID string, quantity int, price float64, currency string) error
	SetParameter(ctx context.Context, partID, name, value string) error
	SetStock(ctx context.Context, partID, supplierID string, quantity int) error
}

// Catalog combines both sides of the capability.
type Catalog interface {
	Searcher
	Mutator
}
