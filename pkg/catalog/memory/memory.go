// Package memory provides an in-memory catalog implementation, used by
// tests and dry runs. It is safe for concurrent use.
package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/partsync/partsync/pkg/catalog"
	"github.com/partsync/partsync/pkg/errors"
	"github.com/partsync/partsync/pkg/parts"
)

// Catalog is an in-memory catalog.Catalog implementation.
type Catalog struct {
	mu         sync.RWMutex
	categories map[string]*catalog.Category // keyed by path string
	parts      map[string]*catalog.Part     // keyed by part ID
	byIdentity map[parts.IdentityKey]string // identity key -> part ID
	nextCat    int64
	nextPart   int64
}

// New creates an empty in-memory catalog.
func New() *Catalog {
	return &Catalog{
		categories: map[string]*catalog.Category{},
		parts:      map[string]*catalog.Part{},
		byIdentity: map[parts.IdentityKey]string{},
	}
}

// FindCategory implements catalog.Searcher.
func (c *Catalog) FindCategory(_ context.Context, path []string) (*catalog.Category, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if cat, ok := c.categories[strings.Join(path, "/")]; ok {
		out := *cat
		return &out, nil
	}
	return nil, errors.ErrNotFound
}

// SearchParts implements catalog.Searcher.
func (c *Catalog) SearchParts(_ context.Context, criteria catalog.SearchCriteria) ([]*catalog.Part, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []*catalog.Part
	for _, p := range c.parts {
		if matches(p, criteria) {
			out = append(out, clonePart(p))
		}
	}
	return out, nil
}

func matches(p *catalog.Part, criteria catalog.SearchCriteria) bool {
	if criteria.MPN != "" {
		want := parts.NewIdentityKey(criteria.Manufacturer, criteria.MPN)
		got := parts.NewIdentityKey(p.Manufacturer, p.MPN)
		if criteria.Manufacturer == "" {
			got.Manufacturer = ""
		}
		if want != got {
			return false
		}
	}
	if criteria.SupplierID != "" || criteria.SKU != "" {
		for _, l := range p.Links {
			if (criteria.SupplierID == "" || l.SupplierID == criteria.SupplierID) &&
				(criteria.SKU == "" || strings.EqualFold(l.SKU, criteria.SKU)) {
				return true
			}
		}
		return false
	}
	return criteria.MPN != ""
}

// CreateCategory implements catalog.Mutator. Re-creating an existing
// category returns it unchanged.
func (c *Catalog) CreateCategory(_ context.Context, path []string, description string, structural bool) (*catalog.Category, error) {
	if len(path) == 0 {
		return nil, errors.ErrInvalidInput
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	key := strings.Join(path, "/")
	if cat, ok := c.categories[key]; ok {
		out := *cat
		return &out, nil
	}
	c.nextCat++
	cat := &catalog.Category{
		ID:          c.nextCat,
		Path:        append([]string{}, path...),
		Description: description,
		Structural:  structural,
	}
	c.categories[key] = cat
	out := *cat
	return &out, nil
}

// CreatePart implements catalog.Mutator. Creation is idempotent by
// manufacturer + MPN.
func (c *Catalog) CreatePart(_ context.Context, part *catalog.Part) (*catalog.Part, error) {
	if part == nil || part.MPN == "" {
		return nil, errors.ErrInvalidInput
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	key := parts.NewIdentityKey(part.Manufacturer, part.MPN)
	if id, ok := c.byIdentity[key]; ok {
		return clonePart(c.parts[id]), nil
	}

	c.nextPart++
	stored := clonePart(part)
	stored.ID = fmt.Sprintf("P%04d", c.nextPart)
	c.parts[stored.ID] = stored
	c.byIdentity[key] = stored.ID
	return clonePart(stored), nil
}

// UpdatePart implements catalog.Mutator.
func (c *Catalog) UpdatePart(_ context.Context, id string, fields catalog.PartFields) (*catalog.Part, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	p, ok := c.parts[id]
	if !ok {
		return nil, errors.ErrNotFound
	}
	if fields.Description != nil {
		p.Description = *fields.Description
	}
	if fields.DatasheetURL != nil {
		p.DatasheetURL = *fields.DatasheetURL
	}
	if fields.CategoryPath != nil {
		p.CategoryPath = append([]string{}, fields.CategoryPath...)
	}
	return clonePart(p), nil
}

// AttachSupplierLink implements catalog.Mutator, idempotent by supplier.
func (c *Catalog) AttachSupplierLink(_ context.Context, partID string, link catalog.SupplierLink) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	p, ok := c.parts[partID]
	if !ok {
		return errors.ErrNotFound
	}
	for i := range p.Links {
		if p.Links[i].SupplierID == link.SupplierID {
			// Already attached; links are additive, never replaced.
			return nil
		}
	}
	link.PriceBreaks = cloneBreaks(link.PriceBreaks)
	p.Links = append(p.Links, link)
	return nil
}

// SetPriceBreak implements catalog.Mutator.
func (c *Catalog) SetPriceBreak(_ context.Context, partID, supplierID string, quantity int, price float64, currency string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	p, ok := c.parts[partID]
	if !ok {
		return errors.ErrNotFound
	}
	for i := range p.Links {
		if p.Links[i].SupplierID == supplierID {
			if p.Links[i].PriceBreaks == nil {
				p.Links[i].PriceBreaks = map[int]float64{}
			}
			p.Links[i].PriceBreaks[quantity] = price
			p.Links[i].Currency = currency
			return nil
		}
	}
	return errors.ErrNotFound
}

// SetParameter implements catalog.Mutator.
func (c *Catalog) SetParameter(_ context.Context, partID, name, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	p, ok := c.parts[partID]
	if !ok {
		return errors.ErrNotFound
	}
	if p.Parameters == nil {
		p.Parameters = map[string]string{}
	}
	p.Parameters[name] = value
	return nil
}

// SetStock implements catalog.Mutator.
func (c *Catalog) SetStock(_ context.Context, partID, supplierID string, quantity int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	p, ok := c.parts[partID]
	if !ok {
		return errors.ErrNotFound
	}
	for i := range p.Links {
		if p.Links[i].SupplierID == supplierID {
			p.Links[i].Stock = quantity
			return nil
		}
	}
	return errors.ErrNotFound
}

// Part returns a copy of a stored part by ID, for tests.
func (c *Catalog) Part(id string) (*catalog.Part, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.parts[id]
	if !ok {
		return nil, false
	}
	return clonePart(p), true
}

// Categories returns the number of stored categories, for tests.
func (c *Catalog) Categories() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.categories)
}

func clonePart(p *catalog.Part) *catalog.Part {
	out := *p
	out.CategoryPath = append([]string{}, p.CategoryPath...)
	if p.Parameters != nil {
		out.Parameters = make(map[string]string, len(p.Parameters))
		for k, v := range p.Parameters {
			out.Parameters[k] = v
		}
	}
	out.Links = make([]catalog.SupplierLink, len(p.Links))
	for i, l := range p.Links {
		l.PriceBreaks = cloneBreaks(l.PriceBreaks)
		out.Links[i] = l
	}
	return &out
}

func cloneBreaks(in map[int]float64) map[int]float64 {
	if in == nil {
		return nil
	}
	out := make(map[int]float64, len(in))
	for q, p := range in {
		out[q] = p
	}
	return out
}
