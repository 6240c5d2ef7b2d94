// Package suppliers defines the supplier adapter capability and a
// registry of configured adapters. An adapter turns one identifier
// search into raw candidates; everything downstream is supplier
// agnostic.
package suppliers

import (
	"context"
	"sort"
	"sync"

	"github.com/partsync/partsync/pkg/errors"
	"github.com/partsync/partsync/pkg/parts"
)

// Supplier is one part source. Implementations must be safe for
// concurrent Search calls; the orchestrator fans out across suppliers
// and identifiers at once.
type Supplier interface {
	// ID returns the stable adapter id used in configuration, priority
	// lists and supplier links, e.g. "ti".
	ID() string
	// Name returns the human-readable supplier name.
	Name() string
	// Search returns raw candidates for an identifier (MPN, SKU or free
	// text). An empty slice with a nil error means the supplier simply
	// does not carry the part.
	Search(ctx context.Context, identifier string) ([]*parts.RawCandidate, error)
}

// Registry holds the configured adapters in query order.
type Registry struct {
	mu    sync.RWMutex
	order []string
	byID  map[string]Supplier
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byID: map[string]Supplier{}}
}

// Register adds an adapter. Re-registering an id replaces the previous
// adapter but keeps its position in the query order.
func (r *Registry) Register(s Supplier) error {
	if s == nil || s.ID() == "" {
		return errors.ErrInvalidInput
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[s.ID()]; !ok {
		r.order = append(r.order, s.ID())
	}
	r.byID[s.ID()] = s
	return nil
}

// Get returns the adapter for an id.
func (r *Registry) Get(id string) (Supplier, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byID[id]
	return s, ok
}

// All returns the adapters in registration order.
func (r *Registry) All() []Supplier {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Supplier, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id])
	}
	return out
}

// IDs returns the registered adapter ids in registration order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string{}, r.order...)
}

// Only returns the subset of adapters whose ids are in keep, preserving
// registration order. Unknown ids are reported so a typo in
// --only-supplier fails loudly instead of silently querying nothing.
func (r *Registry) Only(keep []string) ([]Supplier, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	want := map[string]bool{}
	for _, id := range keep {
		if _, ok := r.byID[id]; !ok {
			return nil, errors.New("unknown supplier: " + id)
		}
		want[id] = true
	}
	var out []Supplier
	for _, id := range r.order {
		if want[id] {
			out = append(out, r.byID[id])
		}
	}
	return out, nil
}

// SortedIDs returns the registered ids sorted alphabetically, for
// stable display.
func (r *Registry) SortedIDs() []string {
	ids := r.IDs()
	sort.Strings(ids)
	return ids
}
