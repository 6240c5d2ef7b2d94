package importer

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/partsync/partsync/pkg/catalog"
	"github.com/partsync/partsync/pkg/catalog/memory"
	"github.com/partsync/partsync/pkg/config"
	"github.com/partsync/partsync/pkg/errors"
	"github.com/partsync/partsync/pkg/parts"
	"github.com/partsync/partsync/pkg/suppliers"
	"github.com/partsync/partsync/pkg/taxonomy"
)

// fakeSupplier serves canned responses and counts calls.
type fakeSupplier struct {
	id      string
	mu      sync.Mutex
	calls   int
	handler func(call int, identifier string) ([]*parts.RawCandidate, error)
}

func (f *fakeSupplier) ID() string   { return f.id }
func (f *fakeSupplier) Name() string { return f.id }

func (f *fakeSupplier) Search(_ context.Context, identifier string) ([]*parts.RawCandidate, error) {
	f.mu.Lock()
	f.calls++
	call := f.calls
	f.mu.Unlock()
	return f.handler(call, identifier)
}

func (f *fakeSupplier) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func resistor(supplier, identifier string) *parts.RawCandidate {
	return &parts.RawCandidate{
		SupplierID:   supplier,
		SupplierName: supplier,
		SKU:          supplier + "-" + identifier,
		Manufacturer: "Yageo",
		MPN:          identifier,
		Description:  "Thick film chip resistor " + identifier,
		CategoryPath: []string{"Resistors"},
		Currency:     "USD",
		PriceBreaks:  map[int]float64{1: 0.10},
		Stock:        1000,
		Attributes:   map[string]string{"Resistance": "10kOhm"},
	}
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Currency = "USD"
	cfg.Workers = 4
	cfg.RetryLimit = 2
	cfg.RetryBackoff = time.Millisecond
	cfg.RequestTimeout = time.Second
	return cfg
}

func testTaxonomy(t *testing.T) *taxonomy.Taxonomy {
	t.Helper()
	tax, err := taxonomy.Parse(
		[]byte("Passives:\n  Resistors:\n    _parameters: [Resistance]\n"),
		[]byte("Resistance:\n  _aliases: [resistance]\n"),
		[]string{"Uncategorized"},
	)
	require.NoError(t, err)
	return tax
}

func registryWith(t *testing.T, sups ...suppliers.Supplier) *suppliers.Registry {
	t.Helper()
	registry := suppliers.NewRegistry()
	for _, s := range sups {
		require.NoError(t, registry.Register(s))
	}
	return registry
}

func TestRunCreatesThenUpToDate(t *testing.T) {
	supplier := &fakeSupplier{id: "ti", handler: func(_ int, identifier string) ([]*parts.RawCandidate, error) {
		return []*parts.RawCandidate{resistor("ti", identifier)}, nil
	}}
	cat := memory.New()
	imp := New(testConfig(), registryWith(t, supplier), testTaxonomy(t), cat)

	outcomes, err := imp.Run(context.Background(), []string{"RC0603FR-0710KL"})
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	assert.Equal(t, parts.StatusCreated, outcomes[0].Status)
	assert.NotEmpty(t, outcomes[0].PartRef)
	assert.NotEmpty(t, outcomes[0].Executed)

	created, ok := cat.Part(outcomes[0].PartRef)
	require.True(t, ok)
	assert.Equal(t, "RC0603FR-0710KL", created.MPN)
	assert.Equal(t, []string{"Passives", "Resistors"}, created.CategoryPath)
	assert.Equal(t, "10000 ohm", created.Parameters["Resistance"])

	// Second run against the same catalog state plans nothing.
	again, err := imp.Run(context.Background(), []string{"RC0603FR-0710KL"})
	require.NoError(t, err)
	assert.Equal(t, parts.StatusUpToDate, again[0].Status)
	assert.Empty(t, again[0].Executed)
}

func TestRunItemsStockOverride(t *testing.T) {
	supplier := &fakeSupplier{id: "ti", handler: func(_ int, identifier string) ([]*parts.RawCandidate, error) {
		return []*parts.RawCandidate{resistor("ti", identifier)}, nil
	}}
	cat := memory.New()
	imp := New(testConfig(), registryWith(t, supplier), testTaxonomy(t), cat)

	outcomes, err := imp.RunItems(context.Background(), []Item{
		{Identifier: "RC0603FR-0710KL", Stock: 250},
	})
	require.NoError(t, err)
	require.True(t, outcomes[0].Status.Success())

	created, ok := cat.Part(outcomes[0].PartRef)
	require.True(t, ok)
	link, ok := created.Link("ti")
	require.True(t, ok)
	assert.Equal(t, 250, link.Stock, "batch row quantity wins over supplier stock")
}

func TestRunOutcomesInSubmissionOrder(t *testing.T) {
	supplier := &fakeSupplier{id: "ti", handler: func(_ int, identifier string) ([]*parts.RawCandidate, error) {
		// Make earlier identifiers slower so completion order inverts.
		if identifier == "PART-0" {
			time.Sleep(20 * time.Millisecond)
		}
		return []*parts.RawCandidate{resistor("ti", identifier)}, nil
	}}
	imp := New(testConfig(), registryWith(t, supplier), testTaxonomy(t), memory.New())

	identifiers := make([]string, 8)
	for i := range identifiers {
		identifiers[i] = fmt.Sprintf("PART-%d", i)
	}

	outcomes, err := imp.Run(context.Background(), identifiers)
	require.NoError(t, err)
	require.Len(t, outcomes, len(identifiers))
	for i, o := range outcomes {
		assert.Equal(t, identifiers[i], o.Identifier)
	}
}

func TestRunSkipsWithoutUsableData(t *testing.T) {
	supplier := &fakeSupplier{id: "ti", handler: func(_ int, _ string) ([]*parts.RawCandidate, error) {
		return nil, nil
	}}
	imp := New(testConfig(), registryWith(t, supplier), testTaxonomy(t), memory.New())

	outcomes, err := imp.Run(context.Background(), []string{"UNKNOWN-1"})
	require.NoError(t, err)
	assert.Equal(t, parts.StatusSkipped, outcomes[0].Status)
	assert.Equal(t, "no usable supplier data", outcomes[0].Reason)
}

func TestRunIsolatesFailures(t *testing.T) {
	supplier := &fakeSupplier{id: "ti", handler: func(_ int, identifier string) ([]*parts.RawCandidate, error) {
		if identifier == "BAD-1" {
			return nil, errors.NewAdapterError("ti", 400, "bad request", nil)
		}
		return []*parts.RawCandidate{resistor("ti", identifier)}, nil
	}}
	imp := New(testConfig(), registryWith(t, supplier), testTaxonomy(t), memory.New())

	outcomes, err := imp.Run(context.Background(), []string{"GOOD-1", "BAD-1", "GOOD-2"})
	require.NoError(t, err)
	assert.Equal(t, parts.StatusCreated, outcomes[0].Status)
	assert.Equal(t, parts.StatusFailed, outcomes[1].Status)
	assert.NotEmpty(t, outcomes[1].Reason)
	assert.Equal(t, parts.StatusCreated, outcomes[2].Status)
}

func TestRunRetriesTransientErrors(t *testing.T) {
	supplier := &fakeSupplier{id: "ti", handler: func(call int, identifier string) ([]*parts.RawCandidate, error) {
		if call == 1 {
			return nil, errors.NewAdapterError("ti", 503, "service unavailable", nil)
		}
		return []*parts.RawCandidate{resistor("ti", identifier)}, nil
	}}
	imp := New(testConfig(), registryWith(t, supplier), testTaxonomy(t), memory.New())

	outcomes, err := imp.Run(context.Background(), []string{"RC0603FR-0710KL"})
	require.NoError(t, err)
	assert.Equal(t, parts.StatusCreated, outcomes[0].Status)
	assert.Equal(t, 2, supplier.callCount())
}

func TestRunDoesNotRetryPermanentErrors(t *testing.T) {
	supplier := &fakeSupplier{id: "ti", handler: func(_ int, _ string) ([]*parts.RawCandidate, error) {
		return nil, errors.NewAdapterError("ti", 404, "not found", nil)
	}}
	imp := New(testConfig(), registryWith(t, supplier), testTaxonomy(t), memory.New())

	outcomes, err := imp.Run(context.Background(), []string{"RC0603FR-0710KL"})
	require.NoError(t, err)
	assert.Equal(t, parts.StatusFailed, outcomes[0].Status)
	assert.Equal(t, 1, supplier.callCount())
}

func TestRunSkipsAmbiguousMatch(t *testing.T) {
	cat := memory.New()
	ctx := context.Background()

	// Two catalog parts that both claim the incoming part: one by
	// identity, one by supplier link.
	_, err := cat.CreatePart(ctx, &catalog.Part{Manufacturer: "Yageo", MPN: "RC0603FR-0710KL"})
	require.NoError(t, err)
	_, err = cat.CreatePart(ctx, &catalog.Part{
		Manufacturer: "Vishay",
		MPN:          "OTHER",
		Links:        []catalog.SupplierLink{{SupplierID: "ti", SKU: "ti-RC0603FR-0710KL"}},
	})
	require.NoError(t, err)

	supplier := &fakeSupplier{id: "ti", handler: func(_ int, identifier string) ([]*parts.RawCandidate, error) {
		return []*parts.RawCandidate{resistor("ti", identifier)}, nil
	}}
	imp := New(testConfig(), registryWith(t, supplier), testTaxonomy(t), cat)

	outcomes, err := imp.Run(ctx, []string{"RC0603FR-0710KL"})
	require.NoError(t, err)
	assert.Equal(t, parts.StatusSkipped, outcomes[0].Status)
	assert.Contains(t, outcomes[0].Reason, "ambiguous")
}

func TestRunDryRunAppliesNothing(t *testing.T) {
	supplier := &fakeSupplier{id: "ti", handler: func(_ int, identifier string) ([]*parts.RawCandidate, error) {
		return []*parts.RawCandidate{resistor("ti", identifier)}, nil
	}}
	cat := memory.New()
	imp := New(testConfig(), registryWith(t, supplier), testTaxonomy(t), cat, WithDryRun(true))

	outcomes, err := imp.Run(context.Background(), []string{"RC0603FR-0710KL"})
	require.NoError(t, err)
	assert.Equal(t, parts.StatusCreated, outcomes[0].Status)
	assert.NotEmpty(t, outcomes[0].Executed)
	assert.Empty(t, outcomes[0].PartRef)
	assert.Equal(t, 0, cat.Categories(), "dry run must not touch the catalog")
}

func TestRunMergesSuppliersByPriority(t *testing.T) {
	ti := &fakeSupplier{id: "ti", handler: func(_ int, identifier string) ([]*parts.RawCandidate, error) {
		c := resistor("ti", identifier)
		c.DatasheetURL = "https://ti.example/ds.pdf"
		return []*parts.RawCandidate{c}, nil
	}}
	future := &fakeSupplier{id: "future", handler: func(_ int, identifier string) ([]*parts.RawCandidate, error) {
		c := resistor("future", identifier)
		c.DatasheetURL = "https://future.example/ds.pdf"
		return []*parts.RawCandidate{c}, nil
	}}

	cfg := testConfig()
	cfg.SupplierPriority = []string{"future", "ti"}
	cat := memory.New()
	imp := New(cfg, registryWith(t, ti, future), testTaxonomy(t), cat)

	outcomes, err := imp.Run(context.Background(), []string{"RC0603FR-0710KL"})
	require.NoError(t, err)
	require.Equal(t, parts.StatusCreated, outcomes[0].Status)

	created, ok := cat.Part(outcomes[0].PartRef)
	require.True(t, ok)
	assert.Equal(t, "https://future.example/ds.pdf", created.DatasheetURL)
	assert.Len(t, created.Links, 2, "both supplier offers stay attached")
}

func TestRunCanceledContext(t *testing.T) {
	supplier := &fakeSupplier{id: "ti", handler: func(_ int, identifier string) ([]*parts.RawCandidate, error) {
		return []*parts.RawCandidate{resistor("ti", identifier)}, nil
	}}
	imp := New(testConfig(), registryWith(t, supplier), testTaxonomy(t), memory.New())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	outcomes, err := imp.Run(ctx, []string{"A", "B"})
	require.NoError(t, err)
	for _, o := range outcomes {
		assert.Equal(t, parts.StatusFailed, o.Status)
		assert.True(t, errors.IsCanceled(o.Err))
	}
}
