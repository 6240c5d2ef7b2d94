package plan

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/partsync/partsync/pkg/catalog"
	"github.com/partsync/partsync/pkg/catalog/memory"
	"github.com/partsync/partsync/pkg/parts"
	"github.com/partsync/partsync/pkg/taxonomy"
)

func testClassification(t *testing.T) *taxonomy.Classification {
	t.Helper()
	part := &parts.CanonicalPart{
		Manufacturer: "Yageo",
		MPN:          "RC0603FR-0710KL",
		Description:  "Thick film chip resistor",
		DatasheetURL: "https://example.com/ds.pdf",
		CategoryPath: []string{"Passives", "Resistors"},
		Parameters: map[string]parts.ParameterValue{
			"Resistance": parts.NumericValue("10k", 10000, "ohm"),
			"Tolerance":  parts.TextValue("1%"),
		},
		Links: []parts.SupplierLinkData{
			{
				SupplierID:  "future",
				SKU:         "FE-12345",
				Currency:    "EUR",
				PriceBreaks: map[int]float64{10: 0.05, 100: 0.01},
				Stock:       5000,
			},
		},
	}

	tax, err := taxonomy.Parse([]byte("Passives:\n  Resistors:\n"), nil, []string{"Uncategorized"})
	require.NoError(t, err)
	return tax.Classify(part)
}

func TestPlanCreate(t *testing.T) {
	cat := memory.New()
	p := New(cat, nil, false)

	built, err := p.Build(context.Background(), testClassification(t), nil)
	require.NoError(t, err)
	require.False(t, built.Empty())
	assert.True(t, built.Creates())

	// Categories come first, root before leaf, then the part, then its
	// data.
	kinds := make([]Kind, len(built.Ops))
	for i, op := range built.Ops {
		kinds[i] = op.Kind
	}
	assert.Equal(t, []Kind{
		KindCreateCategory, // Passives
		KindCreateCategory, // Passives/Resistors
		KindCreatePart,
		KindSetParameter, // Resistance
		KindSetParameter, // Tolerance
		KindAttachLink,
	}, kinds)

	assert.Equal(t, []string{"Passives"}, built.Ops[0].CategoryPath)
	assert.Equal(t, []string{"Passives", "Resistors"}, built.Ops[1].CategoryPath)
}

func TestPlanSkipsExistingCategories(t *testing.T) {
	cat := memory.New()
	ctx := context.Background()
	_, err := cat.CreateCategory(ctx, []string{"Passives"}, "Passives", true)
	require.NoError(t, err)

	p := New(cat, nil, false)
	built, err := p.Build(ctx, testClassification(t), nil)
	require.NoError(t, err)

	var categories int
	for _, op := range built.Ops {
		if op.Kind == KindCreateCategory {
			categories++
		}
	}
	assert.Equal(t, 1, categories, "only the missing leaf is created")
}

func TestPlanReportsDescriptionDrift(t *testing.T) {
	cat := memory.New()
	ctx := context.Background()
	_, err := cat.CreateCategory(ctx, []string{"Passives"}, "Passives", false)
	require.NoError(t, err)
	_, err = cat.CreateCategory(ctx, []string{"Passives", "Resistors"}, "Hand-edited description", false)
	require.NoError(t, err)

	tax, err := taxonomy.Parse(
		[]byte("Passives:\n  Resistors:\n    _description: Fixed resistors\n"),
		nil, []string{"Uncategorized"})
	require.NoError(t, err)

	planner := New(cat, tax, false)
	built, err := planner.Build(ctx, testClassification(t), nil)
	require.NoError(t, err)

	// The drifted description is reported, never rewritten.
	require.Len(t, built.Notes, 1)
	assert.Contains(t, built.Notes[0], "Passives/Resistors")
	assert.Contains(t, built.Notes[0], "Hand-edited description")
	assert.Contains(t, built.Notes[0], "Fixed resistors")
	for _, op := range built.Ops {
		assert.NotEqual(t, KindCreateCategory, op.Kind)
	}
}

// applyAll replays a plan against the memory catalog the way the
// executor would, so planner tests can assert on idempotence.
func applyAll(t *testing.T, cat *memory.Catalog, built *Plan) string {
	t.Helper()
	ctx := context.Background()
	partID := ""
	for _, op := range built.Ops {
		target := op.PartID
		if target == "" {
			target = partID
		}
		switch op.Kind {
		case KindCreateCategory:
			_, err := cat.CreateCategory(ctx, op.CategoryPath, op.CategoryDesc, op.Structural)
			require.NoError(t, err)
		case KindCreatePart:
			created, err := cat.CreatePart(ctx, op.Part)
			require.NoError(t, err)
			partID = created.ID
		case KindUpdatePart:
			_, err := cat.UpdatePart(ctx, target, op.Fields)
			require.NoError(t, err)
		case KindAttachLink:
			require.NoError(t, cat.AttachSupplierLink(ctx, target, op.Link))
		case KindSetPriceBreak:
			require.NoError(t, cat.SetPriceBreak(ctx, target, op.SupplierID, op.Quantity, op.Price, op.Currency))
		case KindSetParameter:
			require.NoError(t, cat.SetParameter(ctx, target, op.ParamName, op.ParamValue))
		case KindSetStock:
			require.NoError(t, cat.SetStock(ctx, target, op.SupplierID, op.Quantity))
		}
	}
	return partID
}

func TestPlanIdempotent(t *testing.T) {
	cat := memory.New()
	planner := New(cat, nil, false)
	ctx := context.Background()

	cls := testClassification(t)
	first, err := planner.Build(ctx, cls, nil)
	require.NoError(t, err)
	partID := applyAll(t, cat, first)
	require.NotEmpty(t, partID)

	existing, ok := cat.Part(partID)
	require.True(t, ok)

	second, err := planner.Build(ctx, cls, existing)
	require.NoError(t, err)
	assert.True(t, second.Empty(), "second plan must be empty, got %+v", second.Ops)
}

func TestPlanNeverOverwritesWithoutForce(t *testing.T) {
	cat := memory.New()
	existing := &catalog.Part{
		ID:           "P0001",
		Manufacturer: "Yageo",
		MPN:          "RC0603FR-0710KL",
		Description:  "Hand-curated description",
		CategoryPath: []string{"Passives", "Resistors"},
		Parameters:   map[string]string{"Tolerance": "5%"},
		Links: []catalog.SupplierLink{
			{
				SupplierID:  "future",
				SKU:         "FE-12345",
				Currency:    "EUR",
				PriceBreaks: map[int]float64{10: 0.05, 100: 0.01},
				Stock:       5000,
			},
		},
	}
	ctx := context.Background()
	_, err := cat.CreateCategory(ctx, []string{"Passives"}, "", false)
	require.NoError(t, err)
	_, err = cat.CreateCategory(ctx, []string{"Passives", "Resistors"}, "", false)
	require.NoError(t, err)

	planner := New(cat, nil, false)
	built, err := planner.Build(ctx, testClassification(t), existing)
	require.NoError(t, err)

	for _, op := range built.Ops {
		assert.NotEqual(t, KindUpdatePart, op.Kind, "non-empty description must not be overwritten")
		if op.Kind == KindSetParameter {
			assert.NotEqual(t, "Tolerance", op.ParamName, "existing parameter value must not be overwritten")
		}
	}

	// The datasheet URL is empty in the catalog, so it is fair game.
	forced := New(cat, nil, true)
	builtForced, err := forced.Build(ctx, testClassification(t), existing)
	require.NoError(t, err)

	var sawUpdate, sawTolerance bool
	for _, op := range builtForced.Ops {
		if op.Kind == KindUpdatePart {
			sawUpdate = true
			require.NotNil(t, op.Fields.Description)
		}
		if op.Kind == KindSetParameter && op.ParamName == "Tolerance" {
			sawTolerance = true
		}
	}
	assert.True(t, sawUpdate, "force overwrites the description")
	assert.True(t, sawTolerance, "force overwrites parameters")
}

func TestPlanUpdateDelta(t *testing.T) {
	cat := memory.New()
	ctx := context.Background()
	_, err := cat.CreateCategory(ctx, []string{"Passives"}, "", false)
	require.NoError(t, err)
	_, err = cat.CreateCategory(ctx, []string{"Passives", "Resistors"}, "", false)
	require.NoError(t, err)

	existing := &catalog.Part{
		ID:           "P0001",
		Manufacturer: "Yageo",
		MPN:          "RC0603FR-0710KL",
		Description:  "Thick film chip resistor",
		DatasheetURL: "https://example.com/ds.pdf",
		CategoryPath: []string{"Passives", "Resistors"},
		Parameters: map[string]string{
			"Resistance": "10000 ohm",
			"Tolerance":  "1%",
		},
		Links: []catalog.SupplierLink{
			{
				SupplierID:  "future",
				SKU:         "FE-12345",
				Currency:    "EUR",
				PriceBreaks: map[int]float64{10: 0.05, 100: 0.02}, // 100 price changed
				Stock:       4000,                                 // stock changed
			},
		},
	}

	planner := New(cat, nil, false)
	built, err := planner.Build(ctx, testClassification(t), existing)
	require.NoError(t, err)

	require.Len(t, built.Ops, 2)
	assert.Equal(t, KindSetPriceBreak, built.Ops[0].Kind)
	assert.Equal(t, 100, built.Ops[0].Quantity)
	assert.InDelta(t, 0.01, built.Ops[0].Price, 1e-9)
	assert.Equal(t, KindSetStock, built.Ops[1].Kind)
	assert.Equal(t, 5000, built.Ops[1].Quantity, "stock is brought up to the supplier value")
}
