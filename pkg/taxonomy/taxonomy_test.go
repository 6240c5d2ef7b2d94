package taxonomy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/partsync/partsync/pkg/parts"
)

const categoriesYAML = `
Passives:
  _structural: true
  Resistors:
    _description: Fixed resistors
    _aliases: [Chip Resistor - Surface Mount, Through Hole Resistors]
    _parameters: [Resistance, Tolerance]
    SMD:
      _parameters: [Package]
  Capacitors:
    _parameters: [Capacitance]
    MLCC:
Obsolete:
  _ignore: true
Connectors:
  Headers:
Audio:
  Headers:
`

const parametersYAML = `
Resistance:
  _description: Resistance value
  _aliases: [resistance, Resistance Value]
  _unit: ohm
Tolerance:
  _aliases: [tolerance]
Capacitance:
  _aliases: [capacitance]
Package:
  _aliases: [Package / Case, Case Code]
`

func load(t *testing.T) *Taxonomy {
	t.Helper()
	tax, err := Parse([]byte(categoriesYAML), []byte(parametersYAML), []string{"Uncategorized"})
	require.NoError(t, err)
	return tax
}

func TestParseBuildsTree(t *testing.T) {
	tax := load(t)

	smd, ok := tax.Category([]string{"Passives", "Resistors", "SMD"})
	require.True(t, ok)
	assert.Equal(t, "SMD", smd.Name)
	assert.ElementsMatch(t, []string{"Resistance", "Tolerance", "Package"}, smd.Parameters,
		"parameters inherit down the tree")

	passives, ok := tax.Category([]string{"Passives"})
	require.True(t, ok)
	assert.True(t, passives.Structural)

	resistors, ok := tax.Category([]string{"Passives", "Resistors"})
	require.True(t, ok)
	assert.Equal(t, "Fixed resistors", resistors.Description)
}

func TestMatchHintByAlias(t *testing.T) {
	tax := load(t)

	cat, ok := tax.MatchHint([]string{"Chip Resistor - Surface Mount"})
	require.True(t, ok)
	assert.Equal(t, "Passives/Resistors", cat.PathString())
}

func TestMatchHintLeafFirst(t *testing.T) {
	tax := load(t)

	// The most specific path component wins.
	cat, ok := tax.MatchHint([]string{"Passives", "Capacitors", "MLCC"})
	require.True(t, ok)
	assert.Equal(t, "Passives/Capacitors/MLCC", cat.PathString())
}

func TestMatchHintSkipsIgnored(t *testing.T) {
	tax := load(t)

	_, ok := tax.MatchHint([]string{"Obsolete"})
	assert.False(t, ok)
}

func TestMatchHintAmbiguousNameDropped(t *testing.T) {
	tax := load(t)

	// "Headers" exists under both Connectors and Audio; the bare name
	// must not resolve to either.
	_, ok := tax.MatchHint([]string{"Headers"})
	assert.False(t, ok)

	cat, ok := tax.MatchHint([]string{"Connectors"})
	require.True(t, ok)
	assert.Equal(t, "Connectors", cat.PathString())
}

func TestResolveParameterRespectsCategory(t *testing.T) {
	tax := load(t)

	resistors, _ := tax.Category([]string{"Passives", "Resistors"})
	capacitors, _ := tax.Category([]string{"Passives", "Capacitors"})

	p, ok := tax.ResolveParameter(resistors, "Resistance Value")
	require.True(t, ok)
	assert.Equal(t, "Resistance", p.Name)

	_, ok = tax.ResolveParameter(capacitors, "Resistance Value")
	assert.False(t, ok, "alias candidates outside the category do not resolve")
}

func TestClassify(t *testing.T) {
	tax := load(t)

	part := &parts.CanonicalPart{
		Manufacturer: "Yageo",
		MPN:          "RC0603FR-0710KL",
		CategoryPath: []string{"Resistors", "Chip Resistor - Surface Mount"},
		Parameters: map[string]parts.ParameterValue{
			"resistance":   parts.NumericValue("10k", 10000, "ohm"),
			"Weird Column": parts.TextValue("n/a"),
		},
	}

	cls := tax.Classify(part)
	assert.False(t, cls.UsedFallback)
	assert.Equal(t, "Passives/Resistors", cls.Category.PathString())
	assert.Equal(t, []string{"Passives", "Resistors"}, cls.Part.CategoryPath)

	resolved, ok := cls.Part.Parameters["Resistance"]
	require.True(t, ok, "supplier alias resolves to the canonical name")
	assert.InDelta(t, 10000, resolved.Magnitude, 1e-9)

	_, ok = cls.Part.Parameters["Weird Column"]
	assert.True(t, ok, "unresolved parameters survive verbatim")
	assert.Contains(t, cls.Uncategorized, "Weird Column")

	// The input part is untouched.
	assert.Equal(t, []string{"Resistors", "Chip Resistor - Surface Mount"}, part.CategoryPath)
}

func TestClassifyAliasCollisionIsDeterministic(t *testing.T) {
	tax := load(t)

	// Two supplier parameter names that alias to the same canonical
	// parameter with different values. The winner must be the same on
	// every run, independent of map iteration order.
	part := &parts.CanonicalPart{
		Manufacturer: "Yageo",
		MPN:          "RC0603FR-0710KL",
		CategoryPath: []string{"Resistors"},
		Parameters: map[string]parts.ParameterValue{
			"resistance":       parts.NumericValue("1k", 1000, "ohm"),
			"Resistance Value": parts.NumericValue("2k", 2000, "ohm"),
		},
	}

	want := tax.Classify(part).Part.Parameters["Resistance"]
	assert.InDelta(t, 2000, want.Magnitude, 1e-9,
		"sorted name order makes Resistance Value the first writer")
	for i := 0; i < 100; i++ {
		got := tax.Classify(part).Part.Parameters["Resistance"]
		require.Equal(t, want, got)
	}
}

func TestClassifyFallback(t *testing.T) {
	tax := load(t)

	part := &parts.CanonicalPart{MPN: "XYZ", CategoryPath: []string{"Neverland"}}
	cls := tax.Classify(part)
	assert.True(t, cls.UsedFallback)
	assert.Equal(t, []string{"Uncategorized"}, cls.Part.CategoryPath)
}
