// Package taxonomy assigns canonical records to catalog categories and
// resolves supplier parameter names through configurable alias tables.
// The taxonomy is loaded from categories.yaml and parameters.yaml; keys
// starting with an underscore are metadata, everything else is a child
// category.
package taxonomy

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/goccy/go-yaml"

	"github.com/partsync/partsync/pkg/errors"
)

// Category is one node of the target category tree.
type Category struct {
	Name        string
	Path        []string
	Description string
	Ignore      bool
	Structural  bool
	Aliases     []string
	// Parameters lists canonical parameter names valid for parts in this
	// category, inherited from ancestors.
	Parameters []string
}

// PathString renders the category path for logs and catalog lookups.
func (c *Category) PathString() string {
	return strings.Join(c.Path, "/")
}

// HasParameter reports whether a canonical parameter name is valid here.
func (c *Category) HasParameter(name string) bool {
	for _, p := range c.Parameters {
		if p == name {
			return true
		}
	}
	return false
}

// Parameter is one canonical parameter definition.
type Parameter struct {
	Name        string
	Description string
	Aliases     []string
	Unit        string
}

// Taxonomy is the compiled mapping from supplier hints to catalog
// categories and from supplier parameter names to canonical parameters.
type Taxonomy struct {
	categories map[string]*Category   // keyed by PathString
	hintIndex  map[string]*Category   // folded alias/name -> category
	parameters map[string]*Parameter  // canonical name -> definition
	paramIndex map[string][]*Parameter // folded alias -> candidate parameters
	defaultCat []string
}

// Load reads categories.yaml and parameters.yaml from dir.
func Load(dir string, defaultCategory []string) (*Taxonomy, error) {
	catData, err := os.ReadFile(filepath.Join(dir, "categories.yaml"))
	if err != nil {
		return nil, &errors.ConfigError{Component: "categories.yaml", Message: "cannot read", Err: err}
	}
	paramData, err := os.ReadFile(filepath.Join(dir, "parameters.yaml"))
	if err != nil && !os.IsNotExist(err) {
		return nil, &errors.ConfigError{Component: "parameters.yaml", Message: "cannot read", Err: err}
	}
	return Parse(catData, paramData, defaultCategory)
}

// Parse builds a Taxonomy from raw YAML documents.
func Parse(categoriesYAML, parametersYAML []byte, defaultCategory []string) (*Taxonomy, error) {
	t := &Taxonomy{
		categories: map[string]*Category{},
		hintIndex:  map[string]*Category{},
		parameters: map[string]*Parameter{},
		paramIndex: map[string][]*Parameter{},
		defaultCat: defaultCategory,
	}

	var catTree map[string]any
	if err := yaml.Unmarshal(categoriesYAML, &catTree); err != nil {
		return nil, errors.WrapParse("yaml", "categories.yaml", err)
	}
	t.parseCategories(catTree, nil, nil)

	if len(parametersYAML) > 0 {
		var paramTree map[string]any
		if err := yaml.Unmarshal(parametersYAML, &paramTree); err != nil {
			return nil, errors.WrapParse("yaml", "parameters.yaml", err)
		}
		t.parseParameters(paramTree)
	}

	t.buildHintIndex()
	t.buildParamIndex()
	return t, nil
}

// parseCategories walks the nested category tree. Parameters accumulate
// down the tree so leaves inherit their ancestors' parameter sets.
func (t *Taxonomy) parseCategories(tree map[string]any, path []string, inherited []string) {
	names := sortedKeys(tree)
	for _, name := range names {
		if strings.HasPrefix(name, "_") {
			continue
		}
		node, _ := tree[name].(map[string]any)

		params := append(append([]string{}, inherited...), stringList(node["_parameters"])...)
		childPath := append(append([]string{}, path...), name)

		cat := &Category{
			Name:        name,
			Path:        childPath,
			Description: stringOr(node["_description"], name),
			Ignore:      boolOr(node["_ignore"]),
			Structural:  boolOr(node["_structural"]),
			Aliases:     stringList(node["_aliases"]),
			Parameters:  params,
		}
		t.categories[cat.PathString()] = cat

		if node != nil {
			t.parseCategories(node, childPath, params)
		}
	}
}

// parseParameters reads parameter definitions with their alias lists.
func (t *Taxonomy) parseParameters(tree map[string]any) {
	for _, name := range sortedKeys(tree) {
		if strings.HasPrefix(name, "_") {
			continue
		}
		node, _ := tree[name].(map[string]any)
		t.parameters[name] = &Parameter{
			Name:        name,
			Description: stringOr(node["_description"], name),
			Aliases:     stringList(node["_aliases"]),
			Unit:        stringOr(node["_unit"], ""),
		}
	}
}

// buildHintIndex maps folded category names and aliases to categories.
// A name shared by several categories is ambiguous and is dropped from
// the index entirely; aliases always stay.
func (t *Taxonomy) buildHintIndex() {
	ambiguous := map[string]bool{}
	for _, key := range sortedKeys(t.categories) {
		cat := t.categories[key]
		for _, alias := range cat.Aliases {
			t.hintIndex[foldHint(alias)] = cat
		}
	}
	for _, key := range sortedKeys(t.categories) {
		cat := t.categories[key]
		folded := foldHint(cat.Name)
		if ambiguous[folded] {
			continue
		}
		if existing, ok := t.hintIndex[folded]; ok && existing.PathString() != cat.PathString() {
			ambiguous[folded] = true
			delete(t.hintIndex, folded)
			continue
		}
		t.hintIndex[folded] = cat
	}
}

// buildParamIndex maps folded parameter aliases (and canonical names) to
// the parameters they may resolve to. One alias may serve several
// parameters; the category's parameter set disambiguates at classify
// time.
func (t *Taxonomy) buildParamIndex() {
	for _, name := range sortedKeys(t.parameters) {
		p := t.parameters[name]
		for _, alias := range append(p.Aliases, p.Name) {
			folded := foldHint(alias)
			t.paramIndex[folded] = append(t.paramIndex[folded], p)
		}
	}
}

// Category returns the category at a path, if defined.
func (t *Taxonomy) Category(path []string) (*Category, bool) {
	c, ok := t.categories[strings.Join(path, "/")]
	return c, ok
}

// Categories returns all categories sorted by path.
func (t *Taxonomy) Categories() []*Category {
	out := make([]*Category, 0, len(t.categories))
	for _, key := range sortedKeys(t.categories) {
		out = append(out, t.categories[key])
	}
	return out
}

// MatchHint resolves a supplier category path to a catalog category. The
// hint path is walked leaf first so the most specific component wins.
// The bool result is false when nothing matched.
func (t *Taxonomy) MatchHint(hintPath []string) (*Category, bool) {
	for i := len(hintPath) - 1; i >= 0; i-- {
		if cat, ok := t.hintIndex[foldHint(hintPath[i])]; ok && !cat.Ignore {
			return cat, true
		}
	}
	return nil, false
}

// DefaultCategory returns the configured fallback category path.
func (t *Taxonomy) DefaultCategory() []string {
	return t.defaultCat
}

// ResolveParameter maps a supplier parameter name to a canonical
// parameter valid in the given category. The bool result is false when
// the name is unknown or none of its candidates belong to the category.
func (t *Taxonomy) ResolveParameter(category *Category, supplierName string) (*Parameter, bool) {
	for _, p := range t.paramIndex[foldHint(supplierName)] {
		if category == nil || category.HasParameter(p.Name) {
			return p, true
		}
	}
	return nil, false
}

func foldHint(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func stringOr(v any, fallback string) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fallback
}

func boolOr(v any) bool {
	b, _ := v.(bool)
	return b
}

func stringList(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
