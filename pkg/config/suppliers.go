package config

import (
	"os"
	"path/filepath"

	"github.com/goccy/go-yaml"

	"github.com/partsync/partsync/pkg/errors"
)

// SupplierSettings holds one supplier's credentials and overrides from
// suppliers.yaml. Credentials may also arrive via environment variables;
// the adapter decides which fields it needs.
type SupplierSettings struct {
	Enabled      *bool             `yaml:"enabled,omitempty"`
	APIKey       string            `yaml:"api_key,omitempty"`
	ClientKey    string            `yaml:"client_key,omitempty"`
	ClientSecret string            `yaml:"client_secret,omitempty"`
	Currency     string            `yaml:"currency,omitempty"` // overrides Config.Currency
	BaseURL      string            `yaml:"base_url,omitempty"`
	Extra        map[string]string `yaml:"extra,omitempty"`
}

// IsEnabled defaults to true when the flag is omitted.
func (s SupplierSettings) IsEnabled() bool {
	return s.Enabled == nil || *s.Enabled
}

// Suppliers maps supplier id to its settings, preserving the file order of
// ids in Order. File order is the default query and priority order.
type Suppliers struct {
	Settings map[string]SupplierSettings
	Order    []string
}

// LoadSuppliers reads suppliers.yaml from dir. A missing file yields an
// empty set so the caller can fall back to built-in defaults.
func LoadSuppliers(dir string) (*Suppliers, error) {
	path := filepath.Join(dir, "suppliers.yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Suppliers{Settings: map[string]SupplierSettings{}}, nil
		}
		return nil, &errors.ConfigError{Component: "suppliers.yaml", Message: "cannot read", Err: err}
	}

	var raw yaml.MapSlice
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, errors.WrapParse("yaml", path, err)
	}

	out := &Suppliers{Settings: make(map[string]SupplierSettings, len(raw))}
	for _, item := range raw {
		id, ok := item.Key.(string)
		if !ok {
			continue
		}
		var settings SupplierSettings
		if item.Value != nil {
			node, err := yaml.Marshal(item.Value)
			if err != nil {
				return nil, errors.WrapParse("yaml", path, err)
			}
			if err := yaml.Unmarshal(node, &settings); err != nil {
				return nil, errors.WrapParse("yaml", path, err)
			}
		}
		out.Settings[id] = settings
		out.Order = append(out.Order, id)
	}
	return out, nil
}

// Get returns the settings for a supplier id, zero value if absent.
func (s *Suppliers) Get(id string) SupplierSettings {
	return s.Settings[id]
}

// CurrencyFor resolves the supplier's currency override against the
// global currency.
func (s *Suppliers) CurrencyFor(id, global string) string {
	if settings, ok := s.Settings[id]; ok && settings.Currency != "" {
		return settings.Currency
	}
	return global
}
