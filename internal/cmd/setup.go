package cmd

import (
	"os"
	"strings"

	"github.com/partsync/partsync/internal/suppliers/future"
	"github.com/partsync/partsync/internal/suppliers/scrape"
	"github.com/partsync/partsync/internal/suppliers/ti"
	"github.com/partsync/partsync/pkg/config"
	"github.com/partsync/partsync/pkg/errors"
	"github.com/partsync/partsync/pkg/logging"
	"github.com/partsync/partsync/pkg/suppliers"
	"github.com/partsync/partsync/pkg/taxonomy"
)

// environment carries everything a command needs, wired once per
// invocation from the config directory.
type environment struct {
	cfg      *config.Config
	sup      *config.Suppliers
	registry *suppliers.Registry
	taxonomy *taxonomy.Taxonomy
}

// loadEnvironment reads the config directory and builds the adapter
// registry in suppliers.yaml file order.
func loadEnvironment() (*environment, error) {
	cfg, err := config.Load(configDir)
	if err != nil {
		return nil, err
	}
	sup, err := config.LoadSuppliers(configDir)
	if err != nil {
		return nil, err
	}
	tax, err := taxonomy.Load(configDir, cfg.DefaultCategory)
	if err != nil {
		return nil, err
	}

	registry := suppliers.NewRegistry()
	for _, id := range sup.Order {
		settings := sup.Get(id)
		if !settings.IsEnabled() {
			continue
		}
		adapter, err := buildAdapter(id, settings, sup, cfg)
		if err != nil {
			// A misconfigured supplier should not take down the batch;
			// skip it loudly and import with the rest.
			logging.Default().Warn().Err(err).Str("supplier", id).Msg("skipping supplier")
			continue
		}
		if adapter == nil {
			continue
		}
		if err := registry.Register(adapter); err != nil {
			return nil, err
		}
	}

	return &environment{cfg: cfg, sup: sup, registry: registry, taxonomy: tax}, nil
}

// buildAdapter constructs the adapter for one supplier id. Credentials
// come from suppliers.yaml with PARTSYNC_<ID>_* environment variables
// as the override, so keys can stay out of the config file.
func buildAdapter(id string, settings config.SupplierSettings, sup *config.Suppliers, cfg *config.Config) (suppliers.Supplier, error) {
	switch id {
	case ti.ID:
		return ti.New(ti.Config{
			ClientKey:    envOr("PARTSYNC_TI_CLIENT_KEY", settings.ClientKey),
			ClientSecret: envOr("PARTSYNC_TI_CLIENT_SECRET", settings.ClientSecret),
			Currency:     sup.CurrencyFor(id, cfg.Currency),
			BaseURL:      settings.BaseURL,
		})
	case future.ID:
		return future.New(future.Config{
			APIKey:   envOr("PARTSYNC_FUTURE_API_KEY", settings.APIKey),
			Language: cfg.Language,
			BaseURL:  settings.BaseURL,
		})
	default:
		if settings.Extra["search_url"] == "" {
			return nil, &errors.ConfigError{
				Component: "suppliers.yaml",
				Message:   "unknown supplier " + id + " without a search_url",
			}
		}
		if !cfg.Scraping {
			logging.Default().Debug().Str("supplier", id).Msg("scraping disabled, skipping")
			return nil, nil
		}
		return scrape.New(scrape.Config{
			ID:              id,
			Name:            settings.Extra["name"],
			SearchURL:       settings.Extra["search_url"],
			Currency:        sup.CurrencyFor(id, cfg.Currency),
			Language:        cfg.Language,
			FallbackDomains: splitList(settings.Extra["fallback_domains"]),
			Selectors: scrape.Selectors{
				Result:       settings.Extra["result_selector"],
				MPN:          settings.Extra["mpn_selector"],
				SKU:          settings.Extra["sku_selector"],
				Manufacturer: settings.Extra["manufacturer_selector"],
				Description:  settings.Extra["description_selector"],
				Datasheet:    settings.Extra["datasheet_selector"],
				Image:        settings.Extra["image_selector"],
				Stock:        settings.Extra["stock_selector"],
				Category:     settings.Extra["category_selector"],
				AttrRow:      settings.Extra["attr_row_selector"],
				AttrName:     settings.Extra["attr_name_selector"],
				AttrValue:    settings.Extra["attr_value_selector"],
			},
		})
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	fields := strings.Split(s, ",")
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}
