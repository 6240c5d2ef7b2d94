// Package config loads and carries the explicit configuration value that
// is threaded through the import pipeline. Nothing in the pipeline reads
// ambient state; a run is reproducible from its Config alone.
package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/partsync/partsync/pkg/errors"
)

// Defaults applied when config.yaml omits a value.
const (
	DefaultMaxResults     = 10
	DefaultRequestTimeout = 15 * time.Second
	DefaultRetryBackoff   = 3 * time.Second
	DefaultRetryLimit     = 2
	DefaultWorkers        = 4
	DefaultCurrency       = "USD"
	DefaultLanguage       = "en"
)

// Config is the run configuration for one import batch.
type Config struct {
	// Currency is the ISO 4217 code all prices are converted to.
	Currency string `mapstructure:"currency"`
	// Language is the ISO 639 code for supplier descriptions and page
	// content, where a supplier localizes them.
	Language string `mapstructure:"language"`

	// MaxResults caps how many candidates one supplier may contribute.
	MaxResults int `mapstructure:"max_results"`
	// RequestTimeout bounds each supplier HTTP request.
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	// RetryLimit is the number of retries for transient adapter errors.
	RetryLimit int `mapstructure:"retry_limit"`
	// RetryBackoff is the initial backoff between retries; it doubles on
	// each attempt.
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
	// Workers bounds how many identifiers are imported concurrently.
	Workers int `mapstructure:"workers"`

	// ForceOverwrite allows supplier data to replace non-empty catalog
	// fields. Off by default: user edits win.
	ForceOverwrite bool `mapstructure:"force_overwrite"`
	// DefaultCategory is the fallback category path for parts whose
	// supplier hints match nothing in the taxonomy.
	DefaultCategory []string `mapstructure:"default_category"`
	// SupplierPriority orders suppliers for conflict resolution. Empty
	// means the order suppliers were configured.
	SupplierPriority []string `mapstructure:"supplier_priority"`
	// Scraping enables adapters that fall back to web scraping.
	Scraping bool `mapstructure:"scraping"`
}

// Default returns a Config with all defaults applied.
func Default() *Config {
	return &Config{
		Currency:        DefaultCurrency,
		Language:        DefaultLanguage,
		MaxResults:      DefaultMaxResults,
		RequestTimeout:  DefaultRequestTimeout,
		RetryLimit:      DefaultRetryLimit,
		RetryBackoff:    DefaultRetryBackoff,
		Workers:         DefaultWorkers,
		DefaultCategory: []string{"Uncategorized"},
	}
}

// Load reads config.yaml from dir, overlaying PARTSYNC_* environment
// variables. A missing file yields the defaults, not an error.
func Load(dir string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(dir)

	v.SetEnvPrefix("PARTSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	defaults := Default()
	v.SetDefault("currency", defaults.Currency)
	v.SetDefault("language", defaults.Language)
	v.SetDefault("max_results", defaults.MaxResults)
	v.SetDefault("request_timeout", defaults.RequestTimeout)
	v.SetDefault("retry_limit", defaults.RetryLimit)
	v.SetDefault("retry_backoff", defaults.RetryBackoff)
	v.SetDefault("workers", defaults.Workers)
	v.SetDefault("default_category", defaults.DefaultCategory)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, &errors.ConfigError{Component: "config.yaml", Message: "cannot read", Err: err}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, &errors.ConfigError{Component: "config.yaml", Message: "cannot decode", Err: err}
	}
	return cfg, cfg.Validate()
}

// Validate rejects impossible settings.
func (c *Config) Validate() error {
	if c.Workers < 1 {
		return &errors.ConfigError{Component: "workers", Message: "must be at least 1"}
	}
	if c.RetryLimit < 0 {
		return &errors.ConfigError{Component: "retry_limit", Message: "must not be negative"}
	}
	if len(c.Currency) != 3 {
		return &errors.ConfigError{Component: "currency", Message: "must be an ISO 4217 code"}
	}
	if n := len(c.Language); n < 2 || n > 3 {
		return &errors.ConfigError{Component: "language", Message: "must be an ISO 639 code"}
	}
	return nil
}

// PriorityOf returns the conflict-resolution rank of a supplier, lower is
// stronger. Suppliers absent from SupplierPriority rank after listed ones,
// in the order given by fallback (the configured query order).
func (c *Config) PriorityOf(supplierID string, fallback []string) int {
	for i, id := range c.SupplierPriority {
		if id == supplierID {
			return i
		}
	}
	for i, id := range fallback {
		if id == supplierID {
			return len(c.SupplierPriority) + i
		}
	}
	return len(c.SupplierPriority) + len(fallback)
}
