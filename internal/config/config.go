// Package config holds the configuration of a scrape run and its defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"carparams/internal/notify"
	"carparams/internal/output"
	"carparams/internal/scrapers/dongchedi"
	"carparams/lib/configutil"
)

// DefaultPath is the configuration file read from the working directory.
const DefaultPath = "config.json5"

type OutputConfig struct {
	// Mode is "archive" (default) or "replace".
	Mode string `json:"mode"`
	// XLSX is the path of an optional workbook export.
	XLSX string `json:"xlsx"`
}

type HTTPConfig struct {
	URLTemplate      string              `json:"url_template"`
	Timeout          configutil.Duration `json:"timeout"`
	UserAgent        string              `json:"user_agent"`
	AcceptLanguage   string              `json:"accept_language"`
	CloudflareBypass bool                `json:"cloudflare_bypass"`
	// DumpDir receives a transcript of every request when set.
	DumpDir string `json:"dump_dir"`
}

type RetryConfig struct {
	Attempts    int     `json:"attempts"`
	BackoffBase float64 `json:"backoff_base"`
}

type ScrapeConfig struct {
	Concurrency int    `json:"concurrency"`
	Marker      string `json:"marker"`
	// Selectors overrides single selectors of dongchedi.DefaultSelectors.
	Selectors dongchedi.Selectors `json:"selectors"`
}

type CacheConfig struct {
	// File is the sqlite database of the page cache and run history, the
	// cache is disabled when empty.
	File string              `json:"file"`
	TTL  configutil.Duration `json:"ttl"`
}

type NotifyConfig struct {
	SMTP notify.SMTPConfig `json:"smtp"`
}

type Config struct {
	Manifest  string       `json:"manifest"`
	OutputDir string       `json:"output_dir"`
	Output    OutputConfig `json:"output"`
	HTTP      HTTPConfig   `json:"http"`
	Retry     RetryConfig  `json:"retry"`
	Scrape    ScrapeConfig `json:"scrape"`
	Cache     CacheConfig  `json:"cache"`
	Notify    NotifyConfig `json:"notify"`
}

func Default() Config {
	return Config{
		Manifest:  "car_rank_total.csv",
		OutputDir: "car_data",
		Output: OutputConfig{
			Mode: string(output.ModeArchive),
		},
		HTTP: HTTPConfig{
			URLTemplate:    dongchedi.DefaultURLTemplate,
			Timeout:        configutil.Duration(10 * time.Second),
			UserAgent:      dongchedi.DefaultUserAgent,
			AcceptLanguage: dongchedi.DefaultAcceptLanguage,
		},
		Retry: RetryConfig{
			Attempts:    3,
			BackoffBase: 0.5,
		},
		Scrape: ScrapeConfig{
			Concurrency: 1,
			Marker:      dongchedi.DefaultMarker,
		},
		Cache: CacheConfig{
			TTL: configutil.Duration(24 * time.Hour),
		},
	}
}

// Load reads `path` (and its local override) over the defaults, a missing
// file leaves the defaults untouched.
func Load(path string) (Config, error) {
	cfg, err := configutil.ReadConfigOver(path, Default())
	if errors.Is(err, os.ErrNotExist) {
		cfg = Default()
	} else if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	err = cfg.Validate()
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Selectors returns the default selectors with the configured overrides applied.
func (c Config) Selectors() (dongchedi.Selectors, error) {
	return dongchedi.DefaultSelectors().WithOverrides(c.Scrape.Selectors)
}

func (c Config) OutputMode() output.Mode {
	mode, err := output.ParseMode(c.Output.Mode)
	if err != nil {
		return output.ModeArchive
	}
	return mode
}

func (c Config) Validate() error {
	if c.Manifest == "" {
		return fmt.Errorf("manifest must be set")
	}
	if c.OutputDir == "" {
		return fmt.Errorf("output_dir must be set")
	}
	if _, err := output.ParseMode(c.Output.Mode); err != nil {
		return err
	}
	if c.Retry.Attempts < 1 {
		return fmt.Errorf("retry.attempts must be at least 1, got %d", c.Retry.Attempts)
	}
	if c.Retry.BackoffBase < 0 {
		return fmt.Errorf("retry.backoff_base must not be negative, got %v", c.Retry.BackoffBase)
	}
	if c.Scrape.Concurrency < 1 {
		return fmt.Errorf("scrape.concurrency must be at least 1, got %d", c.Scrape.Concurrency)
	}
	if c.HTTP.Timeout.Std() <= 0 {
		return fmt.Errorf("http.timeout must be positive")
	}
	selectors, err := c.Selectors()
	if err != nil {
		return err
	}
	return selectors.Validate()
}
