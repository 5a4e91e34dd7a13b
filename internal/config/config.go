// Package config loads the snapcase service configuration from an optional
// YAML file with environment-variable overrides. Price constants live here
// so every price-displaying surface and the commit path derive from the
// same values.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the full service configuration.
type Config struct {
	Port    int  `yaml:"port"`
	Verbose bool `yaml:"verbose"`

	// Pricing constants, in cents except for TaxRate.
	BasePriceRegular int64   `yaml:"base_price_regular"`
	BasePriceMagSafe int64   `yaml:"base_price_magsafe"`
	DeliveryFee      int64   `yaml:"delivery_fee"`
	TaxRate          float64 `yaml:"tax_rate"`

	// Upstream endpoints.
	APIBaseURL     string `yaml:"api_base_url"`     // order API + location catalog
	PaymentBaseURL string `yaml:"payment_base_url"` // checkout-session creation
	StorageBaseURL string `yaml:"storage_base_url"` // object storage uploads
	NotifyURL      string `yaml:"notify_url"`       // fallback notification dispatch
	NotifySecret   string `yaml:"notify_secret"`

	// Where the browser is sent back after the external payment hop.
	ReturnBaseURL string `yaml:"return_base_url"`

	// Local durable state.
	DataDir string `yaml:"data_dir"`

	SessionMaxAge time.Duration `yaml:"session_max_age"`
	MaxImageBytes int64         `yaml:"max_image_bytes"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Port:             8480,
		BasePriceRegular: 2000, // $20.00
		BasePriceMagSafe: 3000, // $30.00
		DeliveryFee:      599,  // $5.99
		TaxRate:          0.0825,
		APIBaseURL:       "http://localhost:8481",
		PaymentBaseURL:   "http://localhost:8482",
		StorageBaseURL:   "http://localhost:8483",
		ReturnBaseURL:    "http://localhost:8480",
		DataDir:          "./data",
		SessionMaxAge:    24 * time.Hour,
		MaxImageBytes:    10 << 20,
	}
}

// Load reads configuration from the given YAML file (missing file is fine,
// defaults apply) and then applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("reading config %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overrides config fields from SNAPCASE_* environment variables.
func applyEnv(cfg *Config) {
	if v := os.Getenv("SNAPCASE_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Port = n
		}
	}
	envCents := func(key string, dst *int64) {
		if v := os.Getenv(key); v != "" {
			if n, err := strconv.ParseInt(v, 10, 64); err == nil {
				*dst = n
			}
		}
	}
	envCents("SNAPCASE_BASE_PRICE_REGULAR", &cfg.BasePriceRegular)
	envCents("SNAPCASE_BASE_PRICE_MAGSAFE", &cfg.BasePriceMagSafe)
	envCents("SNAPCASE_DELIVERY_FEE", &cfg.DeliveryFee)
	envCents("SNAPCASE_MAX_IMAGE_BYTES", &cfg.MaxImageBytes)
	if v := os.Getenv("SNAPCASE_TAX_RATE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.TaxRate = f
		}
	}
	envStr := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	envStr("SNAPCASE_API_BASE_URL", &cfg.APIBaseURL)
	envStr("SNAPCASE_PAYMENT_BASE_URL", &cfg.PaymentBaseURL)
	envStr("SNAPCASE_STORAGE_BASE_URL", &cfg.StorageBaseURL)
	envStr("SNAPCASE_NOTIFY_URL", &cfg.NotifyURL)
	envStr("SNAPCASE_NOTIFY_SECRET", &cfg.NotifySecret)
	envStr("SNAPCASE_RETURN_BASE_URL", &cfg.ReturnBaseURL)
	envStr("SNAPCASE_DATA_DIR", &cfg.DataDir)
	if v := os.Getenv("SNAPCASE_SESSION_MAX_AGE"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.SessionMaxAge = d
		}
	}
	if v := os.Getenv("SNAPCASE_VERBOSE"); v == "1" || v == "true" {
		cfg.Verbose = true
	}
}

// Validate rejects configurations that would misprice or break the flow.
func (c *Config) Validate() error {
	if c.BasePriceRegular <= 0 || c.BasePriceMagSafe <= 0 {
		return fmt.Errorf("base prices must be positive")
	}
	if c.DeliveryFee < 0 {
		return fmt.Errorf("delivery fee must not be negative")
	}
	if c.TaxRate < 0 || c.TaxRate > 1 {
		return fmt.Errorf("tax rate must be between 0 and 1")
	}
	if c.SessionMaxAge <= 0 {
		return fmt.Errorf("session max age must be positive")
	}
	if c.MaxImageBytes <= 0 {
		return fmt.Errorf("max image bytes must be positive")
	}
	return nil
}
