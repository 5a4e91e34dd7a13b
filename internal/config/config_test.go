package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, int64(2000), cfg.BasePriceRegular)
	assert.Equal(t, int64(3000), cfg.BasePriceMagSafe)
	assert.Equal(t, int64(599), cfg.DeliveryFee)
	assert.InDelta(t, 0.0825, cfg.TaxRate, 1e-9)
	assert.Equal(t, 24*time.Hour, cfg.SessionMaxAge)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default().Port, cfg.Port)
}

func TestLoadYAMLOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapcase.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
port: 9999
base_price_magsafe: 3500
tax_rate: 0.10
session_max_age: 1h
api_base_url: http://orders.internal:8080
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9999, cfg.Port)
	assert.Equal(t, int64(3500), cfg.BasePriceMagSafe)
	assert.InDelta(t, 0.10, cfg.TaxRate, 1e-9)
	assert.Equal(t, time.Hour, cfg.SessionMaxAge)
	assert.Equal(t, "http://orders.internal:8080", cfg.APIBaseURL)

	// Untouched keys keep their defaults.
	assert.Equal(t, int64(2000), cfg.BasePriceRegular)
}

func TestEnvOverridesBeatYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapcase.yaml")
	require.NoError(t, os.WriteFile(path, []byte("delivery_fee: 100\n"), 0o644))

	t.Setenv("SNAPCASE_DELIVERY_FEE", "799")
	t.Setenv("SNAPCASE_DATA_DIR", "/var/lib/snapcase")
	t.Setenv("SNAPCASE_VERBOSE", "true")
	t.Setenv("SNAPCASE_SESSION_MAX_AGE", "30m")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, int64(799), cfg.DeliveryFee)
	assert.Equal(t, "/var/lib/snapcase", cfg.DataDir)
	assert.True(t, cfg.Verbose)
	assert.Equal(t, 30*time.Minute, cfg.SessionMaxAge)
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: [not an int\n"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero base price", func(c *Config) { c.BasePriceRegular = 0 }},
		{"negative delivery fee", func(c *Config) { c.DeliveryFee = -1 }},
		{"tax rate above one", func(c *Config) { c.TaxRate = 1.5 }},
		{"negative tax rate", func(c *Config) { c.TaxRate = -0.01 }},
		{"zero session max age", func(c *Config) { c.SessionMaxAge = 0 }},
		{"zero image ceiling", func(c *Config) { c.MaxImageBytes = 0 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
