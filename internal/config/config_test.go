package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"DELAY_BETWEEN_REQUESTS", "BATCH_PAUSE_SECONDS", "MAX_RETRIES", "LOCAL_CSV_FILES", "CSV_URL", "DUPLICATE_KEY", "INVENTORY_MODE"} {
		t.Setenv(k, "")
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 2*time.Second, cfg.RequestDelay)
	assert.Equal(t, 4*time.Second, cfg.BatchPause)
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, DuplicateKeyHandle, cfg.DuplicateKey)
	assert.Equal(t, InventoryModeSet, cfg.InventoryMode)
	assert.Equal(t, defaultLocalFiles, cfg.LocalSourceFiles)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("DELAY_BETWEEN_REQUESTS", "0.5")
	t.Setenv("BATCH_PAUSE_SECONDS", "")
	t.Setenv("MAX_PRODUCTS_PER_BATCH", "10")
	t.Setenv("LOCAL_CSV_FILES", " a.csv, ,b.csv ")
	t.Setenv("CSV_URL", "https://vendor.example.com/feed.csv")
	t.Setenv("PROBE_WRITE", "false")
	t.Setenv("SHOPIFY_SHOP_NAME", "demo")
	t.Setenv("SHOPIFY_ACCESS_TOKEN", "shpat_x")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 500*time.Millisecond, cfg.RequestDelay)
	assert.Equal(t, time.Second, cfg.BatchPause)
	assert.Equal(t, 10, cfg.MaxBatchSize)
	assert.Equal(t, []string{"a.csv", "b.csv"}, cfg.LocalSourceFiles)
	assert.False(t, cfg.ProbeWrite)
	assert.True(t, cfg.HasShopCredentials())
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			MaxBatchSize:   5,
			SplitChunkSize: 2000,
			DuplicateKey:   DuplicateKeyHandle,
			InventoryMode:  InventoryModeSet,
		}
	}
	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"zero batch", func(c *Config) { c.MaxBatchSize = 0 }},
		{"negative delay", func(c *Config) { c.RequestDelay = -time.Second }},
		{"negative retries", func(c *Config) { c.MaxRetries = -1 }},
		{"zero chunk", func(c *Config) { c.SplitChunkSize = 0 }},
		{"relative url", func(c *Config) { c.SourceURL = "feed.csv" }},
		{"ftp url", func(c *Config) { c.SourceURL = "ftp://vendor/feed.csv" }},
		{"unknown duplicate key", func(c *Config) { c.DuplicateKey = "sku" }},
		{"unknown inventory mode", func(c *Config) { c.InventoryMode = "replace" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			assert.Error(t, c.Validate())
		})
	}
}
