package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	dir := t.TempDir()

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Analysis.Window != 168*time.Hour {
		t.Errorf("analysis window = %v, want 168h", cfg.Analysis.Window)
	}
	if cfg.Analysis.MinRecords != 5 {
		t.Errorf("min records = %d, want 5", cfg.Analysis.MinRecords)
	}
	if cfg.Dashboard.ListenAddr != ":8080" {
		t.Errorf("listen addr = %s", cfg.Dashboard.ListenAddr)
	}
	if cfg.Dashboard.CacheTTL != 15*time.Minute {
		t.Errorf("cache ttl = %v", cfg.Dashboard.CacheTTL)
	}
	if !cfg.Alerts.PriceMove.Enabled || cfg.Alerts.PriceMove.Threshold != 15 {
		t.Errorf("price move rule = %+v", cfg.Alerts.PriceMove)
	}
	if cfg.Alerts.QualityFloor != 3.5 {
		t.Errorf("quality floor = %v", cfg.Alerts.QualityFloor)
	}
	if cfg.Alerts.VerificationFloor != 60 {
		t.Errorf("verification floor = %v", cfg.Alerts.VerificationFloor)
	}
	if cfg.Notifications.Enabled {
		t.Error("notifications should default to disabled")
	}

	// A missing config file leaves a commented template behind.
	if _, err := os.Stat(filepath.Join(dir, "config.toml")); err != nil {
		t.Errorf("template config not written: %v", err)
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	contents := `
[database]
path = "/tmp/test-intel.db"

[analysis]
window = "24h"
min_records = 20

[[scraping.sources]]
id = "alibaba-1"
name = "Alibaba Electronics"
kind = "alibaba"
enabled = true
scrape_interval = "6h"
max_items = 50
`
	if err := os.WriteFile(filepath.Join(dir, "config.toml"), []byte(contents), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Database.Path != "/tmp/test-intel.db" {
		t.Errorf("database path = %s", cfg.Database.Path)
	}
	if cfg.Analysis.Window != 24*time.Hour {
		t.Errorf("window = %v, want 24h", cfg.Analysis.Window)
	}
	if cfg.Analysis.MinRecords != 20 {
		t.Errorf("min records = %d, want 20", cfg.Analysis.MinRecords)
	}

	sources := cfg.Sources()
	if len(sources) != 1 {
		t.Fatalf("sources = %d, want 1", len(sources))
	}
	src := sources[0]
	if src.ID != "alibaba-1" || src.Kind != "alibaba" || !src.Enabled {
		t.Errorf("source = %+v", src)
	}
	if src.ScrapeInterval != 6*time.Hour {
		t.Errorf("scrape interval = %v", src.ScrapeInterval)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("MARKET_INTEL_DB", "/tmp/override.db")
	t.Setenv("MARKET_INTEL_LISTEN", ":9090")
	t.Setenv("MARKET_INTEL_LOG_LEVEL", "debug")

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Database.Path != "/tmp/override.db" {
		t.Errorf("database path = %s", cfg.Database.Path)
	}
	if cfg.Dashboard.ListenAddr != ":9090" {
		t.Errorf("listen addr = %s", cfg.Dashboard.ListenAddr)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("log level = %s", cfg.Logging.Level)
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := &Config{}
		cfg.Database.Path = "/tmp/x.db"
		cfg.Scraping.DegradedThreshold = 3
		cfg.Analysis.MinRecords = 5
		cfg.Alerts.QualityFloor = 3.5
		cfg.Alerts.VerificationFloor = 60
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid config", func(c *Config) {}, false},
		{"empty database path", func(c *Config) { c.Database.Path = "" }, true},
		{"negative retries", func(c *Config) { c.Scraping.MaxRetries = -1 }, true},
		{"zero min records", func(c *Config) { c.Analysis.MinRecords = 0 }, true},
		{"quality floor out of range", func(c *Config) { c.Alerts.QualityFloor = 6 }, true},
		{"verification floor out of range", func(c *Config) { c.Alerts.VerificationFloor = 120 }, true},
		{"empty source id", func(c *Config) {
			c.Scraping.Sources = []SourceConfig{{ID: "", Kind: "alibaba"}}
		}, true},
		{"unknown source kind", func(c *Config) {
			c.Scraping.Sources = []SourceConfig{{ID: "x", Kind: "amazon"}}
		}, true},
		{"duplicate source id", func(c *Config) {
			c.Scraping.Sources = []SourceConfig{
				{ID: "x", Kind: "alibaba"},
				{ID: "x", Kind: "etsy"},
			}
		}, true},
		{"known kinds accepted", func(c *Config) {
			c.Scraping.Sources = []SourceConfig{
				{ID: "a", Kind: "alibaba"},
				{ID: "b", Kind: "globaltrade"},
				{ID: "c", Kind: "etsy"},
			}
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSourcesDefaultInterval(t *testing.T) {
	cfg := &Config{}
	cfg.Scraping.Sources = []SourceConfig{
		{ID: "a", Kind: "alibaba", ScrapeInterval: 0},
		{ID: "b", Kind: "etsy", ScrapeInterval: time.Hour},
	}

	sources := cfg.Sources()
	if sources[0].ScrapeInterval != 6*time.Hour {
		t.Errorf("zero interval defaulted to %v, want 6h", sources[0].ScrapeInterval)
	}
	if sources[1].ScrapeInterval != time.Hour {
		t.Errorf("explicit interval = %v, want 1h", sources[1].ScrapeInterval)
	}
}
