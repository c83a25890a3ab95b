// Package config provides configuration management for the market intelligence service.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"market-intel/internal/models"
)

// Config holds all application configuration.
type Config struct {
	Database      DatabaseConfig     `mapstructure:"database"`
	Scraping      ScrapingConfig     `mapstructure:"scraping"`
	Analysis      AnalysisConfig     `mapstructure:"analysis"`
	Alerts        AlertsConfig       `mapstructure:"alerts"`
	Dashboard     DashboardConfig    `mapstructure:"dashboard"`
	Scheduler     SchedulerConfig    `mapstructure:"scheduler"`
	Notifications NotificationConfig `mapstructure:"notifications"`
	Logging       LoggingConfig      `mapstructure:"logging"`
}

// DatabaseConfig holds persistence configuration.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// SourceConfig holds one scrape source definition.
type SourceConfig struct {
	ID             string        `mapstructure:"id"`
	Name           string        `mapstructure:"name"`
	Kind           string        `mapstructure:"kind"` // alibaba, globaltrade, etsy
	BaseURL        string        `mapstructure:"base_url"`
	Enabled        bool          `mapstructure:"enabled"`
	ScrapeInterval time.Duration `mapstructure:"scrape_interval"`
	MaxItems       int           `mapstructure:"max_items"`
	RequestDelay   time.Duration `mapstructure:"request_delay"`
}

// ScrapingConfig holds scraping behavior configuration.
type ScrapingConfig struct {
	Sources           []SourceConfig `mapstructure:"sources"`
	FetchTimeout      time.Duration  `mapstructure:"fetch_timeout"`
	MaxRetries        int            `mapstructure:"max_retries"`
	DegradedThreshold int            `mapstructure:"degraded_threshold"`
}

// AnalysisConfig holds analyzer configuration.
type AnalysisConfig struct {
	Window     time.Duration `mapstructure:"window"`
	MinRecords int           `mapstructure:"min_records"`
}

// RuleConfig holds one alert rule's threshold configuration.
type RuleConfig struct {
	Enabled   bool    `mapstructure:"enabled"`
	Threshold float64 `mapstructure:"threshold"`
}

// AlertsConfig holds alert evaluation configuration.
type AlertsConfig struct {
	PriceMove        RuleConfig `mapstructure:"price_move"`        // percent move per category
	SupplyDrop       RuleConfig `mapstructure:"supply_drop"`       // percent supplier drop per country
	DemandSurge      RuleConfig `mapstructure:"demand_surge"`      // percent views increase per category
	QualityDrop      RuleConfig `mapstructure:"quality_drop"`      // absolute rating drop
	VerificationDrop RuleConfig `mapstructure:"verification_drop"` // percentage-point drop
	MarketTrend      RuleConfig `mapstructure:"market_trend"`      // view floor for trend info alerts
	SystemHealth     RuleConfig `mapstructure:"system_health"`     // consecutive-failure threshold

	QualityFloor      float64 `mapstructure:"quality_floor"`      // alert only while avg rating below this
	VerificationFloor float64 `mapstructure:"verification_floor"` // alert only while rate below this
}

// DashboardConfig holds the JSON API configuration.
type DashboardConfig struct {
	ListenAddr string        `mapstructure:"listen_addr"`
	CacheTTL   time.Duration `mapstructure:"cache_ttl"`
}

// SchedulerConfig holds background job cadence configuration.
type SchedulerConfig struct {
	AlertInterval   time.Duration `mapstructure:"alert_interval"`
	HealthInterval  time.Duration `mapstructure:"health_interval"`
	SummaryInterval time.Duration `mapstructure:"summary_interval"`
	LeaseTTL        time.Duration `mapstructure:"lease_ttl"`
	RetentionDays   int           `mapstructure:"retention_days"`
}

// NotificationConfig holds notification configuration.
type NotificationConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Level   string        `mapstructure:"level"` // all, alerts_only, errors_only
	Webhook WebhookConfig `mapstructure:"webhook"`
	Email   EmailConfig   `mapstructure:"email"`
}

// WebhookConfig holds webhook notification configuration.
type WebhookConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url"`
}

// EmailConfig holds email notification configuration.
type EmailConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	SMTPHost string `mapstructure:"smtp_host"`
	SMTPPort int    `mapstructure:"smtp_port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
	To       string `mapstructure:"to"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level   string `mapstructure:"level"`
	File    string `mapstructure:"file"`
	Console bool   `mapstructure:"console"`
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/market-intel"
	}
	return filepath.Join(home, ".config", "market-intel")
}

// Load loads configuration from the specified directory.
// If configDir is empty, uses the default config directory.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			if terr := createTemplateConfig(configDir); terr != nil {
				return nil, fmt.Errorf("writing config template: %w", terr)
			}
		} else {
			return nil, fmt.Errorf("loading config.toml: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database.path", filepath.Join(DefaultConfigDir(), "market-intel.db"))

	v.SetDefault("scraping.fetch_timeout", "30s")
	v.SetDefault("scraping.max_retries", 3)
	v.SetDefault("scraping.degraded_threshold", 3)

	v.SetDefault("analysis.window", "168h") // 7 days
	v.SetDefault("analysis.min_records", 5)

	v.SetDefault("alerts.price_move", map[string]interface{}{"enabled": true, "threshold": 15.0})
	v.SetDefault("alerts.supply_drop", map[string]interface{}{"enabled": true, "threshold": 25.0})
	v.SetDefault("alerts.demand_surge", map[string]interface{}{"enabled": true, "threshold": 200.0})
	v.SetDefault("alerts.quality_drop", map[string]interface{}{"enabled": true, "threshold": 0.3})
	v.SetDefault("alerts.verification_drop", map[string]interface{}{"enabled": true, "threshold": 5.0})
	v.SetDefault("alerts.market_trend", map[string]interface{}{"enabled": true, "threshold": 1000.0})
	v.SetDefault("alerts.system_health", map[string]interface{}{"enabled": true, "threshold": 3.0})
	v.SetDefault("alerts.quality_floor", 3.5)
	v.SetDefault("alerts.verification_floor", 60.0)

	v.SetDefault("dashboard.listen_addr", ":8080")
	v.SetDefault("dashboard.cache_ttl", "15m")

	v.SetDefault("scheduler.alert_interval", "30m")
	v.SetDefault("scheduler.health_interval", "6h")
	v.SetDefault("scheduler.summary_interval", "24h")
	v.SetDefault("scheduler.lease_ttl", "10m")
	v.SetDefault("scheduler.retention_days", 30)

	v.SetDefault("notifications.enabled", false)
	v.SetDefault("notifications.level", "all")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.console", true)
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("MARKET_INTEL_DB"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("MARKET_INTEL_LISTEN"); v != "" {
		cfg.Dashboard.ListenAddr = v
	}
	if v := os.Getenv("MARKET_INTEL_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("MARKET_INTEL_WEBHOOK_URL"); v != "" {
		cfg.Notifications.Webhook.URL = v
	}
	if v := os.Getenv("MARKET_INTEL_SMTP_PASSWORD"); v != "" {
		cfg.Notifications.Email.Password = v
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path must not be empty")
	}
	if c.Scraping.MaxRetries < 0 {
		return fmt.Errorf("scraping.max_retries must be non-negative")
	}
	if c.Scraping.DegradedThreshold < 1 {
		return fmt.Errorf("scraping.degraded_threshold must be at least 1")
	}
	if c.Analysis.MinRecords < 1 {
		return fmt.Errorf("analysis.min_records must be at least 1")
	}
	if c.Dashboard.CacheTTL < 0 {
		return fmt.Errorf("dashboard.cache_ttl must be non-negative")
	}
	if c.Alerts.QualityFloor < 0 || c.Alerts.QualityFloor > 5 {
		return fmt.Errorf("alerts.quality_floor must be between 0 and 5")
	}
	if c.Alerts.VerificationFloor < 0 || c.Alerts.VerificationFloor > 100 {
		return fmt.Errorf("alerts.verification_floor must be between 0 and 100")
	}
	seen := make(map[string]bool)
	for _, s := range c.Scraping.Sources {
		if s.ID == "" {
			return fmt.Errorf("source id must not be empty")
		}
		if seen[s.ID] {
			return fmt.Errorf("duplicate source id: %s", s.ID)
		}
		seen[s.ID] = true
		switch models.SourceKind(s.Kind) {
		case models.SourceAlibaba, models.SourceGlobalTrade, models.SourceEtsy:
		default:
			return fmt.Errorf("source %s: unknown kind %q", s.ID, s.Kind)
		}
	}
	return nil
}

// Sources converts the configured source definitions into domain models.
func (c *Config) Sources() []models.Source {
	out := make([]models.Source, 0, len(c.Scraping.Sources))
	for _, s := range c.Scraping.Sources {
		interval := s.ScrapeInterval
		if interval <= 0 {
			interval = 6 * time.Hour
		}
		out = append(out, models.Source{
			ID:             s.ID,
			Name:           s.Name,
			Kind:           models.SourceKind(s.Kind),
			BaseURL:        s.BaseURL,
			Enabled:        s.Enabled,
			ScrapeInterval: interval,
			MaxItems:       s.MaxItems,
			RequestDelay:   s.RequestDelay,
		})
	}
	return out
}
