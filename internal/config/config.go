// Package config loads and validates application configuration from config
// files and environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Default configuration values.
const (
	defaultBatchSize       = 10
	defaultItemDelay       = 2 * time.Second
	defaultLeaseTimeout    = 15 * time.Minute
	defaultQueueRetries    = 3
	defaultFetchTimeout    = 20 * time.Second
	defaultFetchRetries    = 2
	defaultFetchRetryDelay = 2 * time.Second
	defaultMaxDepth        = 2
	defaultServerPort      = 8080
	defaultCronSpec        = "*/15 * * * *"
	defaultUserAgent       = "DarIngest/1.0 (+https://dar.mt/bot)"
)

// AppConfig holds application-level settings.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
	Debug       bool   `mapstructure:"debug"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level    string `mapstructure:"level"`
	Encoding string `mapstructure:"encoding"`
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

// URL returns the database connection string in URL form (used by migrate).
func (c DatabaseConfig) URL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode,
	)
}

// FetcherConfig holds page fetch settings.
type FetcherConfig struct {
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxRetries int           `mapstructure:"max_retries"`
	RetryDelay time.Duration `mapstructure:"retry_delay"`
	UserAgent  string        `mapstructure:"user_agent"`
}

// PipelineConfig holds batch orchestration settings.
type PipelineConfig struct {
	BatchSize    int           `mapstructure:"batch_size"`
	ItemDelay    time.Duration `mapstructure:"item_delay"`
	LeaseTimeout time.Duration `mapstructure:"lease_timeout"`
	MaxRetries   int           `mapstructure:"max_retries"`
	CronSpec     string        `mapstructure:"cron_spec"`
}

// RiskConfig holds scoring settings. ScoringEnabled is the kill switch:
// when false, scoring is skipped entirely and listings proceed without a
// hold, while fingerprinting and dedupe stay active.
type RiskConfig struct {
	ScoringEnabled bool `mapstructure:"scoring_enabled"`
}

// ElasticsearchConfig holds catalog index settings.
type ElasticsearchConfig struct {
	Addresses []string `mapstructure:"addresses"`
	Index     string   `mapstructure:"index"`
	Enabled   bool     `mapstructure:"enabled"`
}

// ServerConfig holds HTTP API settings.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// DiscoverySource configures one source index page for link discovery.
type DiscoverySource struct {
	Domain      string `mapstructure:"domain"`
	IndexURL    string `mapstructure:"index_url"`
	LinkPattern string `mapstructure:"link_pattern"`
}

// DiscoveryConfig holds discovery crawl settings.
type DiscoveryConfig struct {
	Sources  []DiscoverySource `mapstructure:"sources"`
	MaxDepth int               `mapstructure:"max_depth"`
}

// Config is the root application configuration.
type Config struct {
	App           AppConfig           `mapstructure:"app"`
	Log           LogConfig           `mapstructure:"log"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Fetcher       FetcherConfig       `mapstructure:"fetcher"`
	Pipeline      PipelineConfig      `mapstructure:"pipeline"`
	Risk          RiskConfig          `mapstructure:"risk"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Server        ServerConfig        `mapstructure:"server"`
	Discovery     DiscoveryConfig     `mapstructure:"discovery"`
}

// Load reads configuration from the given file (optional), environment
// variables prefixed with INGEST_, and built-in defaults, in that
// precedence order.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix("INGEST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		// Config file is optional; defaults and env vars still apply.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// setDefaults registers default values on the viper instance.
func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "dar-ingest")
	v.SetDefault("app.environment", "development")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "console")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.dbname", "dar_ingest")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("risk.scoring_enabled", true)
	v.SetDefault("elasticsearch.index", "listings")
	v.SetDefault("elasticsearch.enabled", false)
}

// applyDefaults fills zero-value fields that have non-zero defaults.
func (c *Config) applyDefaults() {
	if c.Fetcher.Timeout <= 0 {
		c.Fetcher.Timeout = defaultFetchTimeout
	}
	if c.Fetcher.MaxRetries <= 0 {
		c.Fetcher.MaxRetries = defaultFetchRetries
	}
	if c.Fetcher.RetryDelay <= 0 {
		c.Fetcher.RetryDelay = defaultFetchRetryDelay
	}
	if c.Fetcher.UserAgent == "" {
		c.Fetcher.UserAgent = defaultUserAgent
	}
	if c.Pipeline.BatchSize <= 0 {
		c.Pipeline.BatchSize = defaultBatchSize
	}
	if c.Pipeline.ItemDelay <= 0 {
		c.Pipeline.ItemDelay = defaultItemDelay
	}
	if c.Pipeline.LeaseTimeout <= 0 {
		c.Pipeline.LeaseTimeout = defaultLeaseTimeout
	}
	if c.Pipeline.MaxRetries <= 0 {
		c.Pipeline.MaxRetries = defaultQueueRetries
	}
	if c.Pipeline.CronSpec == "" {
		c.Pipeline.CronSpec = defaultCronSpec
	}
	if c.Server.Port <= 0 {
		c.Server.Port = defaultServerPort
	}
	if c.Discovery.MaxDepth <= 0 {
		c.Discovery.MaxDepth = defaultMaxDepth
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	switch c.App.Environment {
	case "development", "staging", "production":
	default:
		return fmt.Errorf("invalid environment: %s", c.App.Environment)
	}

	if c.Database.Host == "" || c.Database.DBName == "" {
		return errors.New("database host and dbname must be specified")
	}

	if c.Elasticsearch.Enabled && len(c.Elasticsearch.Addresses) == 0 {
		return errors.New("elasticsearch.addresses must be set when catalog indexing is enabled")
	}

	for i, src := range c.Discovery.Sources {
		if src.Domain == "" || src.IndexURL == "" {
			return fmt.Errorf("discovery source %d: domain and index_url are required", i)
		}
	}

	return nil
}
