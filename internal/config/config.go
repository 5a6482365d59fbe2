package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	MergeCountsReplace    = "replace"
	MergeCountsAccumulate = "accumulate"
)

// Config holds the application configuration loaded from files and environment variables.
type Config struct {
	AppName        string `mapstructure:"app_name"`
	Env            string `mapstructure:"app_env"`
	LogLevel       string `mapstructure:"log_level"`
	HTTPAddr       string `mapstructure:"http_addr"`
	TenantsFile    string `mapstructure:"tenants_file"`
	PublishersFile string `mapstructure:"publishers_file"`

	StorageType            string        `mapstructure:"storage_type"`
	BBoltPath              string        `mapstructure:"bbolt_path"`
	ScrapeDedupeTTLSeconds int64         `mapstructure:"scrape_dedupe_ttl_seconds"`
	StorageCleanupSeconds  int64         `mapstructure:"storage_cleanup_interval_seconds"`
	ScrapeDedupeTTL        time.Duration `mapstructure:"-"`
	StorageCleanupInterval time.Duration `mapstructure:"-"`

	RedisEnabled bool   `mapstructure:"redis_enabled"`
	RedisURL     string `mapstructure:"redis_url"`

	QueueType          string        `mapstructure:"queue_type"`
	ScrapeStream       string        `mapstructure:"scrape_stream"`
	ScrapeGroup        string        `mapstructure:"scrape_group"`
	ScrapeConsumer     string        `mapstructure:"scrape_consumer"`
	ScrapeBatchSize    int64         `mapstructure:"scrape_batch_size"`
	ScrapeBlockMs      int64         `mapstructure:"scrape_block_ms"`
	ScrapeBlock        time.Duration `mapstructure:"-"`
	ScrapeRetryIdleMs  int64         `mapstructure:"scrape_retry_idle_ms"`
	ScrapeRetryIdle    time.Duration `mapstructure:"-"`
	ScrapeMaxDeliver   int64         `mapstructure:"scrape_max_deliveries"`
	ScrapeDeadLetter   string        `mapstructure:"scrape_dead_letter_stream"`
	ScrapeTimeoutSecs  int64         `mapstructure:"scrape_timeout_seconds"`
	ScrapeTimeout      time.Duration `mapstructure:"-"`
	ScrapeUserAgent    string        `mapstructure:"scrape_user_agent"`
	MergeCountsMode    string        `mapstructure:"merge_counts_mode"`
	ShutdownTimeoutSec int64         `mapstructure:"shutdown_timeout_seconds"`
	ShutdownTimeout    time.Duration `mapstructure:"-"`
}

// Redacted returns a copy of cfg that is safe to log. The password of
// RedisURL is masked; an unparseable RedisURL is hidden entirely.
func (cfg Config) Redacted() Config {
	if cfg.RedisURL != "" {
		u, err := url.Parse(cfg.RedisURL)
		if err != nil {
			cfg.RedisURL = "[redacted]"
		} else {
			cfg.RedisURL = u.Redacted()
		}
	}
	return cfg
}

// Load reads configuration from environment variables and config files.
func Load() (*Config, error) {
	_ = godotenv.Load("configs/.env")

	v := viper.New()

	v.SetDefault("app_name", "samvad-story-service")
	v.SetDefault("app_env", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("http_addr", ":8080")
	v.SetDefault("tenants_file", "./configs/tenants.yaml")
	v.SetDefault("publishers_file", "")
	v.SetDefault("storage_type", "bbolt")
	v.SetDefault("bbolt_path", "./data/stories.db")
	v.SetDefault("scrape_dedupe_ttl_seconds", int64((time.Hour)/time.Second))
	v.SetDefault("storage_cleanup_interval_seconds", int64((12*time.Hour)/time.Second))
	v.SetDefault("redis_enabled", false)
	v.SetDefault("redis_url", "redis://localhost:6379/0")
	v.SetDefault("queue_type", "memory")
	v.SetDefault("scrape_stream", "stories:scrape")
	v.SetDefault("scrape_group", "story-scrapers")
	v.SetDefault("scrape_consumer", "")
	v.SetDefault("scrape_batch_size", 10)
	v.SetDefault("scrape_block_ms", 5000)
	v.SetDefault("scrape_retry_idle_ms", 30000)
	v.SetDefault("scrape_max_deliveries", 5)
	v.SetDefault("scrape_dead_letter_stream", "stories:scrape:dead")
	v.SetDefault("scrape_timeout_seconds", 15)
	v.SetDefault("scrape_user_agent", "samvad-story-scraper/1.0")
	v.SetDefault("merge_counts_mode", MergeCountsReplace)
	v.SetDefault("shutdown_timeout_seconds", 10)

	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (cfg *Config) normalize() error {
	if cfg.ScrapeDedupeTTLSeconds <= 0 {
		return fmt.Errorf("invalid scrape_dedupe_ttl_seconds (must be positive seconds)")
	}
	if cfg.StorageCleanupSeconds <= 0 {
		return fmt.Errorf("invalid storage_cleanup_interval_seconds (must be positive seconds)")
	}
	if cfg.ScrapeTimeoutSecs <= 0 {
		return fmt.Errorf("invalid scrape_timeout_seconds (must be positive seconds)")
	}
	if cfg.ScrapeBlockMs <= 0 {
		return fmt.Errorf("invalid scrape_block_ms (must be positive milliseconds)")
	}
	if cfg.ScrapeRetryIdleMs <= 0 {
		return fmt.Errorf("invalid scrape_retry_idle_ms (must be positive milliseconds)")
	}
	if cfg.ScrapeMaxDeliver <= 0 {
		return fmt.Errorf("invalid scrape_max_deliveries (must be positive)")
	}
	if cfg.ScrapeBatchSize <= 0 {
		return fmt.Errorf("invalid scrape_batch_size (must be positive)")
	}
	if cfg.ShutdownTimeoutSec <= 0 {
		return fmt.Errorf("invalid shutdown_timeout_seconds (must be positive seconds)")
	}

	cfg.MergeCountsMode = strings.ToLower(strings.TrimSpace(cfg.MergeCountsMode))
	switch cfg.MergeCountsMode {
	case MergeCountsReplace, MergeCountsAccumulate:
	default:
		return fmt.Errorf("invalid merge_counts_mode %q (expected %s or %s)",
			cfg.MergeCountsMode, MergeCountsReplace, MergeCountsAccumulate)
	}

	cfg.QueueType = strings.ToLower(strings.TrimSpace(cfg.QueueType))
	if cfg.QueueType == "redis" && !cfg.RedisEnabled {
		return fmt.Errorf("queue_type redis requires redis_enabled")
	}

	cfg.ScrapeDedupeTTL = time.Duration(cfg.ScrapeDedupeTTLSeconds) * time.Second
	cfg.StorageCleanupInterval = time.Duration(cfg.StorageCleanupSeconds) * time.Second
	cfg.ScrapeTimeout = time.Duration(cfg.ScrapeTimeoutSecs) * time.Second
	cfg.ScrapeBlock = time.Duration(cfg.ScrapeBlockMs) * time.Millisecond
	cfg.ScrapeRetryIdle = time.Duration(cfg.ScrapeRetryIdleMs) * time.Millisecond
	cfg.ShutdownTimeout = time.Duration(cfg.ShutdownTimeoutSec) * time.Second
	return nil
}
