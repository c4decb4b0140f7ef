package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	Database  DatabaseConfig  `mapstructure:"database"`
	Chat      ChatConfig      `mapstructure:"chat"`
	Extract   ExtractConfig   `mapstructure:"extract"`
	Geo       GeoConfig       `mapstructure:"geo"`
	Media     MediaConfig     `mapstructure:"media"`
	Feeds     FeedsConfig     `mapstructure:"feeds"`
	Dedup     DedupConfig     `mapstructure:"dedup"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Driver string `mapstructure:"driver"` // sqlite
	DSN    string `mapstructure:"dsn"`    // Connection string
}

// ChatConfig holds messaging gateway settings
type ChatConfig struct {
	BaseURL    string `mapstructure:"base_url"`
	Token      string `mapstructure:"token"`
	BatchLimit int    `mapstructure:"batch_limit"` // Messages per fetch page
}

// ExtractConfig holds extraction model settings
type ExtractConfig struct {
	APIKey    string `mapstructure:"api_key"`
	Model     string `mapstructure:"model"`
	MaxTokens int    `mapstructure:"max_tokens"`
}

// GeoConfig holds geocoder settings
type GeoConfig struct {
	BaseURL   string `mapstructure:"base_url"`
	UserAgent string `mapstructure:"user_agent"`
}

// MediaConfig holds image object storage settings
type MediaConfig struct {
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
}

// FeedsConfig holds website feed settings
type FeedsConfig struct {
	Enabled bool        `mapstructure:"enabled"`
	Feeds   []FeedEntry `mapstructure:"feeds"`
}

// FeedEntry represents a single website feed
type FeedEntry struct {
	Name    string `mapstructure:"name"`
	URL     string `mapstructure:"url"`
	Website string `mapstructure:"website"` // Source identifier, defaults to name
}

// DedupConfig holds duplicate detection settings
type DedupConfig struct {
	ImageThreshold int     `mapstructure:"image_threshold"` // Max Hamming distance between fingerprints
	TextThreshold  float64 `mapstructure:"text_threshold"`  // Min description similarity
	// Website source identifiers ordered least to most trusted; a later
	// entry survives a merge against an earlier one
	WebsitePriority []string `mapstructure:"website_priority"`
}

// PipelineConfig holds ingestion pipeline settings
type PipelineConfig struct {
	Workers int `mapstructure:"workers"` // Concurrently processed sources
}

// SchedulerConfig holds scheduler settings
type SchedulerConfig struct {
	IngestCron  string `mapstructure:"ingest_cron"`
	FeedsCron   string `mapstructure:"feeds_cron"`
	DedupCron   string `mapstructure:"dedup_cron"`
	CleanupCron string `mapstructure:"cleanup_cron"`
	HealthAddr  string `mapstructure:"health_addr"`
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json or console
	Output string `mapstructure:"output"` // stdout or file path
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	// Load .env file if present (ignore errors if not found)
	_ = godotenv.Load()
	_ = godotenv.Load(".env.local")

	v := viper.New()

	setDefaults(v)

	// Config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")

		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(home, ".event-harvester"))
		}
	}

	// Environment variables
	v.SetEnvPrefix("HARVESTER")
	v.AutomaticEnv()

	// Explicit bindings for nested keys (Viper doesn't auto-bind underscored nested keys)
	v.BindEnv("extract.api_key", "HARVESTER_EXTRACT_API_KEY")
	v.BindEnv("chat.base_url", "HARVESTER_CHAT_BASE_URL")
	v.BindEnv("chat.token", "HARVESTER_CHAT_TOKEN")
	v.BindEnv("media.base_url", "HARVESTER_MEDIA_BASE_URL")
	v.BindEnv("media.api_key", "HARVESTER_MEDIA_API_KEY")
	v.BindEnv("database.driver", "HARVESTER_DATABASE_DRIVER")
	v.BindEnv("database.dsn", "HARVESTER_DATABASE_DSN")
	v.BindEnv("geo.base_url", "HARVESTER_GEO_BASE_URL")

	// Read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Database defaults
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "./data/harvester.db")

	// Chat gateway defaults
	v.SetDefault("chat.batch_limit", 100)

	// Extraction defaults
	v.SetDefault("extract.model", "claude-sonnet-4-20250514")
	v.SetDefault("extract.max_tokens", 2048)

	// Geocoder defaults
	v.SetDefault("geo.base_url", "https://nominatim.openstreetmap.org")
	v.SetDefault("geo.user_agent", "event-harvester/1.0")

	// Feeds defaults
	v.SetDefault("feeds.enabled", false)

	// Dedup defaults
	v.SetDefault("dedup.image_threshold", 5)
	v.SetDefault("dedup.text_threshold", 0.5)
	v.SetDefault("dedup.website_priority", []string{})

	// Pipeline defaults
	v.SetDefault("pipeline.workers", 3)

	// Scheduler defaults
	v.SetDefault("scheduler.ingest_cron", "0 */2 * * *")  // Every 2 hours
	v.SetDefault("scheduler.feeds_cron", "30 */6 * * *")  // Every 6 hours, offset from ingestion
	v.SetDefault("scheduler.dedup_cron", "0 3 * * *")     // Nightly batch pass
	v.SetDefault("scheduler.cleanup_cron", "0 4 * * 0")   // Weekly image cleanup
	v.SetDefault("scheduler.health_addr", ":8090")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.output", "stdout")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Extract.APIKey == "" {
		return fmt.Errorf("extract.api_key is required")
	}
	if c.Chat.BaseURL == "" {
		return fmt.Errorf("chat.base_url is required")
	}
	if c.Chat.Token == "" {
		return fmt.Errorf("chat.token is required")
	}
	if c.Media.BaseURL == "" {
		return fmt.Errorf("media.base_url is required")
	}
	if c.Dedup.TextThreshold <= 0 || c.Dedup.TextThreshold > 1 {
		return fmt.Errorf("dedup.text_threshold must be in (0, 1]")
	}
	return nil
}
