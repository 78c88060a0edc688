package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the hedge fund agent service.
type Config struct {
	General   GeneralConfig   `mapstructure:"general"`
	Server    ServerConfig    `mapstructure:"server"`
	Providers ProvidersConfig `mapstructure:"providers"`
	News      NewsConfig      `mapstructure:"news"`
	Tracking  TrackingConfig  `mapstructure:"tracking"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Storage   StorageConfig   `mapstructure:"storage"`
}

// GeneralConfig contains general application settings.
type GeneralConfig struct {
	Debug    bool   `mapstructure:"debug"`
	LogLevel string `mapstructure:"log_level"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Address string `mapstructure:"address"`
}

// ProvidersConfig contains the analysis oracle provider configurations.
type ProvidersConfig struct {
	Default string       `mapstructure:"default"`
	OpenAI  OpenAIConfig `mapstructure:"openai"`
}

type OpenAIConfig struct {
	APIKey          string        `mapstructure:"api_key"`
	BaseURL         string        `mapstructure:"base_url"`
	CompletionModel string        `mapstructure:"completion_model"`
	Temperature     float64       `mapstructure:"temperature"`
	MaxTokens       int           `mapstructure:"max_tokens"`
	Timeout         time.Duration `mapstructure:"timeout"`
}

func (o OpenAIConfig) Validate() error {
	if strings.TrimSpace(o.APIKey) == "" {
		return fmt.Errorf("providers.openai.api_key is required")
	}
	return nil
}

// NewsConfig configures the news source adapters and the aggregator.
type NewsConfig struct {
	NewsAPI           NewsAPIConfig `mapstructure:"newsapi"`
	Feeds             FeedsConfig   `mapstructure:"feeds"`
	MaxArticles       int           `mapstructure:"max_articles"`
	MinPrimaryResults int           `mapstructure:"min_primary_results"`
	Window            time.Duration `mapstructure:"window"`
}

// NewsAPIConfig configures the keyword-search API adapter.
type NewsAPIConfig struct {
	APIKey     string        `mapstructure:"api_key"`
	Endpoint   string        `mapstructure:"endpoint"`
	MaxResults int           `mapstructure:"max_results"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// FeedsConfig configures the syndication-feed adapter tier.
type FeedsConfig struct {
	URLs         []string      `mapstructure:"urls"`
	PerFeedLimit int           `mapstructure:"per_feed_limit"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

// TrackingConfig bounds the tracking state machine.
type TrackingConfig struct {
	OperationTimeout time.Duration `mapstructure:"operation_timeout"`
	RefreshCron      string        `mapstructure:"refresh_cron"`
	SchedulerEnabled bool          `mapstructure:"scheduler_enabled"`
	SchedulerTick    time.Duration `mapstructure:"scheduler_tick"`
}

func (t TrackingConfig) Validate() error {
	if t.OperationTimeout <= 0 {
		return fmt.Errorf("tracking.operation_timeout must be > 0")
	}
	return nil
}

// TelemetryConfig contains metrics settings.
type TelemetryConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// StorageConfig selects and configures the store backend.
type StorageConfig struct {
	Backend  string         `mapstructure:"backend"` // memory, redis, postgres
	Redis    RedisConfig    `mapstructure:"redis"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

func (s StorageConfig) Validate() error {
	switch s.Backend {
	case "", "memory":
		return nil
	case "redis":
		return s.Redis.Validate()
	case "postgres":
		return s.Postgres.Validate()
	default:
		return fmt.Errorf("storage.backend must be one of memory, redis, postgres")
	}
}

type RedisConfig struct {
	Host     string        `mapstructure:"host"`
	Port     string        `mapstructure:"port"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

func (r RedisConfig) Validate() error {
	if strings.TrimSpace(r.Host) == "" || strings.TrimSpace(r.Port) == "" {
		return fmt.Errorf("storage.redis.host/port required for redis backend")
	}
	return nil
}

type PostgresConfig struct {
	URL      string        `mapstructure:"url"`
	Host     string        `mapstructure:"host"`
	Port     string        `mapstructure:"port"`
	User     string        `mapstructure:"user"`
	Password string        `mapstructure:"password"`
	DBName   string        `mapstructure:"dbname"`
	SSLMode  string        `mapstructure:"sslmode"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

func (p PostgresConfig) Validate() error {
	if strings.TrimSpace(p.URL) != "" {
		return nil
	}
	if strings.TrimSpace(p.Host) == "" {
		return fmt.Errorf("storage.postgres.host required when url is not provided")
	}
	if strings.TrimSpace(p.DBName) == "" {
		return fmt.Errorf("storage.postgres.dbname required when url is not provided")
	}
	return nil
}

// DSN builds a postgres connection string from the configured fields.
func (p PostgresConfig) DSN() string {
	if p.URL != "" {
		return p.URL
	}
	port := p.Port
	if port == "" {
		port = "5432"
	}
	ssl := p.SSLMode
	if ssl == "" {
		ssl = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", p.User, p.Password, p.Host, port, p.DBName, ssl)
}

// LoadConfig loads config from file
func LoadConfig(path string) *Config {
	viper.SetConfigName("config")
	viper.SetConfigType("json")
	viper.SetDefault("server.address", ":8000")
	viper.SetDefault("providers.default", "openai")
	viper.SetDefault("providers.openai.completion_model", "gpt-4o-mini")
	viper.SetDefault("providers.openai.temperature", 0.2)
	viper.SetDefault("providers.openai.max_tokens", 4096)
	viper.SetDefault("providers.openai.timeout", 30*time.Second)
	viper.SetDefault("news.newsapi.endpoint", "https://newsapi.org/v2/everything")
	viper.SetDefault("news.newsapi.max_results", 10)
	viper.SetDefault("news.max_articles", 10)
	viper.SetDefault("news.min_primary_results", 5)
	viper.SetDefault("news.window", 7*24*time.Hour)
	viper.SetDefault("news.feeds.per_feed_limit", 5)
	viper.SetDefault("tracking.operation_timeout", 60*time.Second)
	viper.SetDefault("tracking.refresh_cron", "@hourly")
	viper.SetDefault("tracking.scheduler_tick", 5*time.Minute)
	viper.SetDefault("storage.backend", "memory")

	if path == "" {
		viper.AddConfigPath("./config")
		viper.AddConfigPath(".")
		exe, _ := os.Executable()
		exeDir := filepath.Dir(exe)
		viper.AddConfigPath(exeDir)
		viper.AddConfigPath(filepath.Join(exeDir, ".."))
	} else {
		viper.SetConfigFile(path)
	}

	viper.SetEnvPrefix("HFAGENT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Config file is optional: env vars and defaults can carry a full setup.
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			panic(fmt.Errorf("fatal error config file: %w", err))
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		panic(fmt.Errorf("fatal error config file: %w", err))
	}

	if err := config.Tracking.Validate(); err != nil {
		panic(err)
	}
	if err := config.Storage.Validate(); err != nil {
		panic(err)
	}
	return &config
}
