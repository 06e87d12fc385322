// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Crawl    CrawlConfig    `mapstructure:"crawl"`
	Headless HeadlessConfig `mapstructure:"headless"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Neo4j    Neo4jConfig    `mapstructure:"neo4j"`
	PubSub   PubSubConfig   `mapstructure:"pubsub"`
	OpenAI   OpenAIConfig   `mapstructure:"openai"`
	DB       DBConfig       `mapstructure:"db"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// CrawlConfig governs the crawl pipeline.
type CrawlConfig struct {
	Parallelism        int     `mapstructure:"parallelism"`
	BatchSize          int     `mapstructure:"batch_size"`
	MaxPages           int     `mapstructure:"max_pages"`
	UserAgent          string  `mapstructure:"user_agent"`
	PerHostRPS         float64 `mapstructure:"per_host_rps"`
	VisitedTTLSeconds  int     `mapstructure:"visited_ttl_seconds"`
	BatchPacingMillis  int     `mapstructure:"batch_pacing_ms"`
	InsertPacingMillis int     `mapstructure:"insert_pacing_ms"`
}

// HeadlessConfig configures headless rendering.
type HeadlessConfig struct {
	MaxParallel   int `mapstructure:"max_parallel"`
	NavTimeoutSec int `mapstructure:"nav_timeout_seconds"`
}

// RedisConfig controls access to the shared visited-set store.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Neo4jConfig controls access to the graph database.
type Neo4jConfig struct {
	URI      string `mapstructure:"uri"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// PubSubConfig names the broker project and topic layout.
type PubSubConfig struct {
	ProjectID          string `mapstructure:"project_id"`
	TopicPrefix        string `mapstructure:"topic_prefix"`
	SubscriptionSuffix string `mapstructure:"subscription_suffix"`
}

// OpenAIConfig holds model selection for page analysis.
type OpenAIConfig struct {
	APIKey         string `mapstructure:"api_key"`
	ChatModel      string `mapstructure:"chat_model"`
	EmbeddingModel string `mapstructure:"embedding_model"`
}

// DBConfig controls the optional task-status database.
type DBConfig struct {
	DSN string `mapstructure:"dsn"`
}

// StorageConfig sets bucket and paths for snapshot persistence.
type StorageConfig struct {
	GCSBucket   string `mapstructure:"gcs_bucket"`
	Prefix      string `mapstructure:"prefix"`
	ContentType string `mapstructure:"content_type"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("WEBGRAPH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if cfg.Crawl.BatchSize == 0 {
		// By default a batch fills the worker pool exactly once.
		cfg.Crawl.BatchSize = cfg.Crawl.Parallelism
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("crawl.parallelism", runtime.NumCPU())
	v.SetDefault("crawl.user_agent", "webgraph-bot/0.1")
	v.SetDefault("crawl.per_host_rps", 2.0)
	v.SetDefault("crawl.visited_ttl_seconds", 3600)
	v.SetDefault("crawl.batch_pacing_ms", 2500)
	v.SetDefault("crawl.insert_pacing_ms", 1000)
	v.SetDefault("headless.max_parallel", 2)
	v.SetDefault("headless.nav_timeout_seconds", 25)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("neo4j.uri", "bolt://localhost:7687")
	v.SetDefault("neo4j.username", "neo4j")
	v.SetDefault("pubsub.topic_prefix", "webgraph-")
	v.SetDefault("pubsub.subscription_suffix", "-worker")
	v.SetDefault("openai.chat_model", "")
	v.SetDefault("openai.embedding_model", "")
	v.SetDefault("storage.prefix", "pages")
	v.SetDefault("storage.content_type", "text/html; charset=utf-8")
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Crawl.Parallelism <= 0 {
		return fmt.Errorf("crawl.parallelism must be > 0")
	}
	if c.Crawl.BatchSize <= 0 {
		return fmt.Errorf("crawl.batch_size must be > 0")
	}
	if c.Crawl.VisitedTTLSeconds <= 0 {
		return fmt.Errorf("crawl.visited_ttl_seconds must be > 0")
	}
	if c.Headless.MaxParallel <= 0 {
		return fmt.Errorf("headless.max_parallel must be > 0")
	}
	return nil
}

// VisitedTTL returns the visited-set expiry as a duration.
func (c Config) VisitedTTL() time.Duration {
	return time.Duration(c.Crawl.VisitedTTLSeconds) * time.Second
}

// BatchPacing returns the delay between batch emissions.
func (c Config) BatchPacing() time.Duration {
	return time.Duration(c.Crawl.BatchPacingMillis) * time.Millisecond
}

// InsertPacing returns the delay before results move to insertion.
func (c Config) InsertPacing() time.Duration {
	return time.Duration(c.Crawl.InsertPacingMillis) * time.Millisecond
}
