// Package config defines the top-level configuration for the topic bot and
// provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by TOPICBOT_* environment variables.
type Config struct {
	Polymarket PolymarketConfig `toml:"polymarket"`
	Embedder   EmbedderConfig   `toml:"embedder"`
	Graph      GraphConfig      `toml:"graph"`
	Monitor    MonitorConfig    `toml:"monitor"`
	Backtest   BacktestConfig   `toml:"backtest"`
	Postgres   PostgresConfig   `toml:"postgres"`
	Redis      RedisConfig      `toml:"redis"`
	S3         S3Config         `toml:"s3"`
	Notify     NotifyConfig     `toml:"notify"`
	Mode       string           `toml:"mode"`
	LogLevel   string           `toml:"log_level"`
}

// PolymarketConfig holds market-data API endpoints and paging parameters.
type PolymarketConfig struct {
	GammaHost      string `toml:"gamma_host"`
	WsHost         string `toml:"ws_host"`
	MarketsPerPage int    `toml:"markets_per_page"`
	MaxPages       int    `toml:"max_pages"`
	MinLiquidity   float64 `toml:"min_liquidity"`
}

// EmbedderConfig holds the text-embedding service parameters. The embedding
// function itself is a black box behind this endpoint.
type EmbedderConfig struct {
	BaseURL      string `toml:"base_url"`
	APIKey       string `toml:"api_key"`
	ModelName    string `toml:"model_name"`
	ModelVersion string `toml:"model_version"`
}

// GraphConfig holds the edge filters and neighbor search parameters.
type GraphConfig struct {
	MinSimilarity float64 `toml:"min_similarity"`
	MaxDaysApart  int     `toml:"max_days_apart"`
	TopK          int     `toml:"top_k"`
	// IndexBackend selects the vector index implementation: "flat" or
	// "partitioned". Both satisfy the same ordering contract.
	IndexBackend string `toml:"index_backend"`
	Partitions   int    `toml:"partitions"`
	Probes       int    `toml:"probes"`
	Seed         int64  `toml:"seed"`
}

// MonitorConfig holds the live signal monitor parameters.
type MonitorConfig struct {
	PollInterval     duration `toml:"poll_interval"`
	SnapshotInterval duration `toml:"snapshot_interval"`
}

// BacktestConfig holds backtest parameters.
type BacktestConfig struct {
	MaxMarkets  int  `toml:"max_markets"`
	SaveResults bool `toml:"save_results"`
	Archive     bool `toml:"archive"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr         string `toml:"addr"`
	Password     string `toml:"password"`
	DB           int    `toml:"db"`
	PoolSize     int    `toml:"pool_size"`
	MaxRetries   int    `toml:"max_retries"`
	TLSEnabled   bool   `toml:"tls_enabled"`
	StreamMaxLen int    `toml:"stream_max_len"`
}

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
func Defaults() Config {
	return Config{
		Polymarket: PolymarketConfig{
			GammaHost:      "https://gamma-api.polymarket.com",
			WsHost:         "wss://ws-subscriptions-clob.polymarket.com",
			MarketsPerPage: 100,
			MaxPages:       50,
			MinLiquidity:   1000,
		},
		Embedder: EmbedderConfig{
			BaseURL:      "http://localhost:8080",
			ModelName:    "all-mpnet-base-v2",
			ModelVersion: "2",
		},
		Graph: GraphConfig{
			MinSimilarity: 0.3,
			MaxDaysApart:  90,
			TopK:          50,
			IndexBackend:  "flat",
			Seed:          42,
		},
		Monitor: MonitorConfig{
			PollInterval:     duration{time.Minute},
			SnapshotInterval: duration{5 * time.Minute},
		},
		Backtest: BacktestConfig{
			MaxMarkets:  2000,
			SaveResults: true,
			Archive:     false,
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "postgres",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:         "localhost:6379",
			PoolSize:     20,
			MaxRetries:   3,
			StreamMaxLen: 10000,
		},
		S3: S3Config{
			Enabled:        false,
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "topicbot-data",
			ForcePathStyle: true,
		},
		Notify: NotifyConfig{
			Events: []string{"signal_emitted", "error"},
		},
		Mode:     "monitor",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"build":    true,
	"monitor":  true,
	"backtest": true,
	"ingest":   true,
	"full":     true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// validBackends enumerates the accepted vector index backends.
var validBackends = map[string]bool{
	"flat":        true,
	"partitioned": true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var problems []string

	if !validModes[strings.ToLower(c.Mode)] {
		problems = append(problems, fmt.Sprintf("mode %q is not valid", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		problems = append(problems, fmt.Sprintf("log_level %q is not valid", c.LogLevel))
	}
	if !validBackends[strings.ToLower(c.Graph.IndexBackend)] {
		problems = append(problems, fmt.Sprintf("graph.index_backend %q is not valid", c.Graph.IndexBackend))
	}
	if c.Graph.MinSimilarity < -1 || c.Graph.MinSimilarity > 1 {
		problems = append(problems, "graph.min_similarity must be in [-1, 1]")
	}
	if c.Graph.MaxDaysApart < 0 {
		problems = append(problems, "graph.max_days_apart must be >= 0")
	}
	if c.Graph.TopK <= 0 {
		problems = append(problems, "graph.top_k must be > 0")
	}
	if c.Polymarket.GammaHost == "" {
		problems = append(problems, "polymarket.gamma_host is required")
	}
	if c.Polymarket.MarketsPerPage <= 0 {
		problems = append(problems, "polymarket.markets_per_page must be > 0")
	}
	if c.Monitor.PollInterval.Duration <= 0 {
		problems = append(problems, "monitor.poll_interval must be > 0")
	}
	if c.S3.Enabled {
		if c.S3.Bucket == "" {
			problems = append(problems, "s3.bucket is required when s3 is enabled")
		}
		if c.S3.Region == "" {
			problems = append(problems, "s3.region is required when s3 is enabled")
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}
