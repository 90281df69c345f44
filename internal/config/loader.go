package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies TOPICBOT_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known TOPICBOT_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This lets
// operators inject secrets at deploy time without touching the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Polymarket ──
	setStr(&cfg.Polymarket.GammaHost, "TOPICBOT_POLYMARKET_GAMMA_HOST")
	setStr(&cfg.Polymarket.WsHost, "TOPICBOT_POLYMARKET_WS_HOST")
	setInt(&cfg.Polymarket.MarketsPerPage, "TOPICBOT_POLYMARKET_MARKETS_PER_PAGE")
	setInt(&cfg.Polymarket.MaxPages, "TOPICBOT_POLYMARKET_MAX_PAGES")
	setFloat64(&cfg.Polymarket.MinLiquidity, "TOPICBOT_POLYMARKET_MIN_LIQUIDITY")

	// ── Embedder ──
	setStr(&cfg.Embedder.BaseURL, "TOPICBOT_EMBEDDER_BASE_URL")
	setStr(&cfg.Embedder.APIKey, "TOPICBOT_EMBEDDER_API_KEY")
	setStr(&cfg.Embedder.ModelName, "TOPICBOT_EMBEDDER_MODEL_NAME")
	setStr(&cfg.Embedder.ModelVersion, "TOPICBOT_EMBEDDER_MODEL_VERSION")

	// ── Graph ──
	setFloat64(&cfg.Graph.MinSimilarity, "MIN_EMBEDDING_SIMILARITY")
	setInt(&cfg.Graph.MaxDaysApart, "MAX_DAYS_APART")
	setFloat64(&cfg.Graph.MinSimilarity, "TOPICBOT_GRAPH_MIN_SIMILARITY")
	setInt(&cfg.Graph.MaxDaysApart, "TOPICBOT_GRAPH_MAX_DAYS_APART")
	setInt(&cfg.Graph.TopK, "TOPICBOT_GRAPH_TOP_K")
	setStr(&cfg.Graph.IndexBackend, "TOPICBOT_GRAPH_INDEX_BACKEND")
	setInt(&cfg.Graph.Partitions, "TOPICBOT_GRAPH_PARTITIONS")
	setInt(&cfg.Graph.Probes, "TOPICBOT_GRAPH_PROBES")
	setInt64(&cfg.Graph.Seed, "TOPICBOT_GRAPH_SEED")

	// ── Monitor ──
	setDuration(&cfg.Monitor.PollInterval, "TOPICBOT_MONITOR_POLL_INTERVAL")
	setDuration(&cfg.Monitor.SnapshotInterval, "TOPICBOT_MONITOR_SNAPSHOT_INTERVAL")

	// ── Backtest ──
	setInt(&cfg.Backtest.MaxMarkets, "TOPICBOT_BACKTEST_MAX_MARKETS")
	setBool(&cfg.Backtest.SaveResults, "TOPICBOT_BACKTEST_SAVE_RESULTS")
	setBool(&cfg.Backtest.Archive, "TOPICBOT_BACKTEST_ARCHIVE")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "TOPICBOT_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "TOPICBOT_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "TOPICBOT_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "TOPICBOT_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "TOPICBOT_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "TOPICBOT_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "TOPICBOT_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.PoolMaxConns, "TOPICBOT_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "TOPICBOT_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "TOPICBOT_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "TOPICBOT_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "TOPICBOT_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "TOPICBOT_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "TOPICBOT_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "TOPICBOT_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "TOPICBOT_REDIS_TLS_ENABLED")
	setInt(&cfg.Redis.StreamMaxLen, "TOPICBOT_REDIS_STREAM_MAX_LEN")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "TOPICBOT_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "TOPICBOT_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "TOPICBOT_S3_REGION")
	setStr(&cfg.S3.Bucket, "TOPICBOT_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "TOPICBOT_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "TOPICBOT_S3_SECRET_KEY")
	setBool(&cfg.S3.ForcePathStyle, "TOPICBOT_S3_FORCE_PATH_STYLE")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "TOPICBOT_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "TOPICBOT_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "TOPICBOT_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "TOPICBOT_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "TOPICBOT_MODE")
	setStr(&cfg.LogLevel, "TOPICBOT_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
