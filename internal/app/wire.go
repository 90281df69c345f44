package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	s3blob "github.com/topiclab/topicbot/internal/blob/s3"
	"github.com/topiclab/topicbot/internal/cache/redis"
	"github.com/topiclab/topicbot/internal/config"
	"github.com/topiclab/topicbot/internal/domain"
	"github.com/topiclab/topicbot/internal/notify"
	"github.com/topiclab/topicbot/internal/platform/embedder"
	"github.com/topiclab/topicbot/internal/platform/polymarket"
	"github.com/topiclab/topicbot/internal/store/postgres"
)

// Dependencies bundles every dependency the application modes need. It is
// constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	// Stores
	MarketStore     domain.MarketStore
	EmbeddingStore  domain.EmbeddingStore
	GraphStore      domain.GraphStore
	ResolutionStore domain.ResolutionStore
	SignalStore     domain.SignalStore
	SnapshotStore   domain.SnapshotStore
	BacktestStore   domain.BacktestStore

	// Caches and messaging
	MarketCache domain.MarketCache
	SignalBus   domain.SignalBus

	// Blob storage (nil unless s3 is enabled)
	BlobWriter domain.BlobWriter
	Archiver   *s3blob.Archiver

	// Notifications
	Notifier *notify.Notifier

	// External clients
	Gamma    *polymarket.GammaClient
	Embedder *embedder.Client
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- PostgreSQL ---
	pgClient, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:      cfg.Postgres.DSN,
		Host:     cfg.Postgres.Host,
		Port:     cfg.Postgres.Port,
		Database: cfg.Postgres.Database,
		User:     cfg.Postgres.User,
		Password: cfg.Postgres.Password,
		SSLMode:  cfg.Postgres.SSLMode,
		MaxConns: cfg.Postgres.PoolMaxConns,
		MinConns: cfg.Postgres.PoolMinConns,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: postgres: %w", err)
	}
	closers = append(closers, pgClient.Close)

	if cfg.Postgres.RunMigrations {
		if err := pgClient.RunMigrations(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
		}
	}

	deps.MarketStore = postgres.NewMarketStore(pgClient)
	deps.EmbeddingStore = postgres.NewEmbeddingStore(pgClient)
	deps.GraphStore = postgres.NewGraphStore(pgClient)
	deps.ResolutionStore = postgres.NewResolutionStore(pgClient)
	deps.SignalStore = postgres.NewSignalStore(pgClient)
	deps.SnapshotStore = postgres.NewSnapshotStore(pgClient)
	deps.BacktestStore = postgres.NewBacktestStore(pgClient)

	// --- Redis ---
	redisClient, err := redis.New(ctx, redis.ClientConfig{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		PoolSize:   cfg.Redis.PoolSize,
		MaxRetries: cfg.Redis.MaxRetries,
		TLSEnabled: cfg.Redis.TLSEnabled,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: redis: %w", err)
	}
	closers = append(closers, func() { _ = redisClient.Close() })

	deps.MarketCache = redis.NewMarketCache(redisClient, 10*time.Minute)
	deps.SignalBus = redis.NewSignalBusWithMaxLen(redisClient, int64(cfg.Redis.StreamMaxLen))

	// --- S3 blob storage ---
	if cfg.S3.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:        cfg.S3.Endpoint,
			Region:          cfg.S3.Region,
			Bucket:          cfg.S3.Bucket,
			AccessKeyID:     cfg.S3.AccessKey,
			SecretAccessKey: cfg.S3.SecretKey,
			UsePathStyle:    cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		deps.BlobWriter = s3blob.NewWriter(s3Client)
		deps.Archiver = s3blob.NewArchiver(deps.BlobWriter)
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(logger, cfg.Notify.Events, senders...)

	// --- External clients ---
	deps.Gamma = polymarket.NewGammaClient(cfg.Polymarket.GammaHost)
	deps.Embedder = embedder.NewClient(cfg.Embedder.BaseURL, cfg.Embedder.APIKey, cfg.Embedder.ModelName)

	return deps, cleanup, nil
}
