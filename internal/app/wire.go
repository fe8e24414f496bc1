package app

import (
	"context"
	"fmt"
	"log/slog"

	s3blob "github.com/hypelabs/hyperd/internal/blob/s3"
	"github.com/hypelabs/hyperd/internal/cache/redis"
	"github.com/hypelabs/hyperd/internal/config"
	"github.com/hypelabs/hyperd/internal/crypto"
	"github.com/hypelabs/hyperd/internal/domain"
	"github.com/hypelabs/hyperd/internal/engine"
	"github.com/hypelabs/hyperd/internal/ledger"
	"github.com/hypelabs/hyperd/internal/notify"
	"github.com/hypelabs/hyperd/internal/server/handler"
	"github.com/hypelabs/hyperd/internal/store/postgres"
)

// Dependencies bundles every domain-level dependency that the application
// modes need to operate. It is constructed by Wire and torn down by the
// returned cleanup function.
type Dependencies struct {
	// Stores
	GlobalStore       domain.GlobalStore
	MarketStore       domain.MarketStore
	ResolutionStore   domain.ResolutionStore
	TradeStore        domain.TradeStore
	SimpleMarketStore domain.SimpleMarketStore
	PositionStore     domain.PositionStore

	// Caches
	MarketCache domain.MarketCache
	RateLimiter domain.RateLimiter
	LockManager domain.LockManager
	SignalBus   domain.SignalBus

	// Settlement
	Ledger   domain.Ledger
	Engine   *engine.Engine
	Resolver domain.Address

	// Blob storage
	BlobWriter domain.BlobWriter
	BlobReader domain.BlobReader
	Archiver   domain.Archiver

	// Notifications
	Notifier *notify.Notifier

	// HealthChecks are the dependency pings served by the health endpoint.
	HealthChecks []handler.Check
}

// needsS3 returns true for modes that require object storage.
func needsS3(mode string) bool {
	switch mode {
	case "archive", "full":
		return true
	default:
		return false
	}
}

// needsResolver returns true for modes that accept resolution attestations
// and therefore need a resolver identity.
func needsResolver(mode string) bool {
	switch mode {
	case "server", "full":
		return true
	default:
		return false
	}
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config) (*Dependencies, func(), error) {
	logger := slog.Default()

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- PostgreSQL ---
	pgClient, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:      cfg.Database.DSN,
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		Database: cfg.Database.Database,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		SSLMode:  cfg.Database.SSLMode,
		MaxConns: cfg.Database.PoolMaxConns,
		MinConns: cfg.Database.PoolMinConns,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: postgres: %w", err)
	}
	closers = append(closers, pgClient.Close)
	deps.HealthChecks = append(deps.HealthChecks, handler.Check{Name: "postgres", Ping: pgClient.Ping})

	if cfg.Database.RunMigrations {
		if err := pgClient.RunMigrations(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
		}
	}

	pool := pgClient.Pool()
	deps.GlobalStore = postgres.NewGlobalStore(pool)
	deps.MarketStore = postgres.NewMarketStore(pool)
	deps.ResolutionStore = postgres.NewResolutionStore(pool)
	deps.TradeStore = postgres.NewTradeStore(pool)
	deps.SimpleMarketStore = postgres.NewSimpleMarketStore(pool)
	deps.PositionStore = postgres.NewPositionStore(pool)

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
	deps.HealthChecks = append(deps.HealthChecks, handler.Check{Name: "redis", Ping: redisClient.Ping})

	deps.MarketCache = redis.NewMarketCache(redisClient)
	deps.RateLimiter = redis.NewRateLimiter(redisClient)
	deps.LockManager = redis.NewLockManager(redisClient)
	deps.SignalBus = redis.NewSignalBus(redisClient)

	// --- Ledger, resolver identity, and settlement engine ---
	mem := ledger.NewMemory()
	deps.Ledger = mem
	deps.Engine = engine.New(mem, logger)

	if needsResolver(cfg.Mode) {
		key, err := crypto.LoadKey(crypto.KeyConfig{
			RawPrivateKey:    cfg.Resolver.PrivateKey,
			EncryptedKeyPath: cfg.Resolver.EncryptedKeyPath,
			KeyPassword:      cfg.Resolver.KeyPassword,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: resolver key: %w", err)
		}
		signer, err := crypto.NewSigner(key)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: resolver signer: %w", err)
		}
		deps.Resolver = domain.Address(signer.Address().Hex())
		mem.RegisterSigner(deps.Resolver)
	}

	// --- S3 blob storage (only for modes that archive settlements) ---
	if needsS3(cfg.Mode) && cfg.Archive.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		closers = append(closers, func() { _ = s3Client.Close() })
		deps.HealthChecks = append(deps.HealthChecks, handler.Check{Name: "s3", Ping: s3Client.Health})

		deps.BlobWriter = s3blob.NewWriter(s3Client)
		deps.BlobReader = s3blob.NewReader(s3Client)
		deps.Archiver = s3blob.NewArchiver(
			deps.BlobWriter,
			deps.MarketStore,
			deps.ResolutionStore,
			deps.TradeStore,
		)
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	if len(senders) > 0 {
		deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)
	}

	return deps, cleanup, nil
}
