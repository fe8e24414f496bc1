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
// built-in defaults, applies HYPERD_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known HYPERD_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Protocol ──
	setStr(&cfg.Protocol.GlobalID, "HYPERD_PROTOCOL_GLOBAL_ID")
	setStr(&cfg.Protocol.Authority, "HYPERD_PROTOCOL_AUTHORITY")
	setStr(&cfg.Protocol.QuoteMint, "HYPERD_PROTOCOL_QUOTE_MINT")
	setStr(&cfg.Protocol.Treasury, "HYPERD_PROTOCOL_TREASURY")
	setUint16(&cfg.Protocol.AttentionFeeBps, "HYPERD_PROTOCOL_ATTENTION_FEE_BPS")
	setUint16(&cfg.Protocol.CreatorFeeBps, "HYPERD_PROTOCOL_CREATOR_FEE_BPS")
	setUint16(&cfg.Protocol.TreasuryFeeBps, "HYPERD_PROTOCOL_TREASURY_FEE_BPS")
	setUint64(&cfg.Protocol.BondVolumeTarget, "HYPERD_PROTOCOL_BOND_VOLUME_TARGET")
	setUint64(&cfg.Protocol.BondLiquidityTarget, "HYPERD_PROTOCOL_BOND_LIQUIDITY_TARGET")

	// ── Resolver ──
	setStr(&cfg.Resolver.PrivateKey, "HYPERD_RESOLVER_PRIVATE_KEY")
	setStr(&cfg.Resolver.EncryptedKeyPath, "HYPERD_RESOLVER_ENCRYPTED_KEY_PATH")
	setStr(&cfg.Resolver.KeyPassword, "HYPERD_RESOLVER_KEY_PASSWORD")

	// ── Database ──
	setStr(&cfg.Database.DSN, "HYPERD_DATABASE_DSN")
	setStr(&cfg.Database.Host, "HYPERD_DATABASE_HOST")
	setInt(&cfg.Database.Port, "HYPERD_DATABASE_PORT")
	setStr(&cfg.Database.Database, "HYPERD_DATABASE_NAME")
	setStr(&cfg.Database.User, "HYPERD_DATABASE_USER")
	setStr(&cfg.Database.Password, "HYPERD_DATABASE_PASSWORD")
	setStr(&cfg.Database.SSLMode, "HYPERD_DATABASE_SSLMODE")
	setInt(&cfg.Database.PoolMaxConns, "HYPERD_DATABASE_POOL_MAX_CONNS")
	setInt(&cfg.Database.PoolMinConns, "HYPERD_DATABASE_POOL_MIN_CONNS")
	setBool(&cfg.Database.RunMigrations, "HYPERD_DATABASE_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "HYPERD_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "HYPERD_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "HYPERD_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "HYPERD_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "HYPERD_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "HYPERD_REDIS_TLS_ENABLED")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "HYPERD_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "HYPERD_S3_REGION")
	setStr(&cfg.S3.Bucket, "HYPERD_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "HYPERD_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "HYPERD_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "HYPERD_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "HYPERD_S3_FORCE_PATH_STYLE")

	// ── Archive ──
	setBool(&cfg.Archive.Enabled, "HYPERD_ARCHIVE_ENABLED")
	setDuration(&cfg.Archive.ScanInterval, "HYPERD_ARCHIVE_SCAN_INTERVAL")
	setBool(&cfg.Archive.PruneArchived, "HYPERD_ARCHIVE_PRUNE_ARCHIVED")
	setInt(&cfg.Archive.RetentionDays, "HYPERD_ARCHIVE_RETENTION_DAYS")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "HYPERD_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "HYPERD_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "HYPERD_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.AdminAPIKey, "HYPERD_SERVER_ADMIN_API_KEY")
	setInt(&cfg.Server.RateLimit, "HYPERD_SERVER_RATE_LIMIT")
	setDuration(&cfg.Server.RateWindow, "HYPERD_SERVER_RATE_WINDOW")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "HYPERD_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "HYPERD_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "HYPERD_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "HYPERD_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "HYPERD_MODE")
	setStr(&cfg.LogLevel, "HYPERD_LOG_LEVEL")
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

func setUint16(dst *uint16, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseUint(v, 10, 16); err == nil {
			*dst = uint16(n)
		}
	}
}

func setUint64(dst *uint64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			*dst = n
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
