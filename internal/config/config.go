// Package config defines the top-level configuration for the hyperd daemon
// and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by HYPERD_* environment variables.
type Config struct {
	Protocol Protocol       `toml:"protocol"`
	Resolver ResolverConfig `toml:"resolver"`
	Database DatabaseConfig `toml:"database"`
	Redis    RedisConfig    `toml:"redis"`
	S3       S3Config       `toml:"s3"`
	Archive  ArchiveConfig  `toml:"archive"`
	Server   ServerConfig   `toml:"server"`
	Notify   NotifyConfig   `toml:"notify"`
	Mode     string         `toml:"mode"`
	LogLevel string         `toml:"log_level"`
}

// Protocol holds the economic parameters of the protocol singleton. The fee
// rates are basis points of the gross curve amount; the bond targets are the
// default thresholds a market must reach before it can bond.
type Protocol struct {
	GlobalID            string `toml:"global_id"`
	Authority           string `toml:"authority"`
	QuoteMint           string `toml:"quote_mint"`
	Treasury            string `toml:"treasury"`
	AttentionFeeBps     uint16 `toml:"attention_fee_bps"`
	CreatorFeeBps       uint16 `toml:"creator_fee_bps"`
	TreasuryFeeBps      uint16 `toml:"treasury_fee_bps"`
	BondVolumeTarget    uint64 `toml:"bond_volume_target"`
	BondLiquidityTarget uint64 `toml:"bond_liquidity_target"`
}

// ResolverConfig holds the resolver signing key: either a raw hex key or an
// encrypted key file plus password.
type ResolverConfig struct {
	PrivateKey       string `toml:"private_key"`
	EncryptedKeyPath string `toml:"encrypted_key_path"`
	KeyPassword      string `toml:"key_password"`
}

// DatabaseConfig holds PostgreSQL connection parameters.
type DatabaseConfig struct {
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
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters for settlement
// archives.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// ArchiveConfig controls the settlement archiver: how often it scans for
// settled markets and whether archived trade rows are pruned from Postgres.
type ArchiveConfig struct {
	Enabled       bool     `toml:"enabled"`
	ScanInterval  duration `toml:"scan_interval"`
	PruneArchived bool     `toml:"prune_archived"`
	RetentionDays int      `toml:"retention_days"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
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

// ServerConfig holds HTTP server parameters. RateLimit is requests per
// client IP per RateWindow; zero disables rate limiting.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	AdminAPIKey string   `toml:"admin_api_key"`
	RateLimit   int      `toml:"rate_limit"`
	RateWindow  duration `toml:"rate_window"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Protocol: Protocol{
			GlobalID:            "hyper-main",
			AttentionFeeBps:     100,
			CreatorFeeBps:       100,
			TreasuryFeeBps:      100,
			BondVolumeTarget:    10_000_000_000,
			BondLiquidityTarget: 5_000_000_000,
		},
		Database: DatabaseConfig{
			DSN:           "",
			Host:          "localhost",
			Port:          5432,
			Database:      "hyperd",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
			TLSEnabled: false,
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "hyperd-settlements",
			UseSSL:         false,
			ForcePathStyle: true,
		},
		Archive: ArchiveConfig{
			Enabled:       false,
			ScanInterval:  duration{15 * time.Minute},
			PruneArchived: false,
			RetentionDays: 90,
		},
		Server: ServerConfig{
			Enabled:     true,
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
			RateLimit:   0,
			RateWindow:  duration{time.Minute},
		},
		Notify: NotifyConfig{
			Events: []string{"market_bonded", "market_resolved", "error"},
		},
		Mode:     "full",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"server":  true,
	"archive": true,
	"full":    true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: server, archive, full)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Protocol — each fee bucket and the sum must stay within 10000 bps so
	// no split of an amount can ever exceed the amount itself.
	if c.Protocol.GlobalID == "" {
		errs = append(errs, "protocol: global_id must not be empty")
	}
	if c.Protocol.AttentionFeeBps > 10_000 {
		errs = append(errs, fmt.Sprintf("protocol: attention_fee_bps must be <= 10000, got %d", c.Protocol.AttentionFeeBps))
	}
	if c.Protocol.CreatorFeeBps > 10_000 {
		errs = append(errs, fmt.Sprintf("protocol: creator_fee_bps must be <= 10000, got %d", c.Protocol.CreatorFeeBps))
	}
	if c.Protocol.TreasuryFeeBps > 10_000 {
		errs = append(errs, fmt.Sprintf("protocol: treasury_fee_bps must be <= 10000, got %d", c.Protocol.TreasuryFeeBps))
	}
	feeSum := uint32(c.Protocol.AttentionFeeBps) + uint32(c.Protocol.CreatorFeeBps) + uint32(c.Protocol.TreasuryFeeBps)
	if feeSum > 10_000 {
		errs = append(errs, fmt.Sprintf("protocol: fee rates must sum to <= 10000 bps, got %d", feeSum))
	}
	if c.Protocol.BondVolumeTarget == 0 {
		errs = append(errs, "protocol: bond_volume_target must be > 0")
	}
	if c.Protocol.BondLiquidityTarget == 0 {
		errs = append(errs, "protocol: bond_liquidity_target must be > 0")
	}
	if c.Protocol.Treasury == "" {
		errs = append(errs, "protocol: treasury must not be empty")
	}

	// Resolver — the server needs a resolver identity to accept resolutions.
	needsResolver := c.Mode == "server" || c.Mode == "full"
	if needsResolver {
		if c.Resolver.PrivateKey == "" && c.Resolver.EncryptedKeyPath == "" {
			errs = append(errs, "resolver: either private_key or encrypted_key_path must be set for mode "+c.Mode)
		}
		if c.Resolver.EncryptedKeyPath != "" && c.Resolver.KeyPassword == "" {
			errs = append(errs, "resolver: key_password is required when encrypted_key_path is set")
		}
	}

	// Database
	if strings.TrimSpace(c.Database.DSN) == "" {
		if c.Database.Host == "" {
			errs = append(errs, "database: host must not be empty (or set database.dsn)")
		}
		if c.Database.Port <= 0 || c.Database.Port > 65535 {
			errs = append(errs, fmt.Sprintf("database: port must be 1-65535, got %d", c.Database.Port))
		}
		if c.Database.Database == "" {
			errs = append(errs, "database: database must not be empty")
		}
	}
	if c.Database.PoolMaxConns < 1 {
		errs = append(errs, "database: pool_max_conns must be >= 1")
	}
	if c.Database.PoolMinConns < 0 {
		errs = append(errs, "database: pool_min_conns must be >= 0")
	}
	if c.Database.PoolMinConns > c.Database.PoolMaxConns {
		errs = append(errs, "database: pool_min_conns must not exceed pool_max_conns")
	}

	// Redis
	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	// S3 — only needed when archiving is on.
	if c.Archive.Enabled {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty when archive is enabled")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty when archive is enabled")
		}
		if c.Archive.ScanInterval.Duration <= 0 {
			errs = append(errs, "archive: scan_interval must be > 0")
		}
		if c.Archive.RetentionDays < 0 {
			errs = append(errs, "archive: retention_days must be >= 0")
		}
	}

	// Server
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
		if c.Server.RateLimit < 0 {
			errs = append(errs, "server: rate_limit must be >= 0")
		}
		if c.Server.RateLimit > 0 && c.Server.RateWindow.Duration <= 0 {
			errs = append(errs, "server: rate_window must be > 0 when rate_limit is set")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
