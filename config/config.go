package config

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata" // business timezones must resolve on minimal images

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Log      LogConfig      `mapstructure:"log"`
	Wallet   WalletConfig   `mapstructure:"wallet"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // debug, release, test
}

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"` // postgres, memory
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	Isolation       string        `mapstructure:"isolation"` // serializable, repeatable_read, read_committed
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

// InMemory reports whether the ledger runs on the in-process store.
func (d DatabaseConfig) InMemory() bool {
	return strings.EqualFold(d.Driver, "memory")
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	// Timeout bounds dial, read and write so a slow Redis degrades to the database path.
	Timeout time.Duration `mapstructure:"timeout"`
}

// Addr returns the Redis address string.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type JWTConfig struct {
	Secret string        `mapstructure:"secret"`
	Expiry time.Duration `mapstructure:"expiry"`
	Issuer string        `mapstructure:"issuer"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Pretty bool   `mapstructure:"pretty"` // human-readable output (dev only)
}

// WalletConfig tunes the wallet ledger engine.
type WalletConfig struct {
	DefaultCurrency    string        `mapstructure:"default_currency"`
	DefaultTimezone    string        `mapstructure:"default_timezone"` // IANA name, used when a wallet has none
	StoreTimeout       time.Duration `mapstructure:"store_timeout"`    // bound on one whole operation
	LockTimeout        time.Duration `mapstructure:"lock_timeout"`     // wait for a contended wallet row
	SnapshotTTL        time.Duration `mapstructure:"snapshot_ttl"`
	IdempotencyTTL     time.Duration `mapstructure:"idempotency_ttl"`
	RecentTransactions int           `mapstructure:"recent_transactions"`
	StatsWindow        time.Duration `mapstructure:"stats_window"`
}

// Location resolves DefaultTimezone, falling back to UTC when unset.
func (w WalletConfig) Location() (*time.Location, error) {
	if w.DefaultTimezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(w.DefaultTimezone)
	if err != nil {
		return nil, fmt.Errorf("loading default timezone %q: %w", w.DefaultTimezone, err)
	}
	return loc, nil
}

// Load reads configuration from file and environment variables.
// Environment variables override file values. Prefix: WLE_ (Wallet Ledger Engine).
// Nested keys use underscore: WLE_DATABASE_HOST, WLE_WALLET_STORE_TIMEOUT, etc.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "wallet_ledger")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.isolation", "serializable")
	v.SetDefault("database.auto_migrate", false)
	v.SetDefault("redis.enabled", true)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.timeout", "500ms")
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.expiry", "12h")
	v.SetDefault("jwt.issuer", "business-wallet-engine")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
	v.SetDefault("wallet.default_currency", "AED")
	v.SetDefault("wallet.default_timezone", "Asia/Dubai")
	v.SetDefault("wallet.store_timeout", "5s")
	v.SetDefault("wallet.lock_timeout", "3s")
	v.SetDefault("wallet.snapshot_ttl", "30s")
	v.SetDefault("wallet.idempotency_ttl", "24h")
	v.SetDefault("wallet.recent_transactions", 10)
	v.SetDefault("wallet.stats_window", "720h")

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// WLE_DATABASE_HOST -> database.host
	v.SetEnvPrefix("WLE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// The file is optional; env vars can carry everything.
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects settings the engine cannot run with.
func (c *Config) Validate() error {
	switch c.Server.Mode {
	case "debug", "release", "test":
	default:
		return fmt.Errorf("unsupported server mode %q", c.Server.Mode)
	}
	switch strings.ToLower(c.Database.Driver) {
	case "postgres", "memory":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	switch strings.ToLower(c.Database.Isolation) {
	case "serializable", "repeatable_read", "read_committed":
	default:
		return fmt.Errorf("unsupported isolation level %q", c.Database.Isolation)
	}
	if c.Wallet.StoreTimeout <= 0 {
		return fmt.Errorf("wallet.store_timeout must be positive")
	}
	if len(c.Wallet.DefaultCurrency) != 3 {
		return fmt.Errorf("wallet.default_currency must be a 3-letter ISO code")
	}
	if _, err := c.Wallet.Location(); err != nil {
		return err
	}
	return nil
}
