package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	// HTTP surface of the shortener host
	Server ServerConfig `mapstructure:"server"`

	Log LogConfig `mapstructure:"log"`

	// PostgreSQL
	Postgres PostgresConfig `mapstructure:"postgres"`

	// Redis
	Redis RedisConfig `mapstructure:"redis"`

	// NATS
	NATS NATSConfig `mapstructure:"nats"`

	// Prometheus
	Prometheus PrometheusConfig `mapstructure:"prometheus"`

	// Option store holding notifier settings, the keyword hint and the rate-limit ledger
	Store StoreConfig `mapstructure:"store"`

	Events   EventsConfig   `mapstructure:"events"`
	Dispatch DispatchConfig `mapstructure:"dispatch"`
	Ledger   LedgerConfig   `mapstructure:"ledger"`
	Geo      GeoConfig      `mapstructure:"geo"`
}

type ServerConfig struct {
	Addr        string `mapstructure:"addr"`
	SiteURL     string `mapstructure:"site_url"`
	AdminSecret string `mapstructure:"admin_secret"`
	// Lifetime of tokens minted by cmd/admintoken. Zero means no expiry.
	AdminTokenTTL time.Duration `mapstructure:"admin_token_ttl"`
	// Requests per minute per IP on /api, enforced through Redis. Zero disables it.
	APIRateLimit int      `mapstructure:"api_rate_limit"`
	CORSOrigins  []string `mapstructure:"cors_origins"`
	// Header trusted for the client IP behind a reverse proxy, e.g. X-Forwarded-For.
	ProxyHeader string `mapstructure:"proxy_header"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	Encoding   string `mapstructure:"encoding"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

type PostgresConfig struct {
	Host              string `mapstructure:"host"`
	User              string `mapstructure:"user"`
	Password          string `mapstructure:"password"`
	Database          string `mapstructure:"database"`
	Port              int    `mapstructure:"port"`
	SSLMode           string `mapstructure:"sslmode"`
	MaxConns          int32  `mapstructure:"max_conns"`
	MinConns          int32  `mapstructure:"min_conns"`
	MaxConnLifetime   string `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime   string `mapstructure:"max_conn_idle_time"`
	HealthCheckPeriod string `mapstructure:"health_check_period"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type NATSConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
}

type PrometheusConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// Store backends.
const (
	StorePostgres = "postgres"
	StoreRedis    = "redis"
	StoreSQLite   = "sqlite"
	StoreMemory   = "memory"
)

type StoreConfig struct {
	Backend    string `mapstructure:"backend"`
	SQLitePath string `mapstructure:"sqlite_path"`
	KeyPrefix  string `mapstructure:"key_prefix"`
}

// Event transports.
const (
	TransportInline = "inline"
	TransportNATS   = "nats"
)

type EventsConfig struct {
	Transport string `mapstructure:"transport"`
}

// Dispatch modes.
const (
	DispatchAuto  = "auto"
	DispatchAsync = "async"
	DispatchSync  = "sync"
)

type DispatchConfig struct {
	Mode         string        `mapstructure:"mode"`
	AsyncTimeout time.Duration `mapstructure:"async_timeout"`
	SyncTimeout  time.Duration `mapstructure:"sync_timeout"`
	TestTimeout  time.Duration `mapstructure:"test_timeout"`
	MaxPerMinute int           `mapstructure:"max_per_minute"`
	FooterText   string        `mapstructure:"footer_text"`
}

type LedgerConfig struct {
	SweepSchedule string `mapstructure:"sweep_schedule"`
	MaxEntries    int    `mapstructure:"max_entries"`
}

type GeoConfig struct {
	CountryHeader string `mapstructure:"country_header"`
}

func Load() (*Config, error) {
	_, cfg, err := LoadViper()
	return cfg, err
}

// LoadViper is Load but also hands back the viper instance so callers can Watch it.
func LoadViper() (*viper.Viper, *Config, error) {
	// Load local .env for development (ignored when missing).
	if err := godotenv.Load(".env"); err != nil && !os.IsNotExist(err) {
		return nil, nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	v := viper.New()

	// Search for config/config.yaml (plus root for overrides).
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	// Allow environment variables to override YAML entries.
	v.SetEnvPrefix("")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Preserve legacy env variable names.
	bindEnvVars(v)

	cfg, err := decode(v)
	if err != nil {
		return nil, nil, err
	}
	return v, cfg, nil
}

// Watch re-decodes the configuration whenever the backing file changes and hands it to fn.
// Decode failures are reported through onErr and leave the previous configuration in place.
func Watch(v *viper.Viper, fn func(*Config), onErr func(error)) {
	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		cfg, err := decode(v)
		if err != nil {
			if onErr != nil {
				onErr(err)
			}
			return
		}
		fn(cfg)
	})
	v.WatchConfig()
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Store.Backend {
	case StorePostgres, StoreRedis, StoreSQLite, StoreMemory:
	default:
		return fmt.Errorf("config: unknown store backend %q", c.Store.Backend)
	}
	if c.Store.Backend == StoreRedis && !c.Redis.Enabled {
		return fmt.Errorf("config: store backend redis requires redis.enabled")
	}
	switch c.Events.Transport {
	case TransportInline, TransportNATS:
	default:
		return fmt.Errorf("config: unknown events transport %q", c.Events.Transport)
	}
	switch c.Dispatch.Mode {
	case DispatchAuto, DispatchAsync, DispatchSync:
	default:
		return fmt.Errorf("config: unknown dispatch mode %q", c.Dispatch.Mode)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.site_url", "http://localhost:8080")
	v.SetDefault("server.api_rate_limit", 100)
	v.SetDefault("server.admin_token_ttl", 24*time.Hour)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age_days", 30)

	v.SetDefault("store.backend", StorePostgres)
	v.SetDefault("store.sqlite_path", "clickhook.db")

	v.SetDefault("events.transport", TransportInline)

	v.SetDefault("dispatch.mode", DispatchAuto)
	v.SetDefault("dispatch.async_timeout", time.Second)
	v.SetDefault("dispatch.sync_timeout", 5*time.Second)
	v.SetDefault("dispatch.test_timeout", 10*time.Second)
	v.SetDefault("dispatch.footer_text", "ClickHook")

	v.SetDefault("ledger.sweep_schedule", "@every 10m")

	v.SetDefault("geo.country_header", "CF-IPCountry")
}

func bindEnvVars(v *viper.Viper) {
	// Server
	v.BindEnv("server.addr", "HTTP_ADDR")
	v.BindEnv("server.site_url", "SITE_URL")
	v.BindEnv("server.admin_secret", "ADMIN_SECRET")
	v.BindEnv("server.proxy_header", "PROXY_HEADER")

	// Logging
	v.BindEnv("log.level", "LOG_LEVEL")
	v.BindEnv("log.file", "LOG_FILE")

	// PostgreSQL
	v.BindEnv("postgres.host", "PG_HOST")
	v.BindEnv("postgres.user", "PG_USER")
	v.BindEnv("postgres.password", "PG_PASSWORD")
	v.BindEnv("postgres.database", "PG_DB")
	v.BindEnv("postgres.port", "PG_PORT")
	v.BindEnv("postgres.sslmode", "PG_SSLMODE")

	// Redis
	v.BindEnv("redis.enabled", "REDIS_ENABLED")
	v.BindEnv("redis.host", "REDIS_HOST")
	v.BindEnv("redis.port", "REDIS_PORT")
	v.BindEnv("redis.password", "REDIS_PASSWORD")
	v.BindEnv("redis.db", "REDIS_DB")

	// NATS
	v.BindEnv("nats.host", "NATS_HOST")
	v.BindEnv("nats.port", "NATS_PORT")
	v.BindEnv("nats.user", "NATS_USER")
	v.BindEnv("nats.password", "NATS_PASSWORD")

	// Prometheus
	v.BindEnv("prometheus.enabled", "PROM_ENABLED")
	v.BindEnv("prometheus.port", "PROM_PORT")

	// Notifier plumbing
	v.BindEnv("store.backend", "STORE_BACKEND")
	v.BindEnv("events.transport", "EVENTS_TRANSPORT")
	v.BindEnv("dispatch.mode", "DISPATCH_MODE")
}
