package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all migrator configuration
type Config struct {
	App       AppConfig
	Shopify   ShopifyConfig
	Skio      SkioConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Log       LogConfig
	Migration MigrationConfig
	Storage   StorageConfig
	Telemetry TelemetryConfig
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
}

// ShopifyConfig holds the remote store credentials
type ShopifyConfig struct {
	Domain      string // my-store.myshopify.com
	AccessToken string
	APIVersion  string
	Timeout     time.Duration
}

// SkioConfig holds the default paths of the Skio export files
type SkioConfig struct {
	SubscriptionsFile string
	OrdersFile        string
}

// DatabaseConfig holds local store connection settings
type DatabaseConfig struct {
	Driver          string // postgres, sqlite
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	Path            string // sqlite file
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
	ConnMaxIdleTime int // in minutes
}

// RedisConfig holds Redis connection settings. Without Redis the run lock
// only guards against runs in the same process.
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// MigrationConfig tunes the sync engine
type MigrationConfig struct {
	RetryAttempts   int
	RetryDelay      time.Duration
	PageDelay       time.Duration
	DetailDelay     time.Duration
	CacheResetEvery int
	LockTTL         time.Duration
	TestMode        bool
	WeightUnit      string // kg, g, lb, oz
}

// StorageConfig holds S3-compatible storage settings for product images
type StorageConfig struct {
	Enabled       bool
	Endpoint      string
	Region        string
	Bucket        string
	AccessKey     string
	SecretKey     string
	UseSSL        bool
	UsePathStyle  bool
	PublicBaseURL string
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled           bool    // Whether to export traces
	CollectorEndpoint string  // OTEL Collector endpoint (e.g., "localhost:4317")
	SamplingRatio     float64 // Sampling ratio (0.0-1.0)
	ServiceName       string
	Insecure          bool // Use insecure (non-TLS) connection
	Logs              bool // Also export logs to the collector
	DBTracing         bool // Trace entity store statements
}

// Load loads configuration from a TOML file and environment variables.
// Priority (highest to lowest):
// 1. Environment variables with MIGRATOR_ prefix (e.g., MIGRATOR_SHOPIFY_ACCESS_TOKEN)
// 2. The file at path, or config.toml in . or /etc/migrator when path is empty
// 3. Built-in defaults
func Load(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("toml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/migrator")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("MIGRATOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
		},
		Shopify: ShopifyConfig{
			Domain:      v.GetString("shopify.domain"),
			AccessToken: v.GetString("shopify.access_token"),
			APIVersion:  v.GetString("shopify.api_version"),
			Timeout:     v.GetDuration("shopify.timeout"),
		},
		Skio: SkioConfig{
			SubscriptionsFile: v.GetString("skio.subscriptions_file"),
			OrdersFile:        v.GetString("skio.orders_file"),
		},
		Database: DatabaseConfig{
			Driver:          v.GetString("database.driver"),
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			Path:            v.GetString("database.path"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
		},
		Redis: RedisConfig{
			Enabled:  v.GetBool("redis.enabled"),
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		Migration: MigrationConfig{
			RetryAttempts:   v.GetInt("migration.retry_attempts"),
			RetryDelay:      v.GetDuration("migration.retry_delay"),
			PageDelay:       v.GetDuration("migration.page_delay"),
			DetailDelay:     v.GetDuration("migration.detail_delay"),
			CacheResetEvery: v.GetInt("migration.cache_reset_every"),
			LockTTL:         v.GetDuration("migration.lock_ttl"),
			TestMode:        !v.IsSet("migration.test_mode") || v.GetBool("migration.test_mode"),
			WeightUnit:      v.GetString("migration.weight_unit"),
		},
		Storage: StorageConfig{
			Enabled:       v.GetBool("storage.enabled"),
			Endpoint:      v.GetString("storage.endpoint"),
			Region:        v.GetString("storage.region"),
			Bucket:        v.GetString("storage.bucket"),
			AccessKey:     v.GetString("storage.access_key"),
			SecretKey:     v.GetString("storage.secret_key"),
			UseSSL:        v.GetBool("storage.use_ssl"),
			UsePathStyle:  v.GetBool("storage.use_path_style"),
			PublicBaseURL: v.GetString("storage.public_base_url"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
			Logs:              v.GetBool("telemetry.logs"),
			DBTracing:         v.GetBool("telemetry.db_tracing"),
		},
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "migrator"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.Shopify.APIVersion == "" {
		cfg.Shopify.APIVersion = "2023-04"
	}
	if cfg.Shopify.Timeout == 0 {
		cfg.Shopify.Timeout = 60 * time.Second
	}
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "postgres"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "postgres"
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = "store"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "migrator.db"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 10
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 2
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 60
	}
	if cfg.Database.ConnMaxIdleTime == 0 {
		cfg.Database.ConnMaxIdleTime = 30
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stderr"
	}
	if cfg.Migration.RetryAttempts == 0 {
		cfg.Migration.RetryAttempts = 10
	}
	if cfg.Migration.RetryDelay == 0 {
		cfg.Migration.RetryDelay = 10 * time.Second
	}
	if cfg.Migration.PageDelay == 0 {
		cfg.Migration.PageDelay = time.Second
	}
	if cfg.Migration.DetailDelay == 0 {
		cfg.Migration.DetailDelay = time.Second
	}
	if cfg.Migration.CacheResetEvery == 0 {
		cfg.Migration.CacheResetEvery = 100
	}
	if cfg.Migration.LockTTL == 0 {
		cfg.Migration.LockTTL = 6 * time.Hour
	}
	if cfg.Migration.WeightUnit == "" {
		cfg.Migration.WeightUnit = "kg"
	}
	if cfg.Storage.Region == "" {
		cfg.Storage.Region = "us-east-1"
	}
	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317"
	}
	if cfg.Telemetry.SamplingRatio == 0 {
		cfg.Telemetry.SamplingRatio = 1.0
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "migrator"
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("database.driver must be postgres or sqlite, got %q", c.Database.Driver)
	}
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database.max_idle_conns cannot be negative")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}
	if c.Migration.RetryAttempts < 1 {
		return fmt.Errorf("migration.retry_attempts must be at least 1")
	}
	if c.Migration.CacheResetEvery < 1 {
		return fmt.Errorf("migration.cache_reset_every must be at least 1")
	}
	switch c.Migration.WeightUnit {
	case "kg", "g", "lb", "lbs", "oz":
	default:
		return fmt.Errorf("migration.weight_unit must be one of kg, g, lb, oz, got %q", c.Migration.WeightUnit)
	}
	if c.Storage.Enabled && c.Storage.Bucket == "" {
		return fmt.Errorf("storage.bucket is required when storage is enabled")
	}
	if c.Telemetry.SamplingRatio < 0.0 || c.Telemetry.SamplingRatio > 1.0 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0.0 and 1.0, got %f", c.Telemetry.SamplingRatio)
	}

	if c.App.Env == "production" {
		if c.Database.Driver == "postgres" && c.Database.SSLMode == "disable" {
			return fmt.Errorf("database.sslmode cannot be 'disable' in production")
		}
	}
	return nil
}

// ValidateRemote checks the settings needed to talk to Shopify. Commands that
// only touch the local store skip it.
func (c *Config) ValidateRemote() error {
	if c.Shopify.Domain == "" {
		return fmt.Errorf("shopify.domain is required")
	}
	if c.Shopify.AccessToken == "" {
		return fmt.Errorf("shopify.access_token is required")
	}
	return nil
}

// DSN returns the postgres connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

// RedisAddr returns host:port
func (r *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}
