package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type AppConfig struct {
	App         AppSettings         `mapstructure:"app"`
	GRPC        GRPCSettings        `mapstructure:"grpc"`
	Postgres    PostgresSettings    `mapstructure:"postgres"`
	Redis       RedisSettings       `mapstructure:"redis"`
	Kafka       KafkaSettings       `mapstructure:"kafka"`
	Telemetry   TelemetrySettings   `mapstructure:"telemetry"`
	RateLimit   RateLimitSettings   `mapstructure:"rate_limit"`
	Marketplace MarketplaceSettings `mapstructure:"marketplace"`
	License     LicenseSettings     `mapstructure:"license"`
	Audit       AuditSettings       `mapstructure:"audit"`
	Admin       AdminSettings       `mapstructure:"admin"`
}

type AppSettings struct {
	Name           string   `mapstructure:"name"`
	Env            string   `mapstructure:"env"`
	Version        string   `mapstructure:"version"`
	Host           string   `mapstructure:"host"`
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type GRPCSettings struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

type PostgresSettings struct {
	Host              string        `mapstructure:"host"`
	Port              int           `mapstructure:"port"`
	User              string        `mapstructure:"user"`
	Password          string        `mapstructure:"password"`
	Database          string        `mapstructure:"database"`
	SSLMode           string        `mapstructure:"ssl_mode"`
	MaxConns          int32         `mapstructure:"max_conns"`
	MinConns          int32         `mapstructure:"min_conns"`
	MaxConnLifetime   time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime   time.Duration `mapstructure:"max_conn_idle_time"`
	HealthCheckPeriod time.Duration `mapstructure:"health_check_period"`
	StatementTimeout  time.Duration `mapstructure:"statement_timeout"`
	LockTimeout       time.Duration `mapstructure:"lock_timeout"`
	AutoMigrate       bool          `mapstructure:"auto_migrate"`
}

// RedisSettings configures the Redis connection and key prefixes.
type RedisSettings struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	DB              int    `mapstructure:"db"`
	Password        string `mapstructure:"password"`
	TLSEnabled      bool   `mapstructure:"tls_enabled"`
	PoolSize        int    `mapstructure:"pool_size"`
	LicensePrefix   string `mapstructure:"license_prefix"`
	AttemptPrefix   string `mapstructure:"attempt_prefix"`
	RateLimitPrefix string `mapstructure:"rate_limit_prefix"`
}

// KafkaSettings configures the producer and the billing command consumer.
type KafkaSettings struct {
	Brokers       []string `mapstructure:"brokers"`
	TopicPrefix   string   `mapstructure:"topic_prefix"`
	Async         bool     `mapstructure:"async"`
	BillingTopic  string   `mapstructure:"billing_topic"`
	ConsumerGroup string   `mapstructure:"consumer_group"`
}

type TelemetrySettings struct {
	MetricsPort  int     `mapstructure:"metrics_port"`
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	ServiceName  string  `mapstructure:"service_name"`
	SamplingRate float64 `mapstructure:"sampling_rate"`
}

// RateLimitSettings configures the per-IP attempt counters and the HTTP sliding window.
type RateLimitSettings struct {
	WindowDuration      time.Duration `mapstructure:"window_duration"`
	VerifyMaxAttempts   int           `mapstructure:"verify_max_attempts"`
	ActivateMaxAttempts int           `mapstructure:"activate_max_attempts"`
	HTTPWindow          time.Duration `mapstructure:"http_window"`
	HTTPMaxRequests     int           `mapstructure:"http_max_requests"`
	LicenseKeyRequests  int           `mapstructure:"license_key_requests"`
}

// MarketplaceSettings configures the remote purchase verification client.
type MarketplaceSettings struct {
	BaseURL           string        `mapstructure:"base_url"`
	Token             string        `mapstructure:"token"`
	Timeout           time.Duration `mapstructure:"timeout"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Burst             int           `mapstructure:"burst"`
}

type LicenseSettings struct {
	CacheTTL              time.Duration `mapstructure:"cache_ttl"`
	RemoteTimeout         time.Duration `mapstructure:"remote_timeout"`
	MaterializeFromRemote bool          `mapstructure:"materialize_from_remote"`
}

type AuditSettings struct {
	HashKey    string `mapstructure:"hash_key"`
	OpsChannel string `mapstructure:"ops_channel"`
}

type AdminSettings struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	Issuer    string        `mapstructure:"issuer"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
}

// DSN renders the pgx connection string.
func (p PostgresSettings) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		p.User,
		p.Password,
		p.Host,
		p.Port,
		p.Database,
		p.SSLMode,
	)
}

func Load() (*AppConfig, error) {
	v := viper.New()

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix("LICEINC")

	setDefaults(v)

	if err := bindEnvs(v, []string{
		"app.name",
		"app.env",
		"app.host",
		"app.port",
		"app.version",
		"app.allowed_origins",
		"grpc.host",
		"grpc.port",
		"postgres.host",
		"postgres.port",
		"postgres.user",
		"postgres.password",
		"postgres.database",
		"postgres.ssl_mode",
		"postgres.max_conns",
		"postgres.min_conns",
		"postgres.max_conn_lifetime",
		"postgres.max_conn_idle_time",
		"postgres.health_check_period",
		"postgres.statement_timeout",
		"postgres.lock_timeout",
		"postgres.auto_migrate",
		"redis.host",
		"redis.port",
		"redis.db",
		"redis.password",
		"redis.tls_enabled",
		"redis.pool_size",
		"redis.license_prefix",
		"redis.attempt_prefix",
		"redis.rate_limit_prefix",
		"kafka.brokers",
		"kafka.topic_prefix",
		"kafka.async",
		"kafka.billing_topic",
		"kafka.consumer_group",
		"telemetry.metrics_port",
		"telemetry.otlp_endpoint",
		"telemetry.service_name",
		"telemetry.sampling_rate",
		"rate_limit.window_duration",
		"rate_limit.verify_max_attempts",
		"rate_limit.activate_max_attempts",
		"rate_limit.http_window",
		"rate_limit.http_max_requests",
		"rate_limit.license_key_requests",
		"marketplace.base_url",
		"marketplace.token",
		"marketplace.timeout",
		"marketplace.requests_per_second",
		"marketplace.burst",
		"license.cache_ttl",
		"license.remote_timeout",
		"license.materialize_from_remote",
		"audit.hash_key",
		"audit.ops_channel",
		"admin.jwt_secret",
		"admin.issuer",
		"admin.token_ttl",
	}); err != nil {
		return nil, err
	}

	v.AutomaticEnv()

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *AppConfig) validate() error {
	if c.App.Env == "production" {
		if strings.TrimSpace(c.Audit.HashKey) == "" {
			return fmt.Errorf("audit.hash_key is required in production")
		}
		if len(c.Admin.JWTSecret) < 32 {
			return fmt.Errorf("admin.jwt_secret must be at least 32 bytes in production")
		}
	}
	if c.RateLimit.WindowDuration <= 0 {
		return fmt.Errorf("rate_limit.window_duration must be positive")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "liceinc")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.host", "0.0.0.0")
	v.SetDefault("app.port", 8080)
	v.SetDefault("app.version", "dev")
	v.SetDefault("app.allowed_origins", []string{"*"})

	v.SetDefault("grpc.host", "0.0.0.0")
	v.SetDefault("grpc.port", 50051)

	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.user", "liceinc")
	v.SetDefault("postgres.password", "liceinc_password")
	v.SetDefault("postgres.database", "liceinc")
	v.SetDefault("postgres.ssl_mode", "disable")
	v.SetDefault("postgres.max_conns", 10)
	v.SetDefault("postgres.min_conns", 2)
	v.SetDefault("postgres.max_conn_lifetime", "60m")
	v.SetDefault("postgres.max_conn_idle_time", "15m")
	v.SetDefault("postgres.health_check_period", "30s")
	v.SetDefault("postgres.statement_timeout", "15s")
	v.SetDefault("postgres.lock_timeout", "5s")
	v.SetDefault("postgres.auto_migrate", true)

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.tls_enabled", false)
	v.SetDefault("redis.pool_size", 20)
	v.SetDefault("redis.license_prefix", "liceinc:license")
	v.SetDefault("redis.attempt_prefix", "liceinc:attempts")
	v.SetDefault("redis.rate_limit_prefix", "liceinc:ratelimit")

	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic_prefix", "liceinc")
	v.SetDefault("kafka.async", true)
	v.SetDefault("kafka.billing_topic", "billing.license-commands")
	v.SetDefault("kafka.consumer_group", "liceinc-billing")

	v.SetDefault("telemetry.metrics_port", 9090)
	v.SetDefault("telemetry.otlp_endpoint", "http://localhost:4318")
	v.SetDefault("telemetry.service_name", "liceinc")
	v.SetDefault("telemetry.sampling_rate", 1.0)

	v.SetDefault("rate_limit.window_duration", "1h")
	v.SetDefault("rate_limit.verify_max_attempts", 60)
	v.SetDefault("rate_limit.activate_max_attempts", 20)
	v.SetDefault("rate_limit.http_window", "1m")
	v.SetDefault("rate_limit.http_max_requests", 120)
	v.SetDefault("rate_limit.license_key_requests", 30)

	v.SetDefault("marketplace.base_url", "https://api.envato.com")
	v.SetDefault("marketplace.token", "")
	v.SetDefault("marketplace.timeout", "10s")
	v.SetDefault("marketplace.requests_per_second", 5.0)
	v.SetDefault("marketplace.burst", 10)

	v.SetDefault("license.cache_ttl", "5m")
	v.SetDefault("license.remote_timeout", "10s")
	v.SetDefault("license.materialize_from_remote", true)

	v.SetDefault("audit.hash_key", "")
	v.SetDefault("audit.ops_channel", "license-failures")

	v.SetDefault("admin.jwt_secret", "")
	v.SetDefault("admin.issuer", "liceinc")
	v.SetDefault("admin.token_ttl", "1h")
}

func bindEnvs(v *viper.Viper, keys []string) error {
	for _, key := range keys {
		envKey := strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, "LICEINC_"+envKey, envKey); err != nil {
			return fmt.Errorf("bind env for %s: %w", key, err)
		}
	}
	return nil
}
