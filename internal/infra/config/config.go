package config

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type AppConfig struct {
	App           AppSettings           `mapstructure:"app"`
	Postgres      PostgresSettings      `mapstructure:"postgres"`
	Redis         RedisSettings         `mapstructure:"redis"`
	Kafka         KafkaSettings         `mapstructure:"kafka"`
	JWT           JWTSettings           `mapstructure:"jwt"`
	GRPC          GRPCSettings          `mapstructure:"grpc"`
	Telemetry     TelemetrySettings     `mapstructure:"telemetry"`
	Argon2        Argon2Settings        `mapstructure:"argon2"`
	Password      PasswordSettings      `mapstructure:"password"`
	Dashboard     DashboardSettings     `mapstructure:"dashboard"`
	Authorization AuthorizationSettings `mapstructure:"authorization"`
	RateLimit     RateLimitSettings     `mapstructure:"rate_limit"`
}

type AppSettings struct {
	Name        string   `mapstructure:"name"`
	Env         string   `mapstructure:"env"`
	Host        string   `mapstructure:"host"`
	Port        int      `mapstructure:"port"`
	LogLevel    string   `mapstructure:"log_level"`
	CORSOrigins []string `mapstructure:"cors_origins"`
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
}

// RedisSettings configures Redis connection and TLS
type RedisSettings struct {
	Host                  string `mapstructure:"host"`
	Port                  int    `mapstructure:"port"`
	DB                    int    `mapstructure:"db"`
	Password              string `mapstructure:"password"`
	TLSEnabled            bool   `mapstructure:"tls_enabled"`
	PermissionCachePrefix string `mapstructure:"permission_cache_prefix"`
}

// KafkaSettings configures Kafka producer
type KafkaSettings struct {
	Brokers     []string `mapstructure:"brokers"`
	TopicPrefix string   `mapstructure:"topic_prefix"`
	// Acks is the required acknowledgement level: none, local or all.
	Acks     string `mapstructure:"acks"`
	ClientID string `mapstructure:"client_id"`
}

// Argon2Settings configures Argon2id password hashing parameters
type Argon2Settings struct {
	Memory      uint32 `mapstructure:"memory"`
	Iterations  uint32 `mapstructure:"iterations"`
	Parallelism uint8  `mapstructure:"parallelism"`
	SaltLength  uint32 `mapstructure:"salt_length"`
	KeyLength   uint32 `mapstructure:"key_length"`
}

// PasswordSettings configures the registration password policy.
// MinStrength is a zxcvbn score from 0 to 4; 0 disables the strength check.
type PasswordSettings struct {
	MinLength   int `mapstructure:"min_length"`
	MinStrength int `mapstructure:"min_strength"`
}

type JWTSettings struct {
	Secret         string        `mapstructure:"secret"`
	Issuer         string        `mapstructure:"issuer"`
	AccessTokenTTL time.Duration `mapstructure:"access_token_ttl"`
}

type TelemetrySettings struct {
	MetricsPort  int     `mapstructure:"metrics_port"`
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	ServiceName  string  `mapstructure:"service_name"`
	SamplingRate float64 `mapstructure:"sampling_rate"`
}

// DashboardSettings configures the effective permission cache.
type DashboardSettings struct {
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

// AuthorizationSettings controls permission checks on the admin API.
type AuthorizationSettings struct {
	Enforce bool `mapstructure:"enforce"`
}

// RateLimitSettings throttles login attempts per client IP. A zero limit disables it.
type RateLimitSettings struct {
	LoginMaxAttempts int           `mapstructure:"login_max_attempts"`
	Window           time.Duration `mapstructure:"window"`
	KeyPrefix        string        `mapstructure:"key_prefix"`
}

func Load() (*AppConfig, error) {
	v := viper.New()

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix(envPrefix)

	setDefaults(v)

	if err := bindEnvs(v, reflect.TypeOf(AppConfig{}), ""); err != nil {
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
	if c.App.Env == "production" && c.JWT.Secret == defaultJWTSecret {
		return fmt.Errorf("jwt.secret must be set in production")
	}
	if c.Password.MinStrength < 0 || c.Password.MinStrength > 4 {
		return fmt.Errorf("password.min_strength must be between 0 and 4, got %d", c.Password.MinStrength)
	}
	return nil
}

const (
	envPrefix        = "RBAC"
	defaultJWTSecret = "change-me-in-production"
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "rbac-admin")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.host", "0.0.0.0")
	v.SetDefault("app.port", 8080)
	v.SetDefault("app.log_level", "")
	v.SetDefault("app.cors_origins", []string{})

	v.SetDefault("grpc.host", "0.0.0.0")
	v.SetDefault("grpc.port", 50051)

	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.user", "rbac")
	v.SetDefault("postgres.password", "rbac_password")
	v.SetDefault("postgres.database", "rbac")
	v.SetDefault("postgres.ssl_mode", "disable")
	v.SetDefault("postgres.max_conns", 10)
	v.SetDefault("postgres.min_conns", 2)
	v.SetDefault("postgres.max_conn_lifetime", "60m")
	v.SetDefault("postgres.max_conn_idle_time", "15m")
	v.SetDefault("postgres.health_check_period", "30s")

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.tls_enabled", false)
	v.SetDefault("redis.permission_cache_prefix", "rbac:user_permissions")

	// An empty broker list switches to the logging stub publisher.
	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic_prefix", "rbac")
	v.SetDefault("kafka.acks", "local")
	v.SetDefault("kafka.client_id", "rbac-admin")

	v.SetDefault("jwt.secret", defaultJWTSecret)
	v.SetDefault("jwt.issuer", "rbac-admin")
	v.SetDefault("jwt.access_token_ttl", "1h")

	v.SetDefault("telemetry.metrics_port", 9090)
	v.SetDefault("telemetry.otlp_endpoint", "")
	v.SetDefault("telemetry.service_name", "rbac-admin")
	v.SetDefault("telemetry.sampling_rate", 1.0)

	v.SetDefault("argon2.memory", 65536) // 64 MB
	v.SetDefault("argon2.iterations", 3)
	v.SetDefault("argon2.parallelism", 4)
	v.SetDefault("argon2.salt_length", 16)
	v.SetDefault("argon2.key_length", 32)

	v.SetDefault("password.min_length", 8)
	v.SetDefault("password.min_strength", 0)

	v.SetDefault("dashboard.cache_ttl", "5m")

	v.SetDefault("authorization.enforce", false)

	v.SetDefault("rate_limit.login_max_attempts", 10)
	v.SetDefault("rate_limit.window", "1m")
	v.SetDefault("rate_limit.key_prefix", "rbac:rate_limit")
}

// bindEnvs walks the mapstructure tags of t and binds every leaf key to both
// RBAC_<KEY> and <KEY>, e.g. postgres.max_conns to RBAC_POSTGRES_MAX_CONNS.
func bindEnvs(v *viper.Viper, t reflect.Type, prefix string) error {
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		tag := field.Tag.Get("mapstructure")
		if tag == "" || tag == "-" {
			continue
		}
		key := tag
		if prefix != "" {
			key = prefix + "." + tag
		}

		if field.Type.Kind() == reflect.Struct {
			if err := bindEnvs(v, field.Type, key); err != nil {
				return err
			}
			continue
		}

		envKey := strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, envPrefix+"_"+envKey, envKey); err != nil {
			return fmt.Errorf("bind env for %s: %w", key, err)
		}
	}
	return nil
}
