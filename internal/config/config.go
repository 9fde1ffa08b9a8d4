package config

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/prperemyshlev/adlink-service/pkg/database"
	"github.com/sethvargo/go-envconfig"
)

// Flow state storage backends
const (
	FlowStateBackendPostgres = "postgres"
	FlowStateBackendRedis    = "redis"
)

type Config struct {
	Server    ServerConfig    `env:",prefix=SERVER_"`
	Postgres  PostgresConfig  `env:",prefix=POSTGRES_"`
	Redis     RedisConfig     `env:",prefix=REDIS_"`
	JWT       JWTConfig       `env:",prefix=JWT_"`
	Security  SecurityConfig  `env:",prefix="`
	CORS      CORSConfig      `env:",prefix=CORS_"`
	OAuth     OAuthConfig     `env:",prefix=OAUTH_"`
	Platforms PlatformsConfig `env:",prefix="`
	Audit     AuditConfig     `env:",prefix=AUDIT_"`
	Env       string          `env:"ENV,default=development"`
}

type ServerConfig struct {
	Port         string   `env:"PORT,default=8080"`
	Host         string   `env:"HOST,default=0.0.0.0"`
	ReadTimeout  Duration `env:"READ_TIMEOUT,default=15s"`
	WriteTimeout Duration `env:"WRITE_TIMEOUT,default=30s"`
}

type PostgresConfig struct {
	Host     string `env:"HOST,default=localhost"`
	Port     string `env:"PORT,default=5432"`
	User     string `env:"USER,default=adlink"`
	Password string `env:"PASSWORD,default=adlink_password"`
	DBName   string `env:"DB,default=adlink_db"`
	SSLMode  string `env:"SSLMODE,default=disable"`

	MaxOpenConns    int      `env:"MAX_OPEN_CONNS,default=25"`
	MaxIdleConns    int      `env:"MAX_IDLE_CONNS,default=5"`
	ConnMaxLifetime Duration `env:"CONN_MAX_LIFETIME,default=30m"`
}

type RedisConfig struct {
	Host     string `env:"HOST,default=localhost"`
	Port     string `env:"PORT,default=6379"`
	Password string `env:"PASSWORD,default="`
	DB       int    `env:"DB,default=0"`
}

// JWTConfig holds the secret shared with the issuer of API access tokens
type JWTConfig struct {
	Secret string `env:"SECRET,required"`
}

type SecurityConfig struct {
	RateLimitRequests  int      `env:"RATE_LIMIT_REQUESTS,default=20"`
	RateLimitWindow    Duration `env:"RATE_LIMIT_WINDOW,default=1m"`
	TokenEncryptionKey string   `env:"TOKEN_ENCRYPTION_KEY,required"`
}

type CORSConfig struct {
	AllowedOrigins []string `env:"ALLOWED_ORIGINS,default=http://localhost:3000"`
	AllowedMethods []string `env:"ALLOWED_METHODS,default=GET,POST,DELETE,OPTIONS"`
	AllowedHeaders []string `env:"ALLOWED_HEADERS,default=Content-Type,Authorization"`
}

// OAuthConfig tunes the outbound provider calls and flow state housekeeping
type OAuthConfig struct {
	HTTPTimeout      Duration `env:"HTTP_TIMEOUT,default=15s"`
	FlowStateBackend string   `env:"FLOW_STATE_BACKEND,default=postgres"`
	PurgeInterval    Duration `env:"FLOW_STATE_PURGE_INTERVAL,default=5m"`
}

// AuditConfig enables publishing audit events to Kafka when brokers are set
type AuditConfig struct {
	KafkaBrokers []string `env:"KAFKA_BROKERS"`
	KafkaTopic   string   `env:"KAFKA_TOPIC,default=adlink.audit"`
}

// DSN returns PostgreSQL connection string
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.DBName, p.SSLMode)
}

// Pool returns the connection pool settings
func (p PostgresConfig) Pool() database.PoolOptions {
	return database.PoolOptions{
		MaxOpenConns:    p.MaxOpenConns,
		MaxIdleConns:    p.MaxIdleConns,
		ConnMaxLifetime: p.ConnMaxLifetime.Duration,
	}
}

// Address returns Redis connection address
func (r RedisConfig) Address() string {
	return fmt.Sprintf("%s:%s", r.Host, r.Port)
}

// Load loads configuration from environment variables
func Load(ctx context.Context) (*Config, error) {
	var config Config

	if err := envconfig.Process(ctx, &config); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate checks values envconfig cannot express as tags
func (c *Config) Validate() error {
	if len(c.JWT.Secret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 characters long")
	}

	key, err := base64.StdEncoding.DecodeString(c.Security.TokenEncryptionKey)
	if err != nil || len(key) != 32 {
		return fmt.Errorf("TOKEN_ENCRYPTION_KEY must be 32 bytes encoded as standard base64")
	}

	switch c.OAuth.FlowStateBackend {
	case FlowStateBackendPostgres, FlowStateBackendRedis:
	default:
		return fmt.Errorf("OAUTH_FLOW_STATE_BACKEND must be %q or %q, got %q",
			FlowStateBackendPostgres, FlowStateBackendRedis, c.OAuth.FlowStateBackend)
	}

	if c.OAuth.HTTPTimeout.Duration <= 0 {
		return fmt.Errorf("OAUTH_HTTP_TIMEOUT must be positive")
	}

	if c.OAuth.PurgeInterval.Duration <= 0 {
		return fmt.Errorf("OAUTH_FLOW_STATE_PURGE_INTERVAL must be positive")
	}

	return nil
}
