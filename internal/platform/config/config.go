package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is the full process configuration.
type Config struct {
	Server    Server
	Redis     RedisConfig
	Postgres  PostgresConfig
	Kafka     KafkaConfig
	Presence  PresenceConfig
	RateLimit RateLimitConfig
	Log       LogConfig
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr          string
	JWTSigningKey string
	JWTIssuer     string

	// JWTAudience is the audience of end-user tokens accepted on /ws.
	JWTAudience string

	// JWTProducerAudience is the audience of service tokens accepted on the
	// internal routes. It must differ from JWTAudience.
	JWTProducerAudience string

	// AllowedOrigins restricts websocket upgrades; empty allows any origin.
	AllowedOrigins []string
}

// RedisConfig configures the presence registry connection.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// PostgresConfig configures the read-only membership database.
type PostgresConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// KafkaConfig configures the event trigger consumer. Disabled when Brokers is empty.
type KafkaConfig struct {
	Brokers []string
	Topic   string
	GroupID string
}

// Enabled reports whether a trigger consumer should run.
func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0 && k.Topic != ""
}

// PresenceConfig tunes leases and fan-out.
type PresenceConfig struct {
	LeaseTTL            time.Duration
	RefreshInterval     time.Duration
	SweepInterval       time.Duration
	DispatchConcurrency int
	NameCacheTTL        time.Duration
	KeyPrefix           string
}

// RateLimitConfig throttles websocket handshakes per client address.
// A zero ConnectLimit disables it.
type RateLimitConfig struct {
	ConnectLimit  int
	ConnectWindow time.Duration
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string
	Format string
}

// FromEnv builds a Config from environment variables so main stays lean.
// A .env file in the working directory is loaded first when present.
func FromEnv() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Server: Server{
			Addr:                getString("COLLABHUB_ADDR", ":8080"),
			JWTSigningKey:       getString("JWT_SIGNING_KEY", ""),
			JWTIssuer:           getString("JWT_ISSUER", "collabhub"),
			JWTAudience:         getString("JWT_AUDIENCE", "collabhub-realtime"),
			JWTProducerAudience: getString("JWT_PRODUCER_AUDIENCE", "collabhub-producers"),
			AllowedOrigins:      getList("WS_ALLOWED_ORIGINS"),
		},
		Redis: RedisConfig{
			URL:          getString("REDIS_URL", ""),
			PoolSize:     getInt("REDIS_POOL_SIZE", 20),
			MinIdleConns: getInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  getDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getDuration("REDIS_READ_TIMEOUT", 2*time.Second),
			WriteTimeout: getDuration("REDIS_WRITE_TIMEOUT", 2*time.Second),
		},
		Postgres: PostgresConfig{
			DSN:             getString("DATABASE_URL", ""),
			MaxOpenConns:    getInt("DATABASE_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    getInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getDuration("DATABASE_CONN_MAX_LIFETIME", 30*time.Minute),
		},
		Kafka: KafkaConfig{
			Brokers: getList("KAFKA_BROKERS"),
			Topic:   getString("REALTIME_EVENTS_TOPIC", "realtime.events"),
			GroupID: getString("REALTIME_EVENTS_GROUP", "collabhub-realtime"),
		},
		Presence: PresenceConfig{
			LeaseTTL:            getDuration("PRESENCE_LEASE_TTL", 90*time.Second),
			RefreshInterval:     getDuration("PRESENCE_REFRESH_INTERVAL", 30*time.Second),
			SweepInterval:       getDuration("PRESENCE_SWEEP_INTERVAL", time.Minute),
			DispatchConcurrency: getInt("DISPATCH_CONCURRENCY", 16),
			NameCacheTTL:        getDuration("NAME_CACHE_TTL", time.Minute),
			KeyPrefix:           getString("PRESENCE_KEY_PREFIX", "presence"),
		},
		RateLimit: RateLimitConfig{
			ConnectLimit:  getInt("WS_CONNECT_LIMIT", 60),
			ConnectWindow: getDuration("WS_CONNECT_WINDOW", time.Minute),
		},
		Log: LogConfig{
			Level:  getString("LOG_LEVEL", "info"),
			Format: getString("LOG_FORMAT", "json"),
		},
	}

	if cfg.Server.JWTSigningKey == "" {
		// Use a default for development - should be overridden in production
		cfg.Server.JWTSigningKey = "dev-secret-key-change-in-production"
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings that would break lease semantics.
func (c Config) Validate() error {
	p := c.Presence
	if p.LeaseTTL <= 0 {
		return fmt.Errorf("PRESENCE_LEASE_TTL must be positive")
	}
	if p.RefreshInterval <= 0 || p.RefreshInterval >= p.LeaseTTL {
		return fmt.Errorf("PRESENCE_REFRESH_INTERVAL must be positive and shorter than PRESENCE_LEASE_TTL")
	}
	if p.SweepInterval <= 0 {
		return fmt.Errorf("PRESENCE_SWEEP_INTERVAL must be positive")
	}
	if p.DispatchConcurrency <= 0 {
		return fmt.Errorf("DISPATCH_CONCURRENCY must be positive")
	}
	if p.NameCacheTTL <= 0 {
		return fmt.Errorf("NAME_CACHE_TTL must be positive")
	}
	if c.Server.JWTProducerAudience == "" || c.Server.JWTProducerAudience == c.Server.JWTAudience {
		return fmt.Errorf("JWT_PRODUCER_AUDIENCE must be set and differ from JWT_AUDIENCE")
	}
	if c.RateLimit.ConnectLimit > 0 && c.RateLimit.ConnectWindow <= 0 {
		return fmt.Errorf("WS_CONNECT_WINDOW must be positive when WS_CONNECT_LIMIT is set")
	}
	return nil
}

func getString(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func getList(key string) []string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
