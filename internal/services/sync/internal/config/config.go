package config

import (
	"net/url"
	"time"

	"github.com/gamma-omg/partyparty/internal/pkg/env"
)

const (
	AuthHMAC = "hmac"
	AuthOIDC = "oidc"

	StoreRemote = "remote"
	StoreMemory = "memory"

	CacheMemory = "memory"
	CacheRedis  = "redis"
	CacheNone   = "none"

	JournalMemory   = "memory"
	JournalPostgres = "postgres"

	LogDebug = "debug"
	LogInfo  = "info"
	LogWarn  = "warn"
	LogError = "error"
)

type Config struct {
	Log       logConfig
	HTTP      httpConfig
	Auth      authConfig
	Store     storeConfig
	Reconcile reconcileConfig
	Cache     cacheConfig
	Redis     redisConfig
	Journal   journalConfig
	DB        dbConfig
}

type logConfig struct {
	Level string
	JSON  bool
}

type httpConfig struct {
	ListenAddr      string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

type authConfig struct {
	Mode         string
	Secret       string
	Issuer       string
	OIDCIssuer   string
	OIDCAudience string
}

type storeConfig struct {
	Backend   string
	Endpoint  *url.URL
	Timeout   time.Duration
	RateLimit float64
	RateBurst int
}

type reconcileConfig struct {
	MaxInFlight int
}

type cacheConfig struct {
	Backend string
	TTL     time.Duration
	MaxKeys int64
}

type redisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

type journalConfig struct {
	Backend string
}

type dbConfig struct {
	Host       string
	Port       string
	User       string
	Password   string
	Name       string
	Migrations string
}

func FromEnv() Config {
	cfg := Config{
		Log: logConfig{
			Level: env.OneOf("LOG_LEVEL", LogInfo, LogDebug, LogInfo, LogWarn, LogError),
			JSON:  env.Bool("LOG_JSON", false),
		},
		HTTP: httpConfig{
			ListenAddr:      env.String("HTTP_LISTEN_ADDR", ":8080"),
			ReadTimeout:     env.Duration("HTTP_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    env.Duration("HTTP_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:     env.Duration("HTTP_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: env.Duration("HTTP_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Auth: authConfig{
			Mode: env.OneOf("AUTH_MODE", AuthHMAC, AuthHMAC, AuthOIDC),
		},
		Store: storeConfig{
			Backend:   env.OneOf("STORE_BACKEND", StoreRemote, StoreRemote, StoreMemory),
			Endpoint:  env.Url("STORE_ENDPOINT", &url.URL{Scheme: "http", Host: "localhost:5008"}),
			Timeout:   env.Duration("STORE_TIMEOUT", 15*time.Second),
			RateLimit: env.Float64("STORE_RATE_LIMIT", 20),
			RateBurst: env.Int("STORE_RATE_BURST", 10),
		},
		Reconcile: reconcileConfig{
			MaxInFlight: env.Int("RECONCILE_MAX_IN_FLIGHT", 8),
		},
		Cache: cacheConfig{
			Backend: env.OneOf("CACHE_BACKEND", CacheMemory, CacheMemory, CacheRedis, CacheNone),
			TTL:     env.Duration("CACHE_TTL", 30*time.Second),
			MaxKeys: env.Int64("CACHE_MAX_KEYS", 10000),
		},
		Journal: journalConfig{
			Backend: env.OneOf("JOURNAL_BACKEND", JournalMemory, JournalMemory, JournalPostgres),
		},
	}

	switch cfg.Auth.Mode {
	case AuthHMAC:
		cfg.Auth.Secret = env.RequireString("AUTH_SECRET")
		cfg.Auth.Issuer = env.String("AUTH_ISSUER", "")
	case AuthOIDC:
		cfg.Auth.OIDCIssuer = env.RequireString("AUTH_OIDC_ISSUER")
		cfg.Auth.OIDCAudience = env.RequireString("AUTH_OIDC_AUDIENCE")
	}

	if cfg.Cache.Backend == CacheRedis {
		cfg.Redis = redisConfig{
			Host:     env.String("REDIS_HOST", "localhost"),
			Port:     env.String("REDIS_PORT", "6379"),
			Password: env.String("REDIS_PASSWORD", ""),
			DB:       env.Int("REDIS_DB", 0),
		}
	}

	cfg.DB = DBFromEnv()
	return cfg
}

// DBFromEnv reads only the journal database settings; the migrate command needs nothing else.
func DBFromEnv() dbConfig {
	return dbConfig{
		Host:       env.String("DB_HOST", "localhost"),
		Port:       env.String("DB_PORT", "5432"),
		User:       env.String("DB_USER", "partysync"),
		Password:   env.String("DB_PASSWORD", ""),
		Name:       env.String("DB_NAME", "partysync"),
		Migrations: env.String("DB_MIGRATIONS", "internal/services/sync/db/migrations"),
	}
}
