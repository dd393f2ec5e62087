package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	ModeServer  = "SERVER"
	ModeWorker  = "WORKER"
	ModeMigrate = "MIGRATE"
	ModeSeed    = "SEED"

	BackendMongo    = "mongo"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

type Config struct {
	Mode           string
	Env            string // "local" or "prod"
	ServerPort     string
	StorageBackend string

	MongoURL    string
	MongoDBName string
	PostgresURL string

	RedisURL          string
	CacheTTL          time.Duration
	WorkerConcurrency int

	NatsURL string

	JWTSecret         string
	TrustedUserHeader string
	CORSOrigins       []string

	OtelEndpoint string
}

func Load() Config {
	return Config{
		Mode:              getEnv("APP_MODE", ModeServer),
		Env:               getEnv("APP_ENV", "local"),
		ServerPort:        getEnv("SERVER_PORT", "8080"),
		StorageBackend:    getEnv("STORAGE_BACKEND", BackendMongo),
		MongoURL:          getEnv("MONGO_URL", ""),
		MongoDBName:       getEnv("MONGO_DBNAME", "linkfeed"),
		PostgresURL:       getEnv("POSTGRES_URL", ""),
		RedisURL:          getEnv("REDIS_URL", ""),
		CacheTTL:          getDuration("CACHE_TTL", 10*time.Minute),
		WorkerConcurrency: getInt("WORKER_CONCURRENCY", 4),
		NatsURL:           getEnv("NATS_URL", ""),
		JWTSecret:         getEnv("JWT_SECRET", ""),
		TrustedUserHeader: getEnv("TRUSTED_USER_HEADER", ""),
		CORSOrigins:       getList("CORS_ORIGINS", []string{"*"}),
		OtelEndpoint:      getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
	}
}

// Validate checks that the settings required by the selected mode are present.
func (c Config) Validate() error {
	switch c.Mode {
	case ModeServer, ModeWorker, ModeMigrate, ModeSeed:
	default:
		return fmt.Errorf("unexpected app mode: %s", c.Mode)
	}

	switch c.StorageBackend {
	case BackendMongo:
		if c.MongoURL == "" {
			return fmt.Errorf("empty mongo url")
		}
	case BackendPostgres:
		if c.PostgresURL == "" {
			return fmt.Errorf("empty postgres url")
		}
	case BackendMemory:
		if c.Mode != ModeServer {
			return fmt.Errorf("memory storage only runs in %s mode", ModeServer)
		}
	default:
		return fmt.Errorf("unexpected storage backend: %s", c.StorageBackend)
	}

	if c.Mode == ModeMigrate && c.StorageBackend != BackendPostgres {
		return fmt.Errorf("%s mode needs the %s backend", ModeMigrate, BackendPostgres)
	}
	if c.Mode == ModeWorker && c.RedisURL == "" {
		return fmt.Errorf("empty broker url")
	}
	if c.Mode == ModeServer && c.JWTSecret == "" && c.TrustedUserHeader == "" {
		return fmt.Errorf("either JWT_SECRET or TRUSTED_USER_HEADER is required")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return strings.TrimSpace(v)
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v, err := strconv.Atoi(getEnv(key, ""))
	if err != nil {
		return fallback
	}
	return v
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v, err := time.ParseDuration(getEnv(key, ""))
	if err != nil {
		return fallback
	}
	return v
}

func getList(key string, fallback []string) []string {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback
	}
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
