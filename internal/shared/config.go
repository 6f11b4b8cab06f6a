package shared

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Config struct {
	AppEnv         string
	LogLevel       string
	HTTPAddr       string
	MetricsAddr    string
	MySQLDSN       string
	RedisAddr      string
	RedisDB        int
	RedisPass      string
	CacheTTL       time.Duration
	SourcesFile    string
	IngestInterval time.Duration
	IngestOnStart  bool
	Workers        int
	FetchTimeout   time.Duration
	FetchRPS       int
	ReadTimeout    time.Duration
}

// Load reads the process configuration from the environment. Values from
// .env and .env.local are applied first without overriding real variables.
func Load() Config {
	for _, f := range []string{".env", ".env.local"} {
		_ = godotenv.Load(f)
	}

	atoi := func(k string, def int) int {
		if v := os.Getenv(k); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				return n
			}
			log.Warn().Str("key", k).Str("value", v).Msg("invalid integer, using default")
		}
		return def
	}
	c := Config{
		AppEnv:         env("APP_ENV", "prod"),
		LogLevel:       env("LOG_LEVEL", "info"),
		HTTPAddr:       httpAddr(),
		MetricsAddr:    env("METRICS_ADDR", ""),
		MySQLDSN:       env("MYSQL_DSN", "root:root@tcp(localhost:3306)/stayhub?parseTime=true&charset=utf8mb4&loc=UTC"),
		RedisAddr:      env("REDIS_ADDR", ""),
		RedisPass:      env("REDIS_PASSWORD", ""),
		RedisDB:        atoi("REDIS_DB", 0),
		CacheTTL:       time.Duration(atoi("CACHE_TTL_SECONDS", 60)) * time.Second,
		SourcesFile:    env("SOURCES_FILE", ""),
		IngestInterval: duration("INGEST_INTERVAL", 5*time.Minute),
		IngestOnStart:  boolean("INGEST_ON_START", false),
		Workers:        atoi("INGEST_WORKERS", 4),
		FetchTimeout:   duration("FETCH_TIMEOUT", 5*time.Minute),
		FetchRPS:       atoi("FETCH_RPS", 5),
		ReadTimeout:    duration("READ_TIMEOUT", 15*time.Second),
	}
	if c.Workers < 1 {
		c.Workers = 1
	}
	return c
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

// httpAddr prefers HTTP_ADDR; a bare PORT is accepted for platform deployments.
func httpAddr() string {
	if v := os.Getenv("HTTP_ADDR"); v != "" {
		return v
	}
	if p := os.Getenv("PORT"); p != "" {
		return ":" + strings.TrimPrefix(p, ":")
	}
	return ":8080"
}

// duration accepts a Go duration ("90s", "5m") or plain milliseconds ("300000").
func duration(k string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	if ms, err := strconv.ParseInt(v, 10, 64); err == nil && ms > 0 {
		return time.Duration(ms) * time.Millisecond
	}
	if d, err := time.ParseDuration(v); err == nil && d > 0 {
		return d
	}
	log.Warn().Str("key", k).Str("value", v).Dur("default", def).Msg("invalid duration, using default")
	return def
}

func boolean(k string, def bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Warn().Str("key", k).Str("value", v).Msg("invalid boolean, using default")
		return def
	}
	return b
}
