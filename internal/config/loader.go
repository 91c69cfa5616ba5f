package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config captures environment driven configuration values for the
// availability service.
type Config struct {
	SQLiteDSN string
	Timezone  string
	HTTPPort  int

	HaukiBaseURL      string
	HaukiFetchTimeout time.Duration
	HaukiLookahead    time.Duration
	HaukiFetchRange   time.Duration
	HaukiSyncInterval time.Duration

	AMQPURL   string
	AMQPQueue string

	RedisAddr      string
	CacheTTL       time.Duration
	CacheSize      int
	SearchParallel int
}

// Load reads an optional .env file and parses configuration from the
// process environment. Optional fields get sensible defaults; invalid values
// are reported together.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		SQLiteDSN:         "file:availability.db?_foreign_keys=on",
		Timezone:          "Europe/Helsinki",
		HTTPPort:          8080,
		HaukiFetchTimeout: 10 * time.Second,
		HaukiLookahead:    30 * 24 * time.Hour,
		HaukiFetchRange:   90 * 24 * time.Hour,
		HaukiSyncInterval: time.Hour,
		AMQPQueue:         "availability.refresh",
		CacheTTL:          30 * time.Second,
		CacheSize:         256,
		SearchParallel:    8,
	}

	missing := make([]string, 0, 1)
	invalid := make([]string, 0, 2)

	if dsn := strings.TrimSpace(os.Getenv("AVAILABILITY_SQLITE_DSN")); dsn != "" {
		cfg.SQLiteDSN = dsn
	}
	if tz := strings.TrimSpace(os.Getenv("AVAILABILITY_TIMEZONE")); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			invalid = append(invalid, "AVAILABILITY_TIMEZONE")
		} else {
			cfg.Timezone = tz
		}
	}

	if baseURL := strings.TrimSpace(os.Getenv("AVAILABILITY_HAUKI_URL")); baseURL == "" {
		missing = append(missing, "AVAILABILITY_HAUKI_URL")
	} else {
		cfg.HaukiBaseURL = baseURL
	}

	parseDuration := func(name string, target *time.Duration) {
		value := strings.TrimSpace(os.Getenv(name))
		if value == "" {
			return
		}
		d, err := time.ParseDuration(value)
		if err != nil || d <= 0 {
			invalid = append(invalid, name)
			return
		}
		*target = d
	}
	parseDuration("AVAILABILITY_HAUKI_FETCH_TIMEOUT", &cfg.HaukiFetchTimeout)
	parseDuration("AVAILABILITY_HAUKI_LOOKAHEAD", &cfg.HaukiLookahead)
	parseDuration("AVAILABILITY_HAUKI_FETCH_RANGE", &cfg.HaukiFetchRange)
	parseDuration("AVAILABILITY_HAUKI_SYNC_INTERVAL", &cfg.HaukiSyncInterval)
	parseDuration("AVAILABILITY_CACHE_TTL", &cfg.CacheTTL)

	cfg.AMQPURL = strings.TrimSpace(os.Getenv("AVAILABILITY_AMQP_URL"))
	if queue := strings.TrimSpace(os.Getenv("AVAILABILITY_AMQP_QUEUE")); queue != "" {
		cfg.AMQPQueue = queue
	}
	cfg.RedisAddr = strings.TrimSpace(os.Getenv("AVAILABILITY_REDIS_ADDR"))

	parseInt := func(name string, target *int) {
		value := strings.TrimSpace(os.Getenv(name))
		if value == "" {
			return
		}
		n, err := strconv.Atoi(value)
		if err != nil || n <= 0 {
			invalid = append(invalid, name)
			return
		}
		*target = n
	}
	parseInt("AVAILABILITY_HTTP_PORT", &cfg.HTTPPort)
	parseInt("AVAILABILITY_CACHE_SIZE", &cfg.CacheSize)
	parseInt("AVAILABILITY_SEARCH_PARALLEL", &cfg.SearchParallel)

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("required environment variables are not set: %s", strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("environment variables have invalid values: %s", strings.Join(invalid, ", "))
	}

	return cfg, nil
}
