package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Bus drivers.
const (
	BusLocal = "local"
	BusRedis = "redis"
	BusAMQP  = "amqp"
)

// Server holds the support API configuration.
type Server struct {
	HTTPAddr         string
	DBURL            string // empty selects the in-memory repository
	RedisURL         string // empty selects the in-memory cache and the inline queue
	AMQPURL          string
	BusDriver        string
	JWTSecret        string // empty enables the X-Support-* dev headers
	CORSOrigins      []string
	AssistantEnabled bool
	StatusCacheTTL   time.Duration
	LogLevel         slog.Level
}

// Client holds settings for the cobra client binaries.
type Client struct {
	APIURL       string
	WSURL        string
	Token        string
	Role         string // dev-mode identity when the server runs without JWT_SECRET
	Subject      string
	TokenFile    string
	PollInterval time.Duration
	PageSize     int
}

// LoadDotEnv loads .env when present. A missing file is not an error.
func LoadDotEnv(files ...string) error {
	err := godotenv.Load(files...)
	if err != nil && errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

func LoadServer() (Server, error) {
	cfg := Server{
		HTTPAddr:         env("HTTP_ADDR", ":8080"),
		DBURL:            env("DB_URL", ""),
		RedisURL:         env("REDIS_URL", ""),
		AMQPURL:          env("AMQP_URL", ""),
		BusDriver:        strings.ToLower(env("BUS_DRIVER", BusLocal)),
		JWTSecret:        env("JWT_SECRET", ""),
		CORSOrigins:      list(env("CORS_ORIGINS", "*")),
		AssistantEnabled: true,
		StatusCacheTTL:   30 * time.Second,
	}

	var err error
	if cfg.AssistantEnabled, err = boolEnv("ASSISTANT_ENABLED", true); err != nil {
		return cfg, err
	}
	if cfg.StatusCacheTTL, err = durationEnv("STATUS_CACHE_TTL", cfg.StatusCacheTTL); err != nil {
		return cfg, err
	}
	if err := cfg.LogLevel.UnmarshalText([]byte(env("LOG_LEVEL", "info"))); err != nil {
		return cfg, fmt.Errorf("config: LOG_LEVEL: %w", err)
	}

	switch cfg.BusDriver {
	case BusLocal:
	case BusRedis:
		if cfg.RedisURL == "" {
			return cfg, errors.New("config: BUS_DRIVER=redis requires REDIS_URL")
		}
	case BusAMQP:
		if cfg.AMQPURL == "" {
			return cfg, errors.New("config: BUS_DRIVER=amqp requires AMQP_URL")
		}
	default:
		return cfg, fmt.Errorf("config: unknown BUS_DRIVER %q", cfg.BusDriver)
	}
	return cfg, nil
}

func LoadClient() (Client, error) {
	cfg := Client{
		APIURL:       strings.TrimRight(env("SUPPORT_API_URL", "http://localhost:8080/api/v1/support"), "/"),
		WSURL:        env("SUPPORT_WS_URL", ""),
		Token:        env("SUPPORT_TOKEN", ""),
		Role:         strings.ToUpper(env("SUPPORT_ROLE", "")),
		Subject:      env("SUPPORT_SUBJECT", ""),
		TokenFile:    env("SUPPORT_TOKEN_FILE", ""),
		PollInterval: 3 * time.Second,
		PageSize:     20,
	}
	if cfg.WSURL == "" {
		cfg.WSURL = wsURLFor(cfg.APIURL)
	}

	var err error
	if cfg.PollInterval, err = durationEnv("SUPPORT_POLL_INTERVAL", cfg.PollInterval); err != nil {
		return cfg, err
	}
	if v := env("SUPPORT_PAGE_SIZE", ""); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return cfg, fmt.Errorf("config: SUPPORT_PAGE_SIZE must be a positive integer, got %q", v)
		}
		cfg.PageSize = n
	}
	return cfg, nil
}

// wsURLFor derives the push endpoint from the API base: http(s)://host/api/v1/support -> ws(s)://host/api/v1/support/ws.
func wsURLFor(api string) string {
	switch {
	case strings.HasPrefix(api, "https://"):
		return "wss://" + strings.TrimPrefix(api, "https://") + "/ws"
	case strings.HasPrefix(api, "http://"):
		return "ws://" + strings.TrimPrefix(api, "http://") + "/ws"
	}
	return api + "/ws"
}

func env(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func list(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func boolEnv(key string, def bool) (bool, error) {
	v := env(key, "")
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def, fmt.Errorf("config: %s: %w", key, err)
	}
	return b, nil
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	v := env(key, "")
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def, fmt.Errorf("config: %s must be a positive duration, got %q", key, v)
	}
	return d, nil
}
