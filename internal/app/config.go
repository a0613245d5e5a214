package app

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	HTTPAddr         string
	BackendURL       string
	RequestTimeout   time.Duration
	LogLevel         string
	LogFormat        string
	UserAgent        string
	RedisURL         string
	CacheTTL         time.Duration
	CacheDisabled    bool
	ProbeConcurrency int
	ProbeTimeout     time.Duration
	SnippetLength    int
	DefaultPageSize  int
}

func LoadConfig() Config {
	return Config{
		HTTPAddr:         getEnv("HTTP_ADDR", ":8080"),
		BackendURL:       getEnv("DIRECTORY_BACKEND_URL", "http://localhost:5000"),
		RequestTimeout:   time.Duration(getEnvInt("DIRECTORY_TIMEOUT_SECONDS", 15)) * time.Second,
		LogLevel:         strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat:        strings.ToLower(getEnv("LOG_FORMAT", "text")),
		UserAgent:        getEnv("DIRECTORY_USER_AGENT", "directory-sync/1.0"),
		RedisURL:         getEnv("REDIS_URL", ""),
		CacheTTL:         time.Duration(getEnvInt("DIRECTORY_CACHE_TTL_MINUTES", 5)) * time.Minute,
		CacheDisabled:    getEnvBool("DIRECTORY_CACHE_DISABLED", false),
		ProbeConcurrency: getEnvInt("HERO_PROBE_CONCURRENCY", 8),
		ProbeTimeout:     time.Duration(getEnvInt("HERO_PROBE_TIMEOUT_SECONDS", 10)) * time.Second,
		SnippetLength:    getEnvInt("SEARCH_SNIPPET_LENGTH", 120),
		DefaultPageSize:  getEnvInt("DIRECTORY_PAGE_SIZE", 12),
	}
}

func getEnv(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func getEnvInt(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	raw := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if raw == "" {
		return fallback
	}
	switch raw {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}
