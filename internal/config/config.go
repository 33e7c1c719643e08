package config

import (
	"os"
	"strconv"
)

// Config holds all configuration for the application.
//
// APIURL and WSURL are deliberately optional: an unset backend URL makes the
// proxy gateway answer with a structured configuration error, and an unset
// delivery service URL puts the broadcast dispatcher in degraded mode.
// DatabaseURL and RedisURL are optional too; the broadcast audit log and
// rate limiting are disabled when they are unset.
type Config struct {
	Port               string
	APIURL             string
	WSURL              string
	DatabaseURL        string
	RedisURL           string
	RateLimitPerMinute int
}

// Load reads configuration from environment variables.
func Load() *Config {
	return &Config{
		Port:               getEnv("PORT", "8080"),
		APIURL:             getEnv("API_URL", ""),
		WSURL:              getEnv("WS_URL", ""),
		DatabaseURL:        getEnv("DATABASE_URL", ""),
		RedisURL:           getEnv("REDIS_URL", ""),
		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 120),
	}
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
	}
	return fallback
}
