// Package config provides runtime configuration values for the service.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds configuration knobs for the HTTP server and storage backends.
type Config struct {
	HTTPAddr        string
	ServiceName     string
	Env             string
	ShutdownTimeout time.Duration

	// Storage selects the repository backend: "memory" or "mysql".
	Storage  string
	MySQLDSN string

	// RedisAddr enables the Redis cart store when non-empty.
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	CartTTL time.Duration
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func atoienv(key string, def int) int {
	v := getenv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func durenvs(key string, defSec int) time.Duration {
	sec := atoienv(key, defSec)
	return time.Duration(sec) * time.Second
}

// Load collects configuration from environment with defaults.
func Load() Config {
	return Config{
		HTTPAddr:        getenv("HTTP_ADDR", ":8080"),
		ServiceName:     getenv("SERVICE_NAME", "commerce"),
		Env:             getenv("ENV", "dev"),
		ShutdownTimeout: durenvs("SHUTDOWN_TIMEOUT", 10),
		Storage:         getenv("STORAGE", "memory"),
		MySQLDSN:        getenv("MYSQL_DSN", ""),
		RedisAddr:       getenv("REDIS_ADDR", ""),
		RedisPassword:   getenv("REDIS_PASSWORD", ""),
		RedisDB:         atoienv("REDIS_DB", 0),
		CartTTL:         time.Duration(atoienv("CART_TTL_DAYS", 30)) * 24 * time.Hour,
	}
}
