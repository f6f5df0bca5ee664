package api

import (
	"os"
	"strconv"
	"time"
)

// Config holds the server configuration, loaded from environment variables.
type Config struct {
	ListenAddr      string
	DBPath          string
	ShutdownTimeout time.Duration
	AllowSignup     bool
	RateLimitAuth   int    // signup requests per IP per minute
	RateLimitMutate int    // mutate requests per user per minute
	RateLimitOther  int    // everything else per user per minute
	LogFormat       string // "json" (default) or "text"
	LogLevel        string // "debug", "info" (default), "warn", "error"
	LogFile         string // rotating log file; empty = stderr only
}

// LoadConfig reads configuration from environment variables with sensible defaults.
func LoadConfig() Config {
	cfg := Config{
		ListenAddr:      ":8080",
		DBPath:          "./data/expenses.db",
		ShutdownTimeout: 30 * time.Second,
		AllowSignup:     true,
		RateLimitAuth:   10,
		RateLimitMutate: 120,
		RateLimitOther:  300,
		LogFormat:       "json",
		LogLevel:        "info",
	}

	if v := os.Getenv("EXPENSES_LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv("EXPENSES_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("EXPENSES_SHUTDOWN_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.ShutdownTimeout = d
		}
	}
	if v := os.Getenv("EXPENSES_ALLOW_SIGNUP"); v == "false" || v == "0" {
		cfg.AllowSignup = false
	}
	if v := os.Getenv("EXPENSES_RATE_LIMIT_AUTH"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.RateLimitAuth = n
		}
	}
	if v := os.Getenv("EXPENSES_RATE_LIMIT_MUTATE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.RateLimitMutate = n
		}
	}
	if v := os.Getenv("EXPENSES_RATE_LIMIT_OTHER"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.RateLimitOther = n
		}
	}
	if v := os.Getenv("EXPENSES_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}
	if v := os.Getenv("EXPENSES_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("EXPENSES_LOG_FILE"); v != "" {
		cfg.LogFile = v
	}

	return cfg
}
