// Package config loads server settings from the environment.
//
// A .env file in the working directory is read first (godotenv); variables
// already set in the environment win. Command-line flags in cmd/server
// override both.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
)

type Config struct {
	// HTTP Server
	Port           int
	AllowedOrigins []string

	// Database (":memory:" for an ephemeral store)
	DBPath string

	// Logging: debug, info, warn, error
	LogLevel string

	// Overdue sweep
	SweepEnabled bool
	SweepSpec    string
}

// Load reads .env (if present) and the environment.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Port:           getEnvInt("PORT", 8080),
		AllowedOrigins: getEnvList("CORS_ORIGINS", []string{"http://localhost:5173", "http://localhost:8080"}),
		DBPath:         getEnv("DB_PATH", "payplan.db"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		SweepEnabled:   getEnvBool("OVERDUE_SWEEP_ENABLED", true),
		SweepSpec:      getEnv("OVERDUE_SWEEP_SPEC", "@hourly"),
	}
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var problems []string

	if c.Port < 1 || c.Port > 65535 {
		problems = append(problems, fmt.Sprintf("invalid port %d: must be between 1 and 65535", c.Port))
	}
	if c.DBPath == "" {
		problems = append(problems, "database path cannot be empty")
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		problems = append(problems, fmt.Sprintf("invalid log level %q: must be debug, info, warn or error", c.LogLevel))
	}
	if c.SweepEnabled {
		if _, err := cron.ParseStandard(c.SweepSpec); err != nil {
			problems = append(problems, fmt.Sprintf("invalid overdue sweep spec %q: %v", c.SweepSpec, err))
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(problems, "; "))
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
