// Package config holds runtime settings and the persisted policy document.
// Settings come from environment variables with sensible defaults; the policy
// document (thresholds and ASL triggers) lives in a YAML file that operators
// edit by hand and the control plane rewrites on threshold updates.
package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds global settings for the control plane.
// All settings can be configured via environment variables.
type Config struct {
	// === Core Settings ===
	ListenAddr string // Address the HTTP server binds (default ":8000")
	PolicyFile string // Path to the YAML policy document

	// === Storage ===
	PostgresDSN string // Postgres connection string; empty = in-memory store

	// === Escalation Queue ===
	RedisAddr     string // Redis address; empty = in-memory queue
	RedisPassword string
	RedisDB       int

	// === Notifications ===
	EscalationWebhook string // URL POSTed on every escalation; empty = disabled

	// === Ingest ===
	IngestConcurrency int // Records scored concurrently per batch (default 8)
}

// NewDefaultConfig creates a Config with sensible defaults.
// All settings can be overridden via environment variables.
func NewDefaultConfig() *Config {
	return &Config{
		ListenAddr: GetEnv("TRUSTPLANE_LISTEN", ":8000"),
		PolicyFile: GetEnv("TRUSTPLANE_POLICY_FILE", "policy/policy_map.yaml"),

		PostgresDSN: GetEnv("TRUSTPLANE_POSTGRES_DSN", ""),

		RedisAddr:     GetEnv("TRUSTPLANE_REDIS_ADDR", ""),
		RedisPassword: GetEnv("TRUSTPLANE_REDIS_PASSWORD", ""),
		RedisDB:       GetEnvInt("TRUSTPLANE_REDIS_DB", 0),

		EscalationWebhook: GetEnv("TRUSTPLANE_ESCALATION_WEBHOOK", ""),

		IngestConcurrency: clampInt(GetEnvInt("TRUSTPLANE_INGEST_CONCURRENCY", 8), 1, 256),
	}
}

// Validate checks the configuration for values that cannot work at runtime.
func (c *Config) Validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("listen address must not be empty")
	}
	if c.IngestConcurrency <= 0 {
		return fmt.Errorf("ingest concurrency must be positive, got %d", c.IngestConcurrency)
	}
	return nil
}

// clampInt ensures a value is within bounds.
func clampInt(val, min, max int) int {
	if val < min {
		return min
	}
	if val > max {
		return max
	}
	return val
}

// Helper functions for environment variable parsing.
// Exported for use by other packages.

// GetEnv returns the value of an environment variable or a default value.
func GetEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

// GetEnvBool returns the boolean value of an environment variable or a default value.
func GetEnvBool(key string, defaultValue bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return defaultValue
}

// GetEnvFloat returns the float64 value of an environment variable or a default value.
func GetEnvFloat(key string, defaultValue float64) float64 {
	if v := os.Getenv(key); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err == nil {
			return f
		}
	}
	return defaultValue
}

// GetEnvInt returns the integer value of an environment variable or a default value.
func GetEnvInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err == nil {
			return i
		}
	}
	return defaultValue
}
