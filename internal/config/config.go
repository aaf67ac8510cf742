// Package config loads and holds all engine configuration.
// Settings are layered: defaults → aegis-config.json → environment
// variables (env vars win).
package config

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"
)

// Config holds the full engine configuration.
type Config struct {
	HTTPPort int    `json:"httpPort"`
	LogLevel string `json:"logLevel"`

	VaultRootKey       string `json:"-"` // never serialized; AEGIS_VAULT_ROOT_KEY only
	VaultTTLSeconds    int    `json:"vaultTTLSeconds"`
	VaultMaxSessions   int    `json:"vaultMaxSessions"`
	SweepIntervalSecs  int    `json:"sweepIntervalSeconds"`
	SanitizeTimeoutSec int    `json:"sanitizeTimeoutSeconds"`

	ModelName       string `json:"modelName"`
	Language        string `json:"language"`
	ManagementToken string `json:"-"` // never serialized; AEGIS_MANAGEMENT_TOKEN only

	AsyncWorkerPoolSize int `json:"asyncWorkerPoolSize"`
}

// VaultTTL returns VaultTTLSeconds as a time.Duration.
func (c *Config) VaultTTL() time.Duration {
	return time.Duration(c.VaultTTLSeconds) * time.Second
}

// SweepInterval returns SweepIntervalSecs as a time.Duration.
func (c *Config) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalSecs) * time.Second
}

// SanitizeTimeout returns SanitizeTimeoutSec as a time.Duration.
func (c *Config) SanitizeTimeout() time.Duration {
	return time.Duration(c.SanitizeTimeoutSec) * time.Second
}

// Load returns config with defaults overridden by aegis-config.json and
// environment variables, in that order. It returns an error if a required
// setting (the vault root key) is missing after all layers are applied.
func Load() (*Config, error) {
	cfg := defaults()
	loadFile(cfg, "aegis-config.json")
	loadEnv(cfg)
	if cfg.VaultRootKey == "" {
		return nil, fmt.Errorf("config: AEGIS_VAULT_ROOT_KEY is required")
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		HTTPPort:            8443,
		LogLevel:            "info",
		VaultTTLSeconds:     900,
		VaultMaxSessions:    10_000,
		SweepIntervalSecs:   60,
		SanitizeTimeoutSec:  5,
		ModelName:           "",
		Language:            "en",
		AsyncWorkerPoolSize: 4,
	}
}

func loadFile(cfg *Config, path string) {
	data, err := os.ReadFile(path) //nolint:gosec // G703: path is a controlled config file path, not user input
	if err != nil {
		return // file is optional
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		log.Printf("[CONFIG] Warning: could not parse %s: %v", path, err)
	} else {
		log.Printf("[CONFIG] Loaded %s", path)
	}
}

func loadEnv(cfg *Config) {
	if v := os.Getenv("AEGIS_HTTP_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.HTTPPort = n
		}
	}
	if v := os.Getenv("AEGIS_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("AEGIS_VAULT_ROOT_KEY"); v != "" {
		cfg.VaultRootKey = v
	}
	if v := os.Getenv("AEGIS_VAULT_TTL_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.VaultTTLSeconds = n
		}
	}
	if v := os.Getenv("AEGIS_VAULT_MAX_SESSIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.VaultMaxSessions = n
		}
	}
	if v := os.Getenv("AEGIS_SWEEP_INTERVAL_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.SweepIntervalSecs = n
		}
	}
	if v := os.Getenv("AEGIS_SANITIZE_TIMEOUT_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.SanitizeTimeoutSec = n
		}
	}
	if v := os.Getenv("AEGIS_MODEL_NAME"); v != "" {
		cfg.ModelName = v
	}
	if v := os.Getenv("AEGIS_LANGUAGE"); v != "" {
		cfg.Language = v
	}
	if v := os.Getenv("AEGIS_MANAGEMENT_TOKEN"); v != "" {
		cfg.ManagementToken = v
	}
}
