// Package config provides application configuration with multi-source priority.
//
// Sources (highest to lowest):
//  1. Environment variables with the LECD_ prefix (runtime override)
//  2. Config file (~/.lec-dashboard/config.yaml)
//  3. Defaults
//
// Sensitive values (database password) are never logged. Validation uses
// sentinel errors so callers can branch with errors.Is().
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

var (
	// ErrInvalidProvider indicates the model provider is not supported.
	ErrInvalidProvider = errors.New("invalid provider")

	// ErrInvalidModelName indicates the model name is empty or malformed.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidPostgresHost indicates the PostgreSQL host is empty.
	ErrInvalidPostgresHost = errors.New("invalid PostgreSQL host")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidPostgresDBName indicates the database name is empty.
	ErrInvalidPostgresDBName = errors.New("invalid PostgreSQL database name")

	// ErrInvalidListenAddr indicates the HTTP listen address is malformed.
	ErrInvalidListenAddr = errors.New("invalid listen address")
)

// Supported model providers.
const (
	ProviderGemini = "gemini"
	ProviderOllama = "ollama"
)

// Defaults applied when neither the config file nor the environment sets
// a value.
const (
	DefaultListenAddr = "127.0.0.1:8787"
	DefaultProvider   = ProviderGemini
	DefaultModelName  = "gemini-2.5-flash"
	DefaultOllamaHost = "http://localhost:11434"

	DefaultPostgresHost    = "localhost"
	DefaultPostgresPort    = 5432
	DefaultPostgresUser    = "lecd"
	DefaultPostgresDBName  = "lecd"
	DefaultPostgresSSLMode = "disable"
)

// Config holds all application settings.
type Config struct {
	// HTTP server
	ListenAddr string
	TrustProxy bool // trust X-Real-IP/X-Forwarded-For (behind reverse proxy)
	RateBurst  int  // per-IP rate limiter burst (0 = default)

	// Model
	Provider   string // "gemini" | "ollama"
	ModelName  string
	OllamaHost string

	// PostgreSQL
	PostgresHost     string
	PostgresPort     int
	PostgresUser     string
	PostgresPassword string
	PostgresDBName   string
	PostgresSSLMode  string

	// Logging
	LogJSON  bool
	LogDebug bool
}

// Load reads configuration from file and environment.
// A missing config file is not an error; defaults apply.
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("server.listen_addr", DefaultListenAddr)
	v.SetDefault("server.trust_proxy", false)
	v.SetDefault("server.rate_burst", 0)
	v.SetDefault("model.provider", DefaultProvider)
	v.SetDefault("model.name", DefaultModelName)
	v.SetDefault("model.ollama_host", DefaultOllamaHost)
	v.SetDefault("postgres.host", DefaultPostgresHost)
	v.SetDefault("postgres.port", DefaultPostgresPort)
	v.SetDefault("postgres.user", DefaultPostgresUser)
	v.SetDefault("postgres.password", "")
	v.SetDefault("postgres.dbname", DefaultPostgresDBName)
	v.SetDefault("postgres.sslmode", DefaultPostgresSSLMode)
	v.SetDefault("log.json", false)
	v.SetDefault("log.debug", false)

	v.SetEnvPrefix("LECD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if dir, err := configDir(); err == nil {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(dir)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("reading config file: %w", err)
			}
		}
	}

	cfg := &Config{
		ListenAddr:       v.GetString("server.listen_addr"),
		TrustProxy:       v.GetBool("server.trust_proxy"),
		RateBurst:        v.GetInt("server.rate_burst"),
		Provider:         v.GetString("model.provider"),
		ModelName:        v.GetString("model.name"),
		OllamaHost:       v.GetString("model.ollama_host"),
		PostgresHost:     v.GetString("postgres.host"),
		PostgresPort:     v.GetInt("postgres.port"),
		PostgresUser:     v.GetString("postgres.user"),
		PostgresPassword: v.GetString("postgres.password"),
		PostgresDBName:   v.GetString("postgres.dbname"),
		PostgresSSLMode:  v.GetString("postgres.sslmode"),
		LogJSON:          v.GetBool("log.json"),
		LogDebug:         v.GetBool("log.debug"),
	}

	if err := cfg.parseDatabaseURL(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks settings needed by every command.
func (c *Config) Validate() error {
	switch c.Provider {
	case ProviderGemini, ProviderOllama:
	default:
		return fmt.Errorf("%w: %q (supported: gemini, ollama)", ErrInvalidProvider, c.Provider)
	}
	if c.ModelName == "" {
		return fmt.Errorf("%w: empty", ErrInvalidModelName)
	}
	return c.validatePostgres()
}

// ValidateServe checks settings needed by the serve command.
func (c *Config) ValidateServe() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.ListenAddr == "" || !strings.Contains(c.ListenAddr, ":") {
		return fmt.Errorf("%w: %q", ErrInvalidListenAddr, c.ListenAddr)
	}
	return nil
}

func (c *Config) validatePostgres() error {
	if c.PostgresHost == "" {
		return fmt.Errorf("%w: empty", ErrInvalidPostgresHost)
	}
	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: %d", ErrInvalidPostgresPort, c.PostgresPort)
	}
	if c.PostgresDBName == "" {
		return fmt.Errorf("%w: empty", ErrInvalidPostgresDBName)
	}
	return nil
}

// configDir returns the configuration directory, creating it if needed.
func configDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	dir := filepath.Join(home, ".lec-dashboard")
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("creating config directory: %w", err)
	}
	return dir, nil
}
