// ABOUTME: Configuration loading and parsing for mosaicd
// ABOUTME: Supports YAML files with environment variable expansion and validation

package config

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// Config represents the complete mosaicd configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	Registry RegistryConfig `yaml:"registry"`
	Canvas   CanvasConfig   `yaml:"canvas"`
	Engine   EngineConfig   `yaml:"engine"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// ServerConfig holds server address configuration
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// AuthConfig holds authentication configuration
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
}

// RegistryConfig points at the token registry that owns mint and transfer
// truth
type RegistryConfig struct {
	// BaseURL of the registry's ownership API. Empty means the in-memory
	// static oracle is used (development only).
	BaseURL string `yaml:"base_url"`
	// Identity the registry authenticates as when reporting transfers.
	Identity string `yaml:"identity"`
}

// CanvasConfig holds grid bounds configuration
type CanvasConfig struct {
	// MaxCoordinate is the inclusive maximum on both axes. Zero means the
	// default 100x100 grid.
	MaxCoordinate uint32 `yaml:"max_coordinate"`
}

// EngineConfig seeds the stored engine policy on first start. Later changes
// go through the admin update operation, not this file.
type EngineConfig struct {
	Admin               string `yaml:"admin"`
	ColorChangeFee      uint64 `yaml:"color_change_fee"`
	RateLimit           uint32 `yaml:"rate_limit"`
	RateLimitWindow     uint64 `yaml:"rate_limit_window"`
	RequiresPayment     bool   `yaml:"requires_payment"`
	RateLimitingEnabled bool   `yaml:"rate_limiting_enabled"`
	RoyaltyPercent      uint8  `yaml:"royalty_percent"`
	MintPrice           uint64 `yaml:"mint_price"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig holds metrics endpoint configuration
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Load reads a configuration file from the given path and returns a parsed
// Config. Environment variables in the format ${VAR_NAME} are expanded.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw YAML content
	expandedData := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding
// environment variable values. If the environment variable is not set, it
// is replaced with an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// Validate checks that all required configuration fields are present and
// valid. Returns an error describing the first validation failure
// encountered.
func (c *Config) Validate() error {
	if c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required")
	}
	if c.Registry.Identity == "" {
		return fmt.Errorf("registry.identity is required")
	}
	if c.Engine.Admin == "" {
		return fmt.Errorf("engine.admin is required")
	}
	if c.Engine.RoyaltyPercent > 100 {
		return fmt.Errorf("engine.royalty_percent must be in [0, 100]")
	}
	return nil
}
