// Package config loads the companion server and device configuration from
// YAML or TOML files with PHASEWATCH_ environment overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "PHASEWATCH_"

type Config struct {
	Server    ServerConfig    `yaml:"server" toml:"server"`
	Database  DatabaseConfig  `yaml:"database" toml:"database"`
	Auth      AuthConfig      `yaml:"auth" toml:"auth"`
	Tailscale TailscaleConfig `yaml:"tailscale" toml:"tailscale"`
	MCP       MCPConfig       `yaml:"mcp" toml:"mcp"`
}

type ServerConfig struct {
	Host string `yaml:"host" toml:"host"`
	Port int    `yaml:"port" toml:"port"`
	// Timezone is the IANA zone used for bedtime/waketime summaries.
	Timezone string `yaml:"timezone" toml:"timezone"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host" toml:"host"`
	Port     int    `yaml:"port" toml:"port"`
	Name     string `yaml:"name" toml:"name"`
	User     string `yaml:"user" toml:"user"`
	Password string `yaml:"password" toml:"password"`
	SSLMode  string `yaml:"sslmode" toml:"sslmode"`
}

type AuthConfig struct {
	APIKey string `yaml:"api_key" toml:"api_key"`
}

type TailscaleConfig struct {
	Enabled  bool   `yaml:"enabled" toml:"enabled"`
	Hostname string `yaml:"hostname" toml:"hostname"`
	StateDir string `yaml:"state_dir" toml:"state_dir"`
}

type MCPConfig struct {
	Enabled bool `yaml:"enabled" toml:"enabled"`
}

// DSN returns a PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	sslmode := d.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, sslmode)
}

// Location resolves the summary timezone, defaulting to UTC.
func (s ServerConfig) Location() (*time.Location, error) {
	if s.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(s.Timezone)
}

// Load reads server config from a YAML (or .toml) file, then applies
// environment variable overrides:
//
//	PHASEWATCH_SERVER_HOST, PHASEWATCH_SERVER_PORT, PHASEWATCH_SERVER_TIMEZONE,
//	PHASEWATCH_DB_HOST, PHASEWATCH_DB_PORT, PHASEWATCH_DB_NAME,
//	PHASEWATCH_DB_USER, PHASEWATCH_DB_PASSWORD, PHASEWATCH_DB_SSLMODE,
//	PHASEWATCH_AUTH_API_KEY,
//	PHASEWATCH_TAILSCALE_ENABLED, PHASEWATCH_TAILSCALE_HOSTNAME,
//	PHASEWATCH_TAILSCALE_STATE_DIR, PHASEWATCH_MCP_ENABLED
func Load(path string) (*Config, error) {
	cfg := &Config{
		Tailscale: TailscaleConfig{Hostname: "phasewatch", StateDir: "tsnet-state"},
		MCP:       MCPConfig{Enabled: true},
	}
	if err := decodeFile(path, cfg); err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

// decodeFile unmarshals path into v, choosing TOML for .toml files and YAML
// otherwise.
func decodeFile(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if err := toml.Unmarshal(data, v); err != nil {
			return fmt.Errorf("parsing config file: %w", err)
		}
		return nil
	}
	if err := yaml.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}
	return nil
}

func envString(name string, dst *string) {
	if v := os.Getenv(EnvPrefix + name); v != "" {
		*dst = v
	}
}

func envInt(name string, dst *int) {
	if v := os.Getenv(EnvPrefix + name); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envBool(name string, dst *bool) {
	if v := os.Getenv(EnvPrefix + name); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func applyEnvOverrides(cfg *Config) {
	envString("SERVER_HOST", &cfg.Server.Host)
	envInt("SERVER_PORT", &cfg.Server.Port)
	envString("SERVER_TIMEZONE", &cfg.Server.Timezone)
	envString("DB_HOST", &cfg.Database.Host)
	envInt("DB_PORT", &cfg.Database.Port)
	envString("DB_NAME", &cfg.Database.Name)
	envString("DB_USER", &cfg.Database.User)
	envString("DB_PASSWORD", &cfg.Database.Password)
	envString("DB_SSLMODE", &cfg.Database.SSLMode)
	envString("AUTH_API_KEY", &cfg.Auth.APIKey)
	envBool("TAILSCALE_ENABLED", &cfg.Tailscale.Enabled)
	envString("TAILSCALE_HOSTNAME", &cfg.Tailscale.Hostname)
	envString("TAILSCALE_STATE_DIR", &cfg.Tailscale.StateDir)
	envBool("MCP_ENABLED", &cfg.MCP.Enabled)
}

func (c *Config) validate() error {
	if c.Server.Port == 0 && !c.Tailscale.Enabled {
		return fmt.Errorf("server.port is required")
	}
	if c.Database.Host == "" {
		return fmt.Errorf("database.host is required")
	}
	if c.Database.Port == 0 {
		return fmt.Errorf("database.port is required")
	}
	if c.Database.Name == "" {
		return fmt.Errorf("database.name is required")
	}
	if c.Database.User == "" {
		return fmt.Errorf("database.user is required")
	}
	if c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key is required")
	}
	if c.Tailscale.Enabled && c.Tailscale.Hostname == "" {
		return fmt.Errorf("tailscale.hostname is required when tailscale is enabled")
	}
	if _, err := c.Server.Location(); err != nil {
		return fmt.Errorf("server.timezone: %w", err)
	}
	return nil
}
