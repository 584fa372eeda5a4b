package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// AppConfig is read from a YAML file under the user's home directory.
// All fields are optional; defaults are applied via the accessor helpers.
//
// Example (~/.parlor/config.yaml):
//
// server:
//   host: 127.0.0.1
//   port: 8090
// database:
//   path: /var/lib/parlor/parlor.db
// auth:
//   jwt_secret: change-me
//   token_ttl_hours: 72
// reply:
//   min_delay_seconds: 3
//   max_delay_seconds: 5
//
// Notes:
// - If the config file does not exist, Load returns defaults without error.
// - If the config file exists but cannot be parsed, Load returns an error.
// - Port must be between 1 and 65535.
// - PARLOR_JWT_SECRET overrides auth.jwt_secret when set.

type AppConfig struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	Reply    ReplyConfig    `yaml:"reply"`
}

type ServerConfig struct {
	Host *string `yaml:"host"`
	Port *int    `yaml:"port"`
}

type DatabaseConfig struct {
	Path *string `yaml:"path"`
}

type AuthConfig struct {
	JWTSecret     *string `yaml:"jwt_secret"`
	TokenTTLHours *int    `yaml:"token_ttl_hours"`
}

type ReplyConfig struct {
	MinDelaySeconds *int `yaml:"min_delay_seconds"`
	MaxDelaySeconds *int `yaml:"max_delay_seconds"`
}

const (
	DefaultHost          = "127.0.0.1"
	DefaultPort          = 8090
	DefaultJWTSecret     = "parlor-dev-secret"
	DefaultTokenTTLHours = 72
	DefaultMinDelay      = 3
	DefaultMaxDelay      = 5
)

// DefaultPaths returns the config dir and config file path.
func DefaultPaths() (configDir string, configFile string, err error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", "", fmt.Errorf("get user home dir: %w", err)
	}
	configDir = filepath.Join(home, ".parlor")
	configFile = filepath.Join(configDir, "config.yaml")
	return configDir, configFile, nil
}

// Load reads ~/.parlor/config.yaml.
// If the file doesn't exist, it returns a default config and nil error.
func Load() (*AppConfig, string, error) {
	_, configFile, err := DefaultPaths()
	if err != nil {
		return nil, "", err
	}

	cfg := &AppConfig{}
	// Defaults are applied via the accessor helpers.

	b, err := os.ReadFile(configFile)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, configFile, nil
		}
		return nil, "", fmt.Errorf("read config file %s: %w", configFile, err)
	}

	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, "", fmt.Errorf("parse yaml config %s: %w", configFile, err)
	}

	// Validate
	host := cfg.Host()
	if strings.TrimSpace(host) == "" {
		return nil, "", fmt.Errorf("invalid server.host (empty) in %s", configFile)
	}

	port := cfg.Port()
	if port < 1 || port > 65535 {
		return nil, "", fmt.Errorf("invalid server.port %d in %s", port, configFile)
	}

	minDelay, maxDelay := cfg.MinDelaySeconds(), cfg.MaxDelaySeconds()
	if minDelay < 0 || maxDelay < minDelay {
		return nil, "", fmt.Errorf("invalid reply delay bounds [%d, %d] in %s", minDelay, maxDelay, configFile)
	}

	return cfg, configFile, nil
}

// EnsureDefaultConfig writes a default config file if it doesn't already exist.
// It is safe to call on startup.
func EnsureDefaultConfig() (string, error) {
	configDir, configFile, err := DefaultPaths()
	if err != nil {
		return "", err
	}

	if _, err := os.Stat(configFile); err == nil {
		return configFile, nil
	}

	if err := os.MkdirAll(configDir, 0o700); err != nil {
		return "", fmt.Errorf("create config dir %s: %w", configDir, err)
	}

	defaultCfg := AppConfig{Server: ServerConfig{Host: ptr(DefaultHost), Port: ptr(DefaultPort)}}
	b, err := yaml.Marshal(&defaultCfg)
	if err != nil {
		return "", fmt.Errorf("marshal default config: %w", err)
	}

	// Write with restrictive permissions.
	if err := os.WriteFile(configFile, b, 0o600); err != nil {
		return "", fmt.Errorf("write default config file %s: %w", configFile, err)
	}

	return configFile, nil
}

func (c *AppConfig) Host() string {
	if c == nil || c.Server.Host == nil {
		return DefaultHost
	}
	v := strings.TrimSpace(*c.Server.Host)
	if v == "" {
		return DefaultHost
	}
	return v
}

func (c *AppConfig) Port() int {
	if c == nil || c.Server.Port == nil {
		return DefaultPort
	}
	return *c.Server.Port
}

// DatabasePath returns the sqlite file path, defaulting to
// ~/.parlor/parlor.db next to the config file.
func (c *AppConfig) DatabasePath() string {
	if c != nil && c.Database.Path != nil && strings.TrimSpace(*c.Database.Path) != "" {
		return *c.Database.Path
	}
	configDir, _, err := DefaultPaths()
	if err != nil {
		return "parlor.db"
	}
	return filepath.Join(configDir, "parlor.db")
}

// JWTSecret returns the token signing secret. The PARLOR_JWT_SECRET
// environment variable wins over the config file.
func (c *AppConfig) JWTSecret() string {
	if v := strings.TrimSpace(os.Getenv("PARLOR_JWT_SECRET")); v != "" {
		return v
	}
	if c != nil && c.Auth.JWTSecret != nil && strings.TrimSpace(*c.Auth.JWTSecret) != "" {
		return *c.Auth.JWTSecret
	}
	return DefaultJWTSecret
}

func (c *AppConfig) TokenTTLHours() int {
	if c == nil || c.Auth.TokenTTLHours == nil || *c.Auth.TokenTTLHours <= 0 {
		return DefaultTokenTTLHours
	}
	return *c.Auth.TokenTTLHours
}

func (c *AppConfig) MinDelaySeconds() int {
	if c == nil || c.Reply.MinDelaySeconds == nil {
		return DefaultMinDelay
	}
	return *c.Reply.MinDelaySeconds
}

func (c *AppConfig) MaxDelaySeconds() int {
	if c == nil || c.Reply.MaxDelaySeconds == nil {
		return DefaultMaxDelay
	}
	return *c.Reply.MaxDelaySeconds
}

func ptr[T any](v T) *T { return &v }
