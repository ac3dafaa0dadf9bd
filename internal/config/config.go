// Package config loads and saves the application configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/pelletier/go-toml/v2"
)

// DirName is the configuration directory created under the user's home.
const DirName = ".commander-builder"

// Config represents the application configuration.
type Config struct {
	// Deck persistence backend
	Backend BackendConfig `toml:"backend"`

	// Card data API
	Cards CardsConfig `toml:"cards"`

	// Card cache configuration
	Cache CacheConfig `toml:"cache"`

	// Local database
	Storage StorageConfig `toml:"storage"`

	// Local API server
	Server ServerConfig `toml:"server"`

	// Application configuration
	App AppConfig `toml:"app"`
}

// BackendConfig contains deck persistence service settings.
type BackendConfig struct {
	BaseURL  string `toml:"base_url"`  // e.g. http://localhost:3839/api
	APIKey   string `toml:"api_key"`   // Sent as x-api-key
	ClientID string `toml:"client_id"` // Sent as x-client-id
	Timeout  string `toml:"timeout"`   // Request timeout (e.g., "30s")
}

// CardsConfig contains card lookup settings.
type CardsConfig struct {
	BaseURL   string `toml:"base_url"`   // Card API base URL
	RateLimit string `toml:"rate_limit"` // Minimum delay between requests (e.g., "100ms")
	Timeout   string `toml:"timeout"`    // Request timeout
}

// CacheConfig contains caching settings.
type CacheConfig struct {
	Enabled bool   `toml:"enabled"`  // Enable card caching
	TTL     string `toml:"ttl"`      // Age after which cached cards are refetched (e.g., "168h")
	MaxSize int    `toml:"max_size"` // In-memory cache entries
}

// StorageConfig contains local database settings.
type StorageConfig struct {
	Path string `toml:"path"` // SQLite path; empty uses ~/.commander-builder/cards.db
}

// ServerConfig contains local API server settings.
type ServerConfig struct {
	Port           int      `toml:"port"`
	AllowedOrigins []string `toml:"allowed_origins"`
}

// AppConfig contains general application settings.
type AppConfig struct {
	DebugMode       bool   `toml:"debug_mode"`        // Enable debug logging
	DefaultDeckName string `toml:"default_deck_name"` // Name used when a deck must be created
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Backend: BackendConfig{
			BaseURL: "http://localhost:3839/api",
			Timeout: "30s",
		},
		Cards: CardsConfig{
			BaseURL:   "http://localhost:3839/api",
			RateLimit: "100ms",
			Timeout:   "30s",
		},
		Cache: CacheConfig{
			Enabled: true,
			TTL:     "168h",
			MaxSize: 2048,
		},
		Storage: StorageConfig{
			Path: "",
		},
		Server: ServerConfig{
			Port:           8080,
			AllowedOrigins: []string{"http://localhost:*", "http://127.0.0.1:*"},
		},
		App: AppConfig{
			DebugMode:       false,
			DefaultDeckName: "New Deck",
		},
	}
}

// Dir returns the configuration directory, creating it if needed.
func Dir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home directory: %w", err)
	}

	configDir := filepath.Join(homeDir, DirName)
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return "", fmt.Errorf("create config directory: %w", err)
	}

	return configDir, nil
}

// DefaultPath returns the path to the configuration file.
func DefaultPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// Load loads the configuration from the default path. Returns the default
// config if the file doesn't exist.
func Load() (*Config, error) {
	path, err := DefaultPath()
	if err != nil {
		return nil, err
	}
	return LoadFile(path)
}

// LoadFile loads the configuration from path. Missing keys keep their
// default values; a missing file yields the defaults.
func LoadFile(path string) (*Config, error) {
	config := DefaultConfig()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return config, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	return config, nil
}

// SaveFile writes the configuration to path.
func (c *Config) SaveFile(path string) error {
	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}

	return nil
}

// Save saves the configuration to the default path.
func (c *Config) Save() error {
	path, err := DefaultPath()
	if err != nil {
		return err
	}
	return c.SaveFile(path)
}

// EnsureClientID assigns a random client id when none is configured.
// Returns true when an id was generated.
func (c *Config) EnsureClientID() bool {
	if c.Backend.ClientID != "" {
		return false
	}
	c.Backend.ClientID = uuid.NewString()
	return true
}

// Validate validates the configuration values.
func (c *Config) Validate() error {
	if c.Backend.BaseURL == "" {
		return fmt.Errorf("backend base URL is required")
	}

	if c.Cards.BaseURL == "" {
		return fmt.Errorf("cards base URL is required")
	}

	for name, value := range map[string]string{
		"backend timeout":  c.Backend.Timeout,
		"cards timeout":    c.Cards.Timeout,
		"cards rate limit": c.Cards.RateLimit,
		"cache TTL":        c.Cache.TTL,
	} {
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("invalid %s %q: %w", name, value, err)
		}
	}

	if c.Cache.MaxSize < 0 {
		return fmt.Errorf("cache max size cannot be negative: %d", c.Cache.MaxSize)
	}

	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	return nil
}

// GetBackendTimeout returns the backend request timeout as a duration.
func (c *Config) GetBackendTimeout() (time.Duration, error) {
	return time.ParseDuration(c.Backend.Timeout)
}

// GetCardsTimeout returns the card API request timeout as a duration.
func (c *Config) GetCardsTimeout() (time.Duration, error) {
	return time.ParseDuration(c.Cards.Timeout)
}

// GetCardsRateLimit returns the minimum delay between card API requests.
func (c *Config) GetCardsRateLimit() (time.Duration, error) {
	return time.ParseDuration(c.Cards.RateLimit)
}

// GetCacheTTL returns the cache TTL as a duration.
func (c *Config) GetCacheTTL() (time.Duration, error) {
	return time.ParseDuration(c.Cache.TTL)
}

// DatabasePath returns the configured database path, defaulting to a file
// in the configuration directory.
func (c *Config) DatabasePath() (string, error) {
	if c.Storage.Path != "" {
		return c.Storage.Path, nil
	}
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "cards.db"), nil
}
