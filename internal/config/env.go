package config

import (
	"os"

	"github.com/joho/godotenv"
)

// Environment variables that override file settings.
const (
	EnvAPIURL   = "DECKBUILDER_API_URL"
	EnvAPIKey   = "DECKBUILDER_API_KEY"
	EnvClientID = "DECKBUILDER_CLIENT_ID"
	EnvCardsURL = "DECKBUILDER_CARDS_URL"
)

// LoadDotEnv loads variables from the given .env files (default ".env")
// without overriding variables already set. A missing file is not an error.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}

	existing := make([]string, 0, len(files))
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			existing = append(existing, f)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	return godotenv.Load(existing...)
}

// ApplyEnv overrides configuration values with any environment variables
// that are set.
func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvAPIURL); v != "" {
		c.Backend.BaseURL = v
	}
	if v := os.Getenv(EnvAPIKey); v != "" {
		c.Backend.APIKey = v
	}
	if v := os.Getenv(EnvClientID); v != "" {
		c.Backend.ClientID = v
	}
	if v := os.Getenv(EnvCardsURL); v != "" {
		c.Cards.BaseURL = v
	}
}
