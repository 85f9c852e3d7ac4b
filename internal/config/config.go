package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Default config file path.
const DefaultConfigPath = "~/.config/wordharvest/config.yaml"

// TokenEnv overrides api.token when set.
const TokenEnv = "WORDHARVEST_TOKEN"

// Config holds all wordharvest configuration.
type Config struct {
	API       APIConfig       `yaml:"api"`
	Expansion ExpansionConfig `yaml:"expansion"`
	Storage   StorageConfig   `yaml:"storage"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

type APIConfig struct {
	URL            string `yaml:"url"`
	UserInfoURL    string `yaml:"user_info_url"`
	Token          string `yaml:"token"`
	NumPhrases     int    `yaml:"num_phrases"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	AcceptLanguage string `yaml:"accept_language"`
}

type ExpansionConfig struct {
	MaxErrors      int `yaml:"max_errors"`
	ErrorBackoffMS int `yaml:"error_backoff_ms"`
	PacingMS       int `yaml:"pacing_ms"`
	DefaultBudget  int `yaml:"default_budget"`
	DefaultRegion  int `yaml:"default_region"`
}

type StorageConfig struct {
	Dir         string `yaml:"dir"`
	JournalMode string `yaml:"journal_mode"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type MetricsConfig struct {
	Textfile string `yaml:"textfile"`
}

// Timeout returns the per-lookup timeout.
func (c APIConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// ErrorBackoff returns the pause after a failed lookup.
func (c ExpansionConfig) ErrorBackoff() time.Duration {
	return time.Duration(c.ErrorBackoffMS) * time.Millisecond
}

// Pacing returns the minimum spacing between two lookups.
func (c ExpansionConfig) Pacing() time.Duration {
	return time.Duration(c.PacingMS) * time.Millisecond
}

// Validate reports the first value that the engine or client cannot work with.
func (c *Config) Validate() error {
	switch {
	case c.API.URL == "":
		return fmt.Errorf("api.url must be set")
	case c.API.NumPhrases <= 0:
		return fmt.Errorf("api.num_phrases must be positive, got %d", c.API.NumPhrases)
	case c.API.TimeoutSeconds <= 0:
		return fmt.Errorf("api.timeout_seconds must be positive, got %d", c.API.TimeoutSeconds)
	case c.Expansion.MaxErrors <= 0:
		return fmt.Errorf("expansion.max_errors must be positive, got %d", c.Expansion.MaxErrors)
	case c.Expansion.ErrorBackoffMS < 0:
		return fmt.Errorf("expansion.error_backoff_ms must not be negative")
	case c.Expansion.PacingMS < 0:
		return fmt.Errorf("expansion.pacing_ms must not be negative")
	}
	return nil
}

// Load reads a YAML config file at path and merges it with defaults.
// Returns an error if the file cannot be read or contains invalid YAML.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnv(cfg)

	return cfg, nil
}

// applyEnv lets the environment win over the file for secrets.
func applyEnv(cfg *Config) {
	if token := os.Getenv(TokenEnv); token != "" {
		cfg.API.Token = token
	}
}

// ExpandPath replaces a leading ~ with the user's home directory.
func ExpandPath(path string) (string, error) {
	if len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolving home directory: %w", err)
		}
		return filepath.Join(home, path[1:]), nil
	}
	return path, nil
}

// LoadOrCreate loads the config from the default path. If the file does
// not exist, it creates the directory structure and writes defaults.
func LoadOrCreate() (*Config, error) {
	path, err := ExpandPath(DefaultConfigPath)
	if err != nil {
		return nil, err
	}
	return LoadOrCreateAt(path)
}

// LoadOrCreateAt loads the config from the given path. If the file does
// not exist, it creates the directory structure and writes defaults.
func LoadOrCreateAt(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := DefaultConfig()

		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating config directory: %w", err)
		}

		data, err := yaml.Marshal(cfg)
		if err != nil {
			return nil, fmt.Errorf("marshaling default config: %w", err)
		}

		// The file may end up holding a token; keep it private.
		if err := os.WriteFile(path, data, 0600); err != nil {
			return nil, fmt.Errorf("writing default config: %w", err)
		}

		applyEnv(cfg)
		return cfg, nil
	}

	return Load(path)
}
