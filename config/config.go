package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/conversa/cli/internal/infra/storage"
	"github.com/conversa/cli/internal/logger"
)

// DefaultConfigPath is shown in help text; the real path is resolved
// against the user's home directory at runtime.
const DefaultConfigPath = "~/.conversa/config.yaml"

// Config represents the CLI configuration
type Config struct {
	Gateway GatewayConfig  `yaml:"gateway" mapstructure:"gateway"`
	Chat    ChatConfig     `yaml:"chat" mapstructure:"chat"`
	Retry   RetryConfig    `yaml:"retry" mapstructure:"retry"`
	Storage storage.Config `yaml:"storage" mapstructure:"storage"`
}

// GatewayConfig contains backend connection settings
type GatewayConfig struct {
	URL     string `yaml:"url" mapstructure:"url"`
	APIKey  string `yaml:"api_key" mapstructure:"api_key"`
	Timeout int    `yaml:"timeout" mapstructure:"timeout"` // seconds
}

// ChatConfig contains chat behavior settings
type ChatConfig struct {
	EnableTools bool `yaml:"enable_tools" mapstructure:"enable_tools"`
	ExpectAudio bool `yaml:"expect_audio" mapstructure:"expect_audio"`
}

// RetryConfig contains transport retry settings
type RetryConfig struct {
	Enabled           bool `yaml:"enabled" mapstructure:"enabled"`
	MaxAttempts       int  `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffSec int  `yaml:"initial_backoff_sec" mapstructure:"initial_backoff_sec"`
	MaxBackoffSec     int  `yaml:"max_backoff_sec" mapstructure:"max_backoff_sec"`
	BackoffMultiplier int  `yaml:"backoff_multiplier" mapstructure:"backoff_multiplier"`
}

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() *Config {
	return &Config{
		Gateway: GatewayConfig{
			URL:     "http://localhost:8080",
			Timeout: 120,
		},
		Chat: ChatConfig{
			EnableTools: true,
		},
		Retry: RetryConfig{
			Enabled:           true,
			MaxAttempts:       3,
			InitialBackoffSec: 1,
			MaxBackoffSec:     30,
			BackoffMultiplier: 2,
		},
		Storage: storage.Config{
			Type: "sqlite",
		},
	}
}

// GetConfigPath resolves the config file path, honoring an explicit
// override.
func GetConfigPath(override string) string {
	if override != "" {
		return override
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".conversa/config.yaml"
	}
	return filepath.Join(home, ".conversa", "config.yaml")
}

// Load reads configuration from the given path, falling back to
// defaults when the file does not exist.
func Load(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		logger.Debug("config file not found, using defaults", "path", configPath)
		return DefaultConfig(), nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	logger.Debug("loaded config", "path", configPath, "gateway_url", cfg.Gateway.URL)
	return cfg, nil
}

// Save writes the configuration to the given path, creating parent
// directories as needed.
func (c *Config) Save(configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	var buf bytes.Buffer
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)
	if err := encoder.Encode(c); err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := encoder.Close(); err != nil {
		return fmt.Errorf("failed to finalize config encoding: %w", err)
	}

	if err := os.WriteFile(configPath, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
