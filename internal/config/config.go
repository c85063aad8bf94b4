// Package config provides YAML-based configuration management with environment overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. LOGBOOK_SERVER_PORT or
// LOGBOOK_STORAGE_DATA_DIRECTORY.
const EnvPrefix = "LOGBOOK"

// AppConfig represents the root configuration structure
type AppConfig struct {
	// Server configuration
	Server ServerConfig `yaml:"server" split_words:"true"`

	// Storage configuration
	Storage StorageConfig `yaml:"storage" split_words:"true"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" split_words:"true"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Port              int      `yaml:"port" split_words:"true"`
	BindAddress       string   `yaml:"bind_address" split_words:"true"`
	ReadTimeout       int      `yaml:"read_timeout_seconds" split_words:"true"`
	WriteTimeout      int      `yaml:"write_timeout_seconds" split_words:"true"`
	IdleTimeout       int      `yaml:"idle_timeout_seconds" split_words:"true"`
	RequestTimeout    int      `yaml:"request_timeout_seconds" split_words:"true"`
	BodyLimit         string   `yaml:"body_limit" split_words:"true"`
	EnableCORS        bool     `yaml:"enable_cors" split_words:"true"`
	AllowOrigins      []string `yaml:"allow_origins" split_words:"true"`
	EnableCompression bool     `yaml:"enable_compression" split_words:"true"`
	CompressionLevel  int      `yaml:"compression_level" split_words:"true"`
}

// StorageConfig contains snapshot file settings
type StorageConfig struct {
	DataDirectory string `yaml:"data_directory" split_words:"true"`
	SnapshotFile  string `yaml:"snapshot_file" split_words:"true"`
}

// LoggingConfig contains logger settings
type LoggingConfig struct {
	Level          string `yaml:"level" split_words:"true"`
	Format         string `yaml:"format" split_words:"true"` // "json" or "console"
	RequestLogging bool   `yaml:"request_logging" split_words:"true"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{
			Port:              3001,
			BindAddress:       "0.0.0.0",
			ReadTimeout:       30,
			WriteTimeout:      30,
			IdleTimeout:       120,
			RequestTimeout:    30,
			BodyLimit:         "10M",
			EnableCORS:        true,
			AllowOrigins:      []string{"*"},
			EnableCompression: false,
			CompressionLevel:  5,
		},
		Storage: StorageConfig{
			DataDirectory: "./data",
			SnapshotFile:  "logs.json",
		},
		Logging: LoggingConfig{
			Level:          "info",
			Format:         "console",
			RequestLogging: true,
		},
	}
}

// LoadConfig loads configuration from a YAML file. A missing file is created
// with the defaults. An empty path skips the file and uses defaults plus
// environment overrides.
func LoadConfig(configPath string) (*AppConfig, error) {
	config := DefaultConfig()

	if configPath != "" {
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			if err := config.Save(configPath); err != nil {
				return nil, fmt.Errorf("failed to create default config: %w", err)
			}
		} else {
			data, err := os.ReadFile(configPath)
			if err != nil {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
			if err := yaml.Unmarshal(data, config); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	// Apply environment variable overrides
	if err := config.applyEnvironmentOverrides(); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	// Resolve relative paths
	if configPath != "" {
		config.resolvePaths(filepath.Dir(configPath))
	}

	return config, nil
}

// Save saves the configuration to a YAML file
func (c *AppConfig) Save(configPath string) error {
	output, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte("# logbook configuration\n# This file is auto-generated on first run\n\n")
	content := append(header, output...)

	if dir := filepath.Dir(configPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	if err := os.WriteFile(configPath, content, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// applyEnvironmentOverrides allows environment variables to override config values
func (c *AppConfig) applyEnvironmentOverrides() error {
	// PORT override
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Server.Port = p
		}
	}

	// DATA_DIR override
	if dataDir := os.Getenv("DATA_DIR"); dataDir != "" {
		c.Storage.DataDirectory = dataDir
	}

	// LOGBOOK_* overrides; unset variables leave the loaded values alone
	if err := envconfig.Process(EnvPrefix, c); err != nil {
		return fmt.Errorf("failed to read environment overrides: %w", err)
	}
	return nil
}

// Validate rejects values the server cannot start with
func (c *AppConfig) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Storage.SnapshotFile == "" {
		return fmt.Errorf("storage.snapshot_file must not be empty")
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("invalid logging format %q: must be json or console", c.Logging.Format)
	}
	return nil
}

// resolvePaths converts relative paths to absolute based on config file location
func (c *AppConfig) resolvePaths(configDir string) {
	if !filepath.IsAbs(c.Storage.DataDirectory) {
		c.Storage.DataDirectory = filepath.Join(configDir, c.Storage.DataDirectory)
	}
}

// GetDataDir returns the data directory path
func (c *AppConfig) GetDataDir() string {
	return c.Storage.DataDirectory
}

// GetSnapshotPath returns the path of the log snapshot file
func (c *AppConfig) GetSnapshotPath() string {
	if filepath.IsAbs(c.Storage.SnapshotFile) {
		return c.Storage.SnapshotFile
	}
	return filepath.Join(c.Storage.DataDirectory, c.Storage.SnapshotFile)
}

// GetServerAddr returns the server bind address
func (c *AppConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.BindAddress, c.Server.Port)
}

// Seconds converts a configured number of seconds to a duration
func Seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

// EnsureDirectories creates all necessary directories
func (c *AppConfig) EnsureDirectories() error {
	if err := os.MkdirAll(c.Storage.DataDirectory, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", c.Storage.DataDirectory, err)
	}
	return nil
}
