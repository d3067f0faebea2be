package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Backends a session can read from
const (
	BackendLocal = "local"
	BackendGmail = "gmail"
)

// Config holds all configuration for tagmail
type Config struct {
	// Backend is "local" (SQLite) or "gmail"
	Backend     string `mapstructure:"backend"`
	Database    string `mapstructure:"database"`
	Credentials string `mapstructure:"credentials"`
	Token       string `mapstructure:"token"`

	DefaultQuery string `mapstructure:"default_query"`
	// TodoQuery is the query whose entries are ordered by due date
	TodoQuery   string `mapstructure:"todo_query"`
	MaxResults  int    `mapstructure:"max_results"`
	Concurrency int    `mapstructure:"concurrency"`

	// DefaultMode is "focused" or "flat"
	DefaultMode     string        `mapstructure:"default_mode"`
	MessageCacheTTL time.Duration `mapstructure:"message_cache_ttl"`

	// Keymap is an optional YAML file overriding key bindings
	Keymap string `mapstructure:"keymap"`

	Logging LoggingConfig `mapstructure:"logging"`
	Colors  ColorsConfig  `mapstructure:"colors"`
}

// LoggingConfig configures the log sink
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	credentials, token := DefaultCredentialPaths()
	return &Config{
		Backend:         BackendLocal,
		Database:        filepath.Join(DefaultConfigDir(), "tagmail.db"),
		Credentials:     credentials,
		Token:           token,
		DefaultQuery:    "tag:inbox -tag:deleted",
		TodoQuery:       "tag:todo",
		MaxResults:      50,
		Concurrency:     8,
		DefaultMode:     "focused",
		MessageCacheTTL: 5 * time.Minute,
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
			File:   filepath.Join(DefaultConfigDir(), "tagmail.log"),
		},
		Colors: DefaultColors(),
	}
}

// LoadConfig loads configuration with the precedence
// defaults < config file < TAGMAIL_* environment. A missing file is only
// an error when configPath names it explicitly.
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()
	v := viper.New()
	setDefaults(v, cfg)

	v.SetEnvPrefix("TAGMAIL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(expandTilde(configPath))
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(DefaultConfigDir())
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configPath != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.Database = expandTilde(cfg.Database)
	cfg.Credentials = expandTilde(cfg.Credentials)
	cfg.Token = expandTilde(cfg.Token)
	cfg.Keymap = expandTilde(cfg.Keymap)
	cfg.Logging.File = expandTilde(cfg.Logging.File)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("backend", cfg.Backend)
	v.SetDefault("database", cfg.Database)
	v.SetDefault("credentials", cfg.Credentials)
	v.SetDefault("token", cfg.Token)
	v.SetDefault("default_query", cfg.DefaultQuery)
	v.SetDefault("todo_query", cfg.TodoQuery)
	v.SetDefault("max_results", cfg.MaxResults)
	v.SetDefault("concurrency", cfg.Concurrency)
	v.SetDefault("default_mode", cfg.DefaultMode)
	v.SetDefault("message_cache_ttl", cfg.MessageCacheTTL)
	v.SetDefault("keymap", cfg.Keymap)

	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.format", cfg.Logging.Format)
	v.SetDefault("logging.file", cfg.Logging.File)

	v.SetDefault("colors.foreground", string(cfg.Colors.Foreground))
	v.SetDefault("colors.background", string(cfg.Colors.Background))
	v.SetDefault("colors.unread", string(cfg.Colors.Unread))
	v.SetDefault("colors.deleted", string(cfg.Colors.Deleted))
	v.SetDefault("colors.selected", string(cfg.Colors.Selected))
	v.SetDefault("colors.group", string(cfg.Colors.Group))
	v.SetDefault("colors.due", string(cfg.Colors.Due))
	v.SetDefault("colors.overdue", string(cfg.Colors.Overdue))
	v.SetDefault("colors.tags", string(cfg.Colors.Tags))
	v.SetDefault("colors.status", string(cfg.Colors.Status))
}

// Validate checks the configuration for inconsistencies
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendLocal:
		if strings.TrimSpace(c.Database) == "" {
			return fmt.Errorf("database path cannot be empty for the local backend")
		}
	case BackendGmail:
		if strings.TrimSpace(c.Credentials) == "" || strings.TrimSpace(c.Token) == "" {
			return fmt.Errorf("credentials and token paths are required for the gmail backend")
		}
	default:
		return fmt.Errorf("unknown backend %q", c.Backend)
	}
	switch strings.ToLower(c.DefaultMode) {
	case "focused", "flat":
	default:
		return fmt.Errorf("unknown default_mode %q", c.DefaultMode)
	}
	if c.MaxResults <= 0 {
		return fmt.Errorf("max_results must be positive")
	}
	if c.Concurrency <= 0 {
		return fmt.Errorf("concurrency must be positive")
	}
	if c.MessageCacheTTL < 0 {
		return fmt.Errorf("message_cache_ttl cannot be negative")
	}
	return nil
}

// IsTodoQuery reports whether query should be ordered by due date
func (c *Config) IsTodoQuery(query string) bool {
	return strings.TrimSpace(query) != "" && strings.TrimSpace(query) == strings.TrimSpace(c.TodoQuery)
}

// DefaultConfigDir returns ~/.config/tagmail
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "tagmail")
}

// DefaultConfigPath returns the default configuration file path
func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.yaml")
}

// DefaultCredentialPaths returns the default paths for credentials and token
func DefaultCredentialPaths() (string, string) {
	dir := DefaultConfigDir()
	return filepath.Join(dir, "credentials.json"), filepath.Join(dir, "token.json")
}

func expandTilde(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, strings.TrimPrefix(path[1:], "/"))
	}
	return path
}
