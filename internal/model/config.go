package model

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// Session storage backends.
const (
	BackendKeyring = "keyring"
	BackendSQLite  = "sqlite"
	BackendMemory  = "memory"
)

// APIConfig holds settings for the external Task API.
type APIConfig struct {
	// BaseURL is the root URL the /Users and /Tasks paths are joined to.
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`

	// Timeout bounds a single HTTP request.
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`

	// MaxRetries is how many times a rate-limited (429) request is retried.
	MaxRetries int `mapstructure:"max_retries" yaml:"max_retries"`
}

// SessionConfig selects where the session token is persisted.
type SessionConfig struct {
	Backend    string `mapstructure:"backend" yaml:"backend"`
	KeyringDir string `mapstructure:"keyring_dir" yaml:"keyring_dir"`
}

// StateConfig locates the local client-state database.
type StateConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// DisplayConfig holds UI/rendering preferences.
type DisplayConfig struct {
	PageSize  int           `mapstructure:"page_size" yaml:"page_size"`
	NoticeTTL time.Duration `mapstructure:"notice_ttl" yaml:"notice_ttl"`
}

// ExportConfig controls where CSV exports are written.
type ExportConfig struct {
	Dir string `mapstructure:"dir" yaml:"dir"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level      string            `mapstructure:"level" yaml:"level"`
	File       string            `mapstructure:"file" yaml:"file"`
	MaxSizeMB  int               `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int               `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAgeDays int               `mapstructure:"max_age_days" yaml:"max_age_days"`
	Compress   bool              `mapstructure:"compress" yaml:"compress"`
	Levels     map[string]string `mapstructure:"levels" yaml:"levels"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	API     APIConfig     `mapstructure:"api" yaml:"api"`
	Session SessionConfig `mapstructure:"session" yaml:"session"`
	State   StateConfig   `mapstructure:"state" yaml:"state"`
	Display DisplayConfig `mapstructure:"display" yaml:"display"`
	Export  ExportConfig  `mapstructure:"export" yaml:"export"`
	Log     LogConfig     `mapstructure:"log" yaml:"log"`
}

// configDir returns ~/.config/taskclient, or "." when the home
// directory cannot be determined.
func configDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "taskclient")
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/taskclient/config.yaml.
func DefaultConfigPath() string {
	return filepath.Join(configDir(), "config.yaml")
}

// DefaultAppConfig returns a sensible default configuration.
func DefaultAppConfig() *AppConfig {
	dir := configDir()
	return &AppConfig{
		API: APIConfig{
			BaseURL:    "https://localhost:7001/api",
			Timeout:    30 * time.Second,
			MaxRetries: 3,
		},
		Session: SessionConfig{
			Backend:    BackendKeyring,
			KeyringDir: filepath.Join(dir, "credentials"),
		},
		State: StateConfig{
			Path: filepath.Join(dir, "state.db"),
		},
		Display: DisplayConfig{
			PageSize:  5,
			NoticeTTL: 3 * time.Second,
		},
		Export: ExportConfig{
			Dir: ".",
		},
		Log: LogConfig{
			Level:      "info",
			File:       filepath.Join(dir, "logs", "taskclient.log"),
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// Environment variables prefixed with TASKCLIENT_ override file values
// (e.g. TASKCLIENT_API_BASE_URL). A missing file yields the defaults.
func LoadConfig(path string) (*AppConfig, error) {
	defaults := DefaultAppConfig()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("taskclient")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Set defaults so missing keys resolve to sensible values and so
	// AutomaticEnv knows which keys exist.
	v.SetDefault("api.base_url", defaults.API.BaseURL)
	v.SetDefault("api.timeout", defaults.API.Timeout)
	v.SetDefault("api.max_retries", defaults.API.MaxRetries)
	v.SetDefault("session.backend", defaults.Session.Backend)
	v.SetDefault("session.keyring_dir", defaults.Session.KeyringDir)
	v.SetDefault("state.path", defaults.State.Path)
	v.SetDefault("display.page_size", defaults.Display.PageSize)
	v.SetDefault("display.notice_ttl", defaults.Display.NoticeTTL)
	v.SetDefault("export.dir", defaults.Export.Dir)
	v.SetDefault("log.level", defaults.Log.Level)
	v.SetDefault("log.file", defaults.Log.File)
	v.SetDefault("log.max_size_mb", defaults.Log.MaxSizeMB)
	v.SetDefault("log.max_backups", defaults.Log.MaxBackups)
	v.SetDefault("log.max_age_days", defaults.Log.MaxAgeDays)
	v.SetDefault("log.compress", defaults.Log.Compress)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		var pathErr *os.PathError
		if !errors.As(err, &notFound) && !errors.As(err, &pathErr) {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := &AppConfig{}
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(cfg, hook); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects configurations the client cannot run with.
func (c *AppConfig) Validate() error {
	if strings.TrimSpace(c.API.BaseURL) == "" {
		return errors.New("api.base_url must not be empty")
	}
	switch c.Session.Backend {
	case BackendKeyring, BackendSQLite, BackendMemory:
	default:
		return fmt.Errorf("unknown session.backend %q", c.Session.Backend)
	}
	if c.Display.PageSize <= 0 {
		return errors.New("display.page_size must be positive")
	}
	if c.Display.NoticeTTL <= 0 {
		return errors.New("display.notice_ttl must be positive")
	}
	return nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("api.base_url", cfg.API.BaseURL)
	v.Set("api.timeout", cfg.API.Timeout.String())
	v.Set("api.max_retries", cfg.API.MaxRetries)
	v.Set("session", cfg.Session)
	v.Set("state", cfg.State)
	v.Set("display.page_size", cfg.Display.PageSize)
	v.Set("display.notice_ttl", cfg.Display.NoticeTTL.String())
	v.Set("export", cfg.Export)
	v.Set("log", cfg.Log)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
