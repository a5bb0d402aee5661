package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/loykin/procmgr/internal/env"
	"github.com/loykin/procmgr/internal/logger"
	"github.com/loykin/procmgr/internal/process"
)

// AppName names the per-user configuration directory.
const AppName = "procmgr"

// AutoStartEnv toggles the boot-time auto-start pass.
const AutoStartEnv = "PROCESS_MANAGER_AUTO_START"

// EnvPrefix prefixes environment overrides, e.g. PROCMGR_SERVER_LISTEN.
const EnvPrefix = "PROCMGR"

type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Store   StoreConfig   `mapstructure:"store"`
	Process ProcessConfig `mapstructure:"process"`
	Log     LogConfig     `mapstructure:"log"`
	History HistoryConfig `mapstructure:"history"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

type ServerConfig struct {
	Listen   string    `mapstructure:"listen"`
	BasePath string    `mapstructure:"base_path"`
	TLS      TLSConfig `mapstructure:"tls"`
}

// TLSConfig enables HTTPS on the API listener. Either CertFile and KeyFile,
// or Dir holding tls.crt and tls.key, must be set when Enabled.
type TLSConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	CertFile     string `mapstructure:"cert_file"`
	KeyFile      string `mapstructure:"key_file"`
	Dir          string `mapstructure:"dir"`
	AutoGenerate bool   `mapstructure:"auto_generate"` // self-signed pair in Dir when missing
	MinVersion   string `mapstructure:"min_version"`   // "1.2" (default) or "1.3"
}

type StoreConfig struct {
	Path string `mapstructure:"path"`
}

// ProcessConfig holds service-wide settings applied to every managed process.
type ProcessConfig struct {
	LogDir      string        `mapstructure:"log_dir"`
	GracePeriod time.Duration `mapstructure:"grace_period"`
	AutoStart   bool          `mapstructure:"auto_start"`
	Env         []string      `mapstructure:"env"`       // KEY=VALUE entries
	EnvFiles    []string      `mapstructure:"env_files"` // .env files applied before Env
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Color      bool   `mapstructure:"color"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

type HistoryConfig struct {
	DSN string `mapstructure:"dsn"`
}

type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// Logger converts the log section into logger settings.
func (c LogConfig) Logger() logger.Config {
	return logger.Config{
		Level:      c.Level,
		Format:     c.Format,
		Color:      c.Color,
		File:       c.File,
		MaxSizeMB:  c.MaxSizeMB,
		MaxBackups: c.MaxBackups,
		MaxAgeDays: c.MaxAgeDays,
		Compress:   c.Compress,
	}
}

// Load reads service configuration from defaults, the optional file at path,
// and PROCMGR_* environment variables, in increasing precedence.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(filepath.Clean(path))
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	storePath := ""
	if dir, err := DefaultDir(); err == nil {
		storePath = filepath.Join(dir, "process_configs.json")
	}
	v.SetDefault("server.listen", "127.0.0.1:53211")
	v.SetDefault("server.base_path", "/api")
	v.SetDefault("server.tls.enabled", false)
	v.SetDefault("server.tls.cert_file", "")
	v.SetDefault("server.tls.key_file", "")
	v.SetDefault("server.tls.dir", "")
	v.SetDefault("server.tls.auto_generate", false)
	v.SetDefault("server.tls.min_version", "")
	v.SetDefault("store.path", storePath)
	v.SetDefault("process.log_dir", "")
	v.SetDefault("process.grace_period", process.DefaultGracePeriod)
	v.SetDefault("process.auto_start", AutoStartEnabled(os.LookupEnv(AutoStartEnv)))
	v.SetDefault("process.env", []string{})
	v.SetDefault("process.env_files", []string{})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.color", false)
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", logger.DefaultMaxSizeMB)
	v.SetDefault("log.max_backups", logger.DefaultMaxBackups)
	v.SetDefault("log.max_age_days", logger.DefaultMaxAgeDays)
	v.SetDefault("log.compress", false)
	v.SetDefault("history.dsn", "")
	v.SetDefault("metrics.enabled", true)
}

// Validate checks values that would otherwise fail late at startup.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Server.Listen) == "" {
		return errors.New("server.listen must not be empty")
	}
	if c.Server.BasePath != "" && !strings.HasPrefix(c.Server.BasePath, "/") {
		return fmt.Errorf("server.base_path must start with /: %q", c.Server.BasePath)
	}
	if strings.TrimSpace(c.Store.Path) == "" {
		return errors.New("store.path must not be empty")
	}
	if c.Process.GracePeriod <= 0 {
		return fmt.Errorf("process.grace_period must be positive: %s", c.Process.GracePeriod)
	}
	if _, err := logger.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json: %q", c.Log.Format)
	}
	return nil
}

// AutoStartEnabled interprets the auto-start variable: unset, "true" and "1"
// enable auto-start, any other value disables it.
func AutoStartEnabled(value string, set bool) bool {
	if !set {
		return true
	}
	return value == "true" || value == "1"
}

// DefaultDir returns the per-user configuration directory for this platform.
func DefaultDir() (string, error) {
	return platformDir(goos, os.Getenv)
}

func platformDir(system string, getenv func(string) string) (string, error) {
	switch system {
	case "windows":
		if appData := getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, AppName), nil
		}
		if profile := getenv("USERPROFILE"); profile != "" {
			return filepath.Join(profile, "AppData", "Roaming", AppName), nil
		}
		return "", errors.New("neither APPDATA nor USERPROFILE is set")
	case "darwin":
		home := getenv("HOME")
		if home == "" {
			return "", errors.New("HOME is not set")
		}
		return filepath.Join(home, "Library", "Application Support", AppName), nil
	default:
		if xdg := getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, AppName), nil
		}
		home := getenv("HOME")
		if home == "" {
			return "", errors.New("neither XDG_CONFIG_HOME nor HOME is set")
		}
		return filepath.Join(home, ".config", AppName), nil
	}
}

// BuildEnv composes the service-wide child environment: variables from
// EnvFiles in order, then Env entries, each overriding earlier ones.
func (c ProcessConfig) BuildEnv() (*env.Env, error) {
	e := env.New()
	for _, p := range c.EnvFiles {
		pairs, err := loadEnvFile(p)
		if err != nil {
			return nil, fmt.Errorf("load env file %s: %w", p, err)
		}
		for _, kv := range pairs {
			e = e.WithSet(kv[0], kv[1])
		}
	}
	for _, kv := range c.Env {
		i := strings.IndexByte(kv, '=')
		if i <= 0 {
			return nil, fmt.Errorf("process.env entry %q is not KEY=VALUE", kv)
		}
		e = e.WithSet(kv[:i], kv[i+1:])
	}
	return e, nil
}

// loadEnvFile parses a simple .env file with KEY=VALUE lines (no export, no quotes).
// Lines starting with # are ignored. Pairs are returned in file order.
func loadEnvFile(path string) ([][2]string, error) {
	// Mitigate G304: sanitize user-provided path by cleaning it before use.
	b, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, err
	}
	var out [][2]string
	for _, line := range strings.Split(string(b), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if i := strings.IndexByte(line, '='); i > 0 {
			out = append(out, [2]string{strings.TrimSpace(line[:i]), strings.TrimSpace(line[i+1:])})
		}
	}
	return out, nil
}
