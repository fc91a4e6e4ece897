// Package config loads application configuration from files and the
// environment.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config holds application configuration.
type Config struct {
	// Global settings
	Format  string `mapstructure:"format"`
	Quiet   bool   `mapstructure:"quiet"`
	Verbose bool   `mapstructure:"verbose"`

	Oracle OracleConfig `mapstructure:"oracle"`
	Debug  DebugConfig  `mapstructure:"debug"`
	Store  StoreConfig  `mapstructure:"store"`
	Serve  ServeConfig  `mapstructure:"serve"`
}

// OracleConfig configures the decision-oracle backend.
type OracleConfig struct {
	URL     string `mapstructure:"url"`
	Model   string `mapstructure:"model"`
	Timeout string `mapstructure:"timeout"`
	Stream  bool   `mapstructure:"stream"`
}

// DebugConfig holds per-session loop defaults.
type DebugConfig struct {
	GDBPath        string `mapstructure:"gdb_path"`
	MaxSteps       int    `mapstructure:"max_steps"`
	RecentWindow   int    `mapstructure:"recent_window"`
	CommandTimeout string `mapstructure:"command_timeout"`
	StartTimeout   string `mapstructure:"start_timeout"`
}

// StoreConfig configures transcript persistence.
type StoreConfig struct {
	Path string `mapstructure:"path"`
	Save bool   `mapstructure:"save"`
}

// ServeConfig configures the streaming HTTP front-end.
type ServeConfig struct {
	Addr        string  `mapstructure:"addr"`
	MaxSessions int     `mapstructure:"max_sessions"`
	Rate        float64 `mapstructure:"rate"`
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Format: "auto",
		Oracle: OracleConfig{
			URL:     "http://localhost:8321",
			Timeout: "60s",
		},
		Debug: DebugConfig{
			GDBPath:        "gdb",
			MaxSteps:       15,
			RecentWindow:   5,
			CommandTimeout: "15s",
			StartTimeout:   "10s",
		},
		Store: StoreConfig{
			Save: true,
		},
		Serve: ServeConfig{
			Addr:        ":8000",
			MaxSessions: 4,
			Rate:        1,
		},
	}
}

// DefaultStorePath returns the transcript database location used when the
// config does not name one.
func DefaultStorePath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(home, ".gdba")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return filepath.Join(dir, "history.db"), nil
}

// Load loads configuration from files and environment.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("gdba")
	v.SetConfigType("yaml")

	// Config paths, lowest precedence first.
	v.AddConfigPath("/etc/gdba/")
	if configDir, err := os.UserConfigDir(); err == nil {
		v.AddConfigPath(filepath.Join(configDir, "gdba"))
	}
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(home)
		v.SetConfigName(".gdba")
	}
	v.AddConfigPath(".")

	// Environment variables: GDBA_ORACLE_URL, GDBA_FORMAT, ...
	v.SetEnvPrefix("GDBA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.BindEnv("format", "GDBA_FORMAT")
	v.BindEnv("quiet", "GDBA_QUIET")
	v.BindEnv("verbose", "GDBA_VERBOSE")
	v.BindEnv("oracle.url", "GDBA_ORACLE_URL")
	v.BindEnv("oracle.model", "GDBA_ORACLE_MODEL")
	v.BindEnv("debug.gdb_path", "GDBA_GDB_PATH")

	cfg := Default()
	v.SetDefault("format", cfg.Format)
	v.SetDefault("quiet", cfg.Quiet)
	v.SetDefault("verbose", cfg.Verbose)
	v.SetDefault("oracle.url", cfg.Oracle.URL)
	v.SetDefault("oracle.timeout", cfg.Oracle.Timeout)
	v.SetDefault("oracle.stream", cfg.Oracle.Stream)
	v.SetDefault("debug.gdb_path", cfg.Debug.GDBPath)
	v.SetDefault("debug.max_steps", cfg.Debug.MaxSteps)
	v.SetDefault("debug.recent_window", cfg.Debug.RecentWindow)
	v.SetDefault("debug.command_timeout", cfg.Debug.CommandTimeout)
	v.SetDefault("debug.start_timeout", cfg.Debug.StartTimeout)
	v.SetDefault("store.save", cfg.Store.Save)
	v.SetDefault("serve.addr", cfg.Serve.Addr)
	v.SetDefault("serve.max_sessions", cfg.Serve.MaxSessions)
	v.SetDefault("serve.rate", cfg.Serve.Rate)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		// Config file not found; use defaults.
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromFile loads configuration from a specific file.
func LoadFromFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}
	cfg := Default()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
