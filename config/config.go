// Package config loads farmhand configuration from TOML files and the
// environment via Viper.
package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/prismvfx/farmhand/errors"
)

// Config is the top-level farmhand configuration.
type Config struct {
	Server Server `mapstructure:"server"`
	Store  Store  `mapstructure:"store"`
	Jobs   Jobs   `mapstructure:"jobs"`
	Log    Log    `mapstructure:"log"`
}

// Server configures the HTTP and WebSocket listener.
type Server struct {
	ListenAddr       string `mapstructure:"listen_addr"`
	KeepaliveSeconds int    `mapstructure:"keepalive_seconds"` // WebSocket ping cadence
}

// Store configures on-disk job persistence.
type Store struct {
	Path             string  `mapstructure:"path"`
	RetentionSeconds float64 `mapstructure:"retention_seconds"` // negative disables pruning
}

// Jobs configures the orchestrator table and background poller.
type Jobs struct {
	HistoryLimit           int      `mapstructure:"history_limit"`
	PollIntervalSeconds    int      `mapstructure:"poll_interval_seconds"`
	PersistIntervalSeconds int      `mapstructure:"persist_interval_seconds"`
	TerminalStatuses       []string `mapstructure:"terminal_statuses"` // empty = completed/failed/cancelled
}

// Log configures logger output.
type Log struct {
	JSON bool `mapstructure:"json"`
}

// SetDefaults configures default values for all configuration options.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.listen_addr", ":8420")
	v.SetDefault("server.keepalive_seconds", 54)

	v.SetDefault("store.path", "farmhand-jobs.json")
	v.SetDefault("store.retention_seconds", 7*24*3600.0)

	v.SetDefault("jobs.history_limit", 500)
	v.SetDefault("jobs.poll_interval_seconds", 15)
	v.SetDefault("jobs.persist_interval_seconds", 30)

	v.SetDefault("log.json", false)
}

// Load reads configuration from the optional file at path (TOML), layered
// under FARMHAND_* environment variables. An empty path loads defaults and
// environment only.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("FARMHAND")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	SetDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "failed to read config file %s", path)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}
	return &cfg, nil
}

// PollInterval returns the poller cadence as a duration.
func (j Jobs) PollInterval() time.Duration {
	return time.Duration(j.PollIntervalSeconds) * time.Second
}

// PersistInterval returns the minimum gap between poller persists.
func (j Jobs) PersistInterval() time.Duration {
	return time.Duration(j.PersistIntervalSeconds) * time.Second
}

// Retention returns the record retention window. Negative means keep
// everything.
func (s Store) Retention() time.Duration {
	return time.Duration(s.RetentionSeconds * float64(time.Second))
}

// Keepalive returns the WebSocket ping interval.
func (s Server) Keepalive() time.Duration {
	return time.Duration(s.KeepaliveSeconds) * time.Second
}
