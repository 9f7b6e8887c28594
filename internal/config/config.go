// Package config loads plex-schedule configuration.
//
// Configuration lives in config.yml inside the home directory. Every key can
// be overridden by an environment variable: PLEX_SCHEDULE_ followed by the
// key path in upper case with dots replaced by underscores, for example
// PLEX_SCHEDULE_PLEX_TOKEN or PLEX_SCHEDULE_CRON_LOOKAHEAD_LIMIT.
//
// A Config is built once at process start and passed down explicitly.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	// EnvPrefix prefixes every environment override.
	EnvPrefix = "PLEX_SCHEDULE"

	// HomeEnv names the variable that selects the home directory.
	HomeEnv = EnvPrefix + "_HOME"

	// DefaultHomeDir is the home directory name under the user's home.
	DefaultHomeDir = ".plex_schedule"

	// FileName is the config file inside the home directory.
	FileName = "config.yml"

	// DefaultDatabase is the database file name inside the home directory.
	DefaultDatabase = "plex_schedule.db"
)

// Config is the complete configuration.
type Config struct {
	// Home is the directory the config was loaded from. Not persisted.
	Home string `mapstructure:"-" yaml:"-"`

	// Database is the SQLite path; relative paths are inside Home.
	Database string `mapstructure:"database" yaml:"database"`

	Plex     PlexConfig     `mapstructure:"plex" yaml:"plex"`
	Sections SectionsConfig `mapstructure:"sections" yaml:"sections"`
	Cron     CronConfig     `mapstructure:"cron" yaml:"cron"`
}

// PlexConfig configures the Plex client.
type PlexConfig struct {
	Username         string  `mapstructure:"username" yaml:"username,omitempty"`
	Token            string  `mapstructure:"token" yaml:"token,omitempty"`
	Server           string  `mapstructure:"server" yaml:"server,omitempty"`
	URL              string  `mapstructure:"url" yaml:"url,omitempty"`
	ClientIdentifier string  `mapstructure:"client_identifier" yaml:"client_identifier,omitempty"`
	RequestsPerSec   float64 `mapstructure:"requests_per_second" yaml:"requests_per_second"`
	Burst            int     `mapstructure:"burst" yaml:"burst"`
	TimeoutSeconds   int     `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
}

// Timeout returns the per-request timeout.
func (p PlexConfig) Timeout() time.Duration {
	return time.Duration(p.TimeoutSeconds) * time.Second
}

// SectionsConfig names the library sections used by default.
type SectionsConfig struct {
	Movies string `mapstructure:"movies" yaml:"movies"`
	Shows  string `mapstructure:"shows" yaml:"shows"`
}

// CronConfig configures scheduling cycles.
type CronConfig struct {
	// LookaheadLimit bounds how many upcoming actions one cycle pre-stages.
	LookaheadLimit int `mapstructure:"lookahead_limit" yaml:"lookahead_limit"`

	// LookaheadHorizonDays bounds how far ahead lookahead reaches. 0 = no bound.
	LookaheadHorizonDays int `mapstructure:"lookahead_horizon_days" yaml:"lookahead_horizon_days"`

	// SufficiencyHours skips lookahead while the shows section holds more
	// unwatched hours than this. 0 disables the check.
	SufficiencyHours float64 `mapstructure:"sufficiency_hours" yaml:"sufficiency_hours"`

	// TimeoutSeconds bounds a whole cycle. 0 = no bound.
	TimeoutSeconds int `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
}

// Timeout returns the cycle timeout, or 0 for none.
func (c CronConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// SetDefaults configures default values for all configuration options.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("database", DefaultDatabase)

	v.SetDefault("plex.username", "")
	v.SetDefault("plex.token", "")
	v.SetDefault("plex.server", "")
	v.SetDefault("plex.url", "")
	v.SetDefault("plex.client_identifier", "")
	v.SetDefault("plex.requests_per_second", 5.0)
	v.SetDefault("plex.burst", 1)
	v.SetDefault("plex.timeout_seconds", 30)

	v.SetDefault("sections.movies", "Movies")
	v.SetDefault("sections.shows", "TV Shows")

	v.SetDefault("cron.lookahead_limit", 10)
	v.SetDefault("cron.lookahead_horizon_days", 0)
	v.SetDefault("cron.sufficiency_hours", 5.0)
	v.SetDefault("cron.timeout_seconds", 600)
}

// Default returns the configuration with only defaults applied.
func Default(home string) *Config {
	cfg, err := decode(newViper(), home)
	if err != nil {
		// Defaults always decode.
		panic(err)
	}
	return cfg
}

// ResolveHome picks the home directory: the flag value, then
// $PLEX_SCHEDULE_HOME, then ~/.plex_schedule.
func ResolveHome(flag string) (string, error) {
	if flag != "" {
		return filepath.Abs(flag)
	}
	if env := os.Getenv(HomeEnv); env != "" {
		return filepath.Abs(env)
	}

	userHome, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "find user home directory")
	}
	return filepath.Join(userHome, DefaultHomeDir), nil
}

// EnsureHome creates the home directory with owner-only permissions.
func EnsureHome(home string) error {
	if err := os.MkdirAll(home, 0o700); err != nil {
		return errors.Wrapf(err, "create home directory %s", home)
	}
	return nil
}

// Path returns the config file path inside home.
func Path(home string) string {
	return filepath.Join(home, FileName)
}

// Load reads config.yml from home (if it exists), applies environment
// overrides and defaults, and validates the result.
func Load(home string) (*Config, error) {
	v := newViper()

	path := Path(home)
	if _, err := os.Stat(path); err == nil {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "failed to read config file %s", path)
		}
	} else if !os.IsNotExist(err) {
		return nil, errors.Wrapf(err, "stat %s", path)
	}

	cfg, err := decode(v, home)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrapf(err, "invalid config %s", path)
	}
	return cfg, nil
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	SetDefaults(v)
	return v
}

func decode(v *viper.Viper, home string) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}
	cfg.Home = home
	return &cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Database) == "":
		return errors.New("database must not be empty")
	case c.Plex.RequestsPerSec <= 0:
		return errors.Newf("plex.requests_per_second must be positive, got %v", c.Plex.RequestsPerSec)
	case c.Plex.Burst < 1:
		return errors.Newf("plex.burst must be at least 1, got %d", c.Plex.Burst)
	case c.Plex.TimeoutSeconds < 0:
		return errors.Newf("plex.timeout_seconds must not be negative, got %d", c.Plex.TimeoutSeconds)
	case c.Cron.LookaheadLimit < 0:
		return errors.Newf("cron.lookahead_limit must not be negative, got %d", c.Cron.LookaheadLimit)
	case c.Cron.LookaheadHorizonDays < 0:
		return errors.Newf("cron.lookahead_horizon_days must not be negative, got %d", c.Cron.LookaheadHorizonDays)
	case c.Cron.SufficiencyHours < 0:
		return errors.Newf("cron.sufficiency_hours must not be negative, got %v", c.Cron.SufficiencyHours)
	case c.Cron.TimeoutSeconds < 0:
		return errors.Newf("cron.timeout_seconds must not be negative, got %d", c.Cron.TimeoutSeconds)
	}
	return nil
}

// DatabasePath returns the absolute database path.
func (c *Config) DatabasePath() string {
	if filepath.IsAbs(c.Database) {
		return c.Database
	}
	return filepath.Join(c.Home, c.Database)
}

// Save writes c to config.yml in c.Home with mode 0600, since it holds the
// account token. The file is replaced atomically.
func Save(c *Config) error {
	if c.Home == "" {
		return errors.New("config has no home directory")
	}
	if err := EnsureHome(c.Home); err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return errors.Wrap(err, "failed to marshal config")
	}

	path := Path(c.Home)
	tmp, err := os.CreateTemp(c.Home, FileName+".*")
	if err != nil {
		return errors.Wrap(err, "failed to create temp config")
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return errors.Wrap(err, "failed to chmod config")
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Wrap(err, "failed to write config")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "failed to close config")
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return errors.Wrapf(err, "failed to replace %s", path)
	}
	return nil
}
