// Package config provides configuration loading from YAML files.
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Library      LibraryConfig           `yaml:"library"`
	Storage      StorageConfig           `yaml:"storage"`
	Playback     PlaybackConfig          `yaml:"playback"`
	Notification NotificationConfig      `yaml:"notification"`
	Filters      map[string]FilterConfig `yaml:"filters"`
	Log          LogConfig               `yaml:"log"`
}

// LibraryConfig represents catalog and import configuration.
type LibraryConfig struct {
	DataDir             string   `yaml:"data_dir" default:"./data" validate:"required"`
	ImportDir           string   `yaml:"import_dir" default:"audio" validate:"required"` // Relative to data_dir unless absolute
	MediaDir            string   `yaml:"media_dir"`                                      // Device media library root; empty disables scanning
	ScanLimit           int      `yaml:"scan_limit" default:"2000" validate:"gte=0"`
	AcceptedSchemes     []string `yaml:"accepted_schemes" default:"[\"http://\",\"https://\"]" validate:"min=1,dive,required"`
	PersistOnlineTracks *bool    `yaml:"persist_online_tracks" default:"true"`
}

// StorageConfig represents the persistence backend configuration.
type StorageConfig struct {
	Backend  string         `yaml:"backend" default:"file" validate:"oneof=file sqlite redis"`
	Settings map[string]any `yaml:"settings"`
}

// PlaybackConfig represents audio engine configuration.
type PlaybackConfig struct {
	Engine           string `yaml:"engine" default:"beep" validate:"oneof=beep fake"`
	AutoAdvance      *bool  `yaml:"auto_advance" default:"true"`
	StatusIntervalMs int    `yaml:"status_interval_ms" default:"500" validate:"gte=50,lte=10000"`
	SampleRate       int    `yaml:"sample_rate" default:"44100" validate:"oneof=22050 44100 48000 96000"`
	MaxProbeBytes    int64  `yaml:"max_probe_bytes" default:"67108864" validate:"gt=0"`
}

// NotificationConfig represents now-playing bridge configuration.
type NotificationConfig struct {
	SendTimeoutMs    int  `yaml:"send_timeout_ms" default:"500" validate:"gte=0,lte=60000"`
	ForwardPositions bool `yaml:"forward_positions"`
}

// FilterConfig represents an import filter's configuration.
type FilterConfig struct {
	Enabled  bool           `yaml:"enabled"`
	Settings map[string]any `yaml:"settings,omitempty"`
}

// LogConfig represents logging configuration.
type LogConfig struct {
	Level  string `yaml:"level" default:"info" validate:"oneof=debug info warn warning error"`
	Output string `yaml:"output" default:"stderr"` // "stdout", "stderr" or a file path
}

// Load loads configuration from a YAML file.
// Environment variables take precedence over file values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}
	return Parse(data)
}

// LoadOrDefault loads path when it exists and falls back to defaults otherwise.
func LoadOrDefault(path string) (*Config, error) {
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		} else if !os.IsNotExist(err) {
			return nil, errors.Wrapf(err, "failed to stat %s", path)
		}
	}
	return Parse(nil)
}

// Parse decodes YAML, applies environment overrides and defaults, and validates.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config file")
	}

	// Override with environment variables
	cfg.overrideFromEnv()

	// Set defaults using creasty/defaults
	if err := defaults.Set(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}

	return &cfg, nil
}

// overrideFromEnv overrides config values with environment variables.
func (c *Config) overrideFromEnv() {
	if v := os.Getenv("POCKETBOX_DATA_DIR"); v != "" {
		c.Library.DataDir = v
	}
	if v := os.Getenv("POCKETBOX_MEDIA_DIR"); v != "" {
		c.Library.MediaDir = v
	}
	if v := os.Getenv("POCKETBOX_REDIS_ADDR"); v != "" {
		c.storageSetting("addr", v)
	}
	if v := os.Getenv("POCKETBOX_REDIS_PASSWORD"); v != "" {
		c.storageSetting("password", v)
	}
}

func (c *Config) storageSetting(key string, value any) {
	if c.Storage.Settings == nil {
		c.Storage.Settings = make(map[string]any)
	}
	c.Storage.Settings[key] = value
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "struct validation failed")
	}
	return nil
}

// IsFilterEnabled checks if a filter is enabled.
func (c *Config) IsFilterEnabled(filterName string) bool {
	if f, ok := c.Filters[filterName]; ok {
		return f.Enabled
	}
	return false
}

// EnabledFilters returns the settings of enabled filters keyed by name.
func (c *Config) EnabledFilters() map[string]map[string]any {
	enabled := make(map[string]map[string]any)
	for name, f := range c.Filters {
		if f.Enabled {
			enabled[name] = f.Settings
		}
	}
	return enabled
}

// ImportPath returns the directory imported files are copied into.
func (c *Config) ImportPath() string {
	if filepath.IsAbs(c.Library.ImportDir) {
		return c.Library.ImportDir
	}
	return filepath.Join(c.Library.DataDir, c.Library.ImportDir)
}

// PersistOnlineTracks reports whether online tracks are saved.
func (c *Config) PersistOnlineTracks() bool {
	return c.Library.PersistOnlineTracks == nil || *c.Library.PersistOnlineTracks
}

// AutoAdvance reports whether playback continues with the next track.
func (c *Config) AutoAdvance() bool {
	return c.Playback.AutoAdvance == nil || *c.Playback.AutoAdvance
}

// StatusInterval returns the engine status reporting interval.
func (c *Config) StatusInterval() time.Duration {
	return time.Duration(c.Playback.StatusIntervalMs) * time.Millisecond
}

// SendTimeout returns the per-subscriber notification timeout.
func (c *Config) SendTimeout() time.Duration {
	return time.Duration(c.Notification.SendTimeoutMs) * time.Millisecond
}
