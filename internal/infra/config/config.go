// Package config provides configuration loading from YAML files.
package config

import (
	"os"
	"strconv"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Theme     ThemeConfig     `yaml:"theme" mapstructure:"theme"`
	Audio     AudioConfig     `yaml:"audio" mapstructure:"audio"`
	Broadcast BroadcastConfig `yaml:"broadcast" mapstructure:"broadcast"`
	General   GeneralConfig   `yaml:"general" mapstructure:"general"`
	Hotkeys   HotkeysConfig   `yaml:"hotkeys" mapstructure:"hotkeys"`
	Storage   StorageConfig   `yaml:"storage"`
	Library   LibraryConfig   `yaml:"library"`
}

// ServerConfig represents daemon-level server configuration.
type ServerConfig struct {
	Host  string      `yaml:"host" default:"127.0.0.1"`
	Hooks HooksConfig `yaml:"hooks"`
}

// HooksConfig represents lifecycle hooks configuration.
type HooksConfig struct {
	OnStarted []string `yaml:"on_started"`
	OnStopped []string `yaml:"on_stopped"`
}

// ThemeConfig represents UI theming passed through to presentation layers.
type ThemeConfig struct {
	PrimaryColor   string `yaml:"primary_color" mapstructure:"primaryColor" default:"#121212"`
	SecondaryColor string `yaml:"secondary_color" mapstructure:"secondaryColor" default:"#847cf7"`
	AccentColor    string `yaml:"accent_color" mapstructure:"accentColor" default:"#ffffff"`
	BorderRadius   string `yaml:"border_radius" mapstructure:"borderRadius" default:"8px"`
}

// AudioConfig represents playback audio configuration.
type AudioConfig struct {
	Volume   float64 `yaml:"volume" mapstructure:"volume" default:"0.7" validate:"gte=0,lte=1"`
	FadeTime float64 `yaml:"fade_time" mapstructure:"fadeTime" default:"3" validate:"gte=0,lte=30"` // seconds
}

// BroadcastConfig represents the overlay broadcast endpoint configuration.
type BroadcastConfig struct {
	Port           int     `yaml:"port" mapstructure:"port" default:"3000" validate:"gte=1,lte=65535"`
	ShowDuration   float64 `yaml:"show_duration" mapstructure:"showDuration" default:"10" validate:"gte=0"`   // seconds
	TransitionTime float64 `yaml:"transition_time" mapstructure:"transitionTime" default:"5" validate:"gte=0"` // seconds
	AlwaysShow     bool    `yaml:"always_show" mapstructure:"alwaysShow"`
	OverlayDir     string  `yaml:"overlay_dir"` // static overlay assets; empty disables
}

// GeneralConfig represents general playback behavior.
type GeneralConfig struct {
	ShuffleByDefault bool `yaml:"shuffle_by_default" mapstructure:"shuffleByDefault" default:"true"`
	AutoAdvance      bool `yaml:"auto_advance" mapstructure:"autoAdvance" default:"true"`
}

// KeyConfig represents a single key chord.
type KeyConfig struct {
	Key   string `yaml:"key" mapstructure:"key"`
	Ctrl  bool   `yaml:"ctrl" mapstructure:"ctrl"`
	Shift bool   `yaml:"shift" mapstructure:"shift"`
	Alt   bool   `yaml:"alt" mapstructure:"alt"`
	Meta  bool   `yaml:"meta" mapstructure:"meta"`
}

// MoodKeyConfig binds a key chord to a mood playlist.
type MoodKeyConfig struct {
	MoodID string    `yaml:"mood_id" mapstructure:"moodId"`
	Hotkey KeyConfig `yaml:"hotkey" mapstructure:"hotkey"`
}

// HotkeysConfig represents global hotkey bindings.
type HotkeysConfig struct {
	PlayPause *KeyConfig      `yaml:"play_pause" mapstructure:"playPause"`
	Next      *KeyConfig      `yaml:"next" mapstructure:"next"`
	Previous  *KeyConfig      `yaml:"previous" mapstructure:"previous"`
	Moods     []MoodKeyConfig `yaml:"moods" mapstructure:"moods"`
}

// StorageConfig represents persistence configuration.
type StorageConfig struct {
	Path            string `yaml:"path" default:"data/moodbox.json"`
	SaveDebounceMs  int    `yaml:"save_debounce_ms" default:"1000" validate:"gte=0,lte=60000"`
	SaveIntervalSec int    `yaml:"save_interval_sec" default:"30" validate:"gte=1,lte=3600"`
}

// LibraryConfig represents library ingestion configuration.
type LibraryConfig struct {
	WatchDirs []string `yaml:"watch_dirs"`
}

// Load loads configuration from a YAML file. A missing file yields the
// defaults. Environment variables take precedence over file values.
func Load(path string) (*Config, error) {
	var cfg Config

	// Defaults are applied before unmarshalling so an explicit false/zero in
	// the file is not mistaken for an unset field.
	if err := defaults.Set(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, errors.Wrap(err, "failed to parse config file")
		}
	case os.IsNotExist(err):
		// Defaults only.
	default:
		return nil, errors.Wrap(err, "failed to read config file")
	}

	cfg.overrideFromEnv()

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}

	return &cfg, nil
}

// overrideFromEnv overrides config values with environment variables.
func (c *Config) overrideFromEnv() {
	if v := os.Getenv("MOODBOX_HOST"); v != "" {
		c.Server.Host = v
	}
	if v := os.Getenv("MOODBOX_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Broadcast.Port = port
		}
	}
	if v := os.Getenv("MOODBOX_DATA_PATH"); v != "" {
		c.Storage.Path = v
	}
	if v := os.Getenv("MOODBOX_OVERLAY_DIR"); v != "" {
		c.Broadcast.OverlayDir = v
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "struct validation failed")
	}
	return nil
}
