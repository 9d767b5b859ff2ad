package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. GOTALK_COACH_ANALYSIS_URL.
const EnvPrefix = "GOTALK_COACH"

// MaxDurationCap is the hard ceiling on a live capture, in seconds.
const MaxDurationCap = 90

type Config struct {
	// Hotkey toggles live capture, e.g. "Alt-r".
	Hotkey string `json:"hotkey" mapstructure:"hotkey" validate:"required"`

	// AnalysisURL is the base URL of the speaking-coach service.
	AnalysisURL string `json:"analysis_url" mapstructure:"analysis_url" validate:"required,url"`

	// AnalysisTimeout bounds one analysis request, in seconds.
	AnalysisTimeout int `json:"analysis_timeout" mapstructure:"analysis_timeout" validate:"min=1"`

	// AnalysisRetries is how often a failed health check is retried.
	AnalysisRetries int `json:"analysis_retries" mapstructure:"analysis_retries" validate:"min=0,max=10"`

	// MaxDuration is the live capture cap in seconds. Values above 90 are
	// clamped to 90.
	MaxDuration int `json:"max_duration" mapstructure:"max_duration" validate:"min=1,max=90"`

	// FormatPreferences lists chunk MIME types in order of preference.
	// audio/L16 is always used when nothing else is supported.
	FormatPreferences []string `json:"format_preferences" mapstructure:"format_preferences" validate:"dive,required"`

	SampleRate int `json:"sample_rate" mapstructure:"sample_rate" validate:"oneof=8000 16000 22050 24000 32000 44100 48000"`
	Channels   int `json:"channels" mapstructure:"channels" validate:"min=1,max=2"`

	// ProbeTimeout bounds reading the duration of an uploaded file, in seconds.
	ProbeTimeout int `json:"probe_timeout" mapstructure:"probe_timeout" validate:"min=1"`

	LogLevel string `json:"log_level" mapstructure:"log_level" validate:"oneof=debug info warn error"`

	// LogFile, when set, receives JSON logs with size-based rotation.
	LogFile string `json:"log_file,omitempty" mapstructure:"log_file"`

	// MetricsAddr, when set, serves Prometheus metrics, e.g. "127.0.0.1:9464".
	MetricsAddr string `json:"metrics_addr,omitempty" mapstructure:"metrics_addr" validate:"omitempty,hostname_port"`
}

func Default() *Config {
	return &Config{
		Hotkey:            "Alt-r",
		AnalysisURL:       "http://127.0.0.1:5000",
		AnalysisTimeout:   120,
		AnalysisRetries:   2,
		MaxDuration:       MaxDurationCap,
		FormatPreferences: []string{"audio/flac", "audio/basic", "audio/L16"},
		SampleRate:        16000,
		Channels:          1,
		ProbeTimeout:      5,
		LogLevel:          "info",
	}
}

func dir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "gotalk-coach")
}

// Path is the default config file, ~/.config/gotalk-coach/config.json.
func Path() string {
	return filepath.Join(dir(), "config.json")
}

// Load reads the default config file. See LoadFile.
func Load() (*Config, error) {
	return LoadFile(Path())
}

// LoadFile reads the JSON config at p on top of the defaults, then applies
// GOTALK_COACH_* environment overrides. A missing file is not an error.
func LoadFile(p string) (*Config, error) {
	v := viper.New()
	setDefaults(v, Default())
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	if _, err := os.Stat(p); err == nil {
		v.SetConfigFile(p)
		v.SetConfigType("json")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", p, err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	cfg.clamp()
	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("hotkey", d.Hotkey)
	v.SetDefault("analysis_url", d.AnalysisURL)
	v.SetDefault("analysis_timeout", d.AnalysisTimeout)
	v.SetDefault("analysis_retries", d.AnalysisRetries)
	v.SetDefault("max_duration", d.MaxDuration)
	v.SetDefault("format_preferences", d.FormatPreferences)
	v.SetDefault("sample_rate", d.SampleRate)
	v.SetDefault("channels", d.Channels)
	v.SetDefault("probe_timeout", d.ProbeTimeout)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("log_file", d.LogFile)
	v.SetDefault("metrics_addr", d.MetricsAddr)
}

// clamp pulls out-of-range numbers back to usable values.
func (c *Config) clamp() {
	def := Default()
	if c.MaxDuration > MaxDurationCap || c.MaxDuration < 1 {
		c.MaxDuration = MaxDurationCap
	}
	if c.AnalysisTimeout < 1 {
		c.AnalysisTimeout = def.AnalysisTimeout
	}
	if c.ProbeTimeout < 1 {
		c.ProbeTimeout = def.ProbeTimeout
	}
	if c.Channels < 1 || c.Channels > 2 {
		c.Channels = def.Channels
	}
	if len(c.FormatPreferences) == 0 {
		c.FormatPreferences = def.FormatPreferences
	}
}

// Save writes c to the default config path.
func (c *Config) Save() error {
	return c.SaveFile(Path())
}

// SaveFile writes c to p, creating its directory.
func (c *Config) SaveFile(p string) error {
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(p, data, 0644)
}
