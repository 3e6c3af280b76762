// Package config loads poimap settings from defaults, an optional YAML file
// and POIMAP_* environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Overpass OverpassConfig `mapstructure:"overpass"`
	Query    QueryConfig    `mapstructure:"query"`
	Log      LogConfig      `mapstructure:"log"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Render   RenderConfig   `mapstructure:"render"`
}

type OverpassConfig struct {
	URL          string        `mapstructure:"url"`
	Timeout      time.Duration `mapstructure:"timeout"`
	QueryTimeout int           `mapstructure:"query_timeout"`
	UserAgent    string        `mapstructure:"user_agent"`
	RPS          float64       `mapstructure:"rps"`
	Burst        int           `mapstructure:"burst"`
}

type QueryConfig struct {
	TagKey   string `mapstructure:"tag_key"`
	TagValue string `mapstructure:"tag_value"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type MetricsConfig struct {
	Textfile string `mapstructure:"textfile"`
}

type RenderConfig struct {
	Title string `mapstructure:"title"`
}

// Load reads configuration. An explicit path must exist; otherwise
// poimap.yaml is looked up in the working directory and
// $HOME/.config/poimap, and a missing file is fine.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("overpass.url", "https://overpass-api.de/api/interpreter")
	v.SetDefault("overpass.timeout", 30*time.Second)
	v.SetDefault("overpass.query_timeout", 25)
	v.SetDefault("overpass.user_agent", "poimap/0.1.0")
	v.SetDefault("overpass.rps", 1.0)
	v.SetDefault("overpass.burst", 1)
	v.SetDefault("query.tag_key", "amenity")
	v.SetDefault("query.tag_value", "toilets")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("metrics.textfile", "")
	v.SetDefault("render.title", "Public Toilets")

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("poimap")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "poimap"))
		}
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	// Environment variables: POIMAP_OVERPASS_URL → overpass.url
	v.SetEnvPrefix("POIMAP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks that required configuration fields are present and sane.
func (c *Config) Validate() error {
	var errs []string

	if c.Overpass.URL == "" {
		errs = append(errs, "overpass.url is required")
	}
	if c.Overpass.Timeout <= 0 {
		errs = append(errs, "overpass.timeout must be positive")
	}
	if c.Overpass.QueryTimeout <= 0 {
		errs = append(errs, "overpass.query_timeout must be positive")
	}
	if c.Overpass.RPS <= 0 {
		errs = append(errs, fmt.Sprintf("overpass.rps must be positive, got %g", c.Overpass.RPS))
	}
	if c.Overpass.Burst < 1 {
		errs = append(errs, fmt.Sprintf("overpass.burst must be at least 1, got %d", c.Overpass.Burst))
	}
	if c.Query.TagKey == "" {
		errs = append(errs, "query.tag_key is required")
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		errs = append(errs, err.Error())
	}
	if f := c.Log.Format; f != "text" && f != "json" {
		errs = append(errs, fmt.Sprintf("log.format must be text or json, got %q", f))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// SlogLevel parses Level as a slog level name.
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, fmt.Errorf("log.level: %w", err)
	}
	return level, nil
}

// NewLogger builds the process logger on stderr. debug forces the debug level.
func (l LogConfig) NewLogger(debug bool) *slog.Logger {
	level, err := l.SlogLevel()
	if err != nil {
		level = slog.LevelInfo
	}
	if debug {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	if l.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
