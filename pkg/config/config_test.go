package config

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Overpass.URL != "https://overpass-api.de/api/interpreter" {
		t.Errorf("unexpected url %q", cfg.Overpass.URL)
	}
	if cfg.Overpass.Timeout != 30*time.Second {
		t.Errorf("unexpected timeout %v", cfg.Overpass.Timeout)
	}
	if cfg.Overpass.QueryTimeout != 25 {
		t.Errorf("unexpected query timeout %d", cfg.Overpass.QueryTimeout)
	}
	if cfg.Query.TagKey != "amenity" || cfg.Query.TagValue != "toilets" {
		t.Errorf("unexpected tag %s=%s", cfg.Query.TagKey, cfg.Query.TagValue)
	}
	if cfg.Log.Format != "text" {
		t.Errorf("unexpected log format %q", cfg.Log.Format)
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.yaml")
	content := "overpass:\n  timeout: 5s\n  rps: 2\nquery:\n  tag_value: drinking_water\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("POIMAP_OVERPASS_URL", "http://localhost:12345/api")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Overpass.Timeout != 5*time.Second {
		t.Errorf("file value not applied: %v", cfg.Overpass.Timeout)
	}
	if cfg.Overpass.RPS != 2 {
		t.Errorf("file value not applied: %v", cfg.Overpass.RPS)
	}
	if cfg.Query.TagValue != "drinking_water" {
		t.Errorf("file value not applied: %q", cfg.Query.TagValue)
	}
	if cfg.Overpass.URL != "http://localhost:12345/api" {
		t.Errorf("env value not applied: %q", cfg.Overpass.URL)
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing explicit config file")
	}
}

func TestValidate(t *testing.T) {
	valid := Config{
		Overpass: OverpassConfig{URL: "u", Timeout: time.Second, QueryTimeout: 25, RPS: 1, Burst: 1},
		Query:    QueryConfig{TagKey: "amenity"},
		Log:      LogConfig{Level: "info", Format: "text"},
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"no url", func(c *Config) { c.Overpass.URL = "" }, "overpass.url"},
		{"zero timeout", func(c *Config) { c.Overpass.Timeout = 0 }, "overpass.timeout"},
		{"zero rps", func(c *Config) { c.Overpass.RPS = 0 }, "overpass.rps"},
		{"zero burst", func(c *Config) { c.Overpass.Burst = 0 }, "overpass.burst"},
		{"no tag key", func(c *Config) { c.Query.TagKey = "" }, "query.tag_key"},
		{"bad level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
		{"bad format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := valid
			tc.mutate(&c)
			err := c.Validate()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Errorf("expected error mentioning %s, got %v", tc.want, err)
			}
		})
	}
}

func TestNewLogger(t *testing.T) {
	l := LogConfig{Level: "warn", Format: "json"}

	if l.NewLogger(false).Enabled(context.Background(), slog.LevelInfo) {
		t.Error("info should be disabled at warn level")
	}
	if !l.NewLogger(true).Enabled(context.Background(), slog.LevelDebug) {
		t.Error("debug flag should enable debug level")
	}
}
