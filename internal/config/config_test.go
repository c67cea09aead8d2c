package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)
	t.Setenv("CONFIG_ENV", "missing")
	t.Setenv("PORT", "")
	t.Setenv("CONVO_PORT", "")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Port != 8080 || cfg.GroupMax != 4 || cfg.Backpressure != "drop" {
		t.Fatalf("defaults = %+v", cfg)
	}
	if cfg.PingPeriod != 54*time.Second || cfg.DMRate.Interval != 10*time.Second {
		t.Fatalf("durations = %v %v", cfg.PingPeriod, cfg.DMRate.Interval)
	}
	if cfg.Presence.Driver != "memory" {
		t.Fatalf("presence driver = %q", cfg.Presence.Driver)
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := chdirTemp(t)
	if err := os.MkdirAll(filepath.Join(dir, "config"), 0o755); err != nil {
		t.Fatal(err)
	}
	yaml := []byte("port: 9000\ngroup_max: 6\nlog_level: debug\npresence:\n  driver: sqlite\n  dsn: p.db\n")
	if err := os.WriteFile(filepath.Join(dir, "config", "config.test.yaml"), yaml, 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CONFIG_ENV", "test")
	t.Setenv("PORT", "")
	t.Setenv("CONVO_PORT", "")
	t.Setenv("CONVO_GROUP_MAX", "3")
	prev := zerolog.GlobalLevel()
	t.Cleanup(func() { zerolog.SetGlobalLevel(prev) })

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Port != 9000 {
		t.Fatalf("port = %d", cfg.Port)
	}
	if cfg.GroupMax != 3 {
		t.Fatalf("env override lost: group_max = %d", cfg.GroupMax)
	}
	if cfg.Presence.Driver != "sqlite" || cfg.Presence.DSN != "p.db" {
		t.Fatalf("presence = %+v", cfg.Presence)
	}
	if zerolog.GlobalLevel() != zerolog.DebugLevel {
		t.Fatalf("log level = %v", zerolog.GlobalLevel())
	}
}

func TestApplyLogLevelRejectsGarbage(t *testing.T) {
	c := &Config{LogLevel: "loud"}
	if err := c.ApplyLogLevel(); err == nil {
		t.Fatal("garbage level accepted")
	}
}
