package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// TestDefaultConfig verifies default configuration values
func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Concurrency != 5 {
		t.Errorf("Concurrency = %d, want 5", cfg.Concurrency)
	}
	if cfg.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d, want 3", cfg.MaxRetries)
	}
	if cfg.Timeout != 10*time.Minute {
		t.Errorf("Timeout = %v, want 10m", cfg.Timeout)
	}
	if cfg.Allowlist != "{file_stem}*" {
		t.Errorf("Allowlist = %q, want {file_stem}*", cfg.Allowlist)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want info", cfg.LogLevel)
	}
	if cfg.TasksDir != filepath.Join(".fileloop", "tasks") {
		t.Errorf("TasksDir = %q", cfg.TasksDir)
	}
	if cfg.Git.Enabled {
		t.Error("Git.Enabled should default to false")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

// TestLoadConfigMissingFile verifies defaults come back when no file exists
func TestLoadConfigMissingFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Concurrency != 5 {
		t.Errorf("Concurrency = %d, want default 5", cfg.Concurrency)
	}
}

// TestLoadConfigMergesWithDefaults verifies partial files keep defaults
func TestLoadConfigMergesWithDefaults(t *testing.T) {
	path := writeConfig(t, `
concurrency: 8
timeout: 30m
git:
  enabled: true
  auto_commit: true
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Concurrency != 8 {
		t.Errorf("Concurrency = %d, want 8", cfg.Concurrency)
	}
	if cfg.Timeout != 30*time.Minute {
		t.Errorf("Timeout = %v, want 30m", cfg.Timeout)
	}
	if !cfg.Git.Enabled || !cfg.Git.AutoCommit {
		t.Errorf("Git = %+v, want enabled with auto_commit", cfg.Git)
	}
	// Unset fields keep their defaults.
	if cfg.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d, want default 3", cfg.MaxRetries)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want default info", cfg.LogLevel)
	}
}

// TestLoadConfigZeroMaxRetries verifies an explicit zero survives the merge
func TestLoadConfigZeroMaxRetries(t *testing.T) {
	path := writeConfig(t, "max_retries: 0\n")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.MaxRetries != 0 {
		t.Errorf("MaxRetries = %d, want explicit 0", cfg.MaxRetries)
	}
}

// TestLoadConfigMalformed verifies parse errors are reported
func TestLoadConfigMalformed(t *testing.T) {
	path := writeConfig(t, "concurrency: [not an int\n")
	if _, err := LoadConfig(path); err == nil {
		t.Error("expected error for malformed YAML")
	}
}

func TestLoadConfigBadTimeout(t *testing.T) {
	path := writeConfig(t, "timeout: soon\n")
	if _, err := LoadConfig(path); err == nil {
		t.Error("expected error for unparseable timeout")
	}
}

// TestMergeWithFlags verifies only set flags override
func TestMergeWithFlags(t *testing.T) {
	cfg := DefaultConfig()

	concurrency := 2
	gitEnabled := true
	cfg.MergeWithFlags(FlagOverrides{
		Concurrency: &concurrency,
		GitEnabled:  &gitEnabled,
	})

	if cfg.Concurrency != 2 {
		t.Errorf("Concurrency = %d, want 2", cfg.Concurrency)
	}
	if !cfg.Git.Enabled {
		t.Error("Git.Enabled should be overridden to true")
	}
	// Untouched values stay.
	if cfg.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d, want 3", cfg.MaxRetries)
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"zero concurrency", func(c *Config) { c.Concurrency = 0 }, true},
		{"negative retries", func(c *Config) { c.MaxRetries = -1 }, true},
		{"negative timeout", func(c *Config) { c.Timeout = -time.Second }, true},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }, true},
		{"empty tasks dir", func(c *Config) { c.TasksDir = "" }, true},
		{"auto_commit without enabled", func(c *Config) { c.Git.AutoCommit = true }, true},
		{"auto_commit with enabled", func(c *Config) { c.Git.Enabled = true; c.Git.AutoCommit = true }, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			err := cfg.Validate()
			if tc.wantErr && err == nil {
				t.Error("expected error")
			}
			if !tc.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestLoadConfigFromDir(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, ".fileloop")
	if err := os.MkdirAll(sub, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(sub, "config.yaml"), []byte("concurrency: 3\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfigFromDir(dir)
	if err != nil {
		t.Fatalf("LoadConfigFromDir: %v", err)
	}
	if cfg.Concurrency != 3 {
		t.Errorf("Concurrency = %d, want 3", cfg.Concurrency)
	}
}
